/*
Package compiler puts the stages together.

Process of compilation

	Program Text ->
		parse ->
	Abstract Syntax Tree (ast) ->
		analyze ->
	Intermediate Representation (ir) ->
		back ->
	Assembly Text ->
		assemble ->
	Binary Object ->
		link ->
	Shared Library ->
		load ->
	Runner

	Intermediate Representation (ir) ->
		jit ->
	Machine Code ->
		map executable ->
	Runner
*/
package compiler
