package parse

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/bfc/compiler/ast"
)

func TestParseNested(t *testing.T) {
	x, err := Parse(context.Background(), []byte("[][[[]]]"))
	require.NoError(t, err)

	exp := []ast.Node{
		&ast.Loop{},
		&ast.Loop{Body: []ast.Node{
			&ast.Loop{Body: []ast.Node{
				&ast.Loop{},
			}},
		}},
	}

	assert.True(t, ast.Equal(exp, x), "got %v", x)
}

func TestParseCommands(t *testing.T) {
	x, err := Parse(context.Background(), []byte("+- comment <>\n.,[+]"))
	require.NoError(t, err)

	exp := []ast.Node{
		ast.Inc{}, ast.Dec{}, ast.Back{}, ast.Forward{},
		ast.Output{}, ast.Input{},
		&ast.Loop{Body: []ast.Node{ast.Inc{}}},
	}

	assert.True(t, ast.Equal(exp, x), "got %v", x)
}

func TestParsePositions(t *testing.T) {
	x, err := Parse(context.Background(), []byte("+\n  [-]"))
	require.NoError(t, err)
	require.Len(t, x, 2)

	l, ok := x[1].(*ast.Loop)
	require.True(t, ok)
	require.NotNil(t, l.StartsAt)

	assert.Equal(t, ast.Position{Total: 5, Line: 2, Column: 3}, *l.StartsAt)
}

func TestParseMissingBracket(t *testing.T) {
	for _, src := range []string{"[[[[]]]", "[][[[]]", "["} {
		_, err := Parse(context.Background(), []byte(src))

		var se SyntaxError
		require.True(t, errors.As(err, &se), "src %q: %v", src, err)

		assert.Nil(t, se.Pos)
		assert.EqualError(t, err, "closing bracket expected, reached end of file instead", "src %q", src)
	}
}

func TestParseExtraBracket(t *testing.T) {
	for _, tc := range []struct {
		src  string
		line int
		col  int
	}{
		{"[]]", 1, 3},
		{"[][[[]]]]", 1, 9},
		{"[]\n+-[[]]]", 2, 7},
	} {
		_, err := Parse(context.Background(), []byte(tc.src))

		var se SyntaxError
		require.True(t, errors.As(err, &se), "src %q: %v", tc.src, err)
		require.NotNil(t, se.Pos)

		assert.Equal(t, tc.line, se.Pos.Line, "src %q", tc.src)
		assert.Equal(t, tc.col, se.Pos.Column, "src %q", tc.src)
	}

	_, err := Parse(context.Background(), []byte("[]\n+-[[]]]"))
	assert.EqualError(t, err, "unexpected closing bracket at line 2 column 7")
}

func TestStateFiles(t *testing.T) {
	s := New()

	s.AddFile("a.b", []byte("+["))
	s.AddFile("b.b", []byte("-"))

	_, err := s.Parse(context.Background())
	assert.EqualError(t, err, "file a.b: closing bracket expected, reached end of file instead")

	s = New()

	s.AddFile("a.b", []byte("+[>]"))
	s.AddFile("b.b", []byte("-"))

	x, err := s.Parse(context.Background())
	require.NoError(t, err)

	exp := []ast.Node{ast.Inc{}, &ast.Loop{Body: []ast.Node{ast.Forward{}}}, ast.Dec{}}
	assert.True(t, ast.Equal(exp, x), "got %v", x)
}

func TestParseFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "prog.b")

	err := os.WriteFile(p, []byte("++[>+<-]"), 0o644)
	require.NoError(t, err)

	x, err := ParseFile(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, x, 3)

	_, err = ParseFile(context.Background(), p+".missing")
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	assert.True(t, Commands.IsSet('['))
	assert.False(t, Commands.IsSet('a'))
	assert.False(t, Commands.IsSet(0xff))


	var l []byte

	Commands.Range(func(c byte) bool {
		l = append(l, c)
		return true
	})

	assert.Equal(t, []byte("+,-.<>[]"), l)
}
