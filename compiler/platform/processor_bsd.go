//go:build freebsd || netbsd || openbsd

package platform

import "golang.org/x/sys/unix"

func processor(string) (string, error) {
	return unix.Sysctl("hw.machine_arch")
}
