//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package platform

import (
	"runtime"
	"strings"
)

func query() (Info, error) {
	sys := runtime.GOOS
	if sys != "" {
		sys = strings.ToUpper(sys[:1]) + sys[1:]
	}

	return Info{
		System:  sys,
		Machine: runtime.GOARCH,
	}, nil
}
