//go:build linux || darwin || freebsd || netbsd || openbsd

package platform

import (
	"golang.org/x/sys/unix"
	"tlog.app/go/errors"
)

func query() (p Info, err error) {
	var u unix.Utsname

	err = unix.Uname(&u)
	if err != nil {
		return p, errors.Wrap(err, "uname")
	}

	p.System = unix.ByteSliceToString(u.Sysname[:])
	p.Machine = unix.ByteSliceToString(u.Machine[:])

	if p.IsBSD() {
		p.Processor, err = processor(p.Machine)
		if err != nil {
			return p, errors.Wrap(err, "processor")
		}
	}

	return p, nil
}
