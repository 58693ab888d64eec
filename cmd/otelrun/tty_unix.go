//go:build linux || darwin

package main

import (
	"io"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// terminalDelivers reports whether in is a terminal whose foreground process
// group is ours. Keys like Ctrl-C then signal the child directly.
func terminalDelivers(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	pgrp, err := unix.IoctlGetInt(int(f.Fd()), unix.TIOCGPGRP)
	if err != nil {
		return false
	}
	return pgrp == syscall.Getpgrp()
}
