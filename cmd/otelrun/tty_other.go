//go:build !linux && !darwin

package main

import "io"

func terminalDelivers(io.Reader) bool { return false }
