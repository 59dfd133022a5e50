//go:build unix

package clicker

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const timevalSize = int(unsafe.Sizeof(unix.Timeval{}))
