//go:build !windows

package secret

import (
	"golang.org/x/sys/unix"
)

// mlock pins data in RAM so it is never written to swap.
func mlock(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return unix.Mlock(data) == nil
}

func munlock(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Munlock(data)
}
