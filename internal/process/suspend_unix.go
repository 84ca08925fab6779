//go:build unix

package process

import "golang.org/x/sys/unix"

func suspend(pid int) error {
	return unix.Kill(pid, unix.SIGSTOP)
}

func resume(pid int) error {
	return unix.Kill(pid, unix.SIGCONT)
}
