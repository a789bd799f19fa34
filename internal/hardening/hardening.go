// Package hardening confines the host process with a seccomp filter before
// it runs untrusted programs.
package hardening

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/elastic/go-seccomp-bpf"
	"go.uber.org/zap"
)

// ErrUnsupported is returned by Apply when the kernel or platform has no
// seccomp support.
var ErrUnsupported = errors.New("hardening: seccomp is not supported on this platform")

const (
	eperm  = 1
	eacces = 13
)

// actionErrno makes a denied syscall fail with errno x instead of killing
// the thread, so Go code sees an ordinary error.
func actionErrno(x uint32) seccomp.Action {
	return seccomp.Action(uint32(seccomp.ActionErrno) | (x & 0xffff))
}

// Policy allows everything except starting programs, tracing other
// processes and opening network sockets. clone stays allowed because the Go
// runtime creates threads with it.
func Policy() seccomp.Policy {
	spawn := []string{"execve", "execveat", "ptrace"}
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "386" {
		spawn = append(spawn, "fork", "vfork")
	}
	return seccomp.Policy{
		DefaultAction: seccomp.ActionAllow,
		Syscalls: []seccomp.SyscallGroup{
			{Action: actionErrno(eperm), Names: spawn},
			{Action: actionErrno(eacces), Names: []string{"socket", "connect"}},
		},
	}
}

// Apply installs Policy on every thread of the process and sets the
// no-new-privs bit. It cannot be undone.
func Apply(logger *zap.Logger) error {
	if !seccomp.Supported() {
		return ErrUnsupported
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	err := seccomp.LoadFilter(seccomp.Filter{
		NoNewPrivs: true,
		Flag:       seccomp.FilterFlagTSync,
		Policy:     Policy(),
	})
	if err != nil {
		return fmt.Errorf("hardening: loading seccomp filter: %w", err)
	}
	logger.Info("seccomp filter installed")
	return nil
}
