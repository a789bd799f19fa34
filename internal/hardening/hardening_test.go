package hardening

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyAssembles(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("seccomp filters are linux only")
	}
	p := Policy()
	prog, err := p.Assemble()
	require.NoError(t, err)
	assert.NotEmpty(t, prog)
}

func TestPolicyDeniesSpawn(t *testing.T) {
	p := Policy()
	require.Len(t, p.Syscalls, 2)
	assert.Contains(t, p.Syscalls[0].Names, "execve")
	assert.Contains(t, p.Syscalls[1].Names, "socket")
	assert.NotContains(t, p.Syscalls[0].Names, "clone")
}
