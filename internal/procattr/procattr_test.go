package procattr

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	cmd := exec.Command("true")
	Set(cmd)
	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid)
}

func TestKillGroup_Nil(t *testing.T) {
	assert.NoError(t, KillGroup(nil))
}

func TestKillGroup_KillsChildren(t *testing.T) {
	// The shell forks a sleep that would outlive a plain Process.Kill.
	cmd := exec.Command("sh", "-c", "sleep 60 & wait")
	Set(cmd)
	require.NoError(t, cmd.Start())

	require.NoError(t, KillGroup(cmd.Process))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("process group survived SIGKILL")
	}
}

func TestKillGroup_AlreadyExited(t *testing.T) {
	cmd := exec.Command("true")
	Set(cmd)
	require.NoError(t, cmd.Start())
	require.NoError(t, cmd.Wait())

	assert.NoError(t, KillGroup(cmd.Process))
}
