package stages

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestExecExecutor_Success(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "echo.log")
	err := ExecExecutor{}.Run(context.Background(), Command{
		Name:    "sh",
		Args:    []string{"-c", "echo hello; echo oops 1>&2"},
		LogPath: logPath,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "oops")
}

func TestExecExecutor_StdoutRedirect(t *testing.T) {
	defer goleak.VerifyNone(t)

	out := filepath.Join(t.TempDir(), "reads.fastq")
	err := ExecExecutor{}.Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "printf '@r\\nACGT\\n'"},
		Stdout: out,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "@r\nACGT\n", string(data))
}

func TestExecExecutor_NonZeroExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	err := ExecExecutor{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 3"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sh exited")
}

func TestExecExecutor_MissingBinary(t *testing.T) {
	err := ExecExecutor{}.Run(context.Background(), Command{Name: "definitely-not-a-real-tool-xyz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in PATH")
}

func TestExecExecutor_Cancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := ExecExecutor{}.Run(ctx, Command{Name: "sleep", Args: []string{"5"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}
