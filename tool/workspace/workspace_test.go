package workspace

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweetpotato0/ai-devteam/tool"
)

func registry(t *testing.T, root string) *tool.Registry {
	t.Helper()
	reg, err := tool.NewRegistry(Tools(root)...)
	require.NoError(t, err)
	return reg
}

func TestWriteThenRead(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	reg := registry(t, root)
	ctx := context.Background()

	_, err := reg.Execute(ctx, "write_file", map[string]any{"path": "pkg/a.go", "content": "package pkg"})
	require.NoError(t, err)

	got, err := reg.Execute(ctx, "read_file", map[string]any{"path": "pkg/a.go"})
	require.NoError(t, err)
	assert.Equal(t, "package pkg", got)

	exists, err := reg.Execute(ctx, "file_exists", map[string]any{"path": "pkg/a.go"})
	require.NoError(t, err)
	assert.Equal(t, "true", exists)

	listing, err := reg.Execute(ctx, "list_files", map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, listing, "[DIR]  pkg")
}

func TestPathEscapeRejected(t *testing.T) {
	t.Parallel()

	reg := registry(t, t.TempDir())
	_, err := reg.Execute(context.Background(), "read_file", map[string]any{"path": "../../etc/passwd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the workspace")
}

func TestNoWorkspace(t *testing.T) {
	t.Parallel()

	reg := registry(t, "")
	_, err := reg.Execute(context.Background(), "write_file", map[string]any{"path": "a", "content": "b"})
	require.ErrorIs(t, err, ErrNoWorkspace)

	dir, err := reg.Execute(context.Background(), "get_current_directory", nil)
	require.NoError(t, err)
	assert.Equal(t, "Workspace is not set", dir)
}

func TestCreateDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	reg := registry(t, root)
	_, err := reg.Execute(context.Background(), "create_directory", map[string]any{"path": "x/y"})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(root, "x", "y"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExecuteCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	t.Parallel()

	reg := registry(t, t.TempDir())
	out, err := reg.Execute(context.Background(), "execute_command", map[string]any{"command": "echo hello"})
	require.NoError(t, err)
	assert.Contains(t, out, "Command completed successfully")
	assert.Contains(t, out, "hello")

	out, err = reg.Execute(context.Background(), "execute_command", map[string]any{"command": "exit 3"})
	require.NoError(t, err)
	assert.Contains(t, out, "Command failed")
}
