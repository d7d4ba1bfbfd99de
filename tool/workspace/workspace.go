// Package workspace provides file and command tools confined to a workspace
// root directory.
package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/sweetpotato0/ai-devteam/tool"
)

// CommandTimeout bounds execute_command.
const CommandTimeout = 5 * time.Minute

// maxOutput caps the command output returned to the model.
const maxOutput = 64 * 1024

// ErrNoWorkspace is reported when a tool needs a workspace that is not set.
var ErrNoWorkspace = errors.New("workspace is not set")

// Tools returns the workspace tool set bound to root. An empty root yields
// tools that refuse every operation except get_current_directory.
func Tools(root string) []*tool.Tool {
	ws := &fs{root: root}
	return []*tool.Tool{
		{
			Name:        "read_file",
			Description: "Read the contents of a file",
			Parameters: []tool.Parameter{
				{Name: "path", Type: "string", Description: "The file path to read (relative to workspace)", Required: true},
			},
			Handler: ws.readFile,
		},
		{
			Name:        "write_file",
			Description: "Write content to a file",
			Parameters: []tool.Parameter{
				{Name: "path", Type: "string", Description: "The file path to write to (relative to workspace)", Required: true},
				{Name: "content", Type: "string", Description: "The content to write", Required: true},
			},
			Handler: ws.writeFile,
		},
		{
			Name:        "list_files",
			Description: "List files and directories in a directory",
			Parameters: []tool.Parameter{
				{Name: "path", Type: "string", Description: "The directory path (relative to workspace, empty for root)"},
			},
			Handler: ws.listFiles,
		},
		{
			Name:        "file_exists",
			Description: "Check if a file exists",
			Parameters: []tool.Parameter{
				{Name: "path", Type: "string", Description: "The file path to check (relative to workspace)", Required: true},
			},
			Handler: ws.fileExists,
		},
		{
			Name:        "create_directory",
			Description: "Create a directory",
			Parameters: []tool.Parameter{
				{Name: "path", Type: "string", Description: "The directory path to create (relative to workspace)", Required: true},
			},
			Handler: ws.createDirectory,
		},
		{
			Name:        "get_current_directory",
			Description: "Get the current workspace directory path",
			Handler: func(context.Context, map[string]any) (string, error) {
				if ws.root == "" {
					return "Workspace is not set", nil
				}
				return ws.root, nil
			},
		},
		{
			Name:        "execute_command",
			Description: "Execute a command in the workspace directory",
			Parameters: []tool.Parameter{
				{Name: "command", Type: "string", Description: "The command to execute (e.g., 'go build ./...', 'npm install')", Required: true},
				{Name: "working_directory", Type: "string", Description: "Optional working directory relative to workspace (empty for workspace root)"},
			},
			Handler: ws.executeCommand,
		},
	}
}

type fs struct {
	root string
}

// resolve maps a workspace-relative path to an absolute path, refusing
// anything that escapes the root.
func (w *fs) resolve(rel string) (string, error) {
	if w.root == "" {
		return "", ErrNoWorkspace
	}
	root, err := filepath.Abs(w.root)
	if err != nil {
		return "", err
	}
	target := filepath.Clean(filepath.Join(root, rel))
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the workspace", rel)
	}
	return target, nil
}

func stringArg(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return v
}

func (w *fs) readFile(_ context.Context, args map[string]any) (string, error) {
	path, err := w.resolve(stringArg(args, "path"))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (w *fs) writeFile(_ context.Context, args map[string]any) (string, error) {
	rel := stringArg(args, "path")
	path, err := w.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	content := stringArg(args, "content")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), rel), nil
}

func (w *fs) listFiles(_ context.Context, args map[string]any) (string, error) {
	path, err := w.resolve(stringArg(args, "path"))
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			lines = append(lines, "[DIR]  "+e.Name())
		} else {
			lines = append(lines, "[FILE] "+e.Name())
		}
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		return "(empty directory)", nil
	}
	return strings.Join(lines, "\n"), nil
}

func (w *fs) fileExists(_ context.Context, args map[string]any) (string, error) {
	path, err := w.resolve(stringArg(args, "path"))
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "false", nil
		}
		return "", err
	}
	return "true", nil
}

func (w *fs) createDirectory(_ context.Context, args map[string]any) (string, error) {
	rel := stringArg(args, "path")
	path, err := w.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return "Created directory " + rel, nil
}

func (w *fs) executeCommand(ctx context.Context, args map[string]any) (string, error) {
	dir, err := w.resolve(stringArg(args, "working_directory"))
	if err != nil {
		return "", err
	}
	command := strings.TrimSpace(stringArg(args, "command"))
	if command == "" {
		return "", errors.New("command cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	output := out.String()
	if len(output) > maxOutput {
		output = output[:maxOutput] + "\n... (output truncated)"
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("Command timed out after %s\n%s", CommandTimeout, output), nil
	}
	if runErr != nil {
		return fmt.Sprintf("Command failed: %v\n%s", runErr, output), nil
	}
	return fmt.Sprintf("Command completed successfully\n%s", output), nil
}
