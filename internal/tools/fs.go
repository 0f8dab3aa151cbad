package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxReadBytes = 1 << 20

// resolvePath joins a relative path onto the workspace root and rejects
// anything that escapes it.
func resolvePath(workspace, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path must be relative to the workspace")
	}
	abs := filepath.Join(workspace, filepath.Clean(rel))
	root := filepath.Clean(workspace)
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the workspace: %s", rel)
	}
	return abs, nil
}

// RegisterFileTools adds read_file, write_file and list_dir, all scoped to
// the given workspace directory.
func RegisterFileTools(r *Registry, workspace string) {
	r.Register(Tool{
		Spec: llmToolSpec("read_file",
			"Read a UTF-8 text file from the task workspace. Path is relative to the workspace root.",
			objectSchema(map[string]any{
				"path": map[string]any{"type": "string", "description": "relative file path"},
			}, "path")),
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("read_file: bad arguments: %w", err)
			}
			abs, err := resolvePath(workspace, in.Path)
			if err != nil {
				return "", err
			}
			b, err := os.ReadFile(abs)
			if err != nil {
				return "", err
			}
			if len(b) > maxReadBytes {
				b = b[:maxReadBytes]
			}
			return string(b), nil
		},
	})

	r.Register(Tool{
		Spec: llmToolSpec("write_file",
			"Write a UTF-8 text file in the task workspace, creating parent directories as needed.",
			objectSchema(map[string]any{
				"path":    map[string]any{"type": "string", "description": "relative file path"},
				"content": map[string]any{"type": "string", "description": "file content"},
			}, "path", "content")),
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Path    string `json:"path"`
				Content string `json:"content"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("write_file: bad arguments: %w", err)
			}
			abs, err := resolvePath(workspace, in.Path)
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				return "", err
			}
			if err := os.WriteFile(abs, []byte(in.Content), 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path), nil
		},
	})

	r.Register(Tool{
		Spec: llmToolSpec("list_dir",
			"List entries of a directory in the task workspace. Path defaults to the workspace root.",
			objectSchema(map[string]any{
				"path": map[string]any{"type": "string", "description": "relative directory path"},
			})),
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("list_dir: bad arguments: %w", err)
			}
			if in.Path == "" {
				in.Path = "."
			}
			abs, err := resolvePath(workspace, in.Path)
			if err != nil {
				return "", err
			}
			entries, err := os.ReadDir(abs)
			if err != nil {
				return "", err
			}
			var sb strings.Builder
			for _, e := range entries {
				if e.IsDir() {
					sb.WriteString(e.Name() + "/\n")
				} else {
					sb.WriteString(e.Name() + "\n")
				}
			}
			if sb.Len() == 0 {
				return "(empty directory)", nil
			}
			return sb.String(), nil
		},
	})
}
