package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedback struct {
	Target  string         `json:"target"`
	Action  string         `json:"action"`
	Success string         `json:"success"`
	Result  map[string]any `json:"result"`
}

// writeConfig writes a config that keeps everything inside a temp dir.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := `volume:
  root: ` + filepath.Join(dir, "volume") + `
catalog:
  path: ` + filepath.Join(dir, "catalog.db") + `
provider:
  listen: 127.0.0.1:0
picker:
  listen: 127.0.0.1:0
  timeout: 1s
report:
  output: ` + filepath.Join(dir, "out", "report.json") + `
log:
  level: debug
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path, dir
}

func runCLI(t *testing.T, args ...string) (int, feedback, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	var fb feedback
	if stdout.Len() > 0 {
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &fb), stdout.String())
	}
	return code, fb, stderr.String()
}

func TestRun_CreateDirect(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	target := filepath.Join(dir, "f.txt")

	code, fb, logs := runCLI(t, "--config", cfgPath, "--action", "CREATE_FILE", "--api", "direct", "--path", target, "--data", "hello")
	require.Equal(t, exitOK, code, logs)
	assert.Equal(t, "SUCCESS", fb.Success)
	assert.Equal(t, "CREATE_FILE", fb.Action)
	assert.Equal(t, target, fb.Result["edit_path"])

	b, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	saved, err := os.ReadFile(filepath.Join(dir, "out", "report.json"))
	require.NoError(t, err)
	assert.Contains(t, string(saved), `"success": "SUCCESS"`)
}

func TestRun_CatalogRoundTrip(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	const api = "media-store@content-resolver@io-stream"

	code, fb, logs := runCLI(t, "--config", cfgPath, "--action", "create", "--api", api, "--path", "/sdcard/Download/a.txt", "--data", "hi")
	require.Equal(t, exitOK, code, logs)
	require.Equal(t, "SUCCESS", fb.Success, logs)
	assert.Equal(t, "/storage/emulated/0/Download/a.txt", fb.Result["edit_path"])
	assert.FileExists(t, filepath.Join(dir, "volume", "Download", "a.txt"))

	// a second process finds the item in the catalog
	code, fb, logs = runCLI(t, "--config", cfgPath, "--action", "READ_FILE", "--api", api, "--path", "/sdcard/Download/a.txt")
	require.Equal(t, exitOK, code, logs)
	assert.Equal(t, "SUCCESS", fb.Success)
	assert.Equal(t, "hi", fb.Result["content"])
}

func TestRun_Errors(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	tests := []struct {
		name    string
		args    []string
		code    int
		success string
	}{
		{"unknown backend", []string{"--action", "READ_FILE", "--api", "ftp", "--path", "/tmp/x"}, exitUsage, `EXCEPTION: unknown path backend "ftp"`},
		{"unknown action", []string{"--action", "COPY_FILE", "--api", "direct", "--path", "/tmp/x"}, exitUsage, `EXCEPTION: unknown action: "COPY_FILE"`},
		{"validation", []string{"--action", "MOVE_FILE", "--api", "direct", "--path", "/tmp/x", "--move-to", "/tmp/y"}, exitOK, "EXCEPTION: please use directory path as move_to: /tmp/y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, fb, logs := runCLI(t, append([]string{"--config", cfgPath}, tt.args...)...)
			assert.Equal(t, tt.code, code, logs)
			assert.Equal(t, tt.success, fb.Success)
			assert.Empty(t, fb.Result)
		})
	}
}

func TestRun_MissingFlags(t *testing.T) {
	code, fb, logs := runCLI(t, "--action", "READ_FILE")
	assert.Equal(t, exitUsage, code)
	assert.Empty(t, fb.Success)
	assert.Contains(t, logs, "required")
}
