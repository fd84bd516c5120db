package e2e

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	stdout, stderr, err := runDND(t, binaryPath, home, nil, "config", "init")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, filepath.Join(home, ".dnd", "config.toml"))

	imagePath := writeFile(t, home, "map.png", "map")
	_, stderr, err = runDND(t, binaryPath, home, nil, "image", "put", "--zone", "z1", "--index", "0", "--file", imagePath)
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err = runDND(t, binaryPath, home, nil, "image", "list", "--zone", "z1")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "map.png")

	stdout, stderr, err = runDND(t, binaryPath, home, nil, "outbox", "list")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Outbox is empty.")
}

func TestOfflineCampaignSurvivesRestart(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"accessToken":%q,"refreshToken":"r-1","user":{"id":"u-1","username":"bruenor"}}`, accessToken())
	}))
	defer backend.Close()

	online := []string{"DND_BACKEND_URL=" + backend.URL}
	_, stderr, err := runDND(t, binaryPath, home, online, "login", "--user", "bruenor", "--password", "mithril", "--no-sync")
	require.NoError(t, err, "stderr: %s", stderr)

	unreachable := httptest.NewServer(http.NotFoundHandler())
	offline := []string{"DND_BACKEND_URL=" + unreachable.URL}
	unreachable.Close()

	payload := writeFile(t, home, "campaign.json", `{"name":"Icewind Dale"}`)
	stdout, stderr, err := runDND(t, binaryPath, home, offline, "campaign", "create", "--data", payload)
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "queued as #1")

	stdout, stderr, err = runDND(t, binaryPath, home, offline, "outbox", "list", "--json")
	require.NoError(t, err, "stderr: %s", stderr)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "createCampaign", entries[0]["type"])
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "dnd-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/dnd")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build dnd binary: %s", string(output))
	return binaryPath
}

func runDND(t *testing.T, binaryPath, home string, env []string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home, "DND_CREDENTIALS_BACKEND=file")
	cmd.Env = append(cmd.Env, env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// accessToken is an unsigned JWT that expires in 2100.
func accessToken() string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(`{"userId":"u-1","exp":4102444800}`)) + "."
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
