package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestVersionSkipsWiring(t *testing.T) {
	home := t.TempDir()
	t.Setenv("DND_CREDENTIALS_BACKEND", "keychain")

	stdout, _, err := executeCLI(t, home, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestConfigInitThenShow(t *testing.T) {
	home := t.TempDir()
	configPath := filepath.Join(home, "custom.toml")

	stdout, _, err := executeCLI(t, home, "", "--config", configPath, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+configPath)

	_, _, err = executeCLI(t, home, "", "--config", configPath, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file already exists")

	stdout, _, err = executeCLI(t, home, "", "--config", configPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# source: "+configPath)
	assert.Contains(t, stdout, "[backend]")
	assert.Contains(t, stdout, "[session]")
}

func TestCreateRequiresLogin(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	useBackend(t, backend.URL)

	payload := writeFile(t, home, "campaign.json", `{"name":"Curse of Strahd"}`)
	_, _, err := executeCLI(t, home, "", "campaign", "create", "--data", payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestLoginWhoamiLogout(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	useBackend(t, backend.URL)

	stdout, _, err := executeCLI(t, home, "hunter2\n", "login", "--user", "gandalf", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Logged in as gandalf")

	stdout, _, err = executeCLI(t, home, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, stdout, "gandalf <gandalf@example.com>")
	assert.Contains(t, stdout, "user id: user-1")

	stdout, _, err = executeCLI(t, home, "", "whoami", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, `"userId": "user-1"`)

	stdout, _, err = executeCLI(t, home, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Logged out")
	assert.Equal(t, 1, backend.count("POST /api/users/logout"))

	_, _, err = executeCLI(t, home, "", "whoami")
	require.ErrorIs(t, err, errNotLoggedIn)
}

func TestLoginRequiresPassword(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	useBackend(t, backend.URL)

	_, _, err := executeCLI(t, home, "", "login", "--user", "gandalf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is required")
	assert.Zero(t, backend.count("POST /api/auth/login"))
}

func TestCampaignCreateOnline(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	useBackend(t, backend.URL)
	login(t, home)

	payload := writeFile(t, home, "campaign.json", `{"name":"Curse of Strahd"}`)
	mapFile := writeFile(t, home, "barovia.png", "png-bytes")

	stdout, _, err := executeCLI(t, home, "", "campaign", "create", "--data", payload, "--file", mapFile)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created campaign")
	assert.Contains(t, stdout, `"id": "campaign-1"`)
	assert.Equal(t, 1, backend.count("POST /api/campaigns"))

	upload := backend.lastUpload()
	assert.JSONEq(t, `{"name":"Curse of Strahd"}`, upload.data)
	assert.Equal(t, []string{"barovia.png"}, upload.files)
	assert.Empty(t, upload.idempotencyKey)
}

func TestOfflineCreationIsQueuedAndSynced(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	useBackend(t, backend.URL)
	login(t, home)

	offline := httptest.NewServer(http.NotFoundHandler())
	offlineURL := offline.URL
	offline.Close()

	payload := writeFile(t, home, "character.json", `{"name":"Wulfgar"}`)
	portrait := writeFile(t, home, "wulfgar.jpg", "jpg-bytes")

	t.Setenv("DND_BACKEND_URL", offlineURL)
	stdout, _, err := executeCLI(t, home, "", "character", "create", "--data", payload, "--file", portrait)
	require.NoError(t, err)
	assert.Contains(t, stdout, "character queued as #1")

	stdout, _, err = executeCLI(t, home, "", "outbox", "list", "--files")
	require.NoError(t, err)
	assert.Contains(t, stdout, "queued: 1")
	assert.Contains(t, stdout, "#1 character")
	assert.Contains(t, stdout, "wulfgar.jpg")

	stdout, _, err = executeCLI(t, home, "", "outbox", "list", "--yaml")
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "createCharacter", entries[0]["type"])
	idempotencyKey, _ := entries[0]["idempotency_key"].(string)
	require.NotEmpty(t, idempotencyKey)

	t.Setenv("DND_BACKEND_URL", backend.URL)
	stdout, _, err = executeCLI(t, home, "", "sync")
	require.NoError(t, err)
	assert.Contains(t, stdout, "replayed: 1")
	assert.Contains(t, stdout, "remaining: 0")

	upload := backend.lastUpload()
	assert.JSONEq(t, `{"name":"Wulfgar"}`, upload.data)
	assert.Equal(t, []string{"wulfgar.jpg"}, upload.files)
	assert.Equal(t, idempotencyKey, upload.idempotencyKey)

	stdout, _, err = executeCLI(t, home, "", "outbox", "list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, stdout)

	stdout, _, err = executeCLI(t, home, "", "character", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "character-1")
	assert.Contains(t, stdout, "Wulfgar")

	stdout, _, err = executeCLI(t, home, "", "character", "show", "--id", "character-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"name": "Wulfgar"`)
}

func TestOutboxRemove(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	useBackend(t, backend.URL)
	login(t, home)

	offline := httptest.NewServer(http.NotFoundHandler())
	t.Setenv("DND_BACKEND_URL", offline.URL)
	offline.Close()

	payload := writeFile(t, home, "campaign.json", `{"name":"Tomb of Annihilation"}`)
	_, _, err := executeCLI(t, home, "", "campaign", "create", "--data", payload)
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "", "outbox", "remove", "--id", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed #1")

	stdout, _, err = executeCLI(t, home, "", "outbox", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Outbox is empty.")
}

func TestImagePutGetRemove(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	useBackend(t, backend.URL)

	image := writeFile(t, home, "tavern.png", "tavern-image")

	stdout, _, err := executeCLI(t, home, "", "image", "put", "--zone", "zone-a", "--index", "2", "--file", image)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Stored tavern.png as zone-a_2")

	stdout, _, err = executeCLI(t, home, "", "image", "list", "--zone", "zone-a")
	require.NoError(t, err)
	assert.Contains(t, stdout, "tavern.png")
	assert.Contains(t, stdout, "image/png")

	outPath := filepath.Join(home, "copy.png")
	_, _, err = executeCLI(t, home, "", "image", "get", "--zone", "zone-a", "--index", "2", "--out", outPath)
	require.NoError(t, err)
	content, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "tavern-image", string(content))

	_, _, err = executeCLI(t, home, "", "image", "rm", "--zone", "zone-a", "--index", "2")
	require.NoError(t, err)

	_, _, err = executeCLI(t, home, "", "image", "get", "--zone", "zone-a", "--index", "2", "--out", outPath)
	require.Error(t, err)
}

func TestSessionJoinSendsChatAndLeaves(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t)
	useBackend(t, backend.URL)
	login(t, home)

	socket := newFakeSocket(t)
	t.Setenv("DND_BACKEND_SOCKET_URL", socket.url())

	stdout, _, err := executeCLI(t, home, "roll for initiative\n/quit\n", "session", "join", "--session", "session-9")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Joined session session-9")

	require.Eventually(t, func() bool {
		return len(socket.received("player-leave")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	auth := socket.received("authenticate")
	require.Len(t, auth, 1)
	assert.JSONEq(t, `{"token":"`+accessToken()+`","userId":"user-1","gameSessionId":"session-9"}`, auth[0])
	assert.Len(t, socket.received("player-join"), 1)
	chat := socket.received("chat-message")
	require.Len(t, chat, 1)
	assert.JSONEq(t, `{"messageContent":"roll for initiative"}`, chat[0])
}

func TestUnknownCommand(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "", "dungeon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command \"dungeon\"")
}

func executeCLI(t *testing.T, home string, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root, app := newRootCmd()
	defer app.Close()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func useBackend(t *testing.T, url string) {
	t.Helper()
	t.Setenv("DND_BACKEND_URL", url)
	t.Setenv("DND_CREDENTIALS_BACKEND", "file")
}

func login(t *testing.T, home string) {
	t.Helper()
	_, _, err := executeCLI(t, home, "", "login", "--user", "gandalf", "--password", "hunter2")
	require.NoError(t, err)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func fakeJWT(payload string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return header + "." + body + "."
}

// accessToken expires in 2100.
func accessToken() string {
	return fakeJWT(`{"userId":"user-1","exp":4102444800}`)
}

type upload struct {
	data           string
	files          []string
	idempotencyKey string
}

type fakeBackend struct {
	*httptest.Server

	mu      sync.Mutex
	calls   map[string]int
	uploads []upload
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	token := accessToken()
	backend := &fakeBackend{calls: make(map[string]int)}
	backend.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backend.record(r.Method + " " + r.URL.Path)

		switch r.URL.Path {
		case "/api/auth/login":
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"accessToken":%q,"refreshToken":"refresh-1","user":{"id":"user-1","username":"gandalf","email":"gandalf@example.com"}}`, token)
		case "/api/users/logout":
			w.WriteHeader(http.StatusNoContent)
		case "/api/campaigns", "/api/characters":
			if r.Header.Get("Authorization") != "Bearer "+token {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if err := backend.recordUpload(r); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			if r.URL.Path == "/api/campaigns" {
				_, _ = io.WriteString(w, `{"id":"campaign-1"}`)
				return
			}
			_, _ = io.WriteString(w, `{"id":"character-1","name":"Wulfgar"}`)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(backend.Close)
	return backend
}

func (b *fakeBackend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[call]++
}

func (b *fakeBackend) count(call string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[call]
}

func (b *fakeBackend) recordUpload(r *http.Request) error {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return err
	}

	received := upload{
		data:           r.FormValue("data"),
		idempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	for _, header := range r.MultipartForm.File["files"] {
		received.files = append(received.files, header.Filename)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, received)
	return nil
}

func (b *fakeBackend) lastUpload() upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.uploads) == 0 {
		return upload{}
	}
	return b.uploads[len(b.uploads)-1]
}

type socketFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type fakeSocket struct {
	*httptest.Server

	mu     sync.Mutex
	frames map[string][]string
}

func newFakeSocket(t *testing.T) *fakeSocket {
	t.Helper()

	socket := &fakeSocket{frames: make(map[string][]string)}
	upgrader := websocket.Upgrader{}
	socket.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var frame socketFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			socket.record(frame)
			if frame.Event == "authenticate" {
				_ = conn.WriteJSON(socketFrame{Event: "auth-success", Data: json.RawMessage(`{}`)})
			}
		}
	}))
	t.Cleanup(socket.Close)
	return socket
}

func (s *fakeSocket) url() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *fakeSocket) record(frame socketFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[frame.Event] = append(s.frames[frame.Event], string(frame.Data))
}

func (s *fakeSocket) received(event string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames[event]...)
}
