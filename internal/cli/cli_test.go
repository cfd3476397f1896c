package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"agriadvisor/internal/domain"
	"agriadvisor/internal/i18n"
)

type fakeBackend struct {
	mu        sync.Mutex
	messages  []map[string]any
	languages []string
	deleted   []string
	locales   []string
}

func (b *fakeBackend) authorized(w http.ResponseWriter, r *http.Request) bool {
	switch r.Header.Get("Authorization") {
	case "Bearer acc", "Bearer acc2":
		return true
	}
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"detail":"Given token not valid"}`))
	return false
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login/{$}", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Invalid credentials"}`))
			return
		}
		writeJSON(w, map[string]any{
			"access":  "acc",
			"refresh": "ref",
			"user":    map[string]any{"id": 1, "email": body.Email, "preferred_language": "en"},
		})
	})
	mux.HandleFunc("POST /api/login/refresh/{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"access": "acc2"})
	})
	mux.HandleFunc("GET /api/chats/{$}", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(w, r) {
			return
		}
		chats := []map[string]any{{"id": 5, "title": "Wheat sowing"}, {"id": "6", "title": "Rice"}}
		b.mu.Lock()
		if len(b.messages) > 0 {
			chats = append([]map[string]any{{"id": 9, "title": "New chat"}}, chats...)
		}
		b.mu.Unlock()
		writeJSON(w, chats)
	})
	mux.HandleFunc("GET /api/chats/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"id":    r.PathValue("id"),
			"title": "Wheat sowing",
			"messages": []map[string]any{
				{"prompt_text": "When to sow wheat?", "response_text": "Early November."},
			},
		})
	})
	mux.HandleFunc("DELETE /api/chats/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(w, r) {
			return
		}
		b.mu.Lock()
		b.deleted = append(b.deleted, r.PathValue("id"))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/messages/{$}", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(w, r) {
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.messages = append(b.messages, body)
		b.mu.Unlock()
		prompt, _ := body["prompt"].(string)
		writeJSON(w, map[string]any{
			"id":    9,
			"title": "New chat",
			"messages": []map[string]any{
				{"prompt_text": prompt, "response_text": "Answer: " + prompt},
			},
		})
	})
	mux.HandleFunc("PATCH /api/profile/language/{$}", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(w, r) {
			return
		}
		var body struct {
			PreferredLanguage string `json:"preferred_language"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.languages = append(b.languages, body.PreferredLanguage)
		b.mu.Unlock()
		writeJSON(w, map[string]any{})
	})
	mux.HandleFunc("POST /api/transcribe/{$}", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.locales = append(b.locales, r.FormValue("language"))
		b.mu.Unlock()
		writeJSON(w, map[string]any{"text": "gehu ki buvai"})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// setup points the client at a fake backend inside a private home.
func setup(t *testing.T) (*fakeBackend, string) {
	t.Helper()
	backend := &fakeBackend{}
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("AGRI_ENV_FILE", "")
	t.Setenv("AGRI_API_BASE", server.URL)
	t.Setenv("AGRI_DB_PATH", filepath.Join(home, "client.sqlite"))
	t.Setenv("AGRI_RULES_FILE", "")
	t.Setenv("AGRI_TRANSCRIBER", "")
	t.Setenv("AGRI_LANGUAGE", "")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Chdir(home)
	return backend, home
}

type scriptedPrompter struct {
	lines      []string
	remembered []string
}

func (p *scriptedPrompter) next() (string, error) {
	if len(p.lines) == 0 {
		return "", io.EOF
	}
	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func (p *scriptedPrompter) Prompt(string) (string, error)   { return p.next() }
func (p *scriptedPrompter) Password(string) (string, error) { return p.next() }
func (p *scriptedPrompter) Remember(line string)            { p.remembered = append(p.remembered, line) }
func (p *scriptedPrompter) Close() error                    { return nil }

type result struct {
	out    string
	errOut string
	code   int
}

func runCLI(t *testing.T, p prompter, args ...string) result {
	t.Helper()
	if p == nil {
		p = &scriptedPrompter{}
	}
	var out, errOut bytes.Buffer
	e := &env{
		out:      &out,
		sink:     newTerminalSink(&errOut),
		prompter: p,
		openURL:  func(string) error { return errors.New("no browser in tests") },
	}
	code := run(context.Background(), e, args, &errOut)
	return result{out: out.String(), errOut: errOut.String(), code: code}
}

func login(t *testing.T) {
	t.Helper()
	res := runCLI(t, nil, "login", "--email", "farmer@example.com", "--password", "secret")
	require.Equal(t, 0, res.code, res.errOut)
	require.Contains(t, res.out, "Signed in as farmer@example.com")
}

func TestLoginPersistsAcrossInvocations(t *testing.T) {
	setup(t)
	login(t)

	res := runCLI(t, nil, "chats", "list")
	require.Equal(t, 0, res.code, res.errOut)
	require.Contains(t, res.out, "Wheat sowing")
	require.Contains(t, res.out, "Rice")

	res = runCLI(t, nil, "status")
	require.Contains(t, res.out, "Signed in as farmer@example.com")
}

func TestLoginPromptsForMissingValues(t *testing.T) {
	setup(t)

	res := runCLI(t, &scriptedPrompter{lines: []string{"farmer@example.com", "secret"}}, "login")
	require.Equal(t, 0, res.code, res.errOut)
	require.Contains(t, res.out, "Signed in as farmer@example.com")
}

func TestLoginFailureIsReportedOnce(t *testing.T) {
	setup(t)

	res := runCLI(t, nil, "login", "--email", "farmer@example.com", "--password", "wrong")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.errOut, "Invalid credentials")
	require.NotContains(t, res.errOut, "error:")
}

func TestCommandsRequireSignIn(t *testing.T) {
	setup(t)

	res := runCLI(t, nil, "chats", "list")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.errOut, "not signed in")
}

func TestLogoutForgetsSession(t *testing.T) {
	setup(t)
	login(t)

	res := runCLI(t, nil, "logout")
	require.Equal(t, 0, res.code)

	res = runCLI(t, nil, "ask", "hello")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.errOut, "not signed in")
}

func TestAskPrintsAnswer(t *testing.T) {
	backend, _ := setup(t)
	login(t)

	res := runCLI(t, nil, "ask", "When", "to", "sow", "wheat?")
	require.Equal(t, 0, res.code, res.errOut)
	require.Contains(t, res.out, "Answer: When to sow wheat?")
	require.Contains(t, res.out, "chat 9")

	require.Len(t, backend.messages, 1)
	require.Nil(t, backend.messages[0]["chat_id"])
	require.Equal(t, "text", backend.messages[0]["input_type"])
	require.Equal(t, "en", backend.messages[0]["input_language"])
}

func TestAskContinuesChat(t *testing.T) {
	backend, _ := setup(t)
	login(t)

	res := runCLI(t, nil, "ask", "--chat", "5", "And rice?")
	require.Equal(t, 0, res.code, res.errOut)
	require.Equal(t, "5", backend.messages[0]["chat_id"])
}

func TestChatsShowAndDelete(t *testing.T) {
	backend, _ := setup(t)
	login(t)

	res := runCLI(t, nil, "chats", "show", "5")
	require.Equal(t, 0, res.code, res.errOut)
	require.Contains(t, res.out, "When to sow wheat?")
	require.Contains(t, res.out, "Early November.")

	res = runCLI(t, nil, "chats", "delete", "6")
	require.Equal(t, 0, res.code, res.errOut)
	require.Equal(t, []string{"6"}, backend.deleted)
}

func TestChatREPL(t *testing.T) {
	backend, _ := setup(t)
	login(t)

	p := &scriptedPrompter{lines: []string{
		"/list",
		"/load #1",
		"How much urea?",
		"/key क",
		"/key backspace",
		"/bogus",
		"/lang hi",
		"/quit",
		"never read",
	}}
	res := runCLI(t, p, "chat")
	require.Equal(t, 0, res.code, res.errOut)

	require.Contains(t, res.out, "Wheat sowing")
	require.Contains(t, res.out, "Early November.")
	require.Contains(t, res.out, "Answer: How much urea?")
	require.Contains(t, res.out, "input: क")
	require.Contains(t, res.out, "unknown command /bogus")
	require.Equal(t, []string{"never read"}, p.lines)

	require.Len(t, backend.messages, 1)
	require.Equal(t, "5", backend.messages[0]["chat_id"])
	require.Equal(t, []string{"hi"}, backend.languages)
	require.Contains(t, p.remembered, "How much urea?")
}

func TestChatREPLIndexesTheListingItPrinted(t *testing.T) {
	backend, _ := setup(t)
	login(t)

	p := &scriptedPrompter{lines: []string{
		"/delete #1",
		"/list",
		"Which fertilizer for paddy?",
		"/delete #1",
		"/quit",
	}}
	res := runCLI(t, p, "chat")
	require.Equal(t, 0, res.code, res.errOut)
	require.Contains(t, res.out, "run /list first")
	require.Contains(t, res.out, "Answer: Which fertilizer for paddy?")
	require.Contains(t, res.out, "Deleted chat 5")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Equal(t, []string{"5"}, backend.deleted)
}

func TestChatREPLEndsOnEOF(t *testing.T) {
	setup(t)
	login(t)

	res := runCLI(t, &scriptedPrompter{}, "chat")
	require.Equal(t, 0, res.code, res.errOut)
	require.Contains(t, res.out, i18n.T("en", i18n.KeyWelcome))
}

func TestSignupValidationStaysLocal(t *testing.T) {
	backend, _ := setup(t)

	res := runCLI(t, nil, "signup", "--username", "ramesh", "--email", "not-an-email", "--password", "pw")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.errOut, i18n.T("en", i18n.KeyInvalidEmail))
	require.Empty(t, backend.messages)
}

func TestTranscribeAppliesRules(t *testing.T) {
	backend, home := setup(t)
	rules := filepath.Join(home, "agri.rules")
	require.NoError(t, os.WriteFile(rules, []byte("gehu => wheat\n"), 0o600))
	t.Setenv("AGRI_RULES_FILE", rules)

	recording := filepath.Join(home, "question.wav")
	require.NoError(t, os.WriteFile(recording, []byte("RIFF....WAVE"), 0o600))

	res := runCLI(t, nil, "transcribe", "--language", "hi", recording)
	require.Equal(t, 0, res.code, res.errOut)
	require.Equal(t, "wheat ki buvai", strings.TrimSpace(res.out))
	require.Equal(t, []string{"hi-IN"}, backend.locales)

	res = runCLI(t, nil, "transcribe", "--raw", recording)
	require.Equal(t, "gehu ki buvai", strings.TrimSpace(res.out))
}

func TestKeyboardAndLanguages(t *testing.T) {
	setup(t)

	res := runCLI(t, nil, "keyboard", "hi")
	require.Equal(t, 0, res.code, res.errOut)
	require.Contains(t, res.out, "क")
	require.Contains(t, res.out, "Space")

	res = runCLI(t, nil, "keyboard", "ta")
	require.Contains(t, res.out, "No dedicated layout")

	res = runCLI(t, nil, "lang")
	require.Contains(t, res.out, "hi-IN")

	res = runCLI(t, nil, "lang", "mr")
	require.Equal(t, 0, res.code, res.errOut)
	require.Contains(t, res.out, "Language set to mr")

	res = runCLI(t, nil, "lang", "xx")
	require.Equal(t, 1, res.code)
}

func TestGoogleLoginNotConfigured(t *testing.T) {
	setup(t)

	res := runCLI(t, nil, "login-google")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.errOut, "not configured")
}

func TestREPLReadsPipedInput(t *testing.T) {
	setup(t)
	login(t)

	var prompts bytes.Buffer
	p := newReaderPrompter(strings.NewReader("/list\nHow deep should I sow?"), &prompts)
	res := runCLI(t, p, "chat")
	require.Equal(t, 0, res.code, res.errOut)
	require.Contains(t, res.out, "Wheat sowing")
	require.Contains(t, res.out, "Answer: How deep should I sow?")
	require.Equal(t, "en> en> en> ", prompts.String())
}

type upperRenderer struct{}

func (upperRenderer) Render(in string) (string, error) {
	return "\n" + strings.ToUpper(in) + "\n\n", nil
}

type failingRenderer struct{}

func (failingRenderer) Render(string) (string, error) {
	return "", errors.New("bad markdown")
}

func TestRenderTurnFormatsResponses(t *testing.T) {
	turn := domain.Turn{Prompt: "q", Response: "**use** dap"}

	out := renderTurn(turn, "en", upperRenderer{})
	require.True(t, strings.HasSuffix(out, "**USE** DAP"), out)

	out = renderTurn(turn, "en", failingRenderer{})
	require.Contains(t, out, "**use** dap")

	out = renderTurn(domain.Turn{Prompt: "q", Pending: true}, "en", upperRenderer{})
	require.Contains(t, out, i18n.T("en", i18n.KeyThinking))
}
