package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"agriadvisor/internal/domain"
	"agriadvisor/internal/ports"
)

type fakeTokens struct {
	mu          sync.Mutex
	token       string
	invalidated int
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.invalidated++
}

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens TokenSource) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL}, tokens)
	require.NoError(t, err)
	return client
}

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{BaseURL: "ftp://example.com"}, nil)
	require.Error(t, err)

	client, err := NewClient(Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, client.base.String())
}

func TestSendMessageRequestAndResponse(t *testing.T) {
	t.Parallel()

	tokens := &fakeTokens{token: "tok"}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/messages/", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "When should I plant wheat?", body["prompt"])
		require.Nil(t, body["chat_id"])
		require.Equal(t, "text", body["input_type"])
		require.Equal(t, "hi", body["input_language"])

		_, _ = io.WriteString(w, `{"id":"c1","title":"Wheat","messages":[{"prompt_text":"When should I plant wheat?","response_text":"In November."}]}`)
	}, tokens)

	chat, err := client.SendMessage(context.Background(), ports.SendMessageRequest{
		Prompt:    "When should I plant wheat?",
		InputType: domain.InputTypeText,
		Language:  "hi",
	})
	require.NoError(t, err)
	require.Equal(t, domain.ChatSession{
		ID:    "c1",
		Title: "Wheat",
		Turns: []domain.Turn{{Prompt: "When should I plant wheat?", Response: "In November."}},
	}, chat)
}

func TestSendMessageCarriesChatID(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "c9", body["chat_id"])
		require.Equal(t, "voice", body["input_type"])
		_, _ = io.WriteString(w, `{"id":"c9","title":"t","messages":[]}`)
	}, &fakeTokens{token: "tok"})

	_, err := client.SendMessage(context.Background(), ports.SendMessageRequest{
		Prompt: "p", ChatID: "c9", InputType: domain.InputTypeVoice, Language: "en",
	})
	require.NoError(t, err)
}

func TestUnauthorizedInvalidatesTokens(t *testing.T) {
	t.Parallel()

	tokens := &fakeTokens{token: "expired"}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Given token not valid for any token type"}`)
	}, tokens)

	_, err := client.ListChats(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, 1, tokens.invalidated)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Given token not valid for any token type", apiErr.Detail)

	_, err = client.ListChats(context.Background())
	require.ErrorIs(t, err, ErrNotSignedIn)
}

func TestUnauthorizedForReplacedTokenKeepsNewSession(t *testing.T) {
	t.Parallel()

	tokens := &fakeTokens{token: "user-a"}
	var sent string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		sent = r.Header.Get("Authorization")
		// user-a signs out and user-b signs in before this reply lands.
		tokens.mu.Lock()
		tokens.token = "user-b"
		tokens.mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
	}, tokens)

	_, err := client.ListChats(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, "Bearer user-a", sent)
	require.Equal(t, 0, tokens.invalidated)
	require.Equal(t, "user-b", tokens.AccessToken())
}

func TestLoginFailureDoesNotInvalidate(t *testing.T) {
	t.Parallel()

	tokens := &fakeTokens{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"No active account found with the given credentials"}`)
	}, tokens)

	_, err := client.Login(context.Background(), "a@b.c", "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, 0, tokens.invalidated)
}

func TestListAndGetChats(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chats/":
			_, _ = io.WriteString(w, `[{"id":"b","title":"Soil"},{"id":3,"title":"Rain"}]`)
		case "/api/chats/b/":
			_, _ = io.WriteString(w, `{"id":"b","title":"Soil","messages":[{"prompt_text":"p1","response_text":"r1"},{"prompt_text":"p2","response_text":null}]}`)
		default:
			http.NotFound(w, r)
		}
	}, &fakeTokens{token: "tok"})

	summaries, err := client.ListChats(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.SessionSummary{{ID: "b", Title: "Soil"}, {ID: "3", Title: "Rain"}}, summaries)

	chat, err := client.GetChat(context.Background(), "b")
	require.NoError(t, err)
	require.Equal(t, []domain.Turn{{Prompt: "p1", Response: "r1"}, {Prompt: "p2"}}, chat.Turns)

	_, err = client.GetChat(context.Background(), " ")
	require.Error(t, err)
}

func TestDeleteChat(t *testing.T) {
	t.Parallel()

	var method, path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}, &fakeTokens{token: "tok"})

	require.NoError(t, client.DeleteChat(context.Background(), "c1"))
	require.Equal(t, http.MethodDelete, method)
	require.Equal(t, "/api/chats/c1/", path)
}

func TestTranscribeMultipart(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "hi-IN", r.FormValue("language"))
		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "RIFFdata", string(data))
		require.Equal(t, "recording.wav", header.Filename)
		_, _ = io.WriteString(w, `{"transcribedText":" गेहूं कब बोएं "}`)
	}, nil)

	text, err := client.Transcribe(context.Background(), ports.AudioPayload{Data: []byte("RIFFdata"), ContentType: "audio/wav"}, "hi-IN")
	require.NoError(t, err)
	require.Equal(t, "गेहूं कब बोएं", text)

	_, err = client.Transcribe(context.Background(), ports.AudioPayload{}, "en-US")
	require.Error(t, err)
}

func TestGoogleLoginNewUserTicket(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["token"] == "new" {
			_, _ = io.WriteString(w, `{"is_new_user":true,"user_data":{"google_temp_token":"tmp","email":"k@farm.in","name":"Kiran"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"access":"a","refresh":"r","user":{"id":1,"email":"k@farm.in"}}`)
	}, nil)

	result, err := client.LoginGoogle(context.Background(), "new")
	require.NoError(t, err)
	require.NotNil(t, result.Ticket)
	require.Equal(t, "tmp", result.Ticket.TempToken)

	result, err = client.LoginGoogle(context.Background(), "existing")
	require.NoError(t, err)
	require.Nil(t, result.Ticket)
	require.Equal(t, "a", result.Session.AccessToken)
	require.Equal(t, int64(1), result.Session.User.ID)
}

func TestRefreshAndProfileLanguage(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login/refresh/":
			_, _ = io.WriteString(w, `{"access":"fresh"}`)
		case "/api/profile/language/":
			require.Equal(t, http.MethodPatch, r.Method)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "mr", body["preferred_language"])
			w.WriteHeader(http.StatusOK)
		}
	}, &fakeTokens{token: "tok"})

	access, err := client.Refresh(context.Background(), "r")
	require.NoError(t, err)
	require.Equal(t, "fresh", access)
	require.NoError(t, client.UpdateLanguage(context.Background(), "mr"))
}

func TestParseErrorDetail(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", parseErrorDetail(nil))
	require.Equal(t, "bad", parseErrorDetail([]byte(`{"error":"bad"}`)))
	require.Equal(t, "email: taken; username: too short required",
		parseErrorDetail([]byte(`{"username":["too short","required"],"email":["taken"]}`)))
	require.Equal(t, "<html>oops</html>", parseErrorDetail([]byte(`<html>oops</html>`)))
}
