package ports

import (
	"context"
	"io"

	"agriadvisor/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// AudioPayload is a finished recording ready for transcription.
type AudioPayload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// AudioEncoder packages captured segments, in arrival order, as one payload.
type AudioEncoder interface {
	Encode(segments [][]byte, cfg AudioConfig) AudioPayload
}

// Transcriber turns a recorded payload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, payload AudioPayload, locale string) (string, error)
}

// RulesEngine transforms transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// ChatAPI is the backend conversation surface.
type ChatAPI interface {
	SendMessage(ctx context.Context, req SendMessageRequest) (domain.ChatSession, error)
}

// SendMessageRequest is the body of a message submission.
type SendMessageRequest struct {
	Prompt    string
	ChatID    string
	InputType domain.InputType
	Language  string
}

// HistoryAPI lists, loads and deletes persisted chats.
type HistoryAPI interface {
	ListChats(ctx context.Context) ([]domain.SessionSummary, error)
	GetChat(ctx context.Context, id string) (domain.ChatSession, error)
	DeleteChat(ctx context.Context, id string) error
}

// GoogleLoginResult is either a finished session or a signup ticket.
type GoogleLoginResult struct {
	Session domain.AuthSession
	Ticket  *domain.GoogleSignupTicket
}

// SignupRequest is the body of a credential signup.
type SignupRequest struct {
	Username          string
	Email             string
	Password          string
	PreferredLanguage string
}

// AuthAPI covers the credential and third-party sign-in endpoints.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (domain.AuthSession, error)
	Register(ctx context.Context, req SignupRequest) error
	LoginGoogle(ctx context.Context, providerToken string) (GoogleLoginResult, error)
	CompleteGoogleSignup(ctx context.Context, tempToken, language string) (domain.AuthSession, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// ProfileAPI persists profile preferences.
type ProfileAPI interface {
	UpdateLanguage(ctx context.Context, language string) error
}

// KeyValueStore is durable client-side storage.
type KeyValueStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// Credentials owns the persisted auth session.
type Credentials interface {
	Current() (domain.AuthSession, bool)
	Save(session domain.AuthSession) error
	UpdateAccessToken(access string) error
	Invalidate()
	OnInvalidate(fn func())
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits controller state to the UI.
type EventSink interface {
	RecordingStateChanged(status domain.RecordingStatus, reason domain.RecordingReason)
	TranscriptReady(transcript domain.Transcript)
	ChatChanged(snapshot domain.ChatSnapshot)
	SessionsChanged(summaries []domain.SessionSummary)
	AuthChanged(status domain.AuthStatus)
	LanguageChanged(code string)
	Notify(code domain.ErrorCode, message string)
}
