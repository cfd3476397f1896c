package domain

// RecordingState models the voice input lifecycle.
type RecordingState string

const (
	RecordingStateIdle         RecordingState = "idle"
	RecordingStateRecording    RecordingState = "recording"
	RecordingStateTranscribing RecordingState = "transcribing"
)

// RecordingReason provides a structured reason for recording state transitions.
type RecordingReason string

const (
	RecordingReasonMicCold            RecordingReason = "mic_cold"
	RecordingReasonStarted            RecordingReason = "recording_started"
	RecordingReasonPermissionDenied   RecordingReason = "permission_denied"
	RecordingReasonTranscribing       RecordingReason = "transcribing"
	RecordingReasonTranscribed        RecordingReason = "transcribed"
	RecordingReasonTranscriptFallback RecordingReason = "transcript_fallback"
	RecordingReasonDiscarded          RecordingReason = "recording_discarded"
	RecordingReasonCeilingReached     RecordingReason = "ceiling_reached"
	RecordingReasonCaptureFailed      RecordingReason = "capture_failed"
)

// ErrorCode identifies the user-visible error classes.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodePermission    ErrorCode = "permission"
	ErrorCodeNetwork       ErrorCode = "network"
	ErrorCodeValidation    ErrorCode = "validation"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeAudioStop     ErrorCode = "audio_stop"
	ErrorCodeAudioStream   ErrorCode = "audio_stream"
	ErrorCodeClipboard     ErrorCode = "clipboard"
	ErrorCodeRules         ErrorCode = "rules"
)

// InputType tells the backend how a prompt was produced.
type InputType string

const (
	InputTypeText  InputType = "text"
	InputTypeVoice InputType = "voice"
)

// Turn is one prompt/response pair. Pending marks a turn appended locally
// while the backend has not answered yet.
type Turn struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
	Pending  bool   `json:"pending"`
}

// SessionSummary is the sidebar entry for a persisted chat.
type SessionSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ChatSession is a persisted, named conversation.
type ChatSession struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Turns []Turn `json:"turns"`
}

// ChatSnapshot is a copy of the active conversation state.
type ChatSnapshot struct {
	SessionID string `json:"sessionId,omitempty"`
	Title     string `json:"title,omitempty"`
	Turns     []Turn `json:"turns"`
	Active    bool   `json:"active"`
	Busy      bool   `json:"busy"`
	Input     string `json:"input"`
}

// UserProfile is the subset of the backend user record the client keeps.
type UserProfile struct {
	ID                int64  `json:"id,omitempty"`
	Username          string `json:"username,omitempty"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredLanguage string `json:"preferred_language,omitempty"`
}

// AuthSession holds the persisted credentials of a signed-in user.
type AuthSession struct {
	AccessToken  string      `json:"access"`
	RefreshToken string      `json:"refresh"`
	User         UserProfile `json:"user"`
}

// Valid reports whether the session carries an access token.
func (s AuthSession) Valid() bool {
	return s.AccessToken != ""
}

// GoogleSignupTicket is returned for a first-time Google sign-in and must be
// completed with a language preference.
type GoogleSignupTicket struct {
	TempToken string `json:"google_temp_token"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
}

// AuthState is the top-level auth state.
type AuthState string

const (
	AuthStateLoggedOut AuthState = "logged_out"
	AuthStateLoggedIn  AuthState = "logged_in"
)

// AuthView is the logged-out sub-flow currently shown.
type AuthView string

const (
	AuthViewLogin                  AuthView = "login"
	AuthViewSignup                 AuthView = "signup"
	AuthViewGoogleSignupCompletion AuthView = "google_signup_completion"
)

// AuthStatus summarizes the auth controller state.
type AuthStatus struct {
	State  AuthState           `json:"state"`
	View   AuthView            `json:"view,omitempty"`
	User   *UserProfile        `json:"user,omitempty"`
	Ticket *GoogleSignupTicket `json:"ticket,omitempty"`
}

// Transcript is the outcome of a transcription. Fallback is set when Text is
// the localized "could not understand" string rather than recognized speech.
type Transcript struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Fallback bool   `json:"fallback"`
}

// RecordingStatus summarizes the current recording state.
type RecordingStatus struct {
	State   RecordingState `json:"state"`
	ID      string         `json:"id,omitempty"`
	Active  bool           `json:"active"`
	Message string         `json:"message,omitempty"`
}

// InputLocked reports whether the text input must be disabled.
func (s RecordingStatus) InputLocked() bool {
	return s.State == RecordingStateRecording || s.State == RecordingStateTranscribing
}
