package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"agriadvisor/internal/bootstrap"
	"agriadvisor/internal/domain"
	"agriadvisor/internal/i18n"
	"agriadvisor/internal/ports"
	"agriadvisor/internal/shell"
	"agriadvisor/internal/usecase"
)

const (
	eventRecording  = "agri:recording"
	eventTranscript = "agri:transcript"
	eventChat       = "agri:chat"
	eventSessions   = "agri:sessions"
	eventAuth       = "agri:auth"
	eventLanguage   = "agri:language"
	eventError      = "agri:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services  *bootstrap.Services
	clipboard ports.Clipboard
	bootErr   error
}

func NewApp() *App {
	return &App{clipboard: &wailsClipboard{}}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, func(url string) error {
		runtime.BrowserOpenURL(ctx, url)
		return nil
	})
	if err != nil {
		a.bootErr = err
		a.Notify(domain.ErrorCodeStartup, err.Error())
		return
	}
	a.services = &services

	if err := services.Rules.Watch(ctx, func(err error) {
		a.Notify(domain.ErrorCodeRules, err.Error())
	}); err != nil {
		services.Logger.Warn("rules hot reload disabled", "error", err)
	}
	if err := services.Auth.Restore(ctx); err != nil {
		services.Logger.Warn("restore session", "error", err)
	}
	if services.Auth.Status().State == domain.AuthStateLoggedIn {
		services.History.RefreshAsync()
	}
	a.LanguageChanged(services.Language.Current())
	a.RecordingStateChanged(services.Recording.Status(), domain.RecordingReasonMicCold)
}

func (a *App) shutdown(_ context.Context) {
	if a.services == nil {
		return
	}
	if err := a.services.Close(); err != nil {
		a.services.Logger.Warn("shutdown", "error", err)
	}
}

// AppState is everything the frontend needs to render from scratch.
type AppState struct {
	Auth      domain.AuthStatus       `json:"auth"`
	Chat      domain.ChatSnapshot     `json:"chat"`
	Sessions  []domain.SessionSummary `json:"sessions"`
	Recording domain.RecordingStatus  `json:"recording"`
	Shell     shell.State             `json:"shell"`
}

// GetState returns the current client state.
func (a *App) GetState() (AppState, error) {
	if err := a.requireReady(); err != nil {
		return AppState{}, err
	}
	s := a.services
	return AppState{
		Auth:      s.Auth.Status(),
		Chat:      s.Chat.Snapshot(),
		Sessions:  s.History.Sessions(),
		Recording: s.Recording.Status(),
		Shell:     s.Shell.State(),
	}, nil
}

// GetRecordingStatus returns the current recording status.
func (a *App) GetRecordingStatus() domain.RecordingStatus {
	if a.services == nil {
		if a.bootErr != nil {
			return domain.RecordingStatus{State: domain.RecordingStateIdle, Message: a.bootErr.Error()}
		}
		return domain.RecordingStatus{State: domain.RecordingStateIdle}
	}
	return a.services.Recording.Status()
}

// Login signs in with email and password.
func (a *App) Login(email, password string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Auth.Login(a.ctx, email, password); err != nil {
		return err
	}
	a.services.History.RefreshAsync()
	return nil
}

// Signup registers a new account and signs in.
func (a *App) Signup(form usecase.SignupForm) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Auth.Signup(a.ctx, form); err != nil {
		return err
	}
	a.services.History.RefreshAsync()
	return nil
}

// GoogleLogin runs the Google consent flow in the system browser.
func (a *App) GoogleLogin() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.SignInWithGoogle(a.ctx); err != nil {
		a.Notify(domain.ErrorCodeNetwork, err.Error())
		return err
	}
	if a.services.Auth.Status().State == domain.AuthStateLoggedIn {
		a.services.History.RefreshAsync()
	}
	return nil
}

// CompleteGoogleSignup finishes a first-time Google sign-in.
func (a *App) CompleteGoogleSignup(language string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Auth.CompleteGoogleSignup(a.ctx, language); err != nil {
		return err
	}
	a.services.History.RefreshAsync()
	return nil
}

func (a *App) ShowLogin() {
	if a.services != nil {
		a.services.Auth.ShowLogin()
	}
}

func (a *App) ShowSignup() {
	if a.services != nil {
		a.services.Auth.ShowSignup()
	}
}

// Logout clears credentials and every piece of user state.
func (a *App) Logout() {
	if a.services != nil {
		a.services.Auth.Logout()
	}
}

// SetInput replaces the chat input with physically typed text.
func (a *App) SetInput(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Shell.Type(text)
}

// Submit sends the current input.
func (a *App) Submit() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Shell.Submit(a.ctx)
}

// PressKey applies a virtual keyboard key.
func (a *App) PressKey(key string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Shell.PressKey(a.ctx, key)
}

// StartRecording opens the microphone.
func (a *App) StartRecording() (domain.RecordingStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.RecordingStatus{}, err
	}
	if err := a.services.Recording.Start(a.ctx); err != nil {
		return a.services.Recording.Status(), err
	}
	return a.services.Recording.Status(), nil
}

// StopRecording releases the microphone and transcribes what was captured.
func (a *App) StopRecording() (domain.Transcript, error) {
	if err := a.requireReady(); err != nil {
		return domain.Transcript{}, err
	}
	transcript, err := a.services.Recording.Stop(a.ctx)
	if errors.Is(err, usecase.ErrNoActiveRecording) || errors.Is(err, usecase.ErrRecordingDiscarded) {
		return domain.Transcript{}, nil
	}
	return transcript, err
}

// AbortRecording discards an in-progress recording.
func (a *App) AbortRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Recording.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveRecording) {
		return err
	}
	return nil
}

// ListSessions reloads the sidebar.
func (a *App) ListSessions() ([]domain.SessionSummary, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.History.List(a.ctx)
}

// LoadSession makes a stored chat the active conversation.
func (a *App) LoadSession(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.History.Load(a.ctx, id)
}

// DeleteSession removes a stored chat.
func (a *App) DeleteSession(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.History.Delete(a.ctx, id)
}

// NewChat returns to the landing view.
func (a *App) NewChat() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.History.New()
	return nil
}

// TogglePanel opens or closes an auxiliary panel.
func (a *App) TogglePanel(panel string) (shell.State, error) {
	if err := a.requireReady(); err != nil {
		return shell.State{}, err
	}
	return a.services.Shell.Toggle(shell.Panel(panel)), nil
}

// ClosePanel closes an auxiliary panel.
func (a *App) ClosePanel(panel string) (shell.State, error) {
	if err := a.requireReady(); err != nil {
		return shell.State{}, err
	}
	return a.services.Shell.Close(shell.Panel(panel)), nil
}

// SetLanguage applies a language from the picker.
func (a *App) SetLanguage(code string) (shell.State, error) {
	if err := a.requireReady(); err != nil {
		return shell.State{}, err
	}
	return a.services.Shell.ChooseLanguage(code)
}

// Languages lists the selectable languages.
func (a *App) Languages() []i18n.Language {
	return i18n.Languages()
}

// Strings returns the UI strings for the current language.
func (a *App) Strings() map[i18n.Key]string {
	code := i18n.DefaultLanguage
	if a.services != nil {
		code = a.services.Language.Current()
	}
	return i18n.Strings(code)
}

// CopyResponse puts the response of turn index on the clipboard.
func (a *App) CopyResponse(index int) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	turns := a.services.Chat.Snapshot().Turns
	if index < 0 || index >= len(turns) || turns[index].Pending {
		return fmt.Errorf("no response at turn %d", index)
	}
	if err := a.clipboard.SetText(a.ctx, turns[index].Response); err != nil {
		a.Notify(domain.ErrorCodeClipboard, err.Error())
		return err
	}
	return nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.services == nil {
		return map[string]string{}
	}
	cfg := a.services.Config
	return map[string]string{
		"apiBase":          cfg.API.BaseURL,
		"transcriber":      cfg.Transcriber.Kind,
		"rulesFile":        cfg.Rules.Path,
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
		"googleSignIn":     fmt.Sprint(cfg.GoogleEnabled()),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// RecordingStateChanged emits recording lifecycle updates to the frontend.
func (a *App) RecordingStateChanged(status domain.RecordingStatus, reason domain.RecordingReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventRecording, map[string]any{
		"state":       string(status.State),
		"id":          status.ID,
		"inputLocked": status.InputLocked(),
		"reason":      string(reason),
		"message":     recordingReasonMessage(reason),
	})
}

// TranscriptReady emits a finished transcription.
func (a *App) TranscriptReady(transcript domain.Transcript) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTranscript, transcript)
}

func (a *App) ChatChanged(snapshot domain.ChatSnapshot) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventChat, snapshot)
}

func (a *App) SessionsChanged(summaries []domain.SessionSummary) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSessions, summaries)
}

func (a *App) AuthChanged(status domain.AuthStatus) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventAuth, status)
}

// LanguageChanged sends the new code together with its string table so the
// frontend can re-render without a round trip.
func (a *App) LanguageChanged(code string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventLanguage, map[string]any{
		"code":    code,
		"strings": i18n.Strings(code),
	})
}

// Notify emits user-visible errors to the UI.
func (a *App) Notify(code domain.ErrorCode, message string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"title":   errorTitle(code),
		"message": message,
	})
}

func recordingReasonMessage(reason domain.RecordingReason) string {
	switch reason {
	case domain.RecordingReasonMicCold:
		return "Mic cold"
	case domain.RecordingReasonStarted:
		return "Recording started"
	case domain.RecordingReasonPermissionDenied:
		return "Microphone access denied"
	case domain.RecordingReasonTranscribing:
		return "Recording stopped. Transcribing..."
	case domain.RecordingReasonTranscribed:
		return "Transcript ready"
	case domain.RecordingReasonTranscriptFallback:
		return "Could not transcribe the recording"
	case domain.RecordingReasonDiscarded:
		return "Recording discarded"
	case domain.RecordingReasonCeilingReached:
		return "Maximum recording length reached. Transcribing..."
	case domain.RecordingReasonCaptureFailed:
		return "Recording failed"
	default:
		return ""
	}
}

func errorTitle(code domain.ErrorCode) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermission:
		return "Microphone unavailable"
	case domain.ErrorCodeNetwork:
		return "Connection problem"
	case domain.ErrorCodeValidation:
		return "Check your input"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	case domain.ErrorCodeRules:
		return "Rules processing failed"
	default:
		return "Error"
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
