// Package shell holds the composition state of the client: which view is
// shown, which auxiliary panels are open, and how virtual key presses reach
// the chat input.
package shell

import (
	"context"
	"errors"
	"sync"

	"agriadvisor/internal/domain"
	"agriadvisor/internal/i18n"
	"agriadvisor/internal/keyboard"
)

// ErrInputLocked is returned for typed input while a recording is live.
var ErrInputLocked = errors.New("input is locked while recording")

type View string

const (
	ViewLanding View = "landing"
	ViewChat    View = "chat"
)

type Panel string

const (
	PanelKeyboard       Panel = "keyboard"
	PanelSidebar        Panel = "sidebar"
	PanelProfileMenu    Panel = "profile_menu"
	PanelLanguageDialog Panel = "language_dialog"
)

// State is what the UI renders around the conversation.
type State struct {
	View           View            `json:"view"`
	Panels         map[Panel]bool  `json:"panels"`
	InputLocked    bool            `json:"inputLocked"`
	Language       string          `json:"language"`
	Welcome        string          `json:"welcome,omitempty"`
	Placeholder    string          `json:"placeholder"`
	KeyboardLayout keyboard.Layout `json:"keyboardLayout"`
}

// Chat is the part of the chat controller the shell drives.
type Chat interface {
	Snapshot() domain.ChatSnapshot
	Input() string
	SetInput(text string)
	Send(ctx context.Context, text string, inputType domain.InputType) error
}

// Recorder exposes the recording state for input gating.
type Recorder interface {
	Status() domain.RecordingStatus
}

// Languages is the current language preference.
type Languages interface {
	Current() string
	Set(code string) error
}

// Shell tracks panel visibility. Views are derived from the chat state, so
// they never disagree with it.
type Shell struct {
	chat     Chat
	recorder Recorder
	lang     Languages

	mu     sync.Mutex
	panels map[Panel]bool
}

func New(chat Chat, recorder Recorder, lang Languages) *Shell {
	return &Shell{chat: chat, recorder: recorder, lang: lang, panels: map[Panel]bool{}}
}

func (s *Shell) State() State {
	language := s.lang.Current()
	state := State{
		View:           ViewLanding,
		InputLocked:    s.recorder.Status().InputLocked(),
		Language:       language,
		Placeholder:    i18n.T(language, i18n.KeyPlaceholder),
		KeyboardLayout: keyboard.LayoutFor(language),
	}
	if s.chat.Snapshot().Active {
		state.View = ViewChat
	} else {
		state.Welcome = i18n.T(language, i18n.KeyWelcome)
	}

	s.mu.Lock()
	state.Panels = make(map[Panel]bool, len(s.panels))
	for panel, open := range s.panels {
		state.Panels[panel] = open
	}
	s.mu.Unlock()
	return state
}

// Toggle flips a panel. Opening the language dialog closes the profile menu
// it was opened from.
func (s *Shell) Toggle(panel Panel) State {
	s.mu.Lock()
	s.panels[panel] = !s.panels[panel]
	if panel == PanelLanguageDialog && s.panels[panel] {
		s.panels[PanelProfileMenu] = false
	}
	s.mu.Unlock()
	return s.State()
}

func (s *Shell) Close(panel Panel) State {
	s.mu.Lock()
	s.panels[panel] = false
	s.mu.Unlock()
	return s.State()
}

func (s *Shell) IsOpen(panel Panel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panels[panel]
}

// ChooseLanguage applies the language picked in the dialog and closes it.
func (s *Shell) ChooseLanguage(code string) (State, error) {
	if err := s.lang.Set(code); err != nil {
		return s.State(), err
	}
	return s.Close(PanelLanguageDialog), nil
}

// PressKey applies a virtual keyboard key to the chat input. Enter submits
// the input as a typed message.
func (s *Shell) PressKey(ctx context.Context, key string) error {
	if s.recorder.Status().InputLocked() {
		return ErrInputLocked
	}
	next, submit := keyboard.Apply(s.chat.Input(), key)
	if submit {
		return s.chat.Send(ctx, next, domain.InputTypeText)
	}
	s.chat.SetInput(next)
	return nil
}

// Type replaces the input with text typed on a physical keyboard.
func (s *Shell) Type(text string) error {
	if s.recorder.Status().InputLocked() {
		return ErrInputLocked
	}
	s.chat.SetInput(text)
	return nil
}

// Submit sends the current input as a typed message.
func (s *Shell) Submit(ctx context.Context) error {
	if s.recorder.Status().InputLocked() {
		return ErrInputLocked
	}
	return s.chat.Send(ctx, s.chat.Input(), domain.InputTypeText)
}

// Reset closes every panel, used on logout.
func (s *Shell) Reset() {
	s.mu.Lock()
	s.panels = map[Panel]bool{}
	s.mu.Unlock()
}
