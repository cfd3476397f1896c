package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"agriadvisor/internal/domain"
	"agriadvisor/internal/i18n"
	"agriadvisor/internal/ports"
)

// ChatConfig controls how the chat controller treats voice input.
type ChatConfig struct {
	// SubmitFallback sends the "could not understand" text as a message
	// when transcription fails. When false it is only placed in the input.
	SubmitFallback bool
}

// ChatController owns the active conversation: its ordered turns, the input
// buffer and the single in-flight send.
type ChatController struct {
	api    ports.ChatAPI
	lang   LanguageSource
	events ports.EventSink
	logger *slog.Logger
	cfg    ChatConfig

	mu         sync.Mutex
	session    domain.ChatSession
	active     bool
	busy       bool
	input      string
	generation uint64
	onSent     []func()
}

func NewChatController(
	api ports.ChatAPI,
	lang LanguageSource,
	events ports.EventSink,
	cfg ChatConfig,
	logger *slog.Logger,
) *ChatController {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatController{api: api, lang: lang, events: events, cfg: cfg, logger: logger}
}

// OnSent registers fn to run after every successful send.
func (c *ChatController) OnSent(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSent = append(c.onSent, fn)
}

// Send submits text as a new turn. Whitespace-only text is ignored. The turn
// is shown as pending at once and replaced by the server's turn list on
// success, or removed again on failure.
func (c *ChatController) Send(ctx context.Context, text string, inputType domain.InputType) error {
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		return nil
	}
	if inputType == "" {
		inputType = domain.InputTypeText
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	generation := c.generation
	wasActive := c.active
	pendingAt := len(c.session.Turns)
	c.session.Turns = append(c.session.Turns, domain.Turn{Prompt: prompt, Pending: true})
	c.active = true
	c.busy = true
	c.input = ""
	chatID := c.session.ID
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.events.ChatChanged(snapshot)

	language := c.lang.Current()
	reply, err := c.api.SendMessage(ctx, ports.SendMessageRequest{
		Prompt:    prompt,
		ChatID:    chatID,
		InputType: inputType,
		Language:  language,
	})

	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		c.logger.Debug("dropping reply for a chat that is no longer active", "chat_id", chatID)
		return nil
	}
	c.busy = false
	if err != nil {
		c.session.Turns = c.session.Turns[:pendingAt]
		c.active = wasActive
		snapshot = c.snapshotLocked()
		c.mu.Unlock()

		c.events.ChatChanged(snapshot)
		if !errors.Is(err, domain.ErrUnauthorized) {
			c.events.Notify(domain.ErrorCodeNetwork, i18n.T(language, i18n.KeySendFailed))
		}
		c.logger.Warn("send message failed", "chat_id", chatID, "error", err)
		return err
	}

	c.session = reply
	c.active = true
	snapshot = c.snapshotLocked()
	listeners := append([]func(){}, c.onSent...)
	c.mu.Unlock()

	c.events.ChatChanged(snapshot)
	for _, fn := range listeners {
		fn()
	}
	return nil
}

// HandleTranscript puts a finished transcription into the input and submits
// it through Send. Fallback text is only submitted when configured to.
func (c *ChatController) HandleTranscript(ctx context.Context, transcript domain.Transcript) {
	c.SetInput(transcript.Text)
	if transcript.Fallback && !c.cfg.SubmitFallback {
		return
	}
	if err := c.Send(ctx, transcript.Text, domain.InputTypeVoice); err != nil && errors.Is(err, ErrSendInFlight) {
		c.logger.Info("voice input kept in the input box, a send is in flight")
	}
}

// Load makes session the active conversation. Any reply still in flight for
// the previous conversation is discarded.
func (c *ChatController) Load(session domain.ChatSession) {
	c.mu.Lock()
	c.generation++
	c.session = session
	c.active = true
	c.busy = false
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.events.ChatChanged(snapshot)
}

func (c *ChatController) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// loadAt is Load, but only while the generation still equals generation.
func (c *ChatController) loadAt(session domain.ChatSession, generation uint64) bool {
	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return false
	}
	c.generation++
	c.session = session
	c.active = true
	c.busy = false
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.events.ChatChanged(snapshot)
	return true
}

// Reset returns to the empty new-chat state without contacting the backend.
func (c *ChatController) Reset() {
	c.mu.Lock()
	c.generation++
	c.session = domain.ChatSession{}
	c.active = false
	c.busy = false
	c.input = ""
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.events.ChatChanged(snapshot)
}

func (c *ChatController) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.events.ChatChanged(snapshot)
}

func (c *ChatController) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// ActiveID is the server id of the active conversation, empty for a new chat.
func (c *ChatController) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

func (c *ChatController) Snapshot() domain.ChatSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *ChatController) snapshotLocked() domain.ChatSnapshot {
	return domain.ChatSnapshot{
		SessionID: c.session.ID,
		Title:     c.session.Title,
		Turns:     append([]domain.Turn{}, c.session.Turns...),
		Active:    c.active,
		Busy:      c.busy,
		Input:     c.input,
	}
}
