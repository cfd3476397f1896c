package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"agriadvisor/internal/domain"
	"agriadvisor/internal/i18n"
	"agriadvisor/internal/ports"
)

const refreshTimeout = 30 * time.Second

// HistoryController keeps the sidebar's session summaries and moves the chat
// controller between persisted conversations.
type HistoryController struct {
	api    ports.HistoryAPI
	chat   *ChatController
	lang   LanguageSource
	events ports.EventSink
	logger *slog.Logger

	mu         sync.Mutex
	sessions   []domain.SessionSummary
	generation uint64

	refresh singleflight.Group
	pending sync.WaitGroup
}

func NewHistoryController(
	api ports.HistoryAPI,
	chat *ChatController,
	lang LanguageSource,
	events ports.EventSink,
	logger *slog.Logger,
) *HistoryController {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryController{api: api, chat: chat, lang: lang, events: events, logger: logger}
}

// List fetches the summaries and replaces the local list. A reply that
// arrives after Reset is dropped and List returns an empty list.
func (h *HistoryController) List(ctx context.Context) ([]domain.SessionSummary, error) {
	generation := h.currentGeneration()
	sessions, err := h.fetch(ctx)
	if err != nil {
		if h.isCurrent(generation) {
			h.notify(err, i18n.KeyHistoryFailed)
		}
		return nil, err
	}
	return sessions, nil
}

// RefreshAsync re-fetches the summaries in the background. Overlapping
// refreshes share one request and failures are only logged.
func (h *HistoryController) RefreshAsync() {
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		_, err, _ := h.refresh.Do("sessions", func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()
			return h.fetch(ctx)
		})
		if err != nil {
			h.logger.Warn("background history refresh failed", "error", err)
		}
	}()
}

// Load fetches a conversation and makes it the active one. The result is
// dropped if the history or the chat was reset while the request ran.
func (h *HistoryController) Load(ctx context.Context, id string) error {
	generation := h.currentGeneration()
	chatGeneration := h.chat.currentGeneration()

	session, err := h.api.GetChat(ctx, id)
	if err != nil {
		if h.isCurrent(generation) {
			h.notify(err, i18n.KeyHistoryFailed)
		}
		return err
	}
	if !h.isCurrent(generation) {
		h.logger.Debug("dropping chat loaded before reset", "chat_id", id)
		return nil
	}
	if session.ID == "" {
		session.ID = id
	}
	if !h.chat.loadAt(session, chatGeneration) {
		h.logger.Debug("dropping chat loaded after the active chat changed", "chat_id", id)
	}
	return nil
}

// Delete removes a conversation. Deleting the active one returns the chat
// to the new-chat state.
func (h *HistoryController) Delete(ctx context.Context, id string) error {
	if err := h.api.DeleteChat(ctx, id); err != nil {
		h.notify(err, i18n.KeyDeleteFailed)
		return err
	}

	h.mu.Lock()
	kept := h.sessions[:0:0]
	for _, s := range h.sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	h.sessions = kept
	snapshot := append([]domain.SessionSummary{}, kept...)
	h.mu.Unlock()
	h.events.SessionsChanged(snapshot)

	if h.chat.ActiveID() == id {
		h.chat.Reset()
	}
	return nil
}

// New starts an empty conversation. The backend creates it on first send.
func (h *HistoryController) New() {
	h.chat.Reset()
}

func (h *HistoryController) Sessions() []domain.SessionSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.SessionSummary{}, h.sessions...)
}

// Reset clears the summaries, used on logout. Requests still in flight are
// discarded when they return.
func (h *HistoryController) Reset() {
	h.mu.Lock()
	h.generation++
	h.sessions = nil
	h.mu.Unlock()
	h.events.SessionsChanged([]domain.SessionSummary{})
}

// Wait blocks until background refreshes finish.
func (h *HistoryController) Wait() {
	h.pending.Wait()
}

func (h *HistoryController) currentGeneration() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation
}

func (h *HistoryController) isCurrent(generation uint64) bool {
	return h.currentGeneration() == generation
}

func (h *HistoryController) fetch(ctx context.Context) ([]domain.SessionSummary, error) {
	generation := h.currentGeneration()
	sessions, err := h.api.ListChats(ctx)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []domain.SessionSummary{}
	}

	h.mu.Lock()
	if h.generation != generation {
		h.mu.Unlock()
		h.logger.Debug("dropping session list fetched before reset")
		return []domain.SessionSummary{}, nil
	}
	h.sessions = sessions
	snapshot := append([]domain.SessionSummary{}, sessions...)
	h.mu.Unlock()
	h.events.SessionsChanged(snapshot)
	return snapshot, nil
}

// notify reports a failure unless it was a 401, which logs the user out
// instead.
func (h *HistoryController) notify(err error, key i18n.Key) {
	if errors.Is(err, domain.ErrUnauthorized) {
		return
	}
	h.events.Notify(domain.ErrorCodeNetwork, i18n.T(h.lang.Current(), key))
	h.logger.Warn("history request failed", "error", err)
}
