package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"agriadvisor/internal/i18n"
	"agriadvisor/internal/ports"
)

// LanguageKey is the storage key of the last chosen language.
const LanguageKey = "language"

const profileUpdateTimeout = 15 * time.Second

// LanguageSource exposes the current language code.
type LanguageSource interface {
	Current() string
}

// LanguageController owns the single active language preference.
type LanguageController struct {
	kv      ports.KeyValueStore
	profile ports.ProfileAPI
	creds   ports.Credentials
	events  ports.EventSink
	logger  *slog.Logger

	mu   sync.RWMutex
	code string

	pending sync.WaitGroup
}

// NewLanguageController restores the persisted language, falling back to
// initial and then to English.
func NewLanguageController(
	kv ports.KeyValueStore,
	profile ports.ProfileAPI,
	creds ports.Credentials,
	events ports.EventSink,
	initial string,
	logger *slog.Logger,
) *LanguageController {
	if logger == nil {
		logger = slog.Default()
	}
	c := &LanguageController{
		kv:      kv,
		profile: profile,
		creds:   creds,
		events:  events,
		logger:  logger,
		code:    i18n.DefaultLanguage,
	}
	if code, err := i18n.Normalize(initial); err == nil {
		c.code = code
	}
	stored, ok, err := kv.Get(LanguageKey)
	switch {
	case err != nil:
		logger.Warn("failed to read stored language", "error", err)
	case ok:
		if code, err := i18n.Normalize(stored); err == nil {
			c.code = code
		}
	}
	return c
}

func (c *LanguageController) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.code
}

// Set switches the language immediately, then persists it locally and, when
// signed in, to the profile in the background. Neither persistence step can
// revert the change.
func (c *LanguageController) Set(code string) error {
	normalized, err := c.apply(code)
	if err != nil {
		return err
	}

	if session, ok := c.creds.Current(); ok && session.Valid() {
		c.pending.Add(1)
		go func() {
			defer c.pending.Done()
			ctx, cancel := context.WithTimeout(context.Background(), profileUpdateTimeout)
			defer cancel()
			if err := c.profile.UpdateLanguage(ctx, normalized); err != nil {
				c.logger.Warn("failed to persist language to profile", "language", normalized, "error", err)
			}
		}()
	}
	return nil
}

// Adopt switches to a language that came from the backend, so it is not
// written back to the profile.
func (c *LanguageController) Adopt(code string) {
	if _, err := c.apply(code); err != nil {
		c.logger.Debug("ignoring unsupported profile language", "language", code)
	}
}

// Wait blocks until background profile updates finish.
func (c *LanguageController) Wait() {
	c.pending.Wait()
}

func (c *LanguageController) apply(code string) (string, error) {
	normalized, err := i18n.Normalize(code)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.code = normalized
	c.mu.Unlock()

	if err := c.kv.Set(LanguageKey, normalized); err != nil {
		c.logger.Warn("failed to store language", "language", normalized, "error", err)
	}
	c.events.LanguageChanged(normalized)
	return normalized, nil
}
