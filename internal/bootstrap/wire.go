package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"agriadvisor/internal/api"
	"agriadvisor/internal/audio"
	"agriadvisor/internal/config"
	"agriadvisor/internal/credentials"
	"agriadvisor/internal/oauth"
	"agriadvisor/internal/ports"
	"agriadvisor/internal/providers/deepgram"
	"agriadvisor/internal/rules"
	"agriadvisor/internal/shell"
	"agriadvisor/internal/store/sqlite"
	"agriadvisor/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config      config.Config
	Logger      *slog.Logger
	Store       *sqlite.Store
	Credentials *credentials.Store
	API         *api.Client
	Transcriber ports.Transcriber
	Rules       *rules.Live
	Language    *usecase.LanguageController
	Chat        *usecase.ChatController
	History     *usecase.HistoryController
	Recording   *usecase.RecordingController
	Auth        *usecase.AuthController
	Shell       *shell.Shell
	Google      *oauth.GoogleFlow
}

// Build wires all client dependencies for the current runtime. openURL shows
// the Google consent page; it may be nil when Google sign-in is not offered.
func Build(eventSink ports.EventSink, openURL func(url string) error) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	logger := NewLogger(cfg.LogLevel)

	rulesSet, err := rules.NewLive(cfg.Rules.Path, cfg.Rules.IterationLimit, logger)
	if err != nil {
		return Services{}, err
	}

	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return Services{}, err
	}
	creds, err := credentials.New(store, logger)
	if err != nil {
		store.Close()
		return Services{}, err
	}
	client, err := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  logger,
	}, creds)
	if err != nil {
		store.Close()
		return Services{}, err
	}

	audioCfg := ports.AudioConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
	}

	transcriber := transcriberFor(cfg, client)

	lang := usecase.NewLanguageController(store, client, creds, eventSink, cfg.Language, logger)
	chat := usecase.NewChatController(client, lang, eventSink, usecase.ChatConfig{
		SubmitFallback: cfg.Transcriber.SubmitFallback,
	}, logger)
	history := usecase.NewHistoryController(client, chat, lang, eventSink, logger)
	chat.OnSent(history.RefreshAsync)

	recording := usecase.NewRecordingController(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		audio.WAVEncoder{},
		transcriber,
		rulesSet,
		lang,
		chat,
		eventSink,
		usecase.RecordingConfig{
			Audio:       audioCfg,
			ChunkSize:   cfg.Recording.ChunkSize,
			MaxDuration: cfg.Recording.MaxDuration,
		},
		logger,
	)

	sh := shell.New(chat, recording, lang)
	auth := usecase.NewAuthController(client, creds, lang, eventSink, logger, chat, history, recording, sh)

	google := oauth.NewGoogleFlow(oauth.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		OpenURL:      openURL,
		Logger:       logger,
	})

	logger.Debug("client wired",
		"api", cfg.API.BaseURL,
		"transcriber", cfg.Transcriber.Kind,
		"rules", rulesSet.Len(),
		"google", cfg.GoogleEnabled(),
	)

	return Services{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Credentials: creds,
		API:         client,
		Transcriber: transcriber,
		Rules:       rulesSet,
		Language:    lang,
		Chat:        chat,
		History:     history,
		Recording:   recording,
		Auth:        auth,
		Shell:       sh,
		Google:      google,
	}, nil
}

// SignInWithGoogle runs the consent flow and hands the provider token to the
// backend.
func (s Services) SignInWithGoogle(ctx context.Context) error {
	if !s.Config.GoogleEnabled() {
		return oauth.ErrNotConfigured
	}
	token, err := s.Google.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("google sign-in: %w", err)
	}
	return s.Auth.GoogleLogin(ctx, token)
}

// Close drains background work and closes storage.
func (s Services) Close() error {
	var errs []error
	if s.Recording != nil {
		_ = s.Recording.Abort()
		s.Recording.Wait()
	}
	if s.History != nil {
		s.History.Wait()
	}
	if s.Language != nil {
		s.Language.Wait()
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewLogger returns a text logger on stderr at level.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func transcriberFor(cfg config.Config, client *api.Client) ports.Transcriber {
	if cfg.Transcriber.Kind == config.TranscriberDeepgram {
		return deepgram.NewTranscriber(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			SmartFormat: cfg.Deepgram.SmartFormat,
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
		})
	}
	return client
}
