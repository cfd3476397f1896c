package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"agriadvisor/internal/domain"
	"agriadvisor/internal/i18n"
	"agriadvisor/internal/ports"
)

// RecordingConfig controls microphone capture.
type RecordingConfig struct {
	Audio     ports.AudioConfig
	ChunkSize int
	// MaxDuration stops and transcribes a recording automatically. Zero
	// disables the ceiling.
	MaxDuration time.Duration
}

// TranscriptHandler receives every finished transcription.
type TranscriptHandler interface {
	HandleTranscript(ctx context.Context, transcript domain.Transcript)
}

// RecordingController drives Idle -> Recording -> Transcribing -> Idle with
// at most one live recording.
type RecordingController struct {
	capture     ports.AudioCapture
	encoder     ports.AudioEncoder
	transcriber ports.Transcriber
	rules       ports.RulesEngine
	lang        LanguageSource
	handler     TranscriptHandler
	events      ports.EventSink
	logger      *slog.Logger
	cfg         RecordingConfig

	mu         sync.Mutex
	state      domain.RecordingState
	starting   bool
	current    *recording
	generation uint64

	timers sync.WaitGroup
}

type recording struct {
	id         string
	generation uint64
	session    ports.AudioSession
	cancel     context.CancelFunc
	ceiling    *time.Timer

	// segments is written only by the pump goroutine until pumpDone closes.
	segments [][]byte
	pumpDone chan struct{}

	cancelTranscription context.CancelFunc
}

func NewRecordingController(
	capture ports.AudioCapture,
	encoder ports.AudioEncoder,
	transcriber ports.Transcriber,
	rules ports.RulesEngine,
	lang LanguageSource,
	handler TranscriptHandler,
	events ports.EventSink,
	cfg RecordingConfig,
	logger *slog.Logger,
) *RecordingController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingController{
		capture:     capture,
		encoder:     encoder,
		transcriber: transcriber,
		rules:       rules,
		lang:        lang,
		handler:     handler,
		events:      events,
		logger:      logger,
		cfg:         cfg,
		state:       domain.RecordingStateIdle,
	}
}

// Start opens the microphone and begins buffering audio. It does nothing
// unless the controller is idle. A refused microphone leaves it idle and
// returns an error matching domain.ErrPermissionDenied.
func (c *RecordingController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != domain.RecordingStateIdle || c.starting {
		c.mu.Unlock()
		return nil
	}
	c.starting = true
	c.mu.Unlock()

	captureCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session, err := c.capture.Start(captureCtx, c.cfg.Audio)
	if err != nil {
		cancel()
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
		return c.reportStartFailure(err)
	}

	c.mu.Lock()
	c.generation++
	rec := &recording{
		id:         uuid.NewString(),
		generation: c.generation,
		session:    session,
		cancel:     cancel,
		pumpDone:   make(chan struct{}),
	}
	c.current = rec
	c.state = domain.RecordingStateRecording
	c.starting = false
	if c.cfg.MaxDuration > 0 {
		c.timers.Add(1)
		rec.ceiling = time.AfterFunc(c.cfg.MaxDuration, func() {
			defer c.timers.Done()
			c.stopOnCeiling(rec.generation)
		})
	}
	status := c.statusLocked()
	c.mu.Unlock()

	go c.pump(rec)

	c.events.RecordingStateChanged(status, domain.RecordingReasonStarted)
	return nil
}

// Stop releases the microphone, transcribes the buffered audio and hands
// the result to the transcript handler. Transcription failures produce the
// localized fallback text instead of an error.
func (c *RecordingController) Stop(ctx context.Context) (domain.Transcript, error) {
	return c.stop(ctx, 0, domain.RecordingReasonTranscribing)
}

// Abort discards the recording or the transcription in progress.
func (c *RecordingController) Abort() error {
	c.mu.Lock()
	rec := c.current
	if rec == nil {
		c.mu.Unlock()
		return ErrNoActiveRecording
	}
	c.generation++
	c.current = nil
	c.state = domain.RecordingStateIdle
	c.stopCeilingLocked(rec)
	if rec.cancelTranscription != nil {
		rec.cancelTranscription()
	}
	status := c.statusLocked()
	c.mu.Unlock()

	c.release(rec)
	c.events.RecordingStateChanged(status, domain.RecordingReasonDiscarded)
	return nil
}

// Reset discards any recording, used on logout.
func (c *RecordingController) Reset() {
	if err := c.Abort(); err != nil && !errors.Is(err, ErrNoActiveRecording) {
		c.logger.Warn("failed to discard recording", "error", err)
	}
}

// Status reports the current state, which gates the text input.
func (c *RecordingController) Status() domain.RecordingStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Wait blocks until pending ceiling timers have fired or been cancelled.
func (c *RecordingController) Wait() {
	c.timers.Wait()
}

func (c *RecordingController) stopOnCeiling(generation uint64) {
	c.logger.Info("recording ceiling reached", "max_duration", c.cfg.MaxDuration)
	if _, err := c.stop(context.Background(), generation, domain.RecordingReasonCeilingReached); err != nil &&
		!errors.Is(err, ErrNoActiveRecording) && !errors.Is(err, ErrRecordingDiscarded) {
		c.logger.Warn("automatic stop failed", "error", err)
	}
}

// stop ends the recording. A non-zero generation only stops that recording.
func (c *RecordingController) stop(ctx context.Context, generation uint64, reason domain.RecordingReason) (domain.Transcript, error) {
	c.mu.Lock()
	rec := c.current
	if rec == nil || c.state != domain.RecordingStateRecording ||
		(generation != 0 && rec.generation != generation) {
		c.mu.Unlock()
		return domain.Transcript{}, ErrNoActiveRecording
	}
	c.state = domain.RecordingStateTranscribing
	c.stopCeilingLocked(rec)
	transcribeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	rec.cancelTranscription = cancel
	status := c.statusLocked()
	c.mu.Unlock()

	c.events.RecordingStateChanged(status, reason)
	c.release(rec)

	language := c.lang.Current()
	payload := c.encoder.Encode(rec.segments, c.cfg.Audio)
	text, err := c.transcribe(transcribeCtx, rec, payload, language)

	c.mu.Lock()
	if c.current != rec {
		c.mu.Unlock()
		return domain.Transcript{}, ErrRecordingDiscarded
	}
	c.current = nil
	c.state = domain.RecordingStateIdle
	status = c.statusLocked()
	c.mu.Unlock()

	transcript := domain.Transcript{Text: text, Language: language}
	reason = domain.RecordingReasonTranscribed
	if err != nil {
		c.logger.Warn("transcription failed, using fallback text", "recording_id", rec.id, "error", err)
		transcript.Text = i18n.T(language, i18n.KeyFallback)
		transcript.Fallback = true
		reason = domain.RecordingReasonTranscriptFallback
	} else if rewritten, rulesErr := c.rules.Apply(text); rulesErr != nil {
		c.events.Notify(domain.ErrorCodeRules, rulesErr.Error())
	} else {
		transcript.Text = rewritten
	}

	c.events.RecordingStateChanged(status, reason)
	c.events.TranscriptReady(transcript)
	if c.handler != nil {
		c.handler.HandleTranscript(ctx, transcript)
	}
	return transcript, nil
}

func (c *RecordingController) transcribe(ctx context.Context, rec *recording, payload ports.AudioPayload, language string) (string, error) {
	if len(rec.segments) == 0 {
		return "", errors.New("no audio captured")
	}
	text, err := c.transcriber.Transcribe(ctx, payload, i18n.LocaleCode(language))
	if err != nil {
		return "", fmt.Errorf("transcribe recording %s: %w", rec.id, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty transcript")
	}
	return text, nil
}

// release stops the device and waits for the pump to drain.
func (c *RecordingController) release(rec *recording) {
	if err := rec.session.Stop(); err != nil {
		c.logger.Warn("failed to stop audio capture cleanly", "recording_id", rec.id, "error", err)
		c.events.Notify(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	rec.cancel()
	<-rec.pumpDone
}

func (c *RecordingController) pump(rec *recording) {
	defer close(rec.pumpDone)

	buf := make([]byte, c.cfg.ChunkSize)
	for {
		n, err := rec.session.Read(buf)
		if n > 0 {
			rec.segments = append(rec.segments, append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				c.logger.Warn("audio capture read failed", "recording_id", rec.id, "error", err)
			}
			return
		}
	}
}

func (c *RecordingController) reportStartFailure(err error) error {
	language := c.lang.Current()
	status := c.Status()
	if errors.Is(err, domain.ErrPermissionDenied) {
		c.events.Notify(domain.ErrorCodePermission, i18n.T(language, i18n.KeyMicDenied))
		c.events.RecordingStateChanged(status, domain.RecordingReasonPermissionDenied)
		return err
	}
	c.events.Notify(domain.ErrorCodeAudioStream, fmt.Sprintf("could not start audio capture: %v", err))
	c.events.RecordingStateChanged(status, domain.RecordingReasonCaptureFailed)
	return fmt.Errorf("start recording: %w", err)
}

func (c *RecordingController) stopCeilingLocked(rec *recording) {
	if rec.ceiling != nil && rec.ceiling.Stop() {
		c.timers.Done()
	}
	rec.ceiling = nil
}

func (c *RecordingController) statusLocked() domain.RecordingStatus {
	status := domain.RecordingStatus{State: c.state, Active: c.state != domain.RecordingStateIdle}
	if c.current != nil {
		status.ID = c.current.id
	}
	return status
}
