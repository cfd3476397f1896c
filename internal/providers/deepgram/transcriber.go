// Package deepgram transcribes recordings directly against Deepgram's live
// listen websocket, as an alternative to the backend transcription endpoint.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"agriadvisor/internal/audio"
	"agriadvisor/internal/ports"
)

const (
	defaultBaseURL = "https://api.deepgram.com/v1"
	defaultModel   = "nova-2"

	// chunkSize is how much PCM is sent per websocket frame.
	chunkSize = 8192

	// resultWait bounds how long to wait for results after CloseStream.
	resultWait = 10 * time.Second
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
	SampleRate  int
	Channels    int
}

// Transcriber implements ports.Transcriber for Deepgram.
type Transcriber struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewTranscriber(cfg Config) *Transcriber {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	return &Transcriber{cfg: cfg, dialer: websocket.DefaultDialer}
}

// Transcribe streams the payload's PCM and joins the final transcripts.
func (t *Transcriber) Transcribe(ctx context.Context, payload ports.AudioPayload, locale string) (string, error) {
	if strings.TrimSpace(t.cfg.APIKey) == "" {
		return "", errors.New("DEEPGRAM_API_KEY is not configured")
	}
	pcm := audio.PCMFromWAV(payload.Data)
	if len(pcm) == 0 {
		return "", errors.New("empty audio payload")
	}

	listenURL, err := buildListenURL(t.cfg, locale)
	if err != nil {
		return "", err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+t.cfg.APIKey)
	conn, _, err := t.dialer.DialContext(ctx, listenURL, headers)
	if err != nil {
		return "", fmt.Errorf("connect to Deepgram websocket: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	results := make(chan readResult, 1)
	go func() { results <- readFinals(conn) }()

	if err := writeAudio(conn, pcm); err != nil {
		return "", err
	}

	select {
	case res := <-results:
		if res.err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", res.err
		}
		return strings.Join(res.finals, " "), nil
	case <-time.After(resultWait):
		return "", errors.New("timed out waiting for Deepgram results")
	}
}

func writeAudio(conn *websocket.Conn, pcm []byte) error {
	for start := 0; start < len(pcm); start += chunkSize {
		end := min(start+chunkSize, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[start:end]); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	return nil
}

type readResult struct {
	finals []string
	err    error
}

// readFinals collects final transcripts until the server closes the socket.
func readFinals(conn *websocket.Conn) readResult {
	var finals []string
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				return readResult{finals: finals}
			}
			return readResult{finals: finals, err: fmt.Errorf("read provider event: %w", err)}
		}

		var response listenResponse
		if err := json.Unmarshal(message, &response); err != nil {
			continue
		}
		if strings.EqualFold(response.Type, "Error") {
			detail := strings.TrimSpace(response.Message)
			if detail == "" {
				detail = "deepgram returned an unknown error"
			}
			return readResult{err: errors.New(detail)}
		}
		if !response.IsFinal {
			continue
		}
		if text := response.transcript(); text != "" {
			finals = append(finals, text)
		}
	}
}

type listenResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	IsFinal bool   `json:"is_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r listenResponse) transcript() string {
	if len(r.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Channel.Alternatives[0].Transcript)
}

func buildListenURL(cfg Config, locale string) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}
	if listenURL.Scheme != "ws" && listenURL.Scheme != "wss" {
		return "", fmt.Errorf("invalid Deepgram API base URL %q", cfg.APIBaseURL)
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", fmt.Sprintf("%d", cfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", cfg.Channels))
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))
	if locale != "" {
		query.Set("language", locale)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
