package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TranscriberBackend  = "backend"
	TranscriberDeepgram = "deepgram"
)

// Config stores runtime configuration for the desktop shell and the CLI.
type Config struct {
	API         APIConfig
	Storage     StorageConfig
	Audio       AudioConfig
	Recording   RecordingConfig
	Transcriber TranscriberConfig
	Deepgram    DeepgramConfig
	Rules       RulesConfig
	Google      GoogleConfig
	Language    string
	LogLevel    slog.Level
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type StorageConfig struct {
	Path string
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type RecordingConfig struct {
	ChunkSize   int
	MaxDuration time.Duration
}

type TranscriberConfig struct {
	Kind           string
	SubmitFallback bool
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

// Load reads an optional .env file (AGRI_ENV_FILE or ./.env) and resolves
// configuration from environment variables and defaults. Variables already
// set in the environment win over the file.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "agriadvisor")

	cfg := Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(envOrDefault("AGRI_API_BASE", "http://localhost:8000"), "/"),
			Timeout: time.Duration(envOrDefaultInt("AGRI_HTTP_TIMEOUT_MS", 60000)) * time.Millisecond,
		},
		Storage: StorageConfig{
			Path: envOrDefault("AGRI_DB_PATH", filepath.Join(configDir, "client.sqlite")),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("AGRI_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("AGRI_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("AGRI_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("AGRI_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("AGRI_CHANNELS", 1),
		},
		Recording: RecordingConfig{
			ChunkSize:   envOrDefaultInt("AGRI_AUDIO_CHUNK_SIZE", 4096),
			MaxDuration: time.Duration(envOrDefaultInt("AGRI_MAX_RECORDING_MS", 120000)) * time.Millisecond,
		},
		Transcriber: TranscriberConfig{
			Kind:           strings.ToLower(envOrDefault("AGRI_TRANSCRIBER", TranscriberBackend)),
			SubmitFallback: envOrDefaultBool("AGRI_SUBMIT_FALLBACK", true),
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Rules: RulesConfig{
			Path:           envOrDefault("AGRI_RULES_FILE", filepath.Join(configDir, "substitutions.rules")),
			IterationLimit: envOrDefaultInt("AGRI_RULE_ITERATION_LIMIT", 30),
		},
		Google: GoogleConfig{
			ClientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		},
		Language: envOrDefault("AGRI_LANGUAGE", "en"),
		LogLevel: envOrDefaultLevel("AGRI_LOG_LEVEL", slog.LevelInfo),
	}

	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 60 * time.Second
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Recording.ChunkSize < 256 {
		cfg.Recording.ChunkSize = 4096
	}
	if cfg.Recording.MaxDuration < 0 {
		cfg.Recording.MaxDuration = 0
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}

	switch cfg.Transcriber.Kind {
	case TranscriberBackend:
	case TranscriberDeepgram:
		if cfg.Deepgram.APIKey == "" {
			return Config{}, errors.New("AGRI_TRANSCRIBER=deepgram requires DEEPGRAM_API_KEY")
		}
	default:
		return Config{}, fmt.Errorf("unknown AGRI_TRANSCRIBER %q (want %s or %s)", cfg.Transcriber.Kind, TranscriberBackend, TranscriberDeepgram)
	}

	return cfg, nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c Config) GoogleEnabled() bool {
	return c.Google.ClientID != ""
}

func loadEnvFile() error {
	path := strings.TrimSpace(os.Getenv("AGRI_ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return fmt.Errorf("env file %q: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultLevel(key string, fallback slog.Level) slog.Level {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return fallback
	}
	return level
}
