package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	EngineName  string           `yaml:"engine_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Segmenter   SegmenterConfig  `yaml:"segmenter"`
	Speech      SpeechConfig     `yaml:"speech"`
	Optimizer   OptimizerConfig  `yaml:"optimizer"`
	Generate    GenerateConfig   `yaml:"generate"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxDocuments  int    `yaml:"max_documents"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type SegmenterConfig struct {
	MaxChunkChars      int `yaml:"max_chunk_chars"`
	LongAudioThreshold int `yaml:"long_audio_threshold_chars"`
	DialogueLineChars  int `yaml:"dialogue_line_max_chars"`
}

// SpeechConfig selects and tunes the synthesis backend. Mode "gemini" talks
// to the generative API over HTTP, "exec" shells out to a local command, and
// "mock" produces silence for tests and dry runs.
type SpeechConfig struct {
	Mode          string `yaml:"mode"` // mock, exec, gemini
	Endpoint      string `yaml:"endpoint"`
	Model         string `yaml:"model"`
	APIKey        string `yaml:"api_key"`
	Command       string `yaml:"command"`
	Voice         string `yaml:"voice"`
	Language      string `yaml:"language"` // es, en
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
	TimeoutMS     int    `yaml:"timeout_ms"`
	MaxRetries    int    `yaml:"max_retries"`
	RetryBaseMS   int    `yaml:"retry_base_ms"`
	QuotaCooldown int    `yaml:"quota_cooldown_ms"`
	Paid          bool   `yaml:"paid"`
	PreviewCache  int    `yaml:"preview_cache_entries"`
}

type OptimizerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	ChunkChars int    `yaml:"chunk_chars"`
	TimeoutMS  int    `yaml:"timeout_ms"`
}

// GenerateConfig carries the orchestration timing knobs. The waits are
// empirically tuned against the provider's free-tier rate limits and must
// stay configurable rather than baked into the loop.
type GenerateConfig struct {
	ChunkWaitMS         int    `yaml:"chunk_wait_ms"`
	PaidChunkWaitMS     int    `yaml:"paid_chunk_wait_ms"`
	OptimizeExtraWaitMS int    `yaml:"optimize_extra_wait_ms"`
	PausePollMS         int    `yaml:"pause_poll_ms"`
	ContinueOnError     bool   `yaml:"continue_on_error"`
	OutputDir           string `yaml:"output_dir"`
}

func Default() Config {
	return Config{
		EngineName:  "lectio-engine",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/lectio-events.db",
			RetentionMode: "document",
			RetentionDays: 30,
			MaxDocuments:  1000,
		},
		Segmenter: SegmenterConfig{
			MaxChunkChars:      1000,
			LongAudioThreshold: 12000,
			DialogueLineChars:  80,
		},
		Speech: SpeechConfig{
			Mode:          "mock",
			Endpoint:      "https://generativelanguage.googleapis.com",
			Model:         "gemini-2.5-flash-preview-tts",
			Voice:         "es-narrator-deep",
			Language:      "es",
			SampleRate:    24000,
			Channels:      1,
			TimeoutMS:     120000,
			MaxRetries:    3,
			RetryBaseMS:   2000,
			QuotaCooldown: 30000,
			PreviewCache:  32,
		},
		Optimizer: OptimizerConfig{
			Enabled:    false,
			Model:      "gemini-2.5-flash",
			ChunkChars: 4000,
			TimeoutMS:  60000,
		},
		Generate: GenerateConfig{
			ChunkWaitMS:         12000,
			PaidChunkWaitMS:     500,
			OptimizeExtraWaitMS: 5000,
			PausePollMS:         500,
			ContinueOnError:     true,
			OutputDir:           "./data/audio",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.EngineName, "LECTIO_ENGINE_NAME")
	overrideString(&cfg.Environment, "LECTIO_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LECTIO_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LECTIO_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LECTIO_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LECTIO_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LECTIO_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "LECTIO_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "LECTIO_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LECTIO_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "LECTIO_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "LECTIO_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LECTIO_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LECTIO_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LECTIO_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LECTIO_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LECTIO_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "LECTIO_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "LECTIO_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "LECTIO_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxDocuments, "LECTIO_EVENT_STORE_MAX_DOCUMENTS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "LECTIO_EVENT_STORE_VACUUM_ON_START")
	overrideInt(&cfg.Segmenter.MaxChunkChars, "LECTIO_SEGMENTER_MAX_CHUNK_CHARS")
	overrideInt(&cfg.Segmenter.LongAudioThreshold, "LECTIO_SEGMENTER_LONG_AUDIO_THRESHOLD_CHARS")
	overrideInt(&cfg.Segmenter.DialogueLineChars, "LECTIO_SEGMENTER_DIALOGUE_LINE_MAX_CHARS")
	overrideString(&cfg.Speech.Mode, "LECTIO_SPEECH_MODE")
	overrideString(&cfg.Speech.Endpoint, "LECTIO_SPEECH_ENDPOINT")
	overrideString(&cfg.Speech.Model, "LECTIO_SPEECH_MODEL")
	overrideString(&cfg.Speech.APIKey, "LECTIO_SPEECH_API_KEY")
	overrideString(&cfg.Speech.Command, "LECTIO_SPEECH_COMMAND")
	overrideString(&cfg.Speech.Voice, "LECTIO_SPEECH_VOICE")
	overrideString(&cfg.Speech.Language, "LECTIO_SPEECH_LANGUAGE")
	overrideInt(&cfg.Speech.SampleRate, "LECTIO_SPEECH_SAMPLE_RATE")
	overrideInt(&cfg.Speech.Channels, "LECTIO_SPEECH_CHANNELS")
	overrideInt(&cfg.Speech.TimeoutMS, "LECTIO_SPEECH_TIMEOUT_MS")
	overrideInt(&cfg.Speech.MaxRetries, "LECTIO_SPEECH_MAX_RETRIES")
	overrideInt(&cfg.Speech.RetryBaseMS, "LECTIO_SPEECH_RETRY_BASE_MS")
	overrideInt(&cfg.Speech.QuotaCooldown, "LECTIO_SPEECH_QUOTA_COOLDOWN_MS")
	overrideBool(&cfg.Speech.Paid, "LECTIO_SPEECH_PAID")
	overrideInt(&cfg.Speech.PreviewCache, "LECTIO_SPEECH_PREVIEW_CACHE_ENTRIES")
	overrideBool(&cfg.Optimizer.Enabled, "LECTIO_OPTIMIZER_ENABLED")
	overrideString(&cfg.Optimizer.Model, "LECTIO_OPTIMIZER_MODEL")
	overrideInt(&cfg.Optimizer.ChunkChars, "LECTIO_OPTIMIZER_CHUNK_CHARS")
	overrideInt(&cfg.Optimizer.TimeoutMS, "LECTIO_OPTIMIZER_TIMEOUT_MS")
	overrideInt(&cfg.Generate.ChunkWaitMS, "LECTIO_GENERATE_CHUNK_WAIT_MS")
	overrideInt(&cfg.Generate.PaidChunkWaitMS, "LECTIO_GENERATE_PAID_CHUNK_WAIT_MS")
	overrideInt(&cfg.Generate.OptimizeExtraWaitMS, "LECTIO_GENERATE_OPTIMIZE_EXTRA_WAIT_MS")
	overrideInt(&cfg.Generate.PausePollMS, "LECTIO_GENERATE_PAUSE_POLL_MS")
	overrideBool(&cfg.Generate.ContinueOnError, "LECTIO_GENERATE_CONTINUE_ON_ERROR")
	overrideString(&cfg.Generate.OutputDir, "LECTIO_GENERATE_OUTPUT_DIR")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.EngineName == "" {
		return errors.New("engine_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "document", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|document|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Segmenter.MaxChunkChars <= 0 {
		return errors.New("segmenter.max_chunk_chars must be positive")
	}
	if cfg.Segmenter.LongAudioThreshold <= cfg.Segmenter.MaxChunkChars {
		return errors.New("segmenter.long_audio_threshold_chars must be greater than max_chunk_chars")
	}
	switch cfg.Speech.Mode {
	case "mock", "exec", "gemini":
	default:
		return errors.New("speech.mode must be one of mock|exec|gemini")
	}
	if cfg.Speech.Mode == "exec" && cfg.Speech.Command == "" {
		return errors.New("speech.command must be set when mode=exec")
	}
	if cfg.Speech.Mode == "gemini" && cfg.Speech.Endpoint == "" {
		return errors.New("speech.endpoint must be set when mode=gemini")
	}
	switch cfg.Speech.Language {
	case "es", "en":
	default:
		return errors.New("speech.language must be one of es|en")
	}
	if cfg.Speech.SampleRate <= 0 {
		return errors.New("speech.sample_rate must be positive")
	}
	if cfg.Speech.Channels <= 0 {
		return errors.New("speech.channels must be positive")
	}
	if cfg.Speech.MaxRetries < 0 {
		return errors.New("speech.max_retries must be >= 0")
	}
	if cfg.Optimizer.Enabled && cfg.Optimizer.ChunkChars <= 0 {
		return errors.New("optimizer.chunk_chars must be positive when optimizer is enabled")
	}
	if cfg.Generate.PausePollMS <= 0 {
		return errors.New("generate.pause_poll_ms must be positive")
	}
	if cfg.Generate.OutputDir == "" {
		return errors.New("generate.output_dir must not be empty")
	}
	return nil
}
