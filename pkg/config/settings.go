package config

import (
	"os"
	"time"
)

// Settings is the assembled runtime configuration for the assistant.
type Settings struct {
	// Server
	ListenAddr      string
	ShutdownTimeout time.Duration

	// Storage
	DatabasePath string

	// Model
	AnthropicModel   string
	AnthropicKey     string
	ModelMaxTokens   int

	// Notifications
	SMSEnabled bool
	AWSRegion  string

	// Dispatch: "local" runs all pipelines in-process; "http" forwards
	// to a remote agent server at AgentsBaseURL.
	InvokerMode   string
	AgentsBaseURL string

	// Logging
	LogLevel  string
	LogFormat string
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		ListenAddr:      ":8080",
		ShutdownTimeout: 10 * time.Second,
		DatabasePath:    "smartdoc.db",
		AnthropicModel:  "claude-3-5-haiku-latest",
		ModelMaxTokens:  1024,
		SMSEnabled:      false,
		AWSRegion:       "eu-west-1",
		InvokerMode:     "local",
		AgentsBaseURL:   "http://localhost:8081",
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads settings from an optional config file and the environment.
// Precedence, lowest to highest: defaults, file, environment.
// An empty path skips the file entirely.
func Load(path string) (Settings, error) {
	s := Defaults()

	if path != "" {
		cfg, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		s.apply(cfg)
	}

	s.applyEnv()
	return s, nil
}

// apply overlays file values onto the settings.
func (s *Settings) apply(cfg Config) {
	server := cfg.Section("server")
	s.ListenAddr = server.String("listen_addr", s.ListenAddr)
	s.ShutdownTimeout = server.Duration("shutdown_timeout", s.ShutdownTimeout)

	storage := cfg.Section("storage")
	s.DatabasePath = storage.String("database_path", s.DatabasePath)

	model := cfg.Section("model")
	s.AnthropicModel = model.String("name", s.AnthropicModel)
	s.ModelMaxTokens = model.Int("max_tokens", s.ModelMaxTokens)

	notifications := cfg.Section("notifications")
	s.SMSEnabled = notifications.Bool("sms_enabled", s.SMSEnabled)
	s.AWSRegion = notifications.String("aws_region", s.AWSRegion)

	dispatch := cfg.Section("dispatch")
	s.InvokerMode = dispatch.String("mode", s.InvokerMode)
	s.AgentsBaseURL = dispatch.String("agents_base_url", s.AgentsBaseURL)

	logging := cfg.Section("logging")
	s.LogLevel = logging.String("level", s.LogLevel)
	s.LogFormat = logging.String("format", s.LogFormat)
}

// applyEnv overlays environment variables. The API key is only read
// from the environment, never from the file.
func (s *Settings) applyEnv() {
	s.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")

	if v := os.Getenv("SMARTDOC_LISTEN_ADDR"); v != "" {
		s.ListenAddr = v
	}
	if v := os.Getenv("SMARTDOC_DB_PATH"); v != "" {
		s.DatabasePath = v
	}
	if v := os.Getenv("SMARTDOC_MODEL"); v != "" {
		s.AnthropicModel = v
	}
	if v := os.Getenv("SMARTDOC_INVOKER_MODE"); v != "" {
		s.InvokerMode = v
	}
	if v := os.Getenv("SMARTDOC_AGENTS_BASE_URL"); v != "" {
		s.AgentsBaseURL = v
	}
	if v := os.Getenv("SMARTDOC_LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
}
