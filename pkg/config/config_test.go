package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConfig_String tests string extraction with defaults.
func TestConfig_String(t *testing.T) {
	cfg := New(map[string]any{"name": "smartdoc", "port": 8080})

	assert.Equal(t, "smartdoc", cfg.String("name", "fallback"))
	assert.Equal(t, "fallback", cfg.String("missing", "fallback"))
	assert.Equal(t, "fallback", cfg.String("port", "fallback"))
}

// TestConfig_Int tests int extraction across numeric types.
func TestConfig_Int(t *testing.T) {
	cfg := New(map[string]any{
		"int":      5,
		"int64":    int64(6),
		"whole":    float64(7),
		"fraction": 7.5,
		"text":     "8",
	})

	assert.Equal(t, 5, cfg.Int("int", 0))
	assert.Equal(t, 6, cfg.Int("int64", 0))
	assert.Equal(t, 7, cfg.Int("whole", 0))
	assert.Equal(t, 0, cfg.Int("fraction", 0))
	assert.Equal(t, 0, cfg.Int("text", 0))
	assert.Equal(t, 9, cfg.Int("missing", 9))
}

// TestConfig_Bool tests bool extraction.
func TestConfig_Bool(t *testing.T) {
	cfg := New(map[string]any{"on": true, "text": "true"})

	assert.True(t, cfg.Bool("on", false))
	assert.False(t, cfg.Bool("text", false))
	assert.True(t, cfg.Bool("missing", true))
}

// TestConfig_Duration tests duration extraction across formats.
func TestConfig_Duration(t *testing.T) {
	cfg := New(map[string]any{
		"text":    "30s",
		"seconds": 10,
		"float":   1.5,
		"bad":     "not a duration",
	})

	assert.Equal(t, 30*time.Second, cfg.Duration("text", 0))
	assert.Equal(t, 10*time.Second, cfg.Duration("seconds", 0))
	assert.Equal(t, 1500*time.Millisecond, cfg.Duration("float", 0))
	assert.Equal(t, time.Minute, cfg.Duration("bad", time.Minute))
	assert.Equal(t, time.Minute, cfg.Duration("missing", time.Minute))
}

// TestConfig_Section tests nested map access.
func TestConfig_Section(t *testing.T) {
	cfg := New(map[string]any{
		"server": map[string]any{"listen_addr": ":9090"},
		"scalar": 1,
	})

	assert.Equal(t, ":9090", cfg.Section("server").String("listen_addr", ""))
	assert.Equal(t, "d", cfg.Section("scalar").String("k", "d"))
	assert.Equal(t, "d", cfg.Section("missing").String("k", "d"))
}

// TestFromYAML tests YAML parsing.
func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte("name: smartdoc\nserver:\n  listen_addr: \":9090\"\n"))

	require.NoError(t, err)
	assert.Equal(t, "smartdoc", cfg.String("name", ""))
	assert.Equal(t, ":9090", cfg.Section("server").String("listen_addr", ""))
}

// TestFromYAML_Invalid tests malformed YAML.
func TestFromYAML_Invalid(t *testing.T) {
	_, err := FromYAML([]byte(":\n  - ]["))
	assert.Error(t, err)
}

// TestFromJSON tests JSON parsing.
func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{"name": "smartdoc"}`))

	require.NoError(t, err)
	assert.Equal(t, "smartdoc", cfg.String("name", ""))
}

// TestFromFile tests extension detection.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: from-yaml"), 0o644))
	cfg, err := FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", cfg.String("name", ""))

	txtPath := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o644))
	_, err = FromFile(txtPath)
	assert.Error(t, err)

	_, err = FromFile(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}

// TestLoad_Defaults tests settings without a file.
func TestLoad_Defaults(t *testing.T) {
	s, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, ":8080", s.ListenAddr)
	assert.Equal(t, "local", s.InvokerMode)
	assert.Equal(t, "claude-3-5-haiku-latest", s.AnthropicModel)
	assert.Equal(t, 1024, s.ModelMaxTokens)
	assert.False(t, s.SMSEnabled)
}

// TestLoad_FileOverridesDefaults tests the file layer.
func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartdoc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen_addr: ":9999"
  shutdown_timeout: 5s
storage:
  database_path: /tmp/test.db
model:
  name: claude-3-haiku-20240307
  max_tokens: 512
notifications:
  sms_enabled: true
  aws_region: eu-west-3
dispatch:
  mode: http
  agents_base_url: http://agents:8081
logging:
  level: debug
`), 0o644))

	s, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":9999", s.ListenAddr)
	assert.Equal(t, 5*time.Second, s.ShutdownTimeout)
	assert.Equal(t, "/tmp/test.db", s.DatabasePath)
	assert.Equal(t, "claude-3-haiku-20240307", s.AnthropicModel)
	assert.Equal(t, 512, s.ModelMaxTokens)
	assert.True(t, s.SMSEnabled)
	assert.Equal(t, "eu-west-3", s.AWSRegion)
	assert.Equal(t, "http", s.InvokerMode)
	assert.Equal(t, "http://agents:8081", s.AgentsBaseURL)
	assert.Equal(t, "debug", s.LogLevel)
}

// TestLoad_EnvOverridesFile tests the environment layer.
func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartdoc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen_addr: \":9999\"\n"), 0o644))

	t.Setenv("SMARTDOC_LISTEN_ADDR", ":7777")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	s, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":7777", s.ListenAddr)
	assert.Equal(t, "sk-test", s.AnthropicKey)
}
