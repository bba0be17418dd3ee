// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, durations and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "pairchat.yaml", `
server:
  http_addr: "0.0.0.0:9000"
database:
  driver: sqlite
  path: "./chat.db"
auth:
  jwt_secret: "s3cret"
realtime:
  send_buffer: 32
  write_wait: "5s"
  ping_period: "20s"
  read_timeout: "45s"
  request_timeout: "2s"
  max_frame_bytes: 4096
  allowed_origins:
    - "https://chat.example.com"
redis:
  enabled: true
  url: "redis://localhost:6379/0"
  dedupe_ttl: "90s"
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.HTTPAddr)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "./chat.db", cfg.Database.Path)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 32, cfg.Realtime.SendBuffer)
	assert.Equal(t, 5*time.Second, cfg.Realtime.WriteWait)
	assert.Equal(t, 20*time.Second, cfg.Realtime.PingPeriod)
	assert.Equal(t, 45*time.Second, cfg.Realtime.ReadTimeout)
	assert.Equal(t, 2*time.Second, cfg.Realtime.RequestTimeout)
	assert.Equal(t, int64(4096), cfg.Realtime.MaxFrameBytes)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.Realtime.AllowedOrigins)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "pairchat:conv:", cfg.Redis.ChannelPrefix)
	assert.Equal(t, 90*time.Second, cfg.Redis.DedupeTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "pairchat.toml", `
[server]
http_addr = "127.0.0.1:7000"

[database]
driver = "postgres"
dsn = "postgres://chat@localhost/chat"

[auth]
jwt_secret = "toml-secret"

[realtime]
read_timeout = "2m"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Server.HTTPAddr)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://chat@localhost/chat", cfg.Database.DSN)
	assert.Equal(t, "toml-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Minute, cfg.Realtime.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Realtime.PingPeriod)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "minimal.yaml", `
auth:
  jwt_secret: "x"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Server, cfg.Server)
	assert.Equal(t, def.Database, cfg.Database)
	assert.Equal(t, def.Realtime, cfg.Realtime)
	assert.Equal(t, def.Logging, cfg.Logging)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("PAIRCHAT_TEST_SECRET", "from-env")
	t.Setenv("PAIRCHAT_TEST_DSN", "postgres://env@db/chat")

	path := writeConfig(t, "env.yaml", `
database:
  driver: postgres
  dsn: "${PAIRCHAT_TEST_DSN}"
auth:
  jwt_secret: "${PAIRCHAT_TEST_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "postgres://env@db/chat", cfg.Database.DSN)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing secret",
			content: "server:\n  http_addr: \":8080\"\n",
			wantErr: "auth.jwt_secret is required",
		},
		{
			name:    "unset env secret",
			content: "auth:\n  jwt_secret: \"${PAIRCHAT_TEST_UNSET_VAR}\"\n",
			wantErr: "auth.jwt_secret is required",
		},
		{
			name:    "unknown driver",
			content: "auth:\n  jwt_secret: x\ndatabase:\n  driver: mysql\n",
			wantErr: "database.driver",
		},
		{
			name:    "postgres without dsn",
			content: "auth:\n  jwt_secret: x\ndatabase:\n  driver: postgres\n",
			wantErr: "database.dsn is required",
		},
		{
			name:    "bad duration",
			content: "auth:\n  jwt_secret: x\nrealtime:\n  write_wait: soon\n",
			wantErr: "realtime.write_wait",
		},
		{
			name:    "ping not shorter than read timeout",
			content: "auth:\n  jwt_secret: x\nrealtime:\n  ping_period: 60s\n  read_timeout: 60s\n",
			wantErr: "realtime.ping_period",
		},
		{
			name:    "redis without url",
			content: "auth:\n  jwt_secret: x\nredis:\n  enabled: true\n",
			wantErr: "redis.url is required",
		},
		{
			name:    "bad log format",
			content: "auth:\n  jwt_secret: x\nlogging:\n  format: xml\n",
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "bad.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PAIRCHAT_DOTENV_TEST=loaded\n"), 0644))
	t.Setenv("PAIRCHAT_DOTENV_TEST", "")
	os.Unsetenv("PAIRCHAT_DOTENV_TEST")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envPath))
	assert.Equal(t, "loaded", os.Getenv("PAIRCHAT_DOTENV_TEST"))
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PAIRCHAT_DOTENV_KEEP=file\n"), 0644))
	t.Setenv("PAIRCHAT_DOTENV_KEEP", "process")

	require.NoError(t, LoadDotEnv(envPath))
	assert.Equal(t, "process", os.Getenv("PAIRCHAT_DOTENV_KEEP"))
}
