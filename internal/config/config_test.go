package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "./generated", cfg.Storage.BasePath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "financial_report_fanout", cfg.Events.Exchange)
	assert.Equal(t, []string{"https://localhost:3000", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_SERVER_ADDRESS", ":9090")
	t.Setenv("APP_SERVER_ALLOWED_ORIGINS", "https://office.example.com, https://addin.example.com")
	t.Setenv("APP_STORAGE_BASEPATH", "/srv/reports")
	t.Setenv("APP_LOGGING_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, []string{"https://office.example.com", "https://addin.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/srv/reports", cfg.Storage.BasePath)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidateConfig(t *testing.T) {
	valid := Config{
		Server:  Server{Address: ":8080"},
		DB:      DB{Driver: "sqlite", DSN: "file::memory:"},
		Storage: Storage{Type: "local", BasePath: "./generated"},
		Logging: Logging{Level: "info"},
	}
	require.NoError(t, validateConfig(valid))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty address", func(c *Config) { c.Server.Address = "" }},
		{"unknown driver", func(c *Config) { c.DB.Driver = "mysql" }},
		{"empty dsn", func(c *Config) { c.DB.DSN = "" }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }},
		{"local without basepath", func(c *Config) { c.Storage.BasePath = "" }},
		{"s3 without bucket", func(c *Config) {
			c.Storage.Type = "s3"
			c.Storage.S3.Region = "eu-west-1"
		}},
		{"events without url", func(c *Config) {
			c.Events.Enabled = true
			c.Events.Exchange = "x"
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestStorageRoot(t *testing.T) {
	cfg := Config{Storage: Storage{BasePath: "generated"}}
	root, err := cfg.StorageRoot()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(root))
	assert.Equal(t, "generated", filepath.Base(root))
}

func TestStringHidesSecrets(t *testing.T) {
	cfg := Config{
		DB:      DB{Driver: "postgres", DSN: "postgres://user:secret@db/reports"},
		Storage: Storage{Type: "s3", S3: S3{AccessKey: "AKIA", SecretKey: "hidden-key"}},
	}
	s := cfg.String()
	assert.NotContains(t, s, "secret@db")
	assert.NotContains(t, s, "hidden-key")
	assert.Contains(t, s, "[HIDDEN]")
}

// chdir switches the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
