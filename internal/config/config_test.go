package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJSON = `{
	"server_address": ":3000",
	"mongo_uri": "mongodb://json-host:27017",
	"file_storage_path": "json_storage.json",
	"database_dsn": "json-dsn",
	"jwt_secret": "json-secret",
	"cors_allowed_origins": ["http://json.example.com"]
}`

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	file, err := os.CreateTemp(t.TempDir(), "config*.json")
	require.NoError(t, err)
	_, err = file.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	return file.Name()
}

func TestDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.RunAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "recipebook", cfg.MongoDatabase)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadSize)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.ImageCleanupEnabled)
	assert.Equal(t, 256, cfg.ImageCleanupQueueCapacity)
	assert.Equal(t, 5*time.Second, cfg.ImageCleanupInterval)
}

func TestPortSetsListenAddress(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("PORT", "8081")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.RunAddr)

	t.Setenv("SERVER_ADDRESS", "localhost:9090")
	cfg, err = New(WithDisableFlagsParsing(true))
	require.NoError(t, err)
	assert.Equal(t, "localhost:9090", cfg.RunAddr)
}

func TestSecretIsRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := New(WithDisableFlagsParsing(true))
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown log level", env: map[string]string{"LOG_LEVEL": "verbose"}},
		{name: "bad trusted subnet", env: map[string]string{"TRUSTED_SUBNET": "10.0.0.0"}},
		{name: "s3 endpoint without bucket", env: map[string]string{"S3_ENDPOINT": "localhost:9000"}},
		{name: "non-positive upload limit", env: map[string]string{"MAX_UPLOAD_SIZE": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "env-secret")
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := New(WithDisableFlagsParsing(true))
			assert.Error(t, err)
		})
	}
}

func TestConfigPriorityJSONOnly(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.RunAddr)
	assert.Equal(t, "mongodb://json-host:27017", cfg.MongoURI)
	assert.Equal(t, "json_storage.json", cfg.DBFileName)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN)
	assert.Equal(t, "json-secret", cfg.JWTSecret)
	assert.Equal(t, []string{"http://json.example.com"}, cfg.CORSAllowedOrigins)
}

func TestConfigPriorityJSONPlusEnv(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example.com,http://b.example.com")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.RunAddr) // env overrides json
	assert.Equal(t, "env-secret", cfg.JWTSecret)
	assert.Equal(t, []string{"http://a.example.com", "http://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
}

func TestConfigPriorityAllSources(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("JWT_SECRET", "env-secret")

	oldArgs := os.Args
	t.Cleanup(func() {
		os.Args = oldArgs
	})
	os.Args = []string{
		"testbin",
		"-a", ":6000",
		"-s", "cli-secret",
		"-u", "cli-uploads",
	}

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.RunAddr) // CLI > ENV > JSON
	assert.Equal(t, "cli-secret", cfg.JWTSecret)
	assert.Equal(t, "cli-uploads", cfg.UploadDir)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
}

func TestImageCleanupIsOptIn(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("IMAGE_CLEANUP_ENABLED", "true")
	t.Setenv("IMAGE_CLEANUP_INTERVAL", "1m")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)
	assert.True(t, cfg.ImageCleanupEnabled)
	assert.Equal(t, time.Minute, cfg.ImageCleanupInterval)
}
