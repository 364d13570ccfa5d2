package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"server"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, ":8080", cfg.EndpointAddr)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 24*time.Hour, cfg.RefreshTokenValidityDuration)
	assert.Equal(t, "vault-exports", cfg.S3Bucket)
	assert.Len(t, cfg.MasterKeyHex, 64)
}

func TestParseFlags_Overrides(t *testing.T) {
	withArgs(t, "-a", ":9090", "-d", "postgres://x", "-k", "deadbeef", "-t", "30", "-b", "other-bucket")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, ":9090", cfg.EndpointAddr)
	assert.Equal(t, "postgres://x", cfg.DatabaseDSN)
	assert.Equal(t, "deadbeef", cfg.MasterKeyHex)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, "other-bucket", cfg.S3Bucket)
	// untouched fields keep their defaults
	assert.Equal(t, "secretKey", cfg.SecretKey)
}

func TestParseJson_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"endpoint_addr": ":7070",
		"database_dsn": "postgres://json",
		"secret_key": "json-secret",
		"master_key_hex": "aa",
		"access_token_validity_duration": "45m",
		"refresh_token_validity_duration": "72h",
		"s3_root_user": "ju",
		"s3_root_password": "jp",
		"s3_bucket": "jb",
		"s3_region": "jr",
		"s3_base_endpoint": "http://json:9000/"
	}`), 0o600))

	withArgs(t, "-c", path)

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":7070", cfg.EndpointAddr)
	assert.Equal(t, "postgres://json", cfg.DatabaseDSN)
	assert.Equal(t, "json-secret", cfg.SecretKey)
	assert.Equal(t, 45*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 72*time.Hour, cfg.RefreshTokenValidityDuration)
	assert.Equal(t, "jb", cfg.S3Bucket)
}

func TestLoadConfig_FlagsBeatJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"endpoint_addr": ":7070",
		"database_dsn": "postgres://json",
		"secret_key": "json-secret",
		"master_key_hex": "aa",
		"access_token_validity_duration": "45m",
		"refresh_token_validity_duration": "72h"
	}`), 0o600))

	withArgs(t, "-c", path, "-a", ":6060")

	cfg := LoadConfig()

	assert.Equal(t, ":6060", cfg.EndpointAddr)
	assert.Equal(t, "postgres://json", cfg.DatabaseDSN)
}
