package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "id", cfg.Signing.IDAttribute)
	assert.Equal(t, "http://vde.com/fnn/stb/certificates/1.4.0", cfg.Signing.CertificatesNamespace)
	assert.Equal(t, "certificates", cfg.Signing.CertificatesContainer)
	assert.Equal(t, "certificate", cfg.Signing.CertificateNode)
	assert.Equal(t, "sig=http://www.w3.org/2000/09/xmldsig#", cfg.Signing.NamespaceBindings)
	assert.Equal(t, "//sig:Signature", cfg.Signing.QueryExpression)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "6002", cfg.Server.Port)
	assert.Equal(t, 100, cfg.Server.RateLimitRPS)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Signing, cfg.Signing)
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
signing:
  id_attribute: xml-id
  query_expression: "//ds:Signature"
  namespace_bindings: "ds=http://www.w3.org/2000/09/xmldsig#"
logging:
  level: debug
server:
  port: "7000"
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "xml-id", cfg.Signing.IDAttribute)
	assert.Equal(t, "//ds:Signature", cfg.Signing.QueryExpression)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "7000", cfg.Server.Port)

	// Values absent from the file keep their defaults.
	assert.Equal(t, "certificates", cfg.Signing.CertificatesContainer)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadConfig_FileMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signing: [not a map"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GX_ID_ATTRIBUTE", "env-id")
	t.Setenv("GX_QUERY", "//env:Signature")
	t.Setenv("GX_LOG_LEVEL", "error")
	t.Setenv("GX_PORT", "9999")
	t.Setenv("GX_RATE_LIMIT_RPS", "5")
	t.Setenv("GX_KEY_FILE", "/tmp/key.pem")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "env-id", cfg.Signing.IDAttribute)
	assert.Equal(t, "//env:Signature", cfg.Signing.QueryExpression)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Server.RateLimitRPS)
	assert.Equal(t, "/tmp/key.pem", cfg.Server.KeyFile)
}

func TestLoadConfig_EnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signing:\n  id_attribute: file-id\n"), 0o644))
	t.Setenv("GX_ID_ATTRIBUTE", "env-id")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-id", cfg.Signing.IDAttribute)
}

func TestLoadConfig_BadRateLimitEnvIgnored(t *testing.T) {
	t.Setenv("GX_RATE_LIMIT_RPS", "not-a-number")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Server.RateLimitRPS)
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty id attribute", func(c *Config) { c.Signing.IDAttribute = "" }},
		{"empty query", func(c *Config) { c.Signing.QueryExpression = "" }},
		{"empty container", func(c *Config) { c.Signing.CertificatesContainer = "" }},
		{"empty certificate node", func(c *Config) { c.Signing.CertificateNode = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"zero rate limit", func(c *Config) { c.Server.RateLimitRPS = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_CaseInsensitiveLevels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "DEBUG"
	cfg.Logging.Format = "JSON"
	assert.NoError(t, cfg.Validate())
}
