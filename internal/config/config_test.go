package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/model"
)

func companyWith(key, start, end string) model.CompanyConfig {
	return model.CompanyConfig{Key: key, StartDate: start, EndDate: end}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "outputs", cfg.Output.Dir)
	assert.True(t, cfg.Portal.Headless)
	assert.Equal(t, 3, cfg.Portal.MaxEmptyPages)
	assert.Equal(t, 200, cfg.Portal.MaxPages)
	assert.Equal(t, 3, cfg.Anthropic.MaxChunks)
	assert.Equal(t, 3000, cfg.Anthropic.ChunkSize)
	assert.Equal(t, "https://icd10api.com", cfg.ICD.BaseURL)
	assert.InDelta(t, 40.0, cfg.TextExtract.OCRThreshold, 0.001)
	assert.Equal(t, 5, cfg.Download.Concurrency)
	assert.Equal(t, 3, cfg.Download.MaxAttempts)
	assert.Equal(t, 4, cfg.Upload.Concurrency)
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
  format: console
portal:
  base_url: https://portal.example.com
  username: svc
  password: secret
companies:
  - key: example_health
    name: Example Health
    pg_company_id: d10f46ad-225d-4ba2-882c-149521fcead5
    helper_id: helper01
    sources: [Signed]
    allowed_types: ["485"]
    start_date: 07/01/2025
    end_date: 07/07/2025
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Companies, 1)
	co := cfg.Companies[0]
	assert.Equal(t, "example_health", co.Key)
	assert.Equal(t, "Example Health", co.Name)
	assert.Equal(t, []string{"485"}, co.AllowedTypes)

	c, ok := cfg.Company("example_health")
	require.True(t, ok)
	assert.Equal(t, "Example Health", c.Name)
	_, ok = cfg.Company("missing")
	assert.False(t, ok)

	// Defaults still apply for unset values.
	assert.Equal(t, 5, cfg.Download.Concurrency)

	assert.NoError(t, cfg.Validate("extract"))
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("ORDERSYNC_LOG_LEVEL", "warn")
	t.Setenv("ORDERSYNC_PORTAL_TEST_NPI", "1234567890")
	t.Setenv("ORDERSYNC_PORTAL_USERNAME", "scraper@example.com")
	t.Setenv("ORDERSYNC_PORTAL_API_TOKEN", "tok-123")
	t.Setenv("ORDERSYNC_ANTHROPIC_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "1234567890", cfg.Portal.TestNPI)
	assert.Equal(t, "scraper@example.com", cfg.Portal.Username)
	assert.Equal(t, "tok-123", cfg.PortalAPI.Token)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestValidateExtract_Missing(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "companies list is required")
	assert.Contains(t, err.Error(), "portal.base_url is required")
}

func TestValidateAcquire(t *testing.T) {
	cfg := &Config{}
	cfg.Download.Concurrency = 5
	err := cfg.Validate("acquire")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portal_api.base_url")

	cfg.PortalAPI.BaseURL = "https://api.example.com"
	cfg.PortalAPI.Token = "tok"
	assert.NoError(t, cfg.Validate("acquire"))

	cfg.Download.Concurrency = 0
	assert.Error(t, cfg.Validate("acquire"))
}

func TestValidateUpload(t *testing.T) {
	cfg := &Config{}
	cfg.Upload.Concurrency = 4
	err := cfg.Validate("upload")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platform.base_url")

	cfg.Platform.BaseURL = "https://platform.example.com"
	assert.NoError(t, cfg.Validate("upload"))
}

func TestValidateBadWindow(t *testing.T) {
	cfg := &Config{}
	cfg.Portal.BaseURL = "x"
	cfg.Portal.Username = "u"
	cfg.Portal.Password = "p"
	cfg.Companies = append(cfg.Companies, companyWith("k", "07/07/2025", "07/01/2025"))

	err := cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MM/DD/YYYY window")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate("bogus")
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}
