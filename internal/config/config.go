package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/silverline-health/ordersync/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Companies   []model.CompanyConfig `yaml:"companies" mapstructure:"companies"`
	Portal      PortalConfig          `yaml:"portal" mapstructure:"portal"`
	PortalAPI   PortalAPIConfig       `yaml:"portal_api" mapstructure:"portal_api"`
	Platform    PlatformConfig        `yaml:"platform" mapstructure:"platform"`
	Anthropic   AnthropicConfig       `yaml:"anthropic" mapstructure:"anthropic"`
	LocalLLM    LocalLLMConfig        `yaml:"local_llm" mapstructure:"local_llm"`
	ICD         ICDConfig             `yaml:"icd" mapstructure:"icd"`
	TextExtract TextExtractConfig     `yaml:"text_extract" mapstructure:"text_extract"`
	Download    DownloadConfig        `yaml:"download" mapstructure:"download"`
	Upload      UploadConfig          `yaml:"upload" mapstructure:"upload"`
	Drive       DriveConfig           `yaml:"drive" mapstructure:"drive"`
	SMTP        SMTPConfig            `yaml:"smtp" mapstructure:"smtp"`
	Store       StoreConfig           `yaml:"store" mapstructure:"store"`
	Output      OutputConfig          `yaml:"output" mapstructure:"output"`
	Log         LogConfig             `yaml:"log" mapstructure:"log"`
}

// PortalConfig configures the browser-driven portal extractor.
type PortalConfig struct {
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	Username        string `yaml:"username" mapstructure:"username"`
	Password        string `yaml:"password" mapstructure:"password"`
	Headless        bool   `yaml:"headless" mapstructure:"headless"`
	PageTimeoutSecs int    `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	MaxPages        int    `yaml:"max_pages" mapstructure:"max_pages"`
	MaxEmptyPages   int    `yaml:"max_empty_pages" mapstructure:"max_empty_pages"`
	NPIAttempts     int    `yaml:"npi_attempts" mapstructure:"npi_attempts"`
	NPIResetEvery   int    `yaml:"npi_reset_every" mapstructure:"npi_reset_every"`
	TestNPI         string `yaml:"test_npi" mapstructure:"test_npi"`
}

// PortalAPIConfig configures the authenticated single-document API.
type PortalAPIConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Token   string `yaml:"token" mapstructure:"token"`
}

// PlatformConfig configures the downstream platform REST API.
type PlatformConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	FunctionKey string  `yaml:"function_key" mapstructure:"function_key"`
	RateRPS     float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
}

// AnthropicConfig holds primary LLM settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxChunks int    `yaml:"max_chunks" mapstructure:"max_chunks"`
	ChunkSize int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// LocalLLMConfig holds fallback LLM settings (OpenAI-compatible local endpoint).
type LocalLLMConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ICDConfig configures the ICD code validation API.
type ICDConfig struct {
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RateRPS float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
}

// TextExtractConfig configures PDF text extraction and OCR fallback.
type TextExtractConfig struct {
	PdfToTextPath string  `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MutoolPath    string  `yaml:"mutool_path" mapstructure:"mutool_path"`
	TesseractPath string  `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	OCRThreshold  float64 `yaml:"ocr_threshold" mapstructure:"ocr_threshold"`
	OCRMaxPages   int     `yaml:"ocr_max_pages" mapstructure:"ocr_max_pages"`
}

// DownloadConfig bounds PDF acquisition.
type DownloadConfig struct {
	Concurrency      int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// UploadConfig bounds the upload stage.
type UploadConfig struct {
	Concurrency    int    `yaml:"concurrency" mapstructure:"concurrency"`
	CompanyCSVPath string `yaml:"company_csv_path" mapstructure:"company_csv_path"`
}

// DriveConfig configures the MinIO-backed PDF link store used to enrich
// failed report rows.
type DriveConfig struct {
	Endpoint      string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey     string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey     string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket        string `yaml:"bucket" mapstructure:"bucket"`
	UseSSL        bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url" mapstructure:"public_base_url"`
}

// SMTPConfig configures summary email delivery.
type SMTPConfig struct {
	Host     string   `yaml:"host" mapstructure:"host"`
	Port     int      `yaml:"port" mapstructure:"port"`
	Username string   `yaml:"username" mapstructure:"username"`
	Password string   `yaml:"password" mapstructure:"password"`
	From     string   `yaml:"from" mapstructure:"from"`
	To       []string `yaml:"to" mapstructure:"to"`
}

// StoreConfig configures the run-tracking database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OutputConfig configures the per-run artifact tree.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ORDERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ordersync.db")
	v.SetDefault("output.dir", "outputs")
	v.SetDefault("portal.headless", true)
	v.SetDefault("portal.page_timeout_secs", 30)
	v.SetDefault("portal.max_pages", 200)
	v.SetDefault("portal.max_empty_pages", 3)
	v.SetDefault("portal.npi_attempts", 3)
	v.SetDefault("portal.npi_reset_every", 25)
	v.SetDefault("platform.rate_rps", 5.0)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_chunks", 3)
	v.SetDefault("anthropic.chunk_size", 3000)
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("local_llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("local_llm.model", "llama3.1:8b")
	v.SetDefault("icd.base_url", "https://icd10api.com")
	v.SetDefault("icd.rate_rps", 2.0)
	v.SetDefault("text_extract.pdftotext_path", "pdftotext")
	v.SetDefault("text_extract.mutool_path", "mutool")
	v.SetDefault("text_extract.tesseract_path", "tesseract")
	v.SetDefault("text_extract.ocr_threshold", 40.0)
	v.SetDefault("text_extract.ocr_max_pages", 10)
	v.SetDefault("download.concurrency", 5)
	v.SetDefault("download.max_attempts", 3)
	v.SetDefault("download.initial_backoff_ms", 500)
	v.SetDefault("upload.concurrency", 4)
	v.SetDefault("smtp.port", 587)

	// AutomaticEnv only resolves registered keys, so credential and URL
	// keys without a meaningful default are registered empty to keep their
	// ORDERSYNC_ env overrides visible.
	for _, key := range []string{
		"portal.base_url",
		"portal.username",
		"portal.password",
		"portal.test_npi",
		"portal_api.base_url",
		"portal_api.token",
		"platform.base_url",
		"platform.function_key",
		"anthropic.key",
		"upload.company_csv_path",
		"drive.endpoint",
		"drive.access_key",
		"drive.secret_key",
		"drive.bucket",
		"drive.public_base_url",
		"smtp.host",
		"smtp.username",
		"smtp.password",
		"smtp.from",
	} {
		v.SetDefault(key, "")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Company returns the company config with the given key.
func (c *Config) Company(key string) (model.CompanyConfig, bool) {
	for _, co := range c.Companies {
		if co.Key == key {
			return co, true
		}
	}
	return model.CompanyConfig{}, false
}

// Validate checks the configuration for the given command mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	companiesRequired := func() {
		if len(c.Companies) == 0 {
			problems = append(problems, "companies list is required")
		}
		for _, co := range c.Companies {
			if co.Key == "" {
				problems = append(problems, "company key is required")
			}
			if _, _, ok := co.Window(); !ok {
				problems = append(problems, "company "+co.Key+": start_date/end_date must be a valid MM/DD/YYYY window")
			}
		}
	}

	switch mode {
	case "extract":
		companiesRequired()
		if c.Portal.BaseURL == "" {
			problems = append(problems, "portal.base_url is required")
		}
		if c.Portal.Username == "" || c.Portal.Password == "" {
			problems = append(problems, "portal credentials are required")
		}
	case "acquire":
		if c.PortalAPI.BaseURL == "" {
			problems = append(problems, "portal_api.base_url is required")
		}
		if c.PortalAPI.Token == "" {
			problems = append(problems, "portal_api.token is required")
		}
		if c.Download.Concurrency < 1 || c.Download.Concurrency > 50 {
			problems = append(problems, "download.concurrency must be between 1 and 50")
		}
	case "fields":
		if c.Anthropic.Key == "" && c.LocalLLM.BaseURL == "" {
			problems = append(problems, "anthropic.key or local_llm.base_url is required")
		}
	case "supreme", "upload":
		if c.Platform.BaseURL == "" {
			problems = append(problems, "platform.base_url is required")
		}
		if mode == "upload" && (c.Upload.Concurrency < 1 || c.Upload.Concurrency > 50) {
			problems = append(problems, "upload.concurrency must be between 1 and 50")
		}
	case "report":
		// Drive config is optional; reports degrade to linkless rows.
	case "run", "batch":
		companiesRequired()
		if c.Portal.BaseURL == "" {
			problems = append(problems, "portal.base_url is required")
		}
		if c.PortalAPI.BaseURL == "" || c.PortalAPI.Token == "" {
			problems = append(problems, "portal_api.base_url and portal_api.token are required")
		}
		if c.Platform.BaseURL == "" {
			problems = append(problems, "platform.base_url is required")
		}
	case "runs":
		// Store defaults always apply.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
