package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/donation-cli/internal/store"
	"github.com/sells-group/donation-cli/pkg/directory"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Directory  DirectoryConfig  `yaml:"directory" mapstructure:"directory"`
	Judge      JudgeConfig      `yaml:"judge" mapstructure:"judge"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Ledger     LedgerConfig     `yaml:"ledger" mapstructure:"ledger"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// DirectoryConfig holds customer directory CRM auth settings.
type DirectoryConfig struct {
	ClientID  string  `yaml:"client_id" mapstructure:"client_id"`
	Username  string  `yaml:"username" mapstructure:"username"`
	KeyPath   string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL  string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// JudgeConfig holds match verification model settings.
type JudgeConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ExtractionConfig holds the check scanning service settings.
type ExtractionConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FetchConfig configures remote batch file retrieval.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FTPUser     string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// MatchConfig configures the customer matching pass.
type MatchConfig struct {
	Stopwords         []string `yaml:"stopwords" mapstructure:"stopwords"`
	StopwordsFile     string   `yaml:"stopwords_file" mapstructure:"stopwords_file"`
	CacheTTLSecs      int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	LookupConcurrency int      `yaml:"lookup_concurrency" mapstructure:"lookup_concurrency"`
	RecordConcurrency int      `yaml:"record_concurrency" mapstructure:"record_concurrency"`
}

// LoadStopwords resolves the effective stopword list. An inline list wins;
// otherwise the stopwords file is read if set. Returns nil when neither is
// configured so callers fall back to the built-in list.
func (m MatchConfig) LoadStopwords() ([]string, error) {
	if len(m.Stopwords) > 0 {
		return m.Stopwords, nil
	}
	if m.StopwordsFile == "" {
		return nil, nil
	}

	data, err := os.ReadFile(m.StopwordsFile)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read stopwords file %s", m.StopwordsFile)
	}

	var words []string
	if err := yaml.Unmarshal(data, &words); err != nil {
		return nil, eris.Wrapf(err, "config: parse stopwords file %s", m.StopwordsFile)
	}
	return words, nil
}

// LedgerConfig identifies the destinations for posted receipts.
type LedgerConfig struct {
	DepositAccountID string `yaml:"deposit_account_id" mapstructure:"deposit_account_id"`
	ItemID           string `yaml:"item_id" mapstructure:"item_id"`
}

// Receipt converts the ledger settings into a receipt posting config.
func (l LedgerConfig) Receipt() directory.ReceiptConfig {
	return directory.ReceiptConfig{
		DepositAccountID: l.DepositAccountID,
		ItemID:           l.ItemID,
	}
}

// ServerConfig configures the review server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DONATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "donations.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("directory.login_url", "https://login.salesforce.com")
	v.SetDefault("directory.rate_limit", 10)
	v.SetDefault("judge.model", "claude-haiku-4-5-20251001")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("match.cache_ttl_secs", 300)
	v.SetDefault("match.lookup_concurrency", 8)
	v.SetDefault("match.record_concurrency", 4)

	// Read config file (optional)
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
