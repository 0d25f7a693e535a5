package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	xdgAppName = "tasksheet"
	configFile = "config.json"
	envPrefix  = "TASKSHEET"

	DefaultSpreadsheet = "Tasks"
)

type Mail struct {
	// Transport is "gmail" or "smtp".
	Transport      string `json:"transport" mapstructure:"transport"`
	From           string `json:"from" mapstructure:"from"`
	FromName       string `json:"from_name" mapstructure:"from_name"`
	Subject        string `json:"subject" mapstructure:"subject"`
	Salutation     string `json:"salutation" mapstructure:"salutation"`
	AppLink        string `json:"app_link" mapstructure:"app_link"`
	SMTPHost       string `json:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort       int    `json:"smtp_port" mapstructure:"smtp_port"`
	Username       string `json:"username" mapstructure:"username"`
	Password       string `json:"password,omitempty" mapstructure:"password"`
	ClearAfterSend bool   `json:"clear_after_send" mapstructure:"clear_after_send"`
}

type Config struct {
	Spreadsheet   string `json:"spreadsheet" mapstructure:"spreadsheet"`
	SpreadsheetID string `json:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	// Backend is "sheets" or "sqlite".
	Backend    string        `json:"backend" mapstructure:"backend"`
	SQLitePath string        `json:"sqlite_path" mapstructure:"sqlite_path"`
	RedisAddr  string        `json:"redis_addr" mapstructure:"redis_addr"`
	CacheTTL   time.Duration `json:"cache_ttl" mapstructure:"cache_ttl"`
	// Timeout bounds every round trip to the store and the mail transport.
	Timeout    time.Duration     `json:"timeout" mapstructure:"timeout"`
	MaxRows    int               `json:"max_rows" mapstructure:"max_rows"`
	Listen     string            `json:"listen" mapstructure:"listen"`
	Mail       Mail              `json:"mail" mapstructure:"mail"`
	Recipients map[string]string `json:"recipients" mapstructure:"recipients"`
}

func GetConfigPath() (string, error) {
	xdgHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(xdgHome, ".config", xdgAppName, configFile), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("spreadsheet", DefaultSpreadsheet)
	v.SetDefault("backend", "sheets")
	v.SetDefault("sqlite_path", "tasksheet.db")
	v.SetDefault("cache_ttl", "5m")
	v.SetDefault("timeout", "30s")
	v.SetDefault("max_rows", 1000)
	v.SetDefault("listen", ":8080")
	v.SetDefault("mail.transport", "gmail")
	v.SetDefault("mail.subject", "[Task Ledger] Tasks needing your attention")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.clear_after_send", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows about.
	for _, key := range []string{
		"spreadsheet_id", "redis_addr",
		"mail.from", "mail.from_name", "mail.salutation", "mail.app_link",
		"mail.smtp_host", "mail.username", "mail.password",
	} {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the config file if present, layering TASKSHEET_* environment
// variables and defaults underneath.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Spreadsheet == "" {
		cfg.Spreadsheet = DefaultSpreadsheet
	}
	if cfg.Recipients == nil {
		cfg.Recipients = map[string]string{}
	}
	return &cfg, nil
}

func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

func SaveFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}
