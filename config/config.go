package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stanzadev/stanza-chat/globals"
)

const (
	defaultHistorySize = 100
)

// Config is the global configuration object which is filled via the
// configuration file and/or environment/flags.
type Config struct {
	HistoryConfig     HistoryConfig     `mapstructure:"history"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	SeedAccounts      []SeedAccount     `mapstructure:"seed_account"`
	LogLevel          string            `mapstructure:"log_level"`
	PruneSchedule     string            `mapstructure:"prune_schedule"` // cron spec, empty disables the empty-room sweep
}

// HistoryConfig configures the size of the event history that is kept in
// memory in a ring buffer and replayed to newly attached subscribers.
type HistoryConfig struct {
	HistorySize int `mapstructure:"history_size"`
}

// PersistenceConfig selects the optional persistence backend. Type is one of
// "buntdb", "sqlite" or "postgres"; for buntdb the DSN is a file path
// (":memory:" works). An empty type leaves the engine purely in-memory.
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// A SeedAccount is created at boot when absent; all seed accounts are
// mutually friended, and newly registered accounts are auto-friended with
// them (see directory.ApplySeedPolicy).
type SeedAccount struct {
	Id       string `mapstructure:"id"`
	Password string `mapstructure:"password"`
	Nickname string `mapstructure:"nickname"`
	Email    string `mapstructure:"email"`
	Phone    string `mapstructure:"phone"`
}

func (c *Config) HistorySize() int {
	if c.HistoryConfig.HistorySize > 0 {
		return c.HistoryConfig.HistorySize
	}
	return defaultHistorySize
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.StringP("log-level", "l", "", "log level (TRACE/DEBUG/INFO/WARN/ERROR)")
	flagSet.String("prune-schedule", "", "cron schedule for the empty-room sweep")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.Replace(name, "-", "_", -1))
}

// ReadConfiguration reads and parses the configuration located at configPath,
// which can either point to a single TOML file or to a directory, in which
// case all *.toml files in this directory are concatenated. It returns a
// Config object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("log_level", "INFO")
	if err := viper.BindPFlags(flagSet); err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("STANZA")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		if err := viper.ReadConfig(bytes.NewBuffer(contents)); err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	globals.AppLogger.Debug("config", "cfg", cfg)
	return &cfg, nil
}
