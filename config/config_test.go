package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestReadConfigurationFile(t *testing.T) {
	viper.Reset()
	configFile := filepath.Join(t.TempDir(), "config.toml")
	contents := `
log_level = "DEBUG"
prune_schedule = "@hourly"

[history]
history_size = 42

[persistence]
type = "buntdb"
dsn = ":memory:"

[[seed_account]]
id = "test1"
password = "0000"
nickname = "Test One"

[[seed_account]]
id = "test2"
password = "0000"
nickname = "Test Two"
`
	assert.NoError(t, os.WriteFile(configFile, []byte(contents), 0o644))

	cfg, err := ReadConfiguration(configFile, GetFlagSet())
	assert.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "@hourly", cfg.PruneSchedule)
	assert.Equal(t, 42, cfg.HistorySize())
	assert.Equal(t, "buntdb", cfg.PersistenceConfig.Type)
	assert.Equal(t, ":memory:", cfg.PersistenceConfig.DSN)
	assert.Len(t, cfg.SeedAccounts, 2)
	assert.Equal(t, "test2", cfg.SeedAccounts[1].Id)
	assert.Equal(t, "Test Two", cfg.SeedAccounts[1].Nickname)
}

func TestReadConfigurationDir(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	// all *.toml files in the directory are concatenated
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "10-history.toml"),
		[]byte("[history]\nhistory_size = 7\n"), 0o644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "20-persistence.toml"),
		[]byte("[persistence]\ntype = \"buntdb\"\ndsn = \":memory:\"\n"), 0o644))

	cfg, err := ReadConfiguration(dir, GetFlagSet())
	assert.NoError(t, err)
	assert.Equal(t, 7, cfg.HistorySize())
	assert.Equal(t, "buntdb", cfg.PersistenceConfig.Type)
	assert.Equal(t, ":memory:", cfg.PersistenceConfig.DSN)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestReadConfigurationEnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("STANZA_LOG_LEVEL", "TRACE")

	cfg, err := ReadConfiguration("", GetFlagSet())
	assert.NoError(t, err)
	assert.Equal(t, "TRACE", cfg.LogLevel)
}

func TestReadConfigurationFlagOverride(t *testing.T) {
	viper.Reset()
	flagSet := GetFlagSet()
	assert.NoError(t, flagSet.Set("log-level", "WARN"))

	cfg, err := ReadConfiguration("", flagSet)
	assert.NoError(t, err)
	assert.Equal(t, "WARN", cfg.LogLevel)
}

func TestReadConfigurationMissingPath(t *testing.T) {
	viper.Reset()
	_, err := ReadConfiguration("/does/not/exist.toml", GetFlagSet())
	assert.Error(t, err)
}

func TestHistorySizeDefault(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, defaultHistorySize, cfg.HistorySize())
	cfg.HistoryConfig.HistorySize = 5
	assert.Equal(t, 5, cfg.HistorySize())
}
