package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	var c Config
	c.Database.MaxReadConns = 10
	c.Alerts.Strategy = StrategyGroupBy
	c.Alerts.TimeBudget = 3 * time.Second
	return &c
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().validate())

	c := validConfig()
	c.Alerts.Strategy = "fastest"
	assert.Error(t, c.validate())

	c = validConfig()
	c.Alerts.TimeBudget = 0
	assert.Error(t, c.validate())

	c = validConfig()
	c.Database.MaxReadConns = 0
	assert.Error(t, c.validate())
}

func TestValidate_StreamStrategy(t *testing.T) {
	c := validConfig()
	c.Alerts.Strategy = StrategyStream
	assert.NoError(t, c.validate())
}

func TestResolveDataPaths(t *testing.T) {
	c := validConfig()
	c.resolveDataPaths()
	assert.Equal(t, "./data", c.DataPaths.DataDir)
	assert.Equal(t, filepath.Join("./data", "events.sqlite"), c.DataPaths.DatabasePath)

	c = validConfig()
	c.DataPaths.DataDir = "/var/lib/eveconsole"
	c.resolveDataPaths()
	assert.Equal(t, "/var/lib/eveconsole/events.sqlite", c.DataPaths.DatabasePath)

	// An explicit database path wins over the derived one.
	c = validConfig()
	c.DataPaths.DataDir = "/var/lib/eveconsole"
	c.DataPaths.DatabasePath = "/tmp/other.sqlite"
	c.resolveDataPaths()
	assert.Equal(t, "/tmp/other.sqlite", c.DataPaths.DatabasePath)
}
