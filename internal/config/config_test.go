package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpi3seismo/stationd/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, config.Validate(config.Default()))
}

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.FileExists(t, path)

	reloaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}

func TestValidateRejectsNonDivisibleDecimation(t *testing.T) {
	cfg := config.Default()
	cfg.SamplingRate = 100
	cfg.DecimationFactor = 3

	err := config.Validate(cfg)
	assert.True(t, config.IsInvalid(err))
}

func TestValidateRejectsDuplicateChannelNames(t *testing.T) {
	cfg := config.Default()
	cfg.Channels[1].Name = cfg.Channels[0].Name

	err := config.Validate(cfg)
	assert.True(t, config.IsInvalid(err))
}

func TestValidateEnforces13xMultiplexRule(t *testing.T) {
	cfg := config.Default()
	cfg.SamplingRate = 200
	cfg.ADCDataRateSPS = 500 // needs >= 2600

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.True(t, config.IsInvalid(err))
}

func TestTriggerChannelIsIndexZero(t *testing.T) {
	cfg := config.Default()
	ch, err := config.TriggerChannel(cfg)
	require.NoError(t, err)
	assert.Equal(t, "EHZ", ch.Name)
}
