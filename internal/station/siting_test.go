package station_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpi3seismo/stationd/internal/config"
	"github.com/rpi3seismo/stationd/internal/station"
)

func TestSitingLineNilLocation(t *testing.T) {
	line, err := station.SitingLine(nil)
	require.NoError(t, err)
	assert.Empty(t, line)
}

func TestSitingLineValidCoordinate(t *testing.T) {
	loc := &config.Location{Latitude: 45.0, Longitude: -93.0}

	line, err := station.SitingLine(loc)
	require.NoError(t, err)
	assert.Contains(t, line, "UTM zone")
}
