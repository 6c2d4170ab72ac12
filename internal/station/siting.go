// Package station turns an optional geodetic station location into a
// human-readable UTM siting line for the startup log. It has no bearing
// on MiniSEED headers or any other persisted data.
package station

import (
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/tzneal/coordconv"

	"github.com/rpi3seismo/stationd/internal/config"
)

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}

// hemisphereRune renders a coordconv.Hemisphere as its conventional letter.
func hemisphereRune(h coordconv.Hemisphere) rune {
	switch h {
	case coordconv.HemisphereNorth:
		return 'N'
	case coordconv.HemisphereSouth:
		return 'S'
	default:
		return '?'
	}
}

// SitingLine converts loc to a UTM description suitable for a single log
// line, or an empty string if loc is nil. Conversion failure is reported
// as an error rather than silently omitted, since it usually indicates a
// bad coordinate in the configuration file.
func SitingLine(loc *config.Location) (string, error) {
	if loc == nil {
		return "", nil
	}

	latlng := s2.LatLng{
		Lat: s1.Angle(degreesToRadians(loc.Latitude)),
		Lng: s1.Angle(degreesToRadians(loc.Longitude)),
	}

	utm, err := coordconv.DefaultUTMConverter.ConvertFromGeodetic(latlng, 0)
	if err != nil {
		return "", fmt.Errorf("station: converting (%.5f, %.5f) to UTM: %w", loc.Latitude, loc.Longitude, err)
	}

	return fmt.Sprintf("UTM zone %d%c, easting %.0fm, northing %.0fm",
		utm.Zone, hemisphereRune(utm.Hemisphere), utm.Easting, utm.Northing), nil
}
