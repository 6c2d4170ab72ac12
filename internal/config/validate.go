package config

import (
	"errors"
	"fmt"
)

// InvalidError marks a configuration-invalid failure (spec §7): fatal at
// startup, never recoverable by a worker.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("configuration invalid: %s", e.Reason)
}

// multiplexMargin is the number of ADC conversions (9x settling plus a 4x
// headroom factor) a full 3-channel scan needs relative to the requested
// sampling rate, per spec §7's "13x rule".
const multiplexMargin = 13

// Validate checks structural and cross-field invariants: unique channel
// names, an integer decimation ratio, and the ADC data-rate-vs-sampling-rate
// timing margin.
func Validate(cfg Config) error {
	if cfg.SamplingRate <= 0 {
		return &InvalidError{Reason: "sampling_rate must be positive"}
	}
	if cfg.DecimationFactor < 2 {
		return &InvalidError{Reason: "decimation_factor must be >= 2"}
	}
	if cfg.SamplingRate%cfg.DecimationFactor != 0 {
		return &InvalidError{Reason: fmt.Sprintf(
			"sampling_rate (%d) must be an integer multiple of decimation_factor (%d)",
			cfg.SamplingRate, cfg.DecimationFactor)}
	}
	if len(cfg.Network) != 2 {
		return &InvalidError{Reason: "network must be a 2-character code"}
	}
	if len(cfg.Station) == 0 || len(cfg.Station) > 5 {
		return &InvalidError{Reason: "station must be 1-5 characters"}
	}
	if len(cfg.Channels) == 0 {
		return &InvalidError{Reason: "at least one channel is required"}
	}

	seen := make(map[string]bool, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		if seen[ch.Name] {
			return &InvalidError{Reason: fmt.Sprintf("duplicate channel name %q", ch.Name)}
		}
		seen[ch.Name] = true

		if ch.ADCChannel < 0 || ch.ADCChannel > 2 {
			return &InvalidError{Reason: fmt.Sprintf("channel %q: adc_channel must be 0..=2", ch.Name)}
		}

		switch ch.Orientation {
		case OrientationVertical, OrientationNorth, OrientationEast:
		default:
			return &InvalidError{Reason: fmt.Sprintf("channel %q: unknown orientation %q", ch.Name, ch.Orientation)}
		}
	}

	required := multiplexMargin * cfg.SamplingRate
	if cfg.ADCDataRateSPS < required {
		return &InvalidError{Reason: fmt.Sprintf(
			"sampling_rate (%d Hz) demands an ADC data rate >= %d SPS (13x multiplex rule), got %d SPS",
			cfg.SamplingRate, required, cfg.ADCDataRateSPS)}
	}

	return nil
}

// IsInvalid reports whether err is (or wraps) a configuration-invalid error.
func IsInvalid(err error) bool {
	var ie *InvalidError
	return errors.As(err, &ie)
}

// TriggerChannel returns the channel designated as the STA/LTA trigger
// channel: index 0 in configuration order, per spec §3.
func TriggerChannel(cfg Config) (Channel, error) {
	if len(cfg.Channels) == 0 {
		return Channel{}, errors.New("config: no channels configured")
	}
	return cfg.Channels[0], nil
}
