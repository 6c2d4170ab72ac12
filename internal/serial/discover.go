package serial

import (
	"fmt"

	"github.com/jochenvg/go-udev"
)

// Discover finds a USB-serial device path when the configuration
// leaves serial_device empty, scanning the tty subsystem via udev.
// It returns the first matching device, since this station has exactly
// one acquisition MCU attached.
func Discover() (string, error) {
	u := udev.Udev{}
	enum := u.NewEnumerate()

	if err := enum.AddMatchSubsystem("tty"); err != nil {
		return "", fmt.Errorf("serial: udev match subsystem: %w", err)
	}
	if err := enum.AddMatchProperty("ID_BUS", "usb"); err != nil {
		return "", fmt.Errorf("serial: udev match property: %w", err)
	}

	devices, err := enum.Devices()
	if err != nil {
		return "", fmt.Errorf("serial: udev enumerate: %w", err)
	}

	for _, d := range devices {
		if path := d.Devnode(); path != "" {
			return path, nil
		}
	}

	return "", fmt.Errorf("serial: no USB-serial device found via udev")
}
