package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/rpi3seismo/stationd/internal/config"
	"github.com/rpi3seismo/stationd/internal/gpioline"
	"github.com/rpi3seismo/stationd/internal/lifecycle"
	"github.com/rpi3seismo/stationd/internal/station"
	"github.com/rpi3seismo/stationd/internal/xlog"
)

func main() {
	var configPath = pflag.StringP("config", "c", "./station.yaml", "Path to the station's YAML configuration file.")
	var gpioChip = pflag.String("gpio-chip", "gpiochip0", "GPIO character device for the RS-485 driver-enable line.")
	var gpioOffset = pflag.Int("gpio-offset", 17, "Line offset on gpio-chip for the RS-485 driver-enable line.")
	var mockGPIO = pflag.Bool("mock-gpio", false, "Use an in-memory driver-enable line instead of a real GPIO chip.")
	var verbose = pflag.BoolP("verbose", "v", false, "Enable debug-level logging.")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "stationd - seismic acquisition station daemon")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return
	}

	if *verbose {
		xlog.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if config.IsInvalid(err) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "loading configuration:", err)
		os.Exit(1)
	}

	if line, err := station.SitingLine(cfg.Location); err == nil && line != "" {
		fmt.Println(line)
	}

	var de gpioline.DigitalPin
	if *mockGPIO {
		de = gpioline.NewMockPin()
	} else {
		de, err = gpioline.OpenDriverEnable(*gpioChip, *gpioOffset)
		if err != nil {
			fmt.Fprintln(os.Stderr, "opening driver-enable line:", err)
			os.Exit(1)
		}
	}

	coord, err := lifecycle.New(cfg, de)
	if err != nil {
		fmt.Fprintln(os.Stderr, "starting station:", err)
		os.Exit(1)
	}

	if err := coord.Run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "station exited:", err)
		os.Exit(1)
	}
}
