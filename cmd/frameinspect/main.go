// Command frameinspect dumps the sample frames found in a captured raw
// RS-485 byte stream, for offline diagnosis of a noisy or misaligned
// link.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/rpi3seismo/stationd/internal/ingest"
)

func main() {
	var path = pflag.StringP("file", "f", "", "Path to a raw byte capture of the serial link.")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "frameinspect - dump sample frames from a raw serial capture")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help || *path == "" {
		pflag.Usage()
		if *path == "" {
			os.Exit(1)
		}
		return
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reading capture:", err)
		os.Exit(1)
	}

	p := ingest.NewParser()
	frames := p.Feed(raw)

	for i, f := range frames {
		fmt.Printf("%6d  ch0=%-10d ch1=%-10d ch2=%-10d\n", i, f.Ch0, f.Ch1, f.Ch2)
	}

	fmt.Fprintf(os.Stderr, "%d frames decoded, %d bytes dropped resynchronizing, %d bytes left pending\n",
		len(frames), p.DroppedBytes(), p.Pending())
}
