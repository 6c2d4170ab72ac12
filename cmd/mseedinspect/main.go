// Command mseedinspect prints the trace header fields of every data
// record in a MiniSEED file written by stationd, for spot-checking
// output without a full SEED toolchain installed.
package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/rpi3seismo/stationd/internal/miniseed"
)

func main() {
	var path = pflag.StringP("file", "f", "", "Path to a .mseed file.")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "mseedinspect - print MiniSEED trace headers")
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
		fmt.Fprintln(os.Stderr, "reading file:", err)
		os.Exit(1)
	}

	count := 0
	for offset := 0; offset+miniseed.RecordLength <= len(raw); offset += miniseed.RecordLength {
		record := raw[offset : offset+miniseed.RecordLength]
		if record[0] == 0 {
			continue // trailing zero-padded tail record, if any
		}

		station := strings.TrimSpace(string(record[8:13]))
		channel := strings.TrimSpace(string(record[15:18]))
		network := strings.TrimSpace(string(record[18:20]))
		year := binary.BigEndian.Uint16(record[20:22])
		day := binary.BigEndian.Uint16(record[22:24])
		nsamples := binary.BigEndian.Uint16(record[30:32])

		fmt.Printf("record %3d  %s.%s.%s  year=%d day=%d  samples=%d\n",
			count, network, station, channel, year, day, nsamples)
		count++
	}

	fmt.Fprintf(os.Stderr, "%d records, %d bytes total\n", count, len(raw))
}
