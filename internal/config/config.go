// Package config parses the receiver's command-line flags (spec §6,
// "CLI"). It uses pflag rather than the standard library's flag package,
// the richer POSIX-style flag parser several repositories in this
// corpus depend on for exactly this kind of CLI surface.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Mode selects which sample source the receiver runs against.
type Mode int

const (
	ModeFile Mode = iota
	ModeSDR
)

// Config is the parsed, validated set of CLI flags (spec §6, "CLI").
type Config struct {
	Mode          Mode
	FilePath      string
	FileStartTime time.Time
	StatusAddr    string

	SerialPort string
	SerialBaud int
}

// Parse parses args (normally os.Args[1:]) into a Config, enforcing the
// spec's "exactly one of -f or --rtl-sdr" invariant (spec §6).
func Parse(args []string) (Config, error) {
	fs := pflag.NewFlagSet("gnssgo-sdr", pflag.ContinueOnError)

	filePath := fs.StringP("file", "f", "", "path to a file of interleaved float32 I/Q samples")
	startUnix := fs.Int64P("start-time", "t", 0, "UNIX seconds timestamp of the first sample (file mode)")
	rtlSDR := fs.Bool("rtl-sdr", false, "run against a live SDR/serial source instead of a file")
	statusAddr := fs.String("status-addr", "localhost:8080", "status HTTP listen address (file mode only)")
	serialPort := fs.String("rtl-sdr-port", "/dev/ttyUSB0", "serial port for --rtl-sdr live mode")
	serialBaud := fs.Int("rtl-sdr-baud", 921600, "baud rate for --rtl-sdr live mode")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if (*filePath == "") == !*rtlSDR {
		return Config{}, fmt.Errorf("config: exactly one of -f PATH or --rtl-sdr is required")
	}

	cfg := Config{StatusAddr: *statusAddr}
	if *rtlSDR {
		cfg.Mode = ModeSDR
		cfg.SerialPort = *serialPort
		cfg.SerialBaud = *serialBaud
		return cfg, nil
	}

	cfg.Mode = ModeFile
	cfg.FilePath = *filePath
	if *startUnix <= 0 {
		return Config{}, fmt.Errorf("config: -t UNIX_SECONDS is required in file mode")
	}
	cfg.FileStartTime = time.Unix(*startUnix, 0).UTC()
	return cfg, nil
}
