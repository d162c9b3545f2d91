package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileMode(t *testing.T) {
	cfg, err := Parse([]string{"-f", "samples.bin", "-t", "1700000000"})
	require.NoError(t, err)
	assert.Equal(t, ModeFile, cfg.Mode)
	assert.Equal(t, "samples.bin", cfg.FilePath)
	assert.EqualValues(t, 1700000000, cfg.FileStartTime.Unix())
}

func TestParseSDRMode(t *testing.T) {
	cfg, err := Parse([]string{"--rtl-sdr"})
	require.NoError(t, err)
	assert.Equal(t, ModeSDR, cfg.Mode)
	assert.Equal(t, 921600, cfg.SerialBaud, "want default baud")
}

func TestParseSDRModeHonorsSerialFlags(t *testing.T) {
	cfg, err := Parse([]string{"--rtl-sdr", "--rtl-sdr-port", "/dev/ttyACM0", "--rtl-sdr-baud", "38400"})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.SerialPort)
	assert.Equal(t, 38400, cfg.SerialBaud)
}

func TestParseRejectsBothFlags(t *testing.T) {
	_, err := Parse([]string{"-f", "samples.bin", "-t", "1700000000", "--rtl-sdr"})
	assert.Error(t, err, "expected error when both -f and --rtl-sdr are given")
}

func TestParseRejectsNeitherFlag(t *testing.T) {
	_, err := Parse([]string{})
	assert.Error(t, err, "expected error when neither -f nor --rtl-sdr is given")
}

func TestParseRequiresStartTimeInFileMode(t *testing.T) {
	_, err := Parse([]string{"-f", "samples.bin"})
	assert.Error(t, err, "expected error when -f is given without -t")
}
