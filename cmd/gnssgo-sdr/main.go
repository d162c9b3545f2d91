package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/bramburn/gnssgo-sdr/internal/config"
	"github.com/bramburn/gnssgo-sdr/internal/pipeline"
	"github.com/bramburn/gnssgo-sdr/internal/prncode"
	"github.com/bramburn/gnssgo-sdr/internal/samplesource"
	"github.com/bramburn/gnssgo-sdr/internal/statusapi"
)

// Exit codes (spec §6.1).
const (
	exitOK          = 0
	exitArgError    = 1
	exitSourceError = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "gnssgo-sdr: %v\n", err)
		return exitArgError
	}

	source, err := openSource(cfg)
	if err != nil {
		logger.WithError(err).Error("gnssgo-sdr: failed to open sample source")
		return exitSourceError
	}
	defer source.Close()

	codes, err := prncode.GenerateAll()
	if err != nil {
		logger.WithError(err).Error("gnssgo-sdr: failed to generate PRN codes")
		return exitSourceError
	}

	pl := pipeline.New(source, codes, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("gnssgo-sdr: received shutdown signal")
		cancel()
	}()

	// The status endpoint is file-mode only (spec §6, "never enabled in
	// live mode") since a live receiver has no dashboard consumer.
	if cfg.Mode == config.ModeFile {
		status := statusapi.New(cfg.StatusAddr, pl.Snapshot, logger)
		if err := status.Start(); err != nil {
			logger.WithError(err).Error("gnssgo-sdr: failed to start status endpoint")
			return exitSourceError
		}
		defer status.Stop()
		logger.WithField("addr", cfg.StatusAddr).Info("gnssgo-sdr: status endpoint listening")
	}

	if err := pl.Run(ctx); err != nil {
		logger.WithError(err).Error("gnssgo-sdr: pipeline stopped with an error")
		return exitSourceError
	}
	return exitOK
}

func openSource(cfg config.Config) (samplesource.Source, error) {
	switch cfg.Mode {
	case config.ModeFile:
		f, err := os.Open(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("gnssgo-sdr: opening %s: %w", cfg.FilePath, err)
		}
		return samplesource.NewFileSource(f, cfg.FileStartTime), nil
	case config.ModeSDR:
		return samplesource.OpenSerialSource(samplesource.SerialSourceConfig{
			PortName: cfg.SerialPort,
			BaudRate: cfg.SerialBaud,
		})
	default:
		return nil, fmt.Errorf("gnssgo-sdr: unknown mode %v", cfg.Mode)
	}
}
