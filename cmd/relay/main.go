package main

import (
	"context"
	"errors"
	goos "os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"github.com/teamvoice/relay/pkg/config"
	"github.com/teamvoice/relay/pkg/coordinator"
	"github.com/teamvoice/relay/pkg/logger"
	"github.com/teamvoice/relay/pkg/os"
)

var Version = "?"

const shutdownTimeout = 10 * time.Second

func main() {
	conf, path, err := config.Load(goos.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	log := logger.NewConsole(conf.Debug, "relay", false)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	log.Info().Msgf("version %s", Version)
	if path != "" {
		log.Info().Str("file", path).Msg("config loaded")
	}
	if log.IsDebug() {
		log.Debug().Msgf("config: %+v", conf)
	}

	if conf.Server.LockFile != "" {
		lock, err := os.NewFileLock(conf.Server.LockFile)
		if err != nil {
			log.Fatal().Err(err).Msg("instance lock")
		}
		if err = lock.TryLock(); err != nil {
			log.Fatal().Err(err).Msg("instance lock")
		}
		defer func() { _ = lock.Unlock() }()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c, err := coordinator.New(conf, log, reg)
	if err != nil {
		log.Fatal().Err(err).Msg("relay")
	}
	if err = c.Start(); err != nil {
		log.Fatal().Err(err).Msg("relay start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	if conf.Relay.WatchConfig && path != "" {
		if err := config.Watch(ctx, path, log, c.Reload); err != nil {
			log.Error().Err(err).Msg("config watch")
		}
	}

	<-os.ExpectTermination()
	cancel()

	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()
	if err := c.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("service shutdown errors")
	}
}
