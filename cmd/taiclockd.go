package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/karasz/gtleap/config"
	"github.com/karasz/gtleap/leapsecs"
	"github.com/karasz/gtleap/tai64"
	"github.com/karasz/gtleap/taiclockd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// serverConfig applies the taiclockd specific flags to cfg
func serverConfig(fs *pflag.FlagSet, cfg *config.Config) taiclockd.Config {
	sc := cfg.Server
	if fs.Changed("dir") {
		sc.ConfigDir, _ = fs.GetString("dir")
	}
	if fs.Changed("addr") {
		sc.Addr, _ = fs.GetString("addr")
	}
	return sc
}

// runServer serves until ctx is done
func runServer(ctx context.Context, sc taiclockd.Config, tbl *leapsecs.Table) error {
	server, err := taiclockd.NewServer(sc, tai64.NewConverter(tbl))
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	log.Info().
		Stringer("addr", server.Addr()).
		Int("taiUtc", tbl.CountAt(time.Now())).
		Msg("TAIN time server listening")
	return server.Serve(ctx)
}

// TAIClockDRun starts a TAIN time server, on port 4014 by default. It
// refuses to start without a valid leap second table.
func TAIClockDRun(args []string) int {
	fs := newFlagSet("taiclockd")
	fs.StringP("dir", "d", "", "config directory holding clientok and port files")
	fs.String("addr", taiclockd.DefaultAddr, "listen address")

	cfg, tbl, err := setup(fs, args)
	if err != nil {
		log.Error().Err(err).Msg("taiclockd")
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runServer(ctx, serverConfig(fs, cfg), tbl); err != nil {
		log.Error().Err(err).Msg("taiclockd")
		return exitFailure
	}
	log.Info().Msg("taiclockd stopped")
	return 0
}
