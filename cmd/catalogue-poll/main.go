package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	clientcache "github.com/always-cache/catalogue-sync/pkg/client-cache"
	"github.com/always-cache/catalogue-sync/poller"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	serverFlag         string
	modeFlag           string
	roundsFlag         int
	intervalFlag       time.Duration
	dbFilenameFlag     string
	verbosityTraceFlag bool
)

func init() {
	flag.StringVar(&serverFlag, "server", "", "Server base URL (overrides "+poller.EnvServerURL+")")
	flag.StringVar(&modeFlag, "mode", "conditional", "Polling mode: naive or conditional")
	flag.IntVar(&roundsFlag, "rounds", 20, "Number of polling rounds")
	flag.DurationVar(&intervalFlag, "interval", time.Second, "Delay between rounds")
	flag.StringVar(&dbFilenameFlag, "db", "", "Client cache DB file name (in-memory if empty)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
}

func main() {
	flag.Parse()

	logLevel := zerolog.InfoLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: os.Stdout})

	serverURL, err := poller.ResolveServerURL(serverFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("No server address")
	}

	var cache clientcache.CacheProvider = clientcache.NewMemoryCache()
	if dbFilenameFlag != "" {
		cache = clientcache.NewSQLiteCache(dbFilenameFlag)
	}

	p, err := poller.New(poller.Config{
		ServerURL: serverURL,
		Mode:      poller.Mode(modeFlag),
		Rounds:    roundsFlag,
		Interval:  intervalFlag,
		Cache:     cache,
		Logger:    &log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot create poller")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info().Msgf("Polling %s (%s mode, %d rounds every %s)",
		serverURL, modeFlag, roundsFlag, intervalFlag)
	report, err := p.Run(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Polling run interrupted")
	}
	fmt.Println(report)
}
