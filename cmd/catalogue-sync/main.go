package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	cataloguesync "github.com/always-cache/catalogue-sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	portFlag           int
	configFlag         string
	snapshotsFlag      int
	tickFlag           string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&configFlag, "config", "", "YAML config file (flags override it)")
	flag.IntVar(&snapshotsFlag, "snapshots", 0, "Number of snapshots in the rotation schedule")
	flag.StringVar(&tickFlag, "tick", "", "Delay between rotation ticks, e.g. 500ms")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	fileConfig := cataloguesync.FileConfig{}
	if configFlag != "" {
		parsed, err := cataloguesync.GetFileConfig(configFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Cannot read config file")
		}
		fileConfig = parsed
	}
	if snapshotsFlag > 0 {
		fileConfig.Snapshots = snapshotsFlag
	}
	if tickFlag != "" {
		fileConfig.Tick = tickFlag
	}
	portFlagSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "port" {
			portFlagSet = true
		}
	})
	port := fileConfig.ListenPort(portFlag, portFlagSet)

	schedule, err := fileConfig.Schedule()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid rotation schedule")
	}

	server := cataloguesync.New(cataloguesync.Config{
		Schedule: schedule,
		Logger:   &log.Logger,
	})

	log.Info().Msgf("Serving catalogue on port %v (%d snapshots, tick %s)",
		port, schedule.Len(), schedule.Delay)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), server); err != nil {
		panic(err)
	}
}
