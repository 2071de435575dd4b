// Package poller implements the catalogue polling client. It fetches
// the catalogue on a fixed cadence and classifies every round as new,
// redundant, or failed, which makes the bandwidth saved by conditional
// requests directly observable.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/always-cache/catalogue-sync/catalogue"
	clientcache "github.com/always-cache/catalogue-sync/pkg/client-cache"
	"github.com/always-cache/catalogue-sync/pkg/etag"

	"github.com/rs/zerolog"
)

// Mode selects how the poller fetches and how it decides whether a
// round produced new data.
type Mode string

const (
	// ModeNaive fetches the full catalogue every round and compares
	// payload versions after the fact. Every round transfers the body.
	ModeNaive Mode = "naive"
	// ModeConditional sends the last seen validator and relies on the
	// server's 304 to detect redundant rounds without a body transfer.
	ModeConditional Mode = "conditional"
)

type Config struct {
	// Base URL of the catalogue-sync server, e.g. "http://localhost:8080".
	ServerURL string
	// Fetch mode. Defaults to ModeConditional.
	Mode Mode
	// Number of polling rounds to perform.
	Rounds int
	// Delay between rounds.
	Interval time.Duration
	// Cache holding the last validated response, used in conditional
	// mode. An in-memory cache is used if nil; pass a SQLite cache to
	// keep the validator across restarts.
	Cache clientcache.CacheProvider
	// HTTP client to use. A client with a 10s timeout is used if nil.
	HTTPClient *http.Client
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// BeforeRound, if set, runs before every round (1-based).
	// Tests use it to drive the server's rotation deterministically.
	BeforeRound func(round int)
}

// Report aggregates the outcome of a polling run.
type Report struct {
	Rounds        int
	New           int
	Redundant     int
	Failed        int
	BytesReceived int64
}

func (r Report) String() string {
	return fmt.Sprintf("rounds=%d new=%d redundant=%d failed=%d bytes=%d",
		r.Rounds, r.New, r.Redundant, r.Failed, r.BytesReceived)
}

// Poller fetches the catalogue repeatedly and tracks what each round
// yielded relative to the previous ones.
type Poller struct {
	cfg    Config
	log    zerolog.Logger
	client *http.Client
	cache  clientcache.CacheProvider

	// last payload version seen in naive mode
	lastVersion    uint64
	hasLastVersion bool
}

// New creates a poller for the given configuration.
func New(config Config) (*Poller, error) {
	if strings.TrimSpace(config.ServerURL) == "" {
		return nil, fmt.Errorf("poller: server URL is required")
	}
	if _, err := url.Parse(config.ServerURL); err != nil {
		return nil, fmt.Errorf("poller: invalid server URL: %w", err)
	}
	if config.Mode == "" {
		config.Mode = ModeConditional
	}
	if config.Mode != ModeNaive && config.Mode != ModeConditional {
		return nil, fmt.Errorf("poller: unsupported mode %q", config.Mode)
	}

	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	logger = logger.With().Str("mode", string(config.Mode)).Logger()

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cache := config.Cache
	if cache == nil {
		cache = clientcache.NewMemoryCache()
	}

	return &Poller{
		cfg:    config,
		log:    logger,
		client: client,
		cache:  cache,
	}, nil
}

// Run performs the configured number of rounds and returns the
// aggregated report. A failed round is logged and counted, never
// fatal; Run only returns early when the context is cancelled.
func (p *Poller) Run(ctx context.Context) (Report, error) {
	report := Report{}
	for round := 1; round <= p.cfg.Rounds; round++ {
		if p.cfg.BeforeRound != nil {
			p.cfg.BeforeRound(round)
		}
		report.Rounds++

		var outcome string
		var bytes int64
		var err error
		switch p.cfg.Mode {
		case ModeNaive:
			outcome, bytes, err = p.naiveRound(ctx)
		default:
			outcome, bytes, err = p.conditionalRound(ctx)
		}
		if err != nil {
			report.Failed++
			p.log.Warn().Err(err).Int("round", round).Msg("Round failed, continuing")
		} else {
			report.BytesReceived += bytes
			switch outcome {
			case "new":
				report.New++
			case "redundant":
				report.Redundant++
			}
			p.log.Trace().Int("round", round).Str("outcome", outcome).Msg("Round done")
		}

		if round < p.cfg.Rounds && p.cfg.Interval > 0 {
			timer := time.NewTimer(p.cfg.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return report, ctx.Err()
			case <-timer.C:
			}
		}
	}
	p.log.Info().
		Int("new", report.New).
		Int("redundant", report.Redundant).
		Int("failed", report.Failed).
		Int64("bytes", report.BytesReceived).
		Msg("Polling run finished")
	return report, nil
}

// naiveRound always transfers the full body and detects redundancy by
// comparing the payload version with the previous round's.
func (p *Poller) naiveRound(ctx context.Context) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.ServerURL+"/catalogue", nil)
	if err != nil {
		return "", 0, err
	}
	res, err := p.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", 0, err
	}
	var snapshot catalogue.Catalogue
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return "", 0, fmt.Errorf("decode catalogue: %w", err)
	}

	outcome := "new"
	if p.hasLastVersion && snapshot.Version == p.lastVersion {
		outcome = "redundant"
	}
	p.lastVersion = snapshot.Version
	p.hasLastVersion = true
	return outcome, int64(len(body)), nil
}

// conditionalRound sends the cached validator and lets the server
// decide: 304 means redundant with no body transferred, 200 means new
// content which replaces the cached entry.
func (p *Poller) conditionalRound(ctx context.Context) (string, int64, error) {
	fetchURL := p.cfg.ServerURL + "/catalogueWithETag"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return "", 0, err
	}
	entry, ok, err := p.cache.Get(fetchURL)
	if err != nil {
		p.log.Warn().Err(err).Msg("Could not read client cache, fetching full")
	} else if ok && entry.ETag != "" {
		req.Header.Set("If-None-Match", `"`+entry.ETag+`"`)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusNotModified:
		// validator still current, keep the cached entry as is
		return "redundant", 0, nil
	case http.StatusOK:
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return "", 0, err
		}
		token := etag.Normalize(res.Header.Get("ETag"))
		if putErr := p.cache.Put(clientcache.Entry{
			URL:       fetchURL,
			ETag:      token,
			Body:      body,
			FetchedAt: time.Now(),
		}); putErr != nil {
			p.log.Warn().Err(putErr).Msg("Could not update client cache")
		}
		return "new", int64(len(body)), nil
	default:
		return "", 0, fmt.Errorf("unexpected status %d", res.StatusCode)
	}
}

// Last returns the last content the poller has seen in conditional
// mode, if any.
func (p *Poller) Last() (clientcache.Entry, bool) {
	entry, ok, err := p.cache.Get(p.cfg.ServerURL + "/catalogueWithETag")
	if err != nil {
		return clientcache.Entry{}, false
	}
	return entry, ok
}
