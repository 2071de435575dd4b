package poller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cataloguesync "github.com/always-cache/catalogue-sync"
	"github.com/always-cache/catalogue-sync/catalogue"
	clientcache "github.com/always-cache/catalogue-sync/pkg/client-cache"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testLogger = zerolog.Nop()

// fixedServer serves a single snapshot that never rotates.
func fixedServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := cataloguesync.New(cataloguesync.Config{
		Schedule: catalogue.Schedule{
			Snapshots: []*catalogue.Catalogue{
				{Version: 7, Items: map[string]int{"Tea": 500}},
			},
			Delay: time.Hour,
		},
		DisableRotation: true,
		Logger:          &testLogger,
	})
	ts := httptest.NewServer(server)
	t.Cleanup(func() {
		ts.Close()
		server.Close()
	})
	return ts
}

// 250 conditional rounds against 25 snapshots: the store is advanced
// once before each of the first 25 rounds, so every snapshot is seen
// exactly once and every later round is answered with a 304.
func TestConditionalRunCountsRedundantRounds(t *testing.T) {
	store := catalogue.NewStore()
	schedule := catalogue.SampleSchedule(25, time.Hour)
	server := cataloguesync.New(cataloguesync.Config{
		Schedule:        schedule,
		Store:           store,
		DisableRotation: true,
		Logger:          &testLogger,
	})
	defer server.Close()
	ts := httptest.NewServer(server)
	defer ts.Close()

	p, err := New(Config{
		ServerURL: ts.URL,
		Mode:      ModeConditional,
		Rounds:    250,
		Logger:    &testLogger,
		BeforeRound: func(round int) {
			if round <= 25 {
				store.Replace(schedule.Snapshots[round-1])
			}
		},
	})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 250, report.Rounds)
	require.Equal(t, 25, report.New)
	require.Equal(t, 225, report.Redundant)
	require.Equal(t, 0, report.Failed)
	require.Greater(t, report.BytesReceived, int64(0))

	last, ok := p.Last()
	require.True(t, ok)
	require.Equal(t, "25", last.ETag)
}

func TestConditionalFirstContactIsNew(t *testing.T) {
	ts := fixedServer(t)
	p, err := New(Config{ServerURL: ts.URL, Rounds: 1, Logger: &testLogger})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.New)
	require.Equal(t, 0, report.Redundant)
}

func TestNaiveModeComparesPayloadVersions(t *testing.T) {
	ts := fixedServer(t)
	p, err := New(Config{
		ServerURL: ts.URL,
		Mode:      ModeNaive,
		Rounds:    10,
		Logger:    &testLogger,
	})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.New)
	require.Equal(t, 9, report.Redundant)
	// the naive mode transfers the full body every round
	bodyLen := report.BytesReceived / 10
	require.Greater(t, bodyLen, int64(0))
	require.Equal(t, bodyLen*10, report.BytesReceived)
}

func TestTransportFailuresAreCountedNotFatal(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close() // every round now fails to connect

	p, err := New(Config{ServerURL: url, Rounds: 3, Logger: &testLogger})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, report.Rounds)
	require.Equal(t, 3, report.Failed)
	require.Equal(t, 0, report.New)
}

func TestUnexpectedStatusIsAFailedRound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	p, err := New(Config{ServerURL: ts.URL, Rounds: 2, Logger: &testLogger})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Failed)
}

// A validator persisted by one poller is picked up by the next, so a
// restarted client's first round is already conditional.
func TestValidatorSurvivesRestartThroughCache(t *testing.T) {
	ts := fixedServer(t)
	cache := clientcache.NewSQLiteCache("")

	first, err := New(Config{ServerURL: ts.URL, Rounds: 1, Cache: cache, Logger: &testLogger})
	require.NoError(t, err)
	report, err := first.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.New)

	second, err := New(Config{ServerURL: ts.URL, Rounds: 1, Cache: cache, Logger: &testLogger})
	require.NoError(t, err)
	report, err = second.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Redundant)
	require.Equal(t, int64(0), report.BytesReceived)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ts := fixedServer(t)
	p, err := New(Config{
		ServerURL: ts.URL,
		Rounds:    1000,
		Interval:  10 * time.Millisecond,
		Logger:    &testLogger,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	report, err := p.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, report.Rounds, 1000)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	_, err = New(Config{ServerURL: "http://localhost", Mode: Mode("bogus")})
	require.Error(t, err)
}

func TestResolveServerURL(t *testing.T) {
	t.Setenv(EnvServerURL, "http://from-env.test")
	url, err := ResolveServerURL("")
	require.NoError(t, err)
	require.Equal(t, "http://from-env.test", url)

	// an explicit address always beats the environment
	url, err = ResolveServerURL("http://from-flag.test")
	require.NoError(t, err)
	require.Equal(t, "http://from-flag.test", url)

	t.Setenv(EnvServerURL, "")
	url, err = ResolveServerURL("http://from-flag.test")
	require.NoError(t, err)
	require.Equal(t, "http://from-flag.test", url)

	_, err = ResolveServerURL("")
	require.Error(t, err)
}
