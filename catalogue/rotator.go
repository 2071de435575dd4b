package catalogue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Rotator drives a store through the snapshots of a schedule, one per
// tick, sleeping the schedule delay between installs. After the last
// snapshot it stops; the store keeps the final snapshot until the next
// Reset.
//
// Every rotation run carries a generation number. An install is only
// committed if its generation is still the current one, so a rotation
// superseded by Reset can never write a stale snapshot afterwards. The
// superseded run's pending tick is cancelled before its write.
type Rotator struct {
	store    *Store
	schedule Schedule
	log      zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRotator creates a rotator for the given store and schedule.
// The store is seeded with the first snapshot immediately, so reads are
// valid before the rotation is started. The global zerolog logger is
// used if logger is nil.
func NewRotator(store *Store, schedule Schedule, logger *zerolog.Logger) *Rotator {
	var log zerolog.Logger
	if logger == nil {
		log = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		log = *logger
	}
	log = log.With().Int("snapshots", schedule.Len()).Logger()

	r := &Rotator{
		store:    store,
		schedule: schedule,
		log:      log,
	}
	if schedule.Len() > 0 {
		store.Replace(schedule.Snapshots[0])
	}
	return r
}

// Start begins a rotation from the first snapshot. If a rotation is
// already running it is superseded, exactly as with Reset.
func (r *Rotator) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startLocked()
}

// Reset cancels any in-flight rotation and starts a fresh one from the
// first snapshot. When Reset returns, no install from a superseded
// rotation can land: the generation bump and all installs go through
// the same mutex.
func (r *Rotator) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Debug().Uint64("generation", r.gen).Msg("Resetting rotation")
	r.startLocked()
}

// Stop cancels any in-flight rotation without starting a new one.
// The store keeps whatever snapshot was installed last.
func (r *Rotator) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.gen++
}

// Done returns a channel that is closed when the current rotation run
// finishes or is superseded. With no rotation ever started there is
// nothing to wait for, so the channel is already closed. Mainly
// useful in tests.
func (r *Rotator) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return r.done
}

func (r *Rotator) startLocked() {
	if r.cancel != nil {
		r.cancel()
	}
	r.gen++
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, r.gen, r.done)
}

func (r *Rotator) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	log := r.log.With().Uint64("generation", gen).Logger()
	log.Debug().Msg("Rotation started")
	for round, snapshot := range r.schedule.Snapshots {
		if !r.install(gen, snapshot) {
			log.Debug().Int("round", round+1).Msg("Rotation superseded, dropping tick")
			return
		}
		log.Trace().Uint64("version", snapshot.Version).Msg("Installed snapshot")
		if round == len(r.schedule.Snapshots)-1 {
			break
		}
		if !sleep(ctx, r.schedule.Delay) {
			log.Debug().Msg("Rotation cancelled during sleep")
			return
		}
	}
	log.Debug().Msg("Rotation finished")
}

// install commits the snapshot if the given generation is still
// current. It returns false for a superseded generation, in which case
// nothing was written.
func (r *Rotator) install(gen uint64, c *Catalogue) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return false
	}
	r.store.Replace(c)
	return true
}

// sleep waits for the duration or until the context is cancelled.
// It reports whether the full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
