package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/user/vkv/internal/jobstore"
)

// Config holds scheduler configuration.
type Config struct {
	Interval    time.Duration // base claim-loop tick cadence
	AgingEvery  time.Duration // priority aging tick
	MaxInFlight int           // max concurrently executing jobs on this node
}

// DefaultConfig returns a Config using the jobstore package's scheduler
// constants.
func DefaultConfig() Config {
	return Config{
		Interval:    jobstore.PollEvery,
		AgingEvery:  jobstore.AgingEvery,
		MaxInFlight: jobstore.MaxTotal,
	}
}

// Scheduler runs the claim loop, priority aging, and crash recovery
// against a jobstore.Store on a periodic tick.
type Scheduler struct {
	store      *jobstore.Store
	workerID   string
	config     Config
	lastAging  time.Time
	inFlight   sync.WaitGroup
	inFlightN  int
	inFlightMu sync.Mutex
}

// New creates a Scheduler. If config's zero-valued fields are left unset,
// DefaultConfig's values are used.
func New(s *jobstore.Store, config Config) *Scheduler {
	def := DefaultConfig()
	if config.Interval == 0 {
		config.Interval = def.Interval
	}
	if config.AgingEvery == 0 {
		config.AgingEvery = def.AgingEvery
	}
	if config.MaxInFlight == 0 {
		config.MaxInFlight = def.MaxInFlight
	}
	return &Scheduler{store: s, workerID: workerID(), config: config}
}

func workerID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "scheduler"
}

// Run starts the scheduler loop. It blocks until ctx is cancelled, then
// waits for in-flight jobs to return before returning; their child
// processes are started with exec.CommandContext on ctx, so cancelling ctx
// kills them.
func (s *Scheduler) Run(ctx context.Context) {
	if n, err := s.store.RecoverOnStartup(); err != nil {
		slog.Error("startup recovery failed", "error", err)
	} else if n > 0 {
		slog.Warn("startup recovery failed orphaned jobs", "count", n)
	}

	slog.Info("scheduler started", "worker_id", s.workerID, "interval", s.config.Interval)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopping, waiting for in-flight jobs")
			s.inFlight.Wait()
			slog.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

// RunOnce executes a single claim-loop tick, for tests.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.tick(ctx, time.Now())
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if n, err := s.store.Reap(); err != nil {
		slog.Error("reap failed", "error", err)
	} else if n > 0 {
		slog.Warn("reaped jobs past max attempts", "count", n)
	}

	if now.Sub(s.lastAging) >= s.config.AgingEvery {
		s.lastAging = now
		if n, err := s.store.AgeTick(); err != nil {
			slog.Error("priority aging failed", "error", err)
		} else if n > 0 {
			slog.Debug("aged pending jobs", "count", n)
		}
	}

	for s.claimOneIfRoom(ctx) {
	}
}

func (s *Scheduler) claimOneIfRoom(ctx context.Context) bool {
	s.inFlightMu.Lock()
	if s.inFlightN >= s.config.MaxInFlight {
		s.inFlightMu.Unlock()
		return false
	}
	s.inFlightMu.Unlock()

	candidates, err := s.store.FetchCandidates()
	if err != nil {
		slog.Error("fetch candidates failed", "error", err)
		return false
	}

	for _, candidate := range candidates {
		s.inFlightMu.Lock()
		if s.inFlightN >= s.config.MaxInFlight {
			s.inFlightMu.Unlock()
			return false
		}
		s.inFlightMu.Unlock()

		claimed, ok, err := s.store.ClaimOne(candidate, s.workerID)
		if err != nil {
			slog.Error("claim failed", "job_id", candidate.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}

		s.inFlightMu.Lock()
		s.inFlightN++
		s.inFlightMu.Unlock()
		s.inFlight.Add(1)

		go func(job *jobstore.Job) {
			defer s.inFlight.Done()
			defer func() {
				s.inFlightMu.Lock()
				s.inFlightN--
				s.inFlightMu.Unlock()
			}()
			executeJob(ctx, s.store, job, s.workerID)
		}(claimed.Job)

		return true
	}

	return false
}
