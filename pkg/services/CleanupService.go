package services

import (
	"log/slog"
	"sync"
	"time"
)

/*
IdleStatePruner drops per-user view state nobody has touched since
cutoff. States for which keep returns true survive.
*/
type IdleStatePruner interface {
	PruneIdle(cutoff time.Time, keep func(userID uint) bool) int
}

type CleanupServicer interface {
	RunOnce()
	StartCleanupRoutine(interval time.Duration)
	StopCleanupRoutine()
}

type CleanupServiceConfig struct {
	AuthSessionService AuthSessionServicer
	IdleTimeout        time.Duration
	StatePruner        IdleStatePruner
}

type CleanupService struct {
	authSessionService AuthSessionServicer
	idleTimeout        time.Duration
	statePruner        IdleStatePruner

	mu            *sync.Mutex
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	wg            *sync.WaitGroup
	now           func() time.Time
}

func NewCleanupService(config CleanupServiceConfig) *CleanupService {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 2 * time.Hour
	}

	return &CleanupService{
		authSessionService: config.AuthSessionService,
		idleTimeout:        config.IdleTimeout,
		statePruner:        config.StatePruner,
		mu:                 &sync.Mutex{},
		wg:                 &sync.WaitGroup{},
		now:                time.Now,
	}
}

// RunOnce removes expired auth sessions and the idle home states of users no longer signed in.
func (s *CleanupService) RunOnce() {
	l := slog.With("function", "cleanup")
	now := s.now()

	if s.authSessionService != nil {
		removed, err := s.authSessionService.DeleteExpired(now)

		if err != nil {
			l.Error("error removing expired auth sessions", "error", err)
		} else if removed > 0 {
			l.Info("removed expired auth sessions", "removed", removed)
		}
	}

	if s.statePruner == nil || s.authSessionService == nil {
		return
	}

	/*
	 * A signed in user keeps their view state, however long it sits.
	 * Only state left behind by expired sessions is dropped.
	 */
	active, err := s.authSessionService.ActiveUserIDs(now)

	if err != nil {
		l.Error("error finding active users. skipping view state pruning", "error", err)
		return
	}

	keep := func(userID uint) bool {
		_, ok := active[userID]
		return ok
	}

	if pruned := s.statePruner.PruneIdle(now.Add(-s.idleTimeout), keep); pruned > 0 {
		l.Info("removed idle home states", "removed", pruned)
	}
}

func (s *CleanupService) StartCleanupRoutine(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cleanupTicker != nil {
		return
	}

	s.stopCleanup = make(chan struct{})
	s.cleanupTicker = time.NewTicker(interval)

	ticker := s.cleanupTicker
	stop := s.stopCleanup

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()

	slog.Info("cleanup routine started", "interval", interval)
}

func (s *CleanupService) StopCleanupRoutine() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cleanupTicker == nil {
		return
	}

	close(s.stopCleanup)
	s.wg.Wait()
	s.cleanupTicker = nil
	slog.Info("cleanup routine stopped")
}
