package wallet

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/NebulousLabs/threadgroup"
	"github.com/sirupsen/logrus"

	"github.com/kryptokrona/kryptokrona-walletcore-go/config"
)

// Scheduler runs the wallet's three periodic background tasks, each on its
// own ticker and each guarded so that a slow run is never joined by a
// second concurrent run of the same task: sync_tick drives the
// Synchronizer, node_refresh polls node info for the compat check, and
// locked_tx_check reconciles locked inputs whose parent transaction never
// confirmed.
//
// Grounded on the teacher's wallet.go threadgroup-owned background loops
// (e.g. the consensus-change subscription goroutine in update.go),
// generalized from one subscription loop to three independently-ticking,
// single-in-flight-guarded tasks.
type Scheduler struct {
	tg  threadgroup.ThreadGroup
	log *logrus.Entry

	sync *Synchronizer
	node *nodeRefresher
	locked *lockedTxChecker

	cfg config.Config

	syncInFlight   int32
	refreshInFlight int32
	lockedInFlight  int32
}

// nodeRefresher and lockedTxChecker are thin seams so Scheduler's periodic
// tasks are independently testable without a full Synchronizer.
type nodeRefresher struct {
	refresh func(ctx context.Context) error
}

type lockedTxChecker struct {
	check func(ctx context.Context) error
}

// NewScheduler constructs a scheduler driving sync against synchronizer,
// using refresh and checkLocked for the other two tasks.
func NewScheduler(synchronizer *Synchronizer, cfg config.Config, refresh func(ctx context.Context) error, checkLocked func(ctx context.Context) error, log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		log:    log,
		sync:   synchronizer,
		node:   &nodeRefresher{refresh: refresh},
		locked: &lockedTxChecker{check: checkLocked},
		cfg:    cfg,
	}
}

// Start launches the three periodic tasks in separate goroutines, each
// stopping when ctx is cancelled or the scheduler is closed.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.tg.Add(); err != nil {
		return err
	}
	go s.runSyncTick(ctx)

	if err := s.tg.Add(); err != nil {
		return err
	}
	go s.runNodeRefresh(ctx)

	if err := s.tg.Add(); err != nil {
		return err
	}
	go s.runLockedTxCheck(ctx)

	return nil
}

// Close stops every running task and waits for them to exit.
func (s *Scheduler) Close() error {
	return s.tg.Stop()
}

func (s *Scheduler) runSyncTick(ctx context.Context) {
	defer s.tg.Done()
	ticker := time.NewTicker(s.cfg.SyncTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.tg.StopChan():
			return
		case <-ticker.C:
			s.runSyncTickOnce(ctx)
		}
	}
}

func (s *Scheduler) runSyncTickOnce(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.syncInFlight, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&s.syncInFlight, 0)

	didWork, err := s.sync.Tick(ctx)
	if err != nil {
		s.log.WithError(err).Warn("scheduler: sync_tick failed")
		return
	}
	if !didWork {
		time.Sleep(s.cfg.TickIdle)
	}
}

func (s *Scheduler) runNodeRefresh(ctx context.Context) {
	defer s.tg.Done()
	ticker := time.NewTicker(s.cfg.NodeRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.tg.StopChan():
			return
		case <-ticker.C:
			if !atomic.CompareAndSwapInt32(&s.refreshInFlight, 0, 1) {
				continue
			}
			if s.node.refresh != nil {
				if err := s.node.refresh(ctx); err != nil {
					s.log.WithError(err).Warn("scheduler: node_refresh failed")
				}
			}
			atomic.StoreInt32(&s.refreshInFlight, 0)
		}
	}
}

func (s *Scheduler) runLockedTxCheck(ctx context.Context) {
	defer s.tg.Done()
	ticker := time.NewTicker(s.cfg.LockedTxCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.tg.StopChan():
			return
		case <-ticker.C:
			if !atomic.CompareAndSwapInt32(&s.lockedInFlight, 0, 1) {
				continue
			}
			if s.locked.check != nil {
				if err := s.locked.check(ctx); err != nil {
					s.log.WithError(err).Warn("scheduler: locked_tx_check failed")
				}
			}
			atomic.StoreInt32(&s.lockedInFlight, 0)
		}
	}
}
