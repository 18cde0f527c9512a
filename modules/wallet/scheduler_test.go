package wallet

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kryptokrona/kryptokrona-walletcore-go/config"
	"github.com/kryptokrona/kryptokrona-walletcore-go/crypto/cryptoref"
)

func TestSchedulerRunsAllThreeTasks(t *testing.T) {
	provider := cryptoref.New()
	privView, _ := cryptoref.GenerateKeyPair()
	registry := NewSubWalletRegistry(provider, nil, 0)

	cfg := config.Default()
	cfg.SyncTickInterval = 5 * time.Millisecond
	cfg.NodeRefreshInterval = 5 * time.Millisecond
	cfg.LockedTxCheckInterval = 5 * time.Millisecond
	cfg.TickIdle = time.Millisecond

	sync := NewSynchronizer(&fakeNode{}, registry, provider, cfg, privView, nil, nil, 0, 0, nil)

	var refreshCount, lockedCount int32
	sched := NewScheduler(sync, cfg, func(ctx context.Context) error {
		atomic.AddInt32(&refreshCount, 1)
		return nil
	}, func(ctx context.Context) error {
		atomic.AddInt32(&lockedCount, 1)
		return nil
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(40 * time.Millisecond)
	_ = sched.Close()

	if atomic.LoadInt32(&refreshCount) == 0 {
		t.Fatal("expected node_refresh to run at least once")
	}
	if atomic.LoadInt32(&lockedCount) == 0 {
		t.Fatal("expected locked_tx_check to run at least once")
	}
}

func TestSchedulerSingleInFlightGuard(t *testing.T) {
	provider := cryptoref.New()
	privView, _ := cryptoref.GenerateKeyPair()
	registry := NewSubWalletRegistry(provider, nil, 0)

	cfg := config.Default()
	cfg.NodeRefreshInterval = time.Millisecond

	sync := NewSynchronizer(&fakeNode{}, registry, provider, cfg, privView, nil, nil, 0, 0, nil)

	var concurrent int32
	var maxObserved int32
	sched := NewScheduler(sync, cfg, func(ctx context.Context) error {
		n := atomic.AddInt32(&concurrent, 1)
		if n > atomic.LoadInt32(&maxObserved) {
			atomic.StoreInt32(&maxObserved, n)
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&concurrent, -1)
		return nil
	}, func(ctx context.Context) error { return nil }, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sched.Start(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(45 * time.Millisecond)
	_ = sched.Close()

	if atomic.LoadInt32(&maxObserved) > 1 {
		t.Fatalf("expected at most one node_refresh in flight at a time, observed %d", maxObserved)
	}
}
