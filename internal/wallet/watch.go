package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// DefaultPollInterval matches the one-second account polling of browser wallets.
const DefaultPollInterval = time.Second

type AccountLister interface {
	Accounts(ctx context.Context) ([]common.Address, error)
}

// Watcher polls for the active account until stopped.
type Watcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	ready  chan struct{}
	log    log.Logger

	mu      sync.Mutex
	current common.Address
}

// WatchAccounts polls lister immediately and then every interval, calling fn from the
// watcher goroutine whenever the first account changes. A disappearing account is
// reported as a change to the zero address. Polling errors keep the last account.
func WatchAccounts(ctx context.Context, lister AccountLister, interval time.Duration, fn func(prev, next common.Address)) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		cancel: cancel,
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
		log:    log.Root(),
	}
	go w.loop(ctx, lister, interval, fn)
	return w
}

func (w *Watcher) loop(ctx context.Context, lister AccountLister, interval time.Duration, fn func(prev, next common.Address)) {
	defer close(w.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.poll(ctx, lister, fn)
	close(w.ready)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx, lister, fn)
		}
	}
}

func (w *Watcher) poll(ctx context.Context, lister AccountLister, fn func(prev, next common.Address)) {
	accts, err := lister.Accounts(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Debug("Account poll failed", "err", err)
		}
		return
	}
	var next common.Address
	if len(accts) > 0 {
		next = accts[0]
	}
	w.mu.Lock()
	prev := w.current
	w.current = next
	w.mu.Unlock()
	if prev != next && fn != nil {
		fn(prev, next)
	}
}

// Ready is closed once the first poll has completed.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Current returns the last observed account, zero when none.
func (w *Watcher) Current() common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling and waits for the watcher goroutine to exit. Safe to call twice.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

// Done is closed after the watcher exits.
func (w *Watcher) Done() <-chan struct{} { return w.done }
