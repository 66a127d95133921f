// Package connectivity provides the boolean online signal the sync
// coordinator consumes.
//
// The Monitor is the engine-facing surface: a latest-value feed of the
// online flag that the platform (or a Prober) drives. The engine never
// probes the network itself.
package connectivity

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/phayzeee/Offline-First-Architecture/internal/live"
)

// Monitor holds the current connectivity state and broadcasts changes.
type Monitor struct {
	mu     sync.Mutex
	online bool
	feed   *live.Feed[bool]
}

// NewMonitor creates a monitor with the given initial state.
func NewMonitor(online bool) *Monitor {
	m := &Monitor{online: online, feed: live.NewFeed[bool]()}
	m.feed.Publish(online)
	return m
}

// Set updates the connectivity state. Watchers are only notified when
// the state actually changes.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if changed {
		m.feed.Publish(online)
	}
}

// Online returns the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Watch returns a live feed of the connectivity flag. The current state
// is replayed immediately.
func (m *Monitor) Watch() (<-chan bool, func()) {
	return m.feed.Subscribe()
}

// Prober drives a Monitor by periodically probing an HTTP endpoint.
type Prober struct {
	monitor  *Monitor
	url      string
	interval time.Duration
	client   *http.Client
	logger   *log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProber creates a prober that HEADs url every interval and flips the
// monitor accordingly. If logger is nil, a default logger writing to
// stderr is used.
func NewProber(monitor *Monitor, url string, interval time.Duration, logger *log.Logger) *Prober {
	if logger == nil {
		logger = log.New(os.Stderr, "[connectivity] ", log.LstdFlags)
	}
	return &Prober{
		monitor:  monitor,
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
	}
}

// Start begins probing in the background. Call Stop to shut down.
func (p *Prober) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.probe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.probe(ctx)
			}
		}
	}()
}

// Stop shuts the prober down and waits for the probe goroutine.
func (p *Prober) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// probe performs a single connectivity check.
func (p *Prober) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.logger.Printf("Invalid probe request: %v", err)
		return
	}

	resp, err := p.client.Do(req)
	online := err == nil
	if resp != nil {
		_ = resp.Body.Close()
	}

	was := p.monitor.Online()
	p.monitor.Set(online)
	if was != online {
		p.logger.Printf("Connectivity changed: online=%v", online)
	}
}
