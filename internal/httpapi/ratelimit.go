package httpapi

import (
	"sync"
	"time"
)

// rateGate gives each key a fixed request budget per window. Keys are
// route-qualified ("login:<ip>") so one gate can cover several routes
// with independent budgets. Stale windows are pruned lazily on the
// next Allow call, so there is no background goroutine to stop.
type rateGate struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	seen   map[string]gateWindow
	swept  time.Time
}

type gateWindow struct {
	started time.Time
	hits    int
}

func newRateGate(limit int, window time.Duration) *rateGate {
	return &rateGate{
		window: window,
		limit:  limit,
		seen:   make(map[string]gateWindow),
		swept:  time.Now(),
	}
}

// Allow records one hit for key and reports whether it fits the
// budget, along with how long the caller should wait when it does not.
func (g *rateGate) Allow(key string) (bool, time.Duration) {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()

	if now.Sub(g.swept) > g.window {
		for k, w := range g.seen {
			if now.Sub(w.started) >= g.window {
				delete(g.seen, k)
			}
		}
		g.swept = now
	}

	w := g.seen[key]
	if w.started.IsZero() || now.Sub(w.started) >= g.window {
		w = gateWindow{started: now}
	}
	w.hits++
	g.seen[key] = w
	if w.hits <= g.limit {
		return true, 0
	}
	return false, w.started.Add(g.window).Sub(now)
}
