package http

import (
	"sync"
	"time"
)

// rateLimiter counts requests per key in fixed windows.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*fixedWindow

	stop     chan struct{}
	stopOnce sync.Once
}

type fixedWindow struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*fixedWindow),
		stop:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow reports whether key may make another request now.
func (rl *rateLimiter) Allow(key string) bool {
	_, ok := rl.Reserve(key)
	return ok
}

// Reserve counts a request for key. When the window is full it returns
// the time left until the window resets.
func (rl *rateLimiter) Reserve(key string) (time.Duration, bool) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.windows[key] = &fixedWindow{start: now, count: 1}
		return 0, true
	}
	if w.count >= rl.limit {
		return rl.window - now.Sub(w.start), false
	}
	w.count++
	return 0, true
}

func (rl *rateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// sweep drops expired windows once per window length.
func (rl *rateLimiter) sweep() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}

		now := rl.now()
		rl.mu.Lock()
		for key, w := range rl.windows {
			if now.Sub(w.start) >= rl.window {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}
