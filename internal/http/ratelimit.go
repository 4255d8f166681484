package http

import (
	"sync"
	"time"
)

// writeLimiter caps mutating requests per client within a fixed window.
// The window starts at a client's first write and resets once it elapses.
type writeLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	seen   map[string]*writeWindow
	done   chan struct{}
	once   sync.Once
}

type writeWindow struct {
	start time.Time
	count int
}

func newWriteLimiter(limit int, window time.Duration) *writeLimiter {
	wl := &writeLimiter{
		limit:  limit,
		window: window,
		seen:   make(map[string]*writeWindow),
		done:   make(chan struct{}),
	}
	go wl.evictLoop()
	return wl
}

func (wl *writeLimiter) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			wl.evictIdle(time.Now())
		case <-wl.done:
			return
		}
	}
}

// evictIdle drops clients whose last window opened more than ten windows ago.
func (wl *writeLimiter) evictIdle(now time.Time) {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	cutoff := now.Add(-10 * wl.window)
	for ip, win := range wl.seen {
		if win.start.Before(cutoff) {
			delete(wl.seen, ip)
		}
	}
}

func (wl *writeLimiter) stop() {
	wl.once.Do(func() {
		close(wl.done)
	})
}

func (wl *writeLimiter) allow(clientIP string) bool {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	now := time.Now()
	win, ok := wl.seen[clientIP]
	if !ok || now.Sub(win.start) > wl.window {
		wl.seen[clientIP] = &writeWindow{start: now, count: 1}
		return true
	}
	win.count++
	return win.count <= wl.limit
}
