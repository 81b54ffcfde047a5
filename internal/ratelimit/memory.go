package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is a sliding window log: a key may make max attempts within
// any span of window.
type Memory struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
}

func NewMemory(max int, window time.Duration) *Memory {
	if max < 1 {
		max = 1
	}
	return &Memory{
		hits:   make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	hits := prune(m.hits[key], now.Add(-m.window))

	if len(hits) >= m.max {
		m.hits[key] = hits
		return Decision{
			Allowed:    false,
			RetryAfter: hits[0].Add(m.window).Sub(now),
		}, nil
	}

	hits = append(hits, now)
	m.hits[key] = hits

	return Decision{Allowed: true, Remaining: m.max - len(hits)}, nil
}

// Cleanup drops keys with no attempts inside the window.
func (m *Memory) Cleanup() {
	cutoff := m.now().Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, hits := range m.hits {
		if hits = prune(hits, cutoff); len(hits) == 0 {
			delete(m.hits, k)
		} else {
			m.hits[k] = hits
		}
	}
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (m *Memory) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Cleanup()
			}
		}
	}()
}

func (m *Memory) keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hits)
}

// prune drops timestamps at or before cutoff. hits is ordered oldest first.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0:0], hits[i:]...)
}
