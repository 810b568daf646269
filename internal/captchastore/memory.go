// Package captchastore holds pending captcha challenges, either in process or in Redis.
package captchastore

import (
	"context"
	"sync"
	"time"

	"alphagate/entity"
)

type memoryEntry struct {
	challenge entity.CaptchaChallenge
	timer     *time.Timer
}

// Memory evicts every entry with its own timer so abandoned challenges do not accumulate.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memoryEntry)}
}

func (m *Memory) Put(_ context.Context, ch *entity.CaptchaChallenge, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entries[ch.ID]; ok {
		old.timer.Stop()
	}
	entry := &memoryEntry{challenge: *ch}
	entry.timer = time.AfterFunc(ttl, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if current, ok := m.entries[ch.ID]; ok && current == entry {
			delete(m.entries, ch.ID)
		}
	})
	m.entries[ch.ID] = entry
	return nil
}

// Take returns the challenge and removes it in one step.
func (m *Memory) Take(_ context.Context, id string) (*entity.CaptchaChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	m.remove(id)
	ch := entry.challenge
	return &ch, nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) remove(id string) {
	if entry, ok := m.entries[id]; ok {
		entry.timer.Stop()
		delete(m.entries, id)
	}
}
