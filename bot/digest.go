package bot

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

const maxTelegramMessageLen = 4096

// activity is one queued line of a chat's digest.
type activity struct {
	topic string
	line  string
	at    time.Time
}

// batch holds what a chat has accumulated since its last digest.
type batch struct {
	since time.Time
	items []activity
}

// DigestBuffer batches login activity per admin chat and posts a summary
// every interval instead of one message per attempt.
type DigestBuffer struct {
	mu       sync.Mutex
	pending  map[int64]*batch
	interval time.Duration
	send     func(chatId int64, text string)
	now      func() time.Time
	running  bool
	quit     chan struct{}
	stopped  chan struct{}
}

func NewDigestBuffer(send func(chatId int64, text string), interval time.Duration) *DigestBuffer {
	return &DigestBuffer{
		pending:  make(map[int64]*batch),
		interval: interval,
		send:     send,
		now:      time.Now,
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (d *DigestBuffer) Add(chatId int64, topic, line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	at := d.now()
	b, ok := d.pending[chatId]
	if !ok {
		b = &batch{since: at}
		d.pending[chatId] = b
	}
	b.items = append(b.items, activity{topic: topic, line: line, at: at})
}

func (d *DigestBuffer) StartTicker() {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()

	go func() {
		defer close(d.stopped)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Flush()
			case <-d.quit:
				d.Flush()
				return
			}
		}
	}()
}

// Flush posts every pending batch, chats in ascending id order.
func (d *DigestBuffer) Flush() {
	d.mu.Lock()
	pending := d.pending
	d.pending = make(map[int64]*batch)
	d.mu.Unlock()

	for _, chatId := range slices.Sorted(maps.Keys(pending)) {
		b := pending[chatId]
		if len(b.items) == 0 {
			continue
		}
		for _, part := range splitMessage(b.render(), maxTelegramMessageLen) {
			d.send(chatId, part)
		}
	}
}

// Stop flushes pending entries; safe to call when the ticker never started.
func (d *DigestBuffer) Stop() {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if !running {
		d.Flush()
		return
	}
	close(d.quit)
	<-d.stopped
}

// render prints a tally line followed by one section per topic.
func (b *batch) render() string {
	byTopic := make(map[string][]activity)
	for _, a := range b.items {
		byTopic[a.topic] = append(byTopic[a.topic], a)
	}
	topics := slices.Sorted(maps.Keys(byTopic))

	tally := make([]string, 0, len(topics))
	for _, topic := range topics {
		tally = append(tally, fmt.Sprintf("%s %d", Sanitize(topic), len(byTopic[topic])))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Login activity since %s*\n", b.since.Format("15:04"))
	fmt.Fprintf(&sb, "%s\n", strings.Join(tally, ", "))
	for _, topic := range topics {
		fmt.Fprintf(&sb, "\n*%s*\n", Sanitize(topic))
		for _, a := range byTopic[topic] {
			fmt.Fprintf(&sb, "`%s` %s\n", a.at.Format("15:04"), Sanitize(a.line))
		}
	}
	return sb.String()
}
