package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Publisher ships aggregated log batches somewhere out of band (Kafka in practice).
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectorConfig struct {
	FlushInterval  time.Duration // periodic flush (e.g. 30s)
	CountThreshold int           // max unique entries before an early flush
	Topic          string
	Publisher      Publisher
}

// AggregatedEntry is one deduplicated error with occurrence bookkeeping.
type AggregatedEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// ErrorCollector deduplicates identical error logs and flushes them in
// batches, so a failing ticker loop does not flood the ops topic.
type ErrorCollector struct {
	cfg     *CollectorConfig
	entries map[string]*AggregatedEntry
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewErrorCollector(cfg *CollectorConfig) *ErrorCollector {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &ErrorCollector{
		cfg:     cfg,
		entries: make(map[string]*AggregatedEntry),
		ctx:     ctx,
		cancel:  cancel,
	}

	c.wg.Add(1)
	go c.loop()

	return c
}

func (c *ErrorCollector) Add(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := c.key(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.entries[key] = &AggregatedEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.entries) >= c.cfg.CountThreshold {
		c.flush()
	}
}

func (c *ErrorCollector) key(level, message string, fields map[string]interface{}, caller string) string {
	data := struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, fields, caller}

	b, _ := json.Marshal(data)
	return fmt.Sprintf("%x", sha256.Sum256(b))
}

func (c *ErrorCollector) loop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.flush()
			c.mu.Unlock()
		case <-c.ctx.Done():
			// final flush before shutdown
			c.mu.Lock()
			c.flush()
			c.mu.Unlock()
			return
		}
	}
}

// flush must be called with c.mu held.
func (c *ErrorCollector) flush() {
	if len(c.entries) == 0 {
		return
	}

	batch := make([]AggregatedEntry, 0, len(c.entries))
	for _, e := range c.entries {
		batch = append(batch, *e)
	}
	c.entries = make(map[string]*AggregatedEntry)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
			fmt.Printf("error collector flush failed: %v\n", err)
		}
	}()
}

func (c *ErrorCollector) Close() {
	c.cancel()
	c.wg.Wait()
}
