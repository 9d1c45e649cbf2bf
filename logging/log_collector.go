package logging

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultCollectorLimit is the number of entries kept per component.
const DefaultCollectorLimit = 500

// LogEntry is one captured log record.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes"`
}

// LogCollector keeps the most recent log entries per component. It is safe for
// concurrent use.
type LogCollector struct {
	limit int

	mu   sync.RWMutex
	logs map[string][]LogEntry
}

// NewLogCollector creates a LogCollector keeping at most limit entries per
// component. A limit <= 0 means DefaultCollectorLimit.
func NewLogCollector(limit int) *LogCollector {
	if limit <= 0 {
		limit = DefaultCollectorLimit
	}
	return &LogCollector{
		limit: limit,
		logs:  make(map[string][]LogEntry),
	}
}

// AddLog appends entry to component, dropping the oldest entry once the limit is
// reached.
func (c *LogCollector) AddLog(component string, entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := append(c.logs[component], entry)
	if over := len(entries) - c.limit; over > 0 {
		entries = slices.Delete(entries, 0, over)
	}
	c.logs[component] = entries
}

// GetLogs returns a copy of the entries for component, oldest first.
func (c *LogCollector) GetLogs(component string) []LogEntry {
	return c.Recent(component, 0)
}

// Recent returns up to n of the newest entries for component, oldest first. n <= 0
// returns all of them.
func (c *LogCollector) Recent(component string, n int) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	logs := c.logs[component]
	if n > 0 && len(logs) > n {
		logs = logs[len(logs)-n:]
	}
	return slices.Clone(logs)
}

// Components returns the components that have entries, sorted.
func (c *LogCollector) Components() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.logs))
	for name := range c.logs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Clear removes all entries.
func (c *LogCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = make(map[string][]LogEntry)
}

// Logger returns a logger that writes through base and records entries at or
// above level under component.
func (c *LogCollector) Logger(base *slog.Logger, component string, level slog.Level) *slog.Logger {
	return slog.New(NewCapturingHandler(base.Handler(), c, component, level)).With("component", component)
}
