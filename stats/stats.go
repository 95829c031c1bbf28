package stats

import (
	"context"
	"sync"
)

type Stage string

const (
	StageSource Stage = "source"
	StageMatch  Stage = "match"
	StageReport Stage = "report"
)

type EventType string

const (
	EventTypeScanned EventType = "scanned"
	EventTypeMatched EventType = "matched"
	EventTypeLenient EventType = "lenient"
	EventTypeError   EventType = "error"
)

type Event struct {
	Stage Stage
	Type  EventType
	Path  string
	// Hits is the number of matched lines for EventTypeMatched.
	Hits   int
	Err    error
	Detail string
}

type Summary struct {
	Scanned   int
	Matched   int
	Hits      int
	Lenient   int
	Errors    int
	LastError error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"scanned", s.Scanned,
		"matched", s.Matched,
		"hits", s.Hits,
		"lenient", s.Lenient,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

// Apply folds one event into the summary.
func (c *Collector) Apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypeMatched:
		c.summary.Matched++
		c.summary.Hits += evt.Hits
	case EventTypeLenient:
		c.summary.Lenient++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

// EventStream hands each subscriber its own copy of the pipeline events.
type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}
