package stats

import (
	"errors"
	"sync"
	"testing"
)

func TestCollector(t *testing.T) {
	boom := errors.New("boom")
	events := []Event{
		{Stage: StageSource, Type: EventTypeScanned},
		{Stage: StageSource, Type: EventTypeScanned},
		{Stage: StageMatch, Type: EventTypeMatched, Hits: 3},
		{Stage: StageMatch, Type: EventTypeLenient},
		{Stage: StageMatch, Type: EventTypeError, Err: boom},
		{Stage: StageMatch, Type: EventTypeError},
	}

	c := NewCollector()
	for _, evt := range events {
		c.Apply(evt)
	}

	got := c.Snapshot()
	want := Summary{Scanned: 2, Matched: 1, Hits: 3, Lenient: 1, Errors: 2, LastError: boom}
	if got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
	if attrs := got.LogAttrs(); len(attrs) != 12 {
		t.Errorf("LogAttrs() has %d entries, want 12", len(attrs))
	}
}

func TestCollector_ConcurrentApply(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Apply(Event{Stage: StageSource, Type: EventTypeScanned})
			}
		}()
	}
	wg.Wait()
	if got := c.Snapshot(); got.Scanned != 800 {
		t.Errorf("Scanned = %d, want 800", got.Scanned)
	}
	if attrs := (Summary{}).LogAttrs(); len(attrs) != 10 {
		t.Errorf("LogAttrs() without error has %d entries, want 10", len(attrs))
	}
}
