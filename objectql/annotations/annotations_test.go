package annotations

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledCollector(t *testing.T) {
	c := NewCollector(nil)
	assert.False(t, c.Enabled())

	c.AddTiming(RecordEvaluated, time.Now(), map[string]any{"matched": true})
	assert.Empty(t, c.Events())

	var nilCollector *Collector
	assert.False(t, nilCollector.Enabled())
	nilCollector.Add(Event{Name: QueryCompiled})
	assert.Nil(t, nilCollector.Events())
}

func TestCollectorRecordsAndForwards(t *testing.T) {
	var seen []string
	c := NewCollector(func(e Event) { seen = append(seen, e.Name) })

	start := time.Now()
	c.AddTiming(QueryCompiled, start, map[string]any{"query": "x"})
	c.AddTiming(RecordEvaluated, start, map[string]any{"matched": false})

	events := c.Events()
	require.Len(t, events, 2)
	assert.Equal(t, []string{QueryCompiled, RecordEvaluated}, seen)
	assert.GreaterOrEqual(t, events[0].Latency, time.Duration(0))
	assert.Equal(t, events[0].End.Sub(events[0].Start), events[0].Latency)

	c.Reset()
	assert.Empty(t, c.Events())
}

func TestCollectorConcurrentAdd(t *testing.T) {
	var mu sync.Mutex
	count := 0
	c := NewCollector(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(Event{Name: RecordEvaluated})
		}()
	}
	wg.Wait()

	assert.Len(t, c.Events(), 20)
	assert.Equal(t, 20, count)
}

func TestOutputFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewOutputFormatter(&buf)

	tests := []struct {
		event Event
		want  string
	}{
		{
			Event{Name: QueryCompiled, Latency: 12 * time.Microsecond, Data: map[string]any{
				"query": "person.gramps_id  ==\n 'I1'", "tables": []string{"person"},
			}},
			"[12µs] Query: person.gramps_id == 'I1' over person",
		},
		{
			Event{Name: RecordEvaluated, Latency: 2500 * time.Microsecond, Data: map[string]any{
				"kind": "person", "handle": "h1", "matched": true,
			}},
			"[2.5ms] ✓ person h1",
		},
		{
			Event{Name: RecordFailed, Data: map[string]any{
				"kind": "note", "handle": "n1", "error": errors.New("key error: 'x'"),
			}},
			"[0µs] ✗ note n1: key error: 'x'",
		},
		{
			Event{Name: RecordTimedOut, Data: map[string]any{"kind": "list"}},
			"[0µs] ⏱ list timed out",
		},
		{
			Event{Name: IterateComplete, Data: map[string]any{
				"records.count": 3, "matched.count": 2, "failed.count": 0,
			}},
			"[0µs] === Done with 3 records, 2 matched, 0 failed.",
		},
		{
			Event{Name: "custom/event", Data: map[string]any{"a": 1}},
			"[0µs] custom/event map[a:1]",
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, f.Format(tt.event))
	}

	f.Handle(tests[0].event)
	assert.Equal(t, tests[0].want+"\n", buf.String())
}

func TestTruncateQuery(t *testing.T) {
	long := bytes.Repeat([]byte("a "), 100)
	got := truncateQuery(string(long))
	assert.Len(t, got, 80)
	assert.True(t, len(got) > 3 && got[len(got)-3:] == "...")
}
