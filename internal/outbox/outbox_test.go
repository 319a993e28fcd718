package outbox

import (
	"fmt"
	"sync"
	"testing"
)

func TestOutbox_PushDrain(t *testing.T) {
	o := New()

	o.Push("u1", "first")
	o.Push("u1", "second")
	o.Push("u2", "other")

	if o.Pending("u1") != 2 {
		t.Errorf("Expected 2 pending, got %d", o.Pending("u1"))
	}

	got := o.Drain("u1")
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("Unexpected drain result: %v", got)
	}

	// Drain clears the backlog
	if again := o.Drain("u1"); len(again) != 0 {
		t.Errorf("Expected empty second drain, got %v", again)
	}

	// Other users are untouched
	if o.Pending("u2") != 1 {
		t.Errorf("Expected u2 to keep 1 pending, got %d", o.Pending("u2"))
	}
}

func TestOutbox_DrainUnknownUser(t *testing.T) {
	o := New()

	got := o.Drain("nobody")
	if got == nil {
		t.Error("Drain should return an empty slice, not nil")
	}
	if len(got) != 0 {
		t.Errorf("Expected empty drain, got %v", got)
	}
}

func TestOutbox_ConcurrentProducers(t *testing.T) {
	o := New()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				o.Push("u", fmt.Sprintf("p%d-%d", p, i))
			}
		}(p)
	}

	var drained []string
	var dmu sync.Mutex
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			batch := o.Drain("u")
			dmu.Lock()
			drained = append(drained, batch...)
			dmu.Unlock()
		}
	}()
	wg.Wait()

	drained = append(drained, o.Drain("u")...)
	if len(drained) != 100 {
		t.Errorf("Expected 100 notifications in total, got %d", len(drained))
	}
}

func TestOutbox_RequeueGoesFirst(t *testing.T) {
	o := New()
	o.Push("u", "one")
	o.Push("u", "two")
	batch := o.Drain("u")

	o.Push("u", "three")
	o.Requeue("u", batch[1:])
	o.Requeue("u", nil)

	got := o.Drain("u")
	if len(got) != 2 || got[0] != "two" || got[1] != "three" {
		t.Errorf("Expected [two three], got %v", got)
	}
}
