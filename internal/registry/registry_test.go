package registry

import (
	"sync"
	"testing"
)

func TestRegistry_WithCreates(t *testing.T) {
	r := New(func() []string { return []string{} })

	r.With("alice", func(v *[]string) { *v = append(*v, "a") })
	r.With("alice", func(v *[]string) { *v = append(*v, "b") })

	var got []string
	ok := r.Peek("alice", func(v *[]string) { got = *v })
	if !ok {
		t.Fatal("Expected alice to exist")
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 values, got %d", len(got))
	}
}

func TestRegistry_PeekDoesNotCreate(t *testing.T) {
	r := New[int](nil)

	if r.Peek("ghost", func(v *int) { *v = 1 }) {
		t.Error("Peek should report missing user")
	}
	if r.Has("ghost") {
		t.Error("Peek must not create an entry")
	}
	if r.Len() != 0 {
		t.Errorf("Expected 0 users, got %d", r.Len())
	}
}

func TestRegistry_UsersSorted(t *testing.T) {
	r := New[int](nil)
	for _, u := range []string{"web:b", "discord:1", "web:a"} {
		r.With(u, func(v *int) {})
	}

	users := r.Users()
	want := []string{"discord:1", "web:a", "web:b"}
	if len(users) != len(want) {
		t.Fatalf("Expected %d users, got %d", len(want), len(users))
	}
	for i := range want {
		if users[i] != want[i] {
			t.Errorf("users[%d] = %q, want %q", i, users[i], want[i])
		}
	}
}

func TestRegistry_ConcurrentSameUser(t *testing.T) {
	r := New[int](nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.With("u", func(v *int) { *v++ })
		}()
	}
	wg.Wait()

	var n int
	r.Peek("u", func(v *int) { n = *v })
	if n != 50 {
		t.Errorf("Expected 50 increments, got %d", n)
	}
}
