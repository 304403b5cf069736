package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestCall_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(Config{Component: "test", FailureThreshold: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := cb.Call(context.Background(), func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want errBoom", i, err)
		}
	}
	if cb.State() != "open" {
		t.Fatalf("State() = %q, want open", cb.State())
	}

	called := false
	err := cb.Call(context.Background(), func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
	if called {
		t.Error("fn ran while circuit open")
	}
}

func TestCall_SuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{Component: "test", FailureThreshold: 2, Timeout: time.Minute})

	_ = cb.Call(context.Background(), func() error { return errBoom })
	_ = cb.Call(context.Background(), func() error { return nil })
	_ = cb.Call(context.Background(), func() error { return errBoom })

	if cb.State() != "closed" {
		t.Errorf("State() = %q, want closed", cb.State())
	}
}

func TestCall_HalfOpenProbeCloses(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	cb := New(Config{
		Component:        "test",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          20 * time.Millisecond,
		OnStateChange: func(from, to string) {
			mu.Lock()
			transitions = append(transitions, from+"->"+to)
			mu.Unlock()
		},
	})

	_ = cb.Call(context.Background(), func() error { return errBoom })
	time.Sleep(40 * time.Millisecond)
	if cb.State() != "half-open" {
		t.Fatalf("State() = %q, want half-open", cb.State())
	}
	if err := cb.Call(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if cb.State() != "closed" {
		t.Errorf("State() = %q, want closed", cb.State())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestCall_CanceledCallerDoesNotTrip(t *testing.T) {
	cb := New(Config{Component: "test", FailureThreshold: 1, Timeout: time.Minute})

	_ = cb.Call(context.Background(), func() error { return context.Canceled })
	if cb.State() != "closed" {
		t.Errorf("State() = %q, want closed", cb.State())
	}
}

func TestCall_DoneContextSkipsFn(t *testing.T) {
	cb := New(Config{Component: "test"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Call(ctx, func() error { called = true; return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if called {
		t.Error("fn ran with a done context")
	}
}
