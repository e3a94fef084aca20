package workerpool

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPoolFirstErrorWins(t *testing.T) {
	p := New(context.Background())
	errA := errors.New("task A failed")

	p.Go(func() error { return errA })
	p.Go(func() error {
		<-p.Context().Done()
		return errors.New("task B failed")
	})

	if err := p.Wait(); err != errA {
		t.Fatalf("expected the first error to win, got %v", err)
	}
}

func TestPoolContextCancelledOnFailure(t *testing.T) {
	p := New(context.Background())
	p.Go(func() error { return errors.New("boom") })

	select {
	case <-p.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("expected pool context to be cancelled after a task failed")
	}
	p.Wait()
}

func TestFileSlotsBoundsConcurrency(t *testing.T) {
	slots := NewFileSlots(2)
	ctx := context.Background()

	if err := slots.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if err := slots.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	acquired := make(chan struct{})
	go func() {
		slots.Acquire(ctx)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("third acquire should have blocked with only 2 permits")
	case <-time.After(100 * time.Millisecond):
	}

	slots.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("expected third acquire to proceed after a release")
	}
}
