package worker

import (
	"context"
	"errors"
	"testing"
)

type fakeSweeper struct {
	n     int64
	err   error
	calls int
}

func (f *fakeSweeper) ExpireOverdue(ctx context.Context) (int64, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep must run with a deadline")
	}
	return f.n, f.err
}

func TestSweep(t *testing.T) {
	s := &fakeSweeper{n: 3}
	n, err := Sweep(context.Background(), s)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 3 || s.calls != 1 {
		t.Errorf("n = %d calls = %d, want 3 and 1", n, s.calls)
	}

	s.err = errors.New("db down")
	if _, err := Sweep(context.Background(), s); err == nil {
		t.Error("expected sweep error to propagate")
	}
}

func TestNewScheduler(t *testing.T) {
	if _, err := NewScheduler(context.Background(), "", nil); err == nil {
		t.Error("nil sweeper should be rejected")
	}
	if _, err := NewScheduler(context.Background(), "not a cron spec", &fakeSweeper{}); err == nil {
		t.Error("invalid spec should be rejected")
	}
	sch, err := NewScheduler(context.Background(), "", &fakeSweeper{})
	if err != nil {
		t.Fatalf("NewScheduler default spec: %v", err)
	}
	sch.Start()
	sch.Stop()
}
