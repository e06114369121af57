package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunDeactivatesExpiredTokensAndCancelsStalePending(t *testing.T) {
	now := time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)

	tokens := &fakeTokenCleaner{deactivated: 3}
	purchases := &fakePurchaseCleaner{canceled: 2}

	job := New(tokens, purchases, 7*24*time.Hour, nil)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}

	if !tokens.cutoff.Equal(now) {
		t.Fatalf("unexpected token cutoff: got %v want %v", tokens.cutoff, now)
	}
	want := now.Add(-7 * 24 * time.Hour)
	if !purchases.cutoff.Equal(want) {
		t.Fatalf("unexpected pending cutoff: got %v want %v", purchases.cutoff, want)
	}
}

func TestRunDefaultsPendingRetention(t *testing.T) {
	now := time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)
	purchases := &fakePurchaseCleaner{}

	job := New(nil, purchases, 0, nil)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}

	want := now.Add(-7 * 24 * time.Hour)
	if !purchases.cutoff.Equal(want) {
		t.Fatalf("unexpected pending cutoff: got %v want %v", purchases.cutoff, want)
	}
}

func TestRunStopsOnTokenCleanerError(t *testing.T) {
	tokens := &fakeTokenCleaner{err: errors.New("db down")}
	purchases := &fakePurchaseCleaner{}

	job := New(tokens, purchases, time.Hour, nil)

	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error from token cleaner")
	}
	if purchases.calls != 0 {
		t.Fatalf("purchase cleanup must not run after token cleanup failure")
	}
}

type fakeTokenCleaner struct {
	deactivated int64
	cutoff      time.Time
	err         error
}

func (f *fakeTokenCleaner) DeactivateExpired(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deactivated, f.err
}

type fakePurchaseCleaner struct {
	canceled int64
	cutoff   time.Time
	calls    int
	err      error
}

func (f *fakePurchaseCleaner) CancelStalePending(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.canceled, f.err
}
