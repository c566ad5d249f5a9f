package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeRetentionStore struct {
	mu           sync.Mutex
	scrubbed     map[string]time.Time
	auditCutoff  time.Time
	signalCutoff time.Time
	scrubErr     map[string]error
	sweeps       int
}

func newFakeRetentionStore() *fakeRetentionStore {
	return &fakeRetentionStore{scrubbed: map[string]time.Time{}, scrubErr: map[string]error{}}
}

func (f *fakeRetentionStore) ScrubQuoteMetadata(_ context.Context, table string, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.scrubErr[table]; err != nil {
		return 0, err
	}
	f.scrubbed[table] = cutoff
	return 1, nil
}

func (f *fakeRetentionStore) DeleteAuditEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auditCutoff = cutoff
	f.sweeps++
	return 2, nil
}

func (f *fakeRetentionStore) DeleteSignalEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signalCutoff = cutoff
	return 0, nil
}

func (f *fakeRetentionStore) sweepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

func TestRetentionSweeper_Sweep(t *testing.T) {
	store := newFakeRetentionStore()
	store.scrubErr["life_quotes"] = errors.New("relation does not exist")

	r := NewRetentionSweeper(store, []string{"auto_quotes", "life_quotes", "boat_quotes"}, time.Hour, 90, 365)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Sweep(context.Background())

	wantMeta := now.AddDate(0, 0, -90)
	for _, table := range []string{"auto_quotes", "boat_quotes"} {
		if got := store.scrubbed[table]; !got.Equal(wantMeta) {
			t.Errorf("%s cutoff = %v, want %v", table, got, wantMeta)
		}
	}
	if _, ok := store.scrubbed["life_quotes"]; ok {
		t.Error("failed table should not be recorded")
	}

	wantEvents := now.AddDate(0, 0, -365)
	if !store.auditCutoff.Equal(wantEvents) || !store.signalCutoff.Equal(wantEvents) {
		t.Errorf("event cutoffs = %v / %v, want %v", store.auditCutoff, store.signalCutoff, wantEvents)
	}
}

func TestRetentionSweeper_Disabled(t *testing.T) {
	store := newFakeRetentionStore()
	r := NewRetentionSweeper(store, []string{"auto_quotes"}, time.Hour, 0, 0)

	r.Sweep(context.Background())

	if len(store.scrubbed) != 0 || store.sweepCount() != 0 {
		t.Error("zero retention days should disable sweeping")
	}
}

func TestRetentionSweeper_StartStopsOnCancel(t *testing.T) {
	store := newFakeRetentionStore()
	r := NewRetentionSweeper(store, nil, 10*time.Millisecond, 90, 365)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for store.sweepCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("sweeper did not run on its interval")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestRetentionSweeper_StartNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Minute} {
		store := newFakeRetentionStore()
		r := NewRetentionSweeper(store, []string{"auto_quotes"}, interval, 90, 365)

		done := make(chan struct{})
		go func() {
			r.Start(context.Background())
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("Start() with interval %v did not return", interval)
		}
		if store.sweepCount() != 0 {
			t.Errorf("interval %v: sweeper ran %d times, want disabled", interval, store.sweepCount())
		}
	}
}
