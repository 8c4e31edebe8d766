package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/modsync/internal/mods"
)

type fakeRefresher struct {
	mu     sync.Mutex
	forces []bool
	called chan struct{}
	// wait blocks Refresh until its context is cancelled.
	wait bool
}

func (f *fakeRefresher) Refresh(ctx context.Context, force bool) ([]mods.Mod, error) {
	f.mu.Lock()
	f.forces = append(f.forces, force)
	f.mu.Unlock()
	if f.called != nil {
		f.called <- struct{}{}
	}
	if f.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, nil
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		timezone string
		wantErr  bool
	}{
		{"default", DefaultCron, DefaultTimezone, false},
		{"empty timezone means UTC", "*/15 * * * *", "", false},
		{"named zone", "0 6 * * 1-5", "Europe/Berlin", false},
		{"bad cron", "every day", "UTC", true},
		{"six fields", "0 0 0 * * *", "UTC", true},
		{"empty cron", "", "UTC", true},
		{"bad zone", "0 0 * * *", "Mars/Olympus", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.expr, tt.timezone)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNextRun_UsesTimezone(t *testing.T) {
	s := New("0 0 * * *", "Europe/Berlin", &fakeRefresher{}, nil)
	defer s.Stop()
	require.True(t, s.Enabled())

	s.now = func() time.Time { return time.Date(2026, 1, 13, 12, 0, 0, 0, time.UTC) }
	next := s.NextRun()
	require.NotNil(t, next)

	// Midnight in Berlin (UTC+1 in winter) is 23:00 UTC.
	assert.True(t, next.Equal(time.Date(2026, 1, 13, 23, 0, 0, 0, time.UTC)), "got %s", next)
}

func TestNew_InvalidScheduleDisables(t *testing.T) {
	r := &fakeRefresher{called: make(chan struct{}, 1)}
	s := New("not a cron", "UTC", r, nil)
	defer s.Stop()

	assert.False(t, s.Enabled())
	assert.Nil(t, s.NextRun())

	// The startup refresh still runs.
	s.Start(true)
	<-r.called
}

func TestStart_InitialRefreshIsForced(t *testing.T) {
	r := &fakeRefresher{called: make(chan struct{}, 1)}
	s := New(DefaultCron, DefaultTimezone, r, nil)

	s.Start(true)
	<-r.called
	s.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, []bool{true}, r.forces)
}

func TestStop_CancelsRunningRefresh(t *testing.T) {
	r := &fakeRefresher{called: make(chan struct{}, 1), wait: true}
	s := New(DefaultCron, DefaultTimezone, r, nil)

	s.Start(true)
	<-r.called

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after cancelling the refresh")
	}
}
