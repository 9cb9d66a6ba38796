package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobs struct {
	sweeps, prewarms atomic.Int32
	err              error
}

func (f *fakeJobs) Sweep(context.Context) (int, error) {
	f.sweeps.Add(1)
	return 3, f.err
}

func (f *fakeJobs) Prewarm(context.Context) error {
	f.prewarms.Add(1)
	return f.err
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		sweep   string
		prewarm string
		entries int
		wantErr bool
	}{
		{"both", "0 30 2 * * *", "0 0 9 * * 1-5", 2, false},
		{"sweep only", "0 30 2 * * *", "", 1, false},
		{"none", "", "", 0, false},
		{"descriptor", "@daily", "@every 1h", 2, false},
		{"missing seconds field", "30 2 * * *", "", 0, true},
		{"garbage", "", "not a cron", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(context.Background(), &fakeJobs{}, nil)
			err := s.Register(tt.sweep, tt.prewarm)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, s.Cron.Entries(), tt.entries)
		})
	}
}

func TestRunNow(t *testing.T) {
	jobs := &fakeJobs{}
	s := New(context.Background(), jobs, nil)
	s.RunSweep()
	s.RunPrewarm()
	assert.Equal(t, int32(1), jobs.sweeps.Load())
	assert.Equal(t, int32(1), jobs.prewarms.Load())

	// Failures are logged, not propagated.
	jobs.err = errors.New("disk full")
	s.RunSweep()
	s.RunPrewarm()
	assert.Equal(t, int32(2), jobs.sweeps.Load())
}

func TestScheduledRun(t *testing.T) {
	jobs := &fakeJobs{}
	s := New(context.Background(), jobs, nil)
	require.NoError(t, s.Register("* * * * * *", ""))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return jobs.sweeps.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}
