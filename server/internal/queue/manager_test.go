package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"downpour/server/internal/events"
	"downpour/server/internal/job"
)

// fakeRunner stands in for the subprocess worker: each started job
// blocks until released or its context is cancelled.
type fakeRunner struct {
	mu      sync.Mutex
	started []string
	release map[string]chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{release: make(map[string]chan struct{})}
}

func (f *fakeRunner) start(ctx context.Context, j *job.Job) {
	f.mu.Lock()
	f.started = append(f.started, j.Id())
	ch := make(chan struct{})
	f.release[j.Id()] = ch
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		j.MarkCancelled()
	case <-ch:
		j.MarkCompleted("/tmp/out.mp4")
	}
}

func (f *fakeRunner) finish(id string) {
	f.mu.Lock()
	ch := f.release[id]
	f.mu.Unlock()
	close(ch)
}

func (f *fakeRunner) startedIds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.started))
	copy(out, f.started)
	return out
}

func submitN(t *testing.T, m *Manager, n int) []*job.Job {
	t.Helper()
	jobs := make([]*job.Job, 0, n)
	for i := 0; i < n; i++ {
		j := job.New(job.Request{URL: "https://example.com/v", OutputDir: t.TempDir()})
		jobs = append(jobs, j)
		m.Submit(j)
	}
	return jobs
}

func waitCounts(t *testing.T, m *Manager, active, pending int) {
	t.Helper()
	require.Eventually(t, func() bool {
		c := m.Counts()
		return c.Active == active && c.Pending == pending
	}, 2*time.Second, 10*time.Millisecond, "wanted active=%d pending=%d, last: %+v", active, pending, m.Counts())
}

func waitState(t *testing.T, j *job.Job, want job.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return j.State() == want
	}, 2*time.Second, 10*time.Millisecond, "wanted %s, got %s", want, j.State())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, Clamp(0))
	assert.Equal(t, 1, Clamp(-3))
	assert.Equal(t, 3, Clamp(3))
	assert.Equal(t, 5, Clamp(99))
}

func TestAdmissionRespectsCap(t *testing.T) {
	f := newFakeRunner()
	m, err := NewManager(2, f.start, events.NewBus())
	require.NoError(t, err)
	defer m.Stop()

	jobs := submitN(t, m, 5)
	waitCounts(t, m, 2, 3)

	assert.Equal(t, job.StateActive, jobs[0].State())
	assert.Equal(t, job.StateActive, jobs[1].State())
	for _, j := range jobs[2:] {
		assert.Equal(t, job.StatePending, j.State())
	}

	// finishing the first admits the third, still in submission order
	f.finish(jobs[0].Id())
	waitState(t, jobs[2], job.StateActive)
	waitCounts(t, m, 2, 2)

	assert.Equal(t, []string{jobs[0].Id(), jobs[1].Id(), jobs[2].Id()}, f.startedIds())
}

func TestFIFOAdmission(t *testing.T) {
	f := newFakeRunner()
	m, err := NewManager(1, f.start, events.NewBus())
	require.NoError(t, err)
	defer m.Stop()

	jobs := submitN(t, m, 4)
	waitCounts(t, m, 1, 3)

	for i := 0; i < 4; i++ {
		waitState(t, jobs[i], job.StateActive)
		f.finish(jobs[i].Id())
		waitState(t, jobs[i], job.StateCompleted)
	}

	want := make([]string, 0, 4)
	for _, j := range jobs {
		want = append(want, j.Id())
	}
	assert.Equal(t, want, f.startedIds())
}

func TestCancelPendingNeverStartsWorker(t *testing.T) {
	f := newFakeRunner()
	m, err := NewManager(1, f.start, events.NewBus())
	require.NoError(t, err)
	defer m.Stop()

	jobs := submitN(t, m, 3)
	waitCounts(t, m, 1, 2)

	m.Cancel(jobs[2].Id())
	waitState(t, jobs[2], job.StateCancelled)

	f.finish(jobs[0].Id())
	waitState(t, jobs[1], job.StateActive)
	f.finish(jobs[1].Id())
	waitCounts(t, m, 0, 0)

	assert.NotContains(t, f.startedIds(), jobs[2].Id())
}

func TestCancelActiveAlwaysCancelled(t *testing.T) {
	f := newFakeRunner()
	m, err := NewManager(1, f.start, events.NewBus())
	require.NoError(t, err)
	defer m.Stop()

	jobs := submitN(t, m, 1)
	waitCounts(t, m, 1, 0)

	m.Cancel(jobs[0].Id())
	waitState(t, jobs[0], job.StateCancelled)
	assert.NotEqual(t, job.StateCompleted, jobs[0].State())
}

func TestCancelTerminalIsNoop(t *testing.T) {
	f := newFakeRunner()
	m, err := NewManager(1, f.start, events.NewBus())
	require.NoError(t, err)
	defer m.Stop()

	jobs := submitN(t, m, 1)
	waitCounts(t, m, 1, 0)
	f.finish(jobs[0].Id())
	waitState(t, jobs[0], job.StateCompleted)

	m.Cancel(jobs[0].Id())
	waitCounts(t, m, 0, 0)
	assert.Equal(t, job.StateCompleted, jobs[0].State())
}

func TestCancelAll(t *testing.T) {
	f := newFakeRunner()
	m, err := NewManager(2, f.start, events.NewBus())
	require.NoError(t, err)
	defer m.Stop()

	jobs := submitN(t, m, 5)
	waitCounts(t, m, 2, 3)

	m.CancelAll()

	for _, j := range jobs {
		waitState(t, j, job.StateCancelled)
	}
	waitCounts(t, m, 0, 0)

	// only the two that were active ever reached a worker
	assert.Len(t, f.startedIds(), 2)
}

func TestRaisingConcurrencyPromotes(t *testing.T) {
	f := newFakeRunner()
	m, err := NewManager(1, f.start, events.NewBus())
	require.NoError(t, err)
	defer m.Stop()

	jobs := submitN(t, m, 3)
	waitCounts(t, m, 1, 2)

	m.SetConcurrency(3)
	waitCounts(t, m, 3, 0)

	for _, j := range jobs {
		assert.Equal(t, job.StateActive, j.State())
	}
}

func TestLoweringConcurrencyNeverPreempts(t *testing.T) {
	f := newFakeRunner()
	m, err := NewManager(3, f.start, events.NewBus())
	require.NoError(t, err)
	defer m.Stop()

	jobs := submitN(t, m, 4)
	waitCounts(t, m, 3, 1)

	m.SetConcurrency(1)

	// the three running jobs keep running
	time.Sleep(50 * time.Millisecond)
	c := m.Counts()
	assert.Equal(t, 3, c.Active)

	// drained slots are not refilled until active drops below the new cap
	f.finish(jobs[0].Id())
	waitCounts(t, m, 2, 1)
	f.finish(jobs[1].Id())
	waitCounts(t, m, 1, 1)
	f.finish(jobs[2].Id())
	waitState(t, jobs[3], job.StateActive)
}

func TestStopCancelsActiveWorkers(t *testing.T) {
	f := newFakeRunner()
	m, err := NewManager(2, f.start, events.NewBus())
	require.NoError(t, err)

	jobs := submitN(t, m, 2)
	waitCounts(t, m, 2, 0)

	m.Stop()

	for _, j := range jobs {
		assert.Equal(t, job.StateCancelled, j.State())
	}
}

func TestNilStartFunc(t *testing.T) {
	_, err := NewManager(2, nil, events.NewBus())
	assert.Error(t, err)
}
