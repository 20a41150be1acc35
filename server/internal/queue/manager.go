package queue

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"downpour/server/internal/events"
	"downpour/server/internal/job"
)

const (
	MinConcurrency = 1
	MaxConcurrency = 5
)

// StartFunc drives one job to a terminal state. It must return only
// after the job's subprocess has exited and the terminal transition
// has been applied.
type StartFunc func(ctx context.Context, j *job.Job)

type command struct {
	submit    *job.Job
	cancel    string
	cancelAll bool
	setLimit  int
	done      string
	counts    chan Counts
	ack       chan struct{}
}

type Counts struct {
	Active  int
	Pending int
}

type active struct {
	j      *job.Job
	cancel context.CancelFunc
}

// Manager admits pending jobs under the concurrency cap, in submission
// order. A single coordinating goroutine owns the admission state;
// workers report back over the command channel only.
type Manager struct {
	start StartFunc
	bus   *events.Bus

	commands chan command
	pending  []*job.Job
	running  map[string]active
	limit    int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped chan struct{}
}

func NewManager(concurrency int, start StartFunc, bus *events.Bus) (*Manager, error) {
	if start == nil {
		return nil, errors.New("nil start func")
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		start:    start,
		bus:      bus,
		commands: make(chan command),
		running:  make(map[string]active),
		limit:    Clamp(concurrency),
		ctx:      ctx,
		cancel:   cancel,
		stopped:  make(chan struct{}),
	}

	go m.run()

	return m, nil
}

func Clamp(n int) int {
	return max(MinConcurrency, min(MaxConcurrency, n))
}

// Submit appends the job to the pending list and admits it right away
// if a slot is free.
func (m *Manager) Submit(j *job.Job) {
	m.bus.PublishState(j.Snapshot())

	select {
	case m.commands <- command{submit: j}:
		slog.Info("submitted download", slog.String("id", j.Id()), slog.String("url", j.URL()))
	case <-m.ctx.Done():
		slog.Warn("queue stopped, dropping download", slog.String("id", j.Id()))
	}
}

// Cancel removes a pending job outright, or asks the worker of an
// active job to terminate its subprocess. Terminal jobs are left alone.
func (m *Manager) Cancel(id string) {
	select {
	case m.commands <- command{cancel: id}:
	case <-m.ctx.Done():
	}
}

// CancelAll cancels every pending and active job.
func (m *Manager) CancelAll() {
	ack := make(chan struct{})
	select {
	case m.commands <- command{cancelAll: true, ack: ack}:
		<-ack
	case <-m.ctx.Done():
	}
}

// SetConcurrency changes the cap. Raising it promotes additional
// pending jobs immediately, lowering it never preempts running work.
func (m *Manager) SetConcurrency(n int) {
	select {
	case m.commands <- command{setLimit: Clamp(n)}:
	case <-m.ctx.Done():
	}
}

func (m *Manager) Counts() Counts {
	out := make(chan Counts, 1)
	select {
	case m.commands <- command{counts: out}:
		return <-out
	case <-m.ctx.Done():
		return Counts{}
	}
}

// Stop cancels every worker context and waits for their subprocesses
// to exit.
func (m *Manager) Stop() {
	m.cancel()
	<-m.stopped
	m.wg.Wait()
}

func (m *Manager) run() {
	defer close(m.stopped)

	for {
		select {
		case <-m.ctx.Done():
			return

		case cmd := <-m.commands:
			switch {
			case cmd.submit != nil:
				m.pending = append(m.pending, cmd.submit)

			case cmd.cancel != "":
				m.cancelOne(cmd.cancel)

			case cmd.cancelAll:
				m.cancelEverything()
				close(cmd.ack)

			case cmd.setLimit != 0:
				m.limit = cmd.setLimit

			case cmd.done != "":
				delete(m.running, cmd.done)

			case cmd.counts != nil:
				cmd.counts <- Counts{Active: len(m.running), Pending: len(m.pending)}
				continue
			}

			m.admit()
		}
	}
}

// admit promotes pending jobs while a slot is free, preserving
// submission order. Active never exceeds the cap.
func (m *Manager) admit() {
	for len(m.running) < m.limit && len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]

		if !next.MarkActive() {
			continue
		}

		jctx, jcancel := context.WithCancel(m.ctx)
		m.running[next.Id()] = active{j: next, cancel: jcancel}

		m.bus.PublishState(next.Snapshot())
		slog.Info("admitted download",
			slog.String("id", next.Id()),
			slog.Int("active", len(m.running)),
			slog.Int("limit", m.limit),
		)

		m.wg.Add(1)
		go func(j *job.Job, ctx context.Context) {
			defer m.wg.Done()

			m.start(ctx, j)
			m.bus.PublishState(j.Snapshot())

			select {
			case m.commands <- command{done: j.Id()}:
			case <-m.ctx.Done():
			}
		}(next, jctx)
	}
}

func (m *Manager) cancelOne(id string) {
	if i := slices.IndexFunc(m.pending, func(j *job.Job) bool { return j.Id() == id }); i >= 0 {
		j := m.pending[i]
		m.pending = slices.Delete(m.pending, i, i+1)
		j.MarkCancelled()
		m.bus.PublishState(j.Snapshot())
		slog.Info("cancelled pending download", slog.String("id", id))
		return
	}

	if a, ok := m.running[id]; ok {
		a.j.RequestCancel()
		a.cancel()
		slog.Info("cancelling active download", slog.String("id", id))
	}
}

func (m *Manager) cancelEverything() {
	for _, j := range m.pending {
		j.MarkCancelled()
		m.bus.PublishState(j.Snapshot())
	}
	m.pending = nil

	for id, a := range m.running {
		a.j.RequestCancel()
		a.cancel()
		slog.Info("cancelling active download", slog.String("id", id))
	}
}
