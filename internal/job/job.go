// Package job schedules code-generation work: a three-priority ready queue
// under one mutex, per-client lifecycle awaiting, a sleep/wake protocol
// keyed on identifiers, and a single-threaded degenerate mode that drains
// on the calling thread. The contract backend codegen relies on is one job
// per function, shared read-only managers, and exclusive MicroBuilder
// ownership per job.
package job

import (
	"math/rand"
	"runtime"
	"runtime/debug"
	"sync"

	"swc/internal/diag"
)

// Priority orders ready-queue selection: High before Normal before Low,
// FIFO within a priority.
type Priority uint8

const (
	High Priority = iota
	Normal
	Low
	numPriorities
)

// State is a job's lifecycle phase.
type State uint8

const (
	Ready State = iota
	Running
	Waiting
	Done
)

// ClientID tags a set of related jobs so their completion can be awaited as
// a group.
type ClientID uint32

// WaitKey names what a sleeping job is waiting on — in the backend, the
// identifier of a symbol not yet typed.
type WaitKey uint32

// ResultKind is what a job's Run reports back to the manager.
type ResultKind uint8

const (
	// ResultDone completes the job.
	ResultDone ResultKind = iota
	// ResultSleep parks the job in Waiting until its WaitKey is woken.
	// The manager never implicitly wakes sleepers.
	ResultSleep
)

// Result is a job run's outcome. WaitOn is read only for ResultSleep.
type Result struct {
	Kind   ResultKind
	WaitOn WaitKey
}

// Job is one schedulable unit of work.
type Job struct {
	Client   ClientID
	Priority Priority
	Run      func() Result

	state State
}

// Config controls a Manager's scheduling behavior.
type Config struct {
	// NumWorkers is the worker-thread count; values <= 0 are replaced by
	// runtime.NumCPU(), and a count of 1 selects the single-threaded mode
	// where WaitAll drains on the calling thread.
	NumWorkers int

	// Randomize forces NumWorkers to 1 and picks ready jobs in an order
	// scrambled by Seed, for reproducing scheduling-dependent failures
	// with a fixed seed.
	Randomize bool
	Seed      int64

	// Logger receives the hardware-exception-style reports a panicking job
	// produces; nil suppresses them.
	Logger *diag.Logger
}

// Manager is the job pool. All fields are guarded by mu.
type Manager struct {
	mu   sync.Mutex
	cond *sync.Cond

	cfg  Config
	rng  *rand.Rand
	stop bool

	ready    [numPriorities][]*Job
	sleeping map[WaitKey][]*Job
	pending  map[ClientID]int

	clientDone map[ClientID]*sync.Cond

	workers sync.WaitGroup
	started bool
}

// NewManager builds a Manager for cfg. Worker threads (multi-threaded mode
// only) start on the first Enqueue.
func NewManager(cfg Config) *Manager {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = runtime.NumCPU()
	}
	if cfg.Randomize {
		cfg.NumWorkers = 1
	}
	m := &Manager{
		cfg:        cfg,
		sleeping:   make(map[WaitKey][]*Job),
		pending:    make(map[ClientID]int),
		clientDone: make(map[ClientID]*sync.Cond),
	}
	m.cond = sync.NewCond(&m.mu)
	if cfg.Randomize {
		m.rng = rand.New(rand.NewSource(cfg.Seed))
	}
	return m
}

func (m *Manager) multiThreaded() bool { return m.cfg.NumWorkers > 1 }

// Enqueue adds j to the ready queue.
func (m *Manager) Enqueue(j *Job) {
	m.mu.Lock()
	j.state = Ready
	m.ready[j.Priority] = append(m.ready[j.Priority], j)
	m.pending[j.Client]++
	if m.multiThreaded() && !m.started {
		m.started = true
		for i := 0; i < m.cfg.NumWorkers; i++ {
			m.workers.Add(1)
			go m.worker()
		}
	}
	m.mu.Unlock()
	m.cond.Signal()
}

// pop removes the next ready job under priority-then-FIFO order, or the
// randomized order when Randomize is set. Caller holds mu.
func (m *Manager) pop() *Job {
	for p := range m.ready {
		q := m.ready[p]
		if len(q) == 0 {
			continue
		}
		idx := 0
		if m.rng != nil {
			idx = m.rng.Intn(len(q))
		}
		j := q[idx]
		m.ready[p] = append(q[:idx], q[idx+1:]...)
		return j
	}
	return nil
}

// runOne executes j outside the lock, catching panics the way the driver's
// per-job hardware-exception handler catches faults: the panic is logged
// with its stack trace and the job completes as Done with no output.
func (m *Manager) runOne(j *Job) {
	result := func() (res Result) {
		defer func() {
			if r := recover(); r != nil {
				if m.cfg.Logger != nil {
					m.cfg.Logger.Errorf(map[string]any{
						"client": j.Client,
						"stack":  string(debug.Stack()),
					}, "job panicked: %v", r)
				}
				res = Result{Kind: ResultDone}
			}
		}()
		return j.Run()
	}()

	m.mu.Lock()
	defer m.mu.Unlock()
	switch result.Kind {
	case ResultSleep:
		j.state = Waiting
		m.sleeping[result.WaitOn] = append(m.sleeping[result.WaitOn], j)
	default:
		m.finish(j)
	}
}

// finish marks j Done and signals its client's waiters. Caller holds mu.
func (m *Manager) finish(j *Job) {
	j.state = Done
	m.pending[j.Client]--
	if m.pending[j.Client] == 0 {
		if c, ok := m.clientDone[j.Client]; ok {
			c.Broadcast()
		}
	}
}

func (m *Manager) worker() {
	defer m.workers.Done()
	for {
		m.mu.Lock()
		var j *Job
		for {
			if m.stop {
				m.mu.Unlock()
				return
			}
			if j = m.pop(); j != nil {
				break
			}
			m.cond.Wait()
		}
		j.state = Running
		m.mu.Unlock()
		m.runOne(j)
	}
}

// Wake moves every job sleeping on key back to the ready queue. Waking is
// always explicit: a declaration committing identifier X wakes X's waiters;
// nothing else ever does.
func (m *Manager) Wake(key WaitKey) {
	m.mu.Lock()
	waiters := m.sleeping[key]
	delete(m.sleeping, key)
	for _, j := range waiters {
		j.state = Ready
		m.ready[j.Priority] = append(m.ready[j.Priority], j)
	}
	m.mu.Unlock()
	if len(waiters) > 0 {
		m.cond.Broadcast()
	}
}

// WakeAll requeues every sleeping job belonging to client, regardless of
// which identifier parked it.
func (m *Manager) WakeAll(client ClientID) {
	m.mu.Lock()
	woke := false
	for key, waiters := range m.sleeping {
		kept := waiters[:0]
		for _, j := range waiters {
			if j.Client != client {
				kept = append(kept, j)
				continue
			}
			j.state = Ready
			m.ready[j.Priority] = append(m.ready[j.Priority], j)
			woke = true
		}
		if len(kept) == 0 {
			delete(m.sleeping, key)
		} else {
			m.sleeping[key] = kept
		}
	}
	m.mu.Unlock()
	if woke {
		m.cond.Broadcast()
	}
}

// WaitAll blocks until every job enqueued for client is Done. In
// single-threaded mode it drains the queue on the calling thread,
// preserving priority order; jobs still asleep when the queue drains are
// deadlocked on a wake that never came, and WaitAll completes them as Done
// with no output rather than hanging.
func (m *Manager) WaitAll(client ClientID) {
	if m.multiThreaded() {
		m.mu.Lock()
		c, ok := m.clientDone[client]
		if !ok {
			c = sync.NewCond(&m.mu)
			m.clientDone[client] = c
		}
		for m.pending[client] > 0 {
			c.Wait()
		}
		m.mu.Unlock()
		return
	}

	for {
		m.mu.Lock()
		j := m.pop()
		if j == nil {
			// Anything left is sleeping with no remaining job to wake it.
			for key, waiters := range m.sleeping {
				kept := waiters[:0]
				for _, w := range waiters {
					if w.Client == client {
						m.finish(w)
					} else {
						kept = append(kept, w)
					}
				}
				if len(kept) == 0 {
					delete(m.sleeping, key)
				} else {
					m.sleeping[key] = kept
				}
			}
			done := m.pending[client] == 0
			m.mu.Unlock()
			if done {
				return
			}
			continue
		}
		j.state = Running
		m.mu.Unlock()
		m.runOne(j)
	}
}

// Shutdown stops the worker threads (multi-threaded mode) after the current
// jobs finish. Pending ready jobs are abandoned; call WaitAll first.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.stop = true
	m.mu.Unlock()
	m.cond.Broadcast()
	m.workers.Wait()
}
