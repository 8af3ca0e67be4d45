package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/swift-fca/swift/internal/fcaerr"
	"github.com/swift-fca/swift/internal/manager"
)

// job is one conversion started through the API
type job struct {
	ID        string
	Created   time.Time
	converter *manager.Converter
	cancel    context.CancelFunc
	done      chan struct{}

	mu     sync.Mutex
	result *manager.Result
	err    error
}

func (j *job) finish(result *manager.Result, err error) {
	j.mu.Lock()
	j.result = result
	j.err = err
	j.mu.Unlock()
	close(j.done)
}

// Status is the JSON view of a job
type Status struct {
	ID      string               `json:"id"`
	Created time.Time            `json:"created"`
	Stats   manager.Stats        `json:"stats"`
	Result  *manager.Result      `json:"result,omitempty"`
	Errors  []fcaerr.ErrorRecord `json:"errors,omitempty"`
	Error   string               `json:"error,omitempty"`
	Code    fcaerr.Code          `json:"code,omitempty"`
}

func (j *job) status() Status {
	st := Status{
		ID:      j.ID,
		Created: j.Created,
		Stats:   j.converter.Stats(),
		Errors:  j.converter.Errors(),
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	st.Result = j.result
	if j.err != nil {
		st.Error = j.err.Error()
		st.Code = fcaerr.CodeOf(j.err)
	}
	return st
}

// registry tracks jobs and bounds how many run at once
type registry struct {
	mu   sync.RWMutex
	jobs map[string]*job
	sem  chan struct{}
	wg   sync.WaitGroup
}

func newRegistry(maxJobs int) *registry {
	if maxJobs <= 0 {
		maxJobs = 1
	}
	return &registry{
		jobs: make(map[string]*job),
		sem:  make(chan struct{}, maxJobs),
	}
}

// acquire reserves a slot for a running job, false when all are taken
func (r *registry) acquire() bool {
	select {
	case r.sem <- struct{}{}:
		r.wg.Add(1)
		return true
	default:
		return false
	}
}

func (r *registry) release() {
	<-r.sem
	r.wg.Done()
}

func (r *registry) running() int { return len(r.sem) }

func (r *registry) add(j *job) {
	r.mu.Lock()
	r.jobs[j.ID] = j
	r.mu.Unlock()
}

func (r *registry) get(id string) (*job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// list returns every job, oldest first
func (r *registry) list() []*job {
	r.mu.RLock()
	out := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool { return out[a].Created.Before(out[b].Created) })
	return out
}

// wait blocks until running jobs return or ctx is done
func (r *registry) wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
