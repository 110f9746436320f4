// Package job turns expanded pipelines into coordinated OS processes:
// it wires standard streams between consecutive stages, spawns every
// stage before waiting on any, and collects exit statuses.
package job

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/spf13/afero"
)

// Job is the runtime record of one executing pipeline. Background jobs
// stay in the controller's table until explicitly reaped.
type Job struct {
	ID         int
	Label      string
	Background bool

	procs  []*proc
	done   chan struct{}
	status int
}

// Running reports whether the job has not finished yet.
func (j *Job) Running() bool {
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

// Signal forwards a signal to every live stage of the job.
func (j *Job) Signal(sig os.Signal) {
	for _, p := range j.procs {
		if p.cmd != nil && p.cmd.Process != nil {
			_ = p.cmd.Process.Signal(sig)
		}
	}
}

// Controller owns the job table for one shell instance.
type Controller struct {
	fs afero.Fs

	mu     sync.Mutex
	nextID int
	jobs   map[int]*Job
	fg     *Job
}

// NewController returns a controller opening redirection targets
// through fs.
func NewController(fs afero.Fs) *Controller {
	return &Controller{
		fs:     fs,
		nextID: 1,
		jobs:   make(map[int]*Job),
	}
}

// Jobs lists unreaped background jobs ordered by id.
func (c *Controller) Jobs() []*Job {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Job, 0, len(c.jobs))
	for _, j := range c.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// Count reports the number of unreaped background jobs.
func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

// Wait blocks until the given background job finishes, removes it from
// the table and returns its status.
func (c *Controller) Wait(id int) (int, error) {
	c.mu.Lock()
	j, ok := c.jobs[id]
	c.mu.Unlock()
	if !ok {
		return 127, fmt.Errorf("no such job %d", id)
	}

	<-j.done

	c.mu.Lock()
	delete(c.jobs, id)
	c.mu.Unlock()
	return j.status, nil
}

// WaitAll reaps every background job and returns the status of the
// last one to be reaped, 0 when there were none.
func (c *Controller) WaitAll() int {
	status := 0
	for {
		c.mu.Lock()
		var next *Job
		for _, j := range c.jobs {
			if next == nil || j.ID < next.ID {
				next = j
			}
		}
		c.mu.Unlock()
		if next == nil {
			return status
		}
		if s, err := c.Wait(next.ID); err == nil {
			status = s
		}
	}
}

// SignalForeground forwards a signal to the currently running
// foreground job, if any. The evaluator observes the resulting status
// through normal propagation.
func (c *Controller) SignalForeground(sig os.Signal) {
	c.mu.Lock()
	fg := c.fg
	c.mu.Unlock()
	if fg != nil {
		fg.Signal(sig)
	}
}

func (c *Controller) register(j *Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j.ID = c.nextID
	c.nextID++
	c.jobs[j.ID] = j
}

func (c *Controller) setForeground(j *Job) {
	c.mu.Lock()
	c.fg = j
	c.mu.Unlock()
}
