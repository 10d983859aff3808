package cron

import (
	"context"
	"fmt"
)

// Job is one unit of maintenance work executed every cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the worker's jobs keyed by name. Names double as metric
// labels so they must be unique.
type Registry struct {
	names []string
	jobs  map[string]Job
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{jobs: make(map[string]Job, len(jobs))}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends job to the cycle. Nil jobs are ignored.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("cron job name is required")
	}
	if _, ok := r.jobs[name]; ok {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.jobs[name] = job
	r.names = append(r.names, name)
	return nil
}

// Jobs returns a snapshot in registration order.
func (r *Registry) Jobs() []Job {
	out := make([]Job, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.jobs[name])
	}
	return out
}

func (r *Registry) Len() int { return len(r.names) }
