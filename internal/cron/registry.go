package cron

import "context"

// Job is one maintenance task run by the cron worker each cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs of a worker, keyed by name and kept in
// registration order.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job. A nil job or a second job under an already registered
// name is ignored, so the pending sweep cannot run twice in one cycle.
func (r *Registry) Register(job Job) bool {
	if job == nil {
		return false
	}
	if _, dup := r.names[job.Name()]; dup {
		return false
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
	return true
}

// Jobs returns a copy of the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
