package cron

import (
	"context"
	"time"
)

// Job represents a scheduled task that runs inside the worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry pairs a job with its cadence.
type Entry struct {
	Job   Job
	Every time.Duration
	// Local jobs run on every replica and skip the cluster lock.
	Local bool
}

// Registry tracks registered cron jobs.
type Registry struct {
	entries []Entry
}

// NewRegistry builds a registry preloaded with jobs on the default cadence.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job, 0)
	}
	return registry
}

// Register adds a lock-guarded job. A non-positive every uses the service default.
func (r *Registry) Register(job Job, every time.Duration) {
	r.add(Entry{Job: job, Every: every})
}

// RegisterLocal adds a job that runs on every replica.
func (r *Registry) RegisterLocal(job Job, every time.Duration) {
	r.add(Entry{Job: job, Every: every, Local: true})
}

func (r *Registry) add(entry Entry) {
	if entry.Job == nil {
		return
	}
	r.entries = append(r.entries, entry)
}

// Entries returns the registered entries in the order they were added.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.entries))
	for _, entry := range r.entries {
		jobs = append(jobs, entry.Job)
	}
	return jobs
}
