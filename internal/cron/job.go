// Package cron runs the worker's periodic jobs. Each job has its own cadence
// and its own distributed lock, so several worker replicas can share a
// schedule without running the same job twice.
package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Counts is the processed/failed tally for one kind of item a job touches.
type Counts struct {
	Processed int64
	Failed    int64
}

// Result is what a run reports back to the scheduler. Items is keyed by item
// kind, for example a cleanup phase.
type Result struct {
	Items map[string]Counts
}

// Totals sums every item kind.
func (r Result) Totals() Counts {
	var total Counts
	for _, c := range r.Items {
		total.Processed += c.Processed
		total.Failed += c.Failed
	}
	return total
}

// Kinds returns the item kinds in a stable order.
func (r Result) Kinds() []string {
	kinds := make([]string, 0, len(r.Items))
	for kind := range r.Items {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Job is a unit of periodic work. A run may return a partial Result together
// with an error.
type Job interface {
	Name() string
	Run(ctx context.Context) (Result, error)
}

// Entry is a job with its cadence.
type Entry struct {
	Job   Job
	Every time.Duration
}

// Registry holds the worker's entries. Job names double as lock keys and
// metric labels, so they must be unique.
type Registry struct {
	entries []Entry
	names   map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Add registers job to run every interval. A non-positive interval falls back
// to the scheduler default.
func (r *Registry) Add(job Job, every time.Duration) error {
	if job == nil {
		return errors.New("job is required")
	}
	name := job.Name()
	if name == "" {
		return errors.New("job name is required")
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.entries = append(r.entries, Entry{Job: job, Every: every})
	return nil
}

// Entries returns a copy in registration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
