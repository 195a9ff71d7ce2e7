package cron

import (
	"context"
	"testing"
)

type namedJob struct {
	name string
	runs int
	err  error
}

func (j *namedJob) Name() string { return j.name }

func (j *namedJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

func TestRegistryPreservesOrder(t *testing.T) {
	t.Parallel()

	first := &namedJob{name: "first"}
	second := &namedJob{name: "second"}
	registry := NewRegistry(first, nil, second)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Name() != "first" || jobs[1].Name() != "second" {
		t.Fatalf("jobs out of order: %s, %s", jobs[0].Name(), jobs[1].Name())
	}
}

func TestRegistryRegisterIgnoresNil(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register(nil)
	registry.Register(&namedJob{name: "only"})

	if got := len(registry.Jobs()); got != 1 {
		t.Fatalf("expected 1 job, got %d", got)
	}
}

func TestRegistryJobsReturnsCopy(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(&namedJob{name: "a"})
	jobs := registry.Jobs()
	jobs[0] = &namedJob{name: "b"}

	if registry.Jobs()[0].Name() != "a" {
		t.Fatal("mutating the returned slice must not affect the registry")
	}
}
