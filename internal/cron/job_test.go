package cron

import (
	"context"
	"testing"
)

type namedJob struct {
	name   string
	result Result
	err    error
	runs   int
}

func (j *namedJob) Name() string { return j.name }

func (j *namedJob) Run(context.Context) (Result, error) {
	j.runs++
	return j.result, j.err
}

func TestRegistryRejectsDuplicatesAndBlankNames(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Add(&namedJob{name: "cleanup-sweep"}, 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := registry.Add(&namedJob{name: "cleanup-sweep"}, 0); err == nil {
		t.Fatal("duplicate job name should be rejected")
	}
	if err := registry.Add(&namedJob{}, 0); err == nil {
		t.Fatal("blank job name should be rejected")
	}
	if err := registry.Add(nil, 0); err == nil {
		t.Fatal("nil job should be rejected")
	}

	entries := registry.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entries[0].Job = nil
	if registry.Entries()[0].Job == nil {
		t.Fatal("Entries must return a copy")
	}
}

func TestResultTotalsAndKinds(t *testing.T) {
	result := Result{Items: map[string]Counts{
		"temp_accounts":  {Processed: 2, Failed: 1},
		"expired_emails": {Processed: 5},
	}}
	total := result.Totals()
	if total.Processed != 7 || total.Failed != 1 {
		t.Fatalf("unexpected totals %+v", total)
	}
	kinds := result.Kinds()
	if len(kinds) != 2 || kinds[0] != "expired_emails" || kinds[1] != "temp_accounts" {
		t.Fatalf("unexpected kinds %v", kinds)
	}
	if (Result{}).Totals() != (Counts{}) {
		t.Fatal("empty result should total zero")
	}
}
