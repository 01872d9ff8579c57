package batch

import (
	"errors"
	"testing"
)

func TestNewOK(t *testing.T) {
	r := NewOK(3, "odi-1")
	if r.ID() != "odi-1" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Position() != 3 {
		t.Errorf("Position() = %d, want 3", r.Position())
	}
	if r.Status() != StatusOK {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusOK)
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
}

func TestNewError(t *testing.T) {
	err := errors.New("something failed")
	r := NewError(0, "odi-2", err)
	if r.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusError)
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v, want %v", r.Err(), err)
	}
}

func TestReport_CountAndFailures(t *testing.T) {
	rep := Report{Items: []Result{
		NewOK(0, "a"),
		NewError(1, "b", errors.New("boom")),
		NewSkipped(2, "c", errors.New("empty summary")),
		NewOK(3, "d"),
	}}

	if got := rep.Count(StatusOK); got != 2 {
		t.Errorf("Count(ok) = %d, want 2", got)
	}
	if got := rep.Count(StatusError); got != 1 {
		t.Errorf("Count(error) = %d, want 1", got)
	}

	fails := rep.Failures()
	if len(fails) != 2 {
		t.Fatalf("Failures() len = %d, want 2", len(fails))
	}
	if fails[0].ID() != "b" || fails[1].ID() != "c" {
		t.Errorf("failures out of order: %q, %q", fails[0].ID(), fails[1].ID())
	}
}
