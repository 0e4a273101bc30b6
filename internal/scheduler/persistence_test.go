package scheduler

import (
	"testing"
	"time"
)

type sampleContext struct {
	Foo string `json:"foo"`
	Bar int    `json:"bar"`
}

func TestPersistenceSaveAndEnumerate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	p, err := Open(dir, 1, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx := sampleContext{Foo: "hello", Bar: 42}
	if err := p.Save("task1", "sample", ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	recovered, err := p.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(recovered) != 1 {
		t.Fatalf("Enumerate returned %d entries, want 1", len(recovered))
	}
	if recovered[0].TaskID != "task1" {
		t.Errorf("TaskID = %q, want task1", recovered[0].TaskID)
	}
	if recovered[0].ContextType != "sample" {
		t.Errorf("ContextType = %q, want sample", recovered[0].ContextType)
	}
}

func TestPersistenceSaveOverwrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	p, err := Open(dir, 1, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_ = p.Save("task1", "sample", sampleContext{Foo: "v1"})
	_ = p.Save("task1", "sample", sampleContext{Foo: "v2"})

	recovered, err := p.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(recovered) != 1 {
		t.Fatalf("Enumerate returned %d entries, want 1", len(recovered))
	}
}

func TestPersistenceDeleteMissingIsNotError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	p, err := Open(dir, 1, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.Delete("nonexistent"); err != nil {
		t.Errorf("Delete on missing task returned error: %v", err)
	}
}

func TestPersistenceRecoverUsesFactory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	p, err := Open(dir, 1, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = p.Save("task1", "sample", sampleContext{Foo: "hi"})

	built := false
	factories := map[string]Factory{
		"sample": func(taskID string, raw []byte) (Task, error) {
			built = true
			return &fakeTask{id: taskID}, nil
		},
	}

	tasks, errs := p.Recover(factories)
	if len(errs) != 0 {
		t.Fatalf("Recover errs = %v, want none", errs)
	}
	if len(tasks) != 1 {
		t.Fatalf("Recover returned %d tasks, want 1", len(tasks))
	}
	if !built {
		t.Error("factory was never invoked")
	}
}

func TestPersistenceRecoverMissingFactoryReportsError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	p, err := Open(dir, 1, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = p.Save("task1", "unknown_type", sampleContext{})

	tasks, errs := p.Recover(map[string]Factory{})
	if len(tasks) != 0 {
		t.Errorf("expected no reconstructed tasks, got %d", len(tasks))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
}

func TestPersistenceCleanupDropsOldContexts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	p, err := Open(dir, 1, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = p.Save("task1", "sample", sampleContext{})

	time.Sleep(30 * time.Millisecond)
	if err := p.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	recovered, err := p.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(recovered) != 0 {
		t.Errorf("expected all contexts cleaned up, got %d", len(recovered))
	}
}

func TestPersistenceCleanupDisabledWhenMaxAgeZero(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	p, err := Open(dir, 1, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = p.Save("task1", "sample", sampleContext{})

	time.Sleep(10 * time.Millisecond)
	if err := p.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	recovered, err := p.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(recovered) != 1 {
		t.Errorf("expected context retained when cleanup disabled, got %d", len(recovered))
	}
}
