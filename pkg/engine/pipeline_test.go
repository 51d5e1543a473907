package engine

import (
	"context"
	"reflect"
	"testing"
)

func noop(context.Context, *TaskContext) (any, error) { return nil, nil }

func newTestRegistry(t *testing.T, keys ...string) *TaskRegistry {
	t.Helper()
	r := NewTaskRegistry()
	for _, key := range keys {
		if err := r.Register(key, TaskFunc(noop)); err != nil {
			t.Fatalf("failed to register %s: %v", key, err)
		}
	}
	return r
}

func TestCompileInsertsSentinels(t *testing.T) {
	r := newTestRegistry(t, "create_resource_pre", "network.create_entity", "create_resource_post")

	p, err := r.Compile(Run("create_resource_pre"), Run("network.create_entity"), Run("create_resource_post"))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	want := "start_task -> create_resource_pre -> network.create_entity -> create_resource_post -> end_task"
	if p.String() != want {
		t.Errorf("expected %q, got %q", want, p.String())
	}
	if p.Len() != 5 {
		t.Errorf("expected 5 stages, got %d", p.Len())
	}
}

func TestCompileKeepsExplicitSentinels(t *testing.T) {
	r := newTestRegistry(t, "a")

	p, err := r.Compile(Run(StartTask), Run("a"), Run(EndTask))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if p.Len() != 3 {
		t.Errorf("expected sentinels not to be duplicated, got %s", p)
	}
}

func TestCompileReversedMatchesCompile(t *testing.T) {
	r := newTestRegistry(t, "pre", "a", "b", "post")

	forward, err := r.Compile(Run(StartTask), Run("pre"), Parallel("a", "b"), Run("post"), Run(EndTask))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	reversed, err := r.CompileReversed(Run(EndTask), Run("post"), Parallel("a", "b"), Run("pre"), Run(StartTask))
	if err != nil {
		t.Fatalf("compile reversed failed: %v", err)
	}

	if !reflect.DeepEqual(forward.Keys(), reversed.Keys()) {
		t.Errorf("expected %v, got %v", forward.Keys(), reversed.Keys())
	}
	if got := reversed.String(); got != "start_task -> pre -> [a, b] -> post -> end_task" {
		t.Errorf("unexpected order: %s", got)
	}
}

func TestCompileErrors(t *testing.T) {
	r := newTestRegistry(t, "a")

	tests := []struct {
		name  string
		steps []Step
	}{
		{"unknown key", []Step{Run("missing")}},
		{"unknown parallel member", []Step{Parallel("a", "missing")}},
		{"empty step", []Step{Parallel()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Compile(tt.steps...); !IsJobError(err) {
				t.Errorf("expected JobError, got %v", err)
			}
		})
	}
}

func TestTaskRegistryRegister(t *testing.T) {
	r := NewTaskRegistry()

	if err := r.Register("", TaskFunc(noop)); err == nil {
		t.Error("expected error for empty key")
	}
	if err := r.Register("a", nil); err == nil {
		t.Error("expected error for nil task")
	}
	if err := r.Register("a", TaskFunc(noop)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register("a", TaskFunc(noop)); err == nil {
		t.Error("expected error for duplicate key")
	}
	if err := r.Register(StartTask, TaskFunc(noop)); err == nil {
		t.Error("expected sentinels to be reserved")
	}

	want := []string{"a", EndTask, StartTask}
	if !reflect.DeepEqual(r.Keys(), want) {
		t.Errorf("expected %v, got %v", want, r.Keys())
	}

	defer func() {
		if recover() == nil {
			t.Error("expected MustRegister to panic on duplicate")
		}
	}()
	r.MustRegister("a", TaskFunc(noop))
}

func TestJobRegistry(t *testing.T) {
	r := NewJobRegistry()

	if err := r.Register(JobDefinition{Name: "bad", Operation: "explode"}); err == nil {
		t.Error("expected error for invalid operation")
	}
	if err := r.Register(JobDefinition{Operation: OperationInsert}); err == nil {
		t.Error("expected error for missing name")
	}

	def := JobDefinition{
		Name:      "network.insert",
		Operation: OperationInsert,
		Steps:     []Step{Run("a")},
		Rules:     map[string]any{"id": "required", "name": "required,min=1"},
	}
	if err := r.Register(def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(def); err == nil {
		t.Error("expected error for duplicate job")
	}

	got, err := r.Get("network.insert")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.ValidateParams(got, SharedData{"id": 1, "name": "net1"}); err != nil {
		t.Errorf("expected valid params, got %v", err)
	}
	if err := r.ValidateParams(got, SharedData{"id": 1}); !IsJobError(err) {
		t.Errorf("expected JobError for missing name, got %v", err)
	}

	if _, err := r.Get("router.insert"); !IsJobError(err) {
		t.Errorf("expected JobError, got %v", err)
	}
	if names := r.Names(); len(names) != 1 || names[0] != "network.insert" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestStep(t *testing.T) {
	if Run("a").IsParallel() {
		t.Error("single step reported as parallel")
	}
	p := Parallel("a", "b")
	if !p.IsParallel() || p.String() != "[a, b]" {
		t.Errorf("unexpected parallel step: %s", p)
	}

	keys := p.Keys()
	keys[0] = "mutated"
	if p.Keys()[0] != "a" {
		t.Error("Keys must return a copy")
	}
}
