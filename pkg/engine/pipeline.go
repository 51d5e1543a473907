package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Sentinel task keys inserted around every pipeline.
const (
	StartTask = "start_task"
	EndTask   = "end_task"
)

// Task is a single unit of work in a job pipeline. Its return value becomes
// the job result when it runs in the final stage.
type Task interface {
	Run(ctx context.Context, tc *TaskContext) (any, error)
}

// TaskFunc adapts an ordinary function to the Task interface.
type TaskFunc func(ctx context.Context, tc *TaskContext) (any, error)

// Run calls f(ctx, tc).
func (f TaskFunc) Run(ctx context.Context, tc *TaskContext) (any, error) {
	return f(ctx, tc)
}

// Step is one entry of a pipeline definition: a single task key or a group
// of keys run in parallel as one stage.
type Step struct {
	keys []string
}

// Run returns a step running a single task.
func Run(key string) Step {
	return Step{keys: []string{key}}
}

// Parallel returns a step running every task concurrently. The next stage
// starts once all of them returned.
func Parallel(keys ...string) Step {
	return Step{keys: append([]string(nil), keys...)}
}

// Keys returns the task keys of the step.
func (s Step) Keys() []string {
	return append([]string(nil), s.keys...)
}

// IsParallel reports whether the step groups more than one task.
func (s Step) IsParallel() bool {
	return len(s.keys) > 1
}

func (s Step) is(key string) bool {
	return len(s.keys) == 1 && s.keys[0] == key
}

func (s Step) String() string {
	if s.IsParallel() {
		return "[" + strings.Join(s.keys, ", ") + "]"
	}
	return strings.Join(s.keys, "")
}

// Stage is a compiled pipeline entry with its tasks resolved.
type Stage struct {
	Keys  []string
	tasks []Task
}

// Pipeline is an ordered list of stages, executed head to tail.
type Pipeline struct {
	stages []Stage
}

// Stages returns the compiled stages.
func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Keys returns the task keys of every stage, in execution order.
func (p *Pipeline) Keys() [][]string {
	out := make([][]string, len(p.stages))
	for i, st := range p.stages {
		out[i] = append([]string(nil), st.Keys...)
	}
	return out
}

// String renders the pipeline as "a -> [b, c] -> d".
func (p *Pipeline) String() string {
	parts := make([]string, len(p.stages))
	for i, st := range p.stages {
		parts[i] = Step{keys: st.Keys}.String()
	}
	return strings.Join(parts, " -> ")
}

// TaskRegistry maps task keys to implementations. It replaces lookups by
// import path: every task is registered once at startup.
type TaskRegistry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewTaskRegistry creates a registry holding the start and end sentinels.
func NewTaskRegistry() *TaskRegistry {
	r := &TaskRegistry{tasks: make(map[string]Task)}
	r.tasks[StartTask] = TaskFunc(startTask)
	r.tasks[EndTask] = TaskFunc(endTask)
	return r
}

// Register adds a task under key. Registering a key twice is an error.
func (r *TaskRegistry) Register(key string, task Task) error {
	if key == "" {
		return fmt.Errorf("task key is required")
	}
	if task == nil {
		return fmt.Errorf("task %s is nil", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[key]; exists {
		return fmt.Errorf("task %s already registered", key)
	}
	r.tasks[key] = task
	return nil
}

// MustRegister is like Register but panics on error.
func (r *TaskRegistry) MustRegister(key string, task Task) {
	if err := r.Register(key, task); err != nil {
		panic(err)
	}
}

// Get resolves a task key.
func (r *TaskRegistry) Get(key string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[key]
	if !ok {
		return nil, NewJobError(fmt.Sprintf("task %s is not registered", key), nil).
			WithResource(key)
	}
	return task, nil
}

// Keys returns every registered key, sorted.
func (r *TaskRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.tasks))
	for k := range r.tasks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Compile resolves steps given in execution order into a pipeline. The start
// and end sentinels are added when the definition does not name them.
func (r *TaskRegistry) Compile(steps ...Step) (*Pipeline, error) {
	// steps may share its backing array with a registered definition
	steps = append(make([]Step, 0, len(steps)+2), steps...)
	if len(steps) == 0 || !steps[0].is(StartTask) {
		steps = append([]Step{Run(StartTask)}, steps...)
	}
	if !steps[len(steps)-1].is(EndTask) {
		steps = append(steps, Run(EndTask))
	}

	p := &Pipeline{stages: make([]Stage, 0, len(steps))}
	for i, step := range steps {
		if len(step.keys) == 0 {
			return nil, NewJobError(fmt.Sprintf("pipeline step %d is empty", i), nil)
		}
		st := Stage{Keys: step.Keys(), tasks: make([]Task, 0, len(step.keys))}
		for _, key := range step.keys {
			task, err := r.Get(key)
			if err != nil {
				return nil, err
			}
			st.tasks = append(st.tasks, task)
		}
		p.stages = append(p.stages, st)
	}
	return p, nil
}

// CompileReversed accepts steps in tail to head order, with the end sentinel
// first and the start sentinel last, and compiles them into the same
// pipeline as Compile would for the reversed list.
func (r *TaskRegistry) CompileReversed(steps ...Step) (*Pipeline, error) {
	reversed := make([]Step, len(steps))
	for i, step := range steps {
		reversed[len(steps)-1-i] = step
	}
	return r.Compile(reversed...)
}

// JobDefinition describes a named, submittable job.
type JobDefinition struct {
	// Name is the unique job name, e.g. "network.insert".
	Name string

	// EntityClass is the class of the entity the job acts on.
	EntityClass string

	// Operation is the operation qualifier.
	Operation Operation

	// Delta is the estimated step count used for progress. Zero means the
	// number of compiled stages.
	Delta int

	// Steps is the pipeline in execution order.
	Steps []Step

	// Rules are validator rules applied to the submitted params,
	// e.g. {"id": "required", "name": "required,min=1"}.
	Rules map[string]any
}

// JobRegistry maps job names to definitions.
type JobRegistry struct {
	mu       sync.RWMutex
	defs     map[string]*JobDefinition
	validate *validator.Validate
}

// NewJobRegistry creates an empty job registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{
		defs:     make(map[string]*JobDefinition),
		validate: validator.New(),
	}
}

// Register adds a job definition.
func (r *JobRegistry) Register(def JobDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if err := def.Operation.Validate(); err != nil {
		return fmt.Errorf("job %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("job %s already registered", def.Name)
	}
	d := def
	r.defs[def.Name] = &d
	return nil
}

// Get returns the definition registered under name.
func (r *JobRegistry) Get(name string) (*JobDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return nil, NewJobError(fmt.Sprintf("job %s is not registered", name), nil)
	}
	return def, nil
}

// Names returns every registered job name, sorted.
func (r *JobRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ValidateParams checks params against the rules of a definition.
func (r *JobRegistry) ValidateParams(def *JobDefinition, params SharedData) error {
	if len(def.Rules) == 0 {
		return nil
	}
	errs := r.validate.ValidateMap(params, def.Rules)
	if len(errs) == 0 {
		return nil
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, field := range fields {
		msgs = append(msgs, fmt.Sprintf("%s: %v", field, errs[field]))
	}
	return NewJobError(fmt.Sprintf("invalid params for job %s", def.Name), fmt.Errorf("%s", strings.Join(msgs, "; "))).
		WithOperation(string(def.Operation))
}
