// Package memory provides an in-memory backend container. It stands in for
// OpenStack and vSphere sessions in tests and in the dev command, and can be
// scripted to walk entities through status sequences or to fail calls.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

// Call records one backend invocation.
type Call struct {
	Op   string
	Kind string
	ID   string
}

// Backend is an in-memory engine.BackendHandle.
type Backend struct {
	typ         string
	containerID string

	mu        sync.Mutex
	seq       int
	entities  map[string]map[string]engine.Entity
	pending   map[string][]string
	sequences map[string][]string
	defaults  map[string]string
	onDelete  map[string]string
	ids       map[string][]string
	failures  map[string]error
	calls     []Call
}

// NewBackend creates an empty backend of the given orchestrator type.
func NewBackend(typ, containerID string) *Backend {
	return &Backend{
		typ:         typ,
		containerID: containerID,
		entities:    make(map[string]map[string]engine.Entity),
		pending:     make(map[string][]string),
		sequences:   make(map[string][]string),
		defaults:    make(map[string]string),
		onDelete:    make(map[string]string),
		ids:         make(map[string][]string),
		failures:    make(map[string]error),
	}
}

func (b *Backend) Type() string        { return b.typ }
func (b *Backend) ContainerID() string { return b.containerID }

// SetStatus sets the status new entities of kind start with and keep.
func (b *Backend) SetStatus(kind, status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defaults[kind] = status
}

// SetStatusSequence scripts the statuses returned by successive Get calls on
// new entities of kind. The last status sticks.
func (b *Backend) SetStatusSequence(kind string, statuses ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sequences[kind] = append([]string(nil), statuses...)
}

// StatusOnDelete makes Delete on kind keep the entity and set its status,
// the way a remote that failed to tear it down reports it.
func (b *Backend) StatusOnDelete(kind, status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDelete[kind] = status
}

// NextID queues remote ids handed out by the next Create calls on kind.
func (b *Backend) NextID(kind string, ids ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids[kind] = append(b.ids[kind], ids...)
}

// FailOn makes every call of op ("create", "update", "delete", "get",
// "list") on kind return err. A nil err clears the failure.
func (b *Backend) FailOn(op, kind string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := op + ":" + kind
	if err == nil {
		delete(b.failures, key)
		return
	}
	b.failures[key] = err
}

// Put stores an entity directly, bypassing Create.
func (b *Backend) Put(kind string, e engine.Entity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bucket(kind)[e.ID()] = copyEntity(e)
}

// Calls returns every recorded call.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallCount counts the recorded calls of op on kind.
func (b *Backend) CallCount(op, kind string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Op == op && c.Kind == kind {
			n++
		}
	}
	return n
}

// Len returns the number of stored entities of kind.
func (b *Backend) Len(kind string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entities[kind])
}

func (b *Backend) Create(ctx context.Context, kind string, spec engine.Entity) (engine.Entity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record("create", kind, "")
	if err := b.failure("create", kind); err != nil {
		return nil, err
	}

	b.seq++
	e := copyEntity(spec)
	id := fmt.Sprintf("%s-%d", kind, b.seq)
	if queued := b.ids[kind]; len(queued) > 0 {
		id = queued[0]
		b.ids[kind] = queued[1:]
	}
	e["id"] = id

	if seq := b.sequences[kind]; len(seq) > 0 {
		e["status"] = seq[0]
		b.pending[id] = append([]string(nil), seq[1:]...)
	} else if status, ok := b.defaults[kind]; ok {
		e["status"] = status
	}

	b.bucket(kind)[id] = e
	return copyEntity(e), nil
}

func (b *Backend) Update(ctx context.Context, kind, id string, spec engine.Entity) (engine.Entity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record("update", kind, id)
	if err := b.failure("update", kind); err != nil {
		return nil, err
	}

	e, ok := b.entities[kind][id]
	if !ok {
		return nil, notFound(kind, id)
	}
	for k, v := range spec {
		if k != "id" {
			e[k] = v
		}
	}
	return copyEntity(e), nil
}

func (b *Backend) Delete(ctx context.Context, kind, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record("delete", kind, id)
	if err := b.failure("delete", kind); err != nil {
		return err
	}

	e, ok := b.entities[kind][id]
	if !ok {
		return notFound(kind, id)
	}
	delete(b.pending, id)
	if status, ok := b.onDelete[kind]; ok {
		e["status"] = status
		return nil
	}
	delete(b.entities[kind], id)
	return nil
}

func (b *Backend) Get(ctx context.Context, kind, id string) (engine.Entity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record("get", kind, id)
	if err := b.failure("get", kind); err != nil {
		return nil, err
	}

	e, ok := b.entities[kind][id]
	if !ok {
		return nil, notFound(kind, id)
	}
	if next := b.pending[id]; len(next) > 0 {
		e["status"] = next[0]
		b.pending[id] = next[1:]
	}
	return copyEntity(e), nil
}

func (b *Backend) List(ctx context.Context, kind string, filter engine.Entity) ([]engine.Entity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record("list", kind, "")
	if err := b.failure("list", kind); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(b.entities[kind]))
	for id := range b.entities[kind] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := []engine.Entity{}
	for _, id := range ids {
		e := b.entities[kind][id]
		if matches(e, filter) {
			out = append(out, copyEntity(e))
		}
	}
	return out, nil
}

func (b *Backend) bucket(kind string) map[string]engine.Entity {
	m, ok := b.entities[kind]
	if !ok {
		m = make(map[string]engine.Entity)
		b.entities[kind] = m
	}
	return m
}

func (b *Backend) record(op, kind, id string) {
	b.calls = append(b.calls, Call{Op: op, Kind: kind, ID: id})
}

func (b *Backend) failure(op, kind string) error {
	return b.failures[op+":"+kind]
}

func matches(e, filter engine.Entity) bool {
	for k, v := range filter {
		if fmt.Sprint(e[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func copyEntity(e engine.Entity) engine.Entity {
	out := make(engine.Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

func notFound(kind, id string) error {
	return engine.NewNotFoundError(fmt.Sprintf("%s %s not found", kind, id), nil).WithResource(id)
}
