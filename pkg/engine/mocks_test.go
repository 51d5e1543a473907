package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Mock shared store for testing
type mockSharedStore struct {
	mu      sync.Mutex
	data    map[string]SharedData
	failGet error
}

func newMockSharedStore() *mockSharedStore {
	return &mockSharedStore{data: make(map[string]SharedData)}
}

func (m *mockSharedStore) Get(ctx context.Context, jobID string) (SharedData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	data, ok := m.data[jobID]
	if !ok {
		return nil, NewStateUnavailableError("shared data of job "+jobID+" is not initialized", nil)
	}
	return data.Clone()
}

func (m *mockSharedStore) Set(ctx context.Context, jobID string, data SharedData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, err := data.Clone()
	if err != nil {
		return err
	}
	m.data[jobID] = cp
	return nil
}

func (m *mockSharedStore) Delete(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, jobID)
	return nil
}

// Mock job store for testing
type mockJobStore struct {
	mu     sync.Mutex
	jobs   map[string]Job
	tasks  map[string]JobTask
	events []JobEvent
	reads  int
}

func (m *mockJobStore) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{
		jobs:  make(map[string]Job),
		tasks: make(map[string]JobTask),
	}
}

func (m *mockJobStore) CreateJob(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("job %s exists", job.ID)
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockJobStore) UpdateJob(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockJobStore) GetJob(ctx context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	job, ok := m.jobs[id]
	if !ok {
		return nil, NewNotFoundError("job "+id+" not found", nil)
	}
	return &job, nil
}

func (m *mockJobStore) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Job{}
	for _, job := range m.jobs {
		if filter.ParentID != "" && job.ParentID != filter.ParentID {
			continue
		}
		j := job
		out = append(out, &j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func (m *mockJobStore) SaveTask(ctx context.Context, task *JobTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = *task
	return nil
}

func (m *mockJobStore) ListTasks(ctx context.Context, jobID string) ([]*JobTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*JobTask{}
	for _, task := range m.tasks {
		if task.JobID == jobID {
			t := task
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Stage < out[k].Stage })
	return out, nil
}

func (m *mockJobStore) AppendEvent(ctx context.Context, event *JobEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = int64(len(m.events) + 1)
	m.events = append(m.events, *event)
	return nil
}

func (m *mockJobStore) ListEvents(ctx context.Context, jobID string) ([]*JobEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*JobEvent{}
	for _, event := range m.events {
		if event.JobID == jobID {
			e := event
			out = append(out, &e)
		}
	}
	return out, nil
}

func (m *mockJobStore) messages(jobID string) []string {
	events, _ := m.ListEvents(context.Background(), jobID)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Message)
	}
	return out
}

// Mock resource store for testing
type mockResourceStore struct {
	mu        sync.Mutex
	nextID    int64
	resources map[int64]Resource
	links     []ResourceLink
	failGet   error
}

func newMockResourceStore() *mockResourceStore {
	return &mockResourceStore{resources: make(map[int64]Resource)}
}

func (m *mockResourceStore) CreateResource(ctx context.Context, res *Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	res.ID = m.nextID
	if res.State == "" {
		res.State = ResourceStatePending
	}
	res.CreatedAt = time.Now()
	m.resources[res.ID] = *res
	return nil
}

func (m *mockResourceStore) GetResource(ctx context.Context, id int64) (*Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	res, ok := m.resources[id]
	if !ok {
		return nil, NewNotFoundError(fmt.Sprintf("resource %d not found", id), nil)
	}
	res.Tags = append([]string(nil), res.Tags...)
	return &res, nil
}

func (m *mockResourceStore) GetResourceByExtID(ctx context.Context, extID string) (*Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range m.resources {
		if res.ExtID != "" && res.ExtID == extID {
			r := res
			return &r, nil
		}
	}
	return nil, NewNotFoundError("no resource with ext_id "+extID, nil)
}

func (m *mockResourceStore) UpdateResource(ctx context.Context, res *Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[res.ID]; !ok {
		return NewNotFoundError(fmt.Sprintf("resource %d not found", res.ID), nil)
	}
	m.resources[res.ID] = *res
	return nil
}

func (m *mockResourceStore) DeleteResource(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[id]; !ok {
		return NewNotFoundError(fmt.Sprintf("resource %d not found", id), nil)
	}
	delete(m.resources, id)
	return nil
}

func (m *mockResourceStore) ListResources(ctx context.Context, filter ResourceFilter) ([]*Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Resource{}
	for _, res := range m.resources {
		if filter.Kind != "" && res.Kind != filter.Kind {
			continue
		}
		r := res
		out = append(out, &r)
	}
	return out, nil
}

func (m *mockResourceStore) AddTag(ctx context.Context, id int64, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.resources[id]
	if !ok {
		return NewNotFoundError(fmt.Sprintf("resource %d not found", id), nil)
	}
	if !res.HasTag(tag) {
		res.Tags = append(res.Tags, tag)
	}
	m.resources[id] = res
	return nil
}

func (m *mockResourceStore) AddLink(ctx context.Context, link *ResourceLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link.ID = int64(len(m.links) + 1)
	m.links = append(m.links, *link)
	return nil
}

func (m *mockResourceStore) ListLinks(ctx context.Context, resourceID int64) ([]*ResourceLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*ResourceLink{}
	for _, link := range m.links {
		if link.StartResourceID == resourceID {
			l := link
			out = append(out, &l)
		}
	}
	return out, nil
}

func (m *mockResourceStore) get(id int64) (Resource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.resources[id]
	return res, ok
}

// Mock backend for testing
type mockBackend struct {
	mu       sync.Mutex
	entities map[string]Entity
}

func (m *mockBackend) Type() string        { return "openstack" }
func (m *mockBackend) ContainerID() string { return "c1" }

func (m *mockBackend) Create(ctx context.Context, kind string, spec Entity) (Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("%s-%d", kind, len(m.entities)+1)
	e := Entity{"id": id, "status": "ACTIVE"}
	m.entities[id] = e
	return e, nil
}

func (m *mockBackend) Update(ctx context.Context, kind, id string, spec Entity) (Entity, error) {
	return m.Get(ctx, kind, id)
}

func (m *mockBackend) Delete(ctx context.Context, kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[id]; !ok {
		return NewNotFoundError(kind+" "+id+" not found", nil)
	}
	delete(m.entities, id)
	return nil
}

func (m *mockBackend) Get(ctx context.Context, kind, id string) (Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return nil, NewNotFoundError(kind+" "+id+" not found", nil)
	}
	return e, nil
}

func (m *mockBackend) List(ctx context.Context, kind string, filter Entity) ([]Entity, error) {
	return nil, nil
}

type mockConnector struct {
	backend *mockBackend
	err     error
}

func (m *mockConnector) Connect(ctx context.Context, containerID, projectID string) (BackendHandle, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.backend, nil
}

// testRunner wires a runner to fresh mocks with short poll settings.
type testRunner struct {
	*Runner
	shared    *mockSharedStore
	jobStore  *mockJobStore
	resources *mockResourceStore
	backend   *mockBackend
}

func newTestRunner(workers int) *testRunner {
	tr := &testRunner{
		shared:    newMockSharedStore(),
		jobStore:  newMockJobStore(),
		resources: newMockResourceStore(),
		backend:   &mockBackend{entities: make(map[string]Entity)},
	}
	r, err := NewRunner(RunnerConfig{
		Workers:      workers,
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  time.Second,
	}, Dependencies{
		Shared:    tr.shared,
		JobStore:  tr.jobStore,
		Resources: tr.resources,
		Connector: &mockConnector{backend: tr.backend},
	})
	if err != nil {
		panic(err)
	}
	tr.Runner = r
	return tr
}
