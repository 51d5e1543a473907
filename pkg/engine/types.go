package engine

import (
	"bytes"
	"encoding/json"
	"math"
	"fmt"
	"strconv"
	"time"
)

// SharedData is the JSON-compatible mapping that carries data between the
// tasks of one job. It is stored wholesale under the job id.
type SharedData map[string]any

// Clone returns a deep copy of the mapping obtained through a JSON round trip,
// which is also how the stores persist it. Numbers come back as json.Number.
func (d SharedData) Clone() (SharedData, error) {
	if d == nil {
		return SharedData{}, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shared data: %w", err)
	}
	return DecodeSharedData(raw)
}

// DecodeSharedData decodes a JSON object keeping numbers as json.Number, so
// integers beyond 2^53 survive exactly.
func DecodeSharedData(raw []byte) (SharedData, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	out := SharedData{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode shared data: %w", err)
	}
	if out == nil {
		out = SharedData{}
	}
	return out, nil
}

// String returns the value stored under key as a string, or "" when absent.
func (d SharedData) String(key string) string {
	switch v := d[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the value stored under key as an int64.
func (d SharedData) Int64(key string) (int64, bool) {
	return toInt64(d[key])
}

// Bool returns the value stored under key as a bool, false when absent.
func (d SharedData) Bool(key string) bool {
	switch v := d[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Map returns the nested mapping stored under key, or nil.
func (d SharedData) Map(key string) map[string]any {
	if m, ok := d[key].(map[string]any); ok {
		return m
	}
	if m, ok := d[key].(SharedData); ok {
		return m
	}
	return nil
}

// Strings returns the string list stored under key.
func (d SharedData) Strings(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Options carries the caller supplied identity of a job submission.
type Options struct {
	// User is the acting user.
	User string `json:"user"`

	// ObjID is the hierarchical permission path of the owner entity.
	ObjID string `json:"objid,omitempty"`

	// ResourceID is the internal id of the resource the job acts on.
	ResourceID int64 `json:"resource_id,omitempty"`

	// ParentID is the id of the job that submitted this one, if nested.
	ParentID string `json:"parent_id,omitempty"`
}

// Job is a submitted pipeline and its rolled-up status.
type Job struct {
	// ID is the unique identifier for this job.
	ID string `json:"id"`

	// Name is the job definition name, e.g. "network.insert".
	Name string `json:"name"`

	// Operation is the operation qualifier.
	Operation Operation `json:"operation"`

	// EntityClass is the class of the owner entity.
	EntityClass string `json:"entity_class"`

	// ObjID is the permission path of the owner entity.
	ObjID string `json:"objid,omitempty"`

	// ResourceID is the owner resource, 0 when none.
	ResourceID int64 `json:"resource_id,omitempty"`

	// ParentID is the id of the parent job for nested jobs.
	ParentID string `json:"parent_id,omitempty"`

	// User is the acting user.
	User string `json:"user"`

	// Status is the current job status.
	Status JobStatus `json:"status"`

	// Delta is the estimated step count used for progress computation.
	Delta int `json:"delta"`

	// StagesDone is the number of pipeline stages that completed.
	StagesDone int `json:"stages_done"`

	// Result is the JSON encoded return value of the final stage.
	Result json.RawMessage `json:"result,omitempty"`

	// Error is the failure reason when Status is FAILURE.
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Progress returns the completion percentage of the job.
func (j *Job) Progress() int {
	if j.Status == JobStatusSuccess {
		return 100
	}
	if j.Delta <= 0 {
		return 0
	}
	pct := j.StagesDone * 100 / j.Delta
	if pct > 99 {
		pct = 99
	}
	return pct
}

// Duration returns how long the job ran, or has been running.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.CompletedAt != nil {
		return j.CompletedAt.Sub(*j.StartedAt)
	}
	return time.Since(*j.StartedAt)
}

// DecodeResult unmarshals the job result into v.
func (j *Job) DecodeResult(v any) error {
	if len(j.Result) == 0 {
		return nil
	}
	return json.Unmarshal(j.Result, v)
}

// JobTask records the execution of one task in a job pipeline.
type JobTask struct {
	ID          string     `json:"id"`
	JobID       string     `json:"job_id"`
	Name        string     `json:"name"`
	Stage       int        `json:"stage"`
	Status      TaskStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobEvent is one entry of a job's progress trail.
type JobEvent struct {
	ID        int64      `json:"id"`
	JobID     string     `json:"job_id"`
	TaskID    string     `json:"task_id,omitempty"`
	Status    string     `json:"status"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// JobFilter selects jobs in JobStore.ListJobs.
type JobFilter struct {
	Status   JobStatus
	Name     string
	ParentID string
	Limit    int
}

// Resource is a managed infrastructure entity tracked by the engine.
type Resource struct {
	// ID is the internal identifier.
	ID int64 `json:"id"`

	// UUID is the external facing identifier.
	UUID string `json:"uuid"`

	// ObjID is the hierarchical permission path, e.g. "110//2222//334//*".
	ObjID string `json:"objid"`

	// Kind is the resource kind tag, e.g. "network".
	Kind string `json:"kind"`

	Name string `json:"name"`
	Desc string `json:"desc"`

	// ContainerID is the backend container the resource lives in.
	ContainerID string `json:"container_id"`

	// ExtID is the remote platform identifier, "" until the entity exists.
	ExtID string `json:"ext_id,omitempty"`

	Active bool `json:"active"`

	// Attribute is the type specific configuration blob.
	Attribute map[string]any `json:"attribute,omitempty"`

	State ResourceState `json:"state"`

	// Reason is the stored error reason when State is ERROR.
	Reason string `json:"reason,omitempty"`

	// ParentID is the owning resource, 0 when none.
	ParentID int64 `json:"parent_id,omitempty"`

	Tags []string `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasTag reports whether the resource carries tag.
func (r *Resource) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ResourceLink connects two resources, e.g. a provider instance to its zone twin.
type ResourceLink struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Type            string         `json:"type"`
	StartResourceID int64          `json:"start_resource_id"`
	EndResourceID   int64          `json:"end_resource_id"`
	Attributes      map[string]any `json:"attributes,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ResourceFilter selects resources in ResourceStore.ListResources.
type ResourceFilter struct {
	Kind        string
	Tag         string
	ContainerID string
	State       ResourceState
	ParentID    int64
}

// Entity is the mapping a backend returns for a remote object. Every entity
// carries an "id"; polled entities also carry a "status".
type Entity map[string]any

// ID returns the remote identifier of the entity.
func (e Entity) ID() string {
	return SharedData(e).String("id")
}

// Status returns the remote status of the entity.
func (e Entity) Status() string {
	return SharedData(e).String("status")
}

// Reason returns the backend supplied failure reason, if any.
func (e Entity) Reason() string {
	for _, key := range []string{"fault", "status_reason", "reason"} {
		if v := SharedData(e).String(key); v != "" {
			return v
		}
	}
	return ""
}

// Orchestrator references a backend container by type.
type Orchestrator struct {
	Type   string         `json:"type" mapstructure:"type" yaml:"type" validate:"required"`
	ID     string         `json:"id" mapstructure:"id" yaml:"id" validate:"required"`
	Tag    string         `json:"tag" mapstructure:"tag" yaml:"tag"`
	Config map[string]any `json:"config" mapstructure:"config" yaml:"config,omitempty"`
}
