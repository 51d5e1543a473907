package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beehive-cloud/beehive-resource/pkg/backend/memory"
	"github.com/beehive-cloud/beehive-resource/pkg/engine"
	"github.com/beehive-cloud/beehive-resource/pkg/sharedstate"
	"github.com/beehive-cloud/beehive-resource/pkg/stores"
)

// runWithHelper executes fn as the body of a one task job whose helper is
// bound to backend, and returns the finished job.
func runWithHelper(t *testing.T, backend *memory.Backend, fn func(ctx context.Context, h Helper) error) *engine.Job {
	t.Helper()
	ctx := context.Background()

	store, err := stores.Open(ctx, stores.Config{Path: stores.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runner, err := engine.NewRunner(
		engine.RunnerConfig{Workers: 2, PollInterval: 5 * time.Millisecond, PollTimeout: 500 * time.Millisecond},
		engine.Dependencies{
			Shared:    sharedstate.NewMemoryStore(),
			JobStore:  store,
			Resources: store,
			Connector: memory.NewConnector(backend),
		},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = runner.Shutdown(context.Background()) })

	dispatch := NewDispatch()
	runner.Tasks().MustRegister("remote_call", engine.TaskFunc(func(ctx context.Context, tc *engine.TaskContext) (any, error) {
		h, err := dispatch.Connect(ctx, tc, engine.Orchestrator{Type: backend.Type(), ID: backend.ContainerID()})
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, h)
	}))

	pipeline, err := runner.Tasks().Compile(engine.Run("remote_call"))
	require.NoError(t, err)

	id, err := runner.Delay(ctx, "remote_call", pipeline, engine.Options{User: "tester"}, engine.SharedData{})
	require.NoError(t, err)

	job, err := runner.Wait(ctx, id)
	require.NoError(t, err)
	return job
}

func TestDispatchGet(t *testing.T) {
	d := NewDispatch()
	assert.Equal(t, []string{TypeOpenStack, TypeVSphere}, d.Types())

	c, err := d.Get(TypeOpenStack)
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = d.Get("nonexistent")
	require.Error(t, err)
	assert.True(t, engine.IsJobError(err))
	assert.Contains(t, err.Error(), "nonexistent")
}

func TestDispatchRegister(t *testing.T) {
	d := NewDispatch()
	require.Error(t, d.Register("", NewOpenStackHelper))
	require.Error(t, d.Register("kvm", nil))

	require.NoError(t, d.Register("kvm", NewOpenStackHelper))
	_, err := d.Get("kvm")
	require.NoError(t, err)
	assert.Len(t, d.Types(), 3)
}

func TestDispatchForUnknownBackend(t *testing.T) {
	d := NewDispatch()
	_, err := d.For(nil, memory.NewBackend("proxmox", "c1"))
	require.Error(t, err)
	assert.True(t, engine.IsJobError(err))
}

func TestOpenStackCreatePollsUntilActive(t *testing.T) {
	backend := memory.NewBackend(TypeOpenStack, "os-1")
	backend.SetStatusSequence("network", "BUILD", "BUILD", "ACTIVE")

	var extID string
	job := runWithHelper(t, backend, func(ctx context.Context, h Helper) error {
		var err error
		extID, err = h.CreateNetwork(ctx, engine.Entity{"name": "net1"})
		return err
	})

	require.Equal(t, engine.JobStatusSuccess, job.Status, job.Error)
	assert.Equal(t, "network-1", extID)
	assert.Equal(t, 1, backend.CallCount("create", "network"))
	assert.Equal(t, 3, backend.CallCount("get", "network"))
}

func TestOpenStackCreateFailureStatus(t *testing.T) {
	backend := memory.NewBackend(TypeOpenStack, "os-1")
	backend.SetStatusSequence("volume", "creating", "error")

	var createErr error
	job := runWithHelper(t, backend, func(ctx context.Context, h Helper) error {
		_, createErr = h.CreateVolume(ctx, engine.Entity{"name": "vol1"})
		return createErr
	})

	assert.Equal(t, engine.JobStatusFailure, job.Status)
	require.Error(t, createErr)
	assert.True(t, engine.IsRemoteOperationFailed(createErr))
	assert.Equal(t, "Can not create volume vol1", createErr.Error())
}

func TestOpenStackCreateFailureCarriesReason(t *testing.T) {
	backend := memory.NewBackend(TypeOpenStack, "os-1")
	backend.SetStatusSequence("stack", "CREATE_FAILED")

	var createErr error
	runWithHelper(t, backend, func(ctx context.Context, h Helper) error {
		_, createErr = h.CreateStack(ctx, engine.Entity{"name": "web", "status_reason": "quota exceeded"})
		return createErr
	})

	require.Error(t, createErr)
	assert.Equal(t, "Can not create stack web: quota exceeded", createErr.Error())
}

func TestOpenStackCreateCallError(t *testing.T) {
	backend := memory.NewBackend(TypeOpenStack, "os-1")
	backend.FailOn("create", "router", errors.New("connection reset"))

	var createErr error
	runWithHelper(t, backend, func(ctx context.Context, h Helper) error {
		_, createErr = h.CreateRouter(ctx, engine.Entity{"name": "r1"})
		return createErr
	})

	require.Error(t, createErr)
	assert.True(t, engine.IsRemoteOperationFailed(createErr))
	assert.Equal(t, "Can not create router r1: connection reset", createErr.Error())
}

func TestOpenStackCreateTimesOut(t *testing.T) {
	backend := memory.NewBackend(TypeOpenStack, "os-1")
	backend.SetStatus("server", "BUILD")

	var createErr error
	job := runWithHelper(t, backend, func(ctx context.Context, h Helper) error {
		_, createErr = h.CreateServer(ctx, engine.Entity{"name": "vm1"})
		return createErr
	})

	assert.Equal(t, engine.JobStatusFailure, job.Status)
	assert.True(t, engine.IsTimeout(createErr))
}

func TestOpenStackImmediateKinds(t *testing.T) {
	backend := memory.NewBackend(TypeOpenStack, "os-1")

	job := runWithHelper(t, backend, func(ctx context.Context, h Helper) error {
		if _, err := h.CreateFlavor(ctx, engine.Entity{"name": "m1.small"}); err != nil {
			return err
		}
		if _, err := h.CreateSecurityGroup(ctx, engine.Entity{"name": "default"}); err != nil {
			return err
		}
		_, err := h.CreateRule(ctx, engine.Entity{"name": "ssh", "port": 22})
		return err
	})

	require.Equal(t, engine.JobStatusSuccess, job.Status, job.Error)
	assert.Zero(t, backend.CallCount("get", "flavor"))
	assert.Zero(t, backend.CallCount("get", "security_group"))
	assert.Zero(t, backend.CallCount("get", "rule"))
}

func TestDeleteIsIdempotent(t *testing.T) {
	backend := memory.NewBackend(TypeOpenStack, "os-1")
	backend.Put("network", engine.Entity{"id": "n1", "status": "ACTIVE"})

	job := runWithHelper(t, backend, func(ctx context.Context, h Helper) error {
		if err := h.DeleteNetwork(ctx, "n1"); err != nil {
			return err
		}
		if err := h.DeleteNetwork(ctx, "n1"); err != nil {
			return err
		}
		return h.DeleteNetwork(ctx, "")
	})

	require.Equal(t, engine.JobStatusSuccess, job.Status, job.Error)
	assert.Equal(t, 2, backend.CallCount("delete", "network"))
	assert.Zero(t, backend.Len("network"))
}

func TestOpenStackDeleteFailureStatus(t *testing.T) {
	for _, kind := range []string{"network", "router", "security_group"} {
		t.Run(kind, func(t *testing.T) {
			backend := memory.NewBackend(TypeOpenStack, "os-1")
			backend.Put(kind, engine.Entity{"id": "x1", "status": "ACTIVE"})
			backend.StatusOnDelete(kind, "ERROR")

			var deleteErr error
			runWithHelper(t, backend, func(ctx context.Context, h Helper) error {
				switch kind {
				case "network":
					deleteErr = h.DeleteNetwork(ctx, "x1")
				case "router":
					deleteErr = h.DeleteRouter(ctx, "x1")
				default:
					deleteErr = h.DeleteSecurityGroup(ctx, "x1")
				}
				return deleteErr
			})

			require.Error(t, deleteErr)
			assert.True(t, engine.IsRemoteOperationFailed(deleteErr))
			assert.False(t, engine.IsTimeout(deleteErr))
			assert.Equal(t, "Can not delete "+kind+" x1", deleteErr.Error())
			assert.Equal(t, 1, backend.CallCount("get", kind))
		})
	}
}

func TestDeleteCallError(t *testing.T) {
	backend := memory.NewBackend(TypeOpenStack, "os-1")
	backend.Put("volume", engine.Entity{"id": "v1", "status": "in-use"})
	backend.FailOn("delete", "volume", errors.New("volume is busy"))

	var deleteErr error
	runWithHelper(t, backend, func(ctx context.Context, h Helper) error {
		deleteErr = h.DeleteVolume(ctx, "v1")
		return deleteErr
	})

	require.Error(t, deleteErr)
	assert.True(t, engine.IsRemoteOperationFailed(deleteErr))
	assert.Equal(t, "Can not delete volume v1: volume is busy", deleteErr.Error())
	assert.Equal(t, 1, backend.Len("volume"))
}

func TestReady(t *testing.T) {
	backend := memory.NewBackend(TypeOpenStack, "os-1")
	backend.Put("share", engine.Entity{"id": "sh1", "status": "extending"})
	backend.Put("volume", engine.Entity{"id": "v1", "status": "error"})

	var shareReady bool
	var volumeErr error
	runWithHelper(t, backend, func(ctx context.Context, h Helper) error {
		var err error
		shareReady, err = h.Ready(ctx, "share", "sh1")
		if err != nil {
			return err
		}
		_, volumeErr = h.Ready(ctx, "volume", "v1")
		return nil
	})

	assert.False(t, shareReady)
	assert.True(t, engine.IsRemoteOperationFailed(volumeErr))
}

func TestVSphereMapsKinds(t *testing.T) {
	backend := memory.NewBackend(TypeVSphere, "vc-1")
	backend.SetStatusSequence(vsVM, "running", "success")

	var extID string
	var stackErr error
	job := runWithHelper(t, backend, func(ctx context.Context, h Helper) error {
		var err error
		extID, err = h.CreateServer(ctx, engine.Entity{"name": "vm1"})
		if err != nil {
			return err
		}
		if err := h.Update(ctx, "server", extID, engine.Entity{"cpu": 4}); err != nil {
			return err
		}
		_, stackErr = h.CreateStack(ctx, engine.Entity{"name": "s"})
		return h.DeleteServer(ctx, extID)
	})

	require.Equal(t, engine.JobStatusSuccess, job.Status, job.Error)
	assert.Equal(t, "vm-1", extID)
	assert.Equal(t, 1, backend.CallCount("create", vsVM))
	assert.Equal(t, 1, backend.CallCount("update", vsVM))
	assert.Equal(t, 1, backend.CallCount("delete", vsVM))
	assert.True(t, engine.IsJobError(stackErr))
	assert.Equal(t, "dvpg", VSphereKind("network"))
	assert.Equal(t, "share", VSphereKind("share"))
}

func TestSettledStatus(t *testing.T) {
	kind, status, ok := SettledStatus(TypeOpenStack, "volume")
	assert.True(t, ok)
	assert.Equal(t, "volume", kind)
	assert.Equal(t, "available", status)

	kind, status, ok = SettledStatus(TypeVSphere, "network")
	assert.True(t, ok)
	assert.Equal(t, "dvpg", kind)
	assert.Equal(t, "success", status)

	_, _, ok = SettledStatus(TypeOpenStack, "flavor")
	assert.False(t, ok)
	_, _, ok = SettledStatus(TypeVSphere, "stack")
	assert.False(t, ok)
}
