package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

// Connector hands out registered backends by container id.
type Connector struct {
	mu       sync.Mutex
	backends map[string]*Backend
	fail     error
	connects int
}

// NewConnector creates a connector serving the given backends.
func NewConnector(backends ...*Backend) *Connector {
	c := &Connector{backends: make(map[string]*Backend)}
	for _, b := range backends {
		c.backends[b.ContainerID()] = b
	}
	return c
}

// Add registers a backend.
func (c *Connector) Add(b *Backend) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backends[b.ContainerID()] = b
}

// Backend returns the backend registered for a container.
func (c *Connector) Backend(containerID string) *Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backends[containerID]
}

// FailConnect makes every Connect return err until cleared with nil.
func (c *Connector) FailConnect(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = err
}

// Connects returns how many sessions were opened.
func (c *Connector) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *Connector) Connect(ctx context.Context, containerID, projectID string) (engine.BackendHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail != nil {
		return nil, c.fail
	}
	b, ok := c.backends[containerID]
	if !ok {
		return nil, engine.NewBackendUnavailableError(fmt.Sprintf("container %s is not reachable", containerID), nil).
			WithResource(containerID)
	}
	c.connects++
	return b, nil
}
