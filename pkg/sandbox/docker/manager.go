// Package docker manages headless-shell containers that serve as remote
// rendering endpoints for the chrome sandbox runtime. Each session gets its
// own container; a reconciliation loop keeps containers in sync with known
// sessions and stops orphans.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	// LabelManager identifies containers managed by this system.
	LabelManager = "manager"
	// LabelManagerValue is the value of the manager label.
	LabelManagerValue = "zenith"
	// LabelSessionID identifies which session a container belongs to.
	LabelSessionID = "session-id"
	// RendererImage is the headless Chrome image used for rendering.
	RendererImage = "chromedp/headless-shell:latest"
	// DevToolsPort is the DevTools port exposed by the renderer container.
	DevToolsPort = "9222"
	// ReconcileInterval is how often the Run loop checks for drift.
	ReconcileInterval = 10 * time.Second
)

// SessionLister lists session IDs for reconciliation. A minimal interface to
// avoid importing the store package.
type SessionLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// Manager runs one renderer container per session.
type Manager struct {
	client *client.Client
	image  string
}

// New creates a new renderer container manager.
func New() (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &Manager{client: cli, image: RendererImage}, nil
}

// Run starts a long-running reconciliation loop. It periodically lists known
// sessions and ensures each has a running renderer container; containers for
// unknown sessions are stopped. Blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, sessions SessionLister) error {
	slog.Info("Renderer manager reconciliation loop starting")

	if err := m.reconcile(ctx, sessions); err != nil {
		slog.Error("Initial reconciliation failed", "error", err)
	}

	ticker := time.NewTicker(ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Renderer manager reconciliation loop stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := m.reconcile(ctx, sessions); err != nil {
				slog.Error("Reconciliation failed", "error", err)
			}
		}
	}
}

func (m *Manager) reconcile(ctx context.Context, sessions SessionLister) error {
	ids, err := sessions.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing session IDs: %w", err)
	}

	allContainers, err := m.listAllManagedContainers(ctx)
	if err != nil {
		return fmt.Errorf("listing managed containers: %w", err)
	}

	knownSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		knownSet[id] = true
	}

	for _, c := range allContainers {
		sessID := c.Labels[LabelSessionID]
		if !knownSet[sessID] {
			slog.Info("Stopping orphaned renderer", "sessionID", sessID)
			m.Stop(ctx, sessID)
		}
	}

	return nil
}

// Endpoint returns the DevTools websocket URL for the session's renderer,
// starting a container if one is not already running.
func (m *Manager) Endpoint(ctx context.Context, sessionID string) (string, error) {
	port, err := m.getRunningPort(ctx, sessionID)
	if err != nil {
		port, err = m.createAndStart(ctx, sessionID)
		if err != nil {
			return "", fmt.Errorf("starting renderer for session %s: %w", sessionID, err)
		}
	}
	return m.devtoolsURL(ctx, port)
}

// Stop stops and removes the session's renderer container.
func (m *Manager) Stop(ctx context.Context, sessionID string) {
	containers, err := m.listContainers(ctx, sessionID)
	if err != nil {
		slog.Warn("Failed to list containers for stop", "sessionID", sessionID, "error", err)
		return
	}
	for _, c := range containers {
		timeout := 10
		if err := m.client.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout}); err != nil {
			slog.Warn("Failed to stop container", "id", c.ID, "error", err)
		}
		if err := m.client.ContainerRemove(ctx, c.ID, types.ContainerRemoveOptions{Force: true}); err != nil {
			slog.Warn("Failed to remove container", "id", c.ID, "error", err)
		}
	}
}

// Close releases the Docker client resources.
func (m *Manager) Close() error {
	return m.client.Close()
}

// --- internal helpers ---

func (m *Manager) getRunningPort(ctx context.Context, sessionID string) (string, error) {
	c, err := m.client.ContainerInspect(ctx, m.containerName(sessionID))
	if err != nil {
		return "", fmt.Errorf("container not found: %w", err)
	}
	if !c.State.Running {
		return "", fmt.Errorf("container exists but not running (state: %s)", c.State.Status)
	}
	return m.getPort(c)
}

func (m *Manager) createAndStart(ctx context.Context, sessionID string) (string, error) {
	_, _, err := m.client.ImageInspectWithRaw(ctx, m.image)
	if err != nil {
		return "", fmt.Errorf("renderer image %q not found, run 'docker pull %s': %w", m.image, m.image, err)
	}

	cfg := &container.Config{
		Image: m.image,
		Labels: map[string]string{
			LabelManager:   LabelManagerValue,
			LabelSessionID: sessionID,
		},
		ExposedPorts: nat.PortSet{
			nat.Port(DevToolsPort + "/tcp"): {},
		},
	}

	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			nat.Port(DevToolsPort + "/tcp"): []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: "0", // Dynamically assigned port.
				},
			},
		},
	}

	resp, err := m.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, m.containerName(sessionID))
	if err != nil {
		return "", fmt.Errorf("creating container: %w", err)
	}

	if err := m.client.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", fmt.Errorf("starting container: %w", err)
	}

	c, err := m.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return "", err
	}
	port, err := m.getPort(c)
	if err != nil {
		return "", err
	}

	if err := m.waitForDevTools(ctx, port); err != nil {
		return "", err
	}
	slog.Info("Renderer started", "sessionID", sessionID, "port", port)
	return port, nil
}

func (m *Manager) containerName(sessionID string) string {
	return "zenith-renderer-" + sessionID
}

func (m *Manager) getPort(c types.ContainerJSON) (string, error) {
	ports := c.NetworkSettings.Ports[nat.Port(DevToolsPort+"/tcp")]
	if len(ports) > 0 {
		return ports[0].HostPort, nil
	}
	return "", fmt.Errorf("container running but port not mapped")
}

// devtoolsURL asks the renderer for its browser websocket URL.
func (m *Manager) devtoolsURL(ctx context.Context, port string) (string, error) {
	req, err := http.NewRequestWithContext(ctx,
		http.MethodGet, fmt.Sprintf("http://127.0.0.1:%s/json/version", port), nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying devtools version: %w", err)
	}
	defer resp.Body.Close()

	var info struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decoding devtools version: %w", err)
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("renderer reported no websocket URL")
	}
	return info.WebSocketDebuggerURL, nil
}

func (m *Manager) waitForDevTools(ctx context.Context, port string) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeoutCtx.Done():
			return fmt.Errorf("timeout waiting for renderer devtools port")
		case <-ticker.C:
			if _, err := m.devtoolsURL(timeoutCtx, port); err == nil {
				return nil
			}
		}
	}
}

func (m *Manager) listContainers(ctx context.Context, sessionID string) ([]types.Container, error) {
	return m.client.ContainerList(ctx, types.ContainerListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", LabelManager+"="+LabelManagerValue),
			filters.Arg("label", LabelSessionID+"="+sessionID),
		),
	})
}

func (m *Manager) listAllManagedContainers(ctx context.Context) ([]types.Container, error) {
	return m.client.ContainerList(ctx, types.ContainerListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", LabelManager+"="+LabelManagerValue),
		),
	})
}
