package health

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/canonical/marathond/launch"
	"github.com/canonical/marathond/snapshot"
)

// NetProber implements Prober against real task hosts: HTTP checks issue a
// GET to check.Path, TCP checks dial the port, COMMAND checks are never
// probed here (spec.md §4.6 — the task runtime delivers those results
// asynchronously through Supervisor.Deliver).
type NetProber struct {
	client *http.Client
}

// NewNetProber returns a NetProber with no default timeout; callers pass a
// context deadline per probe (Supervisor.tick does this from check.TimeoutSeconds).
func NewNetProber() *NetProber {
	return &NetProber{client: &http.Client{}}
}

func (p *NetProber) Probe(ctx context.Context, taskID launch.TaskId, host string, check snapshot.HealthCheck) Result {
	switch check.Protocol {
	case snapshot.HealthCheckHTTP:
		return p.probeHTTP(ctx, taskID, host, check)
	case snapshot.HealthCheckTCP:
		return p.probeTCP(ctx, taskID, host, check)
	default:
		return Result{TaskID: taskID, Healthy: true, Reachable: true}
	}
}

func (p *NetProber) probeHTTP(ctx context.Context, taskID launch.TaskId, host string, check snapshot.HealthCheck) Result {
	url := fmt.Sprintf("http://%s:%d%s", host, check.Port, check.Path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{TaskID: taskID, Healthy: false, Cause: err.Error(), Reachable: true}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{TaskID: taskID, Healthy: false, Cause: err.Error(), Reachable: false}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{TaskID: taskID, Healthy: false, Cause: fmt.Sprintf("status %d", resp.StatusCode), Reachable: true}
	}

	return Result{TaskID: taskID, Healthy: true, Reachable: true}
}

func (p *NetProber) probeTCP(ctx context.Context, taskID launch.TaskId, host string, check snapshot.HealthCheck) Result {
	addr := fmt.Sprintf("%s:%d", host, check.Port)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{TaskID: taskID, Healthy: false, Cause: err.Error(), Reachable: false}
	}
	conn.Close()

	return Result{TaskID: taskID, Healthy: true, Reachable: true}
}
