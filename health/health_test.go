package health_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/marathond/events"
	"github.com/canonical/marathond/health"
	"github.com/canonical/marathond/launch"
	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/snapshot"
	"github.com/canonical/marathond/timestamp"
)

type scriptedProber struct {
	mu      sync.Mutex
	results []health.Result
	calls   int
}

func (p *scriptedProber) Probe(ctx context.Context, taskID launch.TaskId, host string, check snapshot.HealthCheck) health.Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := p.results[p.calls%len(p.results)]
	p.calls++
	return r
}

type recordingKiller struct {
	mu      sync.Mutex
	killed  []launch.TaskId
	reasons []string
}

func (k *recordingKiller) Kill(ctx context.Context, id launch.TaskId, reason string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.killed = append(k.killed, id)
	k.reasons = append(k.reasons, reason)
	return nil
}

func TestSupervisorKillsAfterMaxConsecutiveFailures(t *testing.T) {
	version := timestamp.Now()
	check := snapshot.HealthCheck{
		Protocol:               snapshot.HealthCheckHTTP,
		Interval:               20 * time.Millisecond,
		TimeoutSeconds:         10 * time.Millisecond,
		GracePeriod:            0,
		MaxConsecutiveFailures: 3,
	}

	prober := &scriptedProber{results: []health.Result{{Healthy: false, Cause: "connection refused", Reachable: true}}}
	killer := &recordingKiller{}
	hub := events.NewHub()
	ch, unsub := hub.Subscribe()
	defer unsub()

	sup := health.NewSupervisor(pathid.New("a", "b"), version, check, prober, killer, hub)
	defer func() { _ = sup.Stop(time.Second) }()

	taskID := launch.TaskId("t1")
	sup.SetRunningTasks(
		[]launch.TaskId{taskID},
		map[launch.TaskId]string{taskID: "10.0.0.1:9999"},
		map[launch.TaskId]timestamp.Timestamp{taskID: timestamp.Now()},
		map[launch.TaskId]bool{taskID: true},
	)

	var killEvents int
	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case ev := <-ch:
			if ev.Type() == "UnhealthyTaskKillEvent" {
				killEvents++
				break loop
			}
		case <-deadline:
			t.Fatal("timed out waiting for UnhealthyTaskKillEvent")
		}
	}

	assert.Equal(t, 1, killEvents)
	require.Len(t, killer.killed, 1)
	assert.Equal(t, taskID, killer.killed[0])
}

func TestSupervisorDropsStaleVersionResults(t *testing.T) {
	version := timestamp.Now()
	check := snapshot.HealthCheck{Protocol: snapshot.HealthCheckHTTP, Interval: time.Hour, MaxConsecutiveFailures: 1}

	hub := events.NewHub()
	sup := health.NewSupervisor(pathid.New("a", "b"), version, check, &scriptedProber{}, &recordingKiller{}, hub)
	defer func() { _ = sup.Stop(time.Second) }()

	taskID := launch.TaskId("t1")
	sup.SetRunningTasks(
		[]launch.TaskId{taskID},
		map[launch.TaskId]string{taskID: "host"},
		map[launch.TaskId]timestamp.Timestamp{taskID: timestamp.Now()},
		map[launch.TaskId]bool{taskID: true},
	)

	sup.Deliver(health.Result{TaskID: taskID, Version: timestamp.Now(), Healthy: false})
	time.Sleep(50 * time.Millisecond)

	h := sup.GetTaskHealth(taskID)
	assert.Equal(t, 0, h.ConsecutiveFailures)
}

func TestSupervisorGracePeriodSuppressesFailures(t *testing.T) {
	version := timestamp.Now()
	check := snapshot.HealthCheck{
		Protocol:               snapshot.HealthCheckHTTP,
		Interval:               time.Hour,
		GracePeriod:            time.Hour,
		MaxConsecutiveFailures: 1,
	}

	hub := events.NewHub()
	sup := health.NewSupervisor(pathid.New("a", "b"), version, check, &scriptedProber{}, &recordingKiller{}, hub)
	defer func() { _ = sup.Stop(time.Second) }()

	taskID := launch.TaskId("t1")
	sup.SetRunningTasks(
		[]launch.TaskId{taskID},
		map[launch.TaskId]string{taskID: "host"},
		map[launch.TaskId]timestamp.Timestamp{taskID: timestamp.Now()},
		map[launch.TaskId]bool{taskID: true},
	)

	sup.Deliver(health.Result{TaskID: taskID, Version: version, Healthy: false, Cause: "boot"})
	time.Sleep(50 * time.Millisecond)

	h := sup.GetTaskHealth(taskID)
	assert.Equal(t, 0, h.ConsecutiveFailures)
}
