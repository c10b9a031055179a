// Package events implements the control plane's event bus: every state
// change named in spec.md §6 is published here, fanned out to in-process
// subscribers and to the external /v2/events websocket stream. The
// listener-map-plus-buffered-channel shape is adapted from the teacher's
// lxd/cluster/events.go hub.
package events

import "time"

// Event is the common interface every published event type implements.
type Event interface {
	Type() string
	Timestamp() time.Time
}

// base carries the fields common to every event.
type base struct {
	EventType string    `json:"eventType"`
	At        time.Time `json:"timestamp"`
}

func (b base) Type() string         { return b.EventType }
func (b base) Timestamp() time.Time { return b.At }

func newBase(eventType string, now time.Time) base {
	return base{EventType: eventType, At: now}
}

// GroupChanged is published whenever GroupManager commits a new root.
type GroupChanged struct {
	base
	Path string `json:"path"`
}

// NewGroupChanged builds a GroupChanged event.
func NewGroupChanged(now time.Time, path string) GroupChanged {
	return GroupChanged{base: newBase("GroupChangeSuccess", now), Path: path}
}

// GroupChangeFailed is published when a mutation is rejected.
type GroupChangeFailed struct {
	base
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func NewGroupChangeFailed(now time.Time, path, reason string) GroupChangeFailed {
	return GroupChangeFailed{base: newBase("GroupChangeFailed", now), Path: path, Reason: reason}
}

// DeploymentInfo is published as the executor makes progress.
type DeploymentInfo struct {
	base
	DeploymentID string `json:"deploymentId"`
	Message      string `json:"message"`
}

func NewDeploymentInfo(now time.Time, id, message string) DeploymentInfo {
	return DeploymentInfo{base: newBase("DeploymentInfo", now), DeploymentID: id, Message: message}
}

// DeploymentSuccess is published when every step of a plan completes.
type DeploymentSuccess struct {
	base
	DeploymentID string `json:"deploymentId"`
}

func NewDeploymentSuccess(now time.Time, id string) DeploymentSuccess {
	return DeploymentSuccess{base: newBase("DeploymentSuccess", now), DeploymentID: id}
}

// DeploymentFailed is published when backoff is exhausted for some action.
type DeploymentFailed struct {
	base
	DeploymentID string `json:"deploymentId"`
	Cause        string `json:"cause"`
}

func NewDeploymentFailed(now time.Time, id, cause string) DeploymentFailed {
	return DeploymentFailed{base: newBase("DeploymentFailed", now), DeploymentID: id, Cause: cause}
}

// DeploymentCanceled is published when a force update cancels a plan.
type DeploymentCanceled struct {
	base
	DeploymentID string `json:"deploymentId"`
}

func NewDeploymentCanceled(now time.Time, id string) DeploymentCanceled {
	return DeploymentCanceled{base: newBase("DeploymentCanceled", now), DeploymentID: id}
}

// ApiPostEvent is published for every mutating API call accepted.
type ApiPostEvent struct {
	base
	Method string `json:"method"`
	Path   string `json:"path"`
}

func NewApiPostEvent(now time.Time, method, path string) ApiPostEvent {
	return ApiPostEvent{base: newBase("ApiPostEvent", now), Method: method, Path: path}
}

// StatusUpdateEvent mirrors a task-launch-facade status transition.
type StatusUpdateEvent struct {
	base
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

func NewStatusUpdateEvent(now time.Time, taskID, status string) StatusUpdateEvent {
	return StatusUpdateEvent{base: newBase("StatusUpdateEvent", now), TaskID: taskID, Status: status}
}

// FailedHealthCheck is published on every unhealthy probe fold.
type FailedHealthCheck struct {
	base
	AppID  string `json:"appId"`
	TaskID string `json:"taskId"`
	Cause  string `json:"cause"`
}

func NewFailedHealthCheck(now time.Time, appID, taskID, cause string) FailedHealthCheck {
	return FailedHealthCheck{base: newBase("FailedHealthCheck", now), AppID: appID, TaskID: taskID, Cause: cause}
}

// HealthStatusChanged is published whenever a task's alive bit flips.
type HealthStatusChanged struct {
	base
	AppID   string `json:"appId"`
	TaskID  string `json:"taskId"`
	Version string `json:"version"`
	Alive   bool   `json:"alive"`
}

func NewHealthStatusChanged(now time.Time, appID, taskID, version string, alive bool) HealthStatusChanged {
	return HealthStatusChanged{base: newBase("HealthStatusChanged", now), AppID: appID, TaskID: taskID, Version: version, Alive: alive}
}

// UnhealthyTaskKillEvent is published whenever a kill is requested for a
// persistently unhealthy task.
type UnhealthyTaskKillEvent struct {
	base
	AppID  string `json:"appId"`
	TaskID string `json:"taskId"`
	Reason string `json:"reason"`
}

func NewUnhealthyTaskKillEvent(now time.Time, appID, taskID, reason string) UnhealthyTaskKillEvent {
	return UnhealthyTaskKillEvent{base: newBase("UnhealthyTaskKillEvent", now), AppID: appID, TaskID: taskID, Reason: reason}
}
