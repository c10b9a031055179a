// Package snapshot implements the immutable, versioned group-tree model:
// AppSpec, Group, RootGroup, and the GroupUpdate patch document. Every
// transformation is pure — it returns a new value, never mutates in
// place — following the teacher's copy-on-write discipline for
// configuration trees.
package snapshot

import (
	"time"

	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/timestamp"
)

// Resources are the app's declared resource requirements.
type Resources struct {
	CPU  float64
	Mem  float64
	Disk float64
}

// VolumeMount binds a host path into the container at ContainerPath.
type VolumeMount struct {
	HostPath      string
	ContainerPath string
	Mode          string
}

// Container carries container-runtime parameters for an app, dropped from
// spec.md's prose but named in its data model ("container?").
type Container struct {
	Type    string
	Image   string
	Volumes []VolumeMount
	Network string
}

// HealthCheckProtocol names the probe mechanism of a HealthCheck.
type HealthCheckProtocol string

const (
	HealthCheckHTTP    HealthCheckProtocol = "HTTP"
	HealthCheckTCP     HealthCheckProtocol = "TCP"
	HealthCheckCommand HealthCheckProtocol = "COMMAND"
)

// HealthCheck declares one probe to run against every task of an app.
type HealthCheck struct {
	Protocol               HealthCheckProtocol
	Path                   string
	Port                   int
	Command                string
	GracePeriod            time.Duration
	Interval               time.Duration
	TimeoutSeconds         time.Duration
	MaxConsecutiveFailures int
}

// Backoff describes the exponential launch-retry schedule for an app.
type Backoff struct {
	Initial time.Duration
	Factor  float64
	Max     time.Duration
}

// NextDelay returns min(initial * factor^k, max).
func (b Backoff) NextDelay(k int) time.Duration {
	if b.Initial <= 0 {
		return 0
	}

	delay := float64(b.Initial)
	for i := 0; i < k; i++ {
		delay *= b.Factor
		if time.Duration(delay) >= b.Max && b.Max > 0 {
			return b.Max
		}
	}

	d := time.Duration(delay)
	if b.Max > 0 && d > b.Max {
		return b.Max
	}

	return d
}

// Constraint is an unparsed placement hint, consulted only by the
// external placement matcher — never interpreted here.
type Constraint struct {
	Field    string
	Operator string
	Value    string
}

// PortDefinition declares one port an app's tasks expose.
type PortDefinition struct {
	Port     int
	Protocol string
}

// AppSpec is the immutable declarative specification of one application.
// Any change produces a new value carrying a new Version.
type AppSpec struct {
	ID                    pathid.PathId
	Version               timestamp.Timestamp
	Cmd                   string
	Resources             Resources
	Instances             int
	Container             *Container
	HealthChecks          []HealthCheck
	Backoff               Backoff
	Constraints           []Constraint
	PortDefinitions       []PortDefinition
	Dependencies          []pathid.PathId
	MinimumHealthCapacity float64
	MaximumOverCapacity   float64
}

// Clone returns a deep copy safe to mutate independently of the receiver.
func (a AppSpec) Clone() AppSpec {
	out := a
	if a.Container != nil {
		c := *a.Container
		c.Volumes = append([]VolumeMount(nil), a.Container.Volumes...)
		out.Container = &c
	}

	out.HealthChecks = append([]HealthCheck(nil), a.HealthChecks...)
	out.Constraints = append([]Constraint(nil), a.Constraints...)
	out.PortDefinitions = append([]PortDefinition(nil), a.PortDefinitions...)
	out.Dependencies = append([]pathid.PathId(nil), a.Dependencies...)
	return out
}

// EqualSpec reports whether a and other agree in every field except ID
// and Version — used by the planner to tell "no change" from a real diff.
func (a AppSpec) EqualSpec(other AppSpec) bool {
	if a.Cmd != other.Cmd || a.Resources != other.Resources || a.Instances != other.Instances {
		return false
	}

	if !containerEqual(a.Container, other.Container) {
		return false
	}

	if a.Backoff != other.Backoff {
		return false
	}

	if a.MinimumHealthCapacity != other.MinimumHealthCapacity || a.MaximumOverCapacity != other.MaximumOverCapacity {
		return false
	}

	return healthChecksEqual(a.HealthChecks, other.HealthChecks) &&
		portsEqual(a.PortDefinitions, other.PortDefinitions) &&
		constraintsEqual(a.Constraints, other.Constraints) &&
		dependenciesEqual(a.Dependencies, other.Dependencies)
}

// OnlyInstancesDiffer reports whether other is a's spec with nothing but
// Instances changed — the planner's scale-vs-restart discriminator.
func (a AppSpec) OnlyInstancesDiffer(other AppSpec) bool {
	if a.Instances == other.Instances {
		return false
	}

	withSameInstances := other
	withSameInstances.Instances = a.Instances
	withSameInstances.Version = a.Version
	return a.EqualSpec(withSameInstances)
}

func containerEqual(a, b *Container) bool {
	if a == nil || b == nil {
		return a == b
	}

	if a.Type != b.Type || a.Image != b.Image || a.Network != b.Network {
		return false
	}

	if len(a.Volumes) != len(b.Volumes) {
		return false
	}

	for i := range a.Volumes {
		if a.Volumes[i] != b.Volumes[i] {
			return false
		}
	}

	return true
}

func healthChecksEqual(a, b []HealthCheck) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func portsEqual(a, b []PortDefinition) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func constraintsEqual(a, b []Constraint) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func dependenciesEqual(a, b []pathid.PathId) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}

	return true
}
