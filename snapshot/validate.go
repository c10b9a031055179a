package snapshot

import (
	"strconv"
	"strings"

	"github.com/canonical/marathond/marathonerr"
)

// Validate checks every transitive app in root against the field-level
// invariants of spec.md §3/§4.4 step 3, returning a *marathonerr.
// ValidationError aggregating every violation found, or nil if root is
// well-formed. Tree-shape invariants (disjoint apps/groups key-sets,
// parent/child consistency) are enforced earlier, at construction time,
// by Group/RootGroup's own ConflictingPath/InvalidHierarchy checks.
func Validate(root RootGroup) error {
	var fields []marathonerr.FieldError

	for _, app := range root.TransitiveAppsById() {
		fields = append(fields, validateApp(app)...)
	}

	if len(fields) == 0 {
		return nil
	}

	return marathonerr.NewValidationError(fields...)
}

func validateApp(a AppSpec) []marathonerr.FieldError {
	var out []marathonerr.FieldError
	path := a.ID.String()

	field := func(name, reason string) {
		out = append(out, marathonerr.FieldError{Field: path + "." + name, Reason: reason})
	}

	if strings.TrimSpace(a.Cmd) == "" {
		field("cmd", "must not be empty")
	}

	if a.Instances < 0 {
		field("instances", "must be >= 0")
	}

	if a.Resources.CPU < 0 {
		field("resources.cpu", "must be >= 0")
	}
	if a.Resources.Mem < 0 {
		field("resources.mem", "must be >= 0")
	}
	if a.Resources.Disk < 0 {
		field("resources.disk", "must be >= 0")
	}

	if a.Backoff.Initial < 0 {
		field("backoff.initial", "must be >= 0")
	}
	if a.Backoff.Factor < 0 {
		field("backoff.factor", "must be >= 0")
	}
	if a.Backoff.Max < 0 {
		field("backoff.max", "must be >= 0")
	}

	if a.MinimumHealthCapacity < 0 || a.MinimumHealthCapacity > 1 {
		field("minimumHealthCapacity", "must be within [0,1]")
	}
	if a.MaximumOverCapacity < 0 {
		field("maximumOverCapacity", "must be >= 0")
	}

	for i, hc := range a.HealthChecks {
		validateHealthCheck(i, hc, field)
	}

	return out
}

func validateHealthCheck(i int, hc HealthCheck, field func(name, reason string)) {
	prefix := func(name string) string {
		return "healthChecks[" + strconv.Itoa(i) + "]." + name
	}

	if hc.MaxConsecutiveFailures < 0 {
		field(prefix("maxConsecutiveFailures"), "must be >= 0")
	}
	if hc.GracePeriod < 0 {
		field(prefix("gracePeriod"), "must be >= 0")
	}
	if hc.Interval < 0 {
		field(prefix("interval"), "must be >= 0")
	}
	if hc.TimeoutSeconds < 0 {
		field(prefix("timeoutSeconds"), "must be >= 0")
	}

	switch hc.Protocol {
	case HealthCheckHTTP:
		if hc.Path == "" {
			field(prefix("path"), "required for HTTP checks")
		}
	case HealthCheckTCP:
		if hc.Port <= 0 {
			field(prefix("port"), "must be > 0 for TCP checks")
		}
	case HealthCheckCommand:
		if strings.TrimSpace(hc.Command) == "" {
			field(prefix("command"), "required for COMMAND checks")
		}
	default:
		field(prefix("protocol"), "unknown protocol")
	}
}
