package guard

// FailureMode states what a component does when its backing lookup breaks.
type FailureMode string

const (
	// FailOpen: degrade to a safe default and keep serving.
	FailOpen FailureMode = "fail_open"
	// FailClosed: deny the request.
	FailClosed FailureMode = "fail_closed"
)

// PolicyEntry documents one component's behaviour under lookup failure.
type PolicyEntry struct {
	Component string
	Mode      FailureMode
	// Default is the value substituted when the component fails open.
	Default string
}

// FailurePolicy is the single auditable table of fail-open vs fail-closed
// decisions. Tier resolution is the one deliberate fail-open case: quota and
// ownership touch billing fairness and data isolation, so they deny on
// ambiguity. Tests assert the stages behave as this table says.
var FailurePolicy = []PolicyEntry{
	{Component: "tier_resolver", Mode: FailOpen, Default: "free"},
	{Component: "ownership_validator", Mode: FailClosed},
	{Component: "quota_ledger", Mode: FailClosed},
	{Component: "quota_reserver", Mode: FailClosed},
	{Component: "context_assembler", Mode: FailOpen, Default: "no context"},
}

// PolicyFor returns the policy entry for a component, or nil when the
// component is not in the table.
func PolicyFor(component string) *PolicyEntry {
	for i := range FailurePolicy {
		if FailurePolicy[i].Component == component {
			return &FailurePolicy[i]
		}
	}
	return nil
}
