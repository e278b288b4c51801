// Package enforce implements the decision enforcement state machine
// (§4.2b): it takes a policy verdict plus operation context and decides
// whether the pipeline continues, raises a protocol error, or escalates to
// a confirmation dialog.
package enforce

// Decision is the policy verdict's decision field.
type Decision string

const (
	DecisionAllow                         Decision = "allow"
	DecisionBlock                         Decision = "block"
	DecisionRequiredExplicitConfirmation  Decision = "required_explicit_user_confirmation"
	DecisionNeedMoreInfo                  Decision = "need_more_info"
)

// Severity is the verdict's severity field. Missing/unrecognized values
// are normalized to Unknown by ParseSeverity, which sorts as High.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
	SeverityUnknown  Severity = "unknown"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityUnknown:  2, // unknown sorts as high
	SeverityCritical: 3,
}

// ParseSeverity normalizes raw severity strings from the policy service,
// falling back to Unknown (== High) for anything unrecognized or empty.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s)
	default:
		return SeverityUnknown
	}
}

// Rank returns the ordinal position of a severity for threshold
// comparisons (low < medium < high < critical, unknown == high).
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return severityRank[SeverityUnknown]
}

// AtLeast reports whether s is at least as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// Verdict is the policy service's response to inspect_policy_request /
// inspect_policy_response (§3 Policy verdict).
type Verdict struct {
	Decision   Decision `json:"decision"`
	Severity   Severity `json:"severity"`
	Reasons    []string `json:"reasons,omitempty"`
	NeedFields []string `json:"need_fields,omitempty"`
	// CallType, when non-empty, means a dialog MAY offer "Always Allow"
	// (e.g. "read", "write", "execute").
	CallType string `json:"call_type,omitempty"`
}

// SecurityAPIUnavailable synthesizes the fail-closed verdict used when the
// policy client cannot reach the remote service or gets a non-2xx (§4.2a).
func SecurityAPIUnavailable(err error) Verdict {
	return Verdict{
		Decision: DecisionBlock,
		Severity: SeverityHigh,
		Reasons:  []string{"Security API unavailable: " + err.Error()},
	}
}
