package enforce

import (
	"fmt"
	"strings"
)

// securityViolationMessage is the exact text required for a user- or
// policy-driven block surfaced to the MCP client (§6.1).
const securityViolationMessage = "Security Violation. User blocked the operation"

// PolicyError is raised when the pipeline must fail the operation instead
// of forwarding it: a policy block, a user-driven block, or a synthesized
// security-API-unavailable verdict. The wrapper converts it into a
// protocol-level JSON-RPC error using Message verbatim.
type PolicyError struct {
	Message string
	Reasons []string
}

func (e *PolicyError) Error() string {
	return e.Message
}

func newBlockError() *PolicyError {
	return &PolicyError{Message: securityViolationMessage}
}

// NeedMoreInfoError is raised for a need_more_info verdict. It is never
// shown to the dialog; it is a structured, actionable message the agent is
// expected to parse and retry against (§4.2b, testable property 12).
type NeedMoreInfoError struct {
	Stage          string
	Reasons        []string
	WrapperFields  []string
}

func (e *NeedMoreInfoError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "NEED MORE INFO [%s]\n", e.Stage)

	if len(e.Reasons) > 0 {
		b.WriteString("Reasons:\n")
		for _, r := range e.Reasons {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	b.WriteString("Missing fields (add these to the tool call arguments):\n")
	for _, f := range e.WrapperFields {
		fmt.Fprintf(&b, "- %s\n", f)
	}

	b.WriteString("\nMANDATORY ACTIONS:\n")
	b.WriteString("1. Add/Edit ALL affected fields\n")
	b.WriteString("2. Retry the tool call\n")

	return b.String()
}

func newNeedMoreInfoError(stage string, reasons, needFields []string) *NeedMoreInfoError {
	return &NeedMoreInfoError{
		Stage:         stage,
		Reasons:       reasons,
		WrapperFields: translateNeedFields(needFields),
	}
}
