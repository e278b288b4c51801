package proxy

import (
	"encoding/json"
	"errors"

	"github.com/mcpower/mcpower-gate/internal/domain/enforce"
)

// SafeErrorMessage converts an interceptor-returned error into a
// client-facing message, never leaking internal details (file paths,
// upstream stack traces). Known pipeline error types surface their own
// safe, already-sanitized message verbatim; anything else collapses to a
// generic "Internal error".
func SafeErrorMessage(err error) string {
	var policyErr *enforce.PolicyError
	if errors.As(err, &policyErr) {
		return policyErr.Message
	}

	var needMoreInfoErr *enforce.NeedMoreInfoError
	if errors.As(err, &needMoreInfoErr) {
		return needMoreInfoErr.Error()
	}

	return "Internal error"
}

// CreateJSONRPCError builds a JSON-RPC 2.0 error response for the given
// request id, code, and client-facing message.
func CreateJSONRPCError(id interface{}, code int, message string) []byte {
	resp := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}
	b, _ := json.Marshal(resp)
	return b
}
