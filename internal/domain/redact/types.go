// Package redact implements the JSON-structure-preserving redaction engine.
//
// Redact walks any JSON-compatible Go value (the shape produced by
// encoding/json's generic decode: map[string]interface{}, []interface{},
// string, json.Number/float64, bool, nil) and replaces sensitive spans with
// fixed placeholder tokens. The walk never changes the shape of the tree:
// map keys are never touched, array lengths never change, and a value's
// JSON type only changes from number to string when the number itself
// matches a sensitive pattern once stringified.
package redact

// EntityType identifies the category of a detected sensitive span.
type EntityType string

const (
	EntityEmail         EntityType = "EMAIL_ADDRESS"
	EntityPhone         EntityType = "PHONE_NUMBER"
	EntitySSN           EntityType = "US_SSN"
	EntityCreditCard    EntityType = "CREDIT_CARD"
	EntityIPAddress     EntityType = "IP_ADDRESS"
	EntityURL           EntityType = "URL"
	EntityPassport      EntityType = "US_PASSPORT"
	EntityDriverLicense EntityType = "US_DRIVER_LICENSE"
	EntityCrypto        EntityType = "CRYPTO_ADDRESS"
	EntityIBAN          EntityType = "IBAN"
	EntitySecret        EntityType = "SECRET"
)

// Match is a single detected span within one input string, prior to overlap
// resolution.
type Match struct {
	Start      int
	End        int
	EntityType EntityType
	Confidence float64
}

// placeholder is the frozen set of replacement tokens. US_PASSPORT,
// US_DRIVER_LICENSE and CRYPTO_ADDRESS are regex-only, lower-confidence
// entity types kept distinct in Match for callers that want the detail, but
// they share the SECRET placeholder on output: the placeholder vocabulary
// itself is frozen at eight tokens and never grows with new detectors.
var placeholder = map[EntityType]string{
	EntityEmail:         "[REDACTED-EMAIL]",
	EntityPhone:         "[REDACTED-PHONE]",
	EntitySSN:           "[REDACTED-SSN]",
	EntityCreditCard:    "[REDACTED-CREDIT-CARD]",
	EntityIPAddress:     "[REDACTED-IP]",
	EntityURL:           "[REDACTED-URL]",
	EntityPassport:      "[REDACTED-SECRET]",
	EntityDriverLicense: "[REDACTED-SECRET]",
	EntityCrypto:        "[REDACTED-SECRET]",
	EntityIBAN:          "[REDACTED-IBAN]",
	EntitySecret:        "[REDACTED-SECRET]",
}
