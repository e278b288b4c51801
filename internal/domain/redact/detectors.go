package redact

import (
	"net"
	"regexp"
	"strconv"
	"strings"
)

// detector is one entity pattern. re finds shape-candidates; validate, when
// set, is a semantic gate applied to the matched text before a candidate is
// accepted (Luhn for credit cards, MOD-97 for IBAN, forbidden-range checks
// for SSN, net.ParseIP for IP addresses). A candidate whose validate
// returns false is dropped, never downgraded to a lower confidence.
type detector struct {
	entity     EntityType
	re         *regexp.Regexp
	confidence float64
	validate   func(match string) bool
}

var ssnRe = regexp.MustCompile(`\b\d{3}[- ]?\d{2}[- ]?\d{4}\b`)

// ssnValid re-implements, as a gate function, the forbidden ranges the
// reference pattern expresses with negative lookahead (RE2 has none):
// area != 000, 666, 900-999; group != 00; serial != 0000.
func ssnValid(s string) bool {
	digits := strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, s)
	if len(digits) != 9 {
		return false
	}
	area, _ := strconv.Atoi(digits[0:3])
	group, _ := strconv.Atoi(digits[3:5])
	serial, _ := strconv.Atoi(digits[5:9])
	if area == 0 || area == 666 || area >= 900 {
		return false
	}
	if group == 0 {
		return false
	}
	if serial == 0 {
		return false
	}
	return true
}

var creditCardRe = regexp.MustCompile(
	`\b(?:4\d{3}|5[1-5]\d{2}|6(?:011|5\d{2})|3[47]\d{2}|3(?:0[0-5]|[68]\d)\d)[- ]?\d{4,6}[- ]?\d{4,5}[- ]?\d{0,4}\b`,
)

var ipv4Re = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
var ipv6Re = regexp.MustCompile(`\b(?:[0-9A-Fa-f]{0,4}:){2,7}[0-9A-Fa-f]{0,4}\b`)

func ipValid(s string) bool {
	return net.ParseIP(s) != nil
}

var urlSchemes = []string{
	"http", "https", "ftp", "ftps", "sftp", "ssh", "ws", "wss",
	"git", "file", "telnet", "ldap", "ldaps", "smb", "nfs",
}

var urlRe = regexp.MustCompile(
	`(?i)\b(?:` + strings.Join(urlSchemes, "|") + `)://[^\s<>"'` + "`" + `]+`,
)

// trimURL strips trailing punctuation and unbalanced closing delimiters the
// raw regex match tends to pick up (a URL at the end of a sentence, or
// wrapped in markdown parens). It never extends the match, only shortens it.
func trimURL(s string) string {
	s = strings.TrimRight(s, `.,;:!?'"`)
	pairs := map[byte]byte{')': '(', ']': '[', '}': '{'}
	for len(s) > 0 {
		last := s[len(s)-1]
		open, isClose := pairs[last]
		if !isClose {
			break
		}
		if strings.Count(s, string(open)) >= strings.Count(s, string(last)) {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

var passportRe = regexp.MustCompile(`\b[A-Z]\d{8}\b`)
var driverLicenseRe = regexp.MustCompile(`\b[A-Z]{1,2}\d{6,8}\b`)

var cryptoRe = regexp.MustCompile(
	`\b(?:bc1[a-z0-9]{25,39}|[13][a-km-zA-HJ-NP-Z1-9]{25,34}|0x[a-fA-F0-9]{40}|[LM3][a-km-zA-HJ-NP-Z1-9]{26,33})\b`,
)

var emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

var phoneRe = regexp.MustCompile(
	`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`,
)

var ibanRe = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{4}\d{7}[A-Z0-9]{0,16}\b`)

// secretPatterns are provider-specific token shapes, all collapsed to the
// SECRET entity on output. Patterns are listed in the order a human would
// recognize them: cloud keys, VCS tokens, SaaS API keys, then generic JWTs.
var secretPatterns = []string{
	`\bAKIA[0-9A-Z]{16}\b`,
	`\bghp_[A-Za-z0-9]{36}\b`,
	`\bgho_[A-Za-z0-9]{36}\b`,
	`\bsk_(?:live|test)_[A-Za-z0-9]{24,}\b`,
	`\bSG\.[A-Za-z0-9_-]{22}\.[A-Za-z0-9_-]{43}\b`,
	`\bxoxb-[0-9]{10,13}-[0-9]{10,13}-[A-Za-z0-9]{24,}\b`,
	`\bSK[0-9a-f]{32}\b`,
	`\bAIza[0-9A-Za-z_-]{35}\b`,
	`\bdop_v1_[a-f0-9]{64}\b`,
	`\beyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`,
}

var detectors = buildDetectors()

func buildDetectors() []detector {
	ds := []detector{
		{entity: EntityEmail, re: emailRe, confidence: 0.95},
		{entity: EntityPhone, re: phoneRe, confidence: 0.80},
		{entity: EntitySSN, re: ssnRe, confidence: 0.90, validate: ssnValid},
		{entity: EntityCreditCard, re: creditCardRe, confidence: 0.99, validate: luhnValid},
		{entity: EntityIPAddress, re: ipv4Re, confidence: 0.90, validate: ipValid},
		{entity: EntityIPAddress, re: ipv6Re, confidence: 0.90, validate: ipv6Gate},
		{entity: EntityURL, re: urlRe, confidence: 0.90},
		{entity: EntityIBAN, re: ibanRe, confidence: 0.99, validate: ibanValid},
		{entity: EntityPassport, re: passportRe, confidence: 0.30},
		{entity: EntityDriverLicense, re: driverLicenseRe, confidence: 0.30},
		{entity: EntityCrypto, re: cryptoRe, confidence: 0.70},
	}
	for _, pat := range secretPatterns {
		ds = append(ds, detector{entity: EntitySecret, re: regexp.MustCompile(pat), confidence: 0.95})
	}
	return ds
}

// ipv6Gate requires both a colon-delimited candidate that parses as an IP
// and that it isn't just a bare IPv4 address re-matched by the loose IPv6
// shape regex (ipv6Re can overmatch a lone hex-ish run).
func ipv6Gate(s string) bool {
	if !strings.Contains(s, ":") {
		return false
	}
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() == nil
}
