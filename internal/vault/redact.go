package vault

import "regexp"

const redactedPlaceholder = "[REDACTED]"

// egressPatterns mask credential-shaped substrings in tool output before it
// is handed back to the LLM (§4.G egress redaction). Unlike ingress
// tokenization, redaction is lossy and one-directional: the session event
// log still stores the unredacted output (operator-visible; §4.G).
var egressPatterns = []*regexp.Regexp{
	credentialKeyPattern,
	urlUserinfoPattern,
	authHeaderPattern,
	knownKeyShapes,
	// PEM private-key blocks.
	regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`),
	// SSN-shaped literals (###-##-####).
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
}

// Redact masks every credential-shaped span in output, returning the masked
// string. Output with no matching pattern is returned unchanged
// (idempotence: Redact(Redact(s)) == Redact(s), since masking an
// already-masked span again yields the same text).
func Redact(output string) string {
	for _, p := range egressPatterns {
		switch p {
		case credentialKeyPattern:
			output = p.ReplaceAllStringFunc(output, func(m string) string {
				sub := credentialKeyPattern.FindStringSubmatch(m)
				return sub[0][:len(sub[0])-len(sub[2])] + redactedPlaceholder
			})
		case urlUserinfoPattern:
			output = p.ReplaceAllStringFunc(output, func(m string) string {
				sub := urlUserinfoPattern.FindStringSubmatch(m)
				return sub[1] + redactedPlaceholder + sub[3]
			})
		case authHeaderPattern:
			output = p.ReplaceAllStringFunc(output, func(m string) string {
				sub := authHeaderPattern.FindStringSubmatch(m)
				return sub[1] + redactedPlaceholder
			})
		default:
			output = p.ReplaceAllString(output, redactedPlaceholder)
		}
	}
	return output
}
