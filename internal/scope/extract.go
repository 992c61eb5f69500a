package scope

import "regexp"

// targetParamNames is the ordered list of parameter keys probed when
// extracting a target from an execute_tool call. The first present key
// wins, matching the order an operator would expect the UI to surface them.
var targetParamNames = []string{
	"target", "host", "hostname", "ip", "url", "domain", "targets",
}

// ExtractFromParams probes params for the first present target-shaped key,
// per §4.F. Returns ("", false) if none of the known keys are present or
// they only hold empty values.
func ExtractFromParams(params map[string]interface{}) (string, bool) {
	for _, key := range targetParamNames {
		v, ok := params[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		return s, true
	}
	return "", false
}

var (
	ipv4WithCIDR = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})(/\d{1,2})?\b`)
	domainToken  = regexp.MustCompile(`\b([a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}\b`)
)

// ExtractFromShell scans a raw shell command for the first IPv4 literal
// (optionally with a CIDR suffix) or, failing that, the first domain-like
// token, matching §4.F's fallback extraction for execute_bash calls.
func ExtractFromShell(command string) (string, bool) {
	if m := ipv4WithCIDR.FindString(command); m != "" {
		return m, true
	}
	if m := domainToken.FindString(command); m != "" {
		return m, true
	}
	return "", false
}
