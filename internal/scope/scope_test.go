package scope

import "testing"

func TestInScope_EmptyScopeAlwaysTrue(t *testing.T) {
	if !InScope("evil.com", nil) {
		t.Error("empty scope must allow everything")
	}
}

func TestInScope_Wildcard(t *testing.T) {
	scope := []string{"*.example.com"}
	for _, target := range []string{"example.com", "a.example.com", "a.b.example.com"} {
		if !InScope(target, scope) {
			t.Errorf("expected %q in scope", target)
		}
	}
	if InScope("examplex.com", scope) {
		t.Error("examplex.com must not match *.example.com")
	}
}

func TestInScope_CIDR(t *testing.T) {
	scope := []string{"10.0.0.0/8"}
	if !InScope("10.1.2.3", scope) {
		t.Error("10.1.2.3 should be in 10.0.0.0/8")
	}
	if InScope("11.0.0.0", scope) {
		t.Error("11.0.0.0 should not be in 10.0.0.0/8")
	}
}

func TestInScope_ExactAndSuffix(t *testing.T) {
	scope := []string{"example.com"}
	if !InScope("example.com", scope) {
		t.Error("exact match expected")
	}
	if !InScope("sub.example.com", scope) {
		t.Error("subdomain suffix match expected")
	}
	if InScope("notexample.com", scope) {
		t.Error("notexample.com must not match example.com")
	}
}

func TestInScope_SchemeAndSlashStripped(t *testing.T) {
	scope := []string{"example.com"}
	if !InScope("https://example.com/path?x=1", scope) {
		t.Error("scheme+path should be stripped before matching")
	}
}

func TestInScope_UnparseableEntrySkipped(t *testing.T) {
	scope := []string{"[not-a-valid-cidr/999", "example.com"}
	if !InScope("example.com", scope) {
		t.Error("a bad entry must not prevent a later good entry from matching")
	}
}

func TestExtractFromParams(t *testing.T) {
	got, ok := ExtractFromParams(map[string]interface{}{"target": "10.0.0.5"})
	if !ok || got != "10.0.0.5" {
		t.Errorf("got %q, %v", got, ok)
	}
	if _, ok := ExtractFromParams(map[string]interface{}{"unrelated": "x"}); ok {
		t.Error("expected no target extracted")
	}
}

func TestExtractFromShell(t *testing.T) {
	got, ok := ExtractFromShell("nmap -Pn 10.0.0.5/24 -oX out.xml")
	if !ok || got != "10.0.0.5/24" {
		t.Errorf("got %q, %v", got, ok)
	}
	got, ok = ExtractFromShell("subfinder -d example.com -silent")
	if !ok || got != "example.com" {
		t.Errorf("got %q, %v", got, ok)
	}
}
