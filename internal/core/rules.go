package core

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SurfaceBodyClassifier decides whether the part named by an identifier is a
// surface body. Implementations must be deterministic.
type SurfaceBodyClassifier func(identifier string) bool

// NeverSurfaceBody is the default classifier: no part is a surface body.
func NeverSurfaceBody(string) bool { return false }

// SurfaceBodySet classifies exactly the listed identifiers as surface bodies.
func SurfaceBodySet(ids ...string) SurfaceBodyClassifier {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[NormalizeIdentifier(id)] = struct{}{}
	}
	return func(identifier string) bool {
		_, ok := set[identifier]
		return ok
	}
}

// RecognizedPrefixes are the naming prefixes accepted by the IncorrectNaming rule.
var RecognizedPrefixes = []string{"PN", "PART", "ASM", "DWG"}

// allowedIdentifier matches ASCII word characters, Latin accented ranges,
// period, underscore and hyphen.
var allowedIdentifier = regexp.MustCompile(`^[\w\x{00C0}-\x{024F}\x{1E00}-\x{1EFF}._-]+$`)

// Rule is a single named check. Violated returns true when the identifier
// should carry Kind.
type Rule struct {
	Kind     IssueKind
	Violated func(identifier string) bool
}

// RuleEngine applies the fixed rule set in order.
type RuleEngine struct {
	rules []Rule
}

// NewRuleEngine builds the engine with the given surface-body capability.
// A nil classifier behaves as NeverSurfaceBody.
func NewRuleEngine(surface SurfaceBodyClassifier) *RuleEngine {
	if surface == nil {
		surface = NeverSurfaceBody
	}
	return &RuleEngine{rules: []Rule{
		{Kind: IssueMissingExtension, Violated: missingExtension},
		{Kind: IssueNonTenDigit, Violated: notTenDigits},
		{Kind: IssueInvalidFormat, Violated: invalidFormat},
		{Kind: IssueIncorrectNaming, Violated: incorrectNaming},
		{Kind: IssueSurfaceBody, Violated: surface},
	}}
}

// Classify returns the issues of a non-empty identifier, deduplicated and in
// rule order. An empty identifier yields no issues; placeholders are tagged
// upstream.
func (e *RuleEngine) Classify(identifier string) []IssueKind {
	issues := make([]IssueKind, 0, len(e.rules))
	if identifier == "" {
		return issues
	}
	for _, r := range e.rules {
		if r.Violated(identifier) {
			issues = append(issues, r.Kind)
		}
	}
	return dedupeIssues(issues)
}

// StatusFor is the creation-time status for a classified identifier.
func StatusFor(issues []IssueKind) Status {
	if len(issues) == 0 {
		return StatusCorrected
	}
	return StatusPending
}

// NormalizeIdentifier trims the text and brings it to Unicode NFC so that
// composed and decomposed spellings classify identically.
func NormalizeIdentifier(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func missingExtension(id string) bool {
	return !strings.Contains(id, ".")
}

func notTenDigits(id string) bool {
	n := 0
	for i := 0; i < len(id); i++ {
		if id[i] >= '0' && id[i] <= '9' {
			n++
		}
	}
	return n != 10
}

func invalidFormat(id string) bool {
	return !allowedIdentifier.MatchString(id)
}

func incorrectNaming(id string) bool {
	upper := strings.ToUpper(id)
	for _, p := range RecognizedPrefixes {
		if strings.HasPrefix(upper, p) {
			return false
		}
	}
	return true
}
