package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRuleEngine_Classify(t *testing.T) {
	engine := NewRuleEngine(nil)

	tests := []struct {
		name string
		id   string
		want []IssueKind
	}{
		{
			name: "short numeric with extension",
			id:   "12345.sldprt",
			want: []IssueKind{IssueNonTenDigit, IssueIncorrectNaming},
		},
		{
			name: "clean part number",
			id:   "PN1234567890.sldprt",
			want: []IssueKind{},
		},
		{
			name: "bare digits",
			id:   "12345",
			want: []IssueKind{IssueMissingExtension, IssueNonTenDigit, IssueIncorrectNaming},
		},
		{
			name: "prefix is case insensitive",
			id:   "part-0000000001.SLDASM",
			want: []IssueKind{},
		},
		{
			name: "embedded space is invalid format",
			id:   "PN 123",
			want: []IssueKind{IssueMissingExtension, IssueNonTenDigit, IssueInvalidFormat},
		},
		{
			name: "accented latin letters are allowed",
			id:   "Réf1234567890.prt",
			want: []IssueKind{IssueIncorrectNaming},
		},
		{
			name: "symbols are invalid format",
			id:   "DWG#1234567890.pdf",
			want: []IssueKind{IssueInvalidFormat},
		},
		{
			name: "empty identifier is never classified",
			id:   "",
			want: []IssueKind{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Classify(tt.id)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify(%q) mismatch (-want +got):\n%s", tt.id, diff)
			}
		})
	}
}

func TestRuleEngine_IsPure(t *testing.T) {
	engine := NewRuleEngine(SurfaceBodySet("ASM0000000001.sldasm"))
	for i := 0; i < 50; i++ {
		got := engine.Classify("ASM0000000001.sldasm")
		if diff := cmp.Diff([]IssueKind{IssueSurfaceBody}, got); diff != "" {
			t.Fatalf("iteration %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestRuleEngine_SurfaceBodyIsLast(t *testing.T) {
	engine := NewRuleEngine(func(string) bool { return true })
	got := engine.Classify("12345")
	want := []IssueKind{IssueMissingExtension, IssueNonTenDigit, IssueIncorrectNaming, IssueSurfaceBody}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	decomposed := "  Re\u0301f1234567890.prt "
	got := NormalizeIdentifier(decomposed)
	if got != "R\u00e9f1234567890.prt" {
		t.Errorf("NormalizeIdentifier = %q, want composed form", got)
	}

	engine := NewRuleEngine(nil)
	if issues := engine.Classify(got); len(issues) != 1 || issues[0] != IssueIncorrectNaming {
		t.Errorf("Classify(normalized) = %v, want [Incorrect Naming]", issues)
	}
}

func TestStatusFor(t *testing.T) {
	if got := StatusFor(nil); got != StatusCorrected {
		t.Errorf("StatusFor(nil) = %v, want corrected", got)
	}
	if got := StatusFor([]IssueKind{IssueNonTenDigit}); got != StatusPending {
		t.Errorf("StatusFor(issues) = %v, want pending", got)
	}
}
