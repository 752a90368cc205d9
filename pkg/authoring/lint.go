package authoring

import (
	"regexp"
	"strings"
)

// antiPatternRegexes flags stock resume filler the Section Writer is
// expected to avoid — vague self-assessments with no evidence backing them.
// Mirrors the regex-pattern-group style pkg/masking uses for its built-in
// masking patterns, applied here to lint rather than redact.
var antiPatternRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bresults[ -]driven\b`),
	regexp.MustCompile(`(?i)\bteam[ -]player\b`),
	regexp.MustCompile(`(?i)\bhard[ -]working\b`),
	regexp.MustCompile(`(?i)\bthink[s]? outside the box\b`),
	regexp.MustCompile(`(?i)\bsynerg(y|ies|istic)\b`),
	regexp.MustCompile(`(?i)\bproven track record\b`),
	regexp.MustCompile(`(?i)\bgo[- ]getter\b`),
	regexp.MustCompile(`(?i)\bdetail[- ]oriented\b`),
}

// delimiterPattern matches stray template delimiters (prompt scaffolding,
// Markdown code fences) that occasionally leak into a drafted section when
// the model echoes part of its instructions back.
var delimiterPattern = regexp.MustCompile("```|\\{\\{.*?\\}\\}|<<<.*?>>>")

// LintFinding is one issue surfaced by Lint, anchored to the offending text
// span so the Section Reviewer can quote it back to the writer agent.
type LintFinding struct {
	Rule  string `json:"rule"` // "anti_pattern" | "delimiter_leak" | "missing_keyword"
	Match string `json:"match"`
	Hint  string `json:"hint"`
}

// Lint runs the anti-pattern and delimiter-sanitisation passes over a
// drafted section's text. It does not consult job-description keywords —
// see KeywordAudit for that, which needs the requirement list as input.
func Lint(sectionText string) []LintFinding {
	var findings []LintFinding

	for _, re := range antiPatternRegexes {
		if m := re.FindString(sectionText); m != "" {
			findings = append(findings, LintFinding{
				Rule:  "anti_pattern",
				Match: m,
				Hint:  "replace with a specific, evidence-backed claim",
			})
		}
	}

	if m := delimiterPattern.FindString(sectionText); m != "" {
		findings = append(findings, LintFinding{
			Rule:  "delimiter_leak",
			Match: m,
			Hint:  "strip stray template/code-fence delimiters before rendering",
		})
	}

	return findings
}

// SanitizeDelimiters strips stray template delimiters from drafted text
// before it is stored as a section artifact. Unlike Lint, which only
// reports the leak, this is the corrective pass applied right before
// persistence.
func SanitizeDelimiters(sectionText string) string {
	return delimiterPattern.ReplaceAllString(sectionText, "")
}

// KeywordAudit reports which of the given job-description keywords are
// absent from the drafted section text, case-insensitively. Used by the
// Quality Review stage to flag sections that ignore strong requirements.
func KeywordAudit(sectionText string, keywords []string) []LintFinding {
	lower := strings.ToLower(sectionText)
	var findings []LintFinding
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(kw)) {
			findings = append(findings, LintFinding{
				Rule:  "missing_keyword",
				Match: kw,
				Hint:  "requirement keyword not present in this section",
			})
		}
	}
	return findings
}

// EvidenceIntegrityFinding flags a quantitative claim in drafted text with
// no matching metric in the evidence the writer was given — a fabrication
// risk the Quality Review stage must catch before a section is approved.
type EvidenceIntegrityFinding struct {
	Claim string `json:"claim"`
	Hint  string `json:"hint"`
}

// numericClaimPattern matches a number followed by a unit commonly used in
// resume metrics claims (percentages, multipliers, currency, headcount).
var numericClaimPattern = regexp.MustCompile(`\b\d+(\.\d+)?\s*(%|x|X|percent|million|billion|k\b)`)

// EvidenceIntegrityProbe scans drafted text for numeric claims and reports
// any that don't appear verbatim in the supplied evidence corpus (the
// concatenated scope metrics and results the writer was given for this
// section). A claim the model invented rather than grounded in evidence is
// the single highest-severity defect Quality Review looks for.
func EvidenceIntegrityProbe(sectionText, evidenceCorpus string) []EvidenceIntegrityFinding {
	var findings []EvidenceIntegrityFinding
	for _, claim := range numericClaimPattern.FindAllString(sectionText, -1) {
		if !strings.Contains(evidenceCorpus, claim) {
			findings = append(findings, EvidenceIntegrityFinding{
				Claim: claim,
				Hint:  "numeric claim not found in supplied evidence — verify before approval",
			})
		}
	}
	return findings
}
