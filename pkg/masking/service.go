package masking

import (
	"log/slog"

	"github.com/resumeforge/pipeline/pkg/config"
)

// MaskingService applies PII and embedded-credential sanitisation to intake
// text, drafted sections, and tool output before either is persisted or
// handed to an LLM call. Created once at application startup (singleton).
// Thread-safe and stateless aside from compiled patterns.
type MaskingService struct {
	cfg           *config.MaskingConfig
	patterns      map[string]*CompiledPattern // Built-in compiled patterns
	patternGroups map[string][]string         // Group name → pattern names
	codeMaskers   map[string]Masker           // Registered code-based maskers
}

// NewMaskingService creates a masking service with compiled patterns and
// registered maskers. All patterns are compiled eagerly at creation time.
// Invalid patterns are logged and skipped.
func NewMaskingService(cfg *config.MaskingConfig) *MaskingService {
	s := &MaskingService{
		cfg:           cfg,
		patterns:      make(map[string]*CompiledPattern),
		patternGroups: config.GetBuiltinConfig().PatternGroups,
		codeMaskers:   make(map[string]Masker),
	}

	s.compileBuiltinPatterns()
	s.registerMasker(&EmbeddedCredentialMasker{})

	slog.Info("Masking service initialized",
		"builtin_patterns", len(config.GetBuiltinConfig().MaskingPatterns),
		"compiled_patterns", len(s.patterns),
		"code_maskers", len(s.codeMaskers),
		"enabled", cfg.Enabled)

	return s
}

// MaskIntakeText sanitises raw resume/job-posting text on ingestion.
// Fail-open: a masking failure must never block a candidate's submission,
// so on error the original text is returned and the failure is logged for
// follow-up rather than surfaced to the caller.
func (s *MaskingService) MaskIntakeText(text string) string {
	if !s.cfg.Enabled || text == "" {
		return text
	}

	resolved := s.resolveGroups(s.cfg.PatternGroups)
	if len(resolved.codeMaskerNames) == 0 && len(resolved.regexPatterns) == 0 {
		return text
	}

	masked, err := s.applyMasking(text, resolved)
	if err != nil {
		slog.Error("Intake masking failed, continuing unmasked (fail-open)", "error", err)
		return text
	}

	return masked
}

// MaskToolOutput sanitises raw tool output before it is recorded as a
// ToolInteraction row or timeline event. Fail-closed: a research tool can
// surface a pasted credential from an external source (a job-board API
// response, a candidate's linked portfolio repo), and an unmasked leak into
// the trace viewer is worse than losing that trace entry.
func (s *MaskingService) MaskToolOutput(content string) string {
	if content == "" {
		return content
	}
	if !s.cfg.Enabled {
		return content
	}

	resolved := s.resolveGroups(s.cfg.PatternGroups)
	if len(resolved.codeMaskerNames) == 0 && len(resolved.regexPatterns) == 0 {
		return content
	}

	masked, err := s.applyMasking(content, resolved)
	if err != nil {
		slog.Error("Tool output masking failed, redacting content (fail-closed)", "error", err)
		return "[REDACTED: data masking failure — tool output could not be safely processed]"
	}

	return masked
}

// applyMasking applies code-based maskers then regex patterns to content.
func (s *MaskingService) applyMasking(content string, resolved *resolvedPatterns) (string, error) {
	masked := content

	// Phase 1: Code-based maskers (more specific, structural awareness)
	for _, maskerName := range resolved.codeMaskerNames {
		masker, ok := s.codeMaskers[maskerName]
		if !ok {
			continue
		}
		if masker.AppliesTo(masked) {
			masked = masker.Mask(masked)
		}
	}

	// Phase 2: Regex patterns (general sweep)
	for _, pattern := range resolved.regexPatterns {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}

	return masked, nil
}

// registerMasker registers a code-based masker by its name.
func (s *MaskingService) registerMasker(m Masker) {
	s.codeMaskers[m.Name()] = m
}
