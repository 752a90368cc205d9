package masking

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaskedCredentialValue is the replacement for a value keyed under a
// credential-shaped field name inside an embedded JSON/YAML block.
const MaskedCredentialValue = "[MASKED_CREDENTIAL]"

// credentialKeyPattern matches field names commonly holding a secret value
// in a config snippet, independent of source format.
var credentialKeyPattern = regexp.MustCompile(`(?i)^(password|secret|token|api[_-]?key|private[_-]?key|access[_-]?key|client[_-]?secret)$`)

// EmbeddedCredentialMasker detects a YAML or JSON block pasted into
// free-form text — a candidate quoting a project's config file in a "work
// samples" section, a job posting's "sample stack" snippet — and masks any
// value keyed under a credential-shaped field name, leaving the rest of the
// structure intact. Unlike the regex patterns, it parses the block so it
// can tell a credential value apart from ordinary prose that happens to
// contain the word "token".
type EmbeddedCredentialMasker struct{}

// Name returns the unique identifier for this masker.
func (m *EmbeddedCredentialMasker) Name() string { return "embedded_credential" }

// AppliesTo performs a lightweight check on whether this masker should
// process the data.
func (m *EmbeddedCredentialMasker) AppliesTo(data string) bool {
	for _, line := range strings.Split(data, "\n") {
		if key, _, ok := strings.Cut(line, ":"); ok && credentialKeyPattern.MatchString(strings.TrimSpace(key)) {
			return true
		}
		if key, _, ok := strings.Cut(line, "="); ok && credentialKeyPattern.MatchString(strings.TrimSpace(key)) {
			return true
		}
	}
	return false
}

// Mask applies embedded-credential masking. Detects JSON vs YAML and
// applies the appropriate parser. Returns original data on parse/processing
// errors (defensive).
func (m *EmbeddedCredentialMasker) Mask(data string) string {
	trimmed := strings.TrimSpace(data)

	// Try JSON first when input looks like JSON — prevents the YAML parser
	// from consuming JSON and re-serializing it as YAML.
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		if masked := m.maskJSON(data); masked != data {
			return masked
		}
	}

	if masked := m.maskYAML(data); masked != data {
		return masked
	}

	return data
}

// maskYAML parses multi-document YAML and masks credential-shaped fields.
func (m *EmbeddedCredentialMasker) maskYAML(data string) string {
	decoder := yaml.NewDecoder(strings.NewReader(data))
	var documents []map[string]any
	anyMasked := false

	for {
		var doc map[string]any
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return data // Parse error — return original (defensive)
		}
		if doc == nil {
			continue
		}
		if maskCredentialFields(doc) {
			anyMasked = true
		}
		documents = append(documents, doc)
	}

	if !anyMasked || len(documents) == 0 {
		return data
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	for _, doc := range documents {
		if err := encoder.Encode(doc); err != nil {
			return data
		}
	}
	if err := encoder.Close(); err != nil {
		return data
	}

	result := strings.TrimRight(buf.String(), "\n")
	if strings.HasSuffix(data, "\n") {
		result += "\n"
	}
	return result
}

// maskJSON parses JSON and masks credential-shaped fields.
func (m *EmbeddedCredentialMasker) maskJSON(data string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return data // Not valid JSON — return original
	}

	if !maskCredentialFields(obj) {
		return data
	}

	result, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return data
	}

	output := string(result)
	if strings.HasSuffix(data, "\n") {
		output += "\n"
	}
	return output
}

// maskCredentialFields walks a parsed document recursively, masking any
// string value whose key matches a credential-shaped name. Returns true if
// anything was masked.
func maskCredentialFields(node any) bool {
	switch v := node.(type) {
	case map[string]any:
		masked := false
		for key, val := range v {
			if credentialKeyPattern.MatchString(key) {
				if _, ok := val.(string); ok {
					v[key] = MaskedCredentialValue
					masked = true
					continue
				}
			}
			if maskCredentialFields(val) {
				masked = true
			}
		}
		return masked
	case []any:
		masked := false
		for _, item := range v {
			if maskCredentialFields(item) {
				masked = true
			}
		}
		return masked
	}
	return false
}
