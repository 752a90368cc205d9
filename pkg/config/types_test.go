package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestMaskingConfigYAML(t *testing.T) {
	data := []byte(`
enabled: true
pattern_groups:
  - identity
  - security
`)
	var cfg MaskingConfig
	require := assert.New(t)
	require.NoError(yaml.Unmarshal(data, &cfg))
	require.True(cfg.Enabled)
	require.Equal([]string{"identity", "security"}, cfg.PatternGroups)
}

func TestMaskingPatternYAML(t *testing.T) {
	data := []byte(`
pattern: '\d{3}-\d{2}-\d{4}'
replacement: '[MASKED_SSN]'
description: SSN
`)
	var pattern MaskingPattern
	assert.NoError(t, yaml.Unmarshal(data, &pattern))
	assert.Equal(t, `\d{3}-\d{2}-\d{4}`, pattern.Pattern)
	assert.Equal(t, "[MASKED_SSN]", pattern.Replacement)
}
