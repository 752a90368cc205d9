package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddedCredentialMasker_AppliesTo(t *testing.T) {
	m := &EmbeddedCredentialMasker{}

	assert.True(t, m.AppliesTo(`password: "FAKE-NOT-REAL"`))
	assert.True(t, m.AppliesTo(`API_KEY=FAKE-NOT-REAL-XXXX`))
	assert.False(t, m.AppliesTo(`This resume describes five years of experience.`))
	assert.False(t, m.AppliesTo(`token of appreciation from the team`))
}

func TestEmbeddedCredentialMasker_MasksYAML(t *testing.T) {
	m := &EmbeddedCredentialMasker{}
	content := `stack:
  name: portfolio-api
  password: "FAKE-NOT-REAL-PASSWORD"
  port: 8080`

	result := m.Mask(content)

	assert.NotContains(t, result, "FAKE-NOT-REAL-PASSWORD")
	assert.Contains(t, result, MaskedCredentialValue)
	assert.Contains(t, result, "portfolio-api")
	assert.Contains(t, result, "8080")
}

func TestEmbeddedCredentialMasker_MasksJSON(t *testing.T) {
	m := &EmbeddedCredentialMasker{}
	content := `{"service": "portfolio-api", "api_key": "FAKE-NOT-REAL-KEY", "region": "us-east-1"}`

	result := m.Mask(content)

	assert.NotContains(t, result, "FAKE-NOT-REAL-KEY")
	assert.Contains(t, result, MaskedCredentialValue)
	assert.Contains(t, result, "us-east-1")
}

func TestEmbeddedCredentialMasker_MasksNestedFields(t *testing.T) {
	m := &EmbeddedCredentialMasker{}
	content := `{"service": "portfolio-api", "auth": {"client_secret": "FAKE-NOT-REAL-SECRET"}}`

	result := m.Mask(content)

	assert.NotContains(t, result, "FAKE-NOT-REAL-SECRET")
	assert.Contains(t, result, MaskedCredentialValue)
}

func TestEmbeddedCredentialMasker_LeavesOrdinaryTextAlone(t *testing.T) {
	m := &EmbeddedCredentialMasker{}
	content := "Led a five-person team to ship the portfolio API redesign."

	result := m.Mask(content)

	assert.Equal(t, content, result)
}

func TestEmbeddedCredentialMasker_InvalidStructureReturnsOriginal(t *testing.T) {
	m := &EmbeddedCredentialMasker{}
	content := `password: [this is not valid yaml: {`

	result := m.Mask(content)

	assert.Equal(t, content, result)
}
