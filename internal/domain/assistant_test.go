package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAssistantType_Valid(t *testing.T) {
	for _, raw := range []string{"basique", "biblio", "clinique", "administrative"} {
		parsed, err := ParseAssistantType(raw)

		assert.NoError(t, err)
		assert.Equal(t, AssistantType(raw), parsed)
	}
}

func TestParseAssistantType_Unknown(t *testing.T) {
	for _, raw := range []string{"", "BASIQUE", "juridique", "basique "} {
		_, err := ParseAssistantType(raw)

		assert.ErrorIs(t, err, ErrUnknownAssistantType)
	}
}

func TestAssistantTypes_CoversAllVariants(t *testing.T) {
	types := AssistantTypes()

	assert.Len(t, types, 4)
	for _, at := range types {
		assert.True(t, isValidAssistantType(at))
	}
}

func TestEvidenceRank_Ordering(t *testing.T) {
	assert.Greater(t, EvidenceRank("A"), EvidenceRank("B"))
	assert.Greater(t, EvidenceRank("B"), EvidenceRank("C"))
	assert.Greater(t, EvidenceRank("C"), EvidenceRank("D"))
	assert.Greater(t, EvidenceRank("D"), EvidenceRank(""))
	assert.Equal(t, 0, EvidenceRank("X"))
}
