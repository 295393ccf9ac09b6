package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAnswers/datatypes"
)

func TestSynthesize_TrimsAndReturnsAnswer(t *testing.T) {
	gen := func(ctx context.Context, prompt string) (string, error) {
		return "\n  Yes, the product supports SAML-based single sign-on.  \n", nil
	}
	s := NewSynthesizer(gen)

	passages := []datatypes.RetrievedPassage{
		{Content: "The product supports SAML SSO.", Source: "docs/sso.md", Score: 0.91},
	}
	result, err := s.Synthesize(context.Background(), "Does the product support SSO?", passages)

	require.NoError(t, err)
	assert.Equal(t, "Yes, the product supports SAML-based single sign-on.", result.Text)
	assert.False(t, result.IsUnknown)
	assert.Equal(t, passages, result.SourcePassages)
}

func TestSynthesize_DetectsUnknownSentinel(t *testing.T) {
	gen := func(ctx context.Context, prompt string) (string, error) {
		return "I'm sorry, but I don't know.", nil
	}
	s := NewSynthesizer(gen)

	result, err := s.Synthesize(context.Background(), "Does it run on Mars?", nil)

	require.NoError(t, err)
	assert.True(t, result.IsUnknown)
}

func TestSynthesize_PropagatesGenerationError(t *testing.T) {
	gen := func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model unavailable")
	}
	s := NewSynthesizer(gen)

	result, err := s.Synthesize(context.Background(), "anything", nil)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "synthesis LLM call failed")
}

func TestSynthesize_PromptContainsPassagesAndQuestion(t *testing.T) {
	var captured string
	gen := func(ctx context.Context, prompt string) (string, error) {
		captured = prompt
		return "Yes.", nil
	}
	s := NewSynthesizer(gen)

	passages := []datatypes.RetrievedPassage{
		{Content: "Feature A is configurable.", Source: "docs/a.md"},
		{Content: "Feature B needs a partner.", Source: "docs/b.md"},
	}
	_, err := s.Synthesize(context.Background(), "Is feature A configurable?", passages)

	require.NoError(t, err)
	assert.Contains(t, captured, "[Source: docs/a.md]\nFeature A is configurable.")
	assert.Contains(t, captured, "[Source: docs/b.md]\nFeature B needs a partner.")
	assert.Contains(t, captured, "Standalone question: Is feature A configurable?")
}

func TestSynthesize_EmptyPassagesUsesPlaceholderContext(t *testing.T) {
	var captured string
	gen := func(ctx context.Context, prompt string) (string, error) {
		captured = prompt
		return "I don't know.", nil
	}
	s := NewSynthesizer(gen)

	result, err := s.Synthesize(context.Background(), "anything", nil)

	require.NoError(t, err)
	assert.Contains(t, captured, "(no context available)")
	assert.True(t, result.IsUnknown)
}

func TestIsUnknownSentinel(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"exact sentinel", "I don't know.", true},
		{"sentinel embedded in prose", "Unfortunately I don't know. Please check the docs.", true},
		{"missing period", "I don't know", false},
		{"different apostrophe", "I don’t know.", false},
		{"normal answer", "Yes, with configuration.", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUnknownSentinel(tt.text))
		})
	}
}
