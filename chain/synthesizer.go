package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianAnswers/datatypes"
)

// UnknownAnswerSentinel is the phrase the synthesis prompt instructs the
// model to emit when the supplied passages do not contain the answer.
const UnknownAnswerSentinel = "I don't know."

// Synthesizer produces the final answer from retrieved passages.
//
// # Description
//
// Synthesizer grounds the answer strictly in the supplied passages. The
// prompt constrains the response to at most 25 words, opening with one
// of a fixed set of stance markers (Yes, No, Yes with configuration,
// Yes with customization, Yes with partner solution). When the passages
// do not contain the answer the model is told to say so, which callers
// detect with IsUnknownSentinel.
//
// # Thread Safety
//
// Synthesizer is safe for concurrent use.
type Synthesizer struct {
	generate GenerateFunc
}

// NewSynthesizer creates a Synthesizer backed by the given generate function.
func NewSynthesizer(generate GenerateFunc) *Synthesizer {
	return &Synthesizer{generate: generate}
}

// Synthesize answers the standalone question from the given passages.
//
// # Description
//
// Formats the passages into a context block, calls the slow model, and
// wraps the trimmed response in an AnswerResult. An empty passage list
// is allowed; the prompt then instructs the model to admit it does not
// know rather than fabricate an answer.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - question: The standalone question to answer.
//   - passages: Retrieved passages grounding the answer. May be empty.
//
// # Outputs
//
//   - *datatypes.AnswerResult: The answer text, its source passages,
//     and whether the model declined to answer.
//   - error: Non-nil if the LLM call fails.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, passages []datatypes.RetrievedPassage) (*datatypes.AnswerResult, error) {
	prompt := fmt.Sprintf(synthesizePromptTemplate, formatPassages(passages), question)

	response, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("synthesis LLM call failed: %w", err)
	}

	text := strings.TrimSpace(response)
	return &datatypes.AnswerResult{
		Text:           text,
		SourcePassages: passages,
		IsUnknown:      IsUnknownSentinel(text),
	}, nil
}

// IsUnknownSentinel reports whether the model declined to answer.
// A substring match is used because models routinely surround the
// sentinel with qualifiers ("I'm sorry, but I don't know.").
func IsUnknownSentinel(text string) bool {
	return strings.Contains(text, UnknownAnswerSentinel)
}

// formatPassages renders passages as a context block, one passage per
// section with its source line so the model can cite it.
func formatPassages(passages []datatypes.RetrievedPassage) string {
	if len(passages) == 0 {
		return "(no context available)"
	}
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if p.Source != "" {
			b.WriteString(fmt.Sprintf("[Source: %s]\n", p.Source))
		}
		b.WriteString(p.Content)
	}
	return b.String()
}
