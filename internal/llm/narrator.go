package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scrypster/warmconnector/internal/engine"
)

// Narrator rewrites rule-based search narratives with a language model.
type Narrator struct {
	gen    TextGenerator
	logger *slog.Logger
}

// NewNarrator creates a Narrator backed by gen.
func NewNarrator(gen TextGenerator, logger *slog.Logger) *Narrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Narrator{gen: gen, logger: logger}
}

// Narrate implements engine.NarrativeGenerator. Outcomes with nothing to
// explain keep the base narrative without a model call.
func (n *Narrator) Narrate(ctx context.Context, in engine.NarrativeInput, base string) (string, error) {
	switch in.Source {
	case engine.SourceInvalidRequest, engine.SourceError, engine.SourceSamePerson:
		return base, nil
	}

	reply, err := n.gen.Complete(ctx, NarrativePrompt(in, base))
	if err != nil {
		return "", fmt.Errorf("llm: narrate with %s: %w", n.gen.GetModel(), err)
	}

	text := ParseNarrative(reply)
	if text == "" {
		return "", fmt.Errorf("llm: narrate with %s: %w", n.gen.GetModel(), ErrEmptyCompletion)
	}
	n.logger.Debug("narrative generated", "model", n.gen.GetModel(), "source", in.Source, "chars", len(text))
	return text, nil
}

var _ engine.NarrativeGenerator = (*Narrator)(nil)
