package verify

import (
	"context"

	"github.com/lonestarx1/gogrid/pkg/llm"
)

// Verifier runs the claim-extraction-then-link pipeline and implements
// scheduler.Verifier (the scheduler declares its own narrow interface to
// avoid importing this package, so there is no interface assertion here —
// a caller wiring Verifier into scheduler.NewEngine just needs the method
// set to match).
type Verifier struct {
	Provider llm.Provider
	Model    string
}

// New creates a Verifier that extracts claims using provider/model.
func New(provider llm.Provider, model string) *Verifier {
	return &Verifier{Provider: provider, Model: model}
}

// Verify extracts claims from analysisText, links them against
// priorOutputs, and returns the assembled *VerificationReport as the
// report value (typed any to match scheduler.Verifier's signature).
func (v *Verifier) Verify(ctx context.Context, analysisText string, priorOutputs map[string]string) (any, error) {
	claims, err := extractClaims(ctx, v.Provider, v.Model, analysisText)
	if err != nil {
		return nil, err
	}
	report := buildReport(analysisText, claims, priorOutputs)
	return &report, nil
}
