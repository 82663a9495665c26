package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lonestarx1/gogrid/pkg/llm"
)

const extractPromptTemplate = `You are extracting checkable claims from an analysis for fact verification.

Analysis:
{analysis}

List every discrete, checkable claim the analysis makes. For each claim, give:
- id: a short stable identifier like "c1", "c2", ...
- text: the claim itself, verbatim or lightly paraphrased
- category: one of "quantitative", "qualitative", "comparative", "other"
- value: the numeric value the claim asserts, if any (omit otherwise)
- unit: the unit for value, if any (omit otherwise)

Respond with a JSON array only, no prose before or after it. Example:
[{"id":"c1","text":"revenue grew 12% year over year","category":"quantitative","value":12,"unit":"%"}]`

// extractClaims asks the model to extract claims from analysisText as a
// JSON array and parses the result. A model response that wraps the array
// in prose is tolerated by slicing from the first '[' to the last ']'.
func extractClaims(ctx context.Context, provider llm.Provider, model, analysisText string) ([]Claim, error) {
	prompt := strings.ReplaceAll(extractPromptTemplate, "{analysis}", analysisText)

	resp, err := provider.Complete(ctx, llm.Params{
		Model:    model,
		Messages: []llm.Message{llm.NewUserMessage(prompt)},
	})
	if err != nil {
		return nil, fmt.Errorf("verify: extract claims: provider: %w", err)
	}

	return parseClaimsJSON(resp.Message.Content)
}

func parseClaimsJSON(content string) ([]Claim, error) {
	start := strings.IndexByte(content, '[')
	end := strings.LastIndexByte(content, ']')
	if start < 0 || end < start {
		return nil, fmt.Errorf("verify: no JSON array found in claim-extraction response: %q", content)
	}

	var claims []Claim
	if err := json.Unmarshal([]byte(content[start:end+1]), &claims); err != nil {
		return nil, fmt.Errorf("verify: parse claims JSON: %w", err)
	}
	return claims, nil
}
