package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lonestarx1/gogrid/pkg/llm"
	"github.com/lonestarx1/gogrid/pkg/llm/mock"
)

func TestParseClaimsJSONToleratesSurroundingProse(t *testing.T) {
	content := "Here are the claims:\n" +
		`[{"id":"c1","text":"revenue grew 12%","category":"quantitative","value":12,"unit":"%"}]` +
		"\nLet me know if you need more."
	claims, err := parseClaimsJSON(content)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "c1", claims[0].ID)
	require.NotNil(t, claims[0].Value)
	assert.Equal(t, 12.0, *claims[0].Value)
}

func TestParseClaimsJSONNoArrayIsError(t *testing.T) {
	_, err := parseClaimsJSON("I could not find any claims.")
	assert.Error(t, err)
}

func TestVerifierVerifyExtractsAndLinksClaims(t *testing.T) {
	provider := mock.New(mock.WithResponses(&llm.Response{
		Message: llm.NewAssistantMessage(`[{"id":"c1","text":"revenue grew 12%","category":"quantitative"}]`),
	}))
	v := New(provider, "mock-model")

	report, err := v.Verify(context.Background(), "Revenue grew 12% this year.", map[string]string{
		"gather": "Filings show revenue grew 12% year over year.",
	})
	require.NoError(t, err)

	r, ok := report.(*VerificationReport)
	require.True(t, ok)
	require.Len(t, r.Claims, 1)
	assert.Equal(t, StatusVerified, r.Claims[0].Status)
}

func TestVerifierVerifyPropagatesProviderError(t *testing.T) {
	provider := mock.New(mock.WithError(errors.New("rate limited")))
	v := New(provider, "mock-model")

	_, err := v.Verify(context.Background(), "anything", nil)
	require.Error(t, err)
}
