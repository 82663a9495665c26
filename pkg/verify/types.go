// Package verify extracts checkable claims from a completed analysis,
// links each one to the stage outputs that support or dispute it, and
// assembles a verification report. It is invoked by pkg/scheduler only for
// verify-type stages; failures anywhere in this package are swallowed by
// the caller rather than failing the owning stage.
package verify

// ClaimStatus is the outcome of linking a claim against stage-output
// evidence.
type ClaimStatus string

const (
	StatusVerified   ClaimStatus = "verified"
	StatusDisputed   ClaimStatus = "disputed"
	StatusUnverified ClaimStatus = "unverified"
	StatusError      ClaimStatus = "error"
)

// Claim is one discrete, checkable assertion extracted from the analysis
// text.
type Claim struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Category string   `json:"category"`
	Value    *float64 `json:"value,omitempty"`
	Unit     string   `json:"unit,omitempty"`
}

// LinkedClaim is a Claim after the deterministic linking pass.
type LinkedClaim struct {
	Claim
	Status     ClaimStatus
	Confidence float64
	Sources    []string
}

// VerificationReport is the final artifact produced for one verify stage.
type VerificationReport struct {
	Claims            []LinkedClaim
	VerifiedCount     int
	DisputedCount     int
	UnverifiedCount   int
	ErrorCount        int
	OverallConfidence float64
	AnalysisText      string
	AnnotatedText     string
	Footnotes         []string
}
