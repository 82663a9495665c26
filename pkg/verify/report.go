package verify

import "fmt"

// buildReport links every claim against stageOutputs and assembles the
// final VerificationReport, including an annotated copy of analysisText
// with one bracketed footnote marker appended per claim and the
// corresponding footnote text.
func buildReport(analysisText string, claims []Claim, stageOutputs map[string]string) VerificationReport {
	r := VerificationReport{AnalysisText: analysisText}

	var confidenceSum float64
	var footnotes []string
	annotated := analysisText

	for i, c := range claims {
		linked := linkClaim(c, stageOutputs)
		r.Claims = append(r.Claims, linked)

		switch linked.Status {
		case StatusVerified:
			r.VerifiedCount++
		case StatusDisputed:
			r.DisputedCount++
		case StatusUnverified:
			r.UnverifiedCount++
		case StatusError:
			r.ErrorCount++
		}
		confidenceSum += linked.Confidence

		n := i + 1
		annotated += fmt.Sprintf(" [%d]", n)
		footnotes = append(footnotes, fmt.Sprintf("[%d] %s — %s (confidence %.2f, sources: %v)",
			n, linked.Text, linked.Status, linked.Confidence, linked.Sources))
	}

	r.AnnotatedText = annotated
	r.Footnotes = footnotes
	if len(claims) > 0 {
		r.OverallConfidence = confidenceSum / float64(len(claims))
	}
	return r
}
