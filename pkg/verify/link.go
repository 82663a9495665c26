package verify

import (
	"sort"
	"strings"
)

// verifiedThreshold and disputedFloor bound the confidence score produced
// by linkClaim: at or above verifiedThreshold the claim is verified, from
// disputedFloor up to verifiedThreshold it's disputed, and below
// disputedFloor (including no overlap at all) it's unverified.
const (
	verifiedThreshold = 0.6
	disputedFloor     = 0.25
)

// linkClaim searches every stage output for evidence supporting c: an
// exact case-insensitive substring match scores 1.0 outright; otherwise a
// token-overlap (Jaccard-style) score against each stage's text is taken,
// and the best-scoring stage wins. Linking never calls the model — it is
// deterministic and best-effort, so a claim with no supporting text at all
// is unverified rather than an error.
func linkClaim(c Claim, stageOutputs map[string]string) LinkedClaim {
	claimTokens := tokenize(c.Text)
	if len(claimTokens) == 0 {
		return LinkedClaim{Claim: c, Status: StatusError, Confidence: 0}
	}

	lowerText := strings.ToLower(c.Text)

	var bestScore float64
	var sources []string

	names := make([]string, 0, len(stageOutputs))
	for name := range stageOutputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		out := stageOutputs[name]
		if out == "" {
			continue
		}
		score := 0.0
		if strings.Contains(strings.ToLower(out), lowerText) {
			score = 1.0
		} else {
			score = tokenOverlap(claimTokens, tokenize(out))
		}
		if score > bestScore {
			bestScore = score
		}
		if score >= disputedFloor {
			sources = append(sources, name)
		}
	}

	switch {
	case bestScore >= verifiedThreshold:
		return LinkedClaim{Claim: c, Status: StatusVerified, Confidence: bestScore, Sources: sources}
	case bestScore >= disputedFloor:
		return LinkedClaim{Claim: c, Status: StatusDisputed, Confidence: bestScore, Sources: sources}
	default:
		return LinkedClaim{Claim: c, Status: StatusUnverified, Confidence: bestScore}
	}
}

func tokenize(s string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			set[f] = true
		}
	}
	return set
}

// tokenOverlap returns the Jaccard similarity |a∩b| / |a∪b| between two
// token sets, 0 if either is empty.
func tokenOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var intersection int
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
