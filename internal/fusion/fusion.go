// Package fusion merges the engines' partial, overlapping outputs into one
// authoritative result with provenance. The merge is deterministic: authority
// is fixed by engine priority, never by comparing raw confidence scores
// across engines of different kinds.
package fusion

import (
	"strings"

	"github.com/docufuse/docufuse/internal/engine"
	"github.com/docufuse/docufuse/internal/layout"
)

// Method values outside the per-engine ids.
const (
	// MethodFusion marks a result where engines beyond the authority
	// contributed fields.
	MethodFusion = "fusion"
	// MethodNone marks total failure: every engine errored or timed out.
	MethodNone = "none"
)

// EngineReport is the per-engine provenance entry on a unified result.
type EngineReport struct {
	EngineID   string  `json:"engine_id"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
}

// UnifiedResult is the terminal artifact of one recognition invocation.
// Immutable once constructed; the caller owns persistence.
type UnifiedResult struct {
	Text              string           `json:"text"`
	OverallConfidence float64          `json:"overall_confidence"`
	Method            string           `json:"method"`
	Layout            layout.Map       `json:"layout,omitempty"`
	WordBoxes         []engine.WordBox `json:"word_boxes,omitempty"`
	WordCount         int              `json:"word_count"`
	Tags              []string         `json:"tags,omitempty"`
	CreationDate      string           `json:"creation_date,omitempty"`
	ModificationDate  string           `json:"modification_date,omitempty"`
	Engines           []EngineReport   `json:"engines"`
}

// Config tunes the disagreement penalty. The 50%/0.8 defaults are carried
// over from the original deployment; they are empirical, not derived.
type Config struct {
	// DisagreementRatio is the relative word-count divergence beyond which
	// supplementary engines are considered to disagree with the authority.
	DisagreementRatio float64
	// Penalty multiplies the overall confidence on disagreement. Must be in
	// (0,1]; confidence is never raised.
	Penalty float64
}

// DefaultConfig returns the fusion defaults.
func DefaultConfig() Config {
	return Config{DisagreementRatio: 0.5, Penalty: 0.8}
}

// Fuse merges engine results, given in priority order, into a UnifiedResult.
//
// Authority rule: text and tags come from the first succeeded engine in
// priority order. Supplementation rule: word boxes come from whichever
// succeeded engine reports them; the word count comes from an engine that
// counted words itself, else from tokenizing the authoritative text.
// Confidence rule: the authority's confidence, down-weighted once if a
// succeeded supplementary engine's word count diverges beyond the configured
// ratio. Total failure yields an empty result with method "none".
func Fuse(results []engine.Result, lay layout.Map, cfg Config) UnifiedResult {
	out := UnifiedResult{
		Method:  MethodNone,
		Engines: reports(results),
	}
	// A nil Layout and an empty one mean the same thing; keep it nil so the
	// result survives a JSON round trip unchanged.
	if len(lay) > 0 {
		out.Layout = lay
	}

	authority := -1
	for i, r := range results {
		if r.OK() {
			authority = i
			break
		}
	}
	if authority == -1 {
		return out
	}

	auth := results[authority]
	out.Text = auth.Text
	out.Tags = auth.Tags
	out.OverallConfidence = auth.Confidence
	out.Method = auth.EngineID

	supplemented := false
	for i, r := range results {
		if !r.OK() || len(r.WordBoxes) == 0 {
			continue
		}
		out.WordBoxes = r.WordBoxes
		if i != authority {
			supplemented = true
		}
		break
	}

	authTokens := len(strings.Fields(auth.Text))
	out.WordCount = authTokens
	for i, r := range results {
		if !r.OK() || !r.HasWordCount {
			continue
		}
		out.WordCount = r.WordCount
		if i != authority {
			supplemented = true
		}
		break
	}

	if supplemented {
		out.Method = MethodFusion
	}

	if disagrees(results, authority, authTokens, cfg.DisagreementRatio) {
		out.OverallConfidence *= cfg.Penalty
	}
	return out
}

// disagrees reports whether any succeeded supplementary engine's implied
// word count diverges from the authority's token count beyond the ratio.
// The structural engine's implied count is its box count; the statistical
// engine's is its reported count.
func disagrees(results []engine.Result, authority, authTokens int, ratio float64) bool {
	if authTokens == 0 || ratio <= 0 {
		return false
	}
	for i, r := range results {
		if i == authority || !r.OK() {
			continue
		}
		implied := -1
		switch {
		case r.HasWordCount:
			implied = r.WordCount
		case len(r.WordBoxes) > 0:
			implied = len(r.WordBoxes)
		}
		if implied < 0 {
			continue
		}
		diff := float64(implied - authTokens)
		if diff < 0 {
			diff = -diff
		}
		if diff/float64(authTokens) > ratio {
			return true
		}
	}
	return false
}

func reports(results []engine.Result) []EngineReport {
	out := make([]EngineReport, 0, len(results))
	for _, r := range results {
		status := "ok"
		if !r.OK() {
			status = r.Err.Kind.String()
		}
		out = append(out, EngineReport{
			EngineID:   r.EngineID,
			Status:     status,
			Confidence: r.Confidence,
		})
	}
	return out
}
