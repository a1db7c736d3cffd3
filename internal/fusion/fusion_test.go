package fusion

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docufuse/docufuse/internal/engine"
	"github.com/docufuse/docufuse/internal/geom"
	"github.com/docufuse/docufuse/internal/layout"
)

func primaryResult() engine.Result {
	return engine.Result{
		EngineID:   "vision_llm",
		Text:       "invoice total due friday",
		Confidence: 0.9,
		Tags:       []string{"invoice", "finance"},
	}
}

func structuralResult(words ...string) engine.Result {
	boxes := make([]engine.WordBox, len(words))
	for i, w := range words {
		boxes[i] = engine.WordBox{Word: w, Box: geom.Box{X: i * 50, Y: 10, W: 40, H: 20}}
	}
	text := ""
	for i, w := range words {
		if i > 0 {
			text += " "
		}
		text += w
	}
	return engine.Result{
		EngineID:   "structural",
		Text:       text,
		Confidence: 0.75,
		WordBoxes:  boxes,
	}
}

func statisticalResult(count int) engine.Result {
	return engine.Result{
		EngineID:     "statistical",
		Text:         "invoice total due friday",
		Confidence:   0.6,
		WordCount:    count,
		HasWordCount: true,
	}
}

func failed(id string) engine.Result {
	return engine.Failure(id, engine.FailureProvider, errors.New("down"))
}

func TestAuthorityGoesToPrimary(t *testing.T) {
	res := Fuse([]engine.Result{
		primaryResult(),
		structuralResult("invoice", "total", "due", "friday"),
		statisticalResult(4),
	}, nil, DefaultConfig())

	assert.Equal(t, "invoice total due friday", res.Text)
	assert.Equal(t, []string{"invoice", "finance"}, res.Tags)
	assert.InDelta(t, 0.9, res.OverallConfidence, 1e-9)
	assert.Equal(t, MethodFusion, res.Method, "supplementary fields landed")
	assert.Len(t, res.WordBoxes, 4)
	assert.Equal(t, 4, res.WordCount)
}

func TestAuthorityFallsToStructural(t *testing.T) {
	res := Fuse([]engine.Result{
		failed("vision_llm"),
		structuralResult("total", "due"),
		failed("statistical"),
	}, nil, DefaultConfig())

	assert.Equal(t, "total due", res.Text)
	assert.Equal(t, "structural", res.Method, "only the authority contributed")
	assert.InDelta(t, 0.75, res.OverallConfidence, 1e-9)
	assert.Len(t, res.WordBoxes, 2)
	assert.Equal(t, 2, res.WordCount)
	assert.Empty(t, res.Tags)
}

func TestGracefulDegradationToStatistical(t *testing.T) {
	res := Fuse([]engine.Result{
		failed("vision_llm"),
		failed("structural"),
		statisticalResult(4),
	}, nil, DefaultConfig())

	assert.Equal(t, "statistical", res.Method)
	assert.NotEmpty(t, res.Text)
	assert.Empty(t, res.WordBoxes)
	assert.Equal(t, 4, res.WordCount)
}

func TestTotalFailure(t *testing.T) {
	res := Fuse([]engine.Result{
		failed("vision_llm"),
		failed("structural"),
		failed("statistical"),
	}, layout.Map{}, DefaultConfig())

	assert.Equal(t, MethodNone, res.Method)
	assert.Empty(t, res.Text)
	assert.Zero(t, res.OverallConfidence)
	assert.Zero(t, res.WordCount)
	require.Len(t, res.Engines, 3)
	for _, rep := range res.Engines {
		assert.Equal(t, "provider_error", rep.Status)
	}
}

func TestDisagreementPenalty(t *testing.T) {
	// Authority tokenizes to 4 words; statistical claims 10, a >50%
	// divergence, so 0.9 is down-weighted to 0.72.
	res := Fuse([]engine.Result{
		primaryResult(),
		structuralResult("invoice", "total", "due", "friday"),
		statisticalResult(10),
	}, nil, DefaultConfig())

	assert.InDelta(t, 0.72, res.OverallConfidence, 1e-9)
}

func TestNoPenaltyWithinRatio(t *testing.T) {
	res := Fuse([]engine.Result{
		primaryResult(),
		structuralResult("invoice", "total", "due", "friday"),
		statisticalResult(5),
	}, nil, DefaultConfig())

	assert.InDelta(t, 0.9, res.OverallConfidence, 1e-9)
}

func TestPenaltyFromStructuralBoxCount(t *testing.T) {
	// No statistical count; structural's 12 boxes diverge from 4 tokens.
	res := Fuse([]engine.Result{
		primaryResult(),
		structuralResult("a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"),
		failed("statistical"),
	}, nil, DefaultConfig())

	assert.InDelta(t, 0.72, res.OverallConfidence, 1e-9)
}

func TestWordCountDerivedFromAuthorityText(t *testing.T) {
	res := Fuse([]engine.Result{
		primaryResult(),
		failed("structural"),
		failed("statistical"),
	}, nil, DefaultConfig())

	assert.Equal(t, 4, res.WordCount)
	assert.Equal(t, "vision_llm", res.Method)
}

func TestLayoutCarriedThrough(t *testing.T) {
	lay := layout.Map{{Kind: layout.TextBlock, Box: geom.Box{X: 0, Y: 0, W: 200, H: 60}, Confidence: 0.8}}
	res := Fuse([]engine.Result{primaryResult()}, lay, DefaultConfig())
	require.Len(t, res.Layout, 1)
	assert.Equal(t, layout.TextBlock, res.Layout[0].Kind)
}

func TestEmptyLayoutStaysNil(t *testing.T) {
	res := Fuse([]engine.Result{primaryResult()}, layout.Map{}, DefaultConfig())
	assert.Nil(t, res.Layout)
}

func TestResultSurvivesJSONRoundTrip(t *testing.T) {
	res := Fuse([]engine.Result{
		primaryResult(),
		structuralResult("invoice", "total", "due", "friday"),
		statisticalResult(4),
	}, layout.Map{}, DefaultConfig())

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var back UnifiedResult
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, res, back)
}

func TestWordBoxesFirstProviderWins(t *testing.T) {
	first := structuralResult("alpha", "beta")
	second := structuralResult("gamma")
	second.EngineID = "secondary"

	res := Fuse([]engine.Result{failed("vision_llm"), first, second}, nil, DefaultConfig())
	require.Len(t, res.WordBoxes, 2)
	assert.Equal(t, "alpha", res.WordBoxes[0].Word)
	assert.Equal(t, "structural", res.Method, "authority's own boxes are not supplementation")
}

func TestEngineReports(t *testing.T) {
	res := Fuse([]engine.Result{
		primaryResult(),
		failed("structural"),
	}, nil, DefaultConfig())

	require.Len(t, res.Engines, 2)
	assert.Equal(t, EngineReport{EngineID: "vision_llm", Status: "ok", Confidence: 0.9}, res.Engines[0])
	assert.Equal(t, "provider_error", res.Engines[1].Status)
}
