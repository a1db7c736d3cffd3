package structural

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollapseRemovesBlanksAndRepeats(t *testing.T) {
	indices := []int{0, 1, 1, 0, 2, 2, 2, 0, 1}
	probs := []float64{0.1, 0.9, 0.8, 0.1, 0.7, 0.6, 0.5, 0.1, 0.95}

	outIdx, outProb := collapse(indices, probs, 0)
	assert.Equal(t, []int{1, 2, 1}, outIdx)
	assert.Equal(t, []float64{0.9, 0.7, 0.95}, outProb)
}

func TestCollapseBlankSeparatesRepeats(t *testing.T) {
	outIdx, _ := collapse([]int{3, 0, 3}, []float64{0.9, 0.1, 0.8}, 0)
	assert.Equal(t, []int{3, 3}, outIdx)
}

func TestArgmax(t *testing.T) {
	idx, val := argmax([]float32{0.1, 0.7, 0.2})
	assert.Equal(t, 1, idx)
	assert.InDelta(t, 0.7, float64(val), 1e-6)

	idx, _ = argmax(nil)
	assert.Equal(t, -1, idx)
}

func TestProbOfIndexProbabilityPassthrough(t *testing.T) {
	// Row already sums to ~1 with values in [0,1]; no softmax applied.
	p := probOfIndex([]float32{0.2, 0.5, 0.3}, 1)
	assert.InDelta(t, 0.5, p, 1e-6)
}

func TestProbOfIndexSoftmaxOnLogits(t *testing.T) {
	p := probOfIndex([]float32{1, 3, 1}, 1)
	assert.Greater(t, p, 0.5)
	assert.Less(t, p, 1.0)
}

func TestDecodeGreedy(t *testing.T) {
	// T=4, C=3 probability rows: blank, class2, class2, class1.
	logits := []float32{
		0.8, 0.1, 0.1,
		0.1, 0.1, 0.8,
		0.1, 0.1, 0.8,
		0.1, 0.8, 0.1,
	}
	indices, probs := decodeGreedy(logits, []int64{1, 4, 3})
	assert.Equal(t, []int{2, 1}, indices)
	assert.Len(t, probs, 2)
	assert.InDelta(t, 0.8, probs[0], 1e-6)
}

func TestDecodeGreedyBadShape(t *testing.T) {
	indices, probs := decodeGreedy([]float32{0.5}, []int64{1})
	assert.Nil(t, indices)
	assert.Nil(t, probs)
}
