package structural

import "math"

// decodeGreedy decodes CTC logits of shape [1, T, C] (trailing singleton
// dims tolerated) with greedy argmax per timestep, then collapses repeats
// and blanks. Returns collapsed indices and per-index probabilities.
func decodeGreedy(logits []float32, shape []int64) ([]int, []float64) {
	dims := make([]int64, 0, len(shape))
	dims = append(dims, shape...)
	for len(dims) > 3 && dims[len(dims)-1] == 1 {
		dims = dims[:len(dims)-1]
	}
	if len(dims) < 3 {
		return nil, nil
	}
	t := int(dims[1])
	c := int(dims[2])
	if t <= 0 || c <= 0 || len(logits) < t*c {
		return nil, nil
	}

	indices := make([]int, t)
	probs := make([]float64, t)
	for step := range t {
		row := logits[step*c : (step+1)*c]
		idx, _ := argmax(row)
		indices[step] = idx
		probs[step] = probOfIndex(row, idx)
	}
	return collapse(indices, probs, 0)
}

// collapse removes repeated consecutive indices and blanks.
func collapse(indices []int, probs []float64, blank int) ([]int, []float64) {
	outIdx := make([]int, 0, len(indices))
	outProb := make([]float64, 0, len(probs))
	prev := -1
	for i, idx := range indices {
		if idx == blank {
			prev = idx
			continue
		}
		if idx == prev {
			continue
		}
		outIdx = append(outIdx, idx)
		outProb = append(outProb, probs[i])
		prev = idx
	}
	return outIdx, outProb
}

func argmax(v []float32) (int, float32) {
	if len(v) == 0 {
		return -1, 0
	}
	idx := 0
	maxVal := v[0]
	for i := 1; i < len(v); i++ {
		if v[i] > maxVal {
			maxVal = v[i]
			idx = i
		}
	}
	return idx, maxVal
}

// probOfIndex returns the probability of v[idx]. Outputs that already look
// like probabilities pass through; raw logits go through a stable softmax.
func probOfIndex(v []float32, idx int) float64 {
	if idx < 0 || idx >= len(v) {
		return 0
	}
	var sum float64
	minV, maxV := v[0], v[0]
	for _, x := range v {
		sum += float64(x)
		if x < minV {
			minV = x
		}
		if x > maxV {
			maxV = x
		}
	}
	if sum > 0.99 && sum < 1.01 && minV >= 0 && maxV <= 1 {
		return float64(v[idx])
	}

	var denom float64
	for _, x := range v {
		denom += math.Exp(float64(x - maxV))
	}
	if denom == 0 {
		return 0
	}
	return math.Exp(float64(v[idx]-maxV)) / denom
}
