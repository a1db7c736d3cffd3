package structural

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	onnxrt "github.com/yalue/onnxruntime_go"

	"github.com/docufuse/docufuse/internal/geom"
)

// recSession wraps the ONNX runtime session for the recognition model.
type recSession struct {
	session    *onnxrt.DynamicAdvancedSession
	inputName  string
	outputName string
}

// newRecSession initializes the ONNX environment once and creates a dynamic
// session with the model's own input/output names.
func newRecSession(cfg Config) (*recSession, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model not found: %s", cfg.ModelPath)
	}

	if !onnxrt.IsInitialized() {
		if err := onnxrt.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("model has no inputs or outputs")
	}

	options, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	if cfg.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("set thread count: %w", err)
		}
	}

	session, err := onnxrt.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, options)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &recSession{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
	}, nil
}

func (s *recSession) destroy() error {
	if s.session == nil {
		return nil
	}
	return s.session.Destroy()
}

// recognizeRegion crops one word region, scales it to the model height, and
// decodes the CTC output into text with a mean per-character confidence.
func (e *Engine) recognizeRegion(session *recSession, gray *image.Gray, box geom.Box) (string, float64, error) {
	patch := cropRegion(gray, box)
	tensorData, width, height := regionTensor(patch, e.cfg.ImageHeight)
	if width == 0 {
		return "", 0, nil
	}

	input, err := onnxrt.NewTensor(onnxrt.NewShape(1, 3, int64(height), int64(width)), tensorData)
	if err != nil {
		return "", 0, fmt.Errorf("create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxrt.Value{nil}
	if err := session.session.Run([]onnxrt.Value{input}, outputs); err != nil {
		return "", 0, fmt.Errorf("run model: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				_ = o.Destroy()
			}
		}
	}()

	out, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return "", 0, errors.New("unexpected model output type")
	}

	indices, probs := decodeGreedy(out.GetData(), out.GetShape())
	return e.indicesToText(indices, probs)
}

// cropRegion extracts the region into a fresh gray image with origin (0,0).
func cropRegion(gray *image.Gray, box geom.Box) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, box.W, box.H))
	for y := range box.H {
		for x := range box.W {
			out.Pix[y*out.Stride+x] = gray.Pix[(box.Y+y)*gray.Stride+box.X+x]
		}
	}
	return out
}

// regionTensor resizes the patch to the model height preserving aspect
// ratio and replicates the gray channel into NCHW float32 data scaled to
// [0,1].
func regionTensor(patch *image.Gray, targetH int) ([]float32, int, int) {
	b := patch.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, 0, 0
	}
	targetW := b.Dx() * targetH / b.Dy()
	if targetW < 1 {
		targetW = 1
	}

	resized := imaging.Resize(patch, targetW, targetH, imaging.Lanczos)
	data := make([]float32, 3*targetH*targetW)
	plane := targetH * targetW
	for y := range targetH {
		for x := range targetW {
			i := resized.PixOffset(x, y)
			v := float32(resized.Pix[i]) / 255.0
			idx := y*targetW + x
			data[idx] = v
			data[plane+idx] = v
			data[2*plane+idx] = v
		}
	}
	return data, targetW, targetH
}

// indicesToText maps collapsed CTC indices onto the character set. Index 0
// is the CTC blank; dictionary entries start at index 1.
func (e *Engine) indicesToText(indices []int, probs []float64) (string, float64, error) {
	runes := make([]rune, 0, len(indices))
	var sum float64
	var count int
	for i, idx := range indices {
		if idx <= 0 || idx > len(e.charset) {
			continue
		}
		runes = append(runes, e.charset[idx-1])
		if i < len(probs) {
			sum += probs[i]
			count++
		}
	}
	if len(runes) == 0 {
		return "", 0, nil
	}
	confidence := 0.0
	if count > 0 {
		confidence = sum / float64(count)
	}
	return string(runes), confidence, nil
}

// loadDictionary reads the character set, one entry per line.
func loadDictionary(path string) ([]rune, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var charset []rune
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		charset = append(charset, []rune(line)[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(charset) == 0 {
		return nil, errors.New("empty dictionary")
	}
	return charset, nil
}
