// Package structural implements the word-box recognition engine: ONNX CTC
// recognition over heuristically segmented word regions of the normalized
// raster. It reports per-word bounding boxes and an aggregate confidence
// (mean of per-word confidences) but no tags.
package structural

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/docufuse/docufuse/internal/engine"
)

// EngineID identifies the structural engine in results and provenance.
const EngineID = "structural"

// Config holds model settings for the structural engine.
type Config struct {
	ModelPath   string // ONNX recognition model (CTC head, NCHW input)
	DictPath    string // character dictionary, one entry per line
	ImageHeight int    // model input height
	NumThreads  int    // intra-op threads (0 = runtime default)
}

// DefaultConfig returns default model settings. Paths must be supplied by
// the caller.
func DefaultConfig() Config {
	return Config{ImageHeight: 48}
}

// Engine holds a reusable ONNX session and its character set. The session
// outlives individual invocations and is guarded for concurrent use.
type Engine struct {
	cfg     Config
	charset []rune

	mu      sync.RWMutex
	session *recSession
}

// New loads the dictionary and creates the ONNX session.
func New(cfg Config) (*Engine, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("structural: model path is required")
	}
	if cfg.DictPath == "" {
		return nil, errors.New("structural: dictionary path is required")
	}
	if cfg.ImageHeight <= 0 {
		cfg.ImageHeight = DefaultConfig().ImageHeight
	}

	charset, err := loadDictionary(cfg.DictPath)
	if err != nil {
		return nil, fmt.Errorf("load dictionary: %w", err)
	}

	session, err := newRecSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("init recognition session: %w", err)
	}

	return &Engine{cfg: cfg, charset: charset, session: session}, nil
}

func (e *Engine) ID() string { return EngineID }

func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{ProvidesText: true, ProvidesWordBoxes: true}
}

// Recognize segments the normalized raster into word regions and runs CTC
// recognition over each. Text is the concatenation of decoded words in
// segment order.
func (e *Engine) Recognize(ctx context.Context, in engine.Input) engine.Result {
	if in.Normalized == nil {
		return engine.Failure(EngineID, engine.FailureProvider, errors.New("no normalized raster"))
	}

	e.mu.RLock()
	session := e.session
	e.mu.RUnlock()
	if session == nil {
		return engine.Failure(EngineID, engine.FailureUnavailable, errors.New("session closed"))
	}

	regions := segmentWords(in.Normalized)

	words := make([]engine.WordBox, 0, len(regions))
	confidences := make([]float64, 0, len(regions))
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return engine.Failure(EngineID, classifyCtx(err), err)
		}

		text, confidence, err := e.recognizeRegion(session, in.Normalized, region)
		if err != nil {
			return engine.Failure(EngineID, engine.FailureProvider, err)
		}
		if text == "" {
			continue
		}
		words = append(words, engine.WordBox{Word: text, Box: region})
		confidences = append(confidences, confidence)
	}

	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Word
	}

	return engine.Result{
		EngineID:   EngineID,
		Text:       strings.Join(parts, " "),
		Confidence: mean(confidences),
		WordBoxes:  words,
	}
}

// Close releases the ONNX session. Further Recognize calls report the
// engine as unavailable.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.destroy()
	e.session = nil
	return err
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func classifyCtx(err error) engine.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return engine.FailureTimeout
	}
	return engine.FailureCanceled
}
