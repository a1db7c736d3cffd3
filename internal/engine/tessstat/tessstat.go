// Package tessstat implements the statistical recognition engine on top of
// Tesseract. It is the cheapest of the engines and the last resort in
// sequential mode, but in fusion mode its word count is the primary
// supplementary signal.
package tessstat

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/docufuse/docufuse/internal/engine"
)

// EngineID identifies the statistical engine in results and logs.
const EngineID = "statistical"

// Client is the subset of the gosseract client the engine drives. Tesseract
// clients are not safe for concurrent use, so the engine creates one per
// invocation through a factory instead of sharing a handle.
type Client interface {
	SetImageFromBytes(data []byte) error
	SetLanguage(langs ...string) error
	Text() (string, error)
	GetBoundingBoxes(level gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error)
	Close() error
}

// ClientFactory produces a fresh Tesseract client for one invocation.
type ClientFactory func() Client

// Config controls the statistical engine.
type Config struct {
	// Languages are the default traineddata names used when the input
	// carries no hints.
	Languages []string
	// Factory overrides client construction, mainly for tests.
	Factory ClientFactory
}

// DefaultConfig returns the statistical engine defaults.
func DefaultConfig() Config {
	return Config{Languages: []string{"jpn", "eng"}}
}

// Engine runs Tesseract over the normalized raster.
type Engine struct {
	cfg Config
}

// New creates the statistical engine.
func New(cfg Config) *Engine {
	if cfg.Factory == nil {
		cfg.Factory = func() Client { return gosseract.NewClient() }
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultConfig().Languages
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) ID() string { return EngineID }

// Capabilities: text plus an authoritative word count. Tesseract does emit
// boxes, but the structural engine owns that signal.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{ProvidesText: true, ProvidesWordCount: true}
}

// Recognize runs one Tesseract pass over the normalized raster.
func (e *Engine) Recognize(ctx context.Context, in engine.Input) engine.Result {
	if err := ctx.Err(); err != nil {
		return engine.Failure(EngineID, engine.FailureCanceled, err)
	}
	if in.Normalized == nil {
		return engine.Failure(EngineID, engine.FailureProvider,
			fmt.Errorf("no normalized raster"))
	}

	encoded, err := encodeGray(in.Normalized)
	if err != nil {
		return engine.Failure(EngineID, engine.FailureProvider,
			fmt.Errorf("encode raster: %w", err))
	}

	client := e.cfg.Factory()
	defer func() { _ = client.Close() }()

	langs := engine.TesseractLanguages(in.Languages)
	if len(langs) == 0 {
		langs = e.cfg.Languages
	}
	if err := client.SetLanguage(langs...); err != nil {
		return engine.Failure(EngineID, engine.FailureUnavailable,
			fmt.Errorf("set languages %v: %w", langs, err))
	}
	if err := client.SetImageFromBytes(encoded); err != nil {
		return engine.Failure(EngineID, engine.FailureProvider,
			fmt.Errorf("set image: %w", err))
	}

	text, err := client.Text()
	if err != nil {
		return engine.Failure(EngineID, engine.FailureProvider,
			fmt.Errorf("extract text: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return engine.Failure(EngineID, engine.FailureCanceled, err)
	}

	text = strings.TrimSpace(text)
	return engine.Result{
		EngineID:     EngineID,
		Text:         text,
		Confidence:   meanSymbolConfidence(client),
		WordCount:    len(strings.Fields(text)),
		HasWordCount: true,
	}
}

// meanSymbolConfidence averages per-symbol confidences, scaled from
// Tesseract's 0..100 range to 0..1. Falls back to a neutral 0.5 when the
// iterator yields nothing.
func meanSymbolConfidence(client Client) float64 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_SYMBOL)
	if err != nil || len(boxes) == 0 {
		return 0.5
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes)) / 100.0
}

func encodeGray(gray *image.Gray) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
