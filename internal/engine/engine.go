// Package engine defines the uniform contract every recognition engine
// implements. Engines differ wildly in latency, cost, and capability, so
// the contract keeps failures inside the result value: Recognize never
// raises past this boundary, letting the orchestrator proceed with
// whatever partial results it collected.
package engine

import (
	"context"
	"fmt"
	"image"

	"github.com/docufuse/docufuse/internal/geom"
)

// FailureKind classifies why an engine produced no usable output.
type FailureKind int

const (
	FailureProvider FailureKind = iota // the backing provider or model errored
	FailureTimeout                     // the per-engine deadline expired
	FailureCanceled                    // the caller canceled the invocation
	FailureUnavailable                 // the engine is not configured/installed
)

// String returns the failure kind label used in logs and serialized results.
func (k FailureKind) String() string {
	switch k {
	case FailureProvider:
		return "provider_error"
	case FailureTimeout:
		return "timeout"
	case FailureCanceled:
		return "canceled"
	case FailureUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error records a recognition failure as data attached to a Result.
type Error struct {
	Engine string
	Kind   FailureKind
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine %s: %s: %v", e.Engine, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Capabilities declares which optional result fields an engine populates.
// The orchestrator and fusion check these descriptors instead of probing
// results at runtime.
type Capabilities struct {
	ProvidesText      bool
	ProvidesTags      bool
	ProvidesWordBoxes bool
	ProvidesWordCount bool
}

// Input carries both the original bytes and the normalized raster so each
// engine can pick the representation it needs. Vision-language engines want
// the raw image with visual context intact; local engines consume the
// binarized raster.
type Input struct {
	Raw        []byte
	MIME       string
	Normalized *image.Gray
	Languages  []string
}

// WordBox pairs a recognized word with its bounding box.
type WordBox struct {
	Word string   `json:"word"`
	Box  geom.Box `json:"box"`
}

// Result is one engine's output for one invocation. It is created once and
// never mutated. A failed invocation carries Err with empty text and zero
// confidence.
type Result struct {
	EngineID     string
	Text         string
	Confidence   float64
	WordBoxes    []WordBox
	WordCount    int
	HasWordCount bool
	Tags         []string
	Err          *Error
}

// OK reports whether the engine produced a usable result.
func (r Result) OK() bool { return r.Err == nil }

// Failure builds the uniform failed result for an engine.
func Failure(engineID string, kind FailureKind, err error) Result {
	return Result{
		EngineID: engineID,
		Err:      &Error{Engine: engineID, Kind: kind, Err: err},
	}
}

// Engine is one pluggable recognition strategy. Implementations must be
// safe for concurrent use by multiple in-flight invocations; any reusable
// client or model handle they hold is read-only from the orchestrator's
// perspective.
type Engine interface {
	ID() string
	Capabilities() Capabilities
	Recognize(ctx context.Context, in Input) Result
}
