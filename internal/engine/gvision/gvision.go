// Package gvision implements an alternate primary engine backed by Google
// Cloud Vision document text detection. It produces text and confidence
// but no tags; the capability descriptor makes that visible to fusion.
package gvision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/docufuse/docufuse/internal/engine"
)

// EngineID identifies the Cloud Vision engine in results and provenance.
const EngineID = "google_vision"

// Config holds Cloud Vision credential settings. With both fields empty the
// client falls back to application default credentials.
type Config struct {
	CredentialsFile string
	CredentialsJSON string
}

// ConfigFromEnv reads credentials the way the rest of the Google tooling
// does: inline JSON first, then a credentials file path.
func ConfigFromEnv() Config {
	return Config{
		CredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	}
}

// annotator is the slice of ImageAnnotatorClient the engine calls. Tests
// substitute a fake; production always holds the real client.
type annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// Engine wraps a reusable ImageAnnotatorClient, safe for concurrent use.
type Engine struct {
	client annotator
}

// New constructs the engine, creating the API client eagerly so credential
// problems surface at assembly time rather than mid-pipeline.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Engine{client: client}, nil
}

func (e *Engine) ID() string { return EngineID }

func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{ProvidesText: true}
}

// Recognize runs document text detection over the raw image bytes.
func (e *Engine) Recognize(ctx context.Context, in engine.Input) engine.Result {
	if len(in.Raw) == 0 {
		return engine.Failure(EngineID, engine.FailureProvider, errors.New("no raw image bytes"))
	}

	req := &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: in.Raw},
		Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
	}
	if hints := engine.CanonicalizeHints(in.Languages); len(hints) > 0 {
		req.ImageContext = &visionpb.ImageContext{LanguageHints: hints}
	}

	resp, err := e.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return engine.Failure(EngineID, classifyErr(ctx, err), err)
	}
	if len(resp.GetResponses()) == 0 {
		return engine.Failure(EngineID, engine.FailureProvider, errors.New("empty annotation response"))
	}
	annotated := resp.GetResponses()[0]
	if apiErr := annotated.GetError(); apiErr != nil {
		return engine.Failure(EngineID, engine.FailureProvider, fmt.Errorf("vision api: %s", apiErr.GetMessage()))
	}

	annotation := annotated.GetFullTextAnnotation()
	if annotation == nil || strings.TrimSpace(annotation.GetText()) == "" {
		return engine.Result{EngineID: EngineID}
	}

	return engine.Result{
		EngineID:   EngineID,
		Text:       annotation.GetText(),
		Confidence: pageConfidence(annotation),
	}
}

// Close releases the underlying API client.
func (e *Engine) Close() error { return e.client.Close() }

// pageConfidence averages per-page confidences; annotations that omit them
// fall back to the deployment's prior for successful detections.
func pageConfidence(annotation *visionpb.TextAnnotation) float64 {
	var sum float64
	var count int
	for _, p := range annotation.GetPages() {
		if p.GetConfidence() > 0 {
			sum += float64(p.GetConfidence())
			count++
		}
	}
	if count == 0 {
		return 0.9
	}
	return sum / float64(count)
}

func classifyErr(ctx context.Context, err error) engine.FailureKind {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return engine.FailureCanceled
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return engine.FailureTimeout
	default:
		return engine.FailureProvider
	}
}
