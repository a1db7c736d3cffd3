package gvision

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/status"

	"github.com/docufuse/docufuse/internal/engine"
)

type fakeAnnotator struct {
	resp    *visionpb.BatchAnnotateImagesResponse
	err     error
	lastReq *visionpb.BatchAnnotateImagesRequest
	closed  bool
}

func (f *fakeAnnotator) BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeAnnotator) Close() error {
	f.closed = true
	return nil
}

func annotatedResponse(text string, pageConf float32) *visionpb.BatchAnnotateImagesResponse {
	return &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{
			FullTextAnnotation: &visionpb.TextAnnotation{
				Text:  text,
				Pages: []*visionpb.Page{{Confidence: pageConf}},
			},
		}},
	}
}

func TestRecognizeRequestsDocumentTextDetection(t *testing.T) {
	fake := &fakeAnnotator{resp: annotatedResponse("invoice total", 0.85)}
	eng := &Engine{client: fake}

	res := eng.Recognize(context.Background(), engine.Input{Raw: []byte("png-bytes")})
	require.True(t, res.OK())
	assert.Equal(t, "invoice total", res.Text)
	assert.InDelta(t, 0.85, res.Confidence, 1e-6)

	require.NotNil(t, fake.lastReq)
	require.Len(t, fake.lastReq.GetRequests(), 1)
	req := fake.lastReq.GetRequests()[0]
	assert.Equal(t, []byte("png-bytes"), req.GetImage().GetContent())
	require.Len(t, req.GetFeatures(), 1)
	assert.Equal(t, visionpb.Feature_DOCUMENT_TEXT_DETECTION, req.GetFeatures()[0].GetType())
}

func TestRecognizeForwardsLanguageHints(t *testing.T) {
	fake := &fakeAnnotator{resp: annotatedResponse("text", 0.9)}
	eng := &Engine{client: fake}

	res := eng.Recognize(context.Background(), engine.Input{
		Raw:       []byte("img"),
		Languages: []string{"ja-JP", "en"},
	})
	require.True(t, res.OK())
	require.NotNil(t, fake.lastReq.GetRequests()[0].GetImageContext())
	assert.Equal(t, []string{"ja", "en"}, fake.lastReq.GetRequests()[0].GetImageContext().GetLanguageHints())
}

func TestRecognizeNoRawBytes(t *testing.T) {
	eng := &Engine{client: &fakeAnnotator{}}
	res := eng.Recognize(context.Background(), engine.Input{})
	require.False(t, res.OK())
	assert.Equal(t, engine.FailureProvider, res.Err.Kind)
}

func TestRecognizeTransportError(t *testing.T) {
	eng := &Engine{client: &fakeAnnotator{err: errors.New("rpc unavailable")}}
	res := eng.Recognize(context.Background(), engine.Input{Raw: []byte("img")})
	require.False(t, res.OK())
	assert.Equal(t, engine.FailureProvider, res.Err.Kind)
}

func TestRecognizeCanceledContext(t *testing.T) {
	eng := &Engine{client: &fakeAnnotator{err: context.Canceled}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := eng.Recognize(ctx, engine.Input{Raw: []byte("img")})
	require.False(t, res.OK())
	assert.Equal(t, engine.FailureCanceled, res.Err.Kind)
}

func TestRecognizePerImageError(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{
			Error: &status.Status{Message: "image too large"},
		}},
	}}
	eng := &Engine{client: fake}

	res := eng.Recognize(context.Background(), engine.Input{Raw: []byte("img")})
	require.False(t, res.OK())
	assert.Equal(t, engine.FailureProvider, res.Err.Kind)
	assert.Contains(t, res.Err.Err.Error(), "image too large")
}

func TestRecognizeEmptyResponse(t *testing.T) {
	eng := &Engine{client: &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{}}}
	res := eng.Recognize(context.Background(), engine.Input{Raw: []byte("img")})
	require.False(t, res.OK())
	assert.Equal(t, engine.FailureProvider, res.Err.Kind)
}

func TestRecognizeBlankAnnotation(t *testing.T) {
	eng := &Engine{client: &fakeAnnotator{resp: annotatedResponse("   ", 0.9)}}
	res := eng.Recognize(context.Background(), engine.Input{Raw: []byte("img")})
	require.True(t, res.OK())
	assert.Empty(t, res.Text)
	assert.Zero(t, res.Confidence)
}

func TestCloseReleasesClient(t *testing.T) {
	fake := &fakeAnnotator{}
	eng := &Engine{client: fake}
	require.NoError(t, eng.Close())
	assert.True(t, fake.closed)
}

func TestPageConfidenceAverages(t *testing.T) {
	annotation := &visionpb.TextAnnotation{
		Pages: []*visionpb.Page{
			{Confidence: 0.8},
			{Confidence: 0.6},
		},
	}
	assert.InDelta(t, 0.7, pageConfidence(annotation), 1e-6)
}

func TestPageConfidenceFallsBackToPrior(t *testing.T) {
	annotation := &visionpb.TextAnnotation{Pages: []*visionpb.Page{{}}}
	assert.InDelta(t, 0.9, pageConfidence(annotation), 1e-9)
}
