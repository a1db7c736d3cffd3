package tessstat

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docufuse/docufuse/internal/engine"
)

type fakeClient struct {
	text      string
	textErr   error
	langErr   error
	imageErr  error
	boxes     []gosseract.BoundingBox
	boxesErr  error
	languages []string
	imageSet  bool
	closed    bool
}

func (f *fakeClient) SetImageFromBytes(data []byte) error {
	f.imageSet = len(data) > 0
	return f.imageErr
}

func (f *fakeClient) SetLanguage(langs ...string) error {
	f.languages = langs
	return f.langErr
}

func (f *fakeClient) Text() (string, error) { return f.text, f.textErr }

func (f *fakeClient) GetBoundingBoxes(gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error) {
	return f.boxes, f.boxesErr
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func newEngine(fake *fakeClient) *Engine {
	return New(Config{Factory: func() Client { return fake }})
}

func whiteRaster() *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range gray.Pix {
		gray.Pix[i] = 255
	}
	return gray
}

func TestRecognize(t *testing.T) {
	fake := &fakeClient{
		text: "  hello fusion world \n",
		boxes: []gosseract.BoundingBox{
			{Confidence: 90},
			{Confidence: 70},
		},
	}
	eng := newEngine(fake)

	res := eng.Recognize(context.Background(), engine.Input{Normalized: whiteRaster()})
	require.True(t, res.OK())
	assert.Equal(t, EngineID, res.EngineID)
	assert.Equal(t, "hello fusion world", res.Text)
	assert.Equal(t, 3, res.WordCount)
	assert.True(t, res.HasWordCount)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.True(t, fake.imageSet)
	assert.True(t, fake.closed)
}

func TestRecognizeLanguageHints(t *testing.T) {
	fake := &fakeClient{text: "x"}
	eng := newEngine(fake)

	eng.Recognize(context.Background(), engine.Input{
		Normalized: whiteRaster(),
		Languages:  []string{"ja-JP", "en"},
	})
	assert.Equal(t, []string{"jpn", "eng"}, fake.languages)
}

func TestRecognizeDefaultLanguages(t *testing.T) {
	fake := &fakeClient{text: "x"}
	eng := newEngine(fake)

	eng.Recognize(context.Background(), engine.Input{Normalized: whiteRaster()})
	assert.Equal(t, []string{"jpn", "eng"}, fake.languages)
}

func TestRecognizeNoRaster(t *testing.T) {
	res := newEngine(&fakeClient{}).Recognize(context.Background(), engine.Input{})
	require.False(t, res.OK())
	assert.Equal(t, engine.FailureProvider, res.Err.Kind)
}

func TestRecognizeTextError(t *testing.T) {
	fake := &fakeClient{textErr: errors.New("tesseract crashed")}
	res := newEngine(fake).Recognize(context.Background(), engine.Input{Normalized: whiteRaster()})
	require.False(t, res.OK())
	assert.Equal(t, engine.FailureProvider, res.Err.Kind)
	assert.True(t, fake.closed)
}

func TestRecognizeLanguageError(t *testing.T) {
	fake := &fakeClient{langErr: errors.New("missing traineddata")}
	res := newEngine(fake).Recognize(context.Background(), engine.Input{Normalized: whiteRaster()})
	require.False(t, res.OK())
	assert.Equal(t, engine.FailureUnavailable, res.Err.Kind)
}

func TestRecognizeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newEngine(&fakeClient{}).Recognize(ctx, engine.Input{Normalized: whiteRaster()})
	require.False(t, res.OK())
	assert.Equal(t, engine.FailureCanceled, res.Err.Kind)
}

func TestConfidenceFallback(t *testing.T) {
	fake := &fakeClient{text: "x", boxesErr: errors.New("no iterator")}
	res := newEngine(fake).Recognize(context.Background(), engine.Input{Normalized: whiteRaster()})
	require.True(t, res.OK())
	assert.InDelta(t, 0.5, res.Confidence, 1e-9)
}

func TestCapabilities(t *testing.T) {
	caps := New(DefaultConfig()).Capabilities()
	assert.True(t, caps.ProvidesText)
	assert.True(t, caps.ProvidesWordCount)
	assert.False(t, caps.ProvidesWordBoxes)
	assert.False(t, caps.ProvidesTags)
}
