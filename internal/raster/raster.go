// Package raster turns raw document image bytes into the canonical
// single-channel raster consumed by layout analysis and the local
// recognition engines. The preprocessing chain (grayscale, local-mean
// denoise, CLAHE, adaptive Gaussian binarization) is deterministic:
// identical input bytes and options produce byte-identical output.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DecodeError reports unreadable or corrupt input. It is the only failure
// the pipeline surfaces to callers as a hard error.
type DecodeError struct {
	MIME string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.MIME != "" {
		return fmt.Sprintf("decode image (%s): %v", e.MIME, e.Err)
	}
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Options controls the preprocessing chain. The numeric defaults are
// empirically chosen and exposed rather than hard-coded.
type Options struct {
	Enhance       bool    // apply denoise + CLAHE + binarization after grayscale
	DenoiseRadius int     // local-mean denoise window radius (1 = 3x3)
	ClipLimit     float64 // CLAHE contrast clip limit
	TileGrid      int     // CLAHE tile grid size (TileGrid x TileGrid)
	BlockSize     int     // adaptive threshold neighborhood, odd
	C             float64 // adaptive threshold constant subtracted from the local mean
}

// DefaultOptions returns the preprocessing defaults.
func DefaultOptions() Options {
	return Options{
		Enhance:       true,
		DenoiseRadius: 1,
		ClipLimit:     2.0,
		TileGrid:      8,
		BlockSize:     11,
		C:             2,
	}
}

// Validate checks option sanity.
func (o Options) Validate() error {
	if o.BlockSize < 3 || o.BlockSize%2 == 0 {
		return fmt.Errorf("block size must be odd and >= 3, got %d", o.BlockSize)
	}
	if o.TileGrid < 1 {
		return fmt.Errorf("tile grid must be >= 1, got %d", o.TileGrid)
	}
	if o.ClipLimit <= 0 {
		return fmt.Errorf("clip limit must be > 0, got %v", o.ClipLimit)
	}
	if o.DenoiseRadius < 0 {
		return fmt.Errorf("denoise radius must be >= 0, got %d", o.DenoiseRadius)
	}
	return nil
}

// Normalized is the canonical raster for one pipeline invocation. It is
// created fresh per call and never shared across invocations.
type Normalized struct {
	Gray   *image.Gray
	Width  int
	Height int
	// Enhanced records whether the full chain ran, or decode+grayscale only.
	Enhanced bool
}

// EncodePNG serializes the raster for engines that consume encoded bytes.
func (n *Normalized) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, n.Gray); err != nil {
		return nil, fmt.Errorf("encode normalized raster: %w", err)
	}
	return buf.Bytes(), nil
}
