package raster

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

// Normalize decodes raw image bytes and runs the preprocessing chain:
// grayscale reduction, local-mean denoising, tile-based adaptive histogram
// equalization, and adaptive Gaussian binarization. With opts.Enhance false
// only decode and grayscale run, which keeps photos usable for engines that
// want visual context preserved.
func Normalize(raw []byte, mimeType string, opts Options) (*Normalized, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{MIME: mimeType, Err: err}
	}

	gray := toGray(img)
	if !opts.Enhance {
		b := gray.Bounds()
		return &Normalized{Gray: gray, Width: b.Dx(), Height: b.Dy(), Enhanced: false}, nil
	}

	if opts.DenoiseRadius > 0 {
		gray = denoiseMean(gray, opts.DenoiseRadius)
	}
	gray = equalizeAdaptive(gray, opts.ClipLimit, opts.TileGrid)
	gray = thresholdGaussian(gray, opts.BlockSize, opts.C)

	b := gray.Bounds()
	return &Normalized{Gray: gray, Width: b.Dx(), Height: b.Dy(), Enhanced: true}, nil
}

// toGray converts any decoded image to an 8-bit single-channel raster with
// origin (0,0). Uses the standard luminance weights via imaging.
func toGray(img image.Image) *image.Gray {
	flat := imaging.Grayscale(img)
	b := flat.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			// Grayscale output has R==G==B; take the red channel.
			i := flat.PixOffset(b.Min.X+x, b.Min.Y+y)
			out.Pix[y*out.Stride+x] = flat.Pix[i]
		}
	}
	return out
}

// denoiseMean applies a local-mean filter with the given window radius.
// Edges clamp to the image border so output dimensions match the input.
func denoiseMean(src *image.Gray, radius int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			var sum, count int
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 {
						nx = 0
					} else if nx >= w {
						nx = w - 1
					}
					if ny < 0 {
						ny = 0
					} else if ny >= h {
						ny = h - 1
					}
					sum += int(src.Pix[ny*src.Stride+nx])
					count++
				}
			}
			out.Pix[y*out.Stride+x] = uint8((sum + count/2) / count)
		}
	}
	return out
}
