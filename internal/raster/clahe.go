package raster

import (
	"image"
	"math"
)

// equalizeAdaptive performs contrast-limited adaptive histogram equalization
// over a grid x grid tiling of the image. Each tile gets a clipped,
// redistributed histogram mapping; pixel values are bilinearly interpolated
// between the four surrounding tile mappings to avoid tile seams.
func equalizeAdaptive(src *image.Gray, clipLimit float64, grid int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	tileW := (w + grid - 1) / grid
	tileH := (h + grid - 1) / grid
	luts := make([][]uint8, grid*grid)
	for ty := range grid {
		for tx := range grid {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			luts[ty*grid+tx] = tileLUT(src, x0, y0, x1, y1, clipLimit)
		}
	}

	for y := range h {
		// Position in tile-center coordinates.
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(math.Floor(fy))
		wy := fy - float64(ty0)
		ty1 := clampInt(ty0+1, 0, grid-1)
		ty0 = clampInt(ty0, 0, grid-1)

		for x := range w {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(math.Floor(fx))
			wx := fx - float64(tx0)
			tx1 := clampInt(tx0+1, 0, grid-1)
			tx0 = clampInt(tx0, 0, grid-1)

			v := src.Pix[y*src.Stride+x]
			top := (1-wx)*float64(luts[ty0*grid+tx0][v]) + wx*float64(luts[ty0*grid+tx1][v])
			bot := (1-wx)*float64(luts[ty1*grid+tx0][v]) + wx*float64(luts[ty1*grid+tx1][v])
			out.Pix[y*out.Stride+x] = uint8(clampFloat(math.Round((1-wy)*top+wy*bot), 0, 255))
		}
	}
	return out
}

// tileLUT builds the clipped-equalization lookup table for one tile.
// Empty tiles (possible when the grid exceeds the image size) map to identity.
func tileLUT(src *image.Gray, x0, y0, x1, y1 int, clipLimit float64) []uint8 {
	lut := make([]uint8, 256)
	n := (x1 - x0) * (y1 - y0)
	if n <= 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	var hist [256]int
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[src.Pix[y*src.Stride+x]]++
		}
	}

	// Clip and redistribute the excess uniformly; the remainder goes to the
	// lowest bins so redistribution stays deterministic.
	clip := int(clipLimit * float64(n) / 256.0)
	if clip < 1 {
		clip = 1
	}
	excess := 0
	for i, c := range hist {
		if c > clip {
			excess += c - clip
			hist[i] = clip
		}
	}
	share := excess / 256
	rem := excess % 256
	for i := range hist {
		hist[i] += share
		if i < rem {
			hist[i]++
		}
	}

	scale := 255.0 / float64(n)
	cum := 0
	for i, c := range hist {
		cum += c
		lut[i] = uint8(clampFloat(math.Round(float64(cum)*scale), 0, 255))
	}
	return lut
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
