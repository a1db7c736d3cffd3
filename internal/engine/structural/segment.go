package structural

import (
	"image"
	"sort"

	"github.com/docufuse/docufuse/internal/geom"
)

const (
	// inkThreshold separates ink from background in the binarized raster.
	inkThreshold = 128
	// dilateRadius bridges inter-letter gaps so a word forms one component
	// while word gaps stay open.
	dilateRadius = 3
	// minWordArea drops speckle components.
	minWordArea = 24
)

// segmentWords finds candidate word regions: horizontal dilation of the ink
// mask followed by connected-component labeling, then line grouping so the
// engine-reported order is top-to-bottom, left-to-right within a line.
func segmentWords(gray *image.Gray) []geom.Box {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	mask := dilatedInkMask(gray, w, h)
	boxes := labelBoxes(mask, w, h)

	filtered := boxes[:0]
	for _, box := range boxes {
		if box.Area() >= minWordArea {
			filtered = append(filtered, box)
		}
	}
	return orderByLines(filtered)
}

// dilatedInkMask builds the ink mask with horizontal dilation applied.
func dilatedInkMask(gray *image.Gray, w, h int) []bool {
	mask := make([]bool, w*h)
	for y := range h {
		for x := range w {
			if gray.Pix[y*gray.Stride+x] >= inkThreshold {
				continue
			}
			lo := max(x-dilateRadius, 0)
			hi := min(x+dilateRadius, w-1)
			for nx := lo; nx <= hi; nx++ {
				mask[y*w+nx] = true
			}
		}
	}
	return mask
}

// labelBoxes runs 4-connected labeling over the mask, returning per-component
// bounding boxes in seed discovery order.
func labelBoxes(mask []bool, w, h int) []geom.Box {
	visited := make([]bool, w*h)
	var boxes []geom.Box

	var stack [][2]int
	dirs := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

	for y := range h {
		for x := range w {
			idx := y*w + x
			if visited[idx] || !mask[idx] {
				continue
			}
			minX, minY, maxX, maxY := x, y, x, y
			visited[idx] = true
			stack = append(stack[:0], [2]int{x, y})
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				cx, cy := p[0], p[1]
				if cx < minX {
					minX = cx
				}
				if cy < minY {
					minY = cy
				}
				if cx > maxX {
					maxX = cx
				}
				if cy > maxY {
					maxY = cy
				}
				for _, d := range dirs {
					nx, ny := cx+d[0], cy+d[1]
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					ni := ny*w + nx
					if visited[ni] || !mask[ni] {
						continue
					}
					visited[ni] = true
					stack = append(stack, [2]int{nx, ny})
				}
			}
			boxes = append(boxes, geom.NewBox(minX, minY, maxX+1, maxY+1))
		}
	}
	return boxes
}

// orderByLines groups boxes into text lines by vertical overlap and sorts
// lines top-to-bottom, words left-to-right.
func orderByLines(boxes []geom.Box) []geom.Box {
	if len(boxes) == 0 {
		return boxes
	}

	sorted := make([]geom.Box, len(boxes))
	copy(sorted, boxes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Y == sorted[j].Y {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	var lines [][]geom.Box
	for _, box := range sorted {
		placed := false
		for i := range lines {
			if overlapsVertically(lines[i][0], box) {
				lines[i] = append(lines[i], box)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, []geom.Box{box})
		}
	}

	out := make([]geom.Box, 0, len(sorted))
	for _, line := range lines {
		sort.Slice(line, func(i, j int) bool { return line[i].X < line[j].X })
		out = append(out, line...)
	}
	return out
}

// overlapsVertically reports whether two boxes share at least half of the
// smaller box's height.
func overlapsVertically(a, b geom.Box) bool {
	top := max(a.Y, b.Y)
	bottom := min(a.Y+a.H, b.Y+b.H)
	overlap := bottom - top
	if overlap <= 0 {
		return false
	}
	return overlap*2 >= min(a.H, b.H)
}
