package layout

import (
	"container/list"
	"image"
)

// foregroundThreshold separates ink from background in the binarized raster.
// Binarization leaves ink at 0 and background at 255; mid levels can appear
// when preprocessing was skipped, so compare against the midpoint.
const foregroundThreshold = 128

// component accumulates the bounding extent of one connected foreground blob.
type component struct {
	count int
	minX  int
	minY  int
	maxX  int
	maxY  int
}

// findComponents labels 4-connected foreground components in raster-scan
// order of their seed pixels. Only external extents are tracked; holes
// inside a component are not reported separately.
func findComponents(gray *image.Gray, w, h int) []component {
	visited := make([]bool, w*h)
	var comps []component

	for y := range h {
		for x := range w {
			idx := y*w + x
			if visited[idx] || !isForeground(gray, x, y) {
				continue
			}
			comps = append(comps, traceComponent(gray, visited, w, h, x, y))
		}
	}
	return comps
}

// traceComponent runs BFS from a seed pixel and returns the component extent.
func traceComponent(gray *image.Gray, visited []bool, w, h, startX, startY int) component {
	c := component{minX: startX, minY: startY, maxX: startX, maxY: startY}

	q := list.New()
	q.PushBack([2]int{startX, startY})
	visited[startY*w+startX] = true

	dirs := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for q.Len() > 0 {
		e := q.Front()
		q.Remove(e)
		p, ok := e.Value.([2]int)
		if !ok {
			continue
		}
		cx, cy := p[0], p[1]

		c.count++
		if cx < c.minX {
			c.minX = cx
		}
		if cy < c.minY {
			c.minY = cy
		}
		if cx > c.maxX {
			c.maxX = cx
		}
		if cy > c.maxY {
			c.maxY = cy
		}

		for _, d := range dirs {
			nx, ny := cx+d[0], cy+d[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			ni := ny*w + nx
			if visited[ni] || !isForeground(gray, nx, ny) {
				continue
			}
			visited[ni] = true
			q.PushBack([2]int{nx, ny})
		}
	}
	return c
}

func isForeground(gray *image.Gray, x, y int) bool {
	return gray.Pix[y*gray.Stride+x] < foregroundThreshold
}
