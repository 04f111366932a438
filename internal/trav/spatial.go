package trav

import (
	"github.com/dhconnelly/rtreego"
)

// patchEntry wraps a patch for R-tree storage.
type patchEntry struct {
	p    *Patch
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (e *patchEntry) Bounds() rtreego.Rect {
	return e.rect
}

// insertSpatial registers a classified Obstacle or Frontier patch in the
// layer's spatial index. Footprint queries hit this index instead of
// scanning cells.
func (g *Graph) insertSpatial(p *Patch) {
	res := g.mls.Resolution()
	rect, err := rtreego.NewRect(
		rtreego.Point{float64(p.index.X) * res, float64(p.index.Y) * res},
		[]float64{res, res},
	)
	if err != nil {
		return
	}
	g.spatialMu.Lock()
	g.spatial.Insert(&patchEntry{p: p, rect: rect})
	g.spatialMu.Unlock()
}

// QueryRegion returns the classified Obstacle and Frontier patches whose
// cells intersect the given world-coordinate rectangle.
func (g *Graph) QueryRegion(minX, minY, maxX, maxY float64) []*Patch {
	if maxX <= minX || maxY <= minY {
		return nil
	}
	rect, err := rtreego.NewRect(
		rtreego.Point{minX, minY},
		[]float64{maxX - minX, maxY - minY},
	)
	if err != nil {
		return nil
	}
	g.spatialMu.RLock()
	results := g.spatial.SearchIntersect(rect)
	g.spatialMu.RUnlock()

	out := make([]*Patch, 0, len(results))
	for _, item := range results {
		out = append(out, item.(*patchEntry).p)
	}
	return out
}
