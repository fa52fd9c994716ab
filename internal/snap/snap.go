// Package snap computes alignment guides while a layer is being dragged.
package snap

import (
	"math"

	"studioAPI/internal/types/assettype"
	"studioAPI/internal/types/layer"
)

// Threshold is the distance, in canvas pixels, under which a reference point
// snaps onto a target.
const Threshold = 15.0

// Guides holds the coordinates of the guide lines to display. A nil axis has
// no guide.
type Guides struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

func (g Guides) Active() bool {
	return g.X != nil || g.Y != nil
}

type Result struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Guides Guides  `json:"guides"`
}

// Snap adjusts the candidate top-left corner of moving so that its leading
// edge, centre or trailing edge lines up with the canvas or a sibling. Points
// are tried in that order and the first one within Threshold of any target
// wins. Each axis is resolved independently.
func Snap(moving layer.Layer, x, y float64, siblings []layer.Layer, canvas assettype.Dimensions) Result {
	xTargets := []float64{0, canvas.W / 2, canvas.W}
	yTargets := []float64{0, canvas.H / 2, canvas.H}
	for _, s := range siblings {
		if s.ID == moving.ID {
			continue
		}
		h := s.EffectiveHeight()
		xTargets = append(xTargets, s.X, s.X+s.Width/2, s.X+s.Width)
		yTargets = append(yTargets, s.Y, s.Y+h/2, s.Y+h)
	}

	res := Result{X: x, Y: y}
	if v, guide, ok := axis(x, moving.Width, xTargets); ok {
		res.X = v
		res.Guides.X = &guide
	}
	if v, guide, ok := axis(y, moving.EffectiveHeight(), yTargets); ok {
		res.Y = v
		res.Guides.Y = &guide
	}
	return res
}

func axis(pos, size float64, targets []float64) (float64, float64, bool) {
	offsets := [3]float64{0, size / 2, size}
	for _, off := range offsets {
		point := pos + off
		for _, t := range targets {
			if math.Abs(point-t) < Threshold {
				return t - off, t, true
			}
		}
	}
	return pos, 0, false
}
