// Package adapt remaps layer geometry from one canvas size to another.
package adapt

import (
	"studioAPI/internal/types/assettype"
	"studioAPI/internal/types/layer"
)

// Adapt returns copies of ls rescaled from the from canvas to the to canvas.
// Centres and sizes scale per axis, circle-clipped layers stay square on the
// smaller side and font sizes follow the smaller of the two axis scales.
// Equal dimensions return exact copies.
func Adapt(ls []layer.Layer, from, to assettype.Dimensions) []layer.Layer {
	out := make([]layer.Layer, len(ls))
	if from == to || from.W <= 0 || from.H <= 0 {
		for i, l := range ls {
			out[i] = l.Clone()
		}
		return out
	}

	sx, sy := to.W/from.W, to.H/from.H
	uniform := min(sx, sy)
	for i, l := range ls {
		l = l.Clone()
		cx, cy := (l.X+l.Width/2)*sx, (l.Y+l.Height/2)*sy
		w, h := l.Width*sx, l.Height*sy
		if l.Clip() == layer.ClipCircle {
			side := min(w, h)
			w, h = side, side
		}
		l.X, l.Y = cx-w/2, cy-h/2
		l.Width, l.Height = w, h
		if st, ok := l.Style.(*layer.TextStyle); ok && st.FontSize > 0 {
			st.FontSize *= uniform
		}
		out[i] = l
	}
	return out
}
