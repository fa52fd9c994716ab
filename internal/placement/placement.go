// Package placement computes the initial geometry of inserted images.
package placement

import (
	"studioAPI/internal/types/assettype"
	"studioAPI/internal/types/layer"
)

// Source tells where an inserted image comes from, which decides its role,
// size and position on the canvas.
type Source string

const (
	Upload     Source = "upload"
	Generated  Source = "generated"
	GuestPhoto Source = "guest_photo"
	Logo       Source = "logo"
	Background Source = "background"
)

func (s Source) Valid() bool {
	switch s {
	case Upload, Generated, GuestPhoto, Logo, Background:
		return true
	}
	return false
}

// Role is the layer role given to images from s.
func (s Source) Role() layer.Role {
	switch s {
	case GuestPhoto:
		return layer.RoleGuestPhoto
	case Logo:
		return layer.RoleLogo
	case Background:
		return layer.RoleBackground
	}
	return layer.RoleManual
}

// Context carries what placement needs to know about the current canvas.
type Context struct {
	Canvas      assettype.Dimensions
	TopZ        int
	GuestPhotos int
}

// fit scales w×h so the longer side equals box.
func fit(w, h, box float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return box, box
	}
	ratio := w / h
	if ratio > 1 {
		return box, box / ratio
	}
	return box * ratio, box
}

func imageLayer(src Source, content string, nw, nh float64) layer.Layer {
	st := layer.NewImageStyle()
	st.NaturalWidth, st.NaturalHeight = nw, nh
	l := layer.Layer{Role: src.Role(), Content: content, Style: &st}
	if src == Logo {
		l.Style = &layer.LogoStyle{ImageStyle: st, Padding: layer.DefaultPadding}
	}
	return l
}

// Place returns the layer for an image of natural size nw×nh.
func Place(src Source, content string, nw, nh float64, c Context) layer.Layer {
	w, h := c.Canvas.W, c.Canvas.H
	l := imageLayer(src, content, nw, nh)

	switch src {
	case Background:
		l.Width, l.Height = w, h
		l.ZIndex = 0
	case GuestPhoto:
		side := min(w*0.4, h*0.4, 500)
		offset := float64(c.GuestPhotos) * 30
		l.X, l.Y = w*0.65+offset, h*0.15+offset
		l.Width, l.Height = side, side
		l.ZIndex = 8 + c.GuestPhotos
		l.Style.(*layer.ImageStyle).ClipShape = layer.ClipCircle
	case Logo:
		side := max(100, min(w*0.15, 300))
		l.X, l.Y = w*0.05, h*0.05
		l.Width, l.Height = side, side
		l.ZIndex = c.TopZ
	case Generated:
		box := min(w*0.9, h*0.9)
		lw, lh := nw, nh
		if lw <= 0 || lh <= 0 {
			lw, lh = box, box
		} else if lw > box || lh > box {
			lw, lh = fit(nw, nh, box)
		}
		l.X, l.Y = (w-lw)/2, (h-lh)/2
		l.Width, l.Height = lw, lh
		l.ZIndex = c.TopZ
	default:
		lw, lh := fit(nw, nh, min(w*0.6, h*0.6, 800))
		l.X, l.Y = 50, 50
		l.Width, l.Height = lw, lh
		l.ZIndex = c.TopZ
	}
	return l
}

// Provisional is the placeholder inserted while the image size is unknown.
func Provisional(src Source, content string, c Context) layer.Layer {
	return Place(src, content, 0, 0, c)
}

// Fallback covers the whole canvas; it is used when an image cannot be
// decoded so the insertion never leaves a dangling placeholder.
func Fallback(src Source, content string, c Context) layer.Layer {
	l := imageLayer(src, content, 0, 0)
	l.Width, l.Height = c.Canvas.W, c.Canvas.H
	l.ZIndex = c.TopZ
	if src == Background {
		l.ZIndex = 0
	}
	if src == GuestPhoto {
		l.ZIndex = 8 + c.GuestPhotos
		side := min(c.Canvas.W, c.Canvas.H)
		l.Width, l.Height = side, side
		l.Style.(*layer.ImageStyle).ClipShape = layer.ClipCircle
	}
	return l
}
