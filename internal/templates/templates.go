// Package templates builds the starting layer sets offered in the template
// picker. Every template computes absolute geometry from the target canvas.
package templates

import (
	"studioAPI/internal/types/assettype"
	"studioAPI/internal/types/layer"
	"studioAPI/internal/types/project"
)

const (
	Standard  = "standard"
	Interview = "interview"
	Debate    = "debate"
	Chronicle = "chronicle"
)

// Palette used by the built-in templates.
const (
	Red       = "#D20A33"
	Black     = "#0f0f0f"
	White     = "#FFFFFF"
	AcidGreen = "#A3FF00"
)

const (
	DefaultLogo       = "/logo-cc-V3-nb-defonce.png"
	DefaultBackground = "https://images.unsplash.com/photo-1598488035139-bdbb2231ce04?w=1200&q=80"
	DefaultGuestPhoto = "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=800&q=80"
)

type Template struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`

	build func(at assettype.AssetType, d assettype.Dimensions, meta project.Metadata) []layer.Layer
}

// Layers produces the template's layer set for the given format.
func (t Template) Layers(at assettype.AssetType, meta project.Metadata) []layer.Layer {
	d, ok := at.Dimensions()
	if !ok {
		d, _ = assettype.Default.Dimensions()
	}
	return t.build(at, d, meta)
}

var registry = []Template{
	{ID: Standard, Label: "Standard", Description: "Mise en page classique avec logo, titre et sous-titre.", build: standard},
	{ID: Interview, Label: "Interview", Description: "Template dédié aux entretiens avec mise en avant de l'invité.", build: interview},
	{ID: Debate, Label: "Débat / Table Ronde", Description: "Style dynamique pour les émissions de discussion.", build: debate},
	{ID: Chronicle, Label: "Chronique", Description: "Template minimaliste et élégant pour les segments courts.", build: chronicle},
}

// aliases keeps the French ids stored by older projects working.
var aliases = map[string]string{
	"debat":     Debate,
	"chronique": Chronicle,
}

func All() []Template {
	out := make([]Template, len(registry))
	copy(out, registry)
	return out
}

// Get looks a template up by id. Unknown ids fall back to the standard
// template and report false.
func Get(id string) (Template, bool) {
	if canonical, ok := aliases[id]; ok {
		id = canonical
	}
	for _, t := range registry {
		if t.ID == id {
			return t, true
		}
	}
	return registry[0], false
}

// Build is Get followed by Layers.
func Build(id string, at assettype.AssetType, meta project.Metadata) []layer.Layer {
	t, _ := Get(id)
	return t.Layers(at, meta)
}

func logo(x, y, size float64) layer.Layer {
	return layer.Layer{
		ID: "logo-1", Role: layer.RoleLogo, Content: DefaultLogo,
		X: x, Y: y, Width: size, Height: size, ZIndex: 10,
		Style: &layer.LogoStyle{ImageStyle: layer.NewImageStyle(), Padding: layer.DefaultPadding},
	}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}

func standard(at assettype.AssetType, d assettype.Dimensions, meta project.Metadata) []layer.Layer {
	titleSize, subSize := 80.0, 40.0
	if at == assettype.PodcastCover {
		titleSize, subSize = 180, 80
	}
	bg := layer.NewImageStyle()
	bg.OverlayColor = Black
	bg.OverlayOpacity = 40

	return []layer.Layer{
		logo(40, 40, clamp(d.W*0.1, 100, 400)),
		{
			ID: "title-1", Role: layer.RoleTitle, Content: meta.Title,
			X: 40, Y: d.H/2 - 100, Width: d.W - 80, Height: 200, Rotation: -2, ZIndex: 5,
			Style: &layer.TextStyle{
				FontSize: titleSize, Color: White, FontFamily: "Syne",
				Scratch: layer.Scratch{Enabled: true, Color: Black},
			},
		},
		{
			ID: "sub-1", Role: layer.RoleSubtitle, Content: meta.Subtitle,
			X: 42, Y: d.H/2 + 100, Width: d.W - 100, Height: 100, ZIndex: 6,
			Style: &layer.TextStyle{FontSize: subSize, Color: AcidGreen, FontFamily: "Roboto Condensed"},
		},
		{
			ID: "bg-1", Role: layer.RoleBackground, Content: DefaultBackground,
			Width: d.W, Height: d.H, ZIndex: 0,
			Style: &bg,
		},
	}
}

func interview(_ assettype.AssetType, d assettype.Dimensions, meta project.Metadata) []layer.Layer {
	size := clamp(d.W*0.08, 100, 300)
	guestName := meta.GuestName
	if guestName == "" {
		guestName = "NOM DE L'INVITÉ"
	}
	photo := layer.NewImageStyle()
	photo.ClipShape = layer.ClipCircle
	side := min(d.W*0.4, d.H*0.5)

	return []layer.Layer{
		logo(d.W-size-40, 40, size),
		{
			ID: "guest-img-1", Role: layer.RoleGuestPhoto, Content: DefaultGuestPhoto,
			X: 40, Y: 40, Width: side, Height: side, ZIndex: 1,
			Style: &photo,
		},
		{
			ID: "guest-name-1", Role: layer.RoleGuestName, Content: guestName,
			X: 40, Y: d.H * 0.6, Width: d.W - 80, Height: 100, Rotation: 2, ZIndex: 8,
			Style: &layer.TextStyle{
				FontSize: 60, Color: Black, FontFamily: "Syne",
				Scratch: layer.Scratch{Enabled: true, Color: AcidGreen},
			},
		},
		{
			ID: "title-1", Role: layer.RoleTitle, Content: meta.Title,
			X: 40, Y: d.H * 0.75, Width: d.W - 80, Height: 150, ZIndex: 5,
			Style: &layer.TextStyle{FontSize: 100, Color: White, FontFamily: "Archivo Black"},
		},
	}
}

func debate(_ assettype.AssetType, d assettype.Dimensions, meta project.Metadata) []layer.Layer {
	return []layer.Layer{
		{
			ID: "title-1", Role: layer.RoleTitle, Content: meta.Title,
			Y: 100, Width: d.W, Height: 200, ZIndex: 5,
			Style: &layer.TextStyle{
				FontSize: 120, Color: Black, FontFamily: "Anton",
				Scratch: layer.Scratch{Enabled: true, Color: Red},
			},
		},
		{
			ID: "sub-1", Role: layer.RoleSubtitle, Content: meta.Subtitle,
			Y: 350, Width: d.W, Height: 80, ZIndex: 6,
			Style: &layer.TextStyle{
				FontSize: 40, Color: White, FontFamily: "Space Grotesk",
				Scratch: layer.Scratch{Enabled: true, Color: Black},
			},
		},
		logo(d.W/2-50, d.H-150, 100),
	}
}

const rule = "____________________________________________________________________"

func chronicle(_ assettype.AssetType, d assettype.Dimensions, meta project.Metadata) []layer.Layer {
	return []layer.Layer{
		logo(20, 20, 80),
		{
			ID: "title-1", Role: layer.RoleTitle, Content: meta.Title,
			X: 120, Y: 30, Width: d.W - 140, Height: 60, ZIndex: 5,
			Style: &layer.TextStyle{FontSize: 30, Color: Black, FontFamily: "Lexend Zetta"},
		},
		{
			ID: "line-1", Role: layer.RoleManual, Content: rule,
			X: 40, Y: 110, Width: d.W - 80, Height: 10, ZIndex: 4,
			Style: &layer.TextStyle{FontSize: 20, Color: Red, FontFamily: "Roboto Condensed"},
		},
	}
}
