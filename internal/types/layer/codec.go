package layer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FontWeight accepts both CSS keywords ("bold") and numeric weights (800).
type FontWeight string

func (w FontWeight) MarshalJSON() ([]byte, error) {
	if _, err := strconv.Atoi(string(w)); err == nil {
		return []byte(w), nil
	}
	return json.Marshal(string(w))
}

func (w *FontWeight) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '"' {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("font weight: %w", err)
		}
		*w = FontWeight(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("font weight: %w", err)
	}
	*w = FontWeight(s)
	return nil
}

// Patch is the flat document form of a layer. Every field is optional: it is
// both the persisted/exported shape and the partial update applied by the
// layer store.
type Patch struct {
	ID       *string  `json:"id,omitempty"`
	Role     *Role    `json:"role,omitempty"`
	Type     *Kind    `json:"type,omitempty"`
	Content  *string  `json:"content,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	ZIndex   *int     `json:"zIndex,omitempty"`
	IsLocked *bool    `json:"isLocked,omitempty"`

	FontFamily    *string     `json:"fontFamily,omitempty"`
	FontSize      *float64    `json:"fontSize,omitempty"`
	FontWeight    *FontWeight `json:"fontWeight,omitempty"`
	FontStyle     *string     `json:"fontStyle,omitempty"`
	Color         *string     `json:"color,omitempty"`
	TextAlign     *string     `json:"textAlign,omitempty"`
	LineHeight    *float64    `json:"lineHeight,omitempty"`
	TextTransform *string     `json:"textTransform,omitempty"`
	Hyphens       *bool       `json:"hyphens,omitempty"`
	StrokeColor   *string     `json:"strokeColor,omitempty"`
	StrokeWidth   *float64    `json:"strokeWidth,omitempty"`
	ShadowColor   *string     `json:"shadowColor,omitempty"`
	ShadowBlur    *float64    `json:"shadowBlur,omitempty"`
	ShadowOffsetX *float64    `json:"shadowOffsetX,omitempty"`
	ShadowOffsetY *float64    `json:"shadowOffsetY,omitempty"`

	HasScratch         *bool    `json:"hasScratch,omitempty"`
	ScratchColor       *string  `json:"scratchColor,omitempty"`
	ScratchBorderColor *string  `json:"scratchBorderColor,omitempty"`
	ScratchOpacity     *float64 `json:"scratchOpacity,omitempty"`
	ScratchShadow      *bool    `json:"scratchShadow,omitempty"`

	ClipShape          *ClipShape `json:"clipShape,omitempty"`
	OverlayColor       *string    `json:"overlayColor,omitempty"`
	OverlayOpacity     *float64   `json:"overlayOpacity,omitempty"`
	ImageNaturalWidth  *float64   `json:"imageNaturalWidth,omitempty"`
	ImageNaturalHeight *float64   `json:"imageNaturalHeight,omitempty"`
	ImageOffsetX       *float64   `json:"imageOffsetX,omitempty"`
	ImageOffsetY       *float64   `json:"imageOffsetY,omitempty"`
	ImageScale         *float64   `json:"imageScale,omitempty"`
	LogoPadding        *float64   `json:"logoPadding,omitempty"`

	GradientColor1    *string  `json:"gradientColor1,omitempty"`
	GradientColor2    *string  `json:"gradientColor2,omitempty"`
	GradientDirection *float64 `json:"gradientDirection,omitempty"`
}

func ptr[T any](v T) *T { return &v }

func str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func num(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}

func flag(b bool) *bool {
	if !b {
		return nil
	}
	return &b
}

// Document returns the flat form of the layer.
func (l Layer) Document() Patch {
	p := Patch{
		ID:       ptr(l.ID),
		Role:     ptr(l.Role),
		Type:     ptr(l.Kind()),
		Content:  ptr(l.Content),
		X:        ptr(l.X),
		Y:        ptr(l.Y),
		Width:    ptr(l.Width),
		Height:   ptr(l.Height),
		Rotation: ptr(l.Rotation),
		ZIndex:   ptr(l.ZIndex),
		IsLocked: flag(l.Locked),
	}
	switch s := l.Style.(type) {
	case *TextStyle:
		p.FontFamily = str(s.FontFamily)
		p.FontSize = num(s.FontSize)
		if s.FontWeight != "" {
			p.FontWeight = ptr(s.FontWeight)
		}
		p.FontStyle = str(s.FontStyle)
		p.Color = str(s.Color)
		p.TextAlign = str(s.TextAlign)
		p.LineHeight = num(s.LineHeight)
		p.TextTransform = str(s.TextTransform)
		p.Hyphens = flag(s.Hyphens)
		p.StrokeColor = str(s.StrokeColor)
		p.StrokeWidth = num(s.StrokeWidth)
		p.ShadowColor = str(s.ShadowColor)
		p.ShadowBlur = num(s.ShadowBlur)
		p.ShadowOffsetX = num(s.ShadowOffsetX)
		p.ShadowOffsetY = num(s.ShadowOffsetY)
		p.HasScratch = flag(s.Scratch.Enabled)
		p.ScratchColor = str(s.Scratch.Color)
		p.ScratchBorderColor = str(s.Scratch.BorderColor)
		p.ScratchOpacity = num(s.Scratch.Opacity)
	case *ImageStyle:
		imageDocument(&p, s)
	case *LogoStyle:
		imageDocument(&p, &s.ImageStyle)
		p.LogoPadding = ptr(s.Padding)
	case *GradientStyle:
		p.GradientColor1 = str(s.Color1)
		p.GradientColor2 = str(s.Color2)
		p.GradientDirection = ptr(s.Angle)
	}
	return p
}

func imageDocument(p *Patch, s *ImageStyle) {
	if s.ClipShape != "" {
		p.ClipShape = ptr(s.ClipShape)
	}
	p.OverlayColor = str(s.OverlayColor)
	p.OverlayOpacity = num(s.OverlayOpacity)
	p.ImageNaturalWidth = num(s.NaturalWidth)
	p.ImageNaturalHeight = num(s.NaturalHeight)
	p.ImageOffsetX = ptr(s.OffsetX)
	p.ImageOffsetY = ptr(s.OffsetY)
	p.ImageScale = ptr(s.Scale)
	p.ScratchShadow = flag(s.ScratchShadow)
}

// FromDocument builds a layer from its flat form, defaulting missing fields.
func FromDocument(p Patch) Layer {
	kind := KindText
	if p.Type != nil {
		kind = *p.Type
	}
	var l Layer
	switch kind {
	case KindImage, "sticker":
		s := NewImageStyle()
		l.Style = &s
	case KindLogo:
		l.Style = &LogoStyle{ImageStyle: NewImageStyle(), Padding: DefaultPadding}
	case KindGradient:
		l.Style = &GradientStyle{}
	default:
		l.Style = &TextStyle{}
	}
	l.Role = RoleManual
	if p.ID != nil {
		l.ID = *p.ID
	}
	if p.ZIndex != nil {
		l.ZIndex = *p.ZIndex
	}
	l.Apply(p)
	if !l.Role.Valid() {
		l.Role = RoleManual
	}
	return l
}

func (l Layer) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Document())
}

func (l *Layer) UnmarshalJSON(data []byte) error {
	var p Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode layer: %w", err)
	}
	*l = FromDocument(p)
	return nil
}

// Apply merges the set fields of p into the layer. The id, type and zIndex
// are owned by the store and are never changed here; attributes that do not
// belong to the layer's variant are ignored.
func (l *Layer) Apply(p Patch) {
	if p.Role != nil {
		l.Role = *p.Role
	}
	set(&l.Content, p.Content)
	set(&l.X, p.X)
	set(&l.Y, p.Y)
	set(&l.Width, p.Width)
	set(&l.Height, p.Height)
	if p.Rotation != nil {
		l.Rotation = NormalizeRotation(*p.Rotation)
	}
	set(&l.Locked, p.IsLocked)

	switch s := l.Style.(type) {
	case *TextStyle:
		set(&s.FontFamily, p.FontFamily)
		set(&s.FontSize, p.FontSize)
		set(&s.FontWeight, p.FontWeight)
		set(&s.FontStyle, p.FontStyle)
		set(&s.Color, p.Color)
		set(&s.TextAlign, p.TextAlign)
		set(&s.LineHeight, p.LineHeight)
		set(&s.TextTransform, p.TextTransform)
		set(&s.Hyphens, p.Hyphens)
		set(&s.StrokeColor, p.StrokeColor)
		set(&s.StrokeWidth, p.StrokeWidth)
		set(&s.ShadowColor, p.ShadowColor)
		set(&s.ShadowBlur, p.ShadowBlur)
		set(&s.ShadowOffsetX, p.ShadowOffsetX)
		set(&s.ShadowOffsetY, p.ShadowOffsetY)
		set(&s.Scratch.Enabled, p.HasScratch)
		set(&s.Scratch.Color, p.ScratchColor)
		set(&s.Scratch.BorderColor, p.ScratchBorderColor)
		set(&s.Scratch.Opacity, p.ScratchOpacity)
	case *ImageStyle:
		applyImage(s, p)
	case *LogoStyle:
		applyImage(&s.ImageStyle, p)
		set(&s.Padding, p.LogoPadding)
	case *GradientStyle:
		set(&s.Color1, p.GradientColor1)
		set(&s.Color2, p.GradientColor2)
		set(&s.Angle, p.GradientDirection)
	}
}

func applyImage(s *ImageStyle, p Patch) {
	set(&s.ClipShape, p.ClipShape)
	set(&s.OverlayColor, p.OverlayColor)
	set(&s.OverlayOpacity, p.OverlayOpacity)
	set(&s.NaturalWidth, p.ImageNaturalWidth)
	set(&s.NaturalHeight, p.ImageNaturalHeight)
	set(&s.OffsetX, p.ImageOffsetX)
	set(&s.OffsetY, p.ImageOffsetY)
	set(&s.Scale, p.ImageScale)
	set(&s.ScratchShadow, p.ScratchShadow)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
