package layer

import "math"

type Role string

const (
	RoleTitle      Role = "title"
	RoleSubtitle   Role = "subtitle"
	RoleGuestName  Role = "guest_name"
	RoleDate       Role = "date"
	RoleExtra1     Role = "extra1"
	RoleExtra2     Role = "extra2"
	RoleManual     Role = "manual"
	RoleLogo       Role = "logo"
	RoleBackground Role = "background"
	RoleGuestPhoto Role = "guest_photo"
)

// SyncedRoles are the roles whose content follows the project metadata.
var SyncedRoles = []Role{RoleTitle, RoleSubtitle, RoleGuestName, RoleDate, RoleExtra1, RoleExtra2}

func (r Role) Synced() bool {
	switch r {
	case RoleTitle, RoleSubtitle, RoleGuestName, RoleDate, RoleExtra1, RoleExtra2:
		return true
	}
	return false
}

func (r Role) Valid() bool {
	switch r {
	case RoleManual, RoleLogo, RoleBackground, RoleGuestPhoto:
		return true
	}
	return r.Synced()
}

type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindLogo     Kind = "logo"
	KindGradient Kind = "gradient"
)

type ClipShape string

const (
	ClipSquare ClipShape = "square"
	ClipCircle ClipShape = "circle"
)

const (
	DefaultFontSize   = 24.0
	DefaultLineHeight = 1.2
	DefaultOffset     = 50.0
	DefaultScale      = 100.0
	DefaultPadding    = 10.0
)

// Style holds the attributes of one layer variant. Exactly one of
// *TextStyle, *ImageStyle, *LogoStyle or *GradientStyle.
type Style interface {
	Kind() Kind
	clone() Style
}

// Scratch is the brush-stroke highlight drawn behind a text layer.
type Scratch struct {
	Enabled     bool
	Color       string
	BorderColor string
	Opacity     float64
}

type TextStyle struct {
	FontFamily    string
	FontSize      float64
	FontWeight    FontWeight
	FontStyle     string
	Color         string
	TextAlign     string
	LineHeight    float64
	TextTransform string
	Hyphens       bool

	StrokeColor string
	StrokeWidth float64

	ShadowColor   string
	ShadowBlur    float64
	ShadowOffsetX float64
	ShadowOffsetY float64

	Scratch Scratch
}

func (s *TextStyle) Kind() Kind { return KindText }

func (s *TextStyle) clone() Style {
	c := *s
	return &c
}

type ImageStyle struct {
	ClipShape      ClipShape
	OverlayColor   string
	OverlayOpacity float64

	NaturalWidth  float64
	NaturalHeight float64

	// Pan offsets in percent, 0 = left/top, 100 = right/bottom.
	OffsetX float64
	OffsetY float64
	// Scale in percent of the cover size.
	Scale float64

	ScratchShadow bool
}

func (s *ImageStyle) Kind() Kind { return KindImage }

func (s *ImageStyle) clone() Style {
	c := *s
	return &c
}

type LogoStyle struct {
	ImageStyle
	// Padding inside a circular logo badge, percent of the width.
	Padding float64
}

func (s *LogoStyle) Kind() Kind { return KindLogo }

func (s *LogoStyle) clone() Style {
	c := *s
	return &c
}

type GradientStyle struct {
	Color1 string
	Color2 string
	Angle  float64
}

func (s *GradientStyle) Kind() Kind { return KindGradient }

func (s *GradientStyle) clone() Style {
	c := *s
	return &c
}

// NewImageStyle returns an image style with centred pan and cover scale.
func NewImageStyle() ImageStyle {
	return ImageStyle{OffsetX: DefaultOffset, OffsetY: DefaultOffset, Scale: DefaultScale}
}

// Layer is a positioned element of the canvas. Geometry is expressed in
// full-resolution canvas pixels.
type Layer struct {
	ID       string
	Role     Role
	Content  string
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Rotation float64
	ZIndex   int
	Locked   bool
	Style    Style
}

func (l Layer) Kind() Kind {
	if l.Style == nil {
		return KindText
	}
	return l.Style.Kind()
}

// Clone returns a deep copy.
func (l Layer) Clone() Layer {
	if l.Style != nil {
		l.Style = l.Style.clone()
	}
	return l
}

// Clip reports the clip shape of image and logo layers.
func (l Layer) Clip() ClipShape {
	switch s := l.Style.(type) {
	case *ImageStyle:
		return s.ClipShape
	case *LogoStyle:
		return s.ClipShape
	}
	return ""
}

// FontSize returns the font size of a text layer.
func (l Layer) FontSize() (float64, bool) {
	if s, ok := l.Style.(*TextStyle); ok && s.FontSize > 0 {
		return s.FontSize, true
	}
	return 0, false
}

// EffectiveHeight is the height used for alignment. Text layers grow with
// their content so the line box is used instead of the stored height.
func (l Layer) EffectiveHeight() float64 {
	switch s := l.Style.(type) {
	case *TextStyle:
		size, lh := s.FontSize, s.LineHeight
		if size <= 0 {
			size = DefaultFontSize
		}
		if lh <= 0 {
			lh = DefaultLineHeight
		}
		return size * lh
	case *ImageStyle, *LogoStyle, *GradientStyle:
		return l.Height
	}
	return l.Height
}

// NormalizeRotation maps any angle into [-180, 180].
func NormalizeRotation(deg float64) float64 {
	if deg >= -180 && deg <= 180 {
		return deg
	}
	r := math.Mod(deg+180, 360)
	if r < 0 {
		r += 360
	}
	return r - 180
}
