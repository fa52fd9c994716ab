package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"studioAPI/internal/types/assettype"
	"studioAPI/internal/types/layer"
)

// ExportVersion is written into every exported project document.
const ExportVersion = "1.2"

// Metadata holds the text fields typed by the user.
type Metadata struct {
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	GuestName     string `json:"guest_name"`
	Date          string `json:"date"`
	Extra1        string `json:"extra1"`
	Extra2        string `json:"extra2"`
	IsTransparent bool   `json:"isTransparent"`
}

func DefaultMetadata() Metadata {
	return Metadata{
		Title:    "TITRE DE L'ÉMISSION",
		Subtitle: "Le sous-titre qui claque",
	}
}

// Field returns the metadata value bound to a synced role.
func (m Metadata) Field(role layer.Role) (string, bool) {
	switch role {
	case layer.RoleTitle:
		return m.Title, true
	case layer.RoleSubtitle:
		return m.Subtitle, true
	case layer.RoleGuestName:
		return m.GuestName, true
	case layer.RoleDate:
		return m.Date, true
	case layer.RoleExtra1:
		return m.Extra1, true
	case layer.RoleExtra2:
		return m.Extra2, true
	}
	return "", false
}

// WithField returns a copy with the field bound to role set to value.
func (m Metadata) WithField(role layer.Role, value string) (Metadata, bool) {
	switch role {
	case layer.RoleTitle:
		m.Title = value
	case layer.RoleSubtitle:
		m.Subtitle = value
	case layer.RoleGuestName:
		m.GuestName = value
	case layer.RoleDate:
		m.Date = value
	case layer.RoleExtra1:
		m.Extra1 = value
	case layer.RoleExtra2:
		m.Extra2 = value
	default:
		return m, false
	}
	return m, true
}

// State is the unit of undo/redo and persistence.
type State struct {
	Layers    []layer.Layer       `json:"layers"`
	Meta      Metadata            `json:"meta"`
	AssetType assettype.AssetType `json:"assetType"`
}

// Clone returns a deep copy that shares nothing with s.
func (s State) Clone() State {
	out := State{Meta: s.Meta, AssetType: s.AssetType, Layers: make([]layer.Layer, len(s.Layers))}
	for i, l := range s.Layers {
		out.Layers[i] = l.Clone()
	}
	return out
}

// Equal compares the serialized forms of both states.
func (s State) Equal(o State) bool {
	a, errA := json.Marshal(s.normalized())
	b, errB := json.Marshal(o.normalized())
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

func (s State) normalized() State {
	if s.Layers == nil {
		s.Layers = []layer.Layer{}
	}
	return s
}

// Export is the import/export document.
type Export struct {
	Version   string              `json:"version"`
	AssetType assettype.AssetType `json:"assetType"`
	Layers    []layer.Layer       `json:"layers"`
	Meta      Metadata            `json:"meta"`
}

func (s State) Export() Export {
	c := s.Clone()
	return Export{Version: ExportVersion, AssetType: c.AssetType, Layers: c.Layers, Meta: c.Meta}
}

func (e Export) State() State {
	return State{Layers: e.Layers, Meta: e.Meta, AssetType: e.AssetType}.Clone()
}

// looseExport accepts documents written by older clients and the cloud
// backend, which used asset_type and could omit any metadata field.
type looseExport struct {
	Version     string              `json:"version"`
	AssetType   assettype.AssetType `json:"assetType"`
	LegacyAsset assettype.AssetType `json:"asset_type"`
	Layers      []layer.Layer       `json:"layers"`
	Meta        *looseMeta          `json:"meta"`
}

type looseMeta struct {
	Title         *string `json:"title"`
	Subtitle      *string `json:"subtitle"`
	GuestName     *string `json:"guest_name"`
	Date          *string `json:"date"`
	Extra1        *string `json:"extra1"`
	Extra2        *string `json:"extra2"`
	IsTransparent *bool   `json:"isTransparent"`
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

// ParseExport decodes a project document. Missing metadata fields default to
// empty values and an unknown asset type falls back to the default format;
// only undecodable JSON is reported as an error.
func ParseExport(data []byte) (Export, error) {
	var raw looseExport
	if err := json.Unmarshal(data, &raw); err != nil {
		return Export{}, fmt.Errorf("invalid project document: %w", err)
	}

	out := Export{Version: raw.Version, AssetType: raw.AssetType, Layers: raw.Layers}
	if out.Version == "" {
		out.Version = ExportVersion
	}
	if !out.AssetType.Valid() {
		out.AssetType = raw.LegacyAsset
	}
	if !out.AssetType.Valid() {
		out.AssetType = assettype.Default
	}
	if out.Layers == nil {
		out.Layers = []layer.Layer{}
	}
	if raw.Meta != nil {
		out.Meta = Metadata{
			Title:         deref(raw.Meta.Title),
			Subtitle:      deref(raw.Meta.Subtitle),
			GuestName:     deref(raw.Meta.GuestName),
			Date:          deref(raw.Meta.Date),
			Extra1:        deref(raw.Meta.Extra1),
			Extra2:        deref(raw.Meta.Extra2),
			IsTransparent: deref(raw.Meta.IsTransparent),
		}
	}
	return out, nil
}

// Saved wraps an exported project with its gallery metadata.
type Saved struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Name      string    `json:"name"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	IsPublic  bool      `json:"is_public"`
	UpdatedAt time.Time `json:"updated_at"`
	Export
}

// Summary is the lightweight gallery listing entry.
type Summary struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	AssetType assettype.AssetType `json:"assetType"`
	Thumbnail string              `json:"thumbnail,omitempty"`
	IsPublic  bool                `json:"is_public"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type SaveRequest struct {
	Name      string `json:"name" validate:"required"`
	Thumbnail string `json:"thumbnail"`
}
