// Package layers holds the mutable layer collection of an editing session.
package layers

import (
	"math/rand"
	"slices"
	"sort"

	"studioAPI/internal/types/assettype"
	"studioAPI/internal/types/layer"
	"studioAPI/internal/types/project"

	"github.com/google/uuid"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// CloneOffset is the shift applied to duplicated and pasted layers.
const CloneOffset = 20.0

const (
	guestNamePlaceholder = "NOM DE L'INVITÉ"
	extraPlaceholder     = "INFO COMPLÉMENTAIRE"
)

// Store is an arena of layers keyed by id plus their insertion order. Paint
// order is derived from zIndex, ties broken by insertion order. Operations on
// unknown ids are no-ops and report false.
//
// At most one layer holds each synced role. A layer inserted with a role that
// is already taken becomes manual, and updates can only detach a layer from
// its role, never bind one.
type Store struct {
	byID      map[string]*layer.Layer
	order     []string
	selected  string
	clipboard *layer.Layer

	newID  func() string
	jitter func() float64
}

type Option func(*Store)

// WithIDGenerator replaces uuid.NewString as the id source.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithJitter replaces the random offset, in [-20, 20), applied to new
// optional text layers.
func WithJitter(f func() float64) Option {
	return func(s *Store) { s.jitter = f }
}

func New(opts ...Option) *Store {
	s := &Store{
		byID:   make(map[string]*layer.Layer),
		newID:  uuid.NewString,
		jitter: func() float64 { return rand.Float64()*40 - 20 },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) freshID() string {
	for {
		id := s.newID()
		if _, taken := s.byID[id]; !taken && id != "" {
			return id
		}
	}
}

func (s *Store) insert(l layer.Layer, front bool) string {
	if l.Style == nil {
		l.Style = &layer.TextStyle{}
	}
	if !l.Role.Valid() || (l.Role.Synced() && s.firstWithRole(l.Role) != nil) {
		l.Role = layer.RoleManual
	}
	l.Rotation = layer.NormalizeRotation(l.Rotation)
	lockCircle(&l, false, false)

	s.byID[l.ID] = &l
	if front {
		s.order = slices.Insert(s.order, 0, l.ID)
	} else {
		s.order = append(s.order, l.ID)
	}
	return l.ID
}

// Add appends a copy of l under a freshly generated id and returns that id.
func (s *Store) Add(l layer.Layer) string {
	l = l.Clone()
	l.ID = s.freshID()
	return s.insert(l, false)
}

// AddFront inserts at the start of the collection, used for backgrounds.
func (s *Store) AddFront(l layer.Layer) string {
	l = l.Clone()
	l.ID = s.freshID()
	return s.insert(l, true)
}

func (s *Store) Get(id string) (layer.Layer, bool) {
	l, ok := s.byID[id]
	if !ok {
		return layer.Layer{}, false
	}
	return l.Clone(), true
}

func (s *Store) Len() int { return len(s.order) }

// Layers returns copies in insertion order.
func (s *Store) Layers() []layer.Layer {
	out := make([]layer.Layer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Sorted returns copies in paint order.
func (s *Store) Sorted() []layer.Layer {
	refs := s.sortedRefs()
	out := make([]layer.Layer, len(refs))
	for i, l := range refs {
		out[i] = l.Clone()
	}
	return out
}

func (s *Store) sortedRefs() []*layer.Layer {
	refs := make([]*layer.Layer, len(s.order))
	for i, id := range s.order {
		refs[i] = s.byID[id]
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].ZIndex < refs[j].ZIndex })
	return refs
}

// TopZ is the zIndex that places a new layer above every existing one.
func (s *Store) TopZ() int {
	top := 0
	for _, l := range s.byID {
		top = max(top, l.ZIndex)
	}
	return top + 1
}

// CountRole reports how many layers carry role.
func (s *Store) CountRole(role layer.Role) int {
	n := 0
	for _, l := range s.byID {
		if l.Role == role {
			n++
		}
	}
	return n
}

func (s *Store) firstWithRole(role layer.Role) *layer.Layer {
	for _, id := range s.order {
		if l := s.byID[id]; l.Role == role {
			return l
		}
	}
	return nil
}

// Update merges p into the layer. Circle-clipped layers keep width equal to
// height: a patch that sets width drives height, one that sets only height
// drives width, and otherwise both collapse to the smaller side.
func (s *Store) Update(id string, p layer.Patch) bool {
	l, ok := s.byID[id]
	if !ok {
		return false
	}
	role := l.Role
	l.Apply(p)
	if l.Role != role && (!l.Role.Valid() || l.Role.Synced()) {
		l.Role = role
	}
	if p.ZIndex != nil {
		l.ZIndex = *p.ZIndex
	}
	lockCircle(l, p.Width != nil, p.Height != nil)
	return true
}

func lockCircle(l *layer.Layer, widthSet, heightSet bool) {
	if l.Clip() != layer.ClipCircle || l.Width == l.Height {
		return
	}
	switch {
	case widthSet:
		l.Height = l.Width
	case heightSet:
		l.Width = l.Height
	default:
		side := min(l.Width, l.Height)
		l.Width, l.Height = side, side
	}
}

// Nudge moves a layer by the given delta.
func (s *Store) Nudge(id string, dx, dy float64) bool {
	l, ok := s.byID[id]
	if !ok {
		return false
	}
	l.X += dx
	l.Y += dy
	return true
}

func (s *Store) Remove(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	if s.selected == id {
		s.selected = ""
	}
	return true
}

// Duplicate copies a layer under a new id, offset and placed on top. The
// copy becomes the selection.
func (s *Store) Duplicate(id string) (string, bool) {
	l, ok := s.byID[id]
	if !ok {
		return "", false
	}
	return s.placeCopy(*l), true
}

func (s *Store) placeCopy(src layer.Layer) string {
	c := src.Clone()
	c.ID = s.freshID()
	c.X += CloneOffset
	c.Y += CloneOffset
	c.ZIndex = s.TopZ()
	newID := s.insert(c, false)
	s.selected = newID
	return newID
}

// MoveZOrder swaps the layer with its paint-order neighbour in the given
// direction and then renumbers so every zIndex is strictly greater than the
// one below it. Nothing changes at either end of the stack.
func (s *Store) MoveZOrder(id string, dir Direction) bool {
	refs := s.sortedRefs()
	i := slices.IndexFunc(refs, func(l *layer.Layer) bool { return l.ID == id })
	if i < 0 {
		return false
	}
	j := i + 1
	if dir == Down {
		j = i - 1
	} else if dir != Up {
		return false
	}
	if j < 0 || j >= len(refs) {
		return false
	}

	refs[i].ZIndex, refs[j].ZIndex = refs[j].ZIndex, refs[i].ZIndex
	refs[i], refs[j] = refs[j], refs[i]
	for k := 1; k < len(refs); k++ {
		if refs[k].ZIndex <= refs[k-1].ZIndex {
			refs[k].ZIndex = refs[k-1].ZIndex + 1
		}
	}
	return true
}

// AddOrReuseRoleLayer detaches the existing layer bound to role, turning it
// into a manual layer, or creates a new manual text layer seeded with value.
// Either way the layer is selected and its id returned.
func (s *Store) AddOrReuseRoleLayer(role layer.Role, value string, canvas assettype.Dimensions) string {
	if existing := s.firstWithRole(role); existing != nil {
		existing.Role = layer.RoleManual
		s.selected = existing.ID
		return existing.ID
	}

	content := value
	if content == "" {
		content = extraPlaceholder
		if role == layer.RoleGuestName {
			content = guestNamePlaceholder
		}
	}
	l := layer.Layer{
		ID:      s.freshID(),
		Role:    layer.RoleManual,
		Content: content,
		X:       canvas.W*0.1 + s.jitter(),
		Y:       canvas.H*0.7 + s.jitter(),
		Width:   400,
		Height:  80,
		ZIndex:  s.TopZ(),
		Style: &layer.TextStyle{
			FontSize:   40,
			Color:      "#FFFFFF",
			FontFamily: "Roboto Condensed",
		},
	}
	id := s.insert(l, false)
	s.selected = id
	return id
}

// Replace swaps the whole collection. Missing or repeated ids are replaced by
// fresh ones. The selection survives only if its layer is still present.
func (s *Store) Replace(ls []layer.Layer) {
	s.byID = make(map[string]*layer.Layer, len(ls))
	s.order = make([]string, 0, len(ls))
	for _, l := range ls {
		l = l.Clone()
		if _, dup := s.byID[l.ID]; dup || l.ID == "" {
			l.ID = s.freshID()
		}
		s.insert(l, false)
	}
	if _, ok := s.byID[s.selected]; !ok {
		s.selected = ""
	}
}

// SyncMeta pushes metadata values into the layers bound to synced roles and
// reports whether any content changed.
func (s *Store) SyncMeta(meta project.Metadata) bool {
	changed := false
	for _, id := range s.order {
		l := s.byID[id]
		v, ok := meta.Field(l.Role)
		if !ok || l.Content == v {
			continue
		}
		l.Content = v
		changed = true
	}
	return changed
}

// ReplaceBackground points the first background layer at a new image,
// keeping its pan offsets.
func (s *Store) ReplaceBackground(content string, naturalW, naturalH float64) (string, bool) {
	bg := s.firstWithRole(layer.RoleBackground)
	if bg == nil {
		return "", false
	}
	bg.Content = content
	switch st := bg.Style.(type) {
	case *layer.ImageStyle:
		st.NaturalWidth, st.NaturalHeight = naturalW, naturalH
	case *layer.LogoStyle:
		st.NaturalWidth, st.NaturalHeight = naturalW, naturalH
	}
	return bg.ID, true
}

func (s *Store) Select(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	s.selected = id
	return true
}

func (s *Store) ClearSelection() { s.selected = "" }

func (s *Store) SelectedID() string { return s.selected }

func (s *Store) Selected() (layer.Layer, bool) {
	return s.Get(s.selected)
}

// Copy puts a snapshot of the layer on the clipboard.
func (s *Store) Copy(id string) bool {
	l, ok := s.byID[id]
	if !ok {
		return false
	}
	c := l.Clone()
	s.clipboard = &c
	return true
}

// Paste inserts the clipboard layer under a new id, offset and on top.
func (s *Store) Paste() (string, bool) {
	if s.clipboard == nil {
		return "", false
	}
	return s.placeCopy(*s.clipboard), true
}
