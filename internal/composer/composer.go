// Package composer coordinates the layer store, metadata, output format and
// history of one editing session. A Composer is not safe for concurrent use:
// the owner calls it from a single goroutine and routes timer callbacks back
// onto that goroutine through the dispatch option.
package composer

import (
	"time"

	"studioAPI/internal/adapt"
	"studioAPI/internal/debounce"
	"studioAPI/internal/history"
	"studioAPI/internal/layers"
	"studioAPI/internal/placement"
	"studioAPI/internal/sanitize"
	"studioAPI/internal/snap"
	"studioAPI/internal/templates"
	"studioAPI/internal/types/assettype"
	"studioAPI/internal/types/layer"
	"studioAPI/internal/types/project"
)

const (
	DefaultHistoryDelay  = 800 * time.Millisecond
	DefaultAutosaveDelay = 1000 * time.Millisecond
	// SuppressWindow is how long edits stay unrecorded after a restore.
	SuppressWindow = 100 * time.Millisecond

	maxPasses = 4
)

type pendingImage struct {
	source  placement.Source
	content string
	ctx     placement.Context
	replace bool
}

type Composer struct {
	store     *layers.Store
	meta      project.Metadata
	assetType assettype.AssetType
	// prevAssetType is the format the layer geometry is currently laid out for.
	prevAssetType assettype.AssetType
	lastLen       int

	history       *history.Manager
	historyTimer  *debounce.Timer
	autosaveTimer *debounce.Timer
	suppressUntil time.Time

	pending map[string]pendingImage
	drag    *Drag

	historyDelay  time.Duration
	autosaveDelay time.Duration
	dispatch      func(func())
	now           func() time.Time
	autosave      func(project.State)
	onRecord      func()
	storeOpts     []layers.Option
}

type Option func(*Composer)

// WithDispatch routes debounce fires through f, typically onto the owner's
// event loop. Without it the fires call into the Composer from a timer
// goroutine.
func WithDispatch(f func(func())) Option {
	return func(c *Composer) { c.dispatch = f }
}

func WithDelays(historyDelay, autosaveDelay time.Duration) Option {
	return func(c *Composer) {
		if historyDelay > 0 {
			c.historyDelay = historyDelay
		}
		if autosaveDelay > 0 {
			c.autosaveDelay = autosaveDelay
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Composer) { c.now = now }
}

// WithAutosave receives the project state once edits have settled.
func WithAutosave(f func(project.State)) Option {
	return func(c *Composer) { c.autosave = f }
}

// WithRecordHook is called every time a history entry is recorded.
func WithRecordHook(f func()) Option {
	return func(c *Composer) { c.onRecord = f }
}

func WithStoreOptions(opts ...layers.Option) Option {
	return func(c *Composer) { c.storeOpts = append(c.storeOpts, opts...) }
}

// New starts a session from initial. An empty layer set is populated from
// the standard template; the bootstrapped state is the history baseline.
//
// WithDispatch is required whenever a debounce delay can elapse while the
// owner is still calling the Composer: undispatched fires run on their own
// goroutine and race with the owner. It may be left out only when the delays
// never elapse during use and the timers are driven by FlushHistory and Close.
func New(initial project.State, opts ...Option) *Composer {
	c := &Composer{
		historyDelay:  DefaultHistoryDelay,
		autosaveDelay: DefaultAutosaveDelay,
		now:           time.Now,
		pending:       make(map[string]pendingImage),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.store = layers.New(c.storeOpts...)
	c.historyTimer = debounce.New(c.historyDelay, c.record, c.dispatch)
	c.autosaveTimer = debounce.New(c.autosaveDelay, c.save, c.dispatch)

	c.restore(initial)
	c.reconcile()
	c.lastLen = c.store.Len()
	c.history = history.New(c.State())
	return c
}

func (c *Composer) record() {
	if c.history.RecordChange(c.State()) && c.onRecord != nil {
		c.onRecord()
	}
}

func (c *Composer) save() {
	if c.autosave != nil {
		c.autosave(c.State())
	}
}

// State returns a deep copy of the project with layers in insertion order.
func (c *Composer) State() project.State {
	return project.State{Layers: c.store.Layers(), Meta: c.meta, AssetType: c.assetType}
}

// Sorted returns the layers in paint order.
func (c *Composer) Sorted() []layer.Layer { return c.store.Sorted() }

func (c *Composer) Meta() project.Metadata { return c.meta }

func (c *Composer) AssetType() assettype.AssetType { return c.assetType }

func (c *Composer) Dimensions() assettype.Dimensions {
	d, _ := c.assetType.Dimensions()
	return d
}

func (c *Composer) Layer(id string) (layer.Layer, bool) { return c.store.Get(id) }

func (c *Composer) SelectedID() string { return c.store.SelectedID() }

func (c *Composer) CanUndo() bool { return c.history.CanUndo() }

func (c *Composer) CanRedo() bool { return c.history.CanRedo() }

// reconcile runs the priority pass: sanitize metadata, then adapt or
// template on a format change, then template an empty canvas, then push
// metadata into synced layers. A step that changes metadata or structure
// starts a new pass; sync ends the cycle.
func (c *Composer) reconcile() {
	for i := 0; i < maxPasses; i++ {
		if !c.pass() {
			return
		}
	}
}

func (c *Composer) pass() bool {
	if clean := sanitize.Metadata(c.meta); clean != c.meta {
		c.meta = clean
		return true
	}
	if c.assetType != c.prevAssetType {
		if c.store.Len() > 0 {
			from, _ := c.prevAssetType.Dimensions()
			to, _ := c.assetType.Dimensions()
			c.store.Replace(adapt.Adapt(c.store.Layers(), from, to))
		} else {
			c.buildTemplate(templates.Standard)
		}
		c.prevAssetType = c.assetType
		return true
	}
	if c.store.Len() == 0 {
		c.buildTemplate(templates.Standard)
		return true
	}
	c.store.SyncMeta(c.meta)
	return false
}

func (c *Composer) buildTemplate(id string) {
	c.store.Replace(templates.Build(id, c.assetType, c.meta))
	c.store.ClearSelection()
}

// observe follows every mutation. Metadata, format and layer-count changes
// trigger reconciliation; every change restarts the debounce timers, except
// history right after a restore.
func (c *Composer) observe(force bool) {
	if force || c.store.Len() != c.lastLen {
		c.reconcile()
	}
	c.lastLen = c.store.Len()
	if c.now().Before(c.suppressUntil) {
		c.autosaveTimer.Trigger()
		return
	}
	c.historyTimer.Trigger()
	c.autosaveTimer.Trigger()
}

// restore installs a snapshot. The geometry of a snapshot already matches its
// format, so the format marker follows the restored type and no adaptation
// runs.
func (c *Composer) restore(s project.State) {
	at := s.AssetType
	if !at.Valid() {
		at = assettype.Default
	}
	c.store.Replace(s.Layers)
	c.meta = s.Meta
	c.assetType = at
	c.prevAssetType = at
	c.drag = nil
	clear(c.pending)
}

func (c *Composer) suppress() {
	c.suppressUntil = c.now().Add(SuppressWindow)
}

// FlushHistory records any pending change immediately.
func (c *Composer) FlushHistory() { c.historyTimer.Flush() }

// Close flushes a pending autosave and stops both timers.
func (c *Composer) Close() {
	c.historyTimer.Stop()
	c.autosaveTimer.Flush()
	c.autosaveTimer.Stop()
}

func (c *Composer) SetMeta(m project.Metadata) {
	if m == c.meta {
		return
	}
	c.meta = m
	c.observe(true)
}

// SetMetaField updates the metadata field bound to role.
func (c *Composer) SetMetaField(role layer.Role, value string) bool {
	m, ok := c.meta.WithField(role, value)
	if !ok {
		return false
	}
	c.SetMeta(m)
	return true
}

func (c *Composer) SetTransparent(on bool) {
	m := c.meta
	m.IsTransparent = on
	c.SetMeta(m)
}

// SetAssetType switches the output format. Existing layers are adapted to
// the new dimensions; an empty canvas gets the standard template.
func (c *Composer) SetAssetType(at assettype.AssetType) bool {
	if !at.Valid() {
		return false
	}
	if at == c.assetType {
		return true
	}
	c.assetType = at
	c.observe(true)
	return true
}

// ApplyTemplate discards every layer and builds the named template.
func (c *Composer) ApplyTemplate(id string) {
	c.buildTemplate(id)
	c.observe(true)
}

// AddLayer inserts a layer built from p and selects it. Without an explicit
// zIndex it goes on top.
func (c *Composer) AddLayer(p layer.Patch) string {
	l := layer.FromDocument(p)
	if p.ZIndex == nil {
		l.ZIndex = c.store.TopZ()
	}
	id := c.store.Add(l)
	c.store.Select(id)
	c.observe(false)
	return id
}

func (c *Composer) UpdateLayer(id string, p layer.Patch) bool {
	if !c.store.Update(id, p) {
		return false
	}
	c.observe(false)
	return true
}

func (c *Composer) RemoveLayer(id string) bool {
	if !c.store.Remove(id) {
		return false
	}
	delete(c.pending, id)
	if c.drag != nil && c.drag.id == id {
		c.drag = nil
	}
	c.observe(false)
	return true
}

func (c *Composer) DuplicateLayer(id string) (string, bool) {
	newID, ok := c.store.Duplicate(id)
	if ok {
		c.observe(false)
	}
	return newID, ok
}

func (c *Composer) MoveLayer(id string, dir layers.Direction) bool {
	if !c.store.MoveZOrder(id, dir) {
		return false
	}
	c.observe(false)
	return true
}

// AddOptionalLayer detaches the layer bound to role or creates a manual
// text layer seeded with the current metadata value.
func (c *Composer) AddOptionalLayer(role layer.Role) string {
	value, _ := c.meta.Field(role)
	id := c.store.AddOrReuseRoleLayer(role, value, c.Dimensions())
	c.observe(false)
	return id
}

func (c *Composer) Select(id string) bool { return c.store.Select(id) }

func (c *Composer) ClearSelection() { c.store.ClearSelection() }

// Copy puts the layer, or the selection when id is empty, on the clipboard.
func (c *Composer) Copy(id string) bool {
	if id == "" {
		id = c.store.SelectedID()
	}
	return c.store.Copy(id)
}

func (c *Composer) Paste() (string, bool) {
	id, ok := c.store.Paste()
	if ok {
		c.observe(false)
	}
	return id, ok
}

func (c *Composer) Nudge(id string, dx, dy float64) bool {
	if !c.store.Nudge(id, dx, dy) {
		return false
	}
	c.observe(false)
	return true
}

// Undo restores the previous history entry. A pending recording is flushed
// first so the latest edit is not lost.
func (c *Composer) Undo() bool {
	c.FlushHistory()
	s, ok := c.history.Undo()
	if !ok {
		return false
	}
	c.applyRestored(s)
	return true
}

func (c *Composer) Redo() bool {
	c.FlushHistory()
	s, ok := c.history.Redo()
	if !ok {
		return false
	}
	c.applyRestored(s)
	return true
}

func (c *Composer) applyRestored(s project.State) {
	c.suppress()
	c.restore(s)
	c.observe(true)
}

// Load replaces the whole project, e.g. from the gallery or an import. The
// loaded state becomes a history entry so the previous project stays one
// undo away.
func (c *Composer) Load(s project.State) {
	c.FlushHistory()
	c.suppress()
	c.restore(s)
	c.reconcile()
	c.lastLen = c.store.Len()
	c.record()
	c.autosaveTimer.Trigger()
}

// Drag is the transient context of an in-progress pointer drag.
type Drag struct {
	c  *Composer
	id string
}

// BeginDrag starts dragging a layer. Locked and unknown layers cannot be
// dragged.
func (c *Composer) BeginDrag(id string) (*Drag, bool) {
	l, ok := c.store.Get(id)
	if !ok || l.Locked {
		return nil, false
	}
	c.store.Select(id)
	c.drag = &Drag{c: c, id: id}
	return c.drag, true
}

// ActiveDrag returns the drag in progress, if any.
func (c *Composer) ActiveDrag() (*Drag, bool) {
	return c.drag, c.drag != nil
}

func (d *Drag) LayerID() string { return d.id }

// Move places the dragged layer at the snapped candidate position and
// returns the snap result for guide display.
func (d *Drag) Move(x, y float64) snap.Result {
	c := d.c
	l, ok := c.store.Get(d.id)
	if !ok || c.drag != d {
		return snap.Result{X: x, Y: y}
	}
	res := snap.Snap(l, x, y, c.store.Layers(), c.Dimensions())
	c.store.Update(d.id, layer.Patch{X: &res.X, Y: &res.Y})
	c.observe(false)
	return res
}

// End discards the drag context.
func (d *Drag) End() {
	if d.c.drag == d {
		d.c.drag = nil
	}
}

// BeginImage inserts a placeholder for an image whose natural size is not
// known yet and returns its layer id. A background image retargets the
// existing background layer when there is one. Unsafe URLs are refused.
func (c *Composer) BeginImage(src placement.Source, url string) (string, bool) {
	content := sanitize.URL(url)
	if content == "" || !src.Valid() {
		return "", false
	}
	ctx := placement.Context{
		Canvas:      c.Dimensions(),
		TopZ:        c.store.TopZ(),
		GuestPhotos: c.store.CountRole(layer.RoleGuestPhoto),
	}
	p := pendingImage{source: src, content: content, ctx: ctx}

	if src == placement.Background {
		for _, l := range c.store.Layers() {
			if l.Role == layer.RoleBackground {
				p.replace = true
				c.pending[l.ID] = p
				return l.ID, true
			}
		}
		id := c.store.AddFront(placement.Provisional(src, content, ctx))
		c.pending[id] = p
		c.observe(false)
		return id, true
	}

	id := c.store.Add(placement.Provisional(src, content, ctx))
	c.store.Select(id)
	c.pending[id] = p
	c.observe(false)
	return id, true
}

// ResolveImage finalizes a placeholder once the image decoded.
func (c *Composer) ResolveImage(id string, naturalW, naturalH float64) bool {
	p, ok := c.take(id)
	if !ok {
		return false
	}
	if p.replace {
		c.store.ReplaceBackground(p.content, naturalW, naturalH)
	} else {
		c.reshape(id, placement.Place(p.source, p.content, naturalW, naturalH, p.ctx))
	}
	c.observe(false)
	return true
}

// FailImage finalizes a placeholder whose image could not be decoded with a
// full-canvas fallback.
func (c *Composer) FailImage(id string) bool {
	p, ok := c.take(id)
	if !ok {
		return false
	}
	if p.replace {
		c.store.ReplaceBackground(p.content, 0, 0)
	} else {
		c.reshape(id, placement.Fallback(p.source, p.content, p.ctx))
	}
	c.observe(false)
	return true
}

func (c *Composer) take(id string) (pendingImage, bool) {
	p, ok := c.pending[id]
	if !ok {
		return pendingImage{}, false
	}
	delete(c.pending, id)
	if _, exists := c.store.Get(id); !exists {
		return pendingImage{}, false
	}
	return p, true
}

func (c *Composer) reshape(id string, target layer.Layer) {
	p := layer.Patch{X: &target.X, Y: &target.Y, Width: &target.Width, Height: &target.Height}
	doc := target.Document()
	p.ImageNaturalWidth = doc.ImageNaturalWidth
	p.ImageNaturalHeight = doc.ImageNaturalHeight
	c.store.Update(id, p)
}

// Pending reports whether the layer still waits for its image size.
func (c *Composer) Pending(id string) bool {
	_, ok := c.pending[id]
	return ok
}
