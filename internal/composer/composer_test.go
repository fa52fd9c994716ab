package composer

import (
	"fmt"
	"math"
	"testing"
	"time"

	"studioAPI/internal/layers"
	"studioAPI/internal/placement"
	"studioAPI/internal/types/assettype"
	"studioAPI/internal/types/layer"
	"studioAPI/internal/types/project"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newComposer(t *testing.T, initial project.State, extra ...Option) (*Composer, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	n := 0
	opts := []Option{
		WithDelays(time.Hour, time.Hour),
		WithClock(clk.now),
		WithStoreOptions(
			layers.WithIDGenerator(func() string { n++; return fmt.Sprintf("gen-%d", n) }),
			layers.WithJitter(func() float64 { return 0 }),
		),
	}
	c := New(initial, append(opts, extra...)...)
	t.Cleanup(c.Close)
	return c, clk
}

func find(t *testing.T, c *Composer, id string) layer.Layer {
	t.Helper()
	l, ok := c.Layer(id)
	if !ok {
		t.Fatalf("layer %s not found", id)
	}
	return l
}

func TestBootstrapAppliesStandardTemplate(t *testing.T) {
	c, _ := newComposer(t, project.State{Meta: project.DefaultMetadata(), AssetType: assettype.InstaPostSquare})
	if got := len(c.State().Layers); got != 4 {
		t.Fatalf("expected 4 template layers, got %d", got)
	}
	if title := find(t, c, "title-1"); title.Content != "TITRE DE L'ÉMISSION" {
		t.Fatalf("unexpected title content %q", title.Content)
	}
	if c.CanUndo() {
		t.Fatal("bootstrap must not be undoable")
	}
}

func TestInvalidAssetTypeFallsBack(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: "nope"})
	if c.AssetType() != assettype.Default {
		t.Fatalf("expected default format, got %s", c.AssetType())
	}
}

func TestMetadataSyncsIntoBoundLayers(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	c.SetMetaField(layer.RoleTitle, "Nouvel épisode")
	if got := find(t, c, "title-1").Content; got != "Nouvel épisode" {
		t.Fatalf("title not synced, got %q", got)
	}
}

func TestMetadataIsSanitizedBeforeSync(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	c.SetMetaField(layer.RoleSubtitle, "<script>x()</script><b>Live</b>")
	if got := c.Meta().Subtitle; got != "Live" {
		t.Fatalf("expected sanitized metadata, got %q", got)
	}
	if got := find(t, c, "sub-1").Content; got != "Live" {
		t.Fatalf("expected sanitized layer content, got %q", got)
	}
}

func TestAssetTypeChangeAdaptsLayers(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	c.SetAssetType(assettype.InstaStory)
	bg := find(t, c, "bg-1")
	if math.Abs(bg.Width-1080) > 1e-9 || math.Abs(bg.Height-1920) > 1e-9 {
		t.Fatalf("background should follow the new canvas, got %vx%v", bg.Width, bg.Height)
	}
	if len(c.State().Layers) != 4 {
		t.Fatal("adaptation must keep the layer set")
	}
}

func TestUndoAfterFormatChangeDoesNotRescale(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	initial := c.State()

	c.SetAssetType(assettype.InstaStory)
	c.FlushHistory()
	adapted := c.State()

	if !c.Undo() {
		t.Fatal("undo failed")
	}
	if !c.State().Equal(initial) {
		t.Fatal("undo must restore the square layout exactly")
	}
	if !c.Redo() {
		t.Fatal("redo failed")
	}
	if !c.State().Equal(adapted) {
		t.Fatal("redo must restore the story layout without adapting it again")
	}
}

func TestEditsCoalesceIntoOneEntry(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	for i := 0; i < 10; i++ {
		x := float64(i * 10)
		c.UpdateLayer("title-1", layer.Patch{X: &x})
	}
	c.FlushHistory()
	if !c.Undo() {
		t.Fatal("expected one entry")
	}
	if c.CanUndo() {
		t.Fatal("rapid edits must coalesce into a single entry")
	}
	if x := find(t, c, "title-1").X; x != 40 {
		t.Fatalf("expected original x 40, got %v", x)
	}
}

func TestUndoFlushesPendingEdit(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	x := 300.0
	c.UpdateLayer("title-1", layer.Patch{X: &x})
	if !c.Undo() {
		t.Fatal("pending edit should be recorded before undo")
	}
	if got := find(t, c, "title-1").X; got != 40 {
		t.Fatalf("expected x 40 after undo, got %v", got)
	}
	if !c.CanRedo() {
		t.Fatal("expected redo to be available")
	}
}

func TestRestoreSuppressesRecording(t *testing.T) {
	c, clk := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	x := 300.0
	c.UpdateLayer("title-1", layer.Patch{X: &x})
	c.Undo()

	y := 10.0
	c.UpdateLayer("title-1", layer.Patch{Y: &y})
	c.FlushHistory()
	if !c.CanRedo() {
		t.Fatal("edit inside the suppression window must not be recorded")
	}

	clk.advance(SuppressWindow + time.Millisecond)
	y = 20
	c.UpdateLayer("title-1", layer.Patch{Y: &y})
	c.FlushHistory()
	if c.CanRedo() {
		t.Fatal("edit after the window should discard the redo branch")
	}
}

func TestLoadIsUndoable(t *testing.T) {
	c, clk := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	before := c.State()

	loaded := project.State{
		AssetType: assettype.YouTubeThumbnail,
		Meta:      project.Metadata{Title: "Imported"},
		Layers: []layer.Layer{{
			ID: "only", Role: layer.RoleTitle, Width: 500, Height: 100,
			Style: &layer.TextStyle{FontSize: 50},
		}},
	}
	c.Load(loaded)
	if c.AssetType() != assettype.YouTubeThumbnail {
		t.Fatalf("unexpected format %s", c.AssetType())
	}
	if l := find(t, c, "only"); l.Width != 500 || l.Content != "Imported" {
		t.Fatalf("loaded layer must keep its geometry and sync content, got %+v", l)
	}

	clk.advance(time.Second)
	if !c.Undo() {
		t.Fatal("undo after load failed")
	}
	if !c.State().Equal(before) {
		t.Fatal("undo should return to the project before the load")
	}
}

func TestAddOptionalLayer(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	id := c.AddOptionalLayer(layer.RoleTitle)
	if id != "title-1" {
		t.Fatalf("expected existing title to be reused, got %s", id)
	}
	c.SetMetaField(layer.RoleTitle, "changed")
	if got := find(t, c, "title-1").Content; got == "changed" {
		t.Fatal("detached layer must not follow metadata")
	}

	guest := c.AddOptionalLayer(layer.RoleGuestName)
	if got := find(t, c, guest).Content; got != "NOM DE L'INVITÉ" {
		t.Fatalf("unexpected placeholder %q", got)
	}
	if c.SelectedID() != guest {
		t.Fatal("new optional layer should be selected")
	}
}

func TestDetachedLayerStaysDetached(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	id := c.AddOptionalLayer(layer.RoleTitle)
	c.UpdateLayer(id, layer.Patch{Content: ptrTo("custom")})

	title := layer.RoleTitle
	c.UpdateLayer(id, layer.Patch{Role: &title})
	c.SetMetaField(layer.RoleTitle, "NEW")
	if l := find(t, c, id); l.Role != layer.RoleManual || l.Content != "custom" {
		t.Fatalf("role=%s content=%q", l.Role, l.Content)
	}

	a := c.AddLayer(layer.Patch{Role: &title})
	b := c.AddLayer(layer.Patch{Role: &title})
	live := 0
	for _, l := range c.State().Layers {
		if l.Role == layer.RoleTitle {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("live title layers = %d", live)
	}
	if find(t, c, a).Content != "NEW" || find(t, c, b).Role != layer.RoleManual {
		t.Error("only the first added title layer should bind")
	}
}

func ptrTo[T any](v T) *T { return &v }

func TestApplyTemplateReplacesLayers(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	c.Select("title-1")
	c.ApplyTemplate("chronicle")
	if _, ok := c.Layer("bg-1"); ok {
		t.Fatal("previous layers must be discarded")
	}
	if _, ok := c.Layer("line-1"); !ok {
		t.Fatal("chronicle rule line missing")
	}
	if c.SelectedID() != "" {
		t.Fatal("template application clears the selection")
	}
}

func TestRemovingEveryLayerRebuildsTemplate(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	for _, l := range c.State().Layers {
		c.RemoveLayer(l.ID)
	}
	if len(c.State().Layers) == 0 {
		t.Fatal("an empty canvas is repopulated from the standard template")
	}
}

func TestDragSnaps(t *testing.T) {
	c, _ := newComposer(t, project.State{
		AssetType: assettype.InstaPostSquare,
		Layers: []layer.Layer{
			{ID: "a", Role: layer.RoleManual, X: 0, Y: 300, Width: 100, Height: 100, Style: &layer.GradientStyle{}},
			{ID: "b", Role: layer.RoleManual, X: 200, Y: 300, Width: 100, Height: 100, Style: &layer.GradientStyle{}},
			{ID: "c", Role: layer.RoleManual, X: 600, Y: 700, Width: 100, Height: 33, Style: &layer.GradientStyle{}},
		},
	})
	d, ok := c.BeginDrag("c")
	if !ok {
		t.Fatal("drag refused")
	}
	res := d.Move(98, 703)
	if res.X != 100 || res.Guides.X == nil || *res.Guides.X != 100 {
		t.Fatalf("expected snap to 100, got %+v", res)
	}
	if got := find(t, c, "c").X; got != 100 {
		t.Fatalf("layer not moved to snapped x, got %v", got)
	}
	d.End()
	if _, active := c.ActiveDrag(); active {
		t.Fatal("drag context should be discarded")
	}
}

func TestLockedLayerCannotBeDragged(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	locked := true
	c.UpdateLayer("logo-1", layer.Patch{IsLocked: &locked})
	if _, ok := c.BeginDrag("logo-1"); ok {
		t.Fatal("locked layer should not be draggable")
	}
}

func TestImageTwoPhaseInsert(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	id, ok := c.BeginImage(placement.Upload, "https://example.com/photo.png")
	if !ok || !c.Pending(id) {
		t.Fatal("expected a pending placeholder")
	}
	if !c.ResolveImage(id, 1600, 800) {
		t.Fatal("resolve failed")
	}
	l := find(t, c, id)
	if l.Width != 648 || l.Height != 324 || l.X != 50 {
		t.Fatalf("unexpected resolved geometry %+v", l)
	}
	if st := l.Style.(*layer.ImageStyle); st.NaturalWidth != 1600 {
		t.Fatalf("natural size not recorded: %+v", st)
	}
	if c.ResolveImage(id, 1, 1) {
		t.Fatal("a placeholder resolves only once")
	}
}

func TestImageFailureFallsBackToCanvas(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	id, _ := c.BeginImage(placement.Generated, "https://example.com/broken.png")
	if !c.FailImage(id) {
		t.Fatal("fail should finalize the placeholder")
	}
	l := find(t, c, id)
	if l.X != 0 || l.Y != 0 || l.Width != 1080 || l.Height != 1080 {
		t.Fatalf("expected full-canvas fallback, got %+v", l)
	}
}

func TestImageRemovedWhileLoading(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	id, _ := c.BeginImage(placement.Upload, "https://example.com/photo.png")
	c.RemoveLayer(id)
	before := c.State()
	if c.ResolveImage(id, 100, 100) {
		t.Fatal("resolving a removed placeholder must be a no-op")
	}
	if !c.State().Equal(before) {
		t.Fatal("state changed")
	}
}

func TestBackgroundImageRetargetsExisting(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	count := len(c.State().Layers)
	id, ok := c.BeginImage(placement.Background, "/uploads/bg.jpg")
	if !ok || id != "bg-1" {
		t.Fatalf("expected existing background, got %s", id)
	}
	c.ResolveImage(id, 2000, 1000)
	if len(c.State().Layers) != count {
		t.Fatal("background replace must not add a layer")
	}
	if got := find(t, c, "bg-1").Content; got != "/uploads/bg.jpg" {
		t.Fatalf("unexpected background content %q", got)
	}
}

func TestUnsafeImageURLRefused(t *testing.T) {
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare})
	if _, ok := c.BeginImage(placement.Upload, "javascript:alert(1)"); ok {
		t.Fatal("unsafe url accepted")
	}
}

func TestCloseFlushesAutosave(t *testing.T) {
	var saved []project.State
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare},
		WithAutosave(func(s project.State) { saved = append(saved, s) }))
	c.SetMetaField(layer.RoleTitle, "Saved title")
	c.Close()
	if len(saved) != 1 || saved[0].Meta.Title != "Saved title" {
		t.Fatalf("expected one autosave with the latest state, got %d", len(saved))
	}
}

func TestDispatchSerializesTimers(t *testing.T) {
	queue := make(chan func(), 4)
	c, _ := newComposer(t, project.State{AssetType: assettype.InstaPostSquare},
		WithDelays(time.Millisecond, time.Hour),
		WithDispatch(func(f func()) { queue <- f }))

	c.SetMetaField(layer.RoleTitle, "queued")
	select {
	case f := <-queue:
		f()
	case <-time.After(time.Second):
		t.Fatal("history fire was not dispatched")
	}
	if !c.CanUndo() {
		t.Fatal("dispatched fire should record the change")
	}
}
