package templates

import (
	"testing"

	"studioAPI/internal/types/assettype"
	"studioAPI/internal/types/layer"
	"studioAPI/internal/types/project"
)

func byID(ls []layer.Layer) map[string]layer.Layer {
	m := make(map[string]layer.Layer, len(ls))
	for _, l := range ls {
		m[l.ID] = l
	}
	return m
}

func TestGetFallsBackToStandard(t *testing.T) {
	tpl, ok := Get("does-not-exist")
	if ok || tpl.ID != Standard {
		t.Fatalf("expected standard fallback, got %s (%v)", tpl.ID, ok)
	}
	if tpl, ok := Get("debat"); !ok || tpl.ID != Debate {
		t.Fatalf("expected alias to resolve, got %s", tpl.ID)
	}
}

func TestStandardGeometry(t *testing.T) {
	meta := project.Metadata{Title: "Episode", Subtitle: "Sub"}
	ls := byID(Build(Standard, assettype.InstaPostSquare, meta))

	title := ls["title-1"]
	if title.Content != "Episode" || title.Y != 440 || title.Width != 1000 {
		t.Errorf("unexpected title %+v", title)
	}
	if fs, _ := title.FontSize(); fs != 80 {
		t.Errorf("expected font size 80, got %v", fs)
	}
	if bg := ls["bg-1"]; bg.Width != 1080 || bg.Height != 1080 || bg.ZIndex != 0 {
		t.Errorf("background must cover the canvas, got %+v", bg)
	}
	if lg := ls["logo-1"]; lg.Width != 108 || lg.Kind() != layer.KindLogo {
		t.Errorf("unexpected logo %+v", lg)
	}
}

func TestStandardPodcastCover(t *testing.T) {
	ls := byID(Build(Standard, assettype.PodcastCover, project.DefaultMetadata()))
	if fs, _ := ls["title-1"].FontSize(); fs != 180 {
		t.Errorf("expected 180, got %v", fs)
	}
	if fs, _ := ls["sub-1"].FontSize(); fs != 80 {
		t.Errorf("expected 80, got %v", fs)
	}
	if w := ls["logo-1"].Width; w != 300 {
		t.Errorf("expected logo width 300, got %v", w)
	}
}

func TestLogoClampLowerBound(t *testing.T) {
	ls := byID(Build(Standard, assettype.FacebookCover, project.Metadata{}))
	if w := ls["logo-1"].Width; w != 100 {
		t.Fatalf("expected logo clamped to 100, got %v", w)
	}
}

func TestInterviewGuestPhotoIsCircular(t *testing.T) {
	ls := byID(Build(Interview, assettype.InstaStory, project.Metadata{}))
	photo := ls["guest-img-1"]
	if photo.Clip() != layer.ClipCircle || photo.Width != photo.Height {
		t.Fatalf("guest photo must be a square circle, got %vx%v", photo.Width, photo.Height)
	}
	if name := ls["guest-name-1"]; name.Content != "NOM DE L'INVITÉ" {
		t.Fatalf("expected placeholder guest name, got %q", name.Content)
	}
}

func TestTemplatesHaveUniqueIDs(t *testing.T) {
	for _, tpl := range All() {
		for _, at := range assettype.All() {
			seen := map[string]bool{}
			for _, l := range tpl.Layers(at, project.DefaultMetadata()) {
				if seen[l.ID] {
					t.Fatalf("%s/%s: duplicate id %s", tpl.ID, at, l.ID)
				}
				seen[l.ID] = true
			}
		}
	}
}

func TestBuildReturnsFreshLayers(t *testing.T) {
	a := Build(Chronicle, assettype.XPost, project.Metadata{})
	b := Build(Chronicle, assettype.XPost, project.Metadata{})
	a[1].Style.(*layer.TextStyle).FontSize = 1
	if fs, _ := b[1].FontSize(); fs != 30 {
		t.Fatal("templates must not share styles between builds")
	}
}
