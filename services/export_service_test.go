package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"studioAPI/internal/types/assettype"
)

type fakeRenderer struct {
	mu       sync.Mutex
	requests []RenderRequest
	fail     map[assettype.AssetType]bool
}

func (f *fakeRenderer) Render(_ context.Context, req RenderRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.fail[req.AssetType] {
		return nil, errors.New("renderer crashed")
	}
	return []byte("img:" + string(req.AssetType)), nil
}

func TestProjectJSONAndImport(t *testing.T) {
	s := NewExportService(nil, nil)
	st := sampleState()
	st.Meta.Title = "  Mon Grand   Show "

	exp, err := s.ProjectJSON(st)
	if err != nil {
		t.Fatal(err)
	}
	if exp.FileName != "rc-project-mon-grand-show.json" {
		t.Errorf("file name = %q", exp.FileName)
	}
	if exp.ContentType != "application/json" {
		t.Errorf("content type = %q", exp.ContentType)
	}

	back, err := s.ImportProject(exp.Data)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(st) {
		t.Error("imported project differs from the exported one")
	}

	if _, err := s.ImportProject([]byte("{not json")); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestImageExport(t *testing.T) {
	r := &fakeRenderer{}
	s := NewExportService(r, nil)
	st := sampleState()
	st.Meta.IsTransparent = true

	exp, err := s.Image(context.Background(), st, FormatWebP)
	if err != nil {
		t.Fatal(err)
	}
	if exp.FileName != "rc-asset-titre-de-l'émission.webp" || exp.ContentType != "image/webp" {
		t.Errorf("got %q %q", exp.FileName, exp.ContentType)
	}
	if len(r.requests) != 1 {
		t.Fatalf("expected one render, got %d", len(r.requests))
	}
	req := r.requests[0]
	if !req.IsTransparent || req.Dimensions != (assettype.Dimensions{W: 1080, H: 1080}) {
		t.Errorf("unexpected request %+v", req)
	}

	if _, err := s.Image(context.Background(), st, "gif"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("gif: %v", err)
	}
}

func TestImageExportWithoutRenderer(t *testing.T) {
	s := NewExportService(nil, nil)
	if _, err := s.Image(context.Background(), sampleState(), FormatPNG); !errors.Is(err, ErrRendererDisabled) {
		t.Fatalf("got %v", err)
	}
	if _, _, err := s.Batch(context.Background(), sampleState(), nil); !errors.Is(err, ErrRendererDisabled) {
		t.Fatalf("got %v", err)
	}
}

func TestBatchSkipsFailedFormats(t *testing.T) {
	r := &fakeRenderer{fail: map[assettype.AssetType]bool{assettype.Vertical916: true}}
	s := NewExportService(r, nil)
	st := sampleState()
	before := st.Clone()

	exp, report, err := s.Batch(context.Background(), st, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Equal(before) {
		t.Error("batch export must not modify the project")
	}

	all := assettype.All()
	if len(report.Included) != len(all)-1 || len(report.Failed) != 1 || report.Failed[0] != assettype.Vertical916 {
		t.Fatalf("unexpected report %+v", report)
	}
	if exp.ContentType != "application/zip" {
		t.Errorf("content type = %q", exp.ContentType)
	}

	zr, err := zip.NewReader(bytes.NewReader(exp.Data), int64(len(exp.Data)))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	if len(names) != len(report.Included) {
		t.Fatalf("zip holds %v", names)
	}
	for _, at := range report.Included {
		found := false
		for _, n := range names {
			if n == at.Slug()+".png" {
				found = true
			}
		}
		if !found {
			t.Errorf("missing entry for %q in %v", at, names)
		}
	}

	for _, req := range r.requests {
		want, _ := req.AssetType.Dimensions()
		if req.Dimensions != want || req.Format != FormatPNG {
			t.Errorf("render %q got %+v as %s", req.AssetType, req.Dimensions, req.Format)
		}
	}
}

func TestBatchFailsWhenNothingRenders(t *testing.T) {
	r := &fakeRenderer{fail: map[assettype.AssetType]bool{assettype.InstaPostSquare: true}}
	s := NewExportService(r, nil)

	_, report, err := s.Batch(context.Background(), sampleState(), []assettype.AssetType{assettype.InstaPostSquare, "bogus"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(report.Failed) != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestRemoteRenderer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Accept") != "image/png" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Write([]byte("PNGDATA"))
	}))
	defer srv.Close()

	r := NewRemoteRenderer(srv.URL, srv.Client())
	data, err := r.Render(context.Background(), RenderRequest{Format: FormatPNG})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "PNGDATA" {
		t.Errorf("got %q", data)
	}

	if _, err := r.Render(context.Background(), RenderRequest{Format: FormatSVG}); err == nil {
		t.Error("non-200 answer should fail")
	}
}

func TestFontCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/broken" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("@font-face{font-family:Anton}"))
	}))
	defer srv.Close()

	f := NewFontCache(srv.Client(), []string{srv.URL + "/fonts.css", srv.URL + "/broken"})
	css := f.CSS(context.Background())
	if css == "" || !bytes.Contains([]byte(css), []byte("Anton")) {
		t.Fatalf("css = %q", css)
	}
	f.CSS(context.Background())
	if hits.Load() != 3 {
		t.Errorf("successful sheets should be cached, server hits = %d", hits.Load())
	}

	var nilCache *FontCache
	if nilCache.CSS(context.Background()) != "" {
		t.Error("nil cache should yield no css")
	}
}
