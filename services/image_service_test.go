package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDimensionsFromDataURI(t *testing.T) {
	s := NewImageService(nil)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 64, 32))

	w, h, err := s.Dimensions(context.Background(), uri)
	if err != nil {
		t.Fatal(err)
	}
	if w != 64 || h != 32 {
		t.Errorf("got %vx%v", w, h)
	}
}

func TestDimensionsFromURL(t *testing.T) {
	data := pngBytes(t, 20, 40)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo":
			w.Header().Set("Content-Type", "image/png")
			w.Write(data)
		case "/text":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewImageService(srv.Client())
	ctx := context.Background()

	w, h, err := s.Dimensions(ctx, srv.URL+"/photo")
	if err != nil || w != 20 || h != 40 {
		t.Fatalf("got %vx%v, %v", w, h, err)
	}
	if _, _, err := s.Dimensions(ctx, srv.URL+"/text"); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("html page: %v", err)
	}
	if _, _, err := s.Dimensions(ctx, srv.URL+"/missing"); err == nil {
		t.Error("expected an error for a 404")
	}
}

func TestDimensionsSVG(t *testing.T) {
	s := NewImageService(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		src  string
		w, h float64
	}{
		{"attributes", `data:image/svg+xml,<svg xmlns="http://www.w3.org/2000/svg" width="120px" height="80"></svg>`, 120, 80},
		{"viewBox", `data:image/svg+xml,<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 300 150"></svg>`, 300, 150},
		{"percent width", `data:image/svg+xml,<svg xmlns="http://www.w3.org/2000/svg" width="100%25" viewBox="0,0,40,10"></svg>`, 40, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := s.Dimensions(ctx, tt.src)
			if err != nil {
				t.Fatal(err)
			}
			if w != tt.w || h != tt.h {
				t.Errorf("got %vx%v, want %vx%v", w, h, tt.w, tt.h)
			}
		})
	}

	if _, _, err := s.Dimensions(ctx, `data:image/svg+xml,<svg xmlns="http://www.w3.org/2000/svg"></svg>`); err == nil {
		t.Error("svg without any size should fail")
	}
}

func TestDimensionsRejectsUnknownSources(t *testing.T) {
	s := NewImageService(nil)
	ctx := context.Background()

	for _, src := range []string{"ftp://example.com/a.png", "data:text/plain,hello", "data:image/png"} {
		if _, _, err := s.Dimensions(ctx, src); err == nil {
			t.Errorf("%q should be rejected", src)
		}
	}
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		mime string
		size int64
		want error
	}{
		{"image/png", 1024, nil},
		{"image/jpeg; charset=binary", 1024, nil},
		{"image/svg+xml", 10, nil},
		{"application/pdf", 1024, ErrUnsupportedImage},
		{"image/png", MaxImageBytes + 1, ErrImageTooLarge},
	}
	for _, tt := range tests {
		err := ValidateUpload(tt.mime, tt.size)
		if tt.want == nil && err != nil {
			t.Errorf("%s/%d: unexpected %v", tt.mime, tt.size, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%s/%d: got %v, want %v", tt.mime, tt.size, err, tt.want)
		}
	}
}

func TestPublicClientRefusesLocalAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes(t, 8, 8))
	}))
	defer srv.Close()

	s := NewImageService(nil)
	if _, _, err := s.Dimensions(context.Background(), srv.URL+"/photo"); !errors.Is(err, ErrBlockedAddress) {
		t.Fatalf("loopback fetch: got %v, want ErrBlockedAddress", err)
	}
}

func TestPublicAddr(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"93.184.216.34", true},
		{"2606:4700:4700::1111", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.1", false},
		{"192.168.1.10", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"100.64.0.1", false},
		{"0.0.0.0", false},
		{"224.0.0.1", false},
		{"::ffff:127.0.0.1", false},
	}
	for _, tt := range tests {
		if got := publicAddr(netip.MustParseAddr(tt.ip)); got != tt.want {
			t.Errorf("publicAddr(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestPublicClientCapsRedirects(t *testing.T) {
	c := NewPublicClient(time.Second)
	req := httptest.NewRequest(http.MethodGet, "https://example.com/a", nil)
	via := make([]*http.Request, MaxImageRedirects)
	if err := c.CheckRedirect(req, via[:MaxImageRedirects-1]); err != nil {
		t.Errorf("redirect within the cap refused: %v", err)
	}
	if err := c.CheckRedirect(req, via); err == nil {
		t.Error("redirect past the cap should fail")
	}
}

func TestRootRelativeImages(t *testing.T) {
	data := pngBytes(t, 300, 120)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logo-cc-V3-nb-defonce.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()
	ctx := context.Background()

	bare := NewImageService(nil)
	if err := bare.Check("/logo-cc-V3-nb-defonce.png"); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("without a base url: %v", err)
	}

	s := NewImageService(nil, WithBaseURL(srv.URL))
	if err := s.Check("/logo-cc-V3-nb-defonce.png"); err != nil {
		t.Fatalf("check: %v", err)
	}
	w, h, err := s.Dimensions(ctx, "/logo-cc-V3-nb-defonce.png")
	if err != nil || w != 300 || h != 120 {
		t.Fatalf("got %vx%v, %v", w, h, err)
	}
	if _, _, err := s.Dimensions(ctx, srv.URL+"/logo-cc-V3-nb-defonce.png"); !errors.Is(err, ErrBlockedAddress) {
		t.Errorf("absolute urls must still go through the public client: %v", err)
	}
}

func TestCheck(t *testing.T) {
	s := NewImageService(nil)
	for _, src := range []string{"https://example.com/a.png", "http://example.com/b.jpg", "data:image/png;base64,AAAA"} {
		if err := s.Check(src); err != nil {
			t.Errorf("%q: %v", src, err)
		}
	}
	for _, src := range []string{"ftp://example.com/a.png", "//example.com/a.png", "javascript:alert(1)", "photo.png"} {
		if err := s.Check(src); err == nil {
			t.Errorf("%q should be refused", src)
		}
	}
}
