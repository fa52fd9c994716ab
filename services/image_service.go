package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"studioAPI/internal/metrics"

	_ "golang.org/x/image/webp"
)

// MaxImageBytes caps how much of an image is read when measuring it.
const MaxImageBytes = 10 << 20

var (
	ErrImageTooLarge    = errors.New("image exceeds 10 MiB")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

var allowedImageTypes = map[string]bool{
	"image/jpeg":    true,
	"image/jpg":     true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

// ImageService learns the natural size of images referenced by layers.
// Absolute URLs are fetched through client. Root-relative paths name the
// app's own assets and are fetched from the configured base URL through a
// separate client, since that host is trusted and may be private.
type ImageService struct {
	client *http.Client
	assets *http.Client
	base   *url.URL
}

type ImageOption func(*ImageService)

// WithBaseURL sets where root-relative image paths are served from.
func WithBaseURL(raw string) ImageOption {
	return func(s *ImageService) {
		if raw == "" {
			return
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			log.Printf("Ignoring invalid public base URL %q", raw)
			return
		}
		s.base = u
	}
}

// NewImageService uses client for user-supplied URLs; nil selects
// NewPublicClient.
func NewImageService(client *http.Client, opts ...ImageOption) *ImageService {
	if client == nil {
		client = NewPublicClient(15 * time.Second)
	}
	s := &ImageService{
		client: client,
		assets: &http.Client{Timeout: 15 * time.Second, CheckRedirect: sameHostRedirects},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dimensions fetches or decodes src, a data URI, an http(s) URL or a
// root-relative asset path, and returns its pixel size.
func (s *ImageService) Dimensions(ctx context.Context, src string) (float64, float64, error) {
	w, h, err := s.dimensions(ctx, src)
	if err != nil {
		metrics.ImageLoads.WithLabelValues("failed").Inc()
		return 0, 0, err
	}
	metrics.ImageLoads.WithLabelValues("ok").Inc()
	return w, h, nil
}

// Check reports, without any I/O, whether src is a source Dimensions can load.
func (s *ImageService) Check(src string) error {
	_, _, err := s.target(src)
	return err
}

func sameHostRedirects(req *http.Request, via []*http.Request) error {
	if req.URL.Host != via[0].URL.Host {
		return fmt.Errorf("%w: redirect to %s", ErrBlockedAddress, req.URL.Host)
	}
	return limitRedirects(req, via)
}

func rootRelative(src string) bool {
	return strings.HasPrefix(src, "/") && !strings.HasPrefix(src, "//")
}

// target resolves src to the URL to fetch and the client to fetch it with.
// Data URIs yield a nil URL.
func (s *ImageService) target(src string) (*url.URL, *http.Client, error) {
	if strings.HasPrefix(src, "data:") {
		return nil, nil, nil
	}
	u, err := url.Parse(src)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedImage, src)
	}
	if rootRelative(src) {
		if s.base == nil {
			return nil, nil, fmt.Errorf("%w: no public base URL for %q", ErrUnsupportedImage, src)
		}
		return s.base.ResolveReference(u), s.assets, nil
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedImage, src)
	}
	return u, s.client, nil
}

func (s *ImageService) dimensions(ctx context.Context, src string) (float64, float64, error) {
	if strings.HasPrefix(src, "data:") {
		mimeType, data, err := decodeDataURI(src)
		if err != nil {
			return 0, 0, err
		}
		return decodeSize(mimeType, data)
	}

	u, client, err := s.target(src)
	if err != nil {
		return 0, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("build image request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	if resp.ContentLength > MaxImageBytes {
		return 0, 0, ErrImageTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return 0, 0, fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return 0, 0, ErrImageTooLarge
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return decodeSize(mimeType, data)
}

// ValidateUpload checks the declared type and size of an uploaded file.
func ValidateUpload(mimeType string, size int64) error {
	if size > MaxImageBytes {
		return ErrImageTooLarge
	}
	if !allowedImageTypes[baseMIME(mimeType)] {
		return fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}
	return nil
}

func baseMIME(v string) string {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

func decodeDataURI(src string) (string, []byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return "", nil, errors.New("malformed data uri")
	}
	isBase64 := strings.HasSuffix(header, ";base64")
	mimeType := strings.TrimSuffix(header, ";base64")

	if isBase64 {
		if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes {
			return "", nil, ErrImageTooLarge
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("decode data uri: %w", err)
		}
		return mimeType, data, nil
	}
	if len(payload) > MaxImageBytes {
		return "", nil, ErrImageTooLarge
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data uri: %w", err)
	}
	return mimeType, []byte(text), nil
}

func decodeSize(mimeType string, data []byte) (float64, float64, error) {
	mt := baseMIME(mimeType)
	if !allowedImageTypes[mt] {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}
	if mt == "image/svg+xml" {
		return svgSize(data)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image: %w", err)
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}

type svgRoot struct {
	Width   string `xml:"width,attr"`
	Height  string `xml:"height,attr"`
	ViewBox string `xml:"viewBox,attr"`
}

// svgSize reads width/height from the root element, falling back to the
// viewBox.
func svgSize(data []byte) (float64, float64, error) {
	var root svgRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return 0, 0, fmt.Errorf("decode svg: %w", err)
	}
	w, errW := svgLength(root.Width)
	h, errH := svgLength(root.Height)
	if errW == nil && errH == nil {
		return w, h, nil
	}
	fields := strings.Fields(strings.ReplaceAll(root.ViewBox, ",", " "))
	if len(fields) == 4 {
		vw, errW := strconv.ParseFloat(fields[2], 64)
		vh, errH := strconv.ParseFloat(fields[3], 64)
		if errW == nil && errH == nil && vw > 0 && vh > 0 {
			return vw, vh, nil
		}
	}
	log.Printf("svg without usable size: width=%q height=%q viewBox=%q", root.Width, root.Height, root.ViewBox)
	return 0, 0, errors.New("svg has no intrinsic size")
}

func svgLength(v string) (float64, error) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, errors.New("non-positive length")
	}
	return f, nil
}
