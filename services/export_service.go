package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"studioAPI/internal/adapt"
	"studioAPI/internal/metrics"
	"studioAPI/internal/types/assettype"
	"studioAPI/internal/types/layer"
	"studioAPI/internal/types/project"
)

type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatWebP ImageFormat = "webp"
	FormatSVG  ImageFormat = "svg"
)

func (f ImageFormat) Valid() bool {
	switch f {
	case FormatPNG, FormatWebP, FormatSVG:
		return true
	}
	return false
}

func (f ImageFormat) ContentType() string {
	switch f {
	case FormatWebP:
		return "image/webp"
	case FormatSVG:
		return "image/svg+xml"
	}
	return "image/png"
}

var ErrUnsupportedFormat = errors.New("unsupported export format")

// RenderRequest is everything a renderer needs to rasterize one canvas.
type RenderRequest struct {
	Layers        []layer.Layer        `json:"layers"`
	Meta          project.Metadata     `json:"meta"`
	AssetType     assettype.AssetType  `json:"assetType"`
	Dimensions    assettype.Dimensions `json:"dimensions"`
	Format        ImageFormat          `json:"format"`
	IsTransparent bool                 `json:"isTransparent"`
	FontCSS       string               `json:"fontCss,omitempty"`
}

type Renderer interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// RemoteRenderer posts render requests to an external rendering service.
type RemoteRenderer struct {
	url    string
	client *http.Client
}

func NewRemoteRenderer(url string, client *http.Client) *RemoteRenderer {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &RemoteRenderer{url: url, client: client}
}

func (r *RemoteRenderer) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode render request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", req.Format.ContentType())

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("render: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return io.ReadAll(resp.Body)
}

// ExportService builds the downloadable files of a project.
type ExportService struct {
	renderer Renderer
	fonts    *FontCache
}

// NewExportService accepts a nil renderer; image exports then fail with
// ErrRendererDisabled while JSON export keeps working.
func NewExportService(renderer Renderer, fonts *FontCache) *ExportService {
	return &ExportService{renderer: renderer, fonts: fonts}
}

// Export is a generated file.
type Export struct {
	FileName    string
	ContentType string
	Data        []byte
}

// BatchReport lists the formats included in, and skipped from, a batch.
type BatchReport struct {
	Included []assettype.AssetType `json:"included"`
	Failed   []assettype.AssetType `json:"failed"`
}

func titleSlug(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), "-"))
}

// ProjectJSON serializes the project document.
func (s *ExportService) ProjectJSON(st project.State) (*Export, error) {
	data, err := json.MarshalIndent(st.Export(), "", "  ")
	if err != nil {
		metrics.Exports.WithLabelValues("json", "failed").Inc()
		return nil, fmt.Errorf("encode project: %w", err)
	}
	metrics.Exports.WithLabelValues("json", "ok").Inc()
	return &Export{
		FileName:    "rc-project-" + titleSlug(st.Meta.Title) + ".json",
		ContentType: "application/json",
		Data:        data,
	}, nil
}

// ImportProject parses a project document into a state ready to load.
func (s *ExportService) ImportProject(data []byte) (project.State, error) {
	exp, err := project.ParseExport(data)
	if err != nil {
		return project.State{}, err
	}
	return exp.State(), nil
}

// Image renders the current canvas.
func (s *ExportService) Image(ctx context.Context, st project.State, format ImageFormat) (*Export, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	data, err := s.render(ctx, st.Layers, st.Meta, st.AssetType, format)
	if err != nil {
		metrics.Exports.WithLabelValues(string(format), "failed").Inc()
		return nil, err
	}
	metrics.Exports.WithLabelValues(string(format), "ok").Inc()
	return &Export{
		FileName:    "rc-asset-" + titleSlug(st.Meta.Title) + "." + string(format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

func (s *ExportService) render(ctx context.Context, ls []layer.Layer, meta project.Metadata, at assettype.AssetType, format ImageFormat) ([]byte, error) {
	if s.renderer == nil {
		return nil, ErrRendererDisabled
	}
	dims, ok := at.Dimensions()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAssetType, at)
	}
	return s.renderer.Render(ctx, RenderRequest{
		Layers:        ls,
		Meta:          meta,
		AssetType:     at,
		Dimensions:    dims,
		Format:        format,
		IsTransparent: meta.IsTransparent,
		FontCSS:       s.fonts.CSS(ctx),
	})
}

// Batch renders the project as a PNG for each target format and zips the
// results. Every target is laid out on an adapted copy of the layers, so st
// is left untouched. Targets that fail to render are skipped and reported;
// the batch fails only when nothing rendered. An empty targets list means
// every format.
func (s *ExportService) Batch(ctx context.Context, st project.State, targets []assettype.AssetType) (*Export, BatchReport, error) {
	var report BatchReport
	if s.renderer == nil {
		return nil, report, ErrRendererDisabled
	}
	if len(targets) == 0 {
		targets = assettype.All()
	}
	from, ok := st.AssetType.Dimensions()
	if !ok {
		return nil, report, fmt.Errorf("%w: %q", ErrUnknownAssetType, st.AssetType)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := make(map[string]int)

	for _, at := range targets {
		to, ok := at.Dimensions()
		if !ok {
			report.Failed = append(report.Failed, at)
			continue
		}
		data, err := s.render(ctx, adapt.Adapt(st.Layers, from, to), st.Meta, at, FormatPNG)
		if err != nil {
			log.Printf("[Export] batch entry %q failed: %v", at, err)
			report.Failed = append(report.Failed, at)
			continue
		}

		name := at.Slug()
		if n := used[name]; n > 0 {
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		used[at.Slug()]++

		w, err := zw.Create(name + ".png")
		if err != nil {
			return nil, report, fmt.Errorf("zip entry: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, report, fmt.Errorf("zip entry: %w", err)
		}
		report.Included = append(report.Included, at)
	}

	if err := zw.Close(); err != nil {
		return nil, report, fmt.Errorf("close zip: %w", err)
	}
	if len(report.Included) == 0 {
		metrics.Exports.WithLabelValues("zip", "failed").Inc()
		return nil, report, errors.New("no format could be rendered")
	}
	metrics.Exports.WithLabelValues("zip", "ok").Inc()
	return &Export{
		FileName:    "rc-bundle-" + titleSlug(st.Meta.Title) + ".zip",
		ContentType: "application/zip",
		Data:        buf.Bytes(),
	}, report, nil
}
