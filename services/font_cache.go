package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
)

const maxFontCSSBytes = 1 << 20

// FontCache holds font stylesheets fetched for the renderer. It lives as
// long as its owner and fetches each URL at most once successfully.
type FontCache struct {
	client *http.Client
	urls   []string

	mu  sync.Mutex
	css map[string]string
}

func NewFontCache(client *http.Client, urls []string) *FontCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &FontCache{client: client, urls: urls, css: make(map[string]string)}
}

// CSS returns every configured stylesheet concatenated. Sheets that fail to
// load are skipped and retried on the next call.
func (f *FontCache) CSS(ctx context.Context) string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	for _, u := range f.urls {
		sheet, err := f.sheet(ctx, u)
		if err != nil {
			log.Printf("[Fonts] %s: %v", u, err)
			continue
		}
		b.WriteString(sheet)
		b.WriteString("\n")
	}
	return b.String()
}

func (f *FontCache) sheet(ctx context.Context, u string) (string, error) {
	f.mu.Lock()
	cached, ok := f.css[u]
	f.mu.Unlock()
	if ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFontCSSBytes))
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.css[u] = string(data)
	f.mu.Unlock()
	return string(data), nil
}

// Reset forgets every cached stylesheet.
func (f *FontCache) Reset() {
	f.mu.Lock()
	clear(f.css)
	f.mu.Unlock()
}
