package assettype

import (
	"regexp"
	"strings"
)

type AssetType string

const (
	InstaPostSquare    AssetType = "Instagram Post Carré (1080x1080)"
	InstaPostPortrait  AssetType = "Instagram Post Portrait (1080x1350)"
	InstaPostLandscape AssetType = "Instagram Post Paysage (1080x566)"
	InstaStory         AssetType = "Instagram Story/Reel (1080x1920)"

	FacebookPost       AssetType = "Facebook Post (1200x630)"
	FacebookPostSquare AssetType = "Facebook Post Carré (1080x1080)"
	FacebookStory      AssetType = "Facebook Story (1080x1920)"
	FacebookCover      AssetType = "Facebook Couverture (820x312)"

	XPost       AssetType = "X/Twitter Post (1200x675)"
	XPostSquare AssetType = "X/Twitter Carré (1200x1200)"
	XBanner     AssetType = "X/Twitter Bannière (1500x500)"

	LinkedInPost   AssetType = "LinkedIn Post (1200x627)"
	LinkedInBanner AssetType = "LinkedIn Bannière (1584x396)"

	YouTubeThumbnail AssetType = "YouTube Miniature (1280x720)"
	YouTubeBanner    AssetType = "YouTube Bannière (2048x1152)"

	TikTokVideo AssetType = "TikTok (1080x1920)"

	PinterestStandard AssetType = "Pinterest Standard (1000x1500)"
	PinterestSquare   AssetType = "Pinterest Carré (1000x1000)"

	PodcastCover AssetType = "Podcast Cover (3000x3000)"
	OGImage      AssetType = "OG Image / Web (1200x630)"

	Square1080    AssetType = "Format Carré 1080 (1080x1080)"
	Vertical916   AssetType = "Format Vertical 9:16 (1080x1920)"
	Horizontal169 AssetType = "Format Horizontal 16:9 (1920x1080)"
)

// Default is the format a fresh session starts in.
const Default = InstaPostSquare

// Dimensions is a canvas size in full-resolution pixels.
type Dimensions struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type entry struct {
	t    AssetType
	dims Dimensions
}

// catalogue keeps the display order of the format picker.
var catalogue = []entry{
	{InstaPostSquare, Dimensions{1080, 1080}},
	{InstaPostPortrait, Dimensions{1080, 1350}},
	{InstaPostLandscape, Dimensions{1080, 566}},
	{InstaStory, Dimensions{1080, 1920}},
	{FacebookPost, Dimensions{1200, 630}},
	{FacebookPostSquare, Dimensions{1080, 1080}},
	{FacebookStory, Dimensions{1080, 1920}},
	{FacebookCover, Dimensions{820, 312}},
	{XPost, Dimensions{1200, 675}},
	{XPostSquare, Dimensions{1200, 1200}},
	{XBanner, Dimensions{1500, 500}},
	{LinkedInPost, Dimensions{1200, 627}},
	{LinkedInBanner, Dimensions{1584, 396}},
	{YouTubeThumbnail, Dimensions{1280, 720}},
	{YouTubeBanner, Dimensions{2048, 1152}},
	{TikTokVideo, Dimensions{1080, 1920}},
	{PinterestStandard, Dimensions{1000, 1500}},
	{PinterestSquare, Dimensions{1000, 1000}},
	{PodcastCover, Dimensions{3000, 3000}},
	{OGImage, Dimensions{1200, 630}},
	{Square1080, Dimensions{1080, 1080}},
	{Vertical916, Dimensions{1080, 1920}},
	{Horizontal169, Dimensions{1920, 1080}},
}

var byName = func() map[AssetType]Dimensions {
	m := make(map[AssetType]Dimensions, len(catalogue))
	for _, e := range catalogue {
		m[e.t] = e.dims
	}
	return m
}()

// Dimensions returns the pixel size of the format.
func (a AssetType) Dimensions() (Dimensions, bool) {
	d, ok := byName[a]
	return d, ok
}

func (a AssetType) Valid() bool {
	_, ok := byName[a]
	return ok
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// Slug is the file-name stem used for exported files, e.g. "instagram_post_carr_".
func (a AssetType) Slug() string {
	name, _, _ := strings.Cut(string(a), " (")
	return nonAlnum.ReplaceAllString(strings.ToLower(name), "_")
}

// All returns every format in display order.
func All() []AssetType {
	out := make([]AssetType, 0, len(catalogue))
	for _, e := range catalogue {
		out = append(out, e.t)
	}
	return out
}

// Info is the catalogue entry served to clients.
type Info struct {
	ID     AssetType `json:"id"`
	Width  float64   `json:"width"`
	Height float64   `json:"height"`
}

func Catalogue() []Info {
	out := make([]Info, 0, len(catalogue))
	for _, e := range catalogue {
		out = append(out, Info{ID: e.t, Width: e.dims.W, Height: e.dims.H})
	}
	return out
}
