package snapshot

import (
	"github.com/PuerkitoBio/goquery"
)

// PageDoc is one parsed page held for slicing. Raw goquery handles never
// leave this package; slices are plain JSON-serializable structures.
type PageDoc struct {
	URL        string
	Title      string
	Lang       string
	StatusCode int
	Doc        *goquery.Document
}

// Snapshot is the extractor output: a common base plus one slice per axis.
type Snapshot struct {
	Base   *BaseSnapshot  `json:"base"`
	Slices map[string]any `json:"slices"` // axis key → axis-specific slice
}

// BaseSnapshot summarizes the crawl for every module's shared context.
type BaseSnapshot struct {
	RootURL    string      `json:"root_url"`
	PageCount  int         `json:"page_count"`
	Pages      []PageStats `json:"pages"`
	TotalLinks int         `json:"total_links"`
	TotalForms int         `json:"total_forms"`
}

// PageStats is the per-page summary inside the base snapshot.
type PageStats struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Lang      string `json:"lang"`
	Status    int    `json:"status"`
	Headings  int    `json:"headings"`
	Images    int    `json:"images"`
	Links     int    `json:"links"`
	Forms     int    `json:"forms"`
	Landmarks int    `json:"landmarks"`
}

// ImageInfo describes one non-text element for the 1.1 slice.
type ImageInfo struct {
	Page            string `json:"page"`
	Tag             string `json:"tag"`
	Src             string `json:"src,omitempty"`
	Alt             string `json:"alt,omitempty"`
	HasAlt          bool   `json:"has_alt"`
	Role            string `json:"role,omitempty"`
	AriaLabel       string `json:"aria_label,omitempty"`
	AriaDescribedby string `json:"aria_describedby,omitempty"`
	Context         string `json:"context,omitempty"` // surrounding text, truncated
}

// MediaInfo describes one audio/video element or recognized embed for 1.2.
type MediaInfo struct {
	Page        string   `json:"page"`
	Tag         string   `json:"tag"`
	Src         string   `json:"src,omitempty"`
	Provider    string   `json:"provider,omitempty"` // youtube, vimeo for embeds
	TrackKinds  []string `json:"track_kinds,omitempty"`
	Autoplay    bool     `json:"autoplay"`
	HasControls bool     `json:"has_controls"`
}

// HeadingInfo is one heading in document order for 1.3 / 2.4.
type HeadingInfo struct {
	Page  string `json:"page"`
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// TableInfo summarizes one table's header/caption usage for 1.3.
type TableInfo struct {
	Page       string `json:"page"`
	HeaderRows int    `json:"header_cells"`
	HasCaption bool   `json:"has_caption"`
	HasScope   bool   `json:"has_scope"`
}

// FormFieldInfo describes one input/select/textarea and its labeling.
type FormFieldInfo struct {
	Page            string `json:"page"`
	Tag             string `json:"tag"`
	Type            string `json:"type,omitempty"`
	ID              string `json:"id,omitempty"`
	Name            string `json:"name,omitempty"`
	HasLabel        bool   `json:"has_label"`
	AriaLabel       string `json:"aria_label,omitempty"`
	AriaDescribedby string `json:"aria_describedby,omitempty"`
	Placeholder     string `json:"placeholder,omitempty"`
	Required        bool   `json:"required"`
	Autocomplete    string `json:"autocomplete,omitempty"`
}

// LinkInfo is one anchor with its accessible text for 2.4.
type LinkInfo struct {
	Page      string `json:"page"`
	Href      string `json:"href"`
	Text      string `json:"text"`
	AriaLabel string `json:"aria_label,omitempty"`
	NewWindow bool   `json:"new_window"`
}

// InteractiveInfo is one scripted or focus-managed element for 2.1.
type InteractiveInfo struct {
	Page     string `json:"page"`
	Tag      string `json:"tag"`
	Role     string `json:"role,omitempty"`
	TabIndex string `json:"tabindex,omitempty"`
	OnClick  bool   `json:"onclick"`
	KeyHooks bool   `json:"key_handlers"`
	Text     string `json:"text,omitempty"`
}

// LangPartInfo is one element carrying its own lang attribute for 3.1.
type LangPartInfo struct {
	Page string `json:"page"`
	Tag  string `json:"tag"`
	Lang string `json:"lang"`
	Text string `json:"text,omitempty"`
}

// AriaIssueInfo flags suspicious ARIA usage for 4.1.
type AriaIssueInfo struct {
	Page      string `json:"page"`
	Tag       string `json:"tag"`
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
	Issue     string `json:"issue"`
}
