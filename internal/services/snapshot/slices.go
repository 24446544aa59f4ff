package snapshot

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func (e *Extractor) registerDefaultSlicers() {
	e.Register("1_1_text_alternatives", sliceTextAlternatives)
	e.Register("1_2_time_based_media", sliceTimeBasedMedia)
	e.Register("1_3_adaptable", sliceAdaptable)
	e.Register("1_4_distinguishable", sliceDistinguishable)
	e.Register("2_1_keyboard", sliceKeyboard)
	e.Register("2_2_enough_time", sliceEnoughTime)
	e.Register("2_3_seizures", sliceSeizures)
	e.Register("2_4_navigable", sliceNavigable)
	e.Register("3_1_readable", sliceReadable)
	e.Register("3_2_predictable", slicePredictable)
	e.Register("3_3_input_assistance", sliceInputAssistance)
	e.Register("4_1_compatible", sliceCompatible)
}

// ----- 1.1 Text Alternatives -----

func sliceTextAlternatives(pages []PageDoc) any {
	var images []ImageInfo
	for _, p := range pages {
		p.Doc.Find("img, input[type=image], area, object, svg[role=img], [role=img]").Each(func(_ int, s *goquery.Selection) {
			tag := goquery.NodeName(s)
			alt, hasAlt := s.Attr("alt")
			info := ImageInfo{
				Page:            p.URL,
				Tag:             tag,
				Src:             firstAttr(s, "src", "data"),
				Alt:             alt,
				HasAlt:          hasAlt,
				Role:            attr(s, "role"),
				AriaLabel:       attr(s, "aria-label"),
				AriaDescribedby: attr(s, "aria-describedby"),
				Context:         truncate(s.Parent().Text(), 120),
			}
			images = append(images, info)
		})
	}
	return map[string]any{
		"images": images,
		"count":  len(images),
	}
}

// ----- 1.2 Time-based Media -----

func sliceTimeBasedMedia(pages []PageDoc) any {
	var media []MediaInfo
	var transcriptLinks []LinkInfo
	for _, p := range pages {
		p.Doc.Find("video, audio").Each(func(_ int, s *goquery.Selection) {
			info := MediaInfo{
				Page:        p.URL,
				Tag:         goquery.NodeName(s),
				Src:         firstAttr(s, "src"),
				Autoplay:    hasAttr(s, "autoplay"),
				HasControls: hasAttr(s, "controls"),
			}
			s.Find("track").Each(func(_ int, tr *goquery.Selection) {
				if kind := attr(tr, "kind"); kind != "" {
					info.TrackKinds = append(info.TrackKinds, kind)
				}
			})
			media = append(media, info)
		})
		p.Doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
			src := attr(s, "src")
			provider := embedProvider(src)
			if provider == "" {
				return
			}
			media = append(media, MediaInfo{
				Page:     p.URL,
				Tag:      "iframe",
				Src:      src,
				Provider: provider,
			})
		})
		p.Doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			text := strings.ToLower(s.Text())
			if strings.Contains(text, "transcript") || strings.Contains(text, "transkript") {
				transcriptLinks = append(transcriptLinks, LinkInfo{
					Page: p.URL,
					Href: attr(s, "href"),
					Text: truncate(s.Text(), 80),
				})
			}
		})
	}
	return map[string]any{
		"media":            media,
		"transcript_links": transcriptLinks,
		"count":            len(media),
	}
}

func embedProvider(src string) string {
	src = strings.ToLower(src)
	switch {
	case strings.Contains(src, "youtube.com") || strings.Contains(src, "youtu.be"):
		return "youtube"
	case strings.Contains(src, "vimeo.com"):
		return "vimeo"
	case strings.Contains(src, "dailymotion.com"):
		return "dailymotion"
	}
	return ""
}

// ----- 1.3 Adaptable -----

func sliceAdaptable(pages []PageDoc) any {
	headings := collectHeadings(pages)
	var tables []TableInfo
	var fields []FormFieldInfo
	landmarks := make(map[string]int)
	listCounts := map[string]int{}

	for _, p := range pages {
		p.Doc.Find("table").Each(func(_ int, s *goquery.Selection) {
			tables = append(tables, TableInfo{
				Page:       p.URL,
				HeaderRows: s.Find("th").Length(),
				HasCaption: s.Find("caption").Length() > 0,
				HasScope:   s.Find("th[scope]").Length() > 0,
			})
		})
		fields = append(fields, collectFormFields(p)...)
		for _, lm := range []string{"main", "nav", "header", "footer", "aside"} {
			landmarks[lm] += p.Doc.Find(lm).Length()
		}
		listCounts["ul"] += p.Doc.Find("ul").Length()
		listCounts["ol"] += p.Doc.Find("ol").Length()
		listCounts["dl"] += p.Doc.Find("dl").Length()
	}
	return map[string]any{
		"headings":    headings,
		"tables":      tables,
		"form_fields": fields,
		"landmarks":   landmarks,
		"lists":       listCounts,
	}
}

// ----- 1.4 Distinguishable -----

func sliceDistinguishable(pages []PageDoc) any {
	type styleHint struct {
		Page  string `json:"page"`
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
	var hints []styleHint
	for _, p := range pages {
		if meta, ok := p.Doc.Find("meta[name=viewport]").Attr("content"); ok {
			hints = append(hints, styleHint{Page: p.URL, Kind: "viewport", Value: meta})
		}
		p.Doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
			style := strings.ToLower(attr(s, "style"))
			if strings.Contains(style, "color") || strings.Contains(style, "font-size") {
				hints = append(hints, styleHint{Page: p.URL, Kind: "inline_style", Value: truncate(style, 160)})
			}
		})
		p.Doc.Find("style").Each(func(_ int, s *goquery.Selection) {
			css := strings.ToLower(s.Text())
			for _, needle := range []string{"outline: none", "outline:none", "outline: 0", "outline:0"} {
				if strings.Contains(css, needle) {
					hints = append(hints, styleHint{Page: p.URL, Kind: "focus_outline_removed", Value: needle})
					break
				}
			}
			if strings.Contains(css, "px") && strings.Contains(css, "font-size") {
				hints = append(hints, styleHint{Page: p.URL, Kind: "px_font_size", Value: "font-size declared in px"})
			}
		})
	}
	return map[string]any{
		"style_hints": hints,
	}
}

// ----- 2.1 Keyboard -----

func sliceKeyboard(pages []PageDoc) any {
	var interactive []InteractiveInfo
	for _, p := range pages {
		p.Doc.Find("[onclick], [tabindex], [role=button], [role=link], [role=menu], [role=menuitem], [role=slider], [role=tab], [accesskey]").Each(func(_ int, s *goquery.Selection) {
			tag := goquery.NodeName(s)
			interactive = append(interactive, InteractiveInfo{
				Page:     p.URL,
				Tag:      tag,
				Role:     attr(s, "role"),
				TabIndex: attr(s, "tabindex"),
				OnClick:  hasAttr(s, "onclick"),
				KeyHooks: hasAttr(s, "onkeydown") || hasAttr(s, "onkeyup") || hasAttr(s, "onkeypress"),
				Text:     truncate(s.Text(), 60),
			})
		})
	}
	return map[string]any{
		"interactive_elements": interactive,
		"count":                len(interactive),
	}
}

// ----- 2.2 Enough Time -----

func sliceEnoughTime(pages []PageDoc) any {
	type timedContent struct {
		Page  string `json:"page"`
		Kind  string `json:"kind"`
		Value string `json:"value,omitempty"`
	}
	var items []timedContent
	for _, p := range pages {
		if content, ok := p.Doc.Find("meta[http-equiv=refresh]").Attr("content"); ok {
			items = append(items, timedContent{Page: p.URL, Kind: "meta_refresh", Value: content})
		}
		p.Doc.Find("marquee, blink").Each(func(_ int, s *goquery.Selection) {
			items = append(items, timedContent{Page: p.URL, Kind: goquery.NodeName(s)})
		})
		p.Doc.Find("video[autoplay], audio[autoplay]").Each(func(_ int, s *goquery.Selection) {
			items = append(items, timedContent{Page: p.URL, Kind: "autoplay_" + goquery.NodeName(s), Value: firstAttr(s, "src")})
		})
		p.Doc.Find("[class*=carousel], [class*=slider], [data-interval]").Each(func(_ int, s *goquery.Selection) {
			items = append(items, timedContent{Page: p.URL, Kind: "carousel", Value: attr(s, "class")})
		})
	}
	return map[string]any{
		"timed_content": items,
		"count":         len(items),
	}
}

// ----- 2.3 Seizures -----

func sliceSeizures(pages []PageDoc) any {
	type flashRisk struct {
		Page  string `json:"page"`
		Kind  string `json:"kind"`
		Value string `json:"value,omitempty"`
	}
	var risks []flashRisk
	for _, p := range pages {
		p.Doc.Find("img[src$='.gif']").Each(func(_ int, s *goquery.Selection) {
			risks = append(risks, flashRisk{Page: p.URL, Kind: "animated_gif_candidate", Value: attr(s, "src")})
		})
		p.Doc.Find("style").Each(func(_ int, s *goquery.Selection) {
			css := strings.ToLower(s.Text())
			if strings.Contains(css, "animation") && (strings.Contains(css, "infinite") || strings.Contains(css, "0.1s") || strings.Contains(css, "0.2s")) {
				risks = append(risks, flashRisk{Page: p.URL, Kind: "fast_css_animation"})
			}
		})
	}
	return map[string]any{
		"flash_risks": risks,
		"count":       len(risks),
	}
}

// ----- 2.4 Navigable -----

func sliceNavigable(pages []PageDoc) any {
	type pageNav struct {
		Page          string   `json:"page"`
		Title         string   `json:"title"`
		HasSkipLink   bool     `json:"has_skip_link"`
		HasMain       bool     `json:"has_main"`
		HasSearch     bool     `json:"has_search"`
		HasBreadcrumb bool     `json:"has_breadcrumb"`
		NavLinkTexts  []string `json:"nav_link_texts,omitempty"`
	}
	var navs []pageNav
	var links []LinkInfo
	headings := collectHeadings(pages)

	for _, p := range pages {
		nav := pageNav{
			Page:          p.URL,
			Title:         p.Title,
			HasMain:       p.Doc.Find("main, [role=main]").Length() > 0,
			HasSearch:     p.Doc.Find("input[type=search], [role=search]").Length() > 0,
			HasBreadcrumb: p.Doc.Find("[class*=breadcrumb], [aria-label*=readcrumb]").Length() > 0,
		}
		p.Doc.Find("a[href^='#']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.ToLower(s.Text())
			if strings.Contains(text, "skip") || strings.Contains(text, "jump") || strings.Contains(text, "springe") {
				nav.HasSkipLink = true
				return false
			}
			return true
		})
		p.Doc.Find("nav a[href]").Each(func(_ int, s *goquery.Selection) {
			if t := truncate(s.Text(), 40); t != "" {
				nav.NavLinkTexts = append(nav.NavLinkTexts, t)
			}
		})
		navs = append(navs, nav)

		p.Doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			links = append(links, LinkInfo{
				Page:      p.URL,
				Href:      attr(s, "href"),
				Text:      truncate(s.Text(), 80),
				AriaLabel: attr(s, "aria-label"),
				NewWindow: attr(s, "target") == "_blank",
			})
		})
	}
	return map[string]any{
		"pages":    navs,
		"headings": headings,
		"links":    links,
	}
}

// ----- 3.1 Readable -----

func sliceReadable(pages []PageDoc) any {
	type pageLang struct {
		Page string `json:"page"`
		Lang string `json:"lang"`
	}
	var pageLangs []pageLang
	var parts []LangPartInfo
	for _, p := range pages {
		pageLangs = append(pageLangs, pageLang{Page: p.URL, Lang: p.Lang})
		p.Doc.Find("body [lang]").Each(func(_ int, s *goquery.Selection) {
			parts = append(parts, LangPartInfo{
				Page: p.URL,
				Tag:  goquery.NodeName(s),
				Lang: attr(s, "lang"),
				Text: truncate(s.Text(), 80),
			})
		})
	}
	return map[string]any{
		"page_languages": pageLangs,
		"language_parts": parts,
	}
}

// ----- 3.2 Predictable -----

func slicePredictable(pages []PageDoc) any {
	type autoSubmit struct {
		Page string `json:"page"`
		Tag  string `json:"tag"`
		Name string `json:"name,omitempty"`
	}
	type pageNav struct {
		Page         string   `json:"page"`
		NavLinkTexts []string `json:"nav_link_texts,omitempty"`
	}
	var autoSubmits []autoSubmit
	var navs []pageNav
	var newWindowLinks []LinkInfo

	for _, p := range pages {
		p.Doc.Find("select[onchange], input[onchange]").Each(func(_ int, s *goquery.Selection) {
			autoSubmits = append(autoSubmits, autoSubmit{Page: p.URL, Tag: goquery.NodeName(s), Name: attr(s, "name")})
		})
		nav := pageNav{Page: p.URL}
		p.Doc.Find("nav a[href]").Each(func(_ int, s *goquery.Selection) {
			if t := truncate(s.Text(), 40); t != "" {
				nav.NavLinkTexts = append(nav.NavLinkTexts, t)
			}
		})
		navs = append(navs, nav)
		p.Doc.Find("a[target='_blank']").Each(func(_ int, s *goquery.Selection) {
			newWindowLinks = append(newWindowLinks, LinkInfo{
				Page:      p.URL,
				Href:      attr(s, "href"),
				Text:      truncate(s.Text(), 60),
				NewWindow: true,
			})
		})
	}
	return map[string]any{
		"change_handlers":  autoSubmits,
		"navigation":       navs,
		"new_window_links": newWindowLinks,
	}
}

// ----- 3.3 Input Assistance -----

func sliceInputAssistance(pages []PageDoc) any {
	type errorRegion struct {
		Page string `json:"page"`
		Tag  string `json:"tag"`
		Role string `json:"role,omitempty"`
		Live string `json:"aria_live,omitempty"`
	}
	var fields []FormFieldInfo
	var regions []errorRegion
	formCount := 0
	for _, p := range pages {
		formCount += p.Doc.Find("form").Length()
		fields = append(fields, collectFormFields(p)...)
		p.Doc.Find("[role=alert], [role=status], [aria-live]").Each(func(_ int, s *goquery.Selection) {
			regions = append(regions, errorRegion{
				Page: p.URL,
				Tag:  goquery.NodeName(s),
				Role: attr(s, "role"),
				Live: attr(s, "aria-live"),
			})
		})
	}
	return map[string]any{
		"forms":         formCount,
		"form_fields":   fields,
		"error_regions": regions,
	}
}

// ----- 4.1 Compatible -----

func sliceCompatible(pages []PageDoc) any {
	type duplicateID struct {
		Page  string `json:"page"`
		ID    string `json:"id"`
		Count int    `json:"count"`
	}
	var duplicates []duplicateID
	var ariaIssues []AriaIssueInfo
	var untitledFrames []string

	for _, p := range pages {
		ids := make(map[string]int)
		p.Doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
			ids[attr(s, "id")]++
		})
		for id, n := range ids {
			if n > 1 {
				duplicates = append(duplicates, duplicateID{Page: p.URL, ID: id, Count: n})
			}
		}

		// aria-labelledby / aria-describedby referencing nonexistent IDs
		for _, attrName := range []string{"aria-labelledby", "aria-describedby", "aria-controls"} {
			p.Doc.Find("[" + attrName + "]").Each(func(_ int, s *goquery.Selection) {
				for _, ref := range strings.Fields(attr(s, attrName)) {
					if ids[ref] == 0 {
						ariaIssues = append(ariaIssues, AriaIssueInfo{
							Page:      p.URL,
							Tag:       goquery.NodeName(s),
							Attribute: attrName,
							Value:     ref,
							Issue:     "references nonexistent id",
						})
					}
				}
			})
		}

		p.Doc.Find("[role=button], [role=checkbox], [role=tab]").Each(func(_ int, s *goquery.Selection) {
			role := attr(s, "role")
			if role == "checkbox" && !hasAttr(s, "aria-checked") {
				ariaIssues = append(ariaIssues, AriaIssueInfo{
					Page: p.URL, Tag: goquery.NodeName(s), Attribute: "role", Value: role,
					Issue: "checkbox role without aria-checked",
				})
			}
		})

		p.Doc.Find("iframe").Each(func(_ int, s *goquery.Selection) {
			if !hasAttr(s, "title") {
				untitledFrames = append(untitledFrames, p.URL+" "+firstAttr(s, "src"))
			}
		})
	}
	return map[string]any{
		"duplicate_ids":   duplicates,
		"aria_issues":     ariaIssues,
		"untitled_frames": untitledFrames,
	}
}

// ----- shared helpers -----

func collectHeadings(pages []PageDoc) []HeadingInfo {
	var headings []HeadingInfo
	for _, p := range pages {
		p.Doc.Find("h1,h2,h3,h4,h5,h6").Each(func(_ int, s *goquery.Selection) {
			level := int(goquery.NodeName(s)[1] - '0')
			headings = append(headings, HeadingInfo{
				Page:  p.URL,
				Level: level,
				Text:  truncate(s.Text(), 80),
			})
		})
	}
	return headings
}

func collectFormFields(p PageDoc) []FormFieldInfo {
	var fields []FormFieldInfo

	labeledIDs := make(map[string]bool)
	p.Doc.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
		labeledIDs[attr(s, "for")] = true
	})

	p.Doc.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		inputType := attr(s, "type")
		if inputType == "hidden" || inputType == "submit" || inputType == "button" {
			return
		}
		id := attr(s, "id")
		hasLabel := labeledIDs[id] && id != ""
		if !hasLabel {
			// wrapped label counts too
			hasLabel = s.ParentsFiltered("label").Length() > 0
		}
		fields = append(fields, FormFieldInfo{
			Page:            p.URL,
			Tag:             goquery.NodeName(s),
			Type:            inputType,
			ID:              id,
			Name:            attr(s, "name"),
			HasLabel:        hasLabel,
			AriaLabel:       attr(s, "aria-label"),
			AriaDescribedby: attr(s, "aria-describedby"),
			Placeholder:     attr(s, "placeholder"),
			Required:        hasAttr(s, "required") || attr(s, "aria-required") == "true",
			Autocomplete:    attr(s, "autocomplete"),
		})
	})
	return fields
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

func hasAttr(s *goquery.Selection, name string) bool {
	_, ok := s.Attr(name)
	return ok
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, n := range names {
		if v := attr(s, n); v != "" {
			return v
		}
	}
	return ""
}
