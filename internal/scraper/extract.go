package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"feedsync/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: html: %w", domain.ErrParse, err)
	}
	return doc, nil
}

// jsonLDObjects returns every object found in the document's JSON-LD blocks,
// flattening arrays, @graph containers and ItemList entries. Blocks that do
// not decode are skipped.
func jsonLDObjects(doc *goquery.Document) []map[string]any {
	var out []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return
		}
		out = appendJSONLD(out, v)
	})
	return out
}

func appendJSONLD(out []map[string]any, v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			out = appendJSONLD(out, item)
		}
	case map[string]any:
		if g, ok := t["@graph"]; ok {
			return appendJSONLD(out, g)
		}
		if hasType(t, "ItemList") {
			if items, ok := t["itemListElement"].([]any); ok {
				for _, it := range items {
					m, ok := it.(map[string]any)
					if !ok {
						continue
					}
					// ListItem wraps the actual entity in "item".
					if inner, ok := m["item"].(map[string]any); ok {
						out = appendJSONLD(out, inner)
						continue
					}
					out = appendJSONLD(out, m)
				}
			}
			return out
		}
		out = append(out, t)
	}
	return out
}

func hasType(m map[string]any, want string) bool {
	switch t := m["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

// hasTypeSuffix matches schema.org subtypes such as MusicEvent.
func hasTypeSuffix(m map[string]any, suffix string) bool {
	check := func(s string) bool {
		return strings.HasSuffix(strings.ToLower(s), strings.ToLower(suffix))
	}
	switch t := m["@type"].(type) {
	case string:
		return check(t)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && check(s) {
				return true
			}
		}
	}
	return false
}

// ScriptSource locates a JSON payload embedded in a script tag, either by
// element id or by a marker such as "window.__INITIAL_STATE__".
type ScriptSource struct {
	ElementID string
	Marker    string

	// Path is a dotted path to the array inside the payload; empty means the
	// payload itself.
	Path string
}

func (s ScriptSource) empty() bool {
	return strings.TrimSpace(s.ElementID) == "" && strings.TrimSpace(s.Marker) == ""
}

// scriptJSON returns the items at s.Path. found is false when no matching
// script exists; a script that exists but does not decode is ErrParse.
func scriptJSON(doc *goquery.Document, s ScriptSource) (items []any, found bool, err error) {
	var raw string
	switch {
	case s.ElementID != "":
		sel := doc.Find("script#" + s.ElementID)
		if sel.Length() == 0 {
			return nil, false, nil
		}
		raw = strings.TrimSpace(sel.First().Text())
	case s.Marker != "":
		doc.Find("script").EachWithBreak(func(_ int, sc *goquery.Selection) bool {
			text := sc.Text()
			idx := strings.Index(text, s.Marker)
			if idx < 0 {
				return true
			}
			rest := text[idx+len(s.Marker):]
			if eq := strings.Index(rest, "="); eq >= 0 {
				rest = rest[eq+1:]
			}
			raw = strings.TrimSpace(rest)
			return false
		})
		if raw == "" {
			return nil, false, nil
		}
	default:
		return nil, false, nil
	}

	var v any
	// Decoder stops after the first value, ignoring a trailing ";" and code.
	if err := json.NewDecoder(strings.NewReader(raw)).Decode(&v); err != nil {
		return nil, true, fmt.Errorf("%w: script json: %w", domain.ErrParse, err)
	}
	v = lookupPath(v, s.Path)
	arr, ok := v.([]any)
	if !ok {
		return nil, true, fmt.Errorf("%w: script json: %q is not a list", domain.ErrParse, s.Path)
	}
	return arr, true, nil
}

func lookupPath(v any, path string) any {
	path = strings.TrimSpace(path)
	if path == "" {
		return v
	}
	for _, part := range strings.Split(path, ".") {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[part]
	}
	return v
}

// SelectorSet describes listing cards on a page. Title, Link, Location,
// Description and Date are relative to Card; Link defaults to the first
// anchor, or the card itself when the card is an anchor.
type SelectorSet struct {
	Card        string
	Title       string
	Link        string
	Location    string
	Description string
	Date        string
}

type cardFields struct {
	Title       string
	URL         string
	Location    string
	Description string
	Date        string
}

func selectCards(doc *goquery.Document, set SelectorSet, baseURL string) []cardFields {
	if strings.TrimSpace(set.Card) == "" {
		return nil
	}
	out := make([]cardFields, 0)
	doc.Find(set.Card).Each(func(_ int, card *goquery.Selection) {
		f := cardFields{
			Title:       firstText(card, set.Title),
			Location:    firstText(card, set.Location),
			Description: firstText(card, set.Description),
			Date:        firstText(card, set.Date),
		}
		if f.Title == "" && strings.TrimSpace(set.Title) == "" {
			f.Title = collapseSpace(card.Text())
		}
		f.URL = resolveURL(baseURL, cardHref(card, set.Link))
		out = append(out, f)
	})
	return out
}

func cardHref(card *goquery.Selection, linkSel string) string {
	if goquery.NodeName(card) == "a" && strings.TrimSpace(linkSel) == "" {
		href, _ := card.Attr("href")
		return href
	}
	if linkSel == "" {
		linkSel = "a"
	}
	href, _ := card.Find(linkSel).First().Attr("href")
	return href
}

// firstText tries each comma separated selector in turn.
func firstText(s *goquery.Selection, selectors string) string {
	for _, sel := range splitSelectors(selectors) {
		if t := collapseSpace(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func firstAttr(s *goquery.Selection, selectors, attr string) string {
	for _, sel := range splitSelectors(selectors) {
		if v, ok := s.Find(sel).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstHTML(s *goquery.Selection, selectors string) string {
	for _, sel := range splitSelectors(selectors) {
		found := s.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		if h, err := found.Html(); err == nil && strings.TrimSpace(h) != "" {
			return h
		}
	}
	return ""
}

func splitSelectors(selectors string) []string {
	var out []string
	for _, s := range strings.Split(selectors, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func metaContent(doc *goquery.Document, property string) string {
	v, _ := doc.Find(fmt.Sprintf(`meta[property=%q], meta[name=%q]`, property, property)).First().Attr("content")
	return strings.TrimSpace(v)
}

// Loose accessors over decoded JSON.

func jsonString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case map[string]any:
		for _, k := range []string{"value", "name", "@id", "url"} {
			if s := jsonString(t[k]); s != "" {
				return s
			}
		}
	case []any:
		for _, item := range t {
			if s := jsonString(item); s != "" {
				return s
			}
		}
	}
	return ""
}

func jsonObject(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

func jsonObjects(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func jsonStrings(v any) []string {
	switch t := v.(type) {
	case string:
		var out []string
		for _, p := range strings.Split(t, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := jsonString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
