package scraper

import (
	"context"
	"log"
	"regexp"
	"strings"

	"feedsync/internal/domain/listing"

	"github.com/PuerkitoBio/goquery"
)

// EventDetail lists selectors for an event detail page. Each field may hold
// comma separated alternatives.
type EventDetail struct {
	Title string
	Date  string

	// DateAttr is read from the Date element before its text, e.g. "datetime".
	DateAttr    string
	Time        string
	Venue       string
	Address     string
	Cost        string
	Description string

	// Strip is removed from the description container before conversion.
	Strip string
	Image string
}

// EventsSource describes one event calendar.
type EventsSource struct {
	ID        string
	Organizer string
	BaseURL   string
	Location  string
	Venue     string
	Category  string
	Price     string

	// Links selects anchors to event detail pages on the calendar page.
	Links string

	// LinkText, when set, keeps only anchors whose text matches it.
	LinkText string

	// ExcludeLinks drops hrefs containing any of these.
	ExcludeLinks []string

	// RelativeOnly drops absolute hrefs, which point off-site.
	RelativeOnly bool

	// DetailLimit caps detail fetches below MaxItems.
	DetailLimit int
	Detail      EventDetail
	Workers     int
}

// EventsAdapter extracts events from a calendar page, reading JSON-LD on the
// page itself when present and otherwise following links to detail pages.
type EventsAdapter struct {
	src     EventsSource
	cfg     Config
	fetcher Fetcher
	logger  *log.Logger
}

func NewEventsAdapter(src EventsSource, cfg Config, f Fetcher, logger *log.Logger) *EventsAdapter {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = src.BaseURL
	}
	return &EventsAdapter{src: src, cfg: cfg, fetcher: f, logger: logger}
}

func (a *EventsAdapter) Name() string       { return a.src.ID }
func (a *EventsAdapter) Kind() listing.Kind { return listing.KindEvent }

func (a *EventsAdapter) Describe() SourceInfo {
	return SourceInfo{Name: a.src.ID, Kind: listing.KindEvent, Display: a.src.Organizer, BaseURL: a.cfg.BaseURL, MaxItems: a.cfg.MaxItems}
}

func (a *EventsAdapter) defaults() eventDefaults {
	return eventDefaults{
		Organizer: a.src.Organizer,
		Location:  a.src.Location,
		Category:  a.src.Category,
		Price:     a.src.Price,
		Source:    a.cfg.BaseURL,
		BaseURL:   a.cfg.BaseURL,
	}
}

func (a *EventsAdapter) Scrape(ctx context.Context) ([]listing.Candidate, error) {
	body, err := a.fetcher.Fetch(ctx, a.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	if out := a.fromJSONLD(doc, ""); len(out) > 0 {
		a.logf("adapter=%s tier=jsonld found=%d", a.src.ID, len(out))
		return a.cfg.capItems(out), nil
	}

	links := a.detailLinks(doc)
	if len(links) == 0 {
		a.logf("adapter=%s tier=links found=0", a.src.ID)
		return nil, nil
	}

	tasks := make([]Task, len(links))
	for i, link := range links {
		link := link
		tasks[i] = func(ctx context.Context) (listing.Candidate, error) {
			return a.scrapeDetail(ctx, link)
		}
	}
	workers := a.src.Workers
	if workers <= 0 {
		workers = 2
	}

	var (
		out      []listing.Candidate
		failures int
		firstErr error
	)
	for _, r := range runOrdered(ctx, workers, tasks) {
		if r.Err != nil {
			failures++
			if firstErr == nil {
				firstErr = r.Err
			}
			a.logf("adapter=%s tier=detail url=%q status=failed err=%v", a.src.ID, links[r.Index], r.Err)
			continue
		}
		if r.Candidate != nil {
			out = append(out, r.Candidate)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Nothing came back and every page failed: report it rather than an empty run.
	if len(out) == 0 && failures == len(links) && firstErr != nil {
		return nil, firstErr
	}
	a.logf("adapter=%s tier=detail links=%d found=%d failed=%d", a.src.ID, len(links), len(out), failures)
	return a.cfg.capItems(out), nil
}

func (a *EventsAdapter) fromJSONLD(doc *goquery.Document, pageURL string) []listing.Candidate {
	d := a.defaults()
	var out []listing.Candidate
	for _, obj := range jsonLDObjects(doc) {
		if !hasTypeSuffix(obj, "Event") {
			continue
		}
		c := eventFromJSONLD(obj, d)
		if c["url"] == "" && pageURL != "" {
			c["url"] = pageURL
		}
		if c["venue"] == "" && a.src.Venue != "" {
			c["venue"] = a.src.Venue
		}
		out = append(out, c)
	}
	return out
}

func (a *EventsAdapter) detailLinks(doc *goquery.Document) []string {
	if strings.TrimSpace(a.src.Links) == "" {
		return nil
	}
	limit := a.cfg.MaxItems
	if a.src.DetailLimit > 0 && (limit <= 0 || a.src.DetailLimit < limit) {
		limit = a.src.DetailLimit
	}

	seen := map[string]struct{}{}
	var out []string
	doc.Find(a.src.Links).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if a.src.LinkText != "" && !strings.EqualFold(collapseSpace(s.Text()), a.src.LinkText) {
			return true
		}
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || mentionsAny(href, a.src.ExcludeLinks) {
			return true
		}
		lower := strings.ToLower(href)
		if a.src.RelativeOnly && (strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")) {
			return true
		}
		abs := resolveURL(a.cfg.BaseURL, href)
		if abs == "" {
			return true
		}
		if _, ok := seen[abs]; ok {
			return true
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
		return limit <= 0 || len(out) < limit
	})
	return out
}

func (a *EventsAdapter) scrapeDetail(ctx context.Context, pageURL string) (listing.Candidate, error) {
	body, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}
	if found := a.fromJSONLD(doc, pageURL); len(found) > 0 {
		return found[0], nil
	}
	return a.fromDetailSelectors(doc, pageURL), nil
}

var timeRangeSep = regexp.MustCompile(`\s*(?:-|–|—|\bto\b)\s*`)

func (a *EventsAdapter) fromDetailSelectors(doc *goquery.Document, pageURL string) listing.Candidate {
	sel := a.src.Detail
	root := doc.Selection

	title := firstText(root, sel.Title)
	if title == "" {
		a.logf("adapter=%s tier=detail url=%q status=skipped reason=no_title", a.src.ID, pageURL)
		return nil
	}

	date := ""
	if sel.DateAttr != "" {
		date = parseHumanDate(firstAttr(root, sel.Date, sel.DateAttr))
	}
	if date == "" {
		date = parseHumanDate(firstText(root, sel.Date))
	}

	var startTime, endTime string
	if t := firstText(root, sel.Time); t != "" {
		if strings.EqualFold(t, "all day") {
			startTime = "All Day"
		} else {
			parts := timeRangeSep.Split(t, 2)
			startTime = strings.TrimSpace(parts[0])
			if len(parts) > 1 {
				endTime = strings.TrimSpace(parts[1])
			}
		}
	}

	description := ""
	if sel.Description != "" {
		if container := firstMatch(root, sel.Description); container != nil {
			clone := container.Clone()
			if sel.Strip != "" {
				clone.Find(sel.Strip).Remove()
			}
			if h, err := clone.Html(); err == nil {
				description = toMarkdown(pageURL, h)
			}
			description = strings.TrimSpace(strings.TrimPrefix(description, title))
		}
	}

	venue := firstText(root, sel.Venue)
	cost := firstText(root, sel.Cost)
	image := metaContent(doc, "og:image")
	if image == "" {
		image = firstAttr(root, sel.Image, "src")
	}

	lower := strings.ToLower(cost + " " + title + " " + description)
	free := strings.Contains(lower, "free") || (sel.Cost != "" && cost == "")

	return listing.Candidate{
		"title":       title,
		"description": description,
		"location":    pickNonEmpty(venue, a.src.Location),
		"venue":       pickNonEmpty(venue, a.src.Venue),
		"address":     collapseSpace(firstText(root, sel.Address)),
		"start_date":  date,
		"start_time":  startTime,
		"end_time":    endTime,
		"image_url":   resolveURL(pageURL, image),
		"category":    a.src.Category,
		"url":         pageURL,
		"price":       pickNonEmpty(cost, a.src.Price),
		"is_free":     free,
		"organizer":   a.src.Organizer,
		"source":      a.cfg.BaseURL,
	}
}

func firstMatch(s *goquery.Selection, selectors string) *goquery.Selection {
	for _, sel := range splitSelectors(selectors) {
		if found := s.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func (a *EventsAdapter) logf(format string, args ...any) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}
