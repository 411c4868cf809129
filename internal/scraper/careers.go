package scraper

import (
	"context"
	"fmt"
	"log"
	"strings"

	"feedsync/internal/domain/listing"
)

// CareersSource describes one employer careers page.
type CareersSource struct {
	ID      string
	Company string
	BaseURL string

	// FeedURL is tried before the page; relative values resolve against
	// BaseURL.
	FeedURL string
	Script  ScriptSource

	// ScriptURLPattern builds a posting URL from an item id when the
	// embedded item has none, e.g. "%s/job/%s" (base, id).
	ScriptURLPattern string
	Selectors        SelectorSet

	// LocationFilter keeps only entries whose location mentions one of
	// these terms. Empty keeps everything.
	LocationFilter []string

	// Rendered marks pages that need a browser to produce their listings.
	Rendered bool
}

// CareersAdapter extracts job postings from a careers page. Tiers are tried
// in order and the first one that yields anything wins: feed, JSON-LD
// JobPosting, embedded script JSON, then the selector set.
type CareersAdapter struct {
	src     CareersSource
	cfg     Config
	fetcher Fetcher
	feeds   Fetcher
	logger  *log.Logger
}

func NewCareersAdapter(src CareersSource, cfg Config, pages Fetcher, feeds Fetcher, logger *log.Logger) *CareersAdapter {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = src.BaseURL
	}
	if feeds == nil {
		feeds = pages
	}
	return &CareersAdapter{src: src, cfg: cfg, fetcher: pages, feeds: feeds, logger: logger}
}

func (a *CareersAdapter) Name() string       { return a.src.ID }
func (a *CareersAdapter) Kind() listing.Kind { return listing.KindJob }

func (a *CareersAdapter) Describe() SourceInfo {
	return SourceInfo{Name: a.src.ID, Kind: listing.KindJob, Display: a.src.Company, BaseURL: a.cfg.BaseURL, MaxItems: a.cfg.MaxItems}
}

func (a *CareersAdapter) defaults() jobDefaults {
	return jobDefaults{Company: a.src.Company, Source: a.cfg.BaseURL, BaseURL: a.cfg.BaseURL}
}

func (a *CareersAdapter) Scrape(ctx context.Context) ([]listing.Candidate, error) {
	if a.src.FeedURL != "" {
		feedURL := resolveURL(a.cfg.BaseURL, a.src.FeedURL)
		items, err := fetchFeedJobs(ctx, a.feeds, feedURL, a.defaults())
		switch {
		case err == nil && len(items) > 0:
			a.logf("adapter=%s tier=feed found=%d", a.src.ID, len(items))
			return a.cfg.capItems(a.filter(items)), nil
		case err != nil:
			if ctx.Err() != nil {
				return nil, err
			}
			a.logf("adapter=%s tier=feed status=unavailable err=%v", a.src.ID, err)
		}
	}

	body, err := a.fetcher.Fetch(ctx, a.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	return a.extract(body)
}

func (a *CareersAdapter) extract(body []byte) ([]listing.Candidate, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}
	d := a.defaults()

	var out []listing.Candidate
	for _, obj := range jsonLDObjects(doc) {
		if hasType(obj, "JobPosting") {
			out = append(out, jobFromJSONLD(obj, d))
		}
	}
	if len(out) > 0 {
		a.logf("adapter=%s tier=jsonld found=%d", a.src.ID, len(out))
		return a.cfg.capItems(a.filter(out)), nil
	}

	if !a.src.Script.empty() {
		items, found, err := scriptJSON(doc, a.src.Script)
		switch {
		case err != nil:
			// A page that embeds the payload but garbles it still has cards.
			a.logf("adapter=%s tier=script status=failed err=%v", a.src.ID, err)
		case found:
			for _, it := range items {
				if m, ok := it.(map[string]any); ok {
					out = append(out, a.fromScriptItem(m, d))
				}
			}
			a.logf("adapter=%s tier=script found=%d", a.src.ID, len(out))
			if len(out) > 0 {
				return a.cfg.capItems(a.filter(out)), nil
			}
		}
	}

	for _, card := range selectCards(doc, a.src.Selectors, a.cfg.BaseURL) {
		if card.Title == "" {
			continue
		}
		out = append(out, listing.Candidate{
			"title":       card.Title,
			"company":     a.src.Company,
			"description": card.Description,
			"location":    pickNonEmpty(card.Location, DefaultLocation),
			"url":         card.URL,
			"date_posted": card.Date,
			"external_id": stableExternalIDFromURL(card.URL),
			"source":      a.cfg.BaseURL,
			"status":      string(listing.JobStatusActive),
			filterKey:     card.Location,
		})
	}
	a.logf("adapter=%s tier=selectors found=%d", a.src.ID, len(out))
	return a.cfg.capItems(a.filter(out)), nil
}

// filterKey carries the raw card location so the filter does not see the
// default location. It is removed before candidates leave the adapter.
const filterKey = "_raw_location"

func (a *CareersAdapter) fromScriptItem(m map[string]any, d jobDefaults) listing.Candidate {
	id := jsonString(m["id"])
	url := resolveURL(d.BaseURL, jsonString(m["url"]))
	if url == "" && id != "" && a.src.ScriptURLPattern != "" {
		url = fmt.Sprintf(a.src.ScriptURLPattern, strings.TrimRight(d.BaseURL, "/"), id)
	}
	remote, _ := m["isRemote"].(bool)
	return listing.Candidate{
		"title":       jsonString(m["title"]),
		"company":     d.Company,
		"description": toMarkdown(d.BaseURL, jsonString(m["description"])),
		"location":    pickNonEmpty(jsonString(m["location"]), DefaultLocation),
		"url":         url,
		"salary":      jsonString(m["salary"]),
		"job_type":    jsonString(m["employmentType"]),
		"date_posted": jsonString(m["datePosted"]),
		"external_id": pickNonEmpty(id, url),
		"is_remote":   remote,
		"source":      d.Source,
		"status":      string(listing.JobStatusActive),
		filterKey:     jsonString(m["location"]),
	}
}

func (a *CareersAdapter) filter(in []listing.Candidate) []listing.Candidate {
	out := in[:0]
	for _, c := range in {
		raw, hasRaw := c[filterKey].(string)
		delete(c, filterKey)
		if len(a.src.LocationFilter) > 0 {
			loc := raw
			if !hasRaw {
				loc, _ = c["location"].(string)
			}
			if !mentionsAny(loc, a.src.LocationFilter) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func mentionsAny(s string, terms []string) bool {
	for _, t := range terms {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func (a *CareersAdapter) logf(format string, args ...any) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}
