package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"feedsync/internal/domain"
	"feedsync/internal/domain/listing"

	"github.com/mmcdole/gofeed"
)

// fetchFeedJobs reads an RSS or Atom feed of postings.
func fetchFeedJobs(ctx context.Context, f Fetcher, feedURL string, d jobDefaults) ([]listing.Candidate, error) {
	body, err := f.Fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: feed %s: %w", domain.ErrParse, feedURL, err)
	}

	out := make([]listing.Candidate, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		link := resolveURL(feedURL, it.Link)
		c := listing.Candidate{
			"title":       strings.TrimSpace(it.Title),
			"company":     d.Company,
			"description": toMarkdown(d.BaseURL, pickNonEmpty(it.Content, it.Description)),
			"location":    pickNonEmpty(feedLocation(it), d.Location, DefaultLocation),
			"url":         link,
			"external_id": pickNonEmpty(it.GUID, link),
			"source":      d.Source,
			"status":      string(listing.JobStatusActive),
		}
		switch {
		case it.PublishedParsed != nil:
			c["date_posted"] = it.PublishedParsed.UTC().Format(time.RFC3339)
		case it.UpdatedParsed != nil:
			c["date_posted"] = it.UpdatedParsed.UTC().Format(time.RFC3339)
		case it.Published != "":
			c["date_posted"] = it.Published
		}
		out = append(out, c)
	}
	return out, nil
}

// feedLocation reads the location extensions job boards commonly add.
func feedLocation(it *gofeed.Item) string {
	for _, key := range []string{"location", "city"} {
		if v, ok := it.Custom[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
