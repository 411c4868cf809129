package scraper

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"feedsync/internal/domain/listing"
)

// CalendarSource describes a community calendar published as a markdown
// document: month headings in bold, then one bold "MM/DD — Title" line per
// event followed by its details.
type CalendarSource struct {
	ID        string
	Organizer string
	BaseURL   string
	Location  string
	Category  string
}

// MarkdownCalendarAdapter parses a markdown calendar document.
type MarkdownCalendarAdapter struct {
	src     CalendarSource
	cfg     Config
	fetcher Fetcher
	logger  *log.Logger
	now     func() time.Time
}

func NewMarkdownCalendarAdapter(src CalendarSource, cfg Config, f Fetcher, logger *log.Logger) *MarkdownCalendarAdapter {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = src.BaseURL
	}
	return &MarkdownCalendarAdapter{src: src, cfg: cfg, fetcher: f, logger: logger, now: time.Now}
}

func (a *MarkdownCalendarAdapter) Name() string       { return a.src.ID }
func (a *MarkdownCalendarAdapter) Kind() listing.Kind { return listing.KindEvent }

func (a *MarkdownCalendarAdapter) Describe() SourceInfo {
	return SourceInfo{Name: a.src.ID, Kind: listing.KindEvent, Display: a.src.Organizer, BaseURL: a.cfg.BaseURL, MaxItems: a.cfg.MaxItems}
}

func (a *MarkdownCalendarAdapter) Scrape(ctx context.Context) ([]listing.Candidate, error) {
	body, err := a.fetcher.Fetch(ctx, a.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	out := a.parse(string(body), a.now().Year())
	if a.logger != nil {
		a.logger.Printf("adapter=%s tier=markdown found=%d", a.src.ID, len(out))
	}
	return a.cfg.capItems(out), nil
}

var (
	mdMonthHeading = regexp.MustCompile(`^\*\*\s*(JANUARY|FEBRUARY|MARCH|APRIL|MAY|JUNE|JULY|AUGUST|SEPTEMBER|OCTOBER|NOVEMBER|DECEMBER)\b`)
	mdEventStart   = regexp.MustCompile(`^\*\*.*—`)
	mdMonthDay     = regexp.MustCompile(`(\d{1,2})/(\d{1,2})`)
	mdTitle        = regexp.MustCompile(`—\s*(.+)$`)
	mdLink         = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)
	mdTime         = regexp.MustCompile(`(?i)\d{1,2}(?::\d{2})?\s*(?:a\.m\.|p\.m\.|am|pm)(?:\s*(?:to|-|–)\s*\d{1,2}(?::\d{2})?\s*(?:a\.m\.|p\.m\.|am|pm))?`)
)

func (a *MarkdownCalendarAdapter) parse(doc string, year int) []listing.Candidate {
	var (
		out   []listing.Candidate
		block []string
	)
	flush := func() {
		if len(block) > 0 {
			if c := a.parseBlock(block, year); c != nil {
				out = append(out, c)
			}
		}
		block = nil
	}

	for _, line := range strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case mdMonthHeading.MatchString(strings.ToUpper(trimmed)) && !strings.Contains(trimmed, "—"):
			flush()
		case mdEventStart.MatchString(trimmed):
			flush()
			block = []string{trimmed}
		case len(block) > 0:
			block = append(block, trimmed)
		}
	}
	flush()
	return out
}

func (a *MarkdownCalendarAdapter) parseBlock(lines []string, year int) listing.Candidate {
	head := lines[0]
	m := mdTitle.FindStringSubmatch(head)
	if m == nil {
		return nil
	}
	title := strings.TrimSpace(strings.ReplaceAll(m[1], "**", ""))
	md := mdMonthDay.FindStringSubmatch(head)
	if title == "" || md == nil {
		return nil
	}
	month, _ := strconv.Atoi(md[1])
	day, _ := strconv.Atoi(md[2])
	date := fmt.Sprintf("%04d-%02d-%02d", year, month, day)

	text := strings.Join(lines, "\n")
	url, organizer := "", a.src.Organizer
	if lm := mdLink.FindStringSubmatch(text); lm != nil {
		url = resolveURL(a.cfg.BaseURL, lm[2])
		organizer = pickNonEmpty(lm[1], organizer)
	}

	startTime, endTime := "", ""
	if tm := mdTime.FindString(text); tm != "" {
		parts := timeRangeSep.Split(tm, 2)
		startTime = strings.TrimSpace(parts[0])
		if len(parts) > 1 {
			endTime = strings.TrimSpace(parts[1])
		}
	}

	desc := make([]string, 0, len(lines))
	for _, l := range lines[1:] {
		l = strings.TrimSpace(mdLink.ReplaceAllString(l, "$1"))
		if l != "" {
			desc = append(desc, l)
		}
	}
	description := strings.Join(desc, " ")

	return listing.Candidate{
		"title":       title,
		"description": description,
		"start_date":  date,
		"start_time":  startTime,
		"end_time":    endTime,
		"url":         url,
		"organizer":   organizer,
		"source":      a.cfg.BaseURL,
		"category":    a.src.Category,
		"location":    a.src.Location,
		"is_free":     strings.Contains(strings.ToLower(description), "free"),
	}
}
