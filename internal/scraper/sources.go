package scraper

import (
	"fmt"
	"log"
	"time"

	"feedsync/internal/config"
)

var indianapolisOnly = []string{"Indianapolis", "IN"}

func careersSources() []CareersSource {
	return []CareersSource{
		{
			ID:        "lilly",
			Company:   "Eli Lilly & Co.",
			BaseURL:   "https://jobsearch.lilly.com/locations/indianapolis-in/jobs/",
			Selectors: SelectorSet{Card: ".job-card", Title: ".job-title", Link: "a", Date: ".posted-date"},
		},
		{
			ID:               "cummins",
			Company:          "Cummins Inc.",
			BaseURL:          "https://www.cummins.com/careers",
			Script:           ScriptSource{Marker: "window.__INITIAL_STATE__", Path: "jobs"},
			ScriptURLPattern: "%s/job/%s",
			Selectors: SelectorSet{
				Card:        ".job-listing, .careers-listing, .job-item",
				Title:       ".job-title, .title, h3",
				Location:    ".location, .job-location",
				Description: ".job-description, .description",
			},
		},
		{
			ID:      "roche",
			Company: "Roche Diagnostics",
			BaseURL: "https://careers.roche.com/global/en/indianapolis-indiana",
			Selectors: SelectorSet{
				Card:        ".job-card, .job-listing, .job-item",
				Title:       ".job-title, .title, h3",
				Location:    ".location, .job-location",
				Description: ".job-description, .description",
			},
		},
		{
			ID:        "corteva",
			Company:   "Corteva Agriscience",
			BaseURL:   "https://corteva.dejobs.org/locations/indianapolis-in/jobs/",
			Selectors: SelectorSet{Card: ".job-row", Title: "a", Link: "a"},
		},
		{
			ID:        "community-health",
			Company:   "Community Health Network",
			BaseURL:   "https://www.ecommunity.com/careers",
			FeedURL:   "https://www.ecommunity.com/careers/rss",
			Selectors: SelectorSet{Card: ".career-listing .title", Link: "a"},
		},
		{
			ID:      "iu-health",
			Company: "Indiana University Health",
			BaseURL: "https://careers.iuhealth.org/",
			FeedURL: "https://careers.iuhealth.org/rss",
		},
		{
			ID:      "rolls-royce",
			Company: "Rolls-Royce Corporation",
			BaseURL: "https://careers.rolls-royce.com/",
			Selectors: SelectorSet{
				Card:        ".job-listing, .vacancy-item, .job-card",
				Title:       ".job-title, .title, h3, .vacancy-title",
				Location:    ".location, .job-location, .vacancy-location",
				Description: ".job-description, .description, .vacancy-description",
			},
			LocationFilter: indianapolisOnly,
		},
		{
			ID:      "angi",
			Company: "Angi",
			BaseURL: "https://www.angi.com/careers",
			Selectors: SelectorSet{
				Card:        ".job-opening-card",
				Title:       ".job-title",
				Location:    ".job-location",
				Description: ".job-description",
			},
			LocationFilter: indianapolisOnly,
		},
		{
			ID:               "finish-line",
			Company:          "Finish Line",
			BaseURL:          "https://finishline.wd1.myworkdayjobs.com/Corporate_Careers",
			Script:           ScriptSource{ElementID: "__JOB_LISTINGS__", Path: "jobs"},
			ScriptURLPattern: "%s/%s",
			Selectors: SelectorSet{
				Card:     ".WGDC, .gwt-Label, .job-listing",
				Title:    ".job-title, .title, h3",
				Location: ".location, .job-location",
			},
			LocationFilter: indianapolisOnly,
			Rendered:       true,
		},
		{
			ID:      "anthem",
			Company: "Anthem Inc.",
			BaseURL: "https://www.indeed.com/rss?q=anthem&l=Indianapolis%2C+IN",
			FeedURL: "https://www.indeed.com/rss?q=anthem&l=Indianapolis%2C+IN",
		},
	}
}

func eventsSources() []EventsSource {
	return []EventsSource{
		{
			ID:        "eventbrite-indiana",
			Organizer: "Eventbrite",
			BaseURL:   "https://www.eventbrite.com/b/in--indianapolis/",
			Location:  "Indiana",
			Venue:     "Venue not specified",
			Category:  "Various",
			Price:     "Check ticket price",
		},
		{
			ID:        "visit-hamilton-county",
			Organizer: "Visit Hamilton County",
			BaseURL:   "https://www.visithamiltoncounty.com/events/",
			Location:  "Hamilton County, IN",
			Venue:     "Venue not specified",
			Category:  "Various",
		},
		{
			ID:           "noblesville-parks",
			Organizer:    "Noblesville Parks",
			BaseURL:      "https://www.noblesvilleparks.org/calendar.aspx",
			Location:     "Noblesville, IN",
			Venue:        "Noblesville Park Location",
			Category:     "Park Event",
			Links:        `a[href*="EID="]`,
			LinkText:     "More Details",
			ExcludeLinks: []string{"secure.rec1.com"},
			RelativeOnly: true,
			DetailLimit:  10,
			Detail: EventDetail{
				Title:       "h1.pageTitle, .editorWrap>h1, .editorWrap>h2",
				Date:        `span[id^="event_date_"]`,
				Time:        `span[id^="event_time_"]`,
				Venue:       `span[id^="event_location_"]`,
				Address:     `div[id^="event_address_"]`,
				Cost:        `div[id^="event_cost_"]`,
				Description: ".editorWrap, div.contentDiv",
				Strip:       `h1, h2, span[id^="event_"], div[id^="event_"]`,
			},
		},
		{
			ID:          "noblesville-mainstreet",
			Organizer:   "Noblesville Main Street",
			BaseURL:     "https://www.noblesvillemainstreet.org/events",
			Location:    "Noblesville, IN",
			Venue:       "Downtown Noblesville",
			Category:    "Community",
			Links:       "article.eventlist-event--upcoming a.eventlist-title-link, .summary-item a.summary-title-link, a.eventlist-readmore",
			DetailLimit: 10,
			Detail: EventDetail{
				Title:       "h1.eventitem-title",
				Date:        "time.event-date, .eventitem-meta-date",
				DateAttr:    "datetime",
				Time:        ".eventitem-meta-time, p.event-time",
				Venue:       ".eventitem-meta-location a",
				Description: ".eventitem-description, div.sqs-block-html",
				Image:       ".eventitem-image img",
			},
		},
	}
}

func calendarSources() []CalendarSource {
	return []CalendarSource{
		{
			ID:        "noblesville-gov",
			Organizer: "City of Noblesville",
			BaseURL:   "https://www.noblesville.in.gov/scraped_events/noblesville_in_gov_events.md",
			Location:  "Noblesville, IN",
			Category:  "Community",
		},
	}
}

// offByDefault sources only run when the sources file enables them: the
// Anthem feed sits behind a job board that blocks scrapers and the city
// calendar has no canonical public document.
var offByDefault = map[string]bool{
	"anthem":          true,
	"noblesville-gov": true,
}

func sourceEnabled(id string, file config.SourcesFile) bool {
	if o, ok := file.Source(id); ok && o.Enabled != nil {
		return *o.Enabled
	}
	return !offByDefault[id]
}

const requestTimeout = 30 * time.Second

// NewDefaultRegistry registers every enabled built-in source. Each adapter
// gets its own throttle so one slow source does not delay another.
func NewDefaultRegistry(env config.ScraperConfig, file config.SourcesFile, logger *log.Logger) (*Registry, error) {
	ua := env.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	reg := NewRegistry()

	pagesFor := func(cfg Config, rendered bool) (Fetcher, Fetcher) {
		t := NewThrottle(cfg.RateLimitMin, cfg.RateLimitRandom)
		pages := Throttled(NewCollyFetcher(ua, requestTimeout), t)
		if rendered && env.Headless {
			pages = &fallbackFetcher{primary: pages, secondary: Throttled(NewHeadlessFetcher(ua, 0), t)}
		}
		return pages, NewHTTPFetcher(ua, requestTimeout).WithThrottle(t)
	}

	for _, src := range careersSources() {
		if !sourceEnabled(src.ID, file) {
			logf(logger, "registry adapter=%s status=disabled", src.ID)
			continue
		}
		cfg := ConfigFor(src.ID, src.BaseURL, env, file)
		pages, feeds := pagesFor(cfg, src.Rendered)
		if err := reg.Register(NewCareersAdapter(src, cfg, pages, feeds, logger)); err != nil {
			return nil, fmt.Errorf("register %s: %w", src.ID, err)
		}
	}
	for _, src := range eventsSources() {
		if !sourceEnabled(src.ID, file) {
			logf(logger, "registry adapter=%s status=disabled", src.ID)
			continue
		}
		cfg := ConfigFor(src.ID, src.BaseURL, env, file)
		pages, _ := pagesFor(cfg, false)
		if err := reg.Register(NewEventsAdapter(src, cfg, pages, logger)); err != nil {
			return nil, fmt.Errorf("register %s: %w", src.ID, err)
		}
	}
	for _, src := range calendarSources() {
		if !sourceEnabled(src.ID, file) {
			logf(logger, "registry adapter=%s status=disabled", src.ID)
			continue
		}
		cfg := ConfigFor(src.ID, src.BaseURL, env, file)
		_, plain := pagesFor(cfg, false)
		if err := reg.Register(NewMarkdownCalendarAdapter(src, cfg, plain, logger)); err != nil {
			return nil, fmt.Errorf("register %s: %w", src.ID, err)
		}
	}
	return reg, nil
}

func logf(l *log.Logger, format string, args ...any) {
	if l != nil {
		l.Printf(format, args...)
	}
}
