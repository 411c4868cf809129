package scraper

import (
	"regexp"
	"strings"
	"time"

	"feedsync/internal/domain/listing"
)

// jobDefaults fills what a posting leaves out.
type jobDefaults struct {
	Company  string
	Location string
	Source   string
	BaseURL  string
}

func jobFromJSONLD(obj map[string]any, d jobDefaults) listing.Candidate {
	url := resolveURL(d.BaseURL, jsonString(obj["url"]))
	if url == "" {
		url = resolveURL(d.BaseURL, jsonString(obj["sameAs"]))
	}

	c := listing.Candidate{
		"title":       jsonString(obj["title"]),
		"company":     pickNonEmpty(jsonString(jsonObject(obj["hiringOrganization"])["name"]), d.Company),
		"description": toMarkdown(d.BaseURL, jsonString(obj["description"])),
		"location":    pickNonEmpty(jobLocation(obj["jobLocation"]), d.Location, DefaultLocation),
		"url":         url,
		"salary":      salaryText(obj["baseSalary"], obj["estimatedSalary"]),
		"job_type":    jsonString(obj["employmentType"]),
		"date_posted": jsonString(obj["datePosted"]),
		"external_id": pickNonEmpty(jsonString(obj["identifier"]), url),
		"is_remote":   strings.EqualFold(jsonString(obj["jobLocationType"]), "TELECOMMUTE"),
		"source":      d.Source,
		"status":      string(listing.JobStatusActive),
	}
	if skills := jsonStrings(obj["skills"]); len(skills) > 0 {
		c["skills"] = skills
	}
	if c["title"] == "" {
		c["title"] = jsonString(obj["name"])
	}
	return c
}

func jobLocation(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	loc := jsonObject(v)
	if loc == nil {
		return ""
	}
	addr := jsonObject(loc["address"])
	if addr == nil {
		return jsonString(loc["name"])
	}
	return joinNonEmpty(", ", jsonString(addr["addressLocality"]), jsonString(addr["addressRegion"]))
}

func salaryText(vals ...any) string {
	for _, v := range vals {
		m := jsonObject(v)
		if m == nil {
			if s := jsonString(v); s != "" {
				return s
			}
			continue
		}
		currency := jsonString(m["currency"])
		inner := jsonObject(m["value"])
		if inner == nil {
			if s := jsonString(m["value"]); s != "" {
				return joinNonEmpty(" ", s, currency)
			}
			continue
		}
		unit := strings.ToLower(jsonString(inner["unitText"]))
		amount := jsonString(inner["value"])
		if amount == "" {
			amount = joinNonEmpty("-", jsonString(inner["minValue"]), jsonString(inner["maxValue"]))
		}
		if amount == "" {
			continue
		}
		s := joinNonEmpty(" ", amount, currency)
		if unit != "" {
			s += " per " + unit
		}
		return s
	}
	return ""
}

// eventDefaults fills what an event leaves out.
type eventDefaults struct {
	Organizer string
	Location  string
	Category  string
	Price     string
	Source    string
	BaseURL   string
}

func eventFromJSONLD(obj map[string]any, d eventDefaults) listing.Candidate {
	startDate, startTime := splitDateTime(jsonString(obj["startDate"]))
	endDate, endTime := splitDateTime(jsonString(obj["endDate"]))

	loc := jsonObject(obj["location"])
	addr := jsonObject(loc["address"])
	locality := jsonString(addr["addressLocality"])
	region := jsonString(addr["addressRegion"])

	location := jsonString(loc["name"])
	if location == "" {
		location = joinNonEmpty(", ", locality, region)
	}
	if location == "" {
		// Some sources put the address string straight into location.
		if s, ok := obj["location"].(string); ok {
			location = strings.TrimSpace(s)
		}
	}

	address := jsonString(addr["streetAddress"])
	if postal := jsonString(addr["postalCode"]); locality != "" && region != "" && postal != "" {
		address = joinNonEmpty(", ", address, locality+", "+region+" "+postal)
	}

	offers := jsonObjects(obj["offers"])
	price := offerPrice(offers)
	free := isFreeEvent(obj, offers, price)
	if free && !strings.Contains(strings.ToLower(price), "free") {
		price = "Free"
	}

	return listing.Candidate{
		"title":       jsonString(obj["name"]),
		"description": toMarkdown(d.BaseURL, jsonString(obj["description"])),
		"location":    pickNonEmpty(location, d.Location),
		"venue":       jsonString(loc["name"]),
		"address":     address,
		"start_date":  startDate,
		"start_time":  startTime,
		"end_date":    endDate,
		"end_time":    endTime,
		"image_url":   resolveURL(d.BaseURL, jsonString(obj["image"])),
		"category":    pickNonEmpty(jsonString(obj["eventCategory"]), d.Category),
		"tags":        strings.Join(jsonStrings(obj["keywords"]), ", "),
		"url":         resolveURL(d.BaseURL, jsonString(obj["url"])),
		"price":       pickNonEmpty(price, d.Price),
		"is_free":     free,
		"organizer":   pickNonEmpty(jsonString(jsonObject(obj["organizer"])["name"]), d.Organizer),
		"source":      d.Source,
	}
}

func offerPrice(offers []map[string]any) string {
	if len(offers) == 0 {
		return ""
	}
	o := offers[0]
	if p := jsonString(o["price"]); p != "" {
		return joinNonEmpty(" ", p, jsonString(o["priceCurrency"]))
	}
	if spec := jsonObject(o["priceSpecification"]); spec != nil {
		if p := jsonString(spec["price"]); p != "" {
			return joinNonEmpty(" ", p, jsonString(spec["priceCurrency"]))
		}
	}
	if name := jsonString(o["name"]); name != "" && !strings.EqualFold(name, "free") {
		return name
	}
	return ""
}

func isFreeEvent(obj map[string]any, offers []map[string]any, price string) bool {
	if b, ok := obj["isAccessibleForFree"].(bool); ok && b {
		return true
	}
	if s, ok := obj["isAccessibleForFree"].(string); ok && strings.EqualFold(s, "true") {
		return true
	}
	for _, o := range offers {
		if isZeroPrice(o["price"]) || strings.EqualFold(jsonString(o["name"]), "free") {
			return true
		}
		if spec := jsonObject(o["priceSpecification"]); spec != nil && isZeroPrice(spec["price"]) {
			return true
		}
	}
	return strings.EqualFold(strings.TrimSpace(price), "free")
}

func isZeroPrice(v any) bool {
	switch t := v.(type) {
	case float64:
		return t == 0
	case string:
		s := strings.TrimSpace(t)
		return s == "0" || s == "0.0" || s == "0.00"
	}
	return false
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// splitDateTime turns an ISO timestamp into YYYY-MM-DD and HH:MM, read in the
// timestamp's own offset. A bare date yields no time.
func splitDateTime(s string) (date, clock string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), t.Format("15:04")
		}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("2006-01-02"), ""
	}
	if m := datePrefix.FindString(s); m != "" {
		return m, ""
	}
	return "", ""
}

var monthDayLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
	"1/2/2006",
	"01/02/2006",
}

// parseHumanDate handles the date strings calendar pages print.
func parseHumanDate(s string) string {
	s = collapseSpace(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if d, _ := splitDateTime(s); d != "" {
		return d
	}
	for _, layout := range monthDayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
