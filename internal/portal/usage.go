package portal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rmpower/internal/browser"
	"rmpower/pkg/models"
)

// ErrNoUsageRows means the usage view was reached but no valid rows could be
// parsed from it. An empty view is never silently treated as "no usage".
var ErrNoUsageRows = errors.New("no valid usage rows")

// ExtractOptions control the usage extraction.
type ExtractOptions struct {
	// FollowPagination pages backwards through earlier periods instead of
	// reading only the default (most recent) view.
	FollowPagination bool
	// MaxPages caps how many pages are read when paginating. Zero or one
	// reads only the default view.
	MaxPages int
}

// ExtractUsage navigates to the usage view, waits for the asynchronously
// rendered history to appear, and parses it into daily records sorted by
// date ascending with no duplicate dates.
func (f *Flow) ExtractUsage(ctx context.Context, sess *browser.Session, opts ExtractOptions) ([]models.UsageRecord, error) {
	if err := f.transport.Navigate(ctx, sess, UsageURL); err != nil {
		return nil, fmt.Errorf("opening usage view: %w", err)
	}
	if err := f.transport.WaitFor(ctx, sess, anyLandmark(usageViewLandmark), f.waitTimeout); err != nil {
		return nil, fmt.Errorf("waiting for usage view: %w", err)
	}

	html, err := f.transport.PageSource(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("reading usage view: %w", err)
	}
	records, err := ParseUsageTable(html)
	if err != nil {
		return nil, err
	}

	for page := 1; opts.FollowPagination && page < opts.MaxPages; page++ {
		more, next, err := f.previousPage(ctx, sess, html)
		if err != nil {
			return nil, err
		}
		if more == nil {
			break
		}
		records = append(records, more...)
		html = next
	}

	records = normalizeRecords(records)
	if len(records) == 0 {
		return nil, ErrNoUsageRows
	}
	f.log.WithField("records", len(records)).Debug("usage extracted")
	return records, nil
}

// previousPage clicks the portal's previous-period control and parses the
// page that replaces the current one. A nil record slice with nil error
// means the last reachable page has been passed: the control is gone or the
// content never changed.
func (f *Flow) previousPage(ctx context.Context, sess *browser.Session, currentHTML string) ([]models.UsageRecord, string, error) {
	err := f.clickFirst(ctx, sess, "previous-period", previousPeriodStrategies)
	if err != nil {
		if errors.Is(err, browser.ErrElementNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}

	usagePresent := anyLandmark(usageViewLandmark)
	changed := func(pageHTML string) bool {
		return pageHTML != currentHTML && usagePresent(pageHTML)
	}
	if err := f.transport.WaitFor(ctx, sess, changed, f.waitTimeout); err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			return nil, "", nil
		}
		return nil, "", err
	}

	html, err := f.transport.PageSource(ctx, sess)
	if err != nil {
		return nil, "", fmt.Errorf("reading usage view: %w", err)
	}
	records, err := ParseUsageTable(html)
	if err != nil {
		return nil, "", err
	}
	if len(records) == 0 {
		return nil, "", nil
	}
	return records, html, nil
}

// ParseUsageTable parses the rendered usage history markup into records.
// Rows missing a parseable date or value are skipped rather than failing
// the batch; the caller decides what an empty result means. Parsing is
// deterministic: the same markup always yields the same records.
func ParseUsageTable(pageHTML string) ([]models.UsageRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parsing usage page: %w", err)
	}

	var table *goquery.Selection
	for _, sel := range usageTableSelectors {
		if t := doc.Find(sel).First(); t.Length() > 0 {
			table = t
			break
		}
	}
	if table == nil {
		return nil, nil
	}

	var records []models.UsageRecord
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		// Header rows carry th cells and fall out here.
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		date, err := parseUsageDate(cells.Eq(0).Text())
		if err != nil {
			return
		}
		value, unit, err := parseUsageValue(cells.Eq(1).Text())
		if err != nil {
			return
		}
		rec := models.UsageRecord{Date: date, KWh: value, Unit: unit}
		if cells.Length() >= 3 {
			if cost, err := parseDollars(cells.Eq(2).Text()); err == nil {
				rec.Cost = cost
			}
		}
		records = append(records, rec)
	})

	return records, nil
}

// normalizeRecords dedupes by date keeping the last-seen value, then sorts
// ascending by date.
func normalizeRecords(records []models.UsageRecord) []models.UsageRecord {
	byDate := make(map[string]models.UsageRecord, len(records))
	for _, rec := range records {
		byDate[rec.DateKey()] = rec
	}
	out := make([]models.UsageRecord, 0, len(byDate))
	for _, rec := range byDate {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// usageDateFormats are tried in order; the portal has rendered several of
// these across deployments.
var usageDateFormats = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
}

func parseUsageDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, format := range usageDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

func parseUsageValue(s string) (float64, models.Unit, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	unit := models.UnitKWh
	switch {
	case strings.HasSuffix(s, "kwh"):
		s = strings.TrimSuffix(s, "kwh")
	case strings.HasSuffix(s, "therms"):
		s = strings.TrimSuffix(s, "therms")
		unit = models.UnitTherm
	case strings.HasSuffix(s, "therm"):
		s = strings.TrimSuffix(s, "therm")
		unit = models.UnitTherm
	}

	if s == "" {
		return 0, "", fmt.Errorf("empty value")
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, "", err
	}
	if value < 0 {
		return 0, "", fmt.Errorf("negative usage value: %s", s)
	}
	return value, unit, nil
}

func parseDollars(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	return strconv.ParseFloat(s, 64)
}
