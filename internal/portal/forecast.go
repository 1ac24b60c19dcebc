package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rmpower/internal/browser"
	"rmpower/pkg/models"
)

// ErrNoForecast means the usage view was reached but no billing forecast
// panel could be parsed from it.
var ErrNoForecast = errors.New("no billing forecast found")

// ExtractForecast reads the billing-cycle projection from the energy usage
// view. Not every account shows one; a reachable view without the panel is
// ErrNoForecast.
func (f *Flow) ExtractForecast(ctx context.Context, sess *browser.Session) (*models.Forecast, error) {
	if err := f.transport.Navigate(ctx, sess, UsageURL); err != nil {
		return nil, fmt.Errorf("opening usage view: %w", err)
	}
	if err := f.transport.WaitFor(ctx, sess, anyLandmark(forecastLandmark), f.waitTimeout); err != nil {
		return nil, fmt.Errorf("waiting for billing forecast: %w", err)
	}

	html, err := f.transport.PageSource(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("reading usage view: %w", err)
	}
	return ParseForecastPanel(html)
}

// ParseForecastPanel parses the billing forecast panel out of the rendered
// usage view markup.
func ParseForecastPanel(pageHTML string) (*models.Forecast, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parsing usage page: %w", err)
	}

	panel := doc.Find("div.billing-forecast").First()
	if panel.Length() == 0 {
		return nil, ErrNoForecast
	}

	cycleStart, err := parseUsageDate(panel.Find(".cycle-start").First().Text())
	if err != nil {
		return nil, fmt.Errorf("forecast cycle start: %w", err)
	}
	cycleEnd, err := parseUsageDate(panel.Find(".cycle-end").First().Text())
	if err != nil {
		return nil, fmt.Errorf("forecast cycle end: %w", err)
	}
	if cycleEnd.Before(cycleStart) {
		return nil, fmt.Errorf("forecast cycle ends %s before it starts %s",
			cycleEnd.Format("2006-01-02"), cycleStart.Format("2006-01-02"))
	}

	cost, err := parseDollars(panel.Find(".projected-cost").First().Text())
	if err != nil {
		return nil, fmt.Errorf("projected cost: %w", err)
	}
	// Low/high bounds are optional; fall back to the projected cost.
	low, err := parseDollars(panel.Find(".projected-cost-low").First().Text())
	if err != nil {
		low = cost
	}
	high, err := parseDollars(panel.Find(".projected-cost-high").First().Text())
	if err != nil {
		high = cost
	}

	return &models.Forecast{
		CycleStart: cycleStart,
		CycleEnd:   cycleEnd,
		CostLow:    low,
		Cost:       cost,
		CostHigh:   high,
	}, nil
}
