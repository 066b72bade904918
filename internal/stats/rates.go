// Package stats computes coder productivity statistics from coding
// submission timestamps.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/vocalab/vococode-go/internal/datastore"
	"github.com/vocalab/vococode-go/internal/logging"
)

// sessionGap is the idle time that splits two submissions into separate
// coding sessions.
const sessionGap = 10 * time.Minute

// CoderRate summarizes one coder's output over the queried window.
type CoderRate struct {
	CoderID         uint
	CoderName       string
	CodingCount     int
	Sessions        int
	ActiveTime      time.Duration
	CodingsPerHour  float64
	FirstSubmission time.Time
	LastSubmission  time.Time
}

// Calculator derives per-coder rates from the store's coding events.
// Results are cached briefly since the dashboard polls them.
type Calculator struct {
	store  datastore.Interface
	cache  *cache.Cache
	logger *slog.Logger
}

// New creates a rate Calculator.
func New(store datastore.Interface) *Calculator {
	return &Calculator{
		store:  store,
		cache:  cache.New(5*time.Minute, 10*time.Minute),
		logger: logging.ForService("stats"),
	}
}

// CoderRates returns per-coder session statistics for submissions between
// start and end. Either bound may be nil for an open interval. Coders are
// ordered by descending coding count.
func (c *Calculator) CoderRates(ctx context.Context, start, end *time.Time) ([]CoderRate, error) {
	key := cacheKey(start, end)
	if cached, found := c.cache.Get(key); found {
		return cached.([]CoderRate), nil
	}

	events, err := c.store.CodingEvents(ctx, start, end)
	if err != nil {
		return nil, err
	}

	byCoder := make(map[uint][]datastore.CodingEvent)
	names := make(map[uint]string)
	for _, ev := range events {
		byCoder[ev.CoderID] = append(byCoder[ev.CoderID], ev)
		names[ev.CoderID] = ev.CoderName
	}

	rates := make([]CoderRate, 0, len(byCoder))
	for coderID, coderEvents := range byCoder {
		rate := sessionStats(coderEvents)
		rate.CoderID = coderID
		rate.CoderName = names[coderID]
		rates = append(rates, rate)
	}
	sort.Slice(rates, func(i, j int) bool {
		if rates[i].CodingCount != rates[j].CodingCount {
			return rates[i].CodingCount > rates[j].CodingCount
		}
		return rates[i].CoderID < rates[j].CoderID
	})

	c.cache.Set(key, rates, cache.DefaultExpiration)

	c.logger.Debug("Coder rates computed",
		"coders", len(rates),
		"events", len(events))

	return rates, nil
}

// sessionStats folds one coder's events into session counts and active time.
// A gap longer than sessionGap ends the current session; single-submission
// sessions contribute no active time.
func sessionStats(events []datastore.CodingEvent) CoderRate {
	sort.Slice(events, func(i, j int) bool {
		return events[i].CodedAt.Before(events[j].CodedAt)
	})

	rate := CoderRate{
		CodingCount:     len(events),
		Sessions:        1,
		FirstSubmission: events[0].CodedAt,
		LastSubmission:  events[len(events)-1].CodedAt,
	}

	var active time.Duration
	for i := 1; i < len(events); i++ {
		gap := events[i].CodedAt.Sub(events[i-1].CodedAt)
		if gap > sessionGap {
			rate.Sessions++
			continue
		}
		active += gap
	}
	rate.ActiveTime = active

	if active > 0 {
		rate.CodingsPerHour = float64(len(events)) / active.Hours()
	}

	return rate
}

func cacheKey(start, end *time.Time) string {
	var s, e int64
	if start != nil {
		s = start.Unix()
	}
	if end != nil {
		e = end.Unix()
	}
	return fmt.Sprintf("rates:%d:%d", s, e)
}
