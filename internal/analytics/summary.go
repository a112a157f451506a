// Package analytics aggregates ingested deal records into summary figures.
//
// All money math runs on decimal values; float64 is never used for prices or
// commissions. The accumulator is streaming so a large export can be
// summarized during the same pass that builds its records.
package analytics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dealdesk/dealdesk/internal/ingest"
)

// AgentTotal is one agent's share of the summarized file.
type AgentTotal struct {
	Agent  string          `json:"agent"`
	Deals  int             `json:"deals"`
	Volume decimal.Decimal `json:"volume"`
}

// StatusTotal is the deal count and sales volume for one status value.
type StatusTotal struct {
	Status string          `json:"status"`
	Deals  int             `json:"deals"`
	Volume decimal.Decimal `json:"volume"`
}

// Summary is the aggregate view of one ingested file.
type Summary struct {
	TotalDeals      int             `json:"totalDeals"`
	PricedDeals     int             `json:"pricedDeals"`
	TotalVolume     decimal.Decimal `json:"totalVolume"`
	AveragePrice    decimal.Decimal `json:"averagePrice"`
	TotalCommission decimal.Decimal `json:"totalCommission"`
	ByStatus        []StatusTotal   `json:"byStatus"`
	ByAgent         []AgentTotal    `json:"byAgent"`
	ClosingsByMonth map[string]int  `json:"closingsByMonth,omitempty"`
}

type statusBucket struct {
	deals  int
	volume decimal.Decimal
}

type agentBucket struct {
	label  string
	deals  int
	volume decimal.Decimal
}

// Accumulator folds records into running totals.
type Accumulator struct {
	deals      int
	priced     int
	volume     decimal.Decimal
	commission decimal.Decimal
	byStatus   map[string]*statusBucket
	byAgent    map[string]*agentBucket
	byMonth    map[string]int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		byStatus: make(map[string]*statusBucket),
		byAgent:  make(map[string]*agentBucket),
		byMonth:  make(map[string]int),
	}
}

// Add folds one record into the totals. Records whose price failed coercion
// count as deals but contribute nothing to volume.
func (a *Accumulator) Add(rec ingest.DomainRecord) {
	a.deals++

	price, priced := rec.Decimal("price")
	if priced {
		a.priced++
		a.volume = a.volume.Add(price)
	}
	if c, ok := rec.Decimal("commission"); ok {
		a.commission = a.commission.Add(c)
	}

	if status, ok := rec.Text("status"); ok && status != "" {
		key := strings.ToLower(status)
		b := a.byStatus[key]
		if b == nil {
			b = &statusBucket{}
			a.byStatus[key] = b
		}
		b.deals++
		if priced {
			b.volume = b.volume.Add(price)
		}
	}

	if agents, ok := rec.Tags("agents"); ok {
		for _, agent := range agents {
			key := strings.ToLower(agent)
			b := a.byAgent[key]
			if b == nil {
				b = &agentBucket{label: agent}
				a.byAgent[key] = b
			}
			b.deals++
			if priced {
				b.volume = b.volume.Add(price)
			}
		}
	}

	if closed, ok := rec.Text("closing_date"); ok && len(closed) >= 7 {
		// Dates are already normalized to ISO form, so the month is a prefix.
		a.byMonth[closed[:7]]++
	}
}

// Summary materializes the totals. Breakdown slices are sorted by volume,
// then name, so output is deterministic.
func (a *Accumulator) Summary() Summary {
	s := Summary{
		TotalDeals:      a.deals,
		PricedDeals:     a.priced,
		TotalVolume:     a.volume,
		TotalCommission: a.commission,
		ByStatus:        make([]StatusTotal, 0, len(a.byStatus)),
		ByAgent:         make([]AgentTotal, 0, len(a.byAgent)),
	}

	if a.priced > 0 {
		s.AveragePrice = a.volume.DivRound(decimal.NewFromInt(int64(a.priced)), 2)
	}

	for status, b := range a.byStatus {
		s.ByStatus = append(s.ByStatus, StatusTotal{Status: status, Deals: b.deals, Volume: b.volume})
	}
	sort.Slice(s.ByStatus, func(i, j int) bool {
		if !s.ByStatus[i].Volume.Equal(s.ByStatus[j].Volume) {
			return s.ByStatus[i].Volume.GreaterThan(s.ByStatus[j].Volume)
		}
		return s.ByStatus[i].Status < s.ByStatus[j].Status
	})

	for _, b := range a.byAgent {
		s.ByAgent = append(s.ByAgent, AgentTotal{Agent: b.label, Deals: b.deals, Volume: b.volume})
	}
	sort.Slice(s.ByAgent, func(i, j int) bool {
		if !s.ByAgent[i].Volume.Equal(s.ByAgent[j].Volume) {
			return s.ByAgent[i].Volume.GreaterThan(s.ByAgent[j].Volume)
		}
		return s.ByAgent[i].Agent < s.ByAgent[j].Agent
	})

	if len(a.byMonth) > 0 {
		s.ClosingsByMonth = make(map[string]int, len(a.byMonth))
		for month, n := range a.byMonth {
			s.ClosingsByMonth[month] = n
		}
	}
	return s
}

// Summarize drains a record iterator into a summary.
func Summarize(it *ingest.RecordIterator) Summary {
	acc := NewAccumulator()
	for it.Next() {
		acc.Add(it.Record())
	}
	return acc.Summary()
}
