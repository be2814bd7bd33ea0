// Package finance derives the monetary totals and set schedule of a contract.
// Everything here is pure; amounts are never rounded before presentation.
package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// EarlyLoadinRate is the hourly fee charged for early load-in.
const EarlyLoadinRate = 100.0

const minutesPerDay = 24 * 60

type LineItem struct {
	Quantity  float64
	UnitPrice float64
}

// Input holds the raw contract fields the calculation depends on.
type Input struct {
	BaseCompensation    float64
	MileageTravelFee    float64
	EarlyLoadinRequired bool
	EarlyLoadinHours    float64
	DepositPercentage   float64
	LineItems           []LineItem

	FirstSetStartTime string
	NumberOfSets      int
	SetLength         int
	BreakLength       int
}

// SetTime is one performance set as minute-of-day clock strings.
type SetTime struct {
	Number int    `json:"set_number"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

type Totals struct {
	EarlyLoadinFee     float64   `json:"early_loadin_fee"`
	LineItemsTotal     float64   `json:"line_items_total"`
	TotalCompensation  float64   `json:"total_compensation"`
	DepositAmount      float64   `json:"deposit_amount"`
	BalanceDue         float64   `json:"balance_due"`
	SetTimes           []SetTime `json:"set_times"`
	PerformanceEndTime string    `json:"performance_end_time"`
}

// Calculate computes all derived amounts. Line items are informational and do not
// contribute to TotalCompensation.
func Calculate(in Input) Totals {
	var t Totals
	if in.EarlyLoadinRequired {
		t.EarlyLoadinFee = in.EarlyLoadinHours * EarlyLoadinRate
	}
	for _, it := range in.LineItems {
		t.LineItemsTotal += it.Quantity * it.UnitPrice
	}
	t.TotalCompensation = in.BaseCompensation + in.MileageTravelFee + t.EarlyLoadinFee
	t.DepositAmount = t.TotalCompensation * (in.DepositPercentage / 100)
	t.BalanceDue = t.TotalCompensation - t.DepositAmount

	t.SetTimes = CalculateSetTimes(in.FirstSetStartTime, in.NumberOfSets, in.SetLength, in.BreakLength)
	if n := len(t.SetTimes); n > 0 {
		t.PerformanceEndTime = t.SetTimes[n-1].End
	}
	return t
}

// CalculateSetTimes lays out sets back to back separated by breakLength minutes.
// Times wrap at midnight. An unparsable start or a non-positive set count yields nil.
func CalculateSetTimes(start string, sets, setLength, breakLength int) []SetTime {
	cur, ok := parseClock(start)
	if !ok || sets < 1 {
		return nil
	}
	out := make([]SetTime, 0, sets)
	for i := 1; i <= sets; i++ {
		end := cur + setLength
		out = append(out, SetTime{Number: i, Start: clock(cur), End: clock(end)})
		cur = end + breakLength
	}
	return out
}

func parseClock(s string) (int, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*60 + t.Minute(), true
		}
	}
	return 0, false
}

func clock(minutes int) string {
	m := ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// FormatClock renders "HH:MM" as a 12-hour clock, e.g. "7:00 PM".
func FormatClock(s string) string {
	m, ok := parseClock(s)
	if !ok {
		return s
	}
	t := time.Date(0, 1, 1, m/60, m%60, 0, 0, time.UTC)
	return t.Format("3:04 PM")
}

// Round2 rounds half away from zero to cents.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// FormatCurrency renders a dollar amount with thousands separators, e.g. "$1,750.00".
func FormatCurrency(v float64) string {
	r := Round2(v)
	sign := ""
	if r < 0 {
		sign = "-"
		r = -r
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", r)
}

// FormatPercent renders a percentage without trailing zeros.
func FormatPercent(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String() + "%"
}
