package shop

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/display"
	"github.com/wcharczuk/go-chart/v2"
)

const (
	// MinChartDays and MaxChartDays bound the sales chart window.
	MinChartDays = 2
	MaxChartDays = 30

	chartWidth      = 1024
	chartHeight     = 512
	titleFontSize   = 12.0
	axisFontSize    = 10.0
	xAxisRotation   = 45.0
	seriesLineWidth = 3.0
	seriesDotWidth  = 4.0
	gridLineWidth   = 1.0
	chartPadding    = 30
)

// SalesSummary totals revenue over the usual reporting windows.
type SalesSummary struct {
	Today    int64
	Week     int64
	Month    int64
	AllTime  int64
	Computed time.Time
}

type salesWindow struct {
	since time.Time
	dst   *int64
}

// DailyTotal is the revenue of one calendar day.
type DailyTotal struct {
	Day   time.Time
	Total int64
	Count int
}

// SalesSummary sums sales for today, the last 7 days, this month and all time.
func (s *Service) SalesSummary(ctx context.Context, guildID snowflake.ID) (*SalesSummary, error) {
	now := s.now()
	today := startOfDay(now)

	summary := &SalesSummary{Computed: now}
	windows := []salesWindow{
		{since: today, dst: &summary.Today},
		{since: now.Add(-7 * 24 * time.Hour), dst: &summary.Week},
		{since: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), dst: &summary.Month},
		{dst: &summary.AllTime},
	}

	for _, w := range windows {
		total, err := s.store.SumSales(ctx, guildID, w.since)
		if err != nil {
			return nil, fmt.Errorf("failed to sum sales: %w", err)
		}
		*w.dst = total
	}

	return summary, nil
}

// DailySales returns one total per day for the last days days, oldest first.
// Days without sales are included with a zero total.
func (s *Service) DailySales(ctx context.Context, guildID snowflake.ID, days int) ([]DailyTotal, error) {
	days = min(max(days, MinChartDays), MaxChartDays)

	first := startOfDay(s.now()).AddDate(0, 0, -(days - 1))
	purchases, err := s.store.GetPurchasesSince(ctx, guildID, first)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchases: %w", err)
	}

	totals := make([]DailyTotal, days)
	index := make(map[time.Time]int, days)
	for i := range totals {
		totals[i].Day = first.AddDate(0, 0, i)
		index[totals[i].Day] = i
	}

	for _, purchase := range purchases {
		idx, ok := index[startOfDay(purchase.PurchasedAt.In(first.Location()))]
		if !ok {
			continue
		}
		totals[idx].Total += purchase.TotalPrice
		totals[idx].Count++
	}

	return totals, nil
}

// BuildSalesChart renders daily revenue as a PNG line chart.
func BuildSalesChart(totals []DailyTotal) (*bytes.Buffer, error) {
	if len(totals) < MinChartDays {
		return nil, fmt.Errorf("%w: need at least %d days", ErrNotEnoughData, MinChartDays)
	}

	xValues := make([]float64, len(totals))
	yValues := make([]float64, len(totals))
	ticks := make([]chart.Tick, len(totals))
	gridLines := make([]chart.GridLine, len(totals))
	peak := 0.0

	for i, total := range totals {
		xValues[i] = float64(i)
		yValues[i] = float64(total.Total)
		ticks[i] = chart.Tick{Value: float64(i), Label: total.Day.Format("Jan 02")}
		gridLines[i] = chart.GridLine{Value: float64(i)}
		peak = max(peak, yValues[i])
	}

	// A flat series has no y-range of its own.
	if peak == 0 {
		peak = 1
	}

	graph := &chart.Chart{
		Title:      fmt.Sprintf("Sales (%d days)", len(totals)),
		TitleStyle: chart.Style{FontSize: titleFontSize},
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: chartPadding, Left: chartPadding, Right: chartPadding, Bottom: chartPadding},
		},
		XAxis: chart.XAxis{
			Style: chart.Style{FontSize: axisFontSize, TextRotationDegrees: xAxisRotation},
			GridMajorStyle: chart.Style{
				StrokeColor: chart.ColorAlternateGray,
				StrokeWidth: gridLineWidth,
			},
			GridLines:    gridLines,
			Ticks:        ticks,
			TickPosition: chart.TickPositionUnderTick,
		},
		YAxis: chart.YAxis{
			Style: chart.Style{FontSize: axisFontSize},
			Range: &chart.ContinuousRange{Min: 0, Max: peak * 1.1},
			GridMajorStyle: chart.Style{
				StrokeColor: chart.ColorAlternateGray,
				StrokeWidth: gridLineWidth,
			},
			ValueFormatter: func(v any) string {
				if f, ok := v.(float64); ok {
					return display.FormatRupiah(int64(f))
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Revenue",
				XValues: xValues,
				YValues: yValues,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: seriesLineWidth,
					DotColor:    chart.ColorBlue,
					DotWidth:    seriesDotWidth,
				},
			},
		},
	}

	buf := new(bytes.Buffer)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("failed to render sales chart: %w", err)
	}

	return buf, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
