package report

import (
	"bytes"
	"slices"
	"time"
	"tle_arena/internal/domain/model"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	chartBackground = drawing.ColorFromHex("ffffff")
	chartLine       = drawing.ColorFromHex("2b6cb0")
	chartDot        = drawing.ColorFromHex("d69e2e")
	chartText       = drawing.ColorFromHex("1a202c")
)

// XPHistoryChart draws cumulative XP over time from a player's ledger entries,
// in any order.
func XPHistoryChart(entries []model.XPLedgerEntry) ([]byte, error) {
	if len(entries) == 0 {
		return placeholder("No XP earned yet")
	}

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b model.XPLedgerEntry) int {
		return a.EarnedAt.Compare(b.EarnedAt)
	})

	// start from zero the day before the first grant so a single entry still spans a range
	xs := []time.Time{sorted[0].EarnedAt.Add(-24 * time.Hour)}
	ys := []float64{0}
	total := 0
	for _, e := range sorted {
		total += e.FinalXP
		xs = append(xs, e.EarnedAt)
		ys = append(ys, float64(total))
	}
	if total == 0 {
		return placeholder("No XP earned yet")
	}

	graph := chart.Chart{
		Width:      800,
		Height:     400,
		Background: chart.Style{FillColor: chartBackground},
		Canvas:     chart.Style{FillColor: chartBackground},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
			Style:          chart.Style{FontColor: chartText},
		},
		YAxis: chart.YAxis{
			Name:  "XP",
			Style: chart.Style{FontColor: chartText},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "XP",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: chartLine,
					StrokeWidth: 2,
					DotWidth:    3,
					DotColor:    chartDot,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func placeholder(msg string) ([]byte, error) {
	graph := chart.Chart{
		Width:      400,
		Height:     200,
		Background: chart.Style{FillColor: chartBackground},
		Canvas:     chart.Style{FillColor: chartBackground},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, _ chart.Style) {
				r.SetFontColor(chartText)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				r.Text(msg, (cb.Width()-tb.Width())/2, (cb.Height()+tb.Height())/2)
			},
		},
	}
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
