package export

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"trade-journal/internal/analytics"
	jerrors "trade-journal/internal/errors"
)

const (
	colorBalance  = "#22c55e"
	colorDrawdown = "#ef4444"
)

// RenderEquityChart writes an HTML page with the equity curve and drawdown
// of a balance walk. An empty curve is ErrDataNotFound.
func RenderEquityChart(w io.Writer, curve []analytics.EquityPoint, title string) error {
	if len(curve) == 0 {
		return jerrors.Wrap(jerrors.ErrDataNotFound, "no closed trades to chart")
	}

	xAxis := make([]string, len(curve))
	balance := make([]opts.LineData, len(curve))
	drawdown := make([]opts.LineData, len(curve))
	for i, p := range curve {
		xAxis[i] = p.Time.UTC().Format(analytics.DateLayout)
		balance[i] = opts.LineData{Value: p.Balance}
		drawdown[i] = opts.LineData{Value: -p.Drawdown}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "Cumulative P/L by closed trade"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis).
		AddSeries("Balance", balance, charts.WithLineStyleOpts(opts.LineStyle{Color: colorBalance, Width: 2})).
		AddSeries("Drawdown", drawdown, charts.WithLineStyleOpts(opts.LineStyle{Color: colorDrawdown, Width: 1})).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	if err := line.Render(w); err != nil {
		return jerrors.Wrap(err, "render equity chart")
	}
	return nil
}
