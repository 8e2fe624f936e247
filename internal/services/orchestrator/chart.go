package orchestrator

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/seralab/tunex/internal/models"
)

// renderParetoChart plots the recall/latency tradeoff per candidate.
// Returns raw PNG bytes.
func renderParetoChart(candidates []models.Candidate) ([]byte, error) {
	if len(candidates) < 2 {
		return nil, fmt.Errorf("need at least 2 candidates, got %d", len(candidates))
	}

	xValues := make([]float64, len(candidates))
	yValues := make([]float64, len(candidates))
	for i, c := range candidates {
		xValues[i] = c.P95MS
		yValues[i] = c.RecallAt10
	}

	scatter := chart.ContinuousSeries{
		Name: "Candidates",
		Style: chart.Style{
			StrokeWidth: chart.Disabled,
			DotWidth:    5,
			DotColor:    drawing.ColorFromHex("2563eb"), // blue-600
		},
		XValues: xValues,
		YValues: yValues,
	}

	graph := chart.Chart{
		Title:  "Recall vs Latency",
		Width:  700,
		Height: 450,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Name: "p95 (ms)",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name: "recall@10",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{scatter},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// renderABDiffChart plots per-round p95 for the control and variant
// phases. Two series: control (blue solid) and variant (orange dashed).
func renderABDiffChart(aPhases, bPhases []models.PhaseStats) ([]byte, error) {
	n := len(aPhases)
	if len(bPhases) < n {
		n = len(bPhases)
	}
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 rounds, got %d", n)
	}

	rounds := make([]float64, n)
	aY := make([]float64, n)
	bY := make([]float64, n)
	for i := 0; i < n; i++ {
		rounds[i] = float64(i)
		aY[i] = aPhases[i].P95MS
		bY[i] = bPhases[i].P95MS
	}

	controlSeries := chart.ContinuousSeries{
		Name: "Control (A)",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2.0,
		},
		XValues: rounds,
		YValues: aY,
	}

	variantSeries := chart.ContinuousSeries{
		Name: "Variant (B)",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("ea580c"), // orange-600
			StrokeWidth:     2.0,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: rounds,
		YValues: bY,
	}

	graph := chart.Chart{
		Title:  "A/B p95 by Round",
		Width:  700,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Name: "round",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name: "p95 (ms)",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0fms", f)
				}
				return ""
			},
		},
		Series: []chart.Series{controlSeries, variantSeries},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}
