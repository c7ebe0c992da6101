package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"

	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

const (
	colorA        = "#27ae60"
	colorB        = "#3498db"
	transparentBg = "rgba(0,0,0,0)"
)

// Figure is a Plotly figure: a list of traces and a layout.
type Figure struct {
	Data   []map[string]any `json:"data"`
	Layout map[string]any   `json:"layout"`
}

func (f Figure) JSON() (string, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode figure: %w", err)
	}
	return string(raw), nil
}

func centeredTitle(text string) map[string]any {
	return map[string]any{"text": text, "x": 0.5, "xanchor": "center"}
}

func baseLayout(title string, height int, margin map[string]int) map[string]any {
	return map[string]any{
		"title":         centeredTitle(title),
		"height":        height,
		"margin":        margin,
		"paper_bgcolor": transparentBg,
		"plot_bgcolor":  transparentBg,
		"font":          map[string]any{"size": 12},
	}
}

func emptyFigure(message string, height int) Figure {
	return Figure{
		Data: []map[string]any{},
		Layout: map[string]any{
			"height": height,
			"annotations": []map[string]any{{
				"text":      message,
				"xref":      "paper",
				"yref":      "paper",
				"x":         0.5,
				"y":         0.5,
				"showarrow": false,
				"font":      map[string]any{"size": 16, "color": "gray"},
			}},
		},
	}
}

// FunnelChart compares started, completed and repeated counts per variant.
func FunnelChart(a, b models.VariantStats) Figure {
	stages := []string{"Started", "Completed", "Repeated"}
	trace := func(name, color string, s models.VariantStats) map[string]any {
		return map[string]any{
			"type":          "funnel",
			"name":          name,
			"y":             stages,
			"x":             []int{s.NStarted, s.NCompleted, s.NRepeated},
			"textinfo":      "value+percent initial",
			"marker":        map[string]any{"color": color, "line": map[string]any{"width": 2, "color": "white"}},
			"connector":     map[string]any{"line": map[string]any{"color": color, "width": 2}},
			"hovertemplate": "<b>" + name + " - %{y}</b><br>Count: %{x}<br>%{percentInitial}<extra></extra>",
		}
	}
	layout := baseLayout("User Funnel: Variant A vs B", 400, map[string]int{"l": 20, "r": 20, "t": 60, "b": 20})
	layout["showlegend"] = true
	layout["hovermode"] = "closest"
	return Figure{
		Data:   []map[string]any{trace("Variant A", colorA, a), trace("Variant B", colorB, b)},
		Layout: layout,
	}
}

// TimeDistribution overlays histograms of successful completion times with a
// dashed line at each variant's mean.
func TimeDistribution(events []models.TrackEvent) Figure {
	aTimes := SuccessTimes(events, models.VariantA)
	bTimes := SuccessTimes(events, models.VariantB)
	if len(aTimes) == 0 && len(bTimes) == 0 {
		return emptyFigure("No completion data available yet", 400)
	}

	var traces []map[string]any
	var shapes, annotations []map[string]any
	add := func(variant models.Variant, color string, times []float64) {
		if len(times) == 0 {
			return
		}
		name := "Variant " + string(variant)
		traces = append(traces, map[string]any{
			"type":          "histogram",
			"name":          name,
			"x":             times,
			"marker":        map[string]any{"color": color},
			"opacity":       0.7,
			"nbinsx":        20,
			"hovertemplate": "<b>" + name + "</b><br>Time: %{x:.2f}s<br>Count: %{y}<extra></extra>",
		})
		mean := lo.Sum(times) / float64(len(times))
		shapes = append(shapes, map[string]any{
			"type": "line", "xref": "x", "yref": "paper",
			"x0": mean, "x1": mean, "y0": 0, "y1": 1,
			"line": map[string]any{"color": color, "dash": "dash"},
		})
		annotations = append(annotations, map[string]any{
			"x": mean, "xref": "x", "y": 1, "yref": "paper",
			"text":      fmt.Sprintf("%s avg: %.2fs", variant, mean),
			"showarrow": false, "yanchor": "bottom",
		})
	}
	add(models.VariantA, colorA, aTimes)
	add(models.VariantB, colorB, bTimes)

	layout := baseLayout("Completion Time Distribution", 400, map[string]int{"l": 40, "r": 20, "t": 60, "b": 40})
	layout["xaxis"] = map[string]any{"title": map[string]any{"text": "Completion Time (seconds)"}}
	layout["yaxis"] = map[string]any{"title": map[string]any{"text": "Count"}}
	layout["barmode"] = "overlay"
	layout["showlegend"] = true
	layout["hovermode"] = "closest"
	layout["shapes"] = shapes
	layout["annotations"] = annotations
	return Figure{Data: traces, Layout: layout}
}

// SuccessRateChart is a bar per variant of the conversion rate in percent.
func SuccessRateChart(a, b models.VariantStats) Figure {
	rates := []float64{a.ConversionRate * 100, b.ConversionRate * 100}
	layout := baseLayout("Success Rate Comparison", 350, map[string]int{"l": 40, "r": 20, "t": 60, "b": 40})
	layout["yaxis"] = map[string]any{
		"title": map[string]any{"text": "Success Rate (%)"},
		"range": []float64{0, axisMax(rates, 1.2)},
	}
	layout["showlegend"] = false
	return Figure{
		Data: []map[string]any{{
			"type":          "bar",
			"x":             []string{"Variant A", "Variant B"},
			"y":             rates,
			"marker":        map[string]any{"color": []string{colorA, colorB}},
			"text":          lo.Map(rates, func(r float64, _ int) string { return fmt.Sprintf("%.1f%%", r) }),
			"textposition":  "outside",
			"hovertemplate": "<b>%{x}</b><br>Success Rate: %{y:.1f}%<extra></extra>",
		}},
		Layout: layout,
	}
}

// AvgTimeChart is a bar per variant of the mean completion time with
// asymmetric error bars at the 95% interval bounds.
func AvgTimeChart(a, b models.VariantStats) Figure {
	if a.TimeStats == nil || b.TimeStats == nil {
		return emptyFigure("Not enough data for comparison", 350)
	}
	stats := []*models.TimeStats{a.TimeStats, b.TimeStats}
	means := lo.Map(stats, func(s *models.TimeStats, _ int) float64 { return s.Mean })
	upper := lo.Map(stats, func(s *models.TimeStats, _ int) float64 { return round(s.CIUpper-s.Mean, 2) })
	lower := lo.Map(stats, func(s *models.TimeStats, _ int) float64 { return round(s.Mean-s.CILower, 2) })

	layout := baseLayout("Average Completion Time (with 95% CI)", 350, map[string]int{"l": 40, "r": 20, "t": 60, "b": 40})
	layout["yaxis"] = map[string]any{
		"title": map[string]any{"text": "Time (seconds)"},
		"range": []float64{0, axisMax(means, 1.3)},
	}
	layout["showlegend"] = false
	return Figure{
		Data: []map[string]any{{
			"type": "bar",
			"x":    []string{"Variant A", "Variant B"},
			"y":    means,
			"error_y": map[string]any{
				"type":       "data",
				"symmetric":  false,
				"array":      upper,
				"arrayminus": lower,
			},
			"marker":        map[string]any{"color": []string{colorA, colorB}},
			"text":          lo.Map(means, func(m float64, _ int) string { return fmt.Sprintf("%.2fs", m) }),
			"textposition":  "outside",
			"hovertemplate": "<b>%{x}</b><br>Avg Time: %{y:.2f}s<br>95% CI shown<extra></extra>",
		}},
		Layout: layout,
	}
}

func axisMax(values []float64, headroom float64) float64 {
	top := lo.Max(values)
	if top <= 0 {
		return 1
	}
	return round(top*headroom, 2)
}
