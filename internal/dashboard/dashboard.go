// Package dashboard polls the collector for aggregate stats and chart
// payloads and hands the results to a renderer.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
	util "github.com/CodeAndHammer/wordsprint/internal/util"
)

type Panel string

const (
	PanelStats            Panel = "stats"
	PanelFunnel           Panel = "funnel"
	PanelTimeDistribution Panel = "time_distribution"
	PanelComparison       Panel = "comparison"
)

// Panels lists every panel in display order.
var Panels = []Panel{PanelStats, PanelFunnel, PanelTimeDistribution, PanelComparison}

const Unavailable = "data unavailable"

// NoResults is shown when the collector has nothing to aggregate yet.
const NoResults = "no results yet"

type Source interface {
	Stats(ctx context.Context) (*models.StatsResponse, error)
	FunnelChart(ctx context.Context) (*models.ChartResponse, error)
	TimeDistribution(ctx context.Context) (*models.ChartResponse, error)
	ComparisonCharts(ctx context.Context) (*models.ChartResponse, error)
}

// Renderer replaces the content of one panel. Calls are serialized.
type Renderer interface {
	Render(panel Panel, content string)
}

type Poller struct {
	source   Source
	renderer Renderer
	interval time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	renderMu sync.Mutex
	rendered map[Panel]bool
}

func NewPoller(source Source, renderer Renderer, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = constants.PollInterval
	}
	return &Poller{
		source:   source,
		renderer: renderer,
		interval: interval,
		rendered: make(map[Panel]bool),
	}
}

// Start fetches immediately and then on every interval. A running poller is
// stopped first so only one timer is ever active.
func (p *Poller) Start(ctx context.Context) {
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		p.Refresh(loopCtx)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				p.Refresh(loopCtx)
			}
		}
	}()
}

// Stop halts polling. Rendered content is left as it is.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Refresh runs one round of independent fetches and waits for all of them.
func (p *Poller) Refresh(ctx context.Context) {
	var wg sync.WaitGroup
	fetch := func(panel Panel, load func() (string, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content, err := load()
			p.render(ctx, panel, content, err)
		}()
	}

	fetch(PanelStats, func() (string, error) {
		stats, err := p.source.Stats(ctx)
		if err != nil {
			return "", err
		}
		return FormatStats(stats), nil
	})
	fetch(PanelFunnel, func() (string, error) {
		return chartSummary(p.source.FunnelChart(ctx))
	})
	fetch(PanelTimeDistribution, func() (string, error) {
		return chartSummary(p.source.TimeDistribution(ctx))
	})
	fetch(PanelComparison, func() (string, error) {
		return chartSummary(p.source.ComparisonCharts(ctx))
	})
	wg.Wait()
}

func (p *Poller) render(ctx context.Context, panel Panel, content string, err error) {
	if ctx.Err() != nil {
		return
	}
	p.renderMu.Lock()
	defer p.renderMu.Unlock()
	if err != nil {
		util.LogWarn("Error loading %s: %v", panel, err)
		if p.rendered[panel] {
			return
		}
		content = Unavailable
	} else {
		p.rendered[panel] = true
	}
	p.renderer.Render(panel, content)
}

// FormatStats renders the per-variant summary table.
func FormatStats(stats *models.StatsResponse) string {
	if stats == nil || stats.Status != constants.StatusSuccess {
		msg := NoResults
		if stats != nil && stats.Message != "" {
			msg = stats.Message
		}
		return msg
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %8s %12s %10s %10s\n", "Variant", "Users", "Conversions", "Rate", "Avg time")
	row := func(name models.Variant, v *models.VariantStats) {
		if v == nil {
			fmt.Fprintf(&b, "%-8s %8s %12s %10s %10s\n", name, "-", "-", "-", "-")
			return
		}
		avg := "-"
		if v.AvgCompletionTime != nil {
			avg = fmt.Sprintf("%.2fs", *v.AvgCompletionTime)
		}
		fmt.Fprintf(&b, "%-8s %8d %12d %9.1f%% %10s\n", name, v.NUsers, v.Conversions, v.ConversionRate*100, avg)
	}
	row(models.VariantA, stats.VariantA)
	row(models.VariantB, stats.VariantB)
	if d := stats.DifficultyAnalysis; d != nil {
		fmt.Fprintf(&b, "Difficulty: %s (success rate diff %.1f pts)\n", d.DifficultyLabel, d.SuccessRateDifference)
	}
	if f := stats.Frequentist; f != nil {
		verdict := "not significant"
		if f.Significant {
			verdict = "significant"
		}
		fmt.Fprintf(&b, "p-value: %.4f (%s)\n", f.PValue, verdict)
	}
	return b.String()
}

type figure struct {
	Data   []json.RawMessage `json:"data"`
	Layout struct {
		Title struct {
			Text string `json:"text"`
		} `json:"title"`
	} `json:"layout"`
}

// chartSummary reports which figures arrived. Figures are not drawn.
func chartSummary(res *models.ChartResponse, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if res.Status != constants.StatusSuccess {
		if res.Message != "" {
			return res.Message, nil
		}
		return NoResults, nil
	}
	var lines []string
	for _, raw := range []string{res.Chart, res.SuccessRateChart, res.AvgTimeChart} {
		if raw == "" {
			continue
		}
		var fig figure
		if err := json.Unmarshal([]byte(raw), &fig); err != nil {
			return "", fmt.Errorf("decode chart: %w", err)
		}
		title := fig.Layout.Title.Text
		if title == "" {
			title = "chart"
		}
		lines = append(lines, fmt.Sprintf("%s (%d series)", title, len(fig.Data)))
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("empty chart payload")
	}
	return strings.Join(lines, "\n"), nil
}
