package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/searchworks/partfuse/internal/search"
)

// Color palette, single lime accent.
const (
	colorLime     = "154" // part numbers, scores
	colorWhite    = "255" // descriptions
	colorGray     = "245" // provenance, metadata
	colorDarkGray = "238" // separators
	colorYellow   = "220" // degraded notice
)

// resultStyles holds the lipgloss styles for result rendering.
type resultStyles struct {
	part     lipgloss.Style
	desc     lipgloss.Style
	meta     lipgloss.Style
	score    lipgloss.Style
	degraded lipgloss.Style
}

func newResultStyles(styled bool) resultStyles {
	if !styled {
		plain := lipgloss.NewStyle()
		return resultStyles{part: plain, desc: plain, meta: plain, score: plain, degraded: plain}
	}
	return resultStyles{
		part:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorLime)),
		desc:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorWhite)),
		meta:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		score:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorLime)),
		degraded: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
	}
}

// RenderResponse writes the fused results followed by request metadata.
func (w *Writer) RenderResponse(resp *search.Response) {
	styles := newResultStyles(w.useColor)

	if len(resp.Results) == 0 {
		w.Status("🔍", "no results")
	}

	for i, doc := range resp.Results {
		w.renderResult(styles, i+1, doc)
	}

	w.renderInfo(styles, resp.Info)
}

func (w *Writer) renderResult(styles resultStyles, rank int, doc search.RankedDocument) {
	head := fmt.Sprintf("%2d. %s", rank, styles.part.Render(displayPart(doc)))
	head += styles.score.Render(fmt.Sprintf("  (%.4f)", doc.FusedScore))
	_, _ = fmt.Fprintln(w.out, head)

	if doc.Product != nil {
		if line := productLine(doc.Product); line != "" {
			_, _ = fmt.Fprintf(w.out, "    %s\n", styles.desc.Render(line))
		}
	}

	_, _ = fmt.Fprintf(w.out, "    %s\n", styles.meta.Render(provenance(doc)))
}

// displayPart prefers the catalog part number over the bare document ID.
func displayPart(doc search.RankedDocument) string {
	if doc.Product != nil && doc.Product.PartNumber != "" {
		return doc.Product.PartNumber
	}
	return doc.DocID
}

func productLine(p *search.Product) string {
	var parts []string
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	if p.Brand != "" {
		parts = append(parts, p.Brand)
	}
	if p.Price > 0 {
		parts = append(parts, fmt.Sprintf("%.2f", p.Price))
	}
	return strings.Join(parts, " · ")
}

// provenance lists contributing strategies with their ranks.
func provenance(doc search.RankedDocument) string {
	entries := make([]string, 0, len(doc.Strategies))
	for _, s := range doc.Strategies {
		if rank, ok := doc.Ranks[s]; ok {
			entries = append(entries, fmt.Sprintf("%s#%d", s, rank))
		} else {
			entries = append(entries, string(s))
		}
	}
	return "via " + strings.Join(entries, ", ")
}

func (w *Writer) renderInfo(styles resultStyles, info search.Info) {
	names := make([]string, len(info.Strategies))
	for i, s := range info.Strategies {
		names[i] = string(s)
	}

	line := fmt.Sprintf("%s · %s · %s",
		strings.Join(names, "+"), info.FusionMode, info.Elapsed.Round(time.Millisecond))
	if info.CacheHit {
		line += " · cached"
	}

	w.Newline()
	_, _ = fmt.Fprintln(w.out, styles.meta.Render(line))

	if info.Degraded {
		failed := make([]string, len(info.FailedStrategies))
		for i, s := range info.FailedStrategies {
			failed[i] = string(s)
		}
		notice := fmt.Sprintf("degraded: %s unavailable", strings.Join(failed, ", "))
		_, _ = fmt.Fprintln(w.out, styles.degraded.Render(notice))
	}
}
