package chatlog

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/authdash/console/internal/chat"
	"github.com/authdash/console/internal/theme"
)

const gaugeFPS = 60

// GaugeFrameMsg advances the word gauge animation.
type GaugeFrameMsg struct{}

func gaugeFrame() tea.Cmd {
	return tea.Tick(time.Second/gaugeFPS, func(time.Time) tea.Msg {
		return GaugeFrameMsg{}
	})
}

// Gauge is the live word counter: a bar that springs toward the current
// share of the word limit, plus an exact "n/30 words" label. The label and
// color always reflect the true count; only the bar is animated.
type Gauge struct {
	spring    harmonica.Spring
	pos, vel  float64
	target    float64
	words     int
	animating bool
}

func NewGauge() Gauge {
	return Gauge{spring: harmonica.NewSpring(harmonica.FPS(gaugeFPS), 8.0, 0.6)}
}

// SetWords updates the count and returns a frame command when the bar has
// to start moving.
func (g *Gauge) SetWords(n int) tea.Cmd {
	g.words = n
	g.target = min(float64(n)/float64(chat.MaxWords), 1.2)
	if g.animating || g.settled() {
		return nil
	}
	g.animating = true
	return gaugeFrame()
}

// Step advances one frame and returns the next frame command, or nil once
// the bar has settled.
func (g *Gauge) Step() tea.Cmd {
	g.pos, g.vel = g.spring.Update(g.pos, g.vel, g.target)
	if g.settled() {
		g.pos, g.vel = g.target, 0
		g.animating = false
		return nil
	}
	return gaugeFrame()
}

func (g Gauge) settled() bool {
	return math.Abs(g.pos-g.target) < 0.002 && math.Abs(g.vel) < 0.002
}

// Words returns the count the gauge shows.
func (g Gauge) Words() int { return g.words }

// Level returns the counter level for the current count.
func (g Gauge) Level() chat.Level { return chat.CounterLevel(g.words) }

// View renders the bar and label into width cells.
func (g Gauge) View(width int) string {
	color := theme.CounterColor(g.Level().String())
	label := fmt.Sprintf("%d/%d words", g.words, chat.MaxWords)

	barWidth := width - lipgloss.Width(label) - 1
	if barWidth < 4 {
		return lipgloss.NewStyle().Foreground(color).Render(label)
	}
	filled := int(math.Round(min(max(g.pos, 0), 1) * float64(barWidth)))
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		theme.StyleDimmed.Render(strings.Repeat("░", barWidth-filled))
	return bar + " " + lipgloss.NewStyle().Foreground(color).Render(label)
}
