// Package mock feeds the relay with synthetic screen streams so the console
// can be exercised without a real agent. Each frame is a small JPEG gauge
// board drawn from the host's live CPU and memory usage.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	frameWidth  = 160
	frameHeight = 96
	jpegQuality = 70
)

// Stats is one host usage sample.
type Stats struct {
	CPU        []float64 // per core, 0-100
	MemPercent float64
}

// Sampler reads host usage.
type Sampler interface {
	Sample(ctx context.Context) (Stats, error)
}

// HostSampler samples the local machine via gopsutil.
type HostSampler struct{}

func (HostSampler) Sample(ctx context.Context) (Stats, error) {
	// Zero interval compares against the previous call instead of blocking.
	cores, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return Stats{}, fmt.Errorf("sampling cpu: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("sampling memory: %w", err)
	}
	return Stats{CPU: cores, MemPercent: vm.UsedPercent}, nil
}

// Publisher receives encoded frames; relay.ScreenHub satisfies it.
type Publisher interface {
	Publish(target string, frame []byte)
}

func NewGenerator(pub Publisher, targets []string, fps int, sampler Sampler, logger *slog.Logger) *MockGenerator {
	if fps <= 0 {
		fps = 5
	}
	if sampler == nil {
		sampler = HostSampler{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MockGenerator{
		pub:     pub,
		targets: targets,
		fps:     fps,
		sampler: sampler,
		logger:  logger.With("component", "mock-agent"),
	}
}

// MockGenerator publishes one frame per target at a fixed rate.
type MockGenerator struct {
	pub     Publisher
	targets []string
	fps     int
	sampler Sampler
	logger  *slog.Logger

	last Stats
}

// Start publishes a first frame synchronously and then keeps going in the
// background until ctx is done.
func (g *MockGenerator) Start(ctx context.Context) {
	g.logger.Info("mock screen agent started", "targets", g.targets, "fps", g.fps)
	g.tick(ctx, 0)
	go g.run(ctx)
}

func (g *MockGenerator) run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(g.fps))
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			g.tick(ctx, tick)
		}
	}
}

func (g *MockGenerator) tick(ctx context.Context, tick int) {
	stats, err := g.sampler.Sample(ctx)
	if err != nil {
		g.logger.Debug("sample failed, reusing previous", "err", err)
		stats = g.last
	}
	g.last = stats

	for i, target := range g.targets {
		img := Draw(stats, tick, palette[i%len(palette)])
		frame, err := encode(img)
		if err != nil {
			g.logger.Error("encoding frame", "target", target, "err", err)
			continue
		}
		g.pub.Publish(target, frame)
	}
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var palette = []color.RGBA{
	{R: 0x4f, G: 0xc3, B: 0xf7, A: 0xff},
	{R: 0x81, G: 0xc7, B: 0x84, A: 0xff},
	{R: 0xff, G: 0xb7, B: 0x4d, A: 0xff},
	{R: 0xba, G: 0x68, B: 0xc8, A: 0xff},
}

var (
	background = color.RGBA{R: 0x12, G: 0x12, B: 0x1a, A: 0xff}
	trough     = color.RGBA{R: 0x2a, G: 0x2a, B: 0x36, A: 0xff}
	memColor   = color.RGBA{R: 0xe5, G: 0x73, B: 0x73, A: 0xff}
	sweepColor = color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
)

// Draw renders a gauge board: one vertical bar per core in accent, a
// horizontal memory bar along the bottom and a sweep line that moves with
// tick so consecutive frames always differ.
func Draw(s Stats, tick int, accent color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	fill(img, img.Bounds(), background)

	const (
		pad       = 4
		memHeight = 10
	)
	barsArea := image.Rect(pad, pad, frameWidth-pad, frameHeight-2*pad-memHeight)
	if n := len(s.CPU); n > 0 {
		slot := barsArea.Dx() / n
		gap := 0
		if slot > 3 {
			gap = 1
		}
		for i, pct := range s.CPU {
			x0 := barsArea.Min.X + i*slot
			bar := image.Rect(x0, barsArea.Min.Y, x0+max(slot-gap, 1), barsArea.Max.Y)
			fill(img, bar, trough)
			h := scaled(bar.Dy(), pct)
			fill(img, image.Rect(bar.Min.X, bar.Max.Y-h, bar.Max.X, bar.Max.Y), accent)
		}
	}

	memBar := image.Rect(pad, frameHeight-pad-memHeight, frameWidth-pad, frameHeight-pad)
	fill(img, memBar, trough)
	fill(img, image.Rect(memBar.Min.X, memBar.Min.Y, memBar.Min.X+scaled(memBar.Dx(), s.MemPercent), memBar.Max.Y), memColor)

	x := tick % frameWidth
	fill(img, image.Rect(x, 0, x+1, pad), sweepColor)
	return img
}

func scaled(length int, pct float64) int {
	pct = min(max(pct, 0), 100)
	return int(float64(length) * pct / 100)
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}
