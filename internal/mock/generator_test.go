package mock

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/authdash/console/internal/logging"
)

type fakeSampler struct {
	mu    sync.Mutex
	stats Stats
	err   error
	calls int
}

func (f *fakeSampler) Sample(context.Context) (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.stats, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	frames map[string][][]byte
}

func (r *recordingPublisher) Publish(target string, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frames == nil {
		r.frames = make(map[string][][]byte)
	}
	r.frames[target] = append(r.frames[target], frame)
}

func (r *recordingPublisher) count(target string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames[target])
}

func TestMockGenerator_StartPublishesToEveryTarget(t *testing.T) {
	pub := &recordingPublisher{}
	sampler := &fakeSampler{stats: Stats{CPU: []float64{10, 90}, MemPercent: 50}}
	gen := NewGenerator(pub, []string{"1", "2"}, 5, sampler, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen.Start(ctx)

	// The first frame is published synchronously.
	for _, target := range []string{"1", "2"} {
		if got := pub.count(target); got != 1 {
			t.Fatalf("target %s: %d frames after Start, want 1", target, got)
		}
		pub.mu.Lock()
		frame := pub.frames[target][0]
		pub.mu.Unlock()
		img, err := jpeg.Decode(bytes.NewReader(frame))
		if err != nil {
			t.Fatalf("target %s: frame is not a JPEG: %v", target, err)
		}
		if b := img.Bounds(); b.Dx() != frameWidth || b.Dy() != frameHeight {
			t.Errorf("target %s: frame is %v", target, b)
		}
	}
}

func TestMockGenerator_KeepsPublishingUntilCancelled(t *testing.T) {
	pub := &recordingPublisher{}
	gen := NewGenerator(pub, []string{"7"}, 50, &fakeSampler{}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	gen.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for pub.count("7") < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if pub.count("7") < 3 {
		t.Fatalf("only %d frames published", pub.count("7"))
	}

	cancel()
	time.Sleep(60 * time.Millisecond)
	settled := pub.count("7")
	time.Sleep(100 * time.Millisecond)
	if got := pub.count("7"); got != settled {
		t.Errorf("published %d frames after cancel", got-settled)
	}
}

func TestMockGenerator_SampleErrorReusesPrevious(t *testing.T) {
	pub := &recordingPublisher{}
	sampler := &fakeSampler{stats: Stats{CPU: []float64{40}, MemPercent: 20}}
	gen := NewGenerator(pub, []string{"7"}, 5, sampler, logging.Discard())

	gen.tick(context.Background(), 0)
	sampler.err = errors.New("no /proc")
	sampler.stats = Stats{}
	gen.tick(context.Background(), 1)

	if pub.count("7") != 2 {
		t.Fatalf("published %d frames, want 2", pub.count("7"))
	}
	if len(gen.last.CPU) != 1 || gen.last.MemPercent != 20 {
		t.Errorf("last stats = %+v, want previous sample", gen.last)
	}
}

func TestDraw(t *testing.T) {
	accent := palette[0]
	img := Draw(Stats{CPU: []float64{100, 0}, MemPercent: 100}, 3, accent)

	if got := img.RGBAAt(3, 0); got != sweepColor {
		t.Errorf("sweep pixel = %v, want %v", got, sweepColor)
	}
	// Full core: accent reaches the top of the bar area.
	if got := img.RGBAAt(6, 5); got != accent {
		t.Errorf("busy core pixel = %v, want accent", got)
	}
	// Idle core: trough all the way down.
	idleX := 4 + (frameWidth-8)/2 + 2
	if got := img.RGBAAt(idleX, 60); got != trough {
		t.Errorf("idle core pixel = %v, want trough", got)
	}
	if got := img.RGBAAt(frameWidth-5, frameHeight-6); got != memColor {
		t.Errorf("memory bar end = %v, want full", got)
	}
}

func TestDraw_NoCoresStillDrawsMemory(t *testing.T) {
	img := Draw(Stats{MemPercent: 0}, 0, palette[1])
	if got := img.RGBAAt(10, frameHeight-6); got != trough {
		t.Errorf("empty memory bar = %v, want trough", got)
	}
}

func TestScaled(t *testing.T) {
	tests := []struct {
		length int
		pct    float64
		want   int
	}{
		{100, 50, 50},
		{100, -5, 0},
		{100, 250, 100},
		{10, 33, 3},
	}
	for _, tt := range tests {
		if got := scaled(tt.length, tt.pct); got != tt.want {
			t.Errorf("scaled(%d, %v) = %d, want %d", tt.length, tt.pct, got, tt.want)
		}
	}
}
