package screenview

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/authdash/console/internal/screen"
)

func solidFrame(c color.Color) *screen.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	return screen.NewFrame(img)
}

func TestWaitingPlaceholder(t *testing.T) {
	m := Model{Snapshot: screen.Snapshot{Target: "7", Connected: true}}
	v := m.View(80, 24)
	assert.Contains(t, v, "Screen 7")
	assert.Contains(t, v, "LIVE")
	assert.Contains(t, v, "Waiting for stream...")
}

func TestOfflineShowsReason(t *testing.T) {
	m := Model{Snapshot: screen.Snapshot{Target: "7", Status: "Disconnected"}}
	v := m.View(80, 24)
	assert.Contains(t, v, "OFFLINE")
	assert.Contains(t, v, "Disconnected")
	assert.NotContains(t, v, "Waiting for stream")
}

func TestConnectingStillWaits(t *testing.T) {
	m := Model{Snapshot: screen.Snapshot{Target: "7", Status: "Connecting..."}}
	assert.Contains(t, m.View(80, 24), "Waiting for stream...")
}

func TestRendersFrame(t *testing.T) {
	f := solidFrame(color.White)
	m := Model{Snapshot: screen.Snapshot{Target: "7", Connected: true, HasFrame: true, Frame: f, Frames: 3}}

	v := m.View(80, 24)
	assert.Contains(t, v, "▀")
	assert.Contains(t, v, "3 frames")
	assert.NotContains(t, v, "Waiting for stream")
}

func TestReleasedFrameFallsBackToPlaceholder(t *testing.T) {
	f := solidFrame(color.Black)
	f.Release()
	m := Model{Snapshot: screen.Snapshot{Target: "7", Connected: true, HasFrame: true, Frame: f}}
	assert.Contains(t, m.View(80, 24), "Waiting for stream...")
}

func TestFullscreenDropsChrome(t *testing.T) {
	f := solidFrame(color.White)
	m := Model{Snapshot: screen.Snapshot{Target: "7", Connected: true, HasFrame: true, Frame: f}, Fullscreen: true}

	v := m.View(40, 12)
	assert.NotContains(t, v, "esc:close")
	assert.NotContains(t, v, "╭")
	assert.LessOrEqual(t, len(strings.Split(v, "\n")), 12)
}
