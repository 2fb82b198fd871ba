package screen

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const halfBlock = "▀"

// fitSize scales src to fit inside bound, keeping the aspect ratio. Each
// terminal cell shows two vertical pixels, so bound.Y is twice the row count.
func fitSize(src, bound image.Point) image.Point {
	if src.X <= 0 || src.Y <= 0 || bound.X <= 0 || bound.Y <= 0 {
		return image.Point{}
	}
	w, h := bound.X, src.Y*bound.X/src.X
	if h > bound.Y {
		h = bound.Y
		w = src.X * bound.Y / src.Y
	}
	return image.Pt(max(w, 1), max(h, 1))
}

// renderHalfBlocks draws img with "▀" cells: foreground is the upper pixel,
// background the lower one. Sampling is nearest-neighbour.
func renderHalfBlocks(img image.Image, cols, rows int) string {
	b := img.Bounds()
	out := fitSize(b.Size(), image.Pt(cols, rows*2))
	if out.X == 0 {
		return ""
	}

	sample := func(x, y int) lipgloss.Color {
		sx := b.Min.X + x*b.Dx()/out.X
		sy := b.Min.Y + y*b.Dy()/out.Y
		r, g, bl, _ := img.At(sx, sy).RGBA()
		return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, bl>>8))
	}

	var sb strings.Builder
	for y := 0; y < out.Y; y += 2 {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < out.X; x++ {
			style := lipgloss.NewStyle().Foreground(sample(x, y))
			if y+1 < out.Y {
				style = style.Background(sample(x, y+1))
			}
			sb.WriteString(style.Render(halfBlock))
		}
	}
	return sb.String()
}
