package chatlog

import (
	"fmt"
	"strings"

	"github.com/authdash/console/internal/theme"
)

// Emoji is the quick-insert palette, selected with keys 1-9 and 0.
var Emoji = []string{"😀", "😂", "❤️", "👍", "🔥", "✨", "🎉", "😍", "🤔", "😎"}

// EmojiIndex maps a palette key onto an index into Emoji.
func EmojiIndex(key string) (int, bool) {
	if len(key) != 1 || key[0] < '0' || key[0] > '9' {
		return 0, false
	}
	if key[0] == '0' {
		return 9, true
	}
	return int(key[0] - '1'), true
}

func paletteView() string {
	parts := make([]string, len(Emoji))
	for i, e := range Emoji {
		parts[i] = fmt.Sprintf("%s %s", theme.StyleDimmed.Render(fmt.Sprint((i+1)%10)), e)
	}
	return strings.Join(parts, "  ") + theme.StyleDimmed.Render("  ctrl+e:close")
}
