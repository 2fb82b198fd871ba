package chat

import "strings"

const (
	// MaxWords is the hard limit on words per message.
	MaxWords = 30
	// WarnWords is where the live counter starts warning.
	WarnWords = 20
)

// Level classifies a word count for the live counter.
type Level int

const (
	LevelNormal Level = iota
	LevelWarn
	LevelOver
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelOver:
		return "over"
	default:
		return "normal"
	}
}

// WordCount returns the number of whitespace-delimited words in s. Both the
// live counter and Send use it.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// CounterLevel maps a word count onto a Level.
func CounterLevel(n int) Level {
	switch {
	case n > MaxWords:
		return LevelOver
	case n > WarnWords:
		return LevelWarn
	default:
		return LevelNormal
	}
}
