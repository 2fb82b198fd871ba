package chat

import (
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/authdash/console/internal/client"
)

// Identity is the caller-supplied display identity attached to outgoing
// messages. It does not change for the life of a session.
type Identity struct {
	Name      string
	AvatarURL string
	Email     string
}

// Verified reports whether messages from this identity get the verified
// badge. It is cosmetic.
func (i Identity) Verified() bool { return i.Email != "" }

// Message is one entry of the chat log.
type Message struct {
	Sender    string
	Body      string
	SentAt    time.Time // zero when the timestamp did not parse
	Timestamp string    // as received
	AvatarURL string
	Email     string
}

// Verified reports whether the sender carried an email.
func (m Message) Verified() bool { return m.Email != "" }

// Initial returns the sender's first letter for avatar fallbacks.
func (m Message) Initial() string {
	r, _ := utf8.DecodeRuneInString(m.Sender)
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}

func messageFromFrame(f client.ChatFrame) Message {
	return Message{
		Sender:    f.Username,
		Body:      f.Message,
		SentAt:    parseTimestamp(f.Timestamp),
		Timestamp: f.Timestamp,
		AvatarURL: f.AvatarURL,
		Email:     f.Email,
	}
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
