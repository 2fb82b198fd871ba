// Package relay is a development stand-in for the dashboard backend's
// realtime endpoints: the global chat socket, the screen view and push
// sockets, chat history and the latest-frame REST endpoint.
package relay

import (
	"errors"
	"strings"
	"time"

	"github.com/authdash/console/internal/chat"
	"github.com/authdash/console/internal/client"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxChatMessage = 8 << 10
	maxFrameSize   = 8 << 20
)

var ErrTooManyConnections = errors.New("too many connections")

// Rejection texts sent back to the offending chat client.
const (
	ErrTextInvalid  = "Invalid message format"
	ErrTextEmpty    = "Message cannot be empty"
	ErrTextTooLong  = "Message too long (max 30 words)"
	ErrTextNoSender = "Username is required"
)

// validateChat returns the rejection text for f, or "" when it may be
// broadcast.
func validateChat(f client.ChatFrame) string {
	if strings.TrimSpace(f.Username) == "" {
		return ErrTextNoSender
	}
	if strings.TrimSpace(f.Message) == "" {
		return ErrTextEmpty
	}
	if chat.WordCount(f.Message) > chat.MaxWords {
		return ErrTextTooLong
	}
	return ""
}
