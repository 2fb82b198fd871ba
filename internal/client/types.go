// Package client provides the realtime transport for the dashboard: the
// WebSocket connection manager, endpoint derivation from the configured
// origin, the REST collaborator for chat history and screen frames, and the
// wire types shared with the relay.
package client

// ChatFrame is a chat text frame as it appears on the wire. The relay uses
// the same shape for history entries, live messages and error envelopes; an
// error envelope carries only Error.
type ChatFrame struct {
	Username  string `json:"username,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Email     string `json:"email,omitempty"`
	Error     string `json:"error,omitempty"`
}

// IsError reports whether the frame is an error envelope.
func (f ChatFrame) IsError() bool {
	return f.Error != ""
}

// IsMessage reports whether the frame looks like a chat message envelope.
func (f ChatFrame) IsMessage() bool {
	return f.Error == "" && f.Username != "" && f.Message != ""
}

// HistoryResponse is the body of GET /api/chat/history.
type HistoryResponse struct {
	Success  bool        `json:"success"`
	Messages []ChatFrame `json:"messages"`
}

// HealthResponse is the body of GET /api/health on the dev relay.
type HealthResponse struct {
	Status        string `json:"status"`
	ChatClients   int    `json:"chat_clients"`
	ScreenTargets int    `json:"screen_targets"`
}
