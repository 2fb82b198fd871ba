package client

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultOrigin is used when no origin is configured at all.
const DefaultOrigin = "http://localhost:8000"

// Origin is a validated http(s) base URL from which every REST and socket
// endpoint is derived.
type Origin struct {
	scheme string
	host   string
}

// ParseOrigin validates raw and returns the origin it names. An empty string
// yields DefaultOrigin. A trailing "/api" path is accepted and stripped so the
// same value works for both REST and socket endpoints.
func ParseOrigin(raw string) (Origin, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultOrigin
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Origin{}, fmt.Errorf("parsing origin %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Origin{}, fmt.Errorf("origin %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return Origin{}, fmt.Errorf("origin %q: missing host", raw)
	}

	path := strings.TrimSuffix(u.Path, "/")
	path = strings.TrimSuffix(path, "/api")
	if path != "" {
		return Origin{}, fmt.Errorf("origin %q: unexpected path %q", raw, u.Path)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return Origin{}, fmt.Errorf("origin %q: query and fragment are not allowed", raw)
	}

	return Origin{scheme: u.Scheme, host: u.Host}, nil
}

// MustParseOrigin is ParseOrigin for constants and tests.
func MustParseOrigin(raw string) Origin {
	o, err := ParseOrigin(raw)
	if err != nil {
		panic(err)
	}
	return o
}

// String returns the origin as scheme://host.
func (o Origin) String() string {
	return o.scheme + "://" + o.host
}

// Host returns the host[:port] of the origin.
func (o Origin) Host() string {
	return o.host
}

// APIBase returns the REST base, e.g. http://localhost:8000/api.
func (o Origin) APIBase() string {
	return o.String() + "/api"
}

func (o Origin) socketBase() string {
	scheme := "ws"
	if o.scheme == "https" {
		scheme = "wss"
	}
	return scheme + "://" + o.host + "/api/ws"
}

// ChatSocket returns the chat stream endpoint.
func (o Origin) ChatSocket() string {
	return o.socketBase() + "/chat"
}

// ScreenSocket returns the live screen endpoint for a target.
func (o Origin) ScreenSocket(targetID string) string {
	return o.socketBase() + "/screen/view/" + url.PathEscape(targetID)
}

// ChatHistory returns the chat history REST endpoint.
func (o Origin) ChatHistory() string {
	return o.APIBase() + "/chat/history"
}

// ScreenFrame returns the latest-frame REST endpoint for a target.
func (o Origin) ScreenFrame(targetID string) string {
	return o.APIBase() + "/screen/frame/" + url.PathEscape(targetID)
}
