package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrigin(t *testing.T) {
	tests := []struct {
		raw        string
		wantChat   string
		wantScreen string
		wantAPI    string
	}{
		{
			raw:        "http://localhost:8000",
			wantChat:   "ws://localhost:8000/api/ws/chat",
			wantScreen: "ws://localhost:8000/api/ws/screen/view/42",
			wantAPI:    "http://localhost:8000/api",
		},
		{
			raw:        "https://panel.example.com/api",
			wantChat:   "wss://panel.example.com/api/ws/chat",
			wantScreen: "wss://panel.example.com/api/ws/screen/view/42",
			wantAPI:    "https://panel.example.com/api",
		},
		{
			raw:        "https://panel.example.com/api/",
			wantChat:   "wss://panel.example.com/api/ws/chat",
			wantScreen: "wss://panel.example.com/api/ws/screen/view/42",
			wantAPI:    "https://panel.example.com/api",
		},
		{
			raw:        "",
			wantChat:   "ws://localhost:8000/api/ws/chat",
			wantScreen: "ws://localhost:8000/api/ws/screen/view/42",
			wantAPI:    "http://localhost:8000/api",
		},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			o, err := ParseOrigin(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChat, o.ChatSocket())
			assert.Equal(t, tt.wantScreen, o.ScreenSocket("42"))
			assert.Equal(t, tt.wantAPI, o.APIBase())
			assert.Equal(t, tt.wantAPI+"/chat/history", o.ChatHistory())
		})
	}
}

func TestParseOrigin_Rejects(t *testing.T) {
	for _, raw := range []string{
		"localhost:8000",
		"ftp://example.com",
		"http://",
		"http://example.com/dashboard",
		"http://example.com/api?x=1",
		"://bad",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseOrigin(raw)
			assert.Error(t, err)
		})
	}
}

func TestScreenEndpointsEscapeTarget(t *testing.T) {
	o := MustParseOrigin("http://localhost:8000")
	assert.Equal(t, "ws://localhost:8000/api/ws/screen/view/a%2Fb", o.ScreenSocket("a/b"))
	assert.Equal(t, "http://localhost:8000/api/screen/frame/a%2Fb", o.ScreenFrame("a/b"))
}
