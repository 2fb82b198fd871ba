package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/authdash/console/internal/client"
)

// HistoryStore persists relayed chat messages.
type HistoryStore interface {
	Save(ctx context.Context, msg client.ChatFrame) (string, error)
	Recent(ctx context.Context, limit int) ([]client.ChatFrame, error)
}

type peer struct {
	id   string
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
		p.b.RemoveClient(p)
	}()

	for {
		select {
		case msg, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcaster fans chat messages out to every connected chat client.
// Clients that cannot keep up are disconnected.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*peer]bool
	maxConns int
	store    HistoryStore
	now      func() time.Time
	logger   *slog.Logger
}

// NewBroadcaster creates a chat hub. maxConns <= 0 means no limit; store
// may be nil.
func NewBroadcaster(store HistoryStore, maxConns int, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		clients:  make(map[*peer]bool),
		maxConns: maxConns,
		store:    store,
		now:      time.Now,
		logger:   logger.With("component", "chat-hub"),
	}
}

// AddClient registers conn and starts its writer.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*peer, error) {
	p := &peer{
		id:   uuid.NewString(),
		conn: conn,
		b:    b,
		send: make(chan []byte, 64),
	}

	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	b.clients[p] = true
	b.mu.Unlock()

	go p.writePump()
	b.logger.Debug("chat client joined", "client", p.id)
	return p, nil
}

// RemoveClient unregisters p and stops its writer. Safe to call twice.
func (b *Broadcaster) RemoveClient(p *peer) {
	b.mu.Lock()
	if _, ok := b.clients[p]; ok {
		delete(b.clients, p)
		close(p.send)
		b.logger.Debug("chat client left", "client", p.id)
	}
	b.mu.Unlock()
}

// Handle processes one text frame from p. Invalid frames are answered with
// an error envelope to p alone; valid ones are timestamped if needed,
// stored and broadcast to everyone including p.
func (b *Broadcaster) Handle(ctx context.Context, p *peer, data []byte) {
	var f client.ChatFrame
	if err := json.Unmarshal(data, &f); err != nil {
		b.logger.Debug("invalid chat frame", "client", p.id, "err", err)
		b.reply(p, ErrTextInvalid)
		return
	}
	if reason := validateChat(f); reason != "" {
		b.reply(p, reason)
		return
	}

	f.Error = ""
	if f.Timestamp == "" {
		f.Timestamp = b.now().UTC().Format(time.RFC3339)
	}
	if b.store != nil {
		if _, err := b.store.Save(ctx, f); err != nil {
			b.logger.Warn("storing chat message", "err", err)
		}
	}

	out, err := json.Marshal(f)
	if err != nil {
		b.logger.Error("encoding chat message", "err", err)
		return
	}
	b.Broadcast(out)
}

func (b *Broadcaster) reply(p *peer, reason string) {
	data, _ := json.Marshal(client.ChatFrame{Error: reason})
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.clients[p] {
		return
	}
	select {
	case p.send <- data:
	default:
	}
}

// Broadcast queues data for every client.
func (b *Broadcaster) Broadcast(data []byte) {
	b.mu.RLock()
	clients := make([]*peer, 0, len(b.clients))
	for p := range b.clients {
		clients = append(clients, p)
	}
	b.mu.RUnlock()

	for _, p := range clients {
		b.mu.RLock()
		live := b.clients[p]
		sent := false
		if live {
			select {
			case p.send <- data:
				sent = true
			default:
			}
		}
		b.mu.RUnlock()

		if live && !sent {
			b.logger.Warn("chat client too slow, disconnecting", "client", p.id)
			b.RemoveClient(p)
		}
	}
}

// ClientCount returns the number of connected chat clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	for p := range b.clients {
		delete(b.clients, p)
		close(p.send)
	}
	b.mu.Unlock()
}
