// Package gateway bridges browser websockets onto room channels. It is a
// dumb pipe by design: every frame a client sends is published verbatim on
// the room's topic, and every topic event is fanned out verbatim to the
// room's sockets. All game semantics stay in the peers' reducers, so a
// browser behind the gateway participates on exactly the same terms as a
// client speaking NATS directly.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/colorgrid/internal/channel"
	"github.com/mcdev12/colorgrid/internal/game"
)

// ChannelFactory opens the pub/sub channel for a room code.
type ChannelFactory func(roomCode string) (channel.Channel, error)

// ConnectionConfig holds websocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	MaxMessageSize  int64         `yaml:"max_message_size"`
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
}

// DefaultConnectionConfig returns the default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// Manager owns one channel subscription per active room and the set of
// websocket connections attached to it.
type Manager struct {
	factory  ChannelFactory
	config   ConnectionConfig
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]*roomBridge
}

type roomBridge struct {
	roomCode string
	ch       channel.Channel
	conns    map[*Connection]bool
}

// Connection is one websocket client attached to a room.
type Connection struct {
	ID       string
	Nickname string
	RoomCode string

	conn    *websocket.Conn
	send    chan []byte
	manager *Manager
}

// NewManager creates a gateway manager.
func NewManager(factory ChannelFactory, config ConnectionConfig) *Manager {
	return &Manager{
		factory: factory,
		config:  config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				// The gateway carries no credentialed state; rooms are
				// guarded only by knowledge of the code.
				return true
			},
		},
		rooms: make(map[string]*roomBridge),
	}
}

// Upgrade attaches an HTTP request to a room as a websocket connection.
func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request, roomCode, nickname string) error {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade connection: %w", err)
	}

	conn := &Connection{
		ID:       uuid.New().String(),
		Nickname: nickname,
		RoomCode: roomCode,
		conn:     ws,
		send:     make(chan []byte, 256),
		manager:  m,
	}

	if err := m.register(conn); err != nil {
		ws.Close()
		return err
	}

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.ID).
		Str("room_code", roomCode).
		Str("nickname", nickname).
		Msg("websocket connection established")
	return nil
}

func (m *Manager) register(conn *Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bridge, ok := m.rooms[conn.RoomCode]
	if !ok {
		ch, err := m.factory(conn.RoomCode)
		if err != nil {
			return fmt.Errorf("open room channel: %w", err)
		}
		bridge = &roomBridge{
			roomCode: conn.RoomCode,
			ch:       ch,
			conns:    make(map[*Connection]bool),
		}
		if err := ch.Subscribe(context.Background(), m.fanOut(bridge)); err != nil {
			ch.Close()
			return fmt.Errorf("subscribe room channel: %w", err)
		}
		m.rooms[conn.RoomCode] = bridge
		log.Info().Str("room_code", conn.RoomCode).Msg("room bridge opened")
	}

	bridge.conns[conn] = true
	return nil
}

func (m *Manager) unregister(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bridge, ok := m.rooms[conn.RoomCode]
	if !ok || !bridge.conns[conn] {
		return
	}
	delete(bridge.conns, conn)
	close(conn.send)

	if len(bridge.conns) == 0 {
		if err := bridge.ch.Close(); err != nil {
			log.Warn().Err(err).Str("room_code", conn.RoomCode).Msg("room channel close failed")
		}
		delete(m.rooms, conn.RoomCode)
		log.Info().Str("room_code", conn.RoomCode).Msg("room bridge closed")
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("room_code", conn.RoomCode).
		Msg("websocket connection unregistered")
}

// fanOut forwards channel events to every socket attached to the room.
func (m *Manager) fanOut(bridge *roomBridge) channel.Handler {
	return func(ev game.Event) {
		data, err := json.Marshal(game.Wrap(ev))
		if err != nil {
			log.Error().Err(err).Msg("marshal event for fan-out")
			return
		}

		// Sends are non-blocking and conn.send is only closed under mu, so
		// holding the lock here is what makes the fan-out race-free.
		var dropped []*Connection
		m.mu.Lock()
		for conn := range bridge.conns {
			select {
			case conn.send <- data:
			default:
				dropped = append(dropped, conn)
			}
		}
		m.mu.Unlock()

		for _, conn := range dropped {
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("send buffer full, closing connection")
			m.unregister(conn)
			conn.conn.Close()
		}
	}
}

// Stats returns connection counts per room.
func (m *Manager) Stats() (totalConnections, activeRooms int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bridge := range m.rooms {
		totalConnections += len(bridge.conns)
	}
	return totalConnections, len(m.rooms)
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("websocket ping failed")
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.manager.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			return
		}
		c.publish(message)
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}

// publish forwards one client frame onto the room channel.
func (c *Connection) publish(message []byte) {
	var env game.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("dropping malformed client frame")
		return
	}
	if env.Type != game.EnvelopeType {
		log.Warn().Str("connection_id", c.ID).Str("type", env.Type).Msg("dropping foreign client frame")
		return
	}

	c.manager.mu.Lock()
	bridge, ok := c.manager.rooms[c.RoomCode]
	c.manager.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bridge.ch.Publish(ctx, env.Payload); err != nil {
		log.Error().Err(err).Str("room_code", c.RoomCode).Msg("publish client event failed")
	}
}
