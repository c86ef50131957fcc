// Package session maintains the websocket connection to the multiworld
// server and translates its wire protocol into the events the sync core
// consumes. Network I/O runs on its own goroutine; the core drains a
// bounded inbound queue via Poll and never blocks on the socket.
package session

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"talosync.gg/internal/protocol"
	syncer "talosync.gg/internal/sync"
)

const gameName = "The Talos Principle 2"

const maxQueuedEvents = 256

type Config struct {
	Address   string
	SlotName  string
	Password  string
	DeathLink bool
}

type Session struct {
	cfg Config
	log *log.Logger

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	lastErr   string
	slot      int
	team      int

	writeMu sync.Mutex

	queueMu sync.Mutex
	queue   []syncer.ClientEvent
	dropped int

	clientID string
}

func New(cfg Config, logger *log.Logger) *Session {
	return &Session{
		cfg:      cfg,
		log:      logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		clientID: uuid.NewString(),
	}
}

func (s *Session) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		// Ensure any blocking ReadMessage wakes up promptly.
		s.disconnect()
		<-s.done
	})
}

func (s *Session) disconnect() {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()
	if c != nil {
		_ = c.Close()
	}
}

// Connected reports whether the handshake has completed.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Poll drains every inbound event queued since the last call. Never
// blocks; an empty slice means no news.
func (s *Session) Poll() []syncer.ClientEvent {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if s.dropped > 0 {
		s.log.Printf("inbound queue overflow, %d events dropped", s.dropped)
		s.dropped = 0
	}
	out := s.queue
	s.queue = nil
	return out
}

func (s *Session) enqueue(ev syncer.ClientEvent) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if len(s.queue) >= maxQueuedEvents {
		s.dropped++
		return
	}
	s.queue = append(s.queue, ev)
}

// SendLocationCheck reports one found location.
func (s *Session) SendLocationCheck(locationID int64) error {
	return s.send(protocol.LocationChecksMsg{
		Type:            protocol.TypeLocationChecks,
		ProtocolVersion: protocol.Version,
		Locations:       []int64{locationID},
	})
}

// SendDeathLink broadcasts a local death to every death-link player.
func (s *Session) SendDeathLink(cause string) error {
	return s.send(protocol.BounceMsg{
		Type:            protocol.TypeBounce,
		ProtocolVersion: protocol.Version,
		ID:              uuid.NewString(),
		Tags:            []string{protocol.TagDeathLink},
		Data: protocol.BounceData{
			Time:   float64(time.Now().UnixMilli()) / 1000,
			Source: s.cfg.SlotName,
			Cause:  cause,
		},
	})
}

// SendGoalComplete tells the server this slot reached its goal.
func (s *Session) SendGoalComplete() error {
	return s.send(protocol.StatusUpdateMsg{
		Type:            protocol.TypeStatusUpdate,
		ProtocolVersion: protocol.Version,
		Status:          protocol.StatusGoal,
	})
}

func (s *Session) send(msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Session) run() {
	defer close(s.done)

	backoff := 200 * time.Millisecond
	for {
		select {
		case <-s.stop:
			s.disconnect()
			return
		default:
		}

		if err := s.connectAndReadLoop(); err != nil {
			s.mu.Lock()
			s.connected = false
			s.lastErr = err.Error()
			s.mu.Unlock()
			select {
			case <-s.stop:
				s.disconnect()
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
				if backoff > 5*time.Second {
					backoff = 5 * time.Second
				}
			}
			continue
		}
		// Clean exit.
		return
	}
}

func (s *Session) connectAndReadLoop() error {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := d.Dial("ws://"+s.cfg.Address, http.Header{})
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	s.mu.Lock()
	s.conn = conn
	s.lastErr = ""
	s.mu.Unlock()

	for {
		select {
		case <-s.stop:
			_ = conn.Close()
			return nil
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return err
		}
		s.handleMessage(conn, msg)
	}
}

// handleMessage dispatches one wire message. Unknown or malformed
// messages are skipped; the server may be newer than us.
func (s *Session) handleMessage(conn *websocket.Conn, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeRoomInfo:
		s.sendConnect(conn)

	case protocol.TypeConnected:
		var c protocol.ConnectedMsg
		if err := json.Unmarshal(msg, &c); err != nil {
			return
		}
		s.mu.Lock()
		s.connected = true
		s.slot = c.Slot
		s.team = c.Team
		s.mu.Unlock()
		s.log.Printf("connected as slot %d team %d", c.Slot, c.Team)
		s.enqueue(syncer.ClientEvent{
			Kind:             syncer.EventConnected,
			CheckedLocations: c.CheckedLocations,
		})

	case protocol.TypeRefused:
		var r protocol.RefusedMsg
		if err := json.Unmarshal(msg, &r); err != nil {
			return
		}
		for _, code := range r.Errors {
			if protocol.IsKnownRefusal(code) {
				s.log.Printf("connection refused: %s", code)
			} else {
				s.log.Printf("connection refused with unknown code: %s", code)
			}
		}

	case protocol.TypeReceivedItems:
		var ri protocol.ReceivedItemsMsg
		if err := json.Unmarshal(msg, &ri); err != nil {
			return
		}
		if ri.Index == 0 {
			s.enqueue(syncer.ClientEvent{Kind: syncer.EventItemsReset})
		}
		for _, item := range ri.Items {
			s.enqueue(syncer.ClientEvent{
				Kind:   syncer.EventItemReceived,
				ItemID: item.Item,
			})
		}

	case protocol.TypeBounce, protocol.TypeBounced:
		var b protocol.BounceMsg
		if err := json.Unmarshal(msg, &b); err != nil {
			return
		}
		if !protocol.HasTag(b.Tags, protocol.TagDeathLink) {
			return
		}
		// Bounces echo back to their sender; ours are not news.
		if b.Data.Source == s.cfg.SlotName {
			return
		}
		s.enqueue(syncer.ClientEvent{
			Kind:   syncer.EventDeathLinkReceived,
			Source: b.Data.Source,
			Cause:  b.Data.Cause,
		})

	case protocol.TypePrint:
		var p protocol.PrintMsg
		if err := json.Unmarshal(msg, &p); err != nil {
			return
		}
		s.log.Printf("server: %s", p.Text)
	}
}

func (s *Session) sendConnect(conn *websocket.Conn) {
	tags := []string{}
	if s.cfg.DeathLink {
		tags = append(tags, protocol.TagDeathLink)
	}
	c := protocol.ConnectMsg{
		Type:            protocol.TypeConnect,
		ProtocolVersion: protocol.Version,
		Game:            gameName,
		SlotName:        s.cfg.SlotName,
		Password:        s.cfg.Password,
		UUID:            s.clientID,
		ItemsHandling:   protocol.ItemsHandlingAll,
		Tags:            tags,
	}
	b, _ := json.Marshal(c)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		s.log.Printf("send connect: %v", err)
	}
}
