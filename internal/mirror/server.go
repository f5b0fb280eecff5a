// Package mirror exposes the followed log stream to remote viewers over
// WebSocket, so a session can be observed from a browser or a second
// terminal without touching the control channel.
package mirror

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"ctlmon/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second

	historyCapacity = 1000
	sendBufCapacity = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // viewers are trusted local clients
	},
}

// Server broadcasts the current session's log stream to connected
// viewers. It implements io.Writer so the monitor can tee follower
// output into it.
//
// clientsMu also orders history changes against viewer registration: a
// chunk is appended and broadcast under the lock, and a joiner replays
// history and registers under the lock, so a chunk reaches each viewer
// exactly once, replayed or live.
type Server struct {
	clients   map[*client]bool
	clientsMu sync.RWMutex

	history *RingBuffer

	sessMu  sync.RWMutex
	active  bool
	command string
	logPath string
}

type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// New creates a mirror server with an empty viewer set.
func New() *Server {
	return &Server{
		clients: make(map[*client]bool),
		history: NewRingBuffer(historyCapacity),
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /status", s.handleStatus)
	return mux
}

// handleStatus reports the current session and viewer count as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sessMu.RLock()
	resp := map[string]interface{}{
		"active":  s.active,
		"command": s.command,
		"logPath": s.logPath,
	}
	s.sessMu.RUnlock()

	s.clientsMu.RLock()
	resp["viewers"] = len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleWebSocket upgrades an HTTP connection and registers a viewer.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	c := &client{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan []byte, sendBufCapacity),
		server: s,
	}

	// Catch the new viewer up and register them in one step: session
	// header, then buffered output, then live broadcasts, with no chunk
	// delivered both replayed and live.
	s.clientsMu.Lock()
	s.sendSessionState(c)
	s.replayHistory(c)
	s.clients[c] = true
	s.clientsMu.Unlock()

	go c.writePump()
	go c.readPump()
}

// SessionStart announces a new command cycle and resets the history.
func (s *Server) SessionStart(command, logPath string) {
	msg, err := protocol.NewMessage(protocol.TypeSessionStart, protocol.SessionStartPayload{
		Command: command,
		LogPath: logPath,
	})

	s.clientsMu.Lock()
	s.sessMu.Lock()
	s.active = true
	s.command = command
	s.logPath = logPath
	s.sessMu.Unlock()

	s.history.Reset()
	if err == nil {
		s.broadcastLocked(msg)
	}
	s.clientsMu.Unlock()
}

// SessionEnd announces the end of the current cycle.
func (s *Server) SessionEnd(reason string) {
	msg, err := protocol.NewMessage(protocol.TypeSessionEnd, protocol.SessionEndPayload{
		Reason: reason,
	})

	s.clientsMu.Lock()
	s.sessMu.Lock()
	s.active = false
	s.sessMu.Unlock()

	if err == nil {
		s.broadcastLocked(msg)
	}
	s.clientsMu.Unlock()
}

// Write broadcasts a chunk of log output to all viewers and records it
// for late joiners. Implements io.Writer; never returns an error so a
// slow viewer cannot stall the follower.
func (s *Server) Write(p []byte) (int, error) {
	chunk := string(p)
	msg, err := protocol.NewMessage(protocol.TypeLogData, protocol.LogDataPayload{Data: chunk})

	s.clientsMu.Lock()
	s.history.Write(chunk)
	if err == nil {
		s.broadcastLocked(msg)
	}
	s.clientsMu.Unlock()
	return len(p), nil
}

// sendSessionState sends the active session header to a single viewer.
func (s *Server) sendSessionState(c *client) {
	s.sessMu.RLock()
	active, command, logPath := s.active, s.command, s.logPath
	s.sessMu.RUnlock()

	if !active {
		return
	}
	msg, err := protocol.NewMessage(protocol.TypeSessionStart, protocol.SessionStartPayload{
		Command: command,
		LogPath: logPath,
	})
	if err != nil {
		return
	}
	s.sendTo(c, msg)
}

// replayHistory sends the buffered chunks to a single viewer.
func (s *Server) replayHistory(c *client) {
	for _, chunk := range s.history.ReadAll() {
		msg, err := protocol.NewMessage(protocol.TypeLogData, protocol.LogDataPayload{Data: chunk})
		if err != nil {
			continue
		}
		s.sendTo(c, msg)
	}
}

// readPump reads messages from the WebSocket connection.
func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("viewer %s read error: %v", c.id, err)
			}
			return
		}

		c.server.handleMessage(c, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// removeClient cleans up a disconnected viewer.
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.clientsMu.Unlock()
}

// handleMessage processes a validated viewer message.
func (s *Server) handleMessage(c *client, raw []byte) {
	msg, err := protocol.ValidateViewerMessage(raw)
	if err != nil {
		s.sendError(c, protocol.ErrCodeInvalidMessage, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypeSessionReplay:
		s.sessMu.RLock()
		active := s.active
		s.sessMu.RUnlock()
		if !active {
			s.sendError(c, protocol.ErrCodeNoSession, "no session in progress")
			return
		}
		s.sendSessionState(c)
		s.replayHistory(c)
	}
}

// broadcastLocked sends a message to all connected viewers. Callers
// hold clientsMu.
func (s *Server) broadcastLocked(msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// Viewer buffer full, skip.
		}
	}
}

func (s *Server) sendTo(c *client, msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (s *Server) sendError(c *client, code, message string) {
	msg, err := protocol.NewErrorMessage(code, message)
	if err != nil {
		return
	}
	s.sendTo(c, msg)
}
