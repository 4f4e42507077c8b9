// Package preview streams committed frames to websocket clients so the rings
// can be watched without the hardware attached.
package preview

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ringlights/internal/compositor"
	"github.com/coreman2200/ringlights/internal/pixel"
)

const writeWait = 200 * time.Millisecond

// Topology is sent to every client once on connect.
type Topology struct {
	Pixels   int           `json:"pixels"`
	Rings    []RingInfo    `json:"rings"`
	Channels map[uint8]int `json:"channels"`
}

type RingInfo struct {
	Offset  int  `json:"offset"`
	Count   int  `json:"count"`
	Reverse bool `json:"reverse"`
}

type frame struct {
	T        int64              `json:"t"`
	Tick     uint64             `json:"tick"`
	Strip    []uint32           `json:"strip"`
	Channels map[uint8][]uint32 `json:"channels,omitempty"`
}

// Hub fans committed frames out to connected clients. It implements
// compositor.Observer; Committed never blocks on a slow client for longer
// than the write deadline.
type Hub struct {
	mu        sync.RWMutex
	topology  Topology
	clients   map[*websocket.Conn]bool
	upgrader  websocket.Upgrader
	tick      uint64
	startTime time.Time
}

func NewHub(t Topology) *Hub {
	return &Hub{
		topology:  t,
		clients:   map[*websocket.Conn]bool{},
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		startTime: time.Now(),
	}
}

var _ compositor.Observer = (*Hub)(nil)

func (h *Hub) Committed(s compositor.Snapshot) {
	f := frame{T: time.Now().UnixNano(), Tick: s.Tick, Strip: packed(s.Strip)}
	if len(s.Channels) > 0 {
		f.Channels = make(map[uint8][]uint32, len(s.Channels))
		for ch, p := range s.Channels {
			f.Channels[ch] = packed(p)
		}
	}
	b, err := json.Marshal(f)
	if err != nil {
		log.Debug().Err(err).Msg("marshal frame")
		return
	}

	h.mu.Lock()
	h.tick = s.Tick
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

// Clients is the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b, _ := json.Marshal(h.topology)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		conn.Close()
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	resp := map[string]any{
		"tick":     h.tick,
		"uptime_s": time.Since(h.startTime).Seconds(),
		"pixels":   h.topology.Pixels,
		"rings":    len(h.topology.Rings),
		"clients":  len(h.clients),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Handler routes /ws and /health.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleFramesWS)
	mux.HandleFunc("/health", h.HandleHealth)
	return mux
}

func packed(p []pixel.Pixel) []uint32 {
	out := make([]uint32, len(p))
	for i, c := range p {
		out[i] = c.Packed()
	}
	return out
}
