// Package ws bridges the events bus to dashboard WebSocket clients. Each
// connection gets its own bus subscription and writer loop, so one slow or
// broken client can never stall ingestion or its peers.
package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/beacon/internal/events"
)

const (
	defaultWriteTimeout = 10 * time.Second
	pingInterval        = 30 * time.Second
	readDeadline        = 90 * time.Second
)

// Message is the wire envelope for every server-to-client frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type connectionData struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type incidentData struct {
	DedupeKey string `json:"dedupe_key"`
	Namespace string `json:"namespace"`
	Service   string `json:"service"`
	State     string `json:"state"`
}

// Hub serves the WebSocket endpoint and fans bus events out to clients.
// Clients get a connection confirmation on connect but no backlog replay;
// they bootstrap from the REST endpoints and layer deltas on top.
type Hub struct {
	bus          *events.Bus
	logger       log.Logger
	metrics      *Metrics
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewHub creates a Hub on the given bus. writeTimeout bounds each
// per-subscriber write; zero selects the default.
func NewHub(logger log.Logger, bus *events.Bus, metrics *Metrics, writeTimeout time.Duration) *Hub {
	if logger == nil {
		logger = log.Nop()
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Hub{
		bus:          bus,
		logger:       logger,
		metrics:      metrics,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Dashboard clients connect from arbitrary origins; the API
			// carries no credentials.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS upgrades the connection and runs the per-subscriber fan-out loop
// until the client disconnects or a write fails.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(ctx, "websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	id := "ws-" + ulid.Make().String()
	L := h.logger.With("subscriber", id)

	if err := h.write(conn, Message{
		Type: "connection",
		Data: connectionData{Status: "connected", Timestamp: time.Now().UTC()},
	}); err != nil {
		L.Warn(ctx, "connection confirmation failed", "error", err)
		return
	}

	ch := h.bus.Subscribe(id)
	defer h.bus.Unsubscribe(id)

	if h.metrics != nil {
		h.metrics.Connections.Inc()
		defer h.metrics.Connections.Dec()
	}
	L.Info(ctx, "subscriber connected", "remote_addr", r.RemoteAddr)
	defer L.Info(ctx, "subscriber disconnected")

	// Read loop only detects disconnects; clients send nothing we act on.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readDeadline))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := h.write(conn, Message{
				Type: string(evt.Type),
				Data: incidentData{
					DedupeKey: evt.DedupeKey,
					Namespace: evt.Namespace,
					Service:   evt.Service,
					State:     evt.State,
				},
			}); err != nil {
				h.observeSend("error")
				L.Warn(ctx, "subscriber write failed, dropping connection", "error", err)
				return
			}
			h.observeSend("ok")
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, msg Message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func (h *Hub) observeSend(outcome string) {
	if h.metrics != nil {
		h.metrics.SendsTotal.WithLabelValues(outcome).Inc()
	}
}
