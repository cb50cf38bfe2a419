package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/courierly/dispatch-service/internal/broadcast"
	"github.com/courierly/dispatch-service/internal/entities"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// PositionReporter persists a driver position report.
type PositionReporter interface {
	ReportPosition(ctx context.Context, driverID string, lat, lng float64) (entities.Driver, error)
}

// LocationHub is the fan-out surface for live location events.
type LocationHub interface {
	Subscribe() *broadcast.Subscription
	Unsubscribe(sub *broadcast.Subscription)
}

type wsInbound struct {
	Type     string  `json:"type"`
	DriverID string  `json:"driverId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

type wsOutbound struct {
	Type     string  `json:"type"`
	DriverID string  `json:"driverId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

const (
	msgDriverLocationUpdate = "driver_location_update"
	msgDriverLocation       = "driver_location"
)

type WSHandler struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	drivers  PositionReporter
	hub      LocationHub
}

func NewWSHandler(logger *slog.Logger, drivers PositionReporter, hub LocationHub) *WSHandler {
	return &WSHandler{
		logger: logger.With(slog.String("handler", "ws")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		drivers: drivers,
		hub:     hub,
	}
}

func (h *WSHandler) Init(r chi.Router) {
	r.Get("/ws", h.Serve)
}

// Serve upgrades the connection and runs it until either side closes.
// Every connection both publishes position reports and receives the full
// broadcast stream, reporters included.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	wsConnections.Inc()
	defer wsConnections.Dec()

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writePump(ctx, cancel, conn, sub)
	h.readPump(ctx, conn)
}

// readPump consumes inbound frames until the connection drops. Malformed
// frames and rejected reports are logged and skipped, they never close the
// connection.
func (h *WSHandler) readPump(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.DebugContext(ctx, "websocket closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}

		var msg wsInbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.WarnContext(ctx, "discarding malformed websocket frame", slog.String("error", err.Error()))
			continue
		}
		if msg.Type != msgDriverLocationUpdate {
			continue
		}

		if _, err := h.drivers.ReportPosition(ctx, msg.DriverID, msg.Lat, msg.Lng); err != nil {
			h.logger.WarnContext(ctx, "position report rejected",
				slog.String("driver_id", msg.DriverID),
				slog.String("error", err.Error()))
			continue
		}
		locationReports.Inc()
	}
}

func (h *WSHandler) writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sub *broadcast.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteJSON(wsOutbound{
				Type:     msgDriverLocation,
				DriverID: event.DriverID,
				Lat:      event.Lat,
				Lng:      event.Lng,
			})
			if err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
