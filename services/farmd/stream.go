package farmd

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"stakefarm/core/events"
)

const (
	wsWriteTimeout   = 10 * time.Second
	streamBufferSize = 128
)

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSONError(w, http.StatusServiceUnavailable, nil)
		return
	}
	eventType := strings.TrimSpace(r.URL.Query().Get("type"))
	backlog := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("backlog")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, errBadRequest)
			return
		}
		backlog = parsed
	}

	// Subscribe before the upgrade so no record slips between backlog and
	// live delivery.
	updates, cancel := s.events.Subscribe(streamBufferSize)
	defer cancel()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())

	if backlog > 0 {
		for _, rec := range s.events.Recent(backlog) {
			if !matchesType(rec, eventType) {
				continue
			}
			if err := writeRecord(ctx, conn, rec); err != nil {
				return
			}
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-updates:
			if !ok {
				return
			}
			if !matchesType(rec, eventType) {
				continue
			}
			if err := writeRecord(ctx, conn, rec); err != nil {
				if websocket.CloseStatus(err) == -1 {
					_ = conn.Close(websocket.StatusInternalError, "stream error")
				}
				return
			}
		}
	}
}

func matchesType(rec events.Record, eventType string) bool {
	return eventType == "" || rec.Type == eventType
}

func writeRecord(ctx context.Context, conn *websocket.Conn, rec events.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
