package api

import (
	"bufio"
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/apperr"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamLogs handles GET /api/projects/{id}/logs/ws: a websocket carrying
// the project's runtime instance log lines until either side disconnects.
func (h *Handler) StreamLogs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	orch := h.projects.Runtime()
	if orch == nil {
		respondError(w, h.log, fmt.Errorf("%w: runtime orchestration is disabled", apperr.ErrValidation))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	reader, err := orch.Logs(ctx, id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	defer reader.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Drain client frames so a close from the browser ends the stream.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				reader.Close()
				return
			}
		}
	}()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := conn.WriteMessage(websocket.TextMessage, scanner.Bytes()); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		h.log.Warn("log stream ended",
			zap.String("project", id),
			zap.Error(err))
	}
}
