package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/docufuse/docufuse/internal/orchestrate"
	"github.com/docufuse/docufuse/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are not restricted; deployments front this with a proxy.
		return true
	},
}

// wsRequest is a recognition request sent over the WebSocket.
type wsRequest struct {
	Image     string   `json:"image"` // base64-encoded image bytes
	MIME      string   `json:"mime,omitempty"`
	Filename  string   `json:"filename,omitempty"`
	Languages []string `json:"languages,omitempty"`
	Mode      string   `json:"mode,omitempty"`
}

// wsResponse is a progress or terminal message sent back to the client.
type wsResponse struct {
	Type      string `json:"type"`
	Status    string `json:"status"` // "processing", "completed", "error"
	Progress  float64 `json:"progress,omitempty"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// processWebSocketHandler streams recognition progress over a WebSocket.
func (s *Server) processWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("upgrade to websocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("websocket connection established", "remote_addr", r.RemoteAddr)
	s.serveWebSocket(conn)
}

func (s *Server) serveWebSocket(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Keepalive pings so idle connections stay open across proxies.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("websocket read", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(conn, data)
		}
	}
}

func (s *Server) handleWebSocketMessage(conn *websocket.Conn, data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocket(conn, wsResponse{Type: "process_response", Status: "error",
			Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)
	s.sendWebSocket(conn, wsResponse{Type: "process_response", Status: "processing",
		Progress: 0, RequestID: requestID})

	raw, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		s.sendWebSocket(conn, wsResponse{Type: "process_response", Status: "error",
			Error: "invalid base64 image data", RequestID: requestID})
		return
	}

	opts := pipeline.DefaultOptions()
	opts.LanguageHints = req.Languages
	if req.Mode != "" {
		mode, err := orchestrate.ParseMode(req.Mode)
		if err != nil {
			s.sendWebSocket(conn, wsResponse{Type: "process_response", Status: "error",
				Error: err.Error(), RequestID: requestID})
			return
		}
		opts.Mode = &mode
	}

	mimeType := req.MIME
	if mimeType == "" {
		mimeType = pipeline.MIMEForPath(req.Filename)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout())
	defer cancel()

	started := time.Now()
	result, err := s.pipeline.ProcessImage(ctx, raw, mimeType, opts)
	if err != nil {
		recognitionRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocket(conn, wsResponse{Type: "process_response", Status: "error",
			Error: err.Error(), RequestID: requestID})
		return
	}
	observeResult("websocket", result.Method, result.OverallConfidence, len(result.Text),
		time.Since(started).Seconds())

	s.sendWebSocket(conn, wsResponse{Type: "process_response", Status: "completed",
		Progress: 1, Result: result, RequestID: requestID})
}

func (s *Server) sendWebSocket(conn *websocket.Conn, resp wsResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("marshal websocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("write websocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
