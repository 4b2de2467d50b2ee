package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"zenith/pkg/domain"
	"zenith/pkg/sandbox"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientMessage is what the browser sends over the chat socket: either a
// user chat message, a console log forwarded from the preview iframe, or an
// abort request.
type clientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`

	// Console log fields (Type == "CONSOLE_LOG").
	LogType string `json:"logType,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleChatWebSocket runs the chat socket for one session. The server
// pushes message snapshots whenever the conversation changes; because
// streaming drafts update in place, a message may be pushed repeatedly and
// clients upsert by ID.
func (s *Server) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		http.Error(w, "Missing session ID", http.StatusBadRequest)
		return
	}

	if _, err := s.sessions.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	done := make(chan struct{})
	updates := s.messages.Subscribe()

	var writeMu sync.Mutex
	sent := make(map[string]string)

	// Send initial conversation state.
	if err := s.syncMessages(ws, &writeMu, sessionID, sent); err != nil {
		slog.Error("Failed initial message sync", "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)

	// Writer goroutine: pushes changed messages to the client.
	go func() {
		defer wg.Done()
		defer ws.Close()

		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case eventID := <-updates:
				if eventID == sessionID {
					if err := s.syncMessages(ws, &writeMu, sessionID, sent); err != nil {
						slog.Error("Failed message sync", "error", err)
						return
					}
				}
			case <-ticker.C:
				// Keepalive
			}
		}
	}()

	// Reader loop: receives user messages and forwarded console logs.
	for {
		var msg clientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			slog.Error("WebSocket read error", "error", err)
			break
		}

		switch msg.Type {
		case "message":
			if msg.Content == "" {
				continue
			}
			if err := s.manager.Send(context.Background(), sessionID, msg.Content); err != nil {
				slog.Error("Failed to accept user message", "error", err)
			}

		case sandbox.MessageTypeConsoleLog:
			log := domain.ConsoleLog{
				Type:      msg.LogType,
				Message:   msg.Message,
				Timestamp: time.Now(),
			}
			if err := s.manager.AppendConsoleLog(context.Background(), sessionID, log); err != nil {
				slog.Warn("Failed to record console log", "error", err)
			}

		case "abort":
			s.manager.Abort(sessionID)

		default:
			slog.Warn("Unknown websocket message type", "type", msg.Type)
		}
	}

	close(done)
	wg.Wait()
}

// syncMessages pushes every message whose serialized form changed since the
// last sync. Drafts mutate in place, so the comparison is on content rather
// than ID presence.
func (s *Server) syncMessages(ws *websocket.Conn, writeMu *sync.Mutex, sessionID string, sent map[string]string) error {
	messages, err := s.messages.GetMessages(context.Background(), sessionID)
	if err != nil {
		return err
	}

	for i := range messages {
		m := &messages[i]
		encoded, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if sent[m.ID] == string(encoded) {
			continue
		}

		writeMu.Lock()
		err = ws.WriteMessage(websocket.TextMessage, encoded)
		writeMu.Unlock()
		if err != nil {
			return err
		}
		sent[m.ID] = string(encoded)
	}
	return nil
}
