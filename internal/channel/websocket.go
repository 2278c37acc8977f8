package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dealbot/internal/domain"
	"dealbot/internal/metrics"
)

// WSConfig configures the WebSocket channel.
type WSConfig struct {
	Port    int
	Path    string // endpoint path (default: /ws)
	Logger  *slog.Logger
	Metrics *metrics.Metrics // optional
}

// WebSocketChannel provides real-time chat over a persistent connection.
type WebSocketChannel struct {
	port    int
	path    string
	bus     domain.MessageBus
	logger  *slog.Logger
	server  *http.Server
	metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[string]*wsClient
}

// wsClient tracks one connected client. Writes are serialized per
// connection; gorilla forbids concurrent writers.
type wsClient struct {
	conn   *websocket.Conn
	chatID string
	mu     sync.Mutex
}

// WSMessage is the JSON wire protocol. Clients send type "send_message";
// the server replies with "message" or "error", plus a "status" frame on
// connect.
type WSMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	ChatID  string `json:"chat_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // configure CORS for production
	},
}

// NewWebSocketChannel creates a new WebSocket channel.
func NewWebSocketChannel(cfg WSConfig) *WebSocketChannel {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.Port == 0 {
		cfg.Port = 3001
	}
	return &WebSocketChannel{
		port:    cfg.Port,
		path:    cfg.Path,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		clients: make(map[string]*wsClient),
	}
}

func (ws *WebSocketChannel) Name() string { return "websocket" }

// Start begins the WebSocket server and blocks until the context is
// cancelled or the listener fails.
func (ws *WebSocketChannel) Start(ctx context.Context, bus domain.MessageBus) error {
	ws.attach(bus)

	mux := http.NewServeMux()
	mux.HandleFunc(ws.path, ws.handleUpgrade)

	ws.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", ws.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ws.logger.Info("websocket server starting", "port", ws.port, "path", ws.path)

	errCh := make(chan error, 1)
	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ws.closeAllClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ws.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// attach binds the bus and registers the outbound handler that maps
// replies onto "message" or "error" frames.
func (ws *WebSocketChannel) attach(bus domain.MessageBus) {
	ws.bus = bus
	bus.OnOutbound(ws.Name(), func(msg domain.OutboundMessage) {
		frameType := "message"
		if msg.IsError {
			frameType = "error"
		}
		ws.sendToChat(msg.ChatID, WSMessage{
			Type:    frameType,
			Content: msg.Content,
			ChatID:  msg.ChatID,
		})
	})
}

func (ws *WebSocketChannel) Stop() error {
	ws.closeAllClients()
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}

func (ws *WebSocketChannel) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		chatID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}

	client := &wsClient{conn: conn, chatID: chatID}

	clientID := fmt.Sprintf("%s-%p", chatID, conn)
	ws.mu.Lock()
	ws.clients[clientID] = client
	ws.mu.Unlock()
	if ws.metrics != nil {
		ws.metrics.WSConnections.Inc()
	}

	ws.logger.Info("websocket client connected", "client_id", clientID, "chat_id", chatID)

	client.send(WSMessage{Type: "status", Content: "connected", ChatID: chatID})

	defer func() {
		ws.mu.Lock()
		delete(ws.clients, clientID)
		ws.mu.Unlock()
		if ws.metrics != nil {
			ws.metrics.WSConnections.Dec()
		}
		conn.Close()
		ws.logger.Info("websocket client disconnected", "client_id", clientID)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Error("websocket read error", "err", err)
			}
			return
		}

		var wsMsg WSMessage
		if err := json.Unmarshal(message, &wsMsg); err != nil {
			ws.logger.Warn("invalid websocket frame", "err", err)
			client.send(WSMessage{Type: "error", Content: "invalid message format", ChatID: chatID})
			continue
		}

		switch wsMsg.Type {
		case "send_message":
			ws.bus.Publish(domain.InboundMessage{
				Channel:   ws.Name(),
				ChatID:    chatID,
				SenderID:  wsMsg.UserID,
				Content:   wsMsg.Content,
				Timestamp: time.Now(),
			})
		default:
			client.send(WSMessage{Type: "error", Content: "unknown message type: " + wsMsg.Type, ChatID: chatID})
		}
	}
}

// sendToChat delivers a frame to every client attached to the chat id.
func (ws *WebSocketChannel) sendToChat(chatID string, msg WSMessage) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	for _, client := range ws.clients {
		if client.chatID == chatID || chatID == "" {
			client.send(msg)
		}
	}
}

func (c *wsClient) send(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteMessage(websocket.TextMessage, data)
}

func (ws *WebSocketChannel) closeAllClients() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for id, client := range ws.clients {
		client.conn.Close()
		delete(ws.clients, id)
	}
}
