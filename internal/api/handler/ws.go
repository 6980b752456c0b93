package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dater/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten for production!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundMessage is the wire form of one client message. "location_update"
// feeds the location service; every other kind is a local trigger.
type inboundMessage struct {
	Kind      string           `json:"kind"`
	TargetUID string           `json:"targetUID,omitempty"`
	PhotoURI  string           `json:"photoURI,omitempty"`
	Coords    *models.GeoPoint `json:"coords,omitempty"`
	Zoom      float64          `json:"zoom,omitempty"`
	Heading   float64          `json:"heading,omitempty"`
	Duration  int              `json:"duration,omitempty"`
}

// ServeWebSocket upgrades the HTTP connection to a WebSocket and runs the
// pumps: inbound messages become bus intents, outbound bus directives are
// streamed back to the client.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}
	tokenString := authHeader[7:]

	anonID, err := h.validateAndGetAnonID(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := &wsClient{handler: h, anonID: anonID, conn: conn}
	go client.writePump()
	client.readPump()
}

type wsClient struct {
	handler *Handler
	anonID  string
	conn    *websocket.Conn
}

func (c *wsClient) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		var msg inboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error decoding JSON from client %s: %v", c.anonID, err)
			continue
		}

		if msg.Kind == "location_update" {
			if msg.Coords != nil {
				c.handler.Location.Update(*msg.Coords)
			}
			continue
		}

		kind, ok := models.ParseIntentKind(msg.Kind)
		if !ok {
			log.Printf("Unknown intent kind %q from client %s", msg.Kind, c.anonID)
			continue
		}
		c.handler.Bus.Publish(models.Intent{
			Kind:      kind,
			TargetUID: msg.TargetUID,
			PhotoURI:  msg.PhotoURI,
			Coords:    msg.Coords,
			Zoom:      msg.Zoom,
			Heading:   msg.Heading,
			Duration:  msg.Duration,
		})
	}
}

// writePump streams bus directives to the peer. The directive stream is a
// single shared channel (see bus.Directives), so at most one UI connection
// may be live at a time; a concurrent second connection would split the
// stream between the two readers.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	directives := c.handler.Bus.Directives()

	for {
		select {
		case directive, ok := <-directives:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			dataToWrite, err := json.Marshal(directive)
			if err != nil {
				log.Printf("Error encoding JSON for client %s: %v", c.anonID, err)
				continue
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(dataToWrite)

			// Drain whatever queued up behind this directive.
			n := len(directives)
			for i := 0; i < n; i++ {
				next, ok := <-directives
				if !ok {
					break
				}
				extraData, _ := json.Marshal(next)
				w.Write(extraData)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
