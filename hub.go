package main

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WSMessage represents a message from the client
type WSMessage struct {
	Action         string        `json:"action"`
	TargetID       string        `json:"target_id,omitempty"`
	SecondTargetID string        `json:"second_target_id,omitempty"`
	Option         string        `json:"option,omitempty"`
	Roles          []string      `json:"roles,omitempty"`
	Vote           bool          `json:"vote,omitempty"`
	Settings       *GameSettings `json:"settings,omitempty"`
}

// ServerMessage is the envelope for everything the server pushes over the
// socket. Payload shape depends on the event.
type ServerMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// Client represents a websocket connection with player info
type Client struct {
	conn     *websocket.Conn
	playerID string
	writeMu  sync.Mutex // Serialize writes to WebSocket (required by gorilla/websocket)
}

// WebSocket hub for broadcasting updates to all connected clients
type Hub struct {
	clients    map[*websocket.Conn]*Client
	register   chan *Client
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	done       chan struct{}
	wg         sync.WaitGroup
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*Client),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn, 64),
		done:       make(chan struct{}),
	}
}

// stop signals the hub goroutine to exit and waits for it to finish
func (h *Hub) stop() {
	close(h.done)
	h.wg.Wait()
}

var hub = newHub()

func (h *Hub) sendToPlayer(playerID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.playerID == playerID {
			// Get player name for logging
			var playerName string
			db.Get(&playerName, "SELECT name FROM player WHERE id = ?", playerID)
			LogWSMessage("OUT", playerName, string(message))

			// Serialize writes to each connection
			client.writeMu.Lock()
			err := client.conn.WriteMessage(websocket.TextMessage, message)
			client.writeMu.Unlock()

			if err != nil {
				log.Printf("WebSocket write error to player %s: %v", playerID, err)
			}
		}
	}
}

// connectedPlayerIDs returns the distinct player ids with at least one open
// socket.
func (h *Hub) connectedPlayerIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]bool)
	var ids []string
	for _, client := range h.clients {
		if !seen[client.playerID] {
			seen[client.playerID] = true
			ids = append(ids, client.playerID)
		}
	}
	return ids
}

// broadcastMessage writes to every connection directly under the read lock,
// so callers inside hub callbacks cannot deadlock. Failed connections are
// left for the reader goroutine to unregister.
func (h *Hub) broadcastMessage(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		client.writeMu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, message)
		client.writeMu.Unlock()
		if err != nil {
			log.Printf("WebSocket write error: %v", err)
		}
	}
}

func (h *Hub) run() {
	h.wg.Add(1)
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			h.mu.Unlock()
			var playerName string
			db.Get(&playerName, "SELECT name FROM player WHERE id = ?", client.playerID)
			log.Printf("WebSocket client connected (player %s: %s). Total: %d", client.playerID, playerName, len(h.clients))
			DebugLog("hub.register", "Player '%s' (ID: %s) connected via WebSocket", playerName, client.playerID)
			addPlayerToLobby(client.playerID, playerName)

		case conn := <-h.unregister:
			var removePlayerID string
			h.mu.Lock()
			client, ok := h.clients[conn]
			if ok {
				playerID := client.playerID
				var playerName string
				db.Get(&playerName, "SELECT name FROM player WHERE id = ?", playerID)
				delete(h.clients, conn)
				conn.Close()

				// Check if player has any remaining connections
				hasOtherConn := false
				for _, c := range h.clients {
					if c.playerID == playerID {
						hasOtherConn = true
						break
					}
				}

				if !hasOtherConn {
					DebugLog("hub.unregister", "Player '%s' (ID: %s) has no more connections, removing from lobby", playerName, playerID)
					removePlayerID = playerID
				} else {
					DebugLog("hub.unregister", "Player '%s' (ID: %s) still has other connections", playerName, playerID)
				}
			}
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected. Total: %d", len(h.clients))
			// Call removePlayerFromLobby after releasing mutex because it
			// broadcasts, which needs the read lock
			if removePlayerID != "" {
				removePlayerFromLobby(removePlayerID)
			}
		}
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Capture globals at entry to avoid race conditions in parallel tests
	currentDB := db
	currentHub := hub

	playerID, err := getPlayerIdFromSession(r)
	if err != nil {
		DebugLog("handleWebSocket", "Rejected WebSocket connection - not logged in")
		http.Error(w, "Not logged in", http.StatusUnauthorized)
		return
	}

	var playerName string
	currentDB.Get(&playerName, "SELECT name FROM player WHERE id = ?", playerID)
	DebugLog("handleWebSocket", "Player '%s' (ID: %s) initiating WebSocket connection", playerName, playerID)

	var upgrader = websocket.Upgrader{
		// CheckOrigin: func(r *http.Request) bool {
		// 	return true // Allow all origins for local development
		// },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error for player %s (%s): %v", playerID, playerName, err)
		return
	}

	DebugLog("handleWebSocket", "WebSocket upgraded successfully for player '%s' (ID: %s)", playerName, playerID)
	client := &Client{conn: conn, playerID: playerID}
	currentHub.register <- client

	// Handle messages and disconnection
	go func() {
		defer func() {
			currentHub.unregister <- conn
		}()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				break
			}
			handleWSMessage(client, message)
		}
	}()
}
