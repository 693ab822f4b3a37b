package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// The server hosts one table at a time, like a living room. currentGame is
// the in-memory aggregate; gameMu guards the pointer and the lobby's role
// selection, not the game's internals (the Game has its own lock).
var (
	gameMu        sync.Mutex
	currentGame   *Game
	selectedRoles []string
)

func getOrCreateCurrentGame() *Game {
	gameMu.Lock()
	defer gameMu.Unlock()
	if currentGame == nil {
		id := uuid.NewString()
		currentGame = newGame(id, config.toGameSettings(), rand.New(rand.NewSource(time.Now().UnixNano())))
		log.Printf("Created new game: id=%s, phase='lobby'", id)
		DebugLog("getOrCreateCurrentGame", "Created new game %s", id)
	}
	return currentGame
}

// LobbyState is the roster plus role selection pushed to every client while
// the table fills up.
type LobbyState struct {
	GameID        string        `json:"game_id"`
	Players       []PlayerState `json:"players"`
	SelectedRoles []string      `json:"selected_roles"`
	AllRoles      []string      `json:"all_roles"`
	WolfCount     int           `json:"wolf_count"`
	CanStart      bool          `json:"can_start"`
	Settings      GameSettings  `json:"settings"`
}

// addPlayerToLobby seats a connecting player if the game has not started yet
func addPlayerToLobby(playerID, playerName string) {
	game := getOrCreateCurrentGame()
	if err := game.AddPlayer(playerID, playerName); err != nil {
		DebugLog("addPlayerToLobby", "Player '%s' (ID: %s) cannot join: %v", playerName, playerID, err)
		// Mid-game reconnects still get a state push
		broadcastGameState()
		return
	}
	log.Printf("Player %s (%s) added to lobby (connected)", playerID, playerName)
	broadcastGameState()
}

// removePlayerFromLobby unseats a player whose last connection dropped
func removePlayerFromLobby(playerID string) {
	game := getOrCreateCurrentGame()
	if game.CurrentPhase() != PhaseLobby {
		DebugLog("removePlayerFromLobby", "Player %s disconnected mid-game, seat kept", playerID)
		return
	}
	game.RemovePlayer(playerID)
	log.Printf("Player %s removed from lobby (disconnected)", playerID)
	broadcastGameState()
}

// handleWSUpdateRole replaces the lobby's special role selection
func handleWSUpdateRole(client *Client, msg WSMessage) {
	game := getOrCreateCurrentGame()
	if game.CurrentPhase() != PhaseLobby {
		sendErrorToast(client.playerID, "Cannot update roles: game already started")
		return
	}

	for _, name := range msg.Roles {
		if _, ok := roleCatalog[name]; !ok {
			sendErrorToast(client.playerID, "Unknown role: "+name)
			return
		}
	}

	gameMu.Lock()
	selectedRoles = append([]string(nil), msg.Roles...)
	gameMu.Unlock()
	DebugLog("handleWSUpdateRole", "Role selection now %v", msg.Roles)
	broadcastGameState()
}

// handleWSSetSettings overrides the table rules while still in the lobby
func handleWSSetSettings(client *Client, msg WSMessage) {
	if msg.Settings == nil {
		return
	}
	game := getOrCreateCurrentGame()
	if err := game.UpdateSettings(*msg.Settings); err != nil {
		sendErrorToast(client.playerID, "Cannot change settings: game already started")
		return
	}
	DebugLog("handleWSSetSettings", "Settings updated: %+v", *msg.Settings)
	broadcastGameState()
}

func handleWSStartGame(client *Client) {
	game := getOrCreateCurrentGame()

	gameMu.Lock()
	roles := append([]string(nil), selectedRoles...)
	gameMu.Unlock()

	if err := game.AssignRoles(roles); err != nil {
		log.Printf("Cannot start game %s: %v", game.ID, err)
		sendErrorToast(client.playerID, err.Error())
		return
	}

	log.Printf("Game %s started", game.ID)
	LogDBState("after game start")
	broadcastGameState()
	broadcastEvents(nil)
	maybeGenerateStory(game)
}

// handleWSRematchVote counts rematch votes after game over and resets the
// table once a majority wants another round.
func handleWSRematchVote(client *Client) {
	game := getOrCreateCurrentGame()
	if !game.VoteRematch(client.playerID) {
		broadcastGameState()
		return
	}

	if data := game.GameOver(); data != nil {
		if err := recordMatch(game, data, game.NightCount()); err != nil {
			logError("handleWSRematchVote: recordMatch", err)
		}
	}

	gameMu.Lock()
	currentGame = game.Reset(uuid.NewString())
	gameMu.Unlock()
	log.Printf("Rematch: game reset into %s", currentGame.ID)
	broadcastGameState()
}

// broadcastGameState pushes each connected player their personalized view
func broadcastGameState() {
	game := getOrCreateCurrentGame()

	if game.CurrentPhase() == PhaseLobby {
		state := buildLobbyState(game)
		msg, err := json.Marshal(ServerMessage{Event: "lobby_state", Payload: state})
		if err != nil {
			logError("broadcastGameState: marshal lobby", err)
			return
		}
		hub.broadcastMessage(msg)
		return
	}

	for _, pid := range hub.connectedPlayerIDs() {
		snap := game.Snapshot(pid)
		payload := struct {
			GameSnapshot
			Night NightUISchema `json:"night,omitempty"`
		}{GameSnapshot: snap}
		if snap.Phase == PhaseNight {
			payload.Night = game.GetNightUISchema(pid)
		}
		msg, err := json.Marshal(ServerMessage{Event: "game_state", Payload: payload})
		if err != nil {
			logError("broadcastGameState: marshal", err)
			continue
		}
		hub.sendToPlayer(pid, msg)
	}
}

func buildLobbyState(game *Game) LobbyState {
	gameMu.Lock()
	roles := append([]string(nil), selectedRoles...)
	gameMu.Unlock()

	players := game.LivingPlayers("")
	all := allRoleNames()
	sort.Strings(all)
	return LobbyState{
		GameID:        game.ID,
		Players:       players,
		SelectedRoles: roles,
		AllRoles:      all,
		WolfCount:     werewolfCountFor(len(players)),
		CanStart:      len(players) >= minPlayers,
		Settings:      game.Settings,
	}
}

// broadcastEvents fans an engine event batch out to the table. Private events
// only reach their recipient; everything else is broadcast.
func broadcastEvents(events []Event) {
	for _, e := range events {
		msg, err := json.Marshal(ServerMessage{Event: e.Kind, Payload: e})
		if err != nil {
			logError("broadcastEvents: marshal", err)
			continue
		}
		if e.For != "" {
			hub.sendToPlayer(e.For, msg)
			continue
		}
		hub.broadcastMessage(msg)
	}
	if len(events) > 0 {
		broadcastGameState()
	}
}

// handleJoinQR serves a QR code pointing phones at the join page.
func handleJoinQR(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	joinURL := scheme + "://" + r.Host + "/"
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		logError("handleJoinQR: encode", err)
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
