package main

import (
	"compress/gzip"
	"embed"
	"encoding/json"
	"flag"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed templates/*
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var templates *template.Template
var db *sqlx.DB
var config AppConfig
var devMode bool

// logError logs an error with context and dumps the database in dev mode
func logError(context string, err error) {
	log.Printf("ERROR [%s]: %v", context, err)
	if devMode {
		rows, _ := db.Query(".dump")
		log.Printf("DB dump: %v", rows)
	}
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	playerID, err := getPlayerIdFromSession(r)
	loggedIn := err == nil && playerID != ""

	if loggedIn {
		var playerName string
		db.Get(&playerName, "SELECT name FROM player WHERE id = ?", playerID)
		DebugLog("handleIndex", "Page accessed by logged-in player '%s' (ID: %s)", playerName, playerID)
	} else {
		DebugLog("handleIndex", "Page accessed by anonymous visitor")
	}

	templates.ExecuteTemplate(w, "index.html", loggedIn)
}

// GamePageData is the shell the game page boots from; live state arrives over
// the socket afterwards.
type GamePageData struct {
	PlayerID   string
	PlayerName string
}

func handleGame(w http.ResponseWriter, r *http.Request) {
	playerID, err := getPlayerIdFromSession(r)
	if err != nil {
		DebugLog("handleGame", "Redirecting anonymous visitor to index")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	account, err := getAccount(playerID)
	if err != nil {
		logError("handleGame: getAccount", err)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	DebugLog("handleGame", "Player '%s' (ID: %s) accessing game page", account.Name, playerID)

	templates.ExecuteTemplate(w, "game.html", GamePageData{
		PlayerID:   account.ID,
		PlayerName: account.Name,
	})
}

// handleHistory serves the finished match archive as JSON.
func handleHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := getPlayerIdFromSession(r); err != nil {
		http.Error(w, "Not logged in", http.StatusUnauthorized)
		return
	}

	matches, err := getMatchHistory(50)
	if err != nil {
		logError("handleHistory: getMatchHistory", err)
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(matches); err != nil {
		logError("handleHistory: encode", err)
	}
}

func disableCaching(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Cache-Control", "no-cache")

		next.ServeHTTP(w, r)
	})
}

// gzipWriter wraps http.ResponseWriter to compress output
type gzipWriter struct {
	http.ResponseWriter
	Writer *gzip.Writer
}

func (w *gzipWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

func (w *gzipWriter) Flush() {
	w.Writer.Flush()
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// shouldCompress determines if a content type should be gzip compressed
// Compresses text-based formats but not binary formats like images
func shouldCompress(contentType string) bool {
	compressiblePrefixes := []string{
		"text/",
		"application/json",
		"application/javascript",
		"image/svg",
	}
	for _, prefix := range compressiblePrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// responseWriter wraps http.ResponseWriter to handle conditional gzip compression
type responseWriter struct {
	http.ResponseWriter
	gz            *gzip.Writer
	wrappedWriter http.ResponseWriter
	headerSent    bool
}

// WriteHeader checks content type and sets up compression if appropriate
func (w *responseWriter) WriteHeader(statusCode int) {
	if w.headerSent {
		return
	}
	w.headerSent = true

	contentType := w.Header().Get("Content-Type")
	acceptGzip := strings.Contains(w.Header().Get("Accept-Encoding"), "gzip")

	// Only compress if content type is compressible and client supports gzip
	if contentType != "" && shouldCompress(contentType) && acceptGzip {
		w.gz = gzip.NewWriter(w.wrappedWriter)
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
	}

	w.ResponseWriter.WriteHeader(statusCode)
}

// Write writes to gzip writer if it exists, otherwise to original writer
func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.headerSent {
		w.WriteHeader(http.StatusOK)
	}

	if w.gz != nil {
		return w.gz.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// Flush flushes both gzip and response writer
func (w *responseWriter) Flush() {
	if w.gz != nil {
		w.gz.Flush()
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Close closes the gzip writer if it exists
func (w *responseWriter) Close() error {
	if w.gz != nil {
		return w.gz.Close()
	}
	return nil
}

// compress adds gzip compression to compressible responses
func compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{
			ResponseWriter: w,
			wrappedWriter:  w,
		}
		defer wrapped.Close()

		next.ServeHTTP(wrapped, r)
	})
}

func handleWSMessage(client *Client, message []byte) {
	// Log incoming WebSocket message
	var playerName string
	db.Get(&playerName, "SELECT name FROM player WHERE id = ?", client.playerID)

	var msg WSMessage
	err := json.Unmarshal(message, &msg)
	if err != nil {
		log.Printf("WebSocket unmarshal error for player %s: %v", client.playerID, err)
		return
	}

	LogWSMessage("IN", playerName, msg.Action)

	switch msg.Action {
	case "join_lobby":
		// Seating happens on connect; an explicit join just re-syncs state
		broadcastGameState()
	case "update_role":
		handleWSUpdateRole(client, msg)
	case "set_settings":
		handleWSSetSettings(client, msg)
	case "start_game":
		handleWSStartGame(client)
	case "night_action":
		handleWSNightAction(client, msg)
	case "accuse":
		handleWSAccuse(client, msg)
	case "vote_sleep":
		handleWSVoteSleep(client, msg)
	case "lynch_vote":
		handleWSLynchVote(client, msg)
	case "advance_phase":
		handleWSAdvancePhase(client)
	case "rematch_vote":
		handleWSRematchVote(client)
	default:
		log.Printf("Unknown action: %s for player %s (%s)", msg.Action, client.playerID, playerName)
	}
}

// handleWSAdvancePhase lets the table push past a stuck phase when timers are
// disabled.
func handleWSAdvancePhase(client *Client) {
	game := getOrCreateCurrentGame()
	if game.CurrentPhase() == PhaseLobby || game.CurrentPhase() == PhaseGameOver {
		sendErrorToast(client.playerID, "Nothing to advance right now")
		return
	}
	events := game.AdvancePhase()
	log.Printf("Game %s: phase advanced by player %s", game.ID, client.playerID)
	broadcastEvents(events)
	broadcastGameState()
	maybeGenerateStory(game)
}

// runHeartbeat drives phase timers. One second resolution is plenty.
func runHeartbeat(done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			game := getOrCreateCurrentGame()
			events, fired := game.Tick(now)
			if fired {
				log.Printf("Game %s: phase timer fired", game.ID)
				broadcastEvents(events)
				broadcastGameState()
				maybeGenerateStory(game)
			}
		}
	}
}

func main() {
	flags := registerFlags()
	flag.Parse()
	config = loadConfig(*flags.configPath)
	flags.applyTo(&config)
	devMode = config.Dev

	// Set up logging to both stdout and file
	logFile, err := os.OpenFile("werewolves.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	// Initialize application logger from config
	logger, err := NewAppLogger(config.toLogConfig())
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	appLogger = logger
	defer CloseAppLogger()

	if appLogger.IsEnabled() {
		log.Println("Extended logging enabled")
	}

	db, err = sqlx.Connect("sqlite3", config.DB)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := initDB(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	LogDBState("after initDB")

	initStoryteller(config)

	templates, err = template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		log.Fatal("Failed to parse templates:", err)
	}

	// Start WebSocket hub and the phase timer heartbeat
	go hub.run()
	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go runHeartbeat(heartbeatDone)

	// Wrap handlers with compression, caching control, and optional logging
	wrapHandler := func(pattern string, handler http.HandlerFunc) {
		var h http.Handler = handler
		h = compress(h)
		h = disableCaching(h)
		if appLogger != nil && appLogger.logRequests {
			http.Handle(pattern, &LoggingHandler{Handler: h, Logger: appLogger})
		} else {
			http.Handle(pattern, h)
		}
	}

	wrapHandler("/", handleIndex)
	wrapHandler("/signup", handleSignup)
	wrapHandler("/login", handleLogin)
	wrapHandler("/logout", handleLogout)
	wrapHandler("/game", handleGame)
	wrapHandler("/ws", handleWebSocket)
	wrapHandler("/history", handleHistory)
	wrapHandler("/join-qr", handleJoinQR)

	// Serve static files with compression for text-based files (CSS, JS, SVG)
	// Binary formats like images will be served without compression
	staticHandler := compress(http.FileServer(http.FS(staticFS)))
	http.Handle("/static/", staticHandler)

	log.Printf("Server starting on %s", config.Addr)
	log.Fatal(http.ListenAndServe(config.Addr, nil))
}
