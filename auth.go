package main

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"log"
	"math/big"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

const sessionCookieName = "werewolf_session"

func generateSecretCode() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func setSessionCookie(w http.ResponseWriter, playerID string) {
	tokenBig, _ := rand.Int(rand.Reader, big.NewInt(1<<62))
	token := tokenBig.Int64()

	db.Exec("INSERT INTO session (token, player_id) VALUES (?, ?)", token, playerID)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    strconv.FormatInt(token, 10),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func getPlayerIdFromSession(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", err
	}

	token, err := strconv.ParseInt(cookie.Value, 10, 64)
	if err != nil {
		return "", err
	}

	var playerID string
	err = db.Get(&playerID, "SELECT player_id FROM session WHERE token = ?", token)
	if err != nil {
		return "", err
	}

	return playerID, nil
}

func handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		w.Header().Set("HX-Reswap", "none")
		w.Write([]byte(renderToast("error", "Name is required")))
		return
	}

	_, err := getAccountByName(name)
	if err == nil {
		w.Header().Set("HX-Reswap", "none")
		w.Write([]byte(renderToast("error", "Name already taken. Use login with secret code if this is you.")))
		return
	}
	if err != sql.ErrNoRows {
		logError("handleSignup: getAccountByName", err)
		w.Header().Set("HX-Reswap", "none")
		w.Write([]byte(renderToast("error", "Something went wrong")))
		return
	}

	secretCode, err := generateSecretCode()
	if err != nil {
		logError("handleSignup: generateSecretCode", err)
		w.Header().Set("HX-Reswap", "none")
		w.Write([]byte(renderToast("error", "Something went wrong")))
		return
	}

	playerID := uuid.NewString()
	if err := createAccount(playerID, name, secretCode); err != nil {
		logError("handleSignup: createAccount", err)
		w.Header().Set("HX-Reswap", "none")
		w.Write([]byte(renderToast("error", "Something went wrong")))
		return
	}

	log.Printf("New player created: name='%s', id=%s", name, playerID)
	DebugLog("handleSignup", "Player '%s' signed up with ID %s", name, playerID)
	LogDBState("after signup: " + name)

	setSessionCookie(w, playerID)
	w.Header().Set("HX-Redirect", "/game")
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.FormValue("name")
	secretCode := r.FormValue("secret_code")

	if name == "" || secretCode == "" {
		w.Header().Set("HX-Reswap", "none")
		w.Write([]byte(renderToast("error", "Name and secret code are required")))
		return
	}

	account, err := getAccountByName(name)
	if err == sql.ErrNoRows || (err == nil && account.SecretCode != secretCode) {
		w.Header().Set("HX-Reswap", "none")
		w.Write([]byte(renderToast("error", "Invalid name or secret code")))
		return
	}
	if err != nil {
		logError("handleLogin: getAccountByName", err)
		w.Header().Set("HX-Reswap", "none")
		w.Write([]byte(renderToast("error", "Something went wrong")))
		return
	}

	log.Printf("Player logged in: name='%s', id=%s", name, account.ID)
	DebugLog("handleLogin", "Player '%s' logged in with ID %s", name, account.ID)
	setSessionCookie(w, account.ID)
	w.Header().Set("HX-Redirect", "/game")
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	playerID, _ := getPlayerIdFromSession(r)
	var playerName string
	db.Get(&playerName, "SELECT name FROM player WHERE id = ?", playerID)

	cookie, err := r.Cookie(sessionCookieName)
	if err == nil {
		token, _ := strconv.ParseInt(cookie.Value, 10, 64)
		db.Exec("DELETE FROM session WHERE token = ?", token)
	}

	log.Printf("Player logged out: name='%s', id=%s", playerName, playerID)
	DebugLog("handleLogout", "Player '%s' (ID: %s) logged out", playerName, playerID)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
