package main

import (
	"bytes"
	"encoding/json"
	"log"
	"strconv"
)

// Toast represents a notification message to show to the user
type Toast struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // "error", "warning", "success", "info"
	Message string `json:"message"`
}

// renderToast renders a toast notification HTML fragment for the HTTP pages
var toastCounter int64

func renderToast(toastType, message string) string {
	var buf bytes.Buffer
	toastCounter++
	toast := Toast{ID: strconv.FormatInt(toastCounter, 10), Type: toastType, Message: message}
	if err := templates.ExecuteTemplate(&buf, "toast.html", toast); err != nil {
		log.Printf("Failed to render toast: %v", err)
		return ""
	}
	return buf.String()
}

// sendToast pushes a toast event to one player over the socket
func sendToast(playerID, toastType, message string) {
	toastCounter++
	msg, err := json.Marshal(ServerMessage{
		Event: "toast",
		Payload: Toast{
			ID:      strconv.FormatInt(toastCounter, 10),
			Type:    toastType,
			Message: message,
		},
	})
	if err != nil {
		logError("sendToast: marshal", err)
		return
	}
	hub.sendToPlayer(playerID, msg)
}

// sendErrorToast sends an error toast to a specific player via WebSocket
func sendErrorToast(playerID string, message string) {
	sendToast(playerID, "error", message)
}
