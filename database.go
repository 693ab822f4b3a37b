package main

import (
	"log"
	"time"
)

// Account is a registered player identity. Game state itself lives in memory;
// the database only carries identities, sessions and finished match history.
type Account struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	SecretCode string `db:"secret_code"`
}

// MatchRecord is one finished game as stored for the /history page.
type MatchRecord struct {
	ID          int64  `db:"id" json:"id"`
	WinningTeam string `db:"winning_team" json:"winning_team"`
	Reason      string `db:"reason" json:"reason"`
	Nights      int    `db:"nights" json:"nights"`
	FinishedAt  string `db:"finished_at" json:"finished_at"`

	Players []MatchSeat `db:"-" json:"players"`
}

// MatchSeat is one seat of a finished match.
type MatchSeat struct {
	MatchID  int64  `db:"match_id" json:"-"`
	PlayerID string `db:"player_id" json:"player_id"`
	Name     string `db:"name" json:"name"`
	Role     string `db:"role" json:"role"`
	Team     string `db:"team" json:"team"`
	Survived bool   `db:"survived" json:"survived"`
	Won      bool   `db:"won" json:"won"`
}

func getAccount(id string) (Account, error) {
	var a Account
	err := db.Get(&a, "SELECT id, name, secret_code FROM player WHERE id = ?", id)
	return a, err
}

func getAccountByName(name string) (Account, error) {
	var a Account
	err := db.Get(&a, "SELECT id, name, secret_code FROM player WHERE name = ?", name)
	return a, err
}

func createAccount(id, name, secretCode string) error {
	_, err := db.Exec("INSERT INTO player (id, name, secret_code) VALUES (?, ?, ?)", id, name, secretCode)
	return err
}

// recordMatch persists a finished game. Call with the terminal payload; the
// game itself is about to be reset for a rematch.
func recordMatch(g *Game, data *GameOverData, nights int) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO match (winning_team, reason, nights, finished_at) VALUES (?, ?, ?, ?)",
		data.WinningTeam, data.Reason, nights, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	matchID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, p := range data.FinalPlayers {
		// Solo winners record their role name as the winning team.
		won := p.Team == data.WinningTeam || p.Role == data.WinningTeam
		_, err := tx.Exec(
			"INSERT INTO match_player (match_id, player_id, name, role, team, survived, won) VALUES (?, ?, ?, ?, ?, ?, ?)",
			matchID, p.ID, p.Name, p.Role, p.Team, p.IsAlive, won)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	LogDBState("after recording match")
	return nil
}

// getMatchHistory returns the most recent finished matches, newest first.
func getMatchHistory(limit int) ([]MatchRecord, error) {
	var matches []MatchRecord
	err := db.Select(&matches, `
		SELECT rowid as id, winning_team, reason, nights, finished_at
		FROM match
		ORDER BY rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	for i := range matches {
		var seats []MatchSeat
		err := db.Select(&seats, `
			SELECT match_id, player_id, name, role, team, survived, won
			FROM match_player
			WHERE match_id = ?`, matches[i].ID)
		if err != nil {
			return nil, err
		}
		matches[i].Players = seats
	}
	return matches, nil
}

func initDB() error {
	schema := `
	PRAGMA journal_mode=WAL;

	CREATE TABLE IF NOT EXISTS player (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		secret_code TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS session (
		token INTEGER PRIMARY KEY,
		player_id TEXT NOT NULL,
		FOREIGN KEY (player_id) REFERENCES player(id)
	);
	CREATE TABLE IF NOT EXISTS match (
		winning_team TEXT NOT NULL,
		reason TEXT NOT NULL,
		nights INTEGER NOT NULL DEFAULT 0,
		finished_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS match_player (
		match_id INTEGER NOT NULL,
		player_id TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		team TEXT NOT NULL,
		survived INTEGER NOT NULL DEFAULT 0,
		won INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (match_id) REFERENCES match(rowid),
		UNIQUE(match_id, player_id)
	);
	CREATE INDEX IF NOT EXISTS idx_match_player_lookup ON match_player(match_id);
	`
	_, err := db.Exec(schema)
	if err != nil {
		log.Printf("initDB error: %v", err)
		return err
	}
	log.Printf("Database initialized successfully")
	return nil
}
