package main

import (
	"testing"
)

func TestRecordMatchRoundTrip(t *testing.T) {
	newTestContext(t)

	g := buildTestGame(t, []seat{
		{"Ada", "Villager"}, {"Ben", "Seer"},
		{"Cole", "Werewolf"}, {"Dana", "Villager"},
	})
	g.SetPhase(PhaseNight)
	g.mu.Lock()
	g.players["p3"].IsAlive = false
	g.checkGameOverLocked()
	g.mu.Unlock()

	data := g.GameOver()
	if data == nil {
		t.Fatal("game should be over with the last wolf dead")
	}
	if err := recordMatch(g, data, g.NightCount()); err != nil {
		t.Fatalf("recordMatch: %v", err)
	}

	matches, err := getMatchHistory(10)
	if err != nil {
		t.Fatalf("getMatchHistory: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("history = %d matches, want 1", len(matches))
	}
	m := matches[0]
	if m.WinningTeam != string(TeamVillagers) {
		t.Errorf("winning team = %q, want %q", m.WinningTeam, TeamVillagers)
	}
	if len(m.Players) != 4 {
		t.Fatalf("recorded %d seats, want 4", len(m.Players))
	}
	for _, s := range m.Players {
		switch s.PlayerID {
		case "p3":
			if s.Won || s.Survived {
				t.Errorf("dead wolf %s recorded as won=%v survived=%v", s.Name, s.Won, s.Survived)
			}
			if s.Role != "Werewolf" {
				t.Errorf("seat p3 role = %q, want Werewolf", s.Role)
			}
		default:
			if !s.Won {
				t.Errorf("villager-team seat %s should be marked as won", s.Name)
			}
		}
	}
}

func TestRecordMatchSoloWinnerByRoleName(t *testing.T) {
	newTestContext(t)

	g := buildTestGame(t, []seat{
		{"Ada", "Villager"}, {"Ben", "Villager"},
		{"Cole", "Werewolf"}, {"Dana", "Serial Killer"},
	})
	g.SetPhase(PhaseNight)
	g.mu.Lock()
	g.players["p1"].IsAlive = false
	g.players["p2"].IsAlive = false
	g.players["p3"].IsAlive = false
	g.checkGameOverLocked()
	g.mu.Unlock()

	data := g.GameOver()
	if data == nil {
		t.Fatal("lone Serial Killer should end the game")
	}
	if data.WinningTeam != "Serial Killer" {
		t.Fatalf("winning team = %q, want Serial Killer", data.WinningTeam)
	}
	if err := recordMatch(g, data, g.NightCount()); err != nil {
		t.Fatalf("recordMatch: %v", err)
	}

	matches, err := getMatchHistory(1)
	if err != nil {
		t.Fatalf("getMatchHistory: %v", err)
	}
	for _, s := range matches[0].Players {
		wantWon := s.PlayerID == "p4"
		if s.Won != wantWon {
			t.Errorf("seat %s won = %v, want %v", s.Name, s.Won, wantWon)
		}
	}
}

func TestMatchHistoryNewestFirst(t *testing.T) {
	newTestContext(t)

	for i := 0; i < 3; i++ {
		g := buildTestGame(t, []seat{
			{"Ada", "Villager"}, {"Ben", "Villager"},
			{"Cole", "Werewolf"}, {"Dana", "Villager"},
		})
		g.SetPhase(PhaseNight)
		g.mu.Lock()
		g.players["p3"].IsAlive = false
		g.checkGameOverLocked()
		g.mu.Unlock()
		if err := recordMatch(g, g.GameOver(), i); err != nil {
			t.Fatalf("recordMatch #%d: %v", i, err)
		}
	}

	matches, err := getMatchHistory(2)
	if err != nil {
		t.Fatalf("getMatchHistory: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("limit 2 returned %d matches", len(matches))
	}
	if matches[0].Nights != 2 || matches[1].Nights != 1 {
		t.Errorf("order = nights %d, %d; want newest first (2, 1)", matches[0].Nights, matches[1].Nights)
	}
}
