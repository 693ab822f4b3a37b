package main

import (
	"strings"
	"testing"
)

func TestNightActionStatuses(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Villager"}, {"Cleo", "Villager"}, {"Dov", "Villager"},
	})

	// Not night yet.
	if status, _ := g.ReceiveNightAction("p1", NightChoice{TargetID: "p2"}); status != StatusIgnored {
		t.Errorf("lobby action status = %s, want IGNORED", status)
	}

	g.SetPhase(PhaseNight)

	if status, _ := g.ReceiveNightAction("p1", NightChoice{TargetID: "p2"}); status != StatusWaiting {
		t.Errorf("first action status = %s, want WAITING", status)
	}
	// The first submission is final.
	if status, _ := g.ReceiveNightAction("p1", NightChoice{TargetID: "p3"}); status != StatusAlreadyActed {
		t.Errorf("duplicate action status = %s, want ALREADY_ACTED", status)
	}
	if status, _ := g.ReceiveNightAction("nobody", NightChoice{}); status != StatusIgnored {
		t.Errorf("unknown player status = %s, want IGNORED", status)
	}

	if status, _ := g.ReceiveNightAction("p2", NightChoice{}); status != StatusWaiting {
		t.Errorf("status = %s, want WAITING", status)
	}
	if status, _ := g.ReceiveNightAction("p3", NightChoice{}); status != StatusWaiting {
		t.Errorf("status = %s, want WAITING", status)
	}
	status, events := g.ReceiveNightAction("p4", NightChoice{})
	if status != StatusResolved {
		t.Fatalf("last action status = %s, want RESOLVED", status)
	}
	if len(events) == 0 {
		t.Error("resolution should emit events")
	}
	if g.CurrentPhase() != PhaseAccusation {
		t.Errorf("phase = %s, want accusation", g.CurrentPhase())
	}
}

func TestWerewolfUnanimousKill(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Werewolf"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"},
	})
	g.SetPhase(PhaseNight)

	events := runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p3"},
		"p2": {TargetID: "p3"},
	})

	if g.players["p3"].IsAlive {
		t.Error("unanimous pack target should be dead")
	}
	found := false
	for _, e := range events {
		if e.Kind == EventDeath && e.PlayerID == "p3" && e.Reason == ReasonWerewolfAttack {
			found = true
		}
	}
	if !found {
		t.Errorf("missing werewolf death event, got %+v", events)
	}
}

func TestWerewolfSplitVoteKillsNobody(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Werewolf"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"},
	})
	g.SetPhase(PhaseNight)

	events := runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p3"},
		"p2": {TargetID: "p4"},
	})

	if !g.players["p3"].IsAlive || !g.players["p4"].IsAlive {
		t.Error("split pack vote should kill nobody")
	}
	if !hasEventText(events, "could not agree") {
		t.Errorf("expected disagreement announcement, got %+v", events)
	}
}

func TestAbstainingWolfBlocksTheKill(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Werewolf"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"},
	})
	g.SetPhase(PhaseNight)

	runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p3"},
		// p2 abstains
	})
	if !g.players["p3"].IsAlive {
		t.Error("kill requires every wolf to vote")
	}
}

func TestBodyguardProtection(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Bodyguard"}, {"Cleo", "Villager"}, {"Dov", "Villager"},
	})
	g.SetPhase(PhaseNight)

	events := runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p3"},
		"p2": {TargetID: "p3"},
	})

	if !g.players["p3"].IsAlive {
		t.Fatal("guarded target should survive the pack")
	}
	found := false
	for _, e := range events {
		if e.Kind == EventProtected && e.PlayerID == "p3" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing protected event, got %+v", events)
	}
}

func TestBodyguardCannotRepeatTarget(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Bodyguard"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"},
	})
	g.SetPhase(PhaseNight)
	runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p3"},
	})

	g.SetPhase(PhaseNight)
	guard := g.players["p2"]
	for _, target := range guard.Role.ValidTargets(g, guard) {
		if target.ID == "p3" {
			t.Error("last night's ward should not be a valid target")
		}
	}
	// A repeat pick is quietly dropped and the kill lands.
	runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p3"},
		"p2": {TargetID: "p3"},
	})
	if g.players["p3"].IsAlive {
		t.Error("repeat protection should not hold")
	}
}

func TestWitchHealCancelsKill(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Witch"}, {"Cleo", "Villager"}, {"Dov", "Villager"},
	})
	g.SetPhase(PhaseNight)

	runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p3"},
		"p2": {TargetID: "p3", Option: "heal"},
	})
	if !g.players["p3"].IsAlive {
		t.Error("healed target should survive")
	}
}

func TestWitchPoisonKillsOnce(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Witch"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	})
	g.SetPhase(PhaseNight)

	runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p3", Option: "poison"},
	})
	if g.players["p3"].IsAlive {
		t.Fatal("poisoned target should die")
	}

	// The poison bottle is empty now.
	g.SetPhase(PhaseNight)
	runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p4", Option: "poison"},
	})
	if !g.players["p4"].IsAlive {
		t.Error("second poison should have no effect")
	}
}

func TestSeerReadsTeams(t *testing.T) {
	// Two wolves keep the Monster's solo win out of reach during the readings.
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Seer"}, {"Cleo", "Monster"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Werewolf"},
	})
	g.SetPhase(PhaseNight)

	events := runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p1"},
	})
	verdict := seerVerdict(events, "p2")
	if !strings.Contains(verdict, "Ada is a Werewolf") {
		t.Errorf("reading a wolf: got %q", verdict)
	}

	g.SetPhase(PhaseNight)
	events = runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p3"},
	})
	// The Monster reads as a werewolf.
	verdict = seerVerdict(events, "p2")
	if !strings.Contains(verdict, "Cleo is a Werewolf") {
		t.Errorf("reading the Monster: got %q", verdict)
	}

	g.SetPhase(PhaseNight)
	events = runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p4"},
	})
	verdict = seerVerdict(events, "p2")
	if !strings.Contains(verdict, "Dov is not a Werewolf") {
		t.Errorf("reading a villager: got %q", verdict)
	}
}

func seerVerdict(events []Event, seerID string) string {
	for _, e := range events {
		if e.Kind == EventReveal && e.For == seerID {
			return e.Text
		}
	}
	return ""
}

func TestMonsterShrugsOffThePack(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Werewolf"}, {"Cleo", "Monster"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	})
	g.SetPhase(PhaseNight)

	events := runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p3"},
		"p2": {TargetID: "p3"},
	})
	if !g.players["p3"].IsAlive {
		t.Error("the Monster is immune to werewolf attacks")
	}
	if !hasEventText(events, "no purchase") {
		t.Errorf("expected immunity announcement, got %+v", events)
	}
}

func TestProstituteBlocksHerTarget(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Prostitute"}, {"Cleo", "Seer"}, {"Dov", "Villager"}, {"Eli", "Villager"},
	})
	g.SetPhase(PhaseNight)

	events := runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p3"},
		"p3": {TargetID: "p1"}, // suppressed
	})

	if seerVerdict(events, "p3") != "" {
		t.Error("blocked Seer should get no reading")
	}
	blocked := false
	for _, e := range events {
		if e.Kind == EventBlocked && e.For == "p3" {
			blocked = true
		}
	}
	if !blocked {
		t.Errorf("missing blocked notice, got %+v", events)
	}
}

func TestProstituteDiesWithHerHost(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Prostitute"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	})
	g.SetPhase(PhaseNight)

	runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p3"},
		"p2": {TargetID: "p3"},
	})

	if g.players["p3"].IsAlive {
		t.Fatal("wolf target should be dead")
	}
	if g.players["p2"].IsAlive {
		t.Error("visitor shares the victim's fate")
	}
}

func TestSerialKillerSlipsPastTheBodyguard(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Serial Killer"}, {"Cleo", "Bodyguard"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	})
	g.SetPhase(PhaseNight)

	runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p4"},
		"p3": {TargetID: "p4"},
	})
	if g.players["p4"].IsAlive {
		t.Error("bodyguard protection does not stop the Serial Killer")
	}
}

func TestSerialKillerStoppedByHeal(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Serial Killer"}, {"Cleo", "Witch"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	})
	g.SetPhase(PhaseNight)

	runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p4"},
		"p3": {TargetID: "p4", Option: "heal"},
	})
	if !g.players["p4"].IsAlive {
		t.Error("a healed target survives the Serial Killer")
	}
}

func TestSorcererSniffsOutMagic(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Sorcerer"}, {"Cleo", "Seer"}, {"Dov", "Villager"}, {"Eli", "Villager"},
	})
	g.SetPhase(PhaseNight)

	events := runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p3"},
	})
	verdict := seerVerdict(events, "p2")
	if !strings.Contains(verdict, "Cleo is a magic user") {
		t.Errorf("reading the Seer: got %q", verdict)
	}

	g.SetPhase(PhaseNight)
	events = runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p4"},
	})
	verdict = seerVerdict(events, "p2")
	if !strings.Contains(verdict, "Dov is not a magic user") {
		t.Errorf("reading a villager: got %q", verdict)
	}
}

func TestRevealerUnmasksOrDies(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Werewolf"}, {"Cleo", "Revealer"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	})
	g.SetPhase(PhaseNight)

	runNight(t, g, map[string]NightChoice{
		"p3": {TargetID: "p1"},
	})
	if g.players["p1"].IsAlive {
		t.Error("unmasked werewolf should die")
	}
	if !g.players["p3"].IsAlive {
		t.Error("a correct reveal costs the Revealer nothing")
	}

	g.SetPhase(PhaseNight)
	runNight(t, g, map[string]NightChoice{
		"p3": {TargetID: "p4"},
	})
	if !g.players["p4"].IsAlive {
		t.Error("a wrongly accused villager survives")
	}
	if g.players["p3"].IsAlive {
		t.Error("a wrong reveal kills the Revealer")
	}
}

func TestVillageWhisperAnnouncement(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Villager"}, {"Cleo", "Villager"}, {"Dov", "Villager"},
	})
	g.SetPhase(PhaseNight)

	events := runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p1"},
		"p3": {TargetID: "p1"},
	})
	if !hasEventText(events, "whispered most about Ada") {
		t.Errorf("expected rumor announcement, got %+v", events)
	}
	if !g.players["p1"].IsAlive {
		t.Error("the village whisper has no mechanical effect")
	}
}

func TestNightUISchema(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Witch"}, {"Cleo", "Cupid"}, {"Dov", "Fool"},
	})
	g.SetPhase(PhaseNight)

	wolf := g.GetNightUISchema("p1")
	if !wolf.Active {
		t.Error("wolf should be active at night")
	}
	for _, target := range wolf.Targets {
		if target.ID == "p1" {
			t.Error("wolf should not be able to target itself")
		}
	}

	witch := g.GetNightUISchema("p2")
	if len(witch.Options) != 3 {
		t.Errorf("witch options = %v, want heal/poison/pass", witch.Options)
	}

	cupid := g.GetNightUISchema("p3")
	if !cupid.NeedsSecond {
		t.Error("cupid prompt should ask for two targets")
	}

	fool := g.GetNightUISchema("p4")
	if fool.Active {
		t.Error("the Fool sleeps through the night")
	}
}

func TestWitchPoisonAbsorbedLeavesNoTag(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Witch"}, {"Cleo", "Tough Villager"},
		{"Dov", "Villager"}, {"Eli", "Villager"},
	})
	g.SetPhase(PhaseNight)
	runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p3", Option: "poison"},
	})

	tough := g.players["p3"]
	if !tough.IsAlive {
		t.Fatal("second life should absorb the poison")
	}
	if tough.HasEffect(EffectSecondLife) {
		t.Error("the armor should be consumed by the blow")
	}
	if effects := tough.Effects(); len(effects) != 0 {
		t.Errorf("survivor should carry no lingering tags, got %v", effects)
	}
}
