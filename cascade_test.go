package main

import (
	"strings"
	"testing"
)

func TestSecondLifeAbsorbsOneBlow(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Tough Villager"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"},
	})
	g.SetPhase(PhaseNight)

	events := runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p2"},
	})
	tough := g.players["p2"]
	if !tough.IsAlive {
		t.Fatal("second life should absorb the first lethal blow")
	}
	if tough.HasEffect(EffectSecondLife) {
		t.Error("second life should be consumed")
	}
	saved := false
	for _, e := range events {
		if e.Kind == EventArmorSave && e.PlayerID == "p2" {
			saved = true
		}
	}
	if !saved {
		t.Errorf("missing armor save event, got %+v", events)
	}

	// Second blow lands for real.
	g.SetPhase(PhaseNight)
	runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p2"},
	})
	if tough.IsAlive {
		t.Error("second lethal blow should kill")
	}
}

func TestLoversDieTogether(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Cupid"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	})
	g.SetPhase(PhaseNight)

	// Night 1: Cupid binds Cleo and Dov.
	runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p3", SecondTargetID: "p4"},
	})
	if g.players["p3"].LinkedPartnerID != "p4" || g.players["p4"].LinkedPartnerID != "p3" {
		t.Fatal("cupid link not established")
	}

	g.SetPhase(PhaseNight)
	events := runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p3"},
	})
	if g.players["p3"].IsAlive {
		t.Fatal("wolf target should be dead")
	}
	if g.players["p4"].IsAlive {
		t.Error("a lover follows their partner into the grave")
	}
	pact := false
	for _, e := range events {
		if e.Kind == EventDeath && e.PlayerID == "p4" && e.Reason == ReasonLoverPact {
			pact = true
		}
	}
	if !pact {
		t.Errorf("missing lover pact death, got %+v", events)
	}
}

func TestHunterDragsTargetAlong(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Werewolf"}, {"Cleo", "Hunter"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	})
	g.SetPhase(PhaseNight)

	// The Hunter marks Ada, then the pack takes the Hunter.
	runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p3"},
		"p2": {TargetID: "p3"},
		"p3": {TargetID: "p1"},
	})
	if g.players["p3"].IsAlive {
		t.Fatal("hunter should be dead")
	}
	if g.players["p1"].IsAlive {
		t.Error("hunter's dying shot should take the marked wolf")
	}
}

func TestMartyrGiftsSecondLife(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Martyr"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	})
	g.SetPhase(PhaseNight)

	runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p2"},
		"p2": {TargetID: "p3"},
	})
	if g.players["p2"].IsAlive {
		t.Fatal("martyr should be dead")
	}
	if !g.players["p3"].HasEffect(EffectSecondLife) {
		t.Error("the martyr's ward should carry a second life")
	}
}

func TestHoneypotRetaliatesAgainstLynchers(t *testing.T) {
	g := buildTestGameRNG(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Honeypot"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	}, rollAlwaysHits())
	g.SetPhase(PhaseAccusation)

	runAccusations(t, g, map[string]string{
		"p1": "p2", "p3": "p2", "p4": "p2", "p5": "p2", "p6": "p2",
	})
	if g.CurrentPhase() != PhaseLynchVote {
		t.Fatalf("phase = %s, want lynch_vote", g.CurrentPhase())
	}
	// Six living voters, the accused included; four yes votes carry.
	outcome := runLynchVotes(t, g, map[string]bool{
		"p1": true, "p3": true, "p4": true, "p5": true,
	})
	if outcome.Result != "lynched" {
		t.Fatalf("result = %s, want lynched", outcome.Result)
	}
	if g.players["p2"].IsAlive {
		t.Fatal("honeypot should be lynched")
	}

	// One yes-voter pays for it. The rigged rng picks the first of the
	// sorted yes-voter ids.
	if g.players["p1"].IsAlive {
		t.Error("a yes-voter should die in retaliation")
	}
}

func TestHoneypotRetaliatesAgainstThePack(t *testing.T) {
	g := buildTestGameRNG(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Honeypot"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	}, rollAlwaysHits())
	g.SetPhase(PhaseNight)

	runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p2"},
	})
	if g.players["p2"].IsAlive {
		t.Fatal("honeypot should be dead")
	}
	if g.players["p1"].IsAlive {
		t.Error("a wolf should die answering the honeypot's death")
	}
}

func TestWildChildTurnsWhenModelFalls(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Wild Child"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	})
	g.SetPhase(PhaseNight)

	// Night 1: the Wild Child picks Cleo as role model.
	runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p3"},
	})
	if g.players["p2"].Role.Team() != TeamVillagers {
		t.Fatal("wild child starts as a villager")
	}

	g.SetPhase(PhaseNight)
	runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p3"},
	})
	child := g.players["p2"]
	if !child.HasEffect(EffectTransformed) {
		t.Error("wild child should transform when the model dies")
	}
	if child.Role.Team() != TeamWerewolves {
		t.Errorf("wild child team = %s, want Werewolves", child.Role.Team())
	}
}

func TestBacklashWerewolfTakesItsPreyDown(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Backlash Werewolf"}, {"Ben", "Witch"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	})
	g.SetPhase(PhaseNight)

	// Night 1: the wolf marks Cleo, but the Witch's heal blocks the kill.
	// The failsafe target sticks.
	runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p3"},
		"p2": {TargetID: "p3", Option: "heal"},
	})
	if !g.players["p3"].IsAlive {
		t.Fatal("heal should block the night-one kill")
	}

	// Night 2: the Witch poisons the wolf; the marked prey dies with it.
	g.SetPhase(PhaseNight)
	runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p1", Option: "poison"},
	})
	if g.players["p1"].IsAlive {
		t.Fatal("poisoned wolf should be dead")
	}
	if g.players["p3"].IsAlive {
		t.Error("the backlash wolf drags its prey down")
	}
}

func TestCascadeChainsThroughLovers(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Villager"}, {"Cleo", "Villager"}, {"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
	})
	// Pre-linked lovers; killing one must chain to the other exactly once.
	g.players["p2"].LinkedPartnerID = "p3"
	g.players["p3"].LinkedPartnerID = "p2"
	g.SetPhase(PhaseNight)

	g.mu.Lock()
	events := g.cascadeKills([]Kill{{PlayerID: "p2", Reason: ReasonWerewolfAttack}})
	g.mu.Unlock()

	if g.players["p2"].IsAlive || g.players["p3"].IsAlive {
		t.Error("both lovers should be dead")
	}
	deaths := 0
	for _, e := range events {
		if e.Kind == EventDeath {
			deaths++
		}
	}
	if deaths != 2 {
		t.Errorf("deaths = %d, want 2", deaths)
	}
}

func TestTransformedWildChildHuntsWithThePack(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Wild Child"}, {"Cleo", "Villager"},
		{"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"}, {"Gil", "Villager"},
	})
	g.SetPhase(PhaseNight)
	runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p3"},
	})

	// Night 2: the pack eats the role model, turning the child.
	g.SetPhase(PhaseNight)
	runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p3"},
	})
	child := g.players["p2"]
	if !child.HasEffect(EffectTransformed) {
		t.Fatal("wild child should transform when the model dies")
	}
	if !child.Role.NightActive(g, child) {
		t.Fatal("transformed wild child must take part in the night vote")
	}
	schema := g.GetNightUISchema("p2")
	if !strings.Contains(schema.Prompt, "pack") {
		t.Errorf("convert should see the pack prompt, got %q", schema.Prompt)
	}
	for _, target := range schema.Targets {
		if target.ID == "p1" {
			t.Error("pack mates must not appear among the convert's targets")
		}
	}

	// Night 3: wolf and convert agree on Dov.
	g.SetPhase(PhaseNight)
	events := runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p4"},
		"p2": {TargetID: "p4"},
	})
	if g.players["p4"].IsAlive {
		t.Errorf("unanimous pack vote should kill Dov; events: %v", events)
	}

	// Night 4: a split between wolf and convert spares everyone.
	g.SetPhase(PhaseNight)
	events = runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p5"},
		"p2": {TargetID: "p6"},
	})
	if !g.players["p5"].IsAlive || !g.players["p6"].IsAlive {
		t.Error("a split pack vote must not kill")
	}
	if !hasEventText(events, "could not agree") {
		t.Errorf("expected a disagreement announcement, got %v", events)
	}
}

func TestConversionMidNightDoesNotVetoThePack(t *testing.T) {
	g := buildTestGame(t, []seat{
		{"Ada", "Werewolf"}, {"Ben", "Wild Child"}, {"Cleo", "Witch"},
		{"Dov", "Villager"}, {"Eli", "Villager"}, {"Fia", "Villager"},
		{"Gil", "Villager"}, {"Hana", "Villager"},
	})
	g.SetPhase(PhaseNight)
	runNight(t, g, map[string]NightChoice{
		"p2": {TargetID: "p4"},
		"p3": {Option: "pass"},
	})

	// Night 2: the Witch poisons the role model before the pack vote lands,
	// so the child converts after the ballots are already in.
	g.SetPhase(PhaseNight)
	events := runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p6"},
		"p3": {TargetID: "p4", Option: "poison"},
	})
	child := g.players["p2"]
	if !child.HasEffect(EffectTransformed) {
		t.Fatal("wild child should transform when the model is poisoned")
	}
	if g.players["p6"].IsAlive {
		t.Errorf("a convert with no ballot must not veto the kill; events: %v", events)
	}

	// Night 3: from now on the convert votes like any wolf.
	g.SetPhase(PhaseNight)
	runNight(t, g, map[string]NightChoice{
		"p1": {TargetID: "p5"},
		"p2": {TargetID: "p5"},
	})
	if g.players["p5"].IsAlive {
		t.Error("post-conversion unanimous vote should kill")
	}
}
