package main

import (
	"fmt"
	"log"
	"sort"
)

// ReceiveNightAction records a player's night choice. The first submission
// wins; a duplicate returns ALREADY_ACTED without touching the recorded
// choice. When the last eligible actor submits, the night resolves
// immediately and the resulting events are returned with RESOLVED.
func (g *Game) ReceiveNightAction(playerID string, choice NightChoice) (string, []Event) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Phase != PhaseNight {
		return StatusIgnored, nil
	}
	p := g.players[playerID]
	if p == nil || !p.IsAlive || p.Role == nil || !p.Role.NightActive(g, p) {
		return StatusIgnored, nil
	}
	if g.turnHistory[playerID] {
		return StatusAlreadyActed, nil
	}

	g.pendingActions[playerID] = choice
	g.turnHistory[playerID] = true
	DebugLog("Game.ReceiveNightAction", "Player '%s' (%s) acted (%d/%d)",
		p.Name, p.Role.Name(), len(g.turnHistory), g.nightActorCount())

	if g.allNightActorsActed() {
		return StatusResolved, g.resolveNight()
	}
	return StatusWaiting, nil
}

func (g *Game) nightActorCount() int {
	count := 0
	for _, p := range g.livingPlayersLocked() {
		if p.Role.NightActive(g, p) {
			count++
		}
	}
	return count
}

func (g *Game) allNightActorsActed() bool {
	for _, p := range g.livingPlayersLocked() {
		if p.Role.NightActive(g, p) && !g.turnHistory[p.ID] {
			return false
		}
	}
	return true
}

// resolveNight runs the priority-ordered action pass. Immediate kills cascade
// as they happen so later-priority roles observe the victim as already dead;
// the werewolf kill vote is tallied once at the end under the unanimity rule.
func (g *Game) resolveNight() []Event {
	if g.Phase != PhaseNight {
		return nil
	}

	g.resolvingNight = true
	defer func() { g.resolvingNight = false }()

	actors := g.livingPlayersLocked()
	indexOf := make(map[string]int, len(actors))
	for i, p := range actors {
		indexOf[p.ID] = i
	}
	sort.SliceStable(actors, func(i, j int) bool {
		pi, pj := actors[i].Role.Priority(), actors[j].Role.Priority()
		if pi != pj {
			return pi < pj
		}
		return indexOf[actors[i].ID] < indexOf[actors[j].ID]
	})

	var events []Event
	killVotes := make(map[string]string) // voter id -> target id

	for _, actor := range actors {
		if !actor.IsAlive {
			continue // died to an earlier-priority immediate kill
		}
		if g.blockedTonight[actor.ID] {
			DebugLog("Game.resolveNight", "Player '%s' is blocked, skipping action", actor.Name)
			continue
		}
		choice, ok := g.pendingActions[actor.ID]
		if !ok {
			continue
		}
		result := actor.Role.NightAction(g, actor, choice)

		if result.Effect != "" {
			effectOn := result.EffectOn
			if effectOn == "" {
				effectOn = choice.TargetID
			}
			if target := g.player(effectOn); target != nil && target.IsAlive {
				target.AddEffect(result.Effect)
			}
		}
		if result.KillVote != "" {
			killVotes[actor.ID] = result.KillVote
		}
		events = append(events, result.Events...)
		if len(result.Kills) > 0 {
			events = append(events, g.cascadeKills(result.Kills)...)
		}
	}

	events = append(events, g.resolveWerewolfVotes(killVotes)...)
	events = append(events, g.villageVoteAnnouncement()...)

	if g.checkGameOverLocked() {
		return append(events, g.gameOverEvents()...)
	}
	events = append(events, g.dawnSummary()...)
	events = append(events, g.setPhase(PhaseAccusation)...)
	return events
}

// resolveWerewolfVotes applies the unanimity rule: the kill lands only when
// every active, unblocked kill-voting wolf named the same target, and the
// target is neither protected, healed nor immune.
func (g *Game) resolveWerewolfVotes(killVotes map[string]string) []Event {
	var activeWolves []*Player
	for _, p := range g.livingPlayersLocked() {
		if !isKillVoter(p.Role) || g.blockedTonight[p.ID] {
			continue
		}
		// A Wild Child converted mid-resolution never held a ballot tonight.
		if wc, ok := p.Role.(*wildChildRole); ok && wc.votelessNight == g.nightNumber {
			continue
		}
		activeWolves = append(activeWolves, p)
	}
	if len(activeWolves) == 0 {
		return nil
	}

	targets := make(map[string]int)
	votes := 0
	for _, wolf := range activeWolves {
		targetID, ok := killVotes[wolf.ID]
		if !ok {
			continue
		}
		targets[targetID]++
		votes++
	}

	log.Printf("Werewolf vote: %d/%d wolves voted, %d distinct targets",
		votes, len(activeWolves), len(targets))

	if votes != len(activeWolves) || len(targets) != 1 {
		return []Event{announce("The pack could not agree on a victim tonight.")}
	}

	var targetID string
	for id := range targets {
		targetID = id
	}
	target := g.player(targetID)
	if target == nil || !target.IsAlive {
		return nil
	}

	if target.HasEffect(EffectProtected) || target.HasEffect(EffectHealed) {
		g.appendHistory(target.Name + " was attacked but saved.")
		return []Event{{Kind: EventProtected, PlayerID: target.ID, Name: target.Name,
			Text: target.Name + " was attacked in the night, but something stood in the way."}}
	}
	if target.HasEffect(EffectWolfImmune) {
		return []Event{{Kind: EventProtected, PlayerID: target.ID, Name: target.Name,
			Text: "The pack's teeth found no purchase on " + target.Name + "."}}
	}

	return g.cascadeKills([]Kill{{PlayerID: target.ID, Reason: ReasonWerewolfAttack}})
}

// villageVoteAnnouncement turns the villagers' flavor votes into a cosmetic
// dawn line. No game effect.
func (g *Game) villageVoteAnnouncement() []Event {
	if len(g.villageVotes) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, targetID := range g.villageVotes {
		counts[targetID]++
	}
	var topID string
	var topCount int
	for id, n := range counts {
		if n > topCount || (n == topCount && id < topID) {
			topID, topCount = id, n
		}
	}
	target := g.player(topID)
	if target == nil {
		return nil
	}
	return []Event{announce(fmt.Sprintf("Rumor has it the village whispered most about %s tonight.", target.Name))}
}

func (g *Game) dawnSummary() []Event {
	var dead []string
	for _, pid := range g.order {
		p := g.players[pid]
		if !p.IsAlive && g.diedTonight[p.ID] {
			dead = append(dead, p.Name)
		}
	}
	if len(dead) == 0 {
		return []Event{announce("The village wakes. Everyone survived the night.")}
	}
	text := "The village wakes to mourn: "
	for i, name := range dead {
		if i > 0 {
			text += ", "
		}
		text += name
	}
	return []Event{announce(text + ".")}
}

// handleWSNightAction routes a night choice from the socket into the engine.
func handleWSNightAction(client *Client, msg WSMessage) {
	game := getOrCreateCurrentGame()
	choice := NightChoice{
		TargetID:       msg.TargetID,
		SecondTargetID: msg.SecondTargetID,
		Option:         msg.Option,
	}

	status, events := game.ReceiveNightAction(client.playerID, choice)
	DebugLog("handleWSNightAction", "Player %s night action: %s", client.playerID, status)

	switch status {
	case StatusIgnored:
		sendErrorToast(client.playerID, "You cannot act right now")
	case StatusAlreadyActed:
		sendErrorToast(client.playerID, "You already acted tonight")
	case StatusWaiting:
		sendToast(client.playerID, "info", "Your choice is locked in")
		broadcastGameState()
	case StatusResolved:
		broadcastNamed("night_result", nil)
		broadcastEvents(events)
		maybeGenerateStory(game)
	}
}
