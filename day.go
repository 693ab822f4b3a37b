package main

import (
	"encoding/json"
	"log"
)

// StatusGhostFail is returned when a dead player's ghost-mode roll misses.
// The attempt is consumed for the phase either way.
const StatusGhostFail = "GHOST_FAIL"

// TallyOutcome is the result of closing an accusation round.
type TallyOutcome struct {
	Result     string `json:"result"` // "trial", "restart" or "night"
	TargetID   string `json:"target_id,omitempty"`
	TargetName string `json:"target_name,omitempty"`
	Events     []Event
}

// LynchOutcome is the result of a lynch vote.
type LynchOutcome struct {
	Result     string `json:"result"` // "lynched", "spared" or "cancelled"
	TargetID   string `json:"target_id,omitempty"`
	TargetName string `json:"target_name,omitempty"`
	Yes        int    `json:"yes"`
	No         int    `json:"no"`
	Events     []Event
}

// ProcessAccusation records one accusation. An empty target id is an explicit
// abstention. When the last living player has spoken, the tally runs and its
// outcome is returned alongside RESOLVED.
func (g *Game) ProcessAccusation(accuserID, targetID string) (string, *TallyOutcome) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Phase != PhaseAccusation {
		return StatusIgnored, nil
	}
	accuser := g.players[accuserID]
	if accuser == nil {
		return StatusIgnored, nil
	}
	if targetID != "" {
		target := g.players[targetID]
		if target == nil || !target.IsAlive {
			return StatusIgnored, nil
		}
	}

	if !accuser.IsAlive {
		status := g.ghostAttempt(accuserID, ghostAccuseChance)
		if status != "" {
			return status, nil
		}
		g.accusations[accuserID] = targetID
		DebugLog("Game.ProcessAccusation", "Ghost '%s' accusation slipped through", accuser.Name)
		return StatusWaiting, nil
	}

	if _, ok := g.accusations[accuserID]; ok {
		return StatusAlreadyActed, nil
	}
	g.accusations[accuserID] = targetID
	DebugLog("Game.ProcessAccusation", "Player '%s' accused %s", accuser.Name, targetID)

	if g.allAccusersActed() {
		outcome := g.tallyAccusations()
		return StatusResolved, &outcome
	}
	return StatusWaiting, nil
}

// VoteToSleep registers the wish to end the day without accusing anyone.
func (g *Game) VoteToSleep(playerID string) (string, *TallyOutcome) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Phase != PhaseAccusation {
		return StatusIgnored, nil
	}
	p := g.players[playerID]
	if p == nil || !p.IsAlive {
		return StatusIgnored, nil
	}
	if g.sleepVotes[playerID] {
		return StatusAlreadyActed, nil
	}
	if _, accused := g.accusations[playerID]; accused {
		return StatusAlreadyActed, nil
	}
	g.sleepVotes[playerID] = true
	DebugLog("Game.VoteToSleep", "Player '%s' wants to sleep", p.Name)

	if g.allAccusersActed() {
		outcome := g.tallyAccusations()
		return StatusResolved, &outcome
	}
	return StatusWaiting, nil
}

// ghostAttempt rolls a dead player's ghost-mode chance. Returns "" when the
// action should proceed, or the status to hand back otherwise.
func (g *Game) ghostAttempt(playerID string, chance float64) string {
	if !g.Settings.GhostMode || g.deadCount() < ghostMinDead {
		return StatusIgnored
	}
	if g.ghostActed[playerID] {
		return StatusAlreadyActed
	}
	g.ghostActed[playerID] = true
	if g.rng.Float64() >= chance {
		return StatusGhostFail
	}
	return ""
}

func (g *Game) allAccusersActed() bool {
	for _, p := range g.livingPlayersLocked() {
		if _, ok := g.accusations[p.ID]; ok {
			continue
		}
		if g.sleepVotes[p.ID] {
			continue
		}
		return false
	}
	return true
}

// TallyAccusations closes the accusation round explicitly (timer or admin).
func (g *Game) TallyAccusations() TallyOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tallyAccusations()
}

// tallyAccusations turns the accusation map into a trial target, an accusation
// restart, or a return to night. Ties prefer a living Mayor's pick; failing
// that, the round restarts at most once before deadlocking back to night.
func (g *Game) tallyAccusations() TallyOutcome {
	if g.Phase != PhaseAccusation {
		return TallyOutcome{}
	}

	counts := make(map[string]int)
	for _, targetID := range g.accusations {
		if targetID != "" {
			counts[targetID]++
		}
	}

	if len(counts) == 0 {
		log.Printf("Game %s: no accusations, returning to night", g.ID)
		events := []Event{announce("No accusations were made. The village goes back to sleep.")}
		events = append(events, g.setPhase(PhaseNight)...)
		return TallyOutcome{Result: "night", Events: events}
	}

	topCount := 0
	for _, n := range counts {
		if n > topCount {
			topCount = n
		}
	}
	var leaders []string
	for id, n := range counts {
		if n == topCount {
			leaders = append(leaders, id)
		}
	}

	if len(leaders) > 1 {
		if target := g.mayorTieBreak(leaders); target != nil {
			return g.openTrial(target, "The Mayor's voice settles the tie. "+target.Name+" stands trial.")
		}
		if g.accusationRestarts == 0 {
			g.accusationRestarts++
			g.accusations = make(map[string]string)
			g.sleepVotes = make(map[string]bool)
			g.ghostActed = make(map[string]bool)
			g.armTimer(g.Settings.AccusationSeconds)
			log.Printf("Game %s: accusation tie, restarting once", g.ID)
			return TallyOutcome{Result: "restart", Events: []Event{
				announce("The accusations are split. State your cases again."),
			}}
		}
		log.Printf("Game %s: accusation deadlock, returning to night", g.ID)
		events := []Event{announce("The village cannot agree. Night falls with no trial.")}
		events = append(events, g.setPhase(PhaseNight)...)
		return TallyOutcome{Result: "night", Events: events}
	}

	target := g.player(leaders[0])
	if target == nil || !target.IsAlive {
		events := g.setPhase(PhaseNight)
		return TallyOutcome{Result: "night", Events: events}
	}
	return g.openTrial(target, target.Name+" stands accused. The village will vote.")
}

// mayorTieBreak returns the tied candidate matching the office-holder's own
// accusation, if any.
func (g *Game) mayorTieBreak(leaders []string) *Player {
	if g.mayorPowerID == "" {
		return nil
	}
	mayor := g.player(g.mayorPowerID)
	if mayor == nil || !mayor.IsAlive {
		return nil
	}
	pick := g.accusations[mayor.ID]
	for _, id := range leaders {
		if id == pick {
			return g.player(id)
		}
	}
	return nil
}

func (g *Game) openTrial(target *Player, text string) TallyOutcome {
	g.lynchTargetID = target.ID
	events := []Event{announce(text)}
	events = append(events, g.setPhase(PhaseLynchVote)...)
	g.appendHistory(target.Name + " was put on trial.")
	return TallyOutcome{Result: "trial", TargetID: target.ID, TargetName: target.Name, Events: events}
}

// CastLynchVote records a yes/no vote on the trial target. Living voters get
// one idempotent vote; ghosts roll their reduced chance.
func (g *Game) CastLynchVote(voterID string, yes bool) (string, *LynchOutcome) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Phase != PhaseLynchVote {
		return StatusIgnored, nil
	}
	voter := g.players[voterID]
	if voter == nil {
		return StatusIgnored, nil
	}

	if !voter.IsAlive {
		status := g.ghostAttempt(voterID, ghostLynchChance)
		if status != "" {
			return status, nil
		}
		g.lynchVotes[voterID] = yes
		return StatusWaiting, nil
	}

	if _, ok := g.lynchVotes[voterID]; ok {
		return StatusAlreadyActed, nil
	}
	g.lynchVotes[voterID] = yes
	DebugLog("Game.CastLynchVote", "Player '%s' voted %v", voter.Name, yes)

	if g.allLynchVotersActed() {
		outcome := g.resolveLynchVote()
		return StatusResolved, &outcome
	}
	return StatusWaiting, nil
}

func (g *Game) allLynchVotersActed() bool {
	for _, p := range g.livingPlayersLocked() {
		if _, ok := g.lynchVotes[p.ID]; !ok {
			return false
		}
	}
	return true
}

// ResolveLynchVote closes the trial explicitly (timer or admin).
func (g *Game) ResolveLynchVote() LynchOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolveLynchVote()
}

// resolveLynchVote needs strictly more than half of the cast votes to be yes.
// A Lawyer's no_lynch tag cancels a successful lynch outright; a lynched Fool
// wins on the spot.
func (g *Game) resolveLynchVote() LynchOutcome {
	if g.Phase != PhaseLynchVote {
		return LynchOutcome{}
	}
	target := g.player(g.lynchTargetID)
	if target == nil || !target.IsAlive {
		events := g.setPhase(PhaseNight)
		return LynchOutcome{Result: "spared", Events: events}
	}

	yes, no := 0, 0
	for _, v := range g.lynchVotes {
		if v {
			yes++
		} else {
			no++
		}
	}
	outcome := LynchOutcome{TargetID: target.ID, TargetName: target.Name, Yes: yes, No: no}
	log.Printf("Game %s: lynch vote on %s: %d yes / %d no", g.ID, target.Name, yes, no)

	if yes*2 <= yes+no {
		outcome.Result = "spared"
		outcome.Events = []Event{announce("The village spares " + target.Name + ".")}
		g.appendHistory(target.Name + " was spared by the village.")
		outcome.Events = append(outcome.Events, g.setPhase(PhaseNight)...)
		return outcome
	}

	if target.HasEffect(EffectNoLynch) {
		outcome.Result = "cancelled"
		outcome.Events = []Event{announce("The lynching of " + target.Name + " is called off on a legal technicality.")}
		g.appendHistory(target.Name + "'s lynching was cancelled.")
		outcome.Events = append(outcome.Events, g.setPhase(PhaseNight)...)
		return outcome
	}

	outcome.Result = "lynched"
	outcome.Events = g.cascadeKills([]Kill{{PlayerID: target.ID, Reason: ReasonLynching}})

	if target.Role.Name() == "Fool" && !target.IsAlive {
		if g.Settings.SoloWinContinues {
			target.AddEffect(EffectSoloWin)
			g.appendHistory(target.Name + " the Fool got exactly what they wanted.")
			outcome.Events = append(outcome.Events, announce(target.Name+" dies laughing. The Fool has won, but the game goes on."))
		} else {
			g.finishGame("Fool", "The Fool tricked the village into lynching them")
			return LynchOutcome{Result: outcome.Result, TargetID: outcome.TargetID,
				TargetName: outcome.TargetName, Yes: yes, No: no,
				Events: append(outcome.Events, g.gameOverEvents()...)}
		}
	}

	if g.checkGameOverLocked() {
		outcome.Events = append(outcome.Events, g.gameOverEvents()...)
		return outcome
	}
	outcome.Events = append(outcome.Events, g.setPhase(PhaseNight)...)
	return outcome
}

// ---------------------------------------------------------------------------
// WebSocket handlers

// broadcastNamed pushes a named envelope to everyone.
func broadcastNamed(event string, payload interface{}) {
	msg, err := json.Marshal(ServerMessage{Event: event, Payload: payload})
	if err != nil {
		logError("broadcastNamed: marshal "+event, err)
		return
	}
	hub.broadcastMessage(msg)
}

func handleWSAccuse(client *Client, msg WSMessage) {
	game := getOrCreateCurrentGame()
	status, outcome := game.ProcessAccusation(client.playerID, msg.TargetID)
	DebugLog("handleWSAccuse", "Player %s accusation: %s", client.playerID, status)

	switch status {
	case StatusIgnored:
		sendErrorToast(client.playerID, "You cannot accuse right now")
	case StatusAlreadyActed:
		sendErrorToast(client.playerID, "You already had your say today")
	case StatusGhostFail:
		sendToast(client.playerID, "info", "Your whisper from beyond goes unheard")
	case StatusWaiting:
		broadcastNamed("accusation_update", nil)
		broadcastGameState()
	case StatusResolved:
		announceTally(game, outcome)
	}
}

func handleWSVoteSleep(client *Client, msg WSMessage) {
	game := getOrCreateCurrentGame()
	status, outcome := game.VoteToSleep(client.playerID)
	DebugLog("handleWSVoteSleep", "Player %s sleep vote: %s", client.playerID, status)

	switch status {
	case StatusIgnored:
		sendErrorToast(client.playerID, "You cannot vote to sleep right now")
	case StatusAlreadyActed:
		sendErrorToast(client.playerID, "You already had your say today")
	case StatusWaiting:
		broadcastNamed("accusation_update", nil)
		broadcastGameState()
	case StatusResolved:
		announceTally(game, outcome)
	}
}

func announceTally(game *Game, outcome *TallyOutcome) {
	if outcome == nil {
		return
	}
	if outcome.Result == "trial" {
		broadcastNamed("trial_started", outcome)
	}
	broadcastEvents(outcome.Events)
	broadcastGameState()
}

func handleWSLynchVote(client *Client, msg WSMessage) {
	game := getOrCreateCurrentGame()
	status, outcome := game.CastLynchVote(client.playerID, msg.Vote)
	DebugLog("handleWSLynchVote", "Player %s lynch vote: %s", client.playerID, status)

	switch status {
	case StatusIgnored:
		sendErrorToast(client.playerID, "There is no vote to cast right now")
	case StatusAlreadyActed:
		sendErrorToast(client.playerID, "You already voted")
	case StatusGhostFail:
		sendToast(client.playerID, "info", "Your whisper from beyond goes unheard")
	case StatusWaiting:
		broadcastGameState()
	case StatusResolved:
		if outcome != nil {
			broadcastNamed("lynch_result", outcome)
			broadcastEvents(outcome.Events)
		}
		broadcastGameState()
		maybeGenerateStory(game)
	}
}
