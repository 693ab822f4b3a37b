package main

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Phase is the game's state-machine position.
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseNight      Phase = "night"
	PhaseAccusation Phase = "accusation"
	PhaseLynchVote  Phase = "lynch_vote"
	PhaseGameOver   Phase = "game_over"
)

// ActionStatus is returned by ReceiveNightAction.
const (
	StatusIgnored      = "IGNORED"
	StatusAlreadyActed = "ALREADY_ACTED"
	StatusWaiting      = "WAITING"
	StatusResolved     = "RESOLVED"
)

const minPlayers = 4

// Ghost mode success chances. Dead players may act once ghost mode is on and
// at least two players are dead.
const (
	ghostAccuseChance = 0.25
	ghostLynchChance  = 0.10
	ghostMinDead      = 2
)

// GameSettings are per-match knobs. Zero timer values fall back to defaults;
// TimersDisabled leaves advancement to all-acted resolution or the admin.
type GameSettings struct {
	NightSeconds      int  `json:"night_seconds"`
	AccusationSeconds int  `json:"accusation_seconds"`
	LynchSeconds      int  `json:"lynch_seconds"`
	TimersDisabled    bool `json:"timers_disabled"`
	GhostMode         bool `json:"ghost_mode"`
	SoloWinContinues  bool `json:"solo_win_continues"`
}

func defaultSettings() GameSettings {
	return GameSettings{
		NightSeconds:      90,
		AccusationSeconds: 90,
		LynchSeconds:      60,
	}
}

// GameOverData is the terminal payload, built once and never overwritten.
type GameOverData struct {
	WinningTeam  string        `json:"winning_team"`
	Reason       string        `json:"reason"`
	FinalPlayers []PlayerState `json:"final_players"`
}

// Game is the aggregate root. All mutation runs under mu; the transport layer
// calls one boundary method per client message and the heartbeat calls Tick.
type Game struct {
	mu sync.Mutex

	ID       string
	Phase    Phase
	Settings GameSettings

	players map[string]*Player
	order   []string // join order, stable iteration

	rng *rand.Rand

	nightNumber    int
	resolvingNight bool
	pendingActions map[string]NightChoice
	turnHistory    map[string]bool
	blockedTonight map[string]bool
	villageVotes   map[string]string
	diedTonight    map[string]bool

	accusations        map[string]string // accuser id -> accused id, "" = abstain
	sleepVotes         map[string]bool
	accusationRestarts int
	ghostActed         map[string]bool

	lynchTargetID string
	lynchVotes    map[string]bool // voter id -> yes

	mayorPowerID string

	timerGen      int
	phaseDeadline time.Time

	gameOver     *GameOverData
	rematchVotes map[string]bool

	// history is the public narrative feed consumed by the storyteller.
	history []string
}

func newGame(id string, settings GameSettings, rng *rand.Rand) *Game {
	g := &Game{
		ID:       id,
		Phase:    PhaseLobby,
		Settings: settings,
		players:  make(map[string]*Player),
		rng:      rng,
	}
	g.resetTransient()
	return g
}

func (g *Game) resetTransient() {
	g.pendingActions = make(map[string]NightChoice)
	g.turnHistory = make(map[string]bool)
	g.blockedTonight = make(map[string]bool)
	g.villageVotes = make(map[string]string)
	g.diedTonight = make(map[string]bool)
	g.accusations = make(map[string]string)
	g.sleepVotes = make(map[string]bool)
	g.ghostActed = make(map[string]bool)
	g.lynchVotes = make(map[string]bool)
	g.rematchVotes = make(map[string]bool)
}

// Reset builds a fresh match preserving only player identities and names.
func (g *Game) Reset(id string) *Game {
	g.mu.Lock()
	defer g.mu.Unlock()

	fresh := newGame(id, g.Settings, g.rng)
	for _, pid := range g.order {
		old := g.players[pid]
		fresh.players[pid] = newPlayer(old.ID, old.Name)
		fresh.order = append(fresh.order, pid)
	}
	log.Printf("Game %s reset into %s with %d players", g.ID, id, len(fresh.players))
	return fresh
}

// ---------------------------------------------------------------------------
// Roster

func (g *Game) AddPlayer(id, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Phase != PhaseLobby {
		return fmt.Errorf("game already started")
	}
	if _, ok := g.players[id]; ok {
		return nil
	}
	g.players[id] = newPlayer(id, name)
	g.order = append(g.order, id)
	DebugLog("Game.AddPlayer", "Player '%s' (%s) joined game %s", name, id, g.ID)
	return nil
}

// RemovePlayer drops a player from the roster. Pre-assignment this is a plain
// leave; mid-game it is an admin-forced removal and the seat dies in place.
func (g *Game) RemovePlayer(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[id]
	if !ok {
		return
	}
	if g.Phase == PhaseLobby {
		delete(g.players, id)
		for i, pid := range g.order {
			if pid == id {
				g.order = append(g.order[:i], g.order[i+1:]...)
				break
			}
		}
		DebugLog("Game.RemovePlayer", "Player '%s' left the lobby", p.Name)
		return
	}
	if p.IsAlive {
		p.IsAlive = false
		g.appendHistory(p.Name + " was removed from the game.")
		log.Printf("Player %s (%s) force-removed mid-game", p.Name, id)
	}
}

// werewolfCountFor scales the pack to the table size.
func werewolfCountFor(playerCount int) int {
	switch {
	case playerCount <= 6:
		return 1
	case playerCount <= 8:
		return 2
	case playerCount <= 11:
		return 3
	case playerCount <= 16:
		return 4
	default:
		return playerCount / 4
	}
}

// AssignRoles deals the selected special roles, scales the werewolf count to
// the table, pads with Villagers, shuffles and assigns. Werewolf entries in
// the selection are ignored; the scaling rule owns the pack size.
func (g *Game) AssignRoles(selected []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Phase != PhaseLobby {
		return fmt.Errorf("game already started")
	}
	if len(g.players) < minPlayers {
		return fmt.Errorf("need at least %d players to start", minPlayers)
	}

	pool := make([]string, 0, len(g.players))
	for i := 0; i < werewolfCountFor(len(g.players)); i++ {
		pool = append(pool, "Werewolf")
	}
	for _, name := range selected {
		if name == "Werewolf" {
			continue
		}
		if _, ok := roleCatalog[name]; !ok {
			return fmt.Errorf("unknown role %q", name)
		}
		if len(pool) < len(g.players) {
			pool = append(pool, name)
		}
	}
	for len(pool) < len(g.players) {
		pool = append(pool, "Villager")
	}

	g.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	for i, pid := range g.order {
		p := g.players[pid]
		p.Role = newRole(pool[i])
		p.Role.OnAssign(g, p)
		DebugLog("Game.AssignRoles", "Player '%s' is the %s", p.Name, pool[i])
	}

	log.Printf("Game %s: roles assigned to %d players (%d werewolves)",
		g.ID, len(g.players), werewolfCountFor(len(g.players)))

	g.setPhase(PhaseNight)
	return nil
}

// ---------------------------------------------------------------------------
// Phase machine

// SetPhase forces a transition, running the entry hooks for the new phase.
func (g *Game) SetPhase(p Phase) []Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setPhase(p)
}

func (g *Game) setPhase(p Phase) []Event {
	if g.Phase == PhaseGameOver && p != PhaseLobby {
		return nil
	}
	g.Phase = p
	g.timerGen++
	g.phaseDeadline = time.Time{}

	var events []Event
	switch p {
	case PhaseNight:
		g.nightNumber++
		g.pendingActions = make(map[string]NightChoice)
		g.turnHistory = make(map[string]bool)
		g.blockedTonight = make(map[string]bool)
		g.villageVotes = make(map[string]string)
		g.diedTonight = make(map[string]bool)
		g.accusationRestarts = 0
		for _, lp := range g.livingPlayersLocked() {
			lp.resetNightStatus()
		}
		for _, lp := range g.livingPlayersLocked() {
			events = append(events, lp.Role.OnNightStart(g, lp)...)
		}
		g.armTimer(g.Settings.NightSeconds)
		g.appendHistory(fmt.Sprintf("Night %d falls over the village.", g.nightNumber))
	case PhaseAccusation:
		for _, p := range g.players {
			p.VisitingID = ""
		}
		g.pendingActions = make(map[string]NightChoice)
		g.accusations = make(map[string]string)
		g.sleepVotes = make(map[string]bool)
		g.ghostActed = make(map[string]bool)
		g.lynchTargetID = ""
		g.armTimer(g.Settings.AccusationSeconds)
	case PhaseLynchVote:
		g.lynchVotes = make(map[string]bool)
		g.ghostActed = make(map[string]bool)
		g.armTimer(g.Settings.LynchSeconds)
	case PhaseGameOver:
		// terminal; deadline stays zero
	case PhaseLobby:
	}
	log.Printf("Game %s entered phase '%s' (night %d, timer gen %d)", g.ID, p, g.nightNumber, g.timerGen)
	return events
}

func (g *Game) armTimer(seconds int) {
	if g.Settings.TimersDisabled || seconds <= 0 {
		g.phaseDeadline = time.Time{}
		return
	}
	g.phaseDeadline = time.Now().Add(time.Duration(seconds) * time.Second)
}

// AdvancePhase is the admin escape hatch: it resolves the current phase as if
// its timer had just fired.
func (g *Game) AdvancePhase() []Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolveCurrentPhase()
}

// Tick drives timer-based advancement. The caller invokes it on a fixed
// heartbeat; a stale deadline from a phase that already advanced is ignored
// via the generation counter.
func (g *Game) Tick(now time.Time) ([]Event, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phaseDeadline.IsZero() || now.Before(g.phaseDeadline) {
		return nil, false
	}
	gen := g.timerGen
	events := g.resolveCurrentPhase()
	if g.timerGen == gen {
		// resolution did not transition (nothing to do); disarm so the
		// next heartbeat does not re-fire the same deadline
		g.phaseDeadline = time.Time{}
	}
	return events, true
}

// resolveCurrentPhase finishes the running phase the same way the all-acted
// path would, defaulting non-actors to abstain.
func (g *Game) resolveCurrentPhase() []Event {
	switch g.Phase {
	case PhaseNight:
		return g.resolveNight()
	case PhaseAccusation:
		return g.tallyAccusations().Events
	case PhaseLynchVote:
		return g.resolveLynchVote().Events
	default:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Lookups

func (g *Game) player(id string) *Player {
	return g.players[id]
}

// livingPlayers returns living players in join order. Safe to call from role
// code during a resolution pass (the game lock is already held).
func (g *Game) livingPlayers() []*Player {
	return g.livingPlayersLocked()
}

func (g *Game) livingPlayersLocked() []*Player {
	var living []*Player
	for _, pid := range g.order {
		if p := g.players[pid]; p.IsAlive {
			living = append(living, p)
		}
	}
	return living
}

func (g *Game) livingByTeam(team Team) []*Player {
	var living []*Player
	for _, p := range g.livingPlayersLocked() {
		if p.Role != nil && p.Role.Team() == team {
			living = append(living, p)
		}
	}
	return living
}

func (g *Game) deadCount() int {
	dead := 0
	for _, p := range g.players {
		if !p.IsAlive {
			dead++
		}
	}
	return dead
}

// lynchYesVoters returns the ids that voted yes in the current lynch tally.
func (g *Game) lynchYesVoters() []string {
	var ids []string
	for id, yes := range g.lynchVotes {
		if yes {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// LivingPlayers is the read-only roster projection. An empty team returns
// everyone alive.
func (g *Game) LivingPlayers(team Team) []PlayerState {
	g.mu.Lock()
	defer g.mu.Unlock()

	var players []*Player
	if team == "" {
		players = g.livingPlayersLocked()
	} else {
		players = g.livingByTeam(team)
	}
	states := make([]PlayerState, 0, len(players))
	for _, p := range players {
		states = append(states, p.state(false))
	}
	return states
}

// PlayerChoice returns the player's submitted choice for the current phase,
// used by the transport layer to re-sync a reconnecting client.
func (g *Game) PlayerChoice(id string) (NightChoice, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.Phase {
	case PhaseNight:
		choice, ok := g.pendingActions[id]
		return choice, ok
	case PhaseAccusation:
		accused, ok := g.accusations[id]
		return NightChoice{TargetID: accused}, ok
	case PhaseLynchVote:
		yes, ok := g.lynchVotes[id]
		choice := NightChoice{Option: "no"}
		if yes {
			choice.Option = "yes"
		}
		return choice, ok
	default:
		return NightChoice{}, false
	}
}

// NightUISchema describes the night prompt a client should render for the
// player. Presentation only; the engine never trusts it on the way back in.
type NightUISchema struct {
	Role        string        `json:"role"`
	Prompt      string        `json:"prompt"`
	Active      bool          `json:"active"`
	Targets     []PlayerState `json:"targets,omitempty"`
	NeedsSecond bool          `json:"needs_second,omitempty"`
	Options     []string      `json:"options,omitempty"`
}

func (g *Game) GetNightUISchema(id string) NightUISchema {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := g.players[id]
	if p == nil || p.Role == nil {
		return NightUISchema{}
	}
	schema := NightUISchema{
		Role:   p.Role.Name(),
		Active: p.IsAlive && p.Role.NightActive(g, p),
	}
	if !schema.Active {
		schema.Prompt = "The night passes you by. Wait for dawn."
		return schema
	}
	for _, t := range p.Role.ValidTargets(g, p) {
		schema.Targets = append(schema.Targets, t.state(false))
	}
	switch p.Role.Name() {
	case "Werewolf", "Alpha Werewolf", "Tough Werewolf", "Backlash Werewolf":
		schema.Prompt = "Choose tonight's prey. The whole pack must agree."
	case "Seer":
		schema.Prompt = "Whose soul will you read tonight?"
	case "Bodyguard":
		schema.Prompt = "Choose someone to guard until dawn."
	case "Witch":
		schema.Prompt = "Spend a potion, or hold them for another night."
		schema.Options = []string{"heal", "poison", "pass"}
	case "Cupid":
		schema.Prompt = "Choose two hearts to bind together."
		schema.NeedsSecond = true
	case "Hunter":
		schema.Prompt = "Pick who your dying shot will find."
	case "Prostitute":
		schema.Prompt = "Choose whose night you will occupy."
	case "Wild Child":
		if p.HasEffect(EffectTransformed) {
			schema.Prompt = "Choose tonight's prey. The whole pack must agree."
		} else {
			schema.Prompt = "Choose your role model."
		}
	case "Mayor":
		schema.Prompt = "Name your successor."
	case "Lawyer":
		schema.Prompt = "Choose tomorrow's client."
	case "Serial Killer":
		schema.Prompt = "Choose tonight's victim."
	case "Sorcerer":
		schema.Prompt = "Sniff out a magic user."
	case "Revealer":
		schema.Prompt = "Unmask a werewolf. Choose wrongly and you die instead."
	case "Martyr":
		schema.Prompt = "Choose who your death would shield."
	default:
		schema.Prompt = "Cast the village's idle suspicion on someone."
	}
	return schema
}

// GameSnapshot is the personalized view pushed to one client. Roles are
// hidden except for the viewer's own seat, dead seats once the game is over,
// and pack mates when the viewer runs with the wolves.
type GameSnapshot struct {
	ID               string        `json:"id"`
	Phase            Phase         `json:"phase"`
	NightNumber      int           `json:"night_number"`
	Settings         GameSettings  `json:"settings"`
	Players          []PlayerState `json:"players"`
	You              PlayerState   `json:"you"`
	RoleDescription  string        `json:"role_description,omitempty"`
	PartnerID        string        `json:"partner_id,omitempty"`
	LynchTargetID    string        `json:"lynch_target_id,omitempty"`
	SecondsRemaining int           `json:"seconds_remaining,omitempty"`
	GameOver         *GameOverData `json:"game_over,omitempty"`
	History          []string      `json:"history,omitempty"`
}

// Snapshot builds the view of the game for one player.
func (g *Game) Snapshot(viewerID string) GameSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := GameSnapshot{
		ID:            g.ID,
		Phase:         g.Phase,
		NightNumber:   g.nightNumber,
		Settings:      g.Settings,
		LynchTargetID: g.lynchTargetID,
		GameOver:      g.gameOver,
	}
	snap.History = append(snap.History, g.history...)

	viewer := g.players[viewerID]
	viewerIsWolf := viewer != nil && viewer.Role != nil && isWolfTeam(viewer.Role)

	for _, pid := range g.order {
		p := g.players[pid]
		reveal := g.gameOver != nil ||
			pid == viewerID ||
			(viewerIsWolf && p.Role != nil && isWolfTeam(p.Role))
		snap.Players = append(snap.Players, p.state(reveal))
	}

	if viewer != nil {
		snap.You = viewer.state(true)
		if viewer.Role != nil {
			snap.RoleDescription = viewer.Role.Description()
		}
		snap.PartnerID = viewer.LinkedPartnerID
	}

	if !g.phaseDeadline.IsZero() && !g.Settings.TimersDisabled {
		if remaining := time.Until(g.phaseDeadline); remaining > 0 {
			snap.SecondsRemaining = int(remaining.Seconds())
		}
	}
	return snap
}

// CurrentPhase returns the phase under the lock.
func (g *Game) CurrentPhase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Phase
}

// UpdateSettings replaces the table rules. Only allowed before the start.
func (g *Game) UpdateSettings(s GameSettings) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Phase != PhaseLobby {
		return fmt.Errorf("game already started")
	}
	g.Settings = s
	return nil
}

// NightCount returns how many nights have started.
func (g *Game) NightCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nightNumber
}

// ---------------------------------------------------------------------------
// Misc

func (g *Game) appendHistory(line string) {
	g.history = append(g.history, line)
}

// AppendStory adds a finished storyteller passage to the narrative feed.
func (g *Game) AppendStory(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendHistory(text)
}

// History returns a copy of the public narrative feed.
func (g *Game) History() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.history))
	copy(out, g.history)
	return out
}

// VoteRematch registers a rematch vote during game over. Returns true once a
// strict majority of seats wants another round.
func (g *Game) VoteRematch(playerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Phase != PhaseGameOver {
		return false
	}
	if _, ok := g.players[playerID]; !ok {
		return false
	}
	g.rematchVotes[playerID] = true
	return len(g.rematchVotes)*2 > len(g.players)
}
