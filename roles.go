package main

import "sort"

// Team affiliations used by win checks and the Seer's reading.
type Team string

const (
	TeamVillagers    Team = "Villagers"
	TeamWerewolves   Team = "Werewolves"
	TeamMonster      Team = "Monster"
	TeamSerialKiller Team = "Serial_Killer"
	TeamNeutral      Team = "Neutral"
)

// Resolution priority bands. Lower acts first in the night pass.
const (
	priBodyguard    = 0
	priCupid        = 1
	priProstitute   = 5
	priSeer         = 10
	priSorcerer     = 12
	priWitch        = 15
	priLawyer       = 16
	priMartyr       = 20
	priFailsafe     = 30
	priRevealer     = 40
	priWerewolf     = 50
	priSerialKiller = 55
	priNone         = 99
)

// NightChoice is a player's submitted night target. Option carries the
// Witch's potion selection ("heal", "poison", "pass"); SecondTargetID is
// used by Cupid's two-player link.
type NightChoice struct {
	TargetID       string `json:"target_id"`
	SecondTargetID string `json:"second_target_id,omitempty"`
	Option         string `json:"option,omitempty"`
}

// Kill is a pending (victim, reason) pair fed into the death cascade.
type Kill struct {
	PlayerID string
	Reason   string
}

// ActionResult is the effect descriptor a role returns from its night action.
// The engine interprets it; roles never kill or transition phases directly.
type ActionResult struct {
	KillVote string  // target id entering the werewolf unanimity pool
	Kills    []Kill  // immediate kills, cascaded before later-priority roles act
	Effect   string  // status tag attached to the effect target
	EffectOn string  // player id receiving Effect (defaults to the choice target)
	Events   []Event // notifications (seer results, announcements)
}

// Reaction is what a role's death hook returns: secondary kills pushed onto
// the cascade queue plus any announcements.
type Reaction struct {
	Kills  []Kill
	Events []Event
}

// Role is the behavior contract every variant implements. Variant-specific
// mutable state (potions, failsafe targets, role models) lives on the
// concrete type, owned by exactly one player.
type Role interface {
	Name() string
	Description() string
	Team() Team
	Priority() int
	NightActive(g *Game, p *Player) bool
	ValidTargets(g *Game, p *Player) []*Player
	NightAction(g *Game, actor *Player, choice NightChoice) ActionResult
	OnAssign(g *Game, p *Player)
	OnNightStart(g *Game, p *Player) []Event
	OnDeath(g *Game, p *Player, reason string) Reaction
	WinCondition(g *Game, p *Player) (string, bool)
}

// baseRole supplies metadata and no-op defaults. Concrete roles embed it and
// override only what they change.
type baseRole struct {
	name        string
	description string
	team        Team
	priority    int
	nightActive bool
}

func (b *baseRole) Name() string        { return b.name }
func (b *baseRole) Description() string { return b.description }
func (b *baseRole) Team() Team          { return b.team }
func (b *baseRole) Priority() int       { return b.priority }

func (b *baseRole) NightActive(g *Game, p *Player) bool { return b.nightActive }

// ValidTargets defaults to every living player except the actor.
func (b *baseRole) ValidTargets(g *Game, p *Player) []*Player {
	var targets []*Player
	for _, other := range g.livingPlayers() {
		if other.ID != p.ID {
			targets = append(targets, other)
		}
	}
	return targets
}

func (b *baseRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	return ActionResult{}
}

func (b *baseRole) OnAssign(g *Game, p *Player)                    {}
func (b *baseRole) OnNightStart(g *Game, p *Player) []Event        { return nil }
func (b *baseRole) OnDeath(g *Game, p *Player, r string) Reaction  { return Reaction{} }
func (b *baseRole) WinCondition(g *Game, p *Player) (string, bool) { return "", false }

// failsafe is the shared posthumous-shot helper composed into the Hunter and
// the Backlash Werewolf. The target is overwritable until the owner dies.
type failsafe struct {
	targetID string
}

func (f *failsafe) set(id string) { f.targetID = id }

func (f *failsafe) fire(g *Game, owner *Player) Reaction {
	if f.targetID == "" {
		return Reaction{}
	}
	target := g.player(f.targetID)
	if target == nil || !target.IsAlive {
		return Reaction{}
	}
	return Reaction{
		Kills:  []Kill{{PlayerID: target.ID, Reason: ReasonRetaliation}},
		Events: []Event{announce(owner.Name + " drags " + target.Name + " down with them.")},
	}
}

// magicUserRoles is the family the Sorcerer detects.
var magicUserRoles = map[string]bool{
	"Seer":     true,
	"Witch":    true,
	"Revealer": true,
	"Sorcerer": true,
}

// roleCatalog maps canonical role names to constructors. Each call returns a
// fresh instance so per-game mutable state is never shared.
var roleCatalog = map[string]func() Role{}

func registerRole(name string, ctor func() Role) {
	roleCatalog[name] = ctor
}

// newRole returns a fresh instance of the named role, or nil if unknown.
func newRole(name string) Role {
	ctor, ok := roleCatalog[name]
	if !ok {
		return nil
	}
	return ctor()
}

// allRoleNames returns the catalog's role names in stable order.
func allRoleNames() []string {
	names := make([]string, 0, len(roleCatalog))
	for name := range roleCatalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// isWolfTeam reports whether the role counts toward the werewolf faction.
func isWolfTeam(r Role) bool {
	return r.Team() == TeamWerewolves
}

// isKillVoter reports whether the role participates in the nightly werewolf
// kill vote. The Sorcerer is wolf-aligned but detects instead of killing.
func isKillVoter(r Role) bool {
	return isWolfTeam(r) && r.Name() != "Sorcerer"
}
