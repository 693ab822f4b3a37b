package main

import "fmt"

func init() {
	registerRole("Villager", func() Role {
		return &villagerRole{baseRole{
			name:        "Villager",
			description: "No special powers, relies on deduction and discussion.",
			team:        TeamVillagers,
			priority:    priNone,
			nightActive: true,
		}}
	})
	registerRole("Werewolf", func() Role {
		return &werewolfRole{baseRole: baseRole{
			name:        "Werewolf",
			description: "Votes with the pack each night; a kill lands only when every wolf agrees.",
			team:        TeamWerewolves,
			priority:    priWerewolf,
			nightActive: true,
		}}
	})
	registerRole("Seer", func() Role {
		return &seerRole{baseRole{
			name:        "Seer",
			description: "Investigates one player per night to learn their apparent team.",
			team:        TeamVillagers,
			priority:    priSeer,
			nightActive: true,
		}}
	})
	registerRole("Bodyguard", func() Role {
		return &bodyguardRole{baseRole: baseRole{
			name:        "Bodyguard",
			description: "Protects one player per night, never the same player twice in a row.",
			team:        TeamVillagers,
			priority:    priBodyguard,
			nightActive: true,
		}}
	})
	registerRole("Witch", func() Role {
		return &witchRole{baseRole: baseRole{
			name:        "Witch",
			description: "Holds one heal potion and one poison potion, each usable once per game.",
			team:        TeamVillagers,
			priority:    priWitch,
			nightActive: true,
		}}
	})
	registerRole("Cupid", func() Role {
		return &cupidRole{baseRole: baseRole{
			name:        "Cupid",
			description: "On the first night, links two players as lovers who die together.",
			team:        TeamVillagers,
			priority:    priCupid,
			nightActive: true,
		}}
	})
	registerRole("Monster", func() Role {
		return &monsterRole{baseRole{
			name:        "Monster",
			description: "Immune to werewolf attacks; wins alone once the wolves are nearly gone.",
			team:        TeamMonster,
			priority:    priNone,
			nightActive: false,
		}}
	})
	registerRole("Alpha Werewolf", func() Role {
		return &alphaWerewolfRole{werewolfRole{baseRole: baseRole{
			name:        "Alpha Werewolf",
			description: "Leads the pack; wins alone as the last wolf standing over a thinned village.",
			team:        TeamWerewolves,
			priority:    priWerewolf,
			nightActive: true,
		}}}
	})
	registerRole("Hunter", func() Role {
		return &hunterRole{baseRole: baseRole{
			name:        "Hunter",
			description: "Picks a failsafe target each night; on death, takes that target along.",
			team:        TeamVillagers,
			priority:    priFailsafe,
			nightActive: true,
		}}
	})
	registerRole("Backlash Werewolf", func() Role {
		return &backlashWerewolfRole{baseRole: baseRole{
			name:        "Backlash Werewolf",
			description: "A wolf whose chosen victim dies with it if the wolf is killed.",
			team:        TeamWerewolves,
			priority:    priWerewolf,
			nightActive: true,
		}}
	})
	registerRole("Revealer", func() Role {
		return &revealerRole{baseRole{
			name:        "Revealer",
			description: "Unmasks a player at night: a werewolf dies on the spot, anyone else costs the Revealer their life.",
			team:        TeamVillagers,
			priority:    priRevealer,
			nightActive: true,
		}}
	})
	registerRole("Honeypot", func() Role {
		return &honeypotRole{baseRole{
			name:        "Honeypot",
			description: "Harmless in life; in death, drags down a random member of whoever killed them.",
			team:        TeamVillagers,
			priority:    priNone,
			nightActive: false,
		}}
	})
	registerRole("Prostitute", func() Role {
		return &prostituteRole{
			baseRole: baseRole{
				name:        "Prostitute",
				description: "Visits a player each night, suppressing their action; the pair share each other's fate until dawn.",
				team:        TeamNeutral,
				priority:    priProstitute,
				nightActive: true,
			},
			visited: make(map[string]bool),
		}
	})
	registerRole("Wild Child", func() Role {
		return &wildChildRole{baseRole: baseRole{
			name:        "Wild Child",
			description: "Picks a role model on the first night; if the role model dies, joins the wolves.",
			team:        TeamVillagers,
			priority:    priCupid,
			nightActive: true,
		}}
	})
	registerRole("Mayor", func() Role {
		return &mayorRole{baseRole: baseRole{
			name:        "Mayor",
			description: "Breaks accusation ties; nominates a successor to inherit the office on death.",
			team:        TeamVillagers,
			priority:    priNone,
			nightActive: true,
		}}
	})
	registerRole("Lawyer", func() Role {
		return &lawyerRole{baseRole{
			name:        "Lawyer",
			description: "Defends one player each night, cancelling any lynch against them the next day.",
			team:        TeamVillagers,
			priority:    priLawyer,
			nightActive: true,
		}}
	})
	registerRole("Serial Killer", func() Role {
		return &serialKillerRole{baseRole{
			name:        "Serial Killer",
			description: "Kills one player each night, slipping past any bodyguard; wins utterly alone.",
			team:        TeamSerialKiller,
			priority:    priSerialKiller,
			nightActive: true,
		}}
	})
	registerRole("Sorcerer", func() Role {
		return &sorcererRole{baseRole{
			name:        "Sorcerer",
			description: "Serves the wolves by sniffing out magic users instead of killing.",
			team:        TeamWerewolves,
			priority:    priSorcerer,
			nightActive: true,
		}}
	})
	registerRole("Fool", func() Role {
		return &foolRole{baseRole{
			name:        "Fool",
			description: "Wins only by getting themselves lynched.",
			team:        TeamNeutral,
			priority:    priNone,
			nightActive: false,
		}}
	})
	registerRole("Demented Villager", func() Role {
		return &dementedVillagerRole{baseRole{
			name:        "Demented Villager",
			description: "An ordinary villager who secretly wants to be the only one left.",
			team:        TeamVillagers,
			priority:    priNone,
			nightActive: true,
		}}
	})
	registerRole("Tough Villager", func() Role {
		return &toughVillagerRole{baseRole{
			name:        "Tough Villager",
			description: "A villager with a second life, consumed by the first lethal blow.",
			team:        TeamVillagers,
			priority:    priNone,
			nightActive: true,
		}}
	})
	registerRole("Tough Werewolf", func() Role {
		return &toughWerewolfRole{werewolfRole{baseRole: baseRole{
			name:        "Tough Werewolf",
			description: "A wolf with a second life, consumed by the first lethal blow.",
			team:        TeamWerewolves,
			priority:    priWerewolf,
			nightActive: true,
		}}}
	})
	registerRole("Martyr", func() Role {
		return &martyrRole{baseRole: baseRole{
			name:        "Martyr",
			description: "Chooses a ward each night; on death, gifts them a second life.",
			team:        TeamVillagers,
			priority:    priMartyr,
			nightActive: true,
		}}
	})
}

// ---------------------------------------------------------------------------
// Villager

type villagerRole struct {
	baseRole
}

// The village vote is pure flavor: tallied for a cosmetic dawn announcement.
func (r *villagerRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	if target := g.player(choice.TargetID); target != nil && target.IsAlive {
		g.villageVotes[actor.ID] = target.ID
	}
	return ActionResult{}
}

// ---------------------------------------------------------------------------
// Werewolf

type werewolfRole struct {
	baseRole
}

func (r *werewolfRole) ValidTargets(g *Game, p *Player) []*Player {
	var targets []*Player
	for _, other := range g.livingPlayers() {
		if other.ID != p.ID && !isWolfTeam(other.Role) {
			targets = append(targets, other)
		}
	}
	return targets
}

func (r *werewolfRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	if target == nil || !target.IsAlive {
		return ActionResult{}
	}
	return ActionResult{KillVote: target.ID}
}

// ---------------------------------------------------------------------------
// Seer

type seerRole struct {
	baseRole
}

func (r *seerRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	if target == nil || !target.IsAlive {
		return ActionResult{}
	}
	// The Monster reads as a werewolf.
	verdict := "not a Werewolf"
	if isWolfTeam(target.Role) || target.Role.Team() == TeamMonster {
		verdict = "a Werewolf"
	}
	return ActionResult{Events: []Event{
		privateEvent(actor.ID, EventReveal, fmt.Sprintf("%s is %s.", target.Name, verdict)),
	}}
}

// ---------------------------------------------------------------------------
// Bodyguard

type bodyguardRole struct {
	baseRole
	lastProtectedID string
}

func (r *bodyguardRole) ValidTargets(g *Game, p *Player) []*Player {
	var targets []*Player
	for _, other := range g.livingPlayers() {
		if other.ID == r.lastProtectedID {
			continue
		}
		targets = append(targets, other)
	}
	return targets
}

func (r *bodyguardRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	if target == nil || !target.IsAlive || target.ID == r.lastProtectedID {
		return ActionResult{}
	}
	r.lastProtectedID = target.ID
	return ActionResult{Effect: EffectProtected, EffectOn: target.ID}
}

// ---------------------------------------------------------------------------
// Witch

type witchRole struct {
	baseRole
	healUsed   bool
	poisonUsed bool
}

func (r *witchRole) NightActive(g *Game, p *Player) bool {
	return !r.healUsed || !r.poisonUsed
}

func (r *witchRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	switch choice.Option {
	case "heal":
		if r.healUsed || target == nil || !target.IsAlive {
			return ActionResult{}
		}
		r.healUsed = true
		return ActionResult{Effect: EffectHealed, EffectOn: target.ID}
	case "poison":
		if r.poisonUsed || target == nil || !target.IsAlive {
			return ActionResult{}
		}
		r.poisonUsed = true
		return ActionResult{Kills: []Kill{{PlayerID: target.ID, Reason: ReasonPoison}}}
	default:
		return ActionResult{}
	}
}

// ---------------------------------------------------------------------------
// Cupid

type cupidRole struct {
	baseRole
	linked bool
}

func (r *cupidRole) NightActive(g *Game, p *Player) bool {
	return !r.linked && g.nightNumber == 1
}

func (r *cupidRole) ValidTargets(g *Game, p *Player) []*Player {
	return g.livingPlayers()
}

func (r *cupidRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	if r.linked {
		return ActionResult{}
	}
	a := g.player(choice.TargetID)
	b := g.player(choice.SecondTargetID)
	if a == nil || b == nil || a.ID == b.ID || !a.IsAlive || !b.IsAlive {
		return ActionResult{}
	}
	r.linked = true
	a.LinkedPartnerID = b.ID
	b.LinkedPartnerID = a.ID
	return ActionResult{Events: []Event{
		privateEvent(a.ID, EventAnnounce, "You have fallen in love with "+b.Name+"."),
		privateEvent(b.ID, EventAnnounce, "You have fallen in love with "+a.Name+"."),
	}}
}

// ---------------------------------------------------------------------------
// Monster

type monsterRole struct {
	baseRole
}

func (r *monsterRole) OnAssign(g *Game, p *Player) {
	p.AddEffect(EffectWolfImmune)
}

func (r *monsterRole) WinCondition(g *Game, p *Player) (string, bool) {
	if len(g.livingByTeam(TeamWerewolves)) <= 1 {
		return "The Monster outlasted the pack", true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Alpha Werewolf

type alphaWerewolfRole struct {
	werewolfRole
}

func (r *alphaWerewolfRole) WinCondition(g *Game, p *Player) (string, bool) {
	wolves := g.livingByTeam(TeamWerewolves)
	if len(wolves) != 1 || wolves[0].ID != p.ID {
		return "", false
	}
	others := 0
	for _, lp := range g.livingPlayers() {
		if lp.ID != p.ID && lp.Role.Team() != TeamMonster {
			others++
		}
	}
	if others <= 1 {
		return "The Alpha Werewolf stands alone over the village", true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Hunter

type hunterRole struct {
	baseRole
	failsafe
}

func (r *hunterRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	if target == nil || !target.IsAlive {
		return ActionResult{}
	}
	r.set(target.ID)
	return ActionResult{}
}

func (r *hunterRole) OnDeath(g *Game, p *Player, reason string) Reaction {
	return r.fire(g, p)
}

// ---------------------------------------------------------------------------
// Backlash Werewolf

// Its kill vote doubles as its failsafe target.
type backlashWerewolfRole struct {
	baseRole
	failsafe
}

func (r *backlashWerewolfRole) ValidTargets(g *Game, p *Player) []*Player {
	var targets []*Player
	for _, other := range g.livingPlayers() {
		if other.ID != p.ID && !isWolfTeam(other.Role) {
			targets = append(targets, other)
		}
	}
	return targets
}

func (r *backlashWerewolfRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	if target == nil || !target.IsAlive {
		return ActionResult{}
	}
	r.set(target.ID)
	return ActionResult{KillVote: target.ID}
}

func (r *backlashWerewolfRole) OnDeath(g *Game, p *Player, reason string) Reaction {
	return r.fire(g, p)
}

// ---------------------------------------------------------------------------
// Revealer

type revealerRole struct {
	baseRole
}

func (r *revealerRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	if target == nil || !target.IsAlive {
		return ActionResult{}
	}
	if isWolfTeam(target.Role) {
		return ActionResult{
			Kills:  []Kill{{PlayerID: target.ID, Reason: ReasonRevealed}},
			Events: []Event{announce(target.Name + " was unmasked as a werewolf!")},
		}
	}
	return ActionResult{
		Kills:  []Kill{{PlayerID: actor.ID, Reason: ReasonWrongReveal}},
		Events: []Event{privateEvent(actor.ID, EventAnnounce, target.Name+" was no werewolf. The accusation costs you your life.")},
	}
}

// ---------------------------------------------------------------------------
// Honeypot

type honeypotRole struct {
	baseRole
}

// The killing party is selected by death reason: lynch voters, the pack, the
// Witch or the Serial Killer.
func (r *honeypotRole) OnDeath(g *Game, p *Player, reason string) Reaction {
	var pool []*Player
	switch reason {
	case ReasonLynching:
		for _, id := range g.lynchYesVoters() {
			if voter := g.player(id); voter != nil && voter.IsAlive {
				pool = append(pool, voter)
			}
		}
	case ReasonWerewolfAttack:
		pool = g.livingByTeam(TeamWerewolves)
	case ReasonPoison:
		for _, lp := range g.livingPlayers() {
			if lp.Role.Name() == "Witch" {
				pool = append(pool, lp)
			}
		}
	case ReasonSerialKiller:
		pool = g.livingByTeam(TeamSerialKiller)
	}
	if len(pool) == 0 {
		return Reaction{}
	}
	victim := pool[g.rng.Intn(len(pool))]
	return Reaction{
		Kills:  []Kill{{PlayerID: victim.ID, Reason: ReasonRetaliation}},
		Events: []Event{announce(p.Name + "'s death does not go unanswered.")},
	}
}

// ---------------------------------------------------------------------------
// Prostitute

type prostituteRole struct {
	baseRole
	visited map[string]bool
}

func (r *prostituteRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	if target == nil || !target.IsAlive || target.ID == actor.ID {
		return ActionResult{}
	}
	actor.VisitingID = target.ID
	target.VisitingID = actor.ID
	r.visited[target.ID] = true
	g.blockedTonight[target.ID] = true
	return ActionResult{Events: []Event{
		privateEvent(target.ID, EventBlocked, "You were kept busy all night and could not act."),
	}}
}

func (r *prostituteRole) WinCondition(g *Game, p *Player) (string, bool) {
	if len(r.visited) >= len(g.players)-2 && len(g.players) >= 4 {
		return "The Prostitute has seen the whole village", true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Wild Child

type wildChildRole struct {
	baseRole
	roleModelID string
	transformed bool

	// votelessNight marks a conversion that happened after vote intake
	// closed; the child sits out that night's unanimity count.
	votelessNight int
}

func (r *wildChildRole) NightActive(g *Game, p *Player) bool {
	if r.transformed {
		return true
	}
	return g.nightNumber == 1 && r.roleModelID == ""
}

// ValidTargets switches meaning with the transformation: first a role model
// (anyone but the child), afterwards prey for the pack vote.
func (r *wildChildRole) ValidTargets(g *Game, p *Player) []*Player {
	var targets []*Player
	for _, other := range g.livingPlayers() {
		if other.ID == p.ID {
			continue
		}
		if r.transformed && isWolfTeam(other.Role) {
			continue
		}
		targets = append(targets, other)
	}
	return targets
}

func (r *wildChildRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	if target == nil || !target.IsAlive || target.ID == actor.ID {
		return ActionResult{}
	}
	if r.transformed {
		return ActionResult{KillVote: target.ID}
	}
	if r.roleModelID != "" {
		return ActionResult{}
	}
	r.roleModelID = target.ID
	return ActionResult{}
}

// OnNightStart doubles as the transformation check; the cascade resolver
// re-invokes it when the role model dies mid-resolution.
func (r *wildChildRole) OnNightStart(g *Game, p *Player) []Event {
	if r.transformed || r.roleModelID == "" {
		return nil
	}
	model := g.player(r.roleModelID)
	if model != nil && model.IsAlive {
		return nil
	}
	r.transformed = true
	r.team = TeamWerewolves
	if g.resolvingNight {
		r.votelessNight = g.nightNumber
	}
	p.AddEffect(EffectTransformed)
	return []Event{
		privateEvent(p.ID, EventAnnounce, "Your role model is dead. You now run with the wolves."),
	}
}

// ---------------------------------------------------------------------------
// Mayor

// mayorEligibleRoles are the successors allowed to inherit the office.
var mayorEligibleRoles = map[string]bool{
	"Villager":          true,
	"Seer":              true,
	"Bodyguard":         true,
	"Witch":             true,
	"Cupid":             true,
	"Hunter":            true,
	"Lawyer":            true,
	"Martyr":            true,
	"Revealer":          true,
	"Tough Villager":    true,
	"Demented Villager": true,
	"Honeypot":          true,
	"Mayor":             true,
}

type mayorRole struct {
	baseRole
	successorID string
}

func (r *mayorRole) OnAssign(g *Game, p *Player) {
	g.mayorPowerID = p.ID
}

func (r *mayorRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	if target == nil || !target.IsAlive || target.ID == actor.ID {
		return ActionResult{}
	}
	r.successorID = target.ID
	return ActionResult{}
}

func (r *mayorRole) OnDeath(g *Game, p *Player, reason string) Reaction {
	if g.mayorPowerID != p.ID {
		return Reaction{}
	}
	g.mayorPowerID = ""
	succ := g.player(r.successorID)
	if succ == nil || !succ.IsAlive || !mayorEligibleRoles[succ.Role.Name()] {
		return Reaction{Events: []Event{announce("The Mayor's office stands empty.")}}
	}
	g.mayorPowerID = succ.ID
	return Reaction{Events: []Event{announce(succ.Name + " inherits the Mayor's office.")}}
}

// ---------------------------------------------------------------------------
// Lawyer

type lawyerRole struct {
	baseRole
}

func (r *lawyerRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	if target == nil || !target.IsAlive {
		return ActionResult{}
	}
	return ActionResult{Effect: EffectNoLynch, EffectOn: target.ID}
}

// ---------------------------------------------------------------------------
// Serial Killer

type serialKillerRole struct {
	baseRole
}

func (r *serialKillerRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	if target == nil || !target.IsAlive {
		return ActionResult{}
	}
	// Slips past the Bodyguard, but not a Witch's heal.
	if target.HasEffect(EffectHealed) {
		return ActionResult{Events: []Event{
			privateEvent(actor.ID, EventAnnounce, target.Name+" somehow survived the night."),
		}}
	}
	return ActionResult{Kills: []Kill{{PlayerID: target.ID, Reason: ReasonSerialKiller}}}
}

func (r *serialKillerRole) WinCondition(g *Game, p *Player) (string, bool) {
	others := 0
	for _, lp := range g.livingPlayers() {
		if lp.ID == p.ID {
			continue
		}
		team := lp.Role.Team()
		if team == TeamWerewolves || team == TeamMonster {
			return "", false
		}
		others++
	}
	if others <= 1 {
		return "The Serial Killer is the last threat standing", true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Sorcerer

type sorcererRole struct {
	baseRole
}

func (r *sorcererRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	if target == nil || !target.IsAlive {
		return ActionResult{}
	}
	verdict := "not a magic user"
	if magicUserRoles[target.Role.Name()] {
		verdict = "a magic user"
	}
	return ActionResult{Events: []Event{
		privateEvent(actor.ID, EventReveal, fmt.Sprintf("%s is %s.", target.Name, verdict)),
	}}
}

// ---------------------------------------------------------------------------
// Fool

// The Fool's win fires from the lynch resolution, not from this predicate.
type foolRole struct {
	baseRole
}

// ---------------------------------------------------------------------------
// Demented Villager

type dementedVillagerRole struct {
	baseRole
}

func (r *dementedVillagerRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	if target := g.player(choice.TargetID); target != nil && target.IsAlive {
		g.villageVotes[actor.ID] = target.ID
	}
	return ActionResult{}
}

func (r *dementedVillagerRole) WinCondition(g *Game, p *Player) (string, bool) {
	if len(g.livingPlayers()) == 1 {
		return "The Demented Villager is the sole survivor", true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Tough Villager

type toughVillagerRole struct {
	baseRole
}

func (r *toughVillagerRole) OnAssign(g *Game, p *Player) {
	p.AddEffect(EffectSecondLife)
}

func (r *toughVillagerRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	if target := g.player(choice.TargetID); target != nil && target.IsAlive {
		g.villageVotes[actor.ID] = target.ID
	}
	return ActionResult{}
}

// ---------------------------------------------------------------------------
// Tough Werewolf

type toughWerewolfRole struct {
	werewolfRole
}

func (r *toughWerewolfRole) OnAssign(g *Game, p *Player) {
	p.AddEffect(EffectSecondLife)
}

// ---------------------------------------------------------------------------
// Martyr

type martyrRole struct {
	baseRole
	wardID string
}

func (r *martyrRole) NightAction(g *Game, actor *Player, choice NightChoice) ActionResult {
	target := g.player(choice.TargetID)
	if target == nil || !target.IsAlive || target.ID == actor.ID {
		return ActionResult{}
	}
	r.wardID = target.ID
	return ActionResult{}
}

func (r *martyrRole) OnDeath(g *Game, p *Player, reason string) Reaction {
	ward := g.player(r.wardID)
	if ward == nil || !ward.IsAlive {
		return Reaction{}
	}
	ward.AddEffect(EffectSecondLife)
	return Reaction{Events: []Event{
		announce(p.Name + "'s sacrifice shields another villager."),
		privateEvent(ward.ID, EventAnnounce, p.Name+" gave their life for yours. You carry a second life."),
	}}
}
