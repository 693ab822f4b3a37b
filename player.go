package main

// Status-effect tags attached to players during play.
const (
	EffectProtected   = "protected"
	EffectHealed      = "healed"
	EffectNoLynch     = "no_lynch"
	EffectSecondLife  = "2nd_life"
	EffectWolfImmune  = "immune_to_wolf"
	EffectSoloWin     = "solo_win"
	EffectTransformed = "transformed"
)

// persistentEffects survive the night-start reset. Everything else is
// transient and cleared when a new night begins.
var persistentEffects = map[string]bool{
	EffectWolfImmune:  true,
	EffectSecondLife:  true,
	EffectSoloWin:     true,
	EffectTransformed: true,
}

// Player is one seat in a match. The Role instance owns all role-specific
// mutable state (potions, failsafe target, transformation flags); the player
// only tracks identity, liveness, status tags and the two link relations.
type Player struct {
	ID   string
	Name string
	Role Role

	IsAlive bool

	statusEffects map[string]bool

	// LinkedPartnerID is Cupid's lover link, symmetric for the whole match.
	LinkedPartnerID string
	// VisitingID is the Prostitute's visit link, symmetric for one night.
	VisitingID string
}

func newPlayer(id, name string) *Player {
	return &Player{
		ID:            id,
		Name:          name,
		IsAlive:       true,
		statusEffects: make(map[string]bool),
	}
}

func (p *Player) HasEffect(tag string) bool {
	return p.statusEffects[tag]
}

func (p *Player) AddEffect(tag string) {
	p.statusEffects[tag] = true
}

func (p *Player) RemoveEffect(tag string) {
	delete(p.statusEffects, tag)
}

// Effects returns a snapshot of the player's current status tags.
func (p *Player) Effects() []string {
	tags := make([]string, 0, len(p.statusEffects))
	for tag := range p.statusEffects {
		tags = append(tags, tag)
	}
	return tags
}

// resetNightStatus drops every transient tag, keeping only the persistent
// allow-list. Called for each player when a new night begins.
func (p *Player) resetNightStatus() {
	for tag := range p.statusEffects {
		if !persistentEffects[tag] {
			delete(p.statusEffects, tag)
		}
	}
}

// PlayerState is the read-only projection of a player used in game-over
// payloads and state broadcasts.
type PlayerState struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Role    string   `json:"role,omitempty"`
	Team    string   `json:"team,omitempty"`
	IsAlive bool     `json:"is_alive"`
	Effects []string `json:"effects,omitempty"`
}

func (p *Player) state(revealRole bool) PlayerState {
	s := PlayerState{ID: p.ID, Name: p.Name, IsAlive: p.IsAlive}
	if revealRole && p.Role != nil {
		s.Role = p.Role.Name()
		s.Team = string(p.Role.Team())
		s.Effects = p.Effects()
	}
	return s
}
