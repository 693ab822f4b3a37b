package main

// Event kinds emitted by the engine and broadcast by the transport layer.
const (
	EventDeath     = "death"
	EventArmorSave = "armor_save"
	EventProtected = "protected"
	EventBlocked   = "blocked"
	EventAnnounce  = "announce"
	EventReveal    = "reveal"
	EventStory     = "story"
)

// Death reasons. These feed the cascade resolver, the Honeypot's retaliation
// targeting and the narrative history handed to the storyteller.
const (
	ReasonWerewolfAttack = "werewolf attack"
	ReasonPoison         = "poison"
	ReasonSerialKiller   = "serial killer"
	ReasonLynching       = "lynching"
	ReasonLoverPact      = "lover pact"
	ReasonCollateral     = "collateral"
	ReasonRetaliation    = "retaliation"
	ReasonRevealed       = "revealed werewolf"
	ReasonWrongReveal    = "wrong reveal"
)

// Event is one entry in the engine's outcome stream. Private events carry the
// recipient's player id in For; everything else is broadcast.
type Event struct {
	Kind     string `json:"kind"`
	PlayerID string `json:"player_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Text     string `json:"text,omitempty"`
	For      string `json:"-"`
}

// deathEvent builds the standard death entry for a player.
func deathEvent(p *Player, reason string) Event {
	return Event{
		Kind:     EventDeath,
		PlayerID: p.ID,
		Name:     p.Name,
		Role:     p.Role.Name(),
		Reason:   reason,
	}
}

// announce builds a public announcement event.
func announce(text string) Event {
	return Event{Kind: EventAnnounce, Text: text}
}

// privateEvent builds an event delivered only to the given player.
func privateEvent(playerID, kind, text string) Event {
	return Event{Kind: kind, Text: text, For: playerID}
}
