package main

import "log"

// cascadeKills resolves a batch of seed kills and every chained death they
// trigger. A FIFO queue keeps the order deterministic; the per-invocation
// processed set guards against lover/visit loops. A player is touched at most
// once per invocation, whether they died or their armor absorbed the blow.
func (g *Game) cascadeKills(seeds []Kill) []Event {
	queue := append([]Kill(nil), seeds...)
	processed := make(map[string]bool)
	var events []Event

	for len(queue) > 0 {
		kill := queue[0]
		queue = queue[1:]

		p := g.player(kill.PlayerID)
		if p == nil || processed[p.ID] || !p.IsAlive {
			continue
		}
		processed[p.ID] = true

		if p.HasEffect(EffectSecondLife) {
			p.RemoveEffect(EffectSecondLife)
			log.Printf("Player %s survived '%s' on their second life", p.Name, kill.Reason)
			g.appendHistory(p.Name + " took a lethal blow and walked away.")
			events = append(events, Event{
				Kind:     EventArmorSave,
				PlayerID: p.ID,
				Name:     p.Name,
				Reason:   kill.Reason,
				Text:     p.Name + " should be dead, but isn't.",
			})
			continue
		}

		p.IsAlive = false
		g.diedTonight[p.ID] = true
		log.Printf("Player %s (%s) died: %s", p.Name, p.Role.Name(), kill.Reason)
		g.appendHistory(p.Name + " the " + p.Role.Name() + " died (" + kill.Reason + ").")
		events = append(events, deathEvent(p, kill.Reason))

		// A Wild Child whose role model just fell transforms on the spot.
		for _, lp := range g.livingPlayersLocked() {
			if wc, ok := lp.Role.(*wildChildRole); ok && wc.roleModelID == p.ID {
				events = append(events, lp.Role.OnNightStart(g, lp)...)
			}
		}

		reaction := p.Role.OnDeath(g, p, kill.Reason)
		queue = append(queue, reaction.Kills...)
		events = append(events, reaction.Events...)

		if partner := g.player(p.LinkedPartnerID); partner != nil && partner.IsAlive {
			queue = append(queue, Kill{PlayerID: partner.ID, Reason: ReasonLoverPact})
		}
		if visited := g.player(p.VisitingID); visited != nil && visited.IsAlive {
			queue = append(queue, Kill{PlayerID: visited.ID, Reason: ReasonCollateral})
		}
	}

	return events
}
