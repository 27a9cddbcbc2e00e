// Package normalize turns raw API payloads into fact and dimension rows.
package normalize

import (
	"strings"
	"time"

	"github.com/pable/go-cr-metrics/internal/clashroyale"
	"github.com/pable/go-cr-metrics/internal/model"
)

// battleTimeLayout matches "20240101T120000Z" and "20240101T120000.000Z".
const battleTimeLayout = "20060102T150405.999999999Z"

// ParseBattleTime parses the API's compact UTC timestamp. Unparseable input
// yields nil rather than an error so one bad row never fails a battle log.
func ParseBattleTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(battleTimeLayout, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// firstParty returns the first team/opponent entry. The public battle log
// only ever reports one party per side; a missing side is an empty party.
func firstParty(ps []clashroyale.Participant) clashroyale.Participant {
	if len(ps) == 0 {
		return clashroyale.Participant{}
	}
	return ps[0]
}

// Outcome returns true/false for a win/loss from the player's perspective,
// and nil when the crowns are equal or either count is missing.
func Outcome(playerCrowns, opponentCrowns *int) *bool {
	if playerCrowns == nil || opponentCrowns == nil {
		return nil
	}
	switch {
	case *playerCrowns > *opponentCrowns:
		return model.BoolPtr(true)
	case *playerCrowns < *opponentCrowns:
		return model.BoolPtr(false)
	default:
		return nil
	}
}

// Battle maps one battle-log entry to a fact row plus one card row per card
// per side. Cards without an id are skipped; a card repeated on one side is
// kept once.
func Battle(raw clashroyale.Battle) (model.Battle, []model.BattleCard) {
	team := firstParty(raw.Team)
	opp := firstParty(raw.Opponent)
	bt := ParseBattleTime(raw.BattleTime)
	mode := raw.ModeName()

	b := model.Battle{
		BattleID:           BattleID(team.Tag, ISOTime(bt), mode, opp.Tag),
		PlayerTag:          team.Tag,
		OpponentTag:        opp.Tag,
		BattleTime:         bt,
		Mode:               mode,
		Arena:              raw.ArenaName(),
		PlayerCrowns:       team.Crowns,
		OpponentCrowns:     opp.Crowns,
		PlayerTrophies:     team.StartingTrophies,
		OpponentTrophies:   opp.StartingTrophies,
		IsLadderTournament: raw.IsLadderTournament,
		BattleType:         raw.Type,
		Won:                Outcome(team.Crowns, opp.Crowns),
	}

	var cards []model.BattleCard
	for _, side := range []struct {
		party clashroyale.Participant
		side  model.Side
	}{{team, model.SidePlayer}, {opp, model.SideOpponent}} {
		seen := make(map[int64]bool, len(side.party.Cards))
		for _, c := range side.party.Cards {
			if c.ID == nil || seen[*c.ID] {
				continue
			}
			seen[*c.ID] = true
			cards = append(cards, model.BattleCard{
				BattleID:       b.BattleID,
				Side:           side.side,
				CardID:         *c.ID,
				CardLevel:      c.Level,
				EvolutionLevel: c.EvolutionLevel,
			})
		}
	}
	return b, cards
}

// Card maps a catalog entry to the card dimension. ok is false when the
// entry has no id.
func Card(it clashroyale.CardItem) (model.Card, bool) {
	if it.ID == nil {
		return model.Card{}, false
	}
	elixir := it.ElixirCost
	if elixir == nil || *elixir == 0 {
		if it.Elixir != nil {
			elixir = it.Elixir
		}
	}
	icon := it.IconURLs["medium"]
	if icon == "" {
		icon = it.IconURLs["large"]
	}
	if icon == "" {
		icon = it.IconURLs["evolutionMedium"]
	}
	return model.Card{
		ID:          *it.ID,
		Name:        it.Name,
		MaxLevel:    it.MaxLevel,
		ElixirCost:  elixir,
		Rarity:      it.Rarity,
		IconURL:     icon,
		IsChampion:  it.IsChampion || strings.EqualFold(it.Rarity, "champion"),
		IsEvolution: it.IsEvolution,
	}, true
}
