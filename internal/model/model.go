package model

import "time"

// Side identifies which party of a battle a card row belongs to.
type Side int

const (
	SideUnknown  Side = 0
	SidePlayer   Side = 1
	SideOpponent Side = 2
)

func (s Side) String() string {
	switch s {
	case SidePlayer:
		return "player"
	case SideOpponent:
		return "opponent"
	default:
		return "?"
	}
}

// ParseSide maps the stored side label back to a Side.
func ParseSide(s string) Side {
	switch s {
	case "player":
		return SidePlayer
	case "opponent":
		return SideOpponent
	default:
		return SideUnknown
	}
}

// ---- Dimension ----

// Card is one entry of the upstream card catalog. Last pull wins.
type Card struct {
	ID          int64
	Name        string
	MaxLevel    *int
	ElixirCost  *int
	Rarity      string
	IconURL     string
	IsChampion  bool
	IsEvolution bool
}

// ---- Facts ----

// Battle is one battle as reported from a single player's log.
// The same encounter seen from the opponent's log is a distinct Battle.
type Battle struct {
	BattleID           string
	PlayerTag          string
	OpponentTag        string
	BattleTime         *time.Time // nil when the upstream timestamp did not parse
	Mode               string
	Arena              string
	PlayerCrowns       *int
	OpponentCrowns     *int
	PlayerTrophies     *int // startingTrophies, absent for most non-ladder modes
	OpponentTrophies   *int
	IsLadderTournament bool
	BattleType         string
	Won                *bool // nil on a tie or missing crowns
}

// BattleCard is one card played by one side of a battle.
type BattleCard struct {
	BattleID       string
	Side           Side
	CardID         int64
	CardLevel      *int
	EvolutionLevel *int
}

// ---- Sampling sets (never persisted) ----

// Clan is a discovered clan tag and its display name.
type Clan struct {
	Tag  string
	Name string
}

// Player is one member harvested from a clan roster.
type Player struct {
	Tag      string
	Name     string
	Trophies *int
	ClanTag  string
	ClanName string
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }
