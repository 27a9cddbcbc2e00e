package clashroyale

// CardItem is one entry from /cards.
type CardItem struct {
	ID          *int64            `json:"id"`
	Name        string            `json:"name"`
	MaxLevel    *int              `json:"maxLevel"`
	ElixirCost  *int              `json:"elixirCost"`
	Elixir      *int              `json:"elixir"`
	Rarity      string            `json:"rarity"`
	IconURLs    map[string]string `json:"iconUrls"`
	IsChampion  bool              `json:"isChampion"`
	IsEvolution bool              `json:"isEvolution"`
}

// ClanItem is one search hit from /clans.
type ClanItem struct {
	Tag     string `json:"tag"`
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// ClanSearchPage is one cursor page of /clans.
type ClanSearchPage struct {
	Items  []ClanItem `json:"items"`
	Paging struct {
		Cursors struct {
			After  string `json:"after"`
			Before string `json:"before"`
		} `json:"cursors"`
	} `json:"paging"`
}

// Next returns the cursor for the following page, or "" when there is none.
func (p *ClanSearchPage) Next() string {
	return p.Paging.Cursors.After
}

// Member is one roster entry of /clans/{tag}.
type Member struct {
	Tag      string `json:"tag"`
	Name     string `json:"name"`
	Trophies *int   `json:"trophies"`
}

// ClanDetail holds the fields we need from /clans/{tag}.
type ClanDetail struct {
	Tag        string   `json:"tag"`
	Name       string   `json:"name"`
	MemberList []Member `json:"memberList"`
}

// Named is the {id, name} shape used for arenas and game modes.
type Named struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CardRef is a card as it appears in a battle deck.
type CardRef struct {
	ID             *int64 `json:"id"`
	Name           string `json:"name"`
	Level          *int   `json:"level"`
	EvolutionLevel *int   `json:"evolutionLevel"`
}

// Participant is one party (team or opponent) of a battle.
type Participant struct {
	Tag              string    `json:"tag"`
	Name             string    `json:"name"`
	Crowns           *int      `json:"crowns"`
	StartingTrophies *int      `json:"startingTrophies"`
	Cards            []CardRef `json:"cards"`
}

// Battle is one entry of /players/{tag}/battlelog.
type Battle struct {
	Type               string        `json:"type"`
	BattleTime         string        `json:"battleTime"`
	IsLadderTournament bool          `json:"isLadderTournament"`
	Arena              *Named        `json:"arena"`
	GameMode           *Named        `json:"gameMode"`
	Team               []Participant `json:"team"`
	Opponent           []Participant `json:"opponent"`
}

// ModeName returns the game mode name, or "" when absent.
func (b *Battle) ModeName() string {
	if b.GameMode == nil {
		return ""
	}
	return b.GameMode.Name
}

// ArenaName returns the arena name, or "" when absent.
func (b *Battle) ArenaName() string {
	if b.Arena == nil {
		return ""
	}
	return b.Arena.Name
}
