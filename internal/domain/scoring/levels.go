package scoring

import (
	"errors"
	"fmt"
	"sort"
	"tle_arena/internal/domain/model"
)

type Level struct {
	Level   int        `yaml:"level" json:"level"`
	MinXP   int        `yaml:"min_xp" json:"min_xp"`
	Tier    model.Tier `yaml:"tier" json:"tier"`
	SubRank string     `yaml:"sub_rank" json:"sub_rank"`
}

// LevelTable is sorted ascending by MinXP.
type LevelTable []Level

var fallbackLevel = Level{Level: 1, MinXP: 0, Tier: model.TierBronze, SubRank: "Bronze III"}

func DefaultLevelTable() LevelTable {
	return LevelTable{
		{1, 0, model.TierBronze, "Bronze III"},
		{2, 100, model.TierBronze, "Bronze II"},
		{3, 250, model.TierBronze, "Bronze I"},
		{4, 500, model.TierSilver, "Silver III"},
		{5, 800, model.TierSilver, "Silver II"},
		{6, 1200, model.TierSilver, "Silver I"},
		{7, 1700, model.TierGold, "Gold III"},
		{8, 2300, model.TierGold, "Gold II"},
		{9, 3000, model.TierGold, "Gold I"},
		{10, 4000, model.TierPlatinum, "Platinum III"},
		{11, 5200, model.TierPlatinum, "Platinum II"},
		{12, 6500, model.TierPlatinum, "Platinum I"},
		{13, 8000, model.TierDiamond, "Diamond III"},
		{14, 10000, model.TierDiamond, "Diamond II"},
		{15, 12500, model.TierDiamond, "Diamond I"},
		{16, 15000, model.TierMaster, "Master"},
	}
}

// LevelFor returns the highest level whose threshold is at or below xp.
func (t LevelTable) LevelFor(xp int) Level {
	i := sort.Search(len(t), func(i int) bool { return t[i].MinXP > xp })
	if i == 0 {
		return fallbackLevel
	}
	return t[i-1]
}

// Progress describes where xp sits between two levels.
type Progress struct {
	XP       int    `json:"xp"`
	Current  Level  `json:"current"`
	Next     *Level `json:"next,omitempty"`
	XPToNext int    `json:"xp_to_next"`
}

func (t LevelTable) Progress(xp int) Progress {
	p := Progress{XP: xp, Current: t.LevelFor(xp)}
	i := sort.Search(len(t), func(i int) bool { return t[i].MinXP > xp })
	if i < len(t) {
		next := t[i]
		p.Next = &next
		p.XPToNext = next.MinXP - xp
	}
	return p
}

// ByLevel looks a level up by its number.
func (t LevelTable) ByLevel(n int) (Level, bool) {
	for _, l := range t {
		if l.Level == n {
			return l, true
		}
	}
	return Level{}, false
}

// Validate checks the table starts at 0 XP and is strictly ascending.
func (t LevelTable) Validate() error {
	if len(t) == 0 {
		return errors.New("level table is empty")
	}
	if t[0].MinXP != 0 {
		return fmt.Errorf("level table must start at 0 xp, starts at %d", t[0].MinXP)
	}
	for i := 1; i < len(t); i++ {
		if t[i].MinXP <= t[i-1].MinXP {
			return fmt.Errorf("level %d threshold %d is not above %d", t[i].Level, t[i].MinXP, t[i-1].MinXP)
		}
		if t[i].Level <= t[i-1].Level {
			return fmt.Errorf("level numbers must ascend (%d after %d)", t[i].Level, t[i-1].Level)
		}
	}
	return nil
}
