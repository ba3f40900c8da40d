package scoring

import (
	"cmp"
	"slices"
	"strings"
	"tle_arena/internal/domain/model"
)

// CompareStandings orders contest participants: higher rating first, then the earlier
// last accepted solve. Participants who never solved sort after those who did; the
// join time and id keep the order total.
func CompareStandings(a, b *model.ContestParticipant) int {
	if c := cmp.Compare(b.FinalRating, a.FinalRating); c != 0 {
		return c
	}
	switch {
	case a.LastSolvedAt == nil && b.LastSolvedAt != nil:
		return 1
	case a.LastSolvedAt != nil && b.LastSolvedAt == nil:
		return -1
	case a.LastSolvedAt != nil && b.LastSolvedAt != nil:
		if c := a.LastSolvedAt.Compare(*b.LastSolvedAt); c != 0 {
			return c
		}
	}
	if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func SortStandings(ps []model.ContestParticipant) {
	slices.SortStableFunc(ps, func(a, b model.ContestParticipant) int {
		return CompareStandings(&a, &b)
	})
}

// CompareGlobal orders players by XP, highest first, with the id as tie-break.
func CompareGlobal(a, b *model.Player) int {
	if c := cmp.Compare(b.XP, a.XP); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func SortGlobal(ps []model.Player) {
	slices.SortStableFunc(ps, func(a, b model.Player) int {
		return CompareGlobal(&a, &b)
	})
}

// Rank is the 1-based board position of the index-th row of a page starting at offset.
func Rank(offset, index int) int {
	return offset + index + 1
}

// Offset converts a 1-based page and page size to a row offset.
func Offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
