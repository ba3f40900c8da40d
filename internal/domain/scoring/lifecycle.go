package scoring

import (
	"fmt"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
)

// Transition tells the caller what a requested status change amounts to.
type Transition int

const (
	TransitionApply Transition = iota
	TransitionNoop
	TransitionRefinalize
)

var statusStep = map[model.ContestStatus]int{
	model.ContestDraft:    0,
	model.ContestUpcoming: 1,
	model.ContestLive:     2,
	model.ContestEnded:    3,
}

func IsTerminal(s model.ContestStatus) bool {
	return s == model.ContestEnded || s == model.ContestCancelled
}

// CheckTransition validates moving a contest from one status to another.
// Forward moves may skip steps; CANCELLED is reachable from every non-terminal status.
func CheckTransition(from, to model.ContestStatus) (Transition, error) {
	if _, ok := model.ParseContestStatus(string(to)); !ok {
		return 0, fmt.Errorf("invalid contest status %q: %w", to, common.ErrValidation)
	}
	if from == to {
		if to == model.ContestEnded {
			return TransitionRefinalize, nil
		}
		return TransitionNoop, nil
	}
	if IsTerminal(from) {
		return 0, fmt.Errorf("contest is %s and cannot move to %s: %w", from, to, common.ErrValidation)
	}
	if to == model.ContestCancelled {
		return TransitionApply, nil
	}
	if statusStep[to] < statusStep[from] {
		return 0, fmt.Errorf("contest cannot move back from %s to %s: %w", from, to, common.ErrValidation)
	}
	return TransitionApply, nil
}

// CanJoin reports whether players may join a contest in status s.
func CanJoin(s model.ContestStatus) bool {
	return s == model.ContestUpcoming || s == model.ContestLive
}

// AcceptsSubmissions reports whether solves in status s count toward the contest.
func AcceptsSubmissions(s model.ContestStatus) bool {
	return s == model.ContestLive
}

// ProblemsVisible reports whether the contest problem set may be shown to players.
func ProblemsVisible(s model.ContestStatus) bool {
	return s == model.ContestLive || s == model.ContestEnded
}
