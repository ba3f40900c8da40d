package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository"
	"tle_arena/internal/domain/scoring"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"
)

const contestServiceName = "ContestService"

const (
	inviteCodeLength   = 8
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	winnerCount        = 3
)

type ContestService struct {
	contests     repository.ContestRepository
	participants repository.ParticipantRepository
	players      repository.PlayerRepository
	problems     repository.ProblemRepository
	ledger       *XPLedgerService
	tx           repository.Transactor
	rules        scoring.Rules
	notifier     Notifier
	tel          Telemetry
	now          func() time.Time
}

func NewContestService(
	contests repository.ContestRepository,
	participants repository.ParticipantRepository,
	players repository.PlayerRepository,
	problems repository.ProblemRepository,
	ledger *XPLedgerService,
	tx repository.Transactor,
	rules scoring.Rules,
	notifier Notifier,
	tel Telemetry,
) *ContestService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &ContestService{
		contests:     contests,
		participants: participants,
		players:      players,
		problems:     problems,
		ledger:       ledger,
		tx:           tx,
		rules:        rules,
		notifier:     notifier,
		tel:          tel.withDefaults(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type CreateContestRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ProblemIDs  []string `json:"problem_ids"`
	// StartTime is RFC3339 or a phrase such as "tomorrow at 6pm".
	StartTime         string `json:"start_time"`
	DurationMins      int    `json:"duration_mins"`
	IsPublic          *bool  `json:"is_public,omitempty"`
	LeaderboardFrozen bool   `json:"leaderboard_frozen"`
}

type UpdateContestRequest struct {
	Title             *string   `json:"title,omitempty"`
	Description       *string   `json:"description,omitempty"`
	ProblemIDs        *[]string `json:"problem_ids,omitempty"`
	StartTime         *string   `json:"start_time,omitempty"`
	DurationMins      *int      `json:"duration_mins,omitempty"`
	IsPublic          *bool     `json:"is_public,omitempty"`
	LeaderboardFrozen *bool     `json:"leaderboard_frozen,omitempty"`
}

type JoinContestRequest struct {
	Mode       string `json:"mode"`
	InviteCode string `json:"invite_code"`
}

// StatusChange reports what ChangeStatus did.
type StatusChange struct {
	Contest    *model.Contest      `json:"contest"`
	OldStatus  model.ContestStatus `json:"old_status"`
	Transition string              `json:"transition"`
	Finalized  *Finalization       `json:"finalized,omitempty"`
}

// Finalization is the result of ranking an ended contest.
type Finalization struct {
	ContestID string        `json:"contest_id"`
	Ranks     []FinalRank   `json:"ranks"`
	WinnerIDs []string      `json:"winner_ids"`
	First     bool          `json:"first"`
	Events    []model.Event `json:"-"`
}

type FinalRank struct {
	ParticipantID string  `json:"participant_id"`
	PlayerID      string  `json:"player_id"`
	Rank          int     `json:"rank"`
	FinalRating   float64 `json:"final_rating"`
	BonusXP       int     `json:"bonus_xp"`
	BonusGranted  bool    `json:"bonus_granted"`
}

func (s *ContestService) CreateContest(ctx context.Context, userID string, req CreateContestRequest) (*model.Contest, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, common.Errorf("title is required: %w", common.ErrBadRequest)
	}
	if req.DurationMins == 0 {
		req.DurationMins = model.DefaultContestDurationMins
	}
	if req.DurationMins < 0 {
		return nil, common.Errorf("duration must be positive: %w", common.ErrValidation)
	}
	now := s.now()
	start, err := ParseStartTime(req.StartTime, now)
	if err != nil {
		return nil, err
	}
	if err := s.checkProblems(ctx, req.ProblemIDs); err != nil {
		return nil, err
	}

	return withTelemetry(s.tel, ctx, contestServiceName, "CreateContest", userID, func(ctx context.Context) (*model.Contest, error) {
		contest := &model.Contest{
			ID:                uuid.NewString(),
			Slug:              s.uniqueSlug(ctx, req.Title),
			Title:             req.Title,
			Description:       req.Description,
			ProblemIDs:        dedupe(req.ProblemIDs),
			StartTime:         start,
			EndTime:           start.Add(time.Duration(req.DurationMins) * time.Minute),
			DurationMins:      req.DurationMins,
			IsPublic:          req.IsPublic == nil || *req.IsPublic,
			CreatedBy:         userID,
			Status:            model.ContestDraft,
			LeaderboardFrozen: req.LeaderboardFrozen,
		}
		if !contest.IsPublic {
			code, err := newInviteCode()
			if err != nil {
				return nil, fmt.Errorf("generate invite code: %w", err)
			}
			contest.InviteCode = &code
		}
		if err := s.contests.Create(ctx, nil, contest); err != nil {
			return nil, common.Errorf("failed to create contest: %w", err)
		}
		return contest, nil
	})
}

// UpdateContest edits a contest the caller owns; admins may edit any.
func (s *ContestService) UpdateContest(ctx context.Context, userID, role, contestID string, req UpdateContestRequest) (*model.Contest, error) {
	return withTelemetry(s.tel, ctx, contestServiceName, "UpdateContest", contestID, func(ctx context.Context) (*model.Contest, error) {
		var updated *model.Contest
		err := s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			c, err := s.contests.LockByID(ctx, tx, contestID)
			if err != nil {
				return err
			}
			if err := canManage(c, userID, role); err != nil {
				return err
			}
			if scoring.IsTerminal(c.Status) {
				return common.Errorf("contest is %s and can no longer be edited: %w", c.Status, common.ErrValidation)
			}
			if req.Title != nil {
				if strings.TrimSpace(*req.Title) == "" {
					return common.Errorf("title is required: %w", common.ErrBadRequest)
				}
				c.Title = strings.TrimSpace(*req.Title)
			}
			if req.Description != nil {
				c.Description = *req.Description
			}
			if req.ProblemIDs != nil {
				if err := s.checkProblems(ctx, *req.ProblemIDs); err != nil {
					return err
				}
				c.ProblemIDs = dedupe(*req.ProblemIDs)
			}
			if req.StartTime != nil {
				start, err := ParseStartTime(*req.StartTime, s.now())
				if err != nil {
					return err
				}
				c.StartTime = start
			}
			if req.DurationMins != nil {
				if *req.DurationMins <= 0 {
					return common.Errorf("duration must be positive: %w", common.ErrValidation)
				}
				c.DurationMins = *req.DurationMins
			}
			c.EndTime = c.StartTime.Add(time.Duration(c.DurationMins) * time.Minute)
			if req.IsPublic != nil && *req.IsPublic != c.IsPublic {
				c.IsPublic = *req.IsPublic
				c.InviteCode = nil
				if !c.IsPublic {
					code, err := newInviteCode()
					if err != nil {
						return fmt.Errorf("generate invite code: %w", err)
					}
					c.InviteCode = &code
				}
			}
			if req.LeaderboardFrozen != nil {
				c.LeaderboardFrozen = *req.LeaderboardFrozen
			}
			if err := s.contests.Update(ctx, tx, c); err != nil {
				return err
			}
			updated = c
			return nil
		})
		if err != nil {
			return nil, err
		}
		return updated, nil
	})
}

// ChangeStatus moves a contest through its lifecycle. Entering ENDED ranks the
// participants and pays rank bonuses in the same transaction; asking for ENDED
// again repeats that work without granting anything twice. Only the contest's
// creator or an admin may change its status.
func (s *ContestService) ChangeStatus(ctx context.Context, userID, role, contestID, status string) (*StatusChange, error) {
	to := model.ContestStatus(strings.ToUpper(strings.TrimSpace(status)))

	change, err := withTelemetry(s.tel, ctx, contestServiceName, "ChangeStatus", contestID, func(ctx context.Context) (*StatusChange, error) {
		change := &StatusChange{}
		err := s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			c, err := s.contests.LockByID(ctx, tx, contestID)
			if err != nil {
				return err
			}
			if err := canManage(c, userID, role); err != nil {
				return err
			}
			change.OldStatus = c.Status
			transition, err := scoring.CheckTransition(c.Status, to)
			if err != nil {
				return err
			}

			switch transition {
			case scoring.TransitionNoop:
				change.Transition = "noop"
			case scoring.TransitionRefinalize:
				change.Transition = "refinalize"
				if change.Finalized, err = s.finalizeTx(ctx, tx, c); err != nil {
					return err
				}
			case scoring.TransitionApply:
				change.Transition = "apply"
				if err := s.contests.UpdateStatus(ctx, tx, c.ID, to); err != nil {
					return err
				}
				c.Status = to
				if to == model.ContestEnded {
					if change.Finalized, err = s.finalizeTx(ctx, tx, c); err != nil {
						return err
					}
				}
			}

			change.Contest, err = s.contests.FindByID(ctx, tx, c.ID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return change, nil
	})
	if err != nil {
		return nil, err
	}

	var events []model.Event
	if change.Transition == "apply" {
		events = append(events, model.NewEvent(model.EventContestStatusChanged, model.ContestStatusChangedPayload{
			ContestID: contestID,
			OldStatus: change.OldStatus,
			NewStatus: to,
		}))
	}
	if change.Finalized != nil {
		events = append(events, change.Finalized.Events...)
	}
	s.notifier.Notify(ctx, events...)

	s.tel.Logger.InfoContext(ctx, "Contest status changed",
		"contest_id", contestID,
		"old_status", change.OldStatus,
		"new_status", to,
		"transition", change.Transition,
	)
	return change, nil
}

// Finalize ends the contest, or re-runs finalization if it already ended.
func (s *ContestService) Finalize(ctx context.Context, userID, role, contestID string) (*Finalization, error) {
	change, err := s.ChangeStatus(ctx, userID, role, contestID, string(model.ContestEnded))
	if err != nil {
		return nil, err
	}
	return change.Finalized, nil
}

// finalizeTx requires the contest row to be locked by the caller.
func (s *ContestService) finalizeTx(ctx context.Context, tx *sql.Tx, c *model.Contest) (*Finalization, error) {
	board, err := s.participants.ListByContest(ctx, tx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load standings: %w", err)
	}
	scoring.SortStandings(board)

	fin := &Finalization{ContestID: c.ID, First: c.FinalizedAt == nil}
	for i, p := range board {
		rank := i + 1
		if err := s.participants.SetFinalRank(ctx, tx, p.ID, rank); err != nil {
			return nil, err
		}
		fr := FinalRank{ParticipantID: p.ID, PlayerID: p.PlayerID, Rank: rank, FinalRating: p.FinalRating}
		if bonus, ok := s.rules.RankBonusFor(rank); ok {
			contestID := c.ID
			g, err := s.ledger.GrantOnceTx(ctx, tx, Grant{
				PlayerID:   p.PlayerID,
				ContestID:  &contestID,
				Source:     model.SourceRankBonus,
				BaseXP:     bonus,
				Multiplier: 1.0,
			})
			if err != nil {
				return nil, fmt.Errorf("rank bonus for %s: %w", p.PlayerID, err)
			}
			fr.BonusXP = g.Entry.FinalXP
			fr.BonusGranted = g.Granted
			fin.Events = append(fin.Events, g.Events...)
		}
		fin.Ranks = append(fin.Ranks, fr)
		if i < winnerCount {
			fin.WinnerIDs = append(fin.WinnerIDs, p.ID)
		}
	}

	if fin.First && len(board) > 0 {
		if err := s.players.RecordWin(ctx, tx, board[0].PlayerID); err != nil {
			return nil, err
		}
	}
	if err := s.contests.SetFinalized(ctx, tx, c.ID, fin.WinnerIDs, s.now()); err != nil {
		return nil, err
	}
	if fin.First {
		fin.Events = append(fin.Events, model.NewEvent(model.EventContestFinished, model.ContestFinishedPayload{
			ContestID: c.ID,
			WinnerIDs: fin.WinnerIDs,
		}))
	}
	return fin, nil
}

// JoinContest registers a player. Checks run in order: contest exists, not
// already joined, contest open, invite code.
func (s *ContestService) JoinContest(ctx context.Context, playerID, contestID string, req JoinContestRequest) (*model.ContestParticipant, error) {
	if playerID == "" {
		return nil, common.Errorf("only players can join contests: %w", common.ErrForbidden)
	}

	var events []model.Event
	participant, err := withTelemetry(s.tel, ctx, contestServiceName, "JoinContest", playerID, func(ctx context.Context) (*model.ContestParticipant, error) {
		contest, err := s.contests.FindByID(ctx, nil, contestID)
		if err != nil {
			return nil, common.Errorf("contest not found: %w", err)
		}
		if _, err := s.participants.Find(ctx, nil, contestID, playerID); err == nil {
			return nil, common.Errorf("already joined this contest: %w", common.ErrConflict)
		} else if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		if !scoring.CanJoin(contest.Status) {
			return nil, common.Errorf("contest is %s and not open for joining: %w", contest.Status, common.ErrValidation)
		}
		if !contest.IsPublic && (contest.InviteCode == nil || !strings.EqualFold(strings.TrimSpace(req.InviteCode), *contest.InviteCode)) {
			return nil, common.Errorf("invalid invite code: %w", common.ErrForbidden)
		}

		player, err := s.players.FindByID(ctx, nil, playerID)
		if err != nil {
			return nil, err
		}
		if player.Status != model.PlayerStatusActive {
			return nil, common.Errorf("player account is deactivated: %w", common.ErrForbidden)
		}
		mode := player.PreferredMode
		if req.Mode != "" {
			m, ok := model.ParseMode(req.Mode)
			if !ok {
				return nil, common.Errorf("unknown mode %q: %w", req.Mode, common.ErrValidation)
			}
			mode = m
		}
		if _, ok := model.ParseMode(string(mode)); !ok {
			mode = model.DefaultMode
		}

		now := s.now()
		p := &model.ContestParticipant{
			ID:        uuid.NewString(),
			ContestID: contestID,
			PlayerID:  playerID,
			Mode:      mode,
			JoinedAt:  now,
		}
		err = s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			locked, err := s.contests.LockByID(ctx, tx, contestID)
			if err != nil {
				return err
			}
			if !scoring.CanJoin(locked.Status) {
				return common.Errorf("contest is %s and not open for joining: %w", locked.Status, common.ErrValidation)
			}
			if err := s.participants.Create(ctx, tx, p); err != nil {
				return err
			}
			if err := s.contests.IncrementParticipants(ctx, tx, contestID); err != nil {
				return err
			}
			if err := s.players.RecordContestJoin(ctx, tx, playerID, now); err != nil {
				return err
			}
			g, err := s.ledger.GrantOnceTx(ctx, tx, Grant{
				PlayerID:   playerID,
				ContestID:  &contestID,
				Source:     model.SourceContestJoin,
				BaseXP:     s.rules.JoinXP,
				Multiplier: 1.0,
			})
			if err != nil {
				return err
			}
			events = append(events, model.NewEvent(model.EventPlayerJoinedContest, model.PlayerJoinedPayload{
				PlayerID:  playerID,
				ContestID: contestID,
			}))
			events = append(events, g.Events...)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, events...)
	return participant, nil
}

// GetContest looks a contest up by id or slug. The invite code is only shown to
// its creator and admins.
func (s *ContestService) GetContest(ctx context.Context, idOrSlug, viewerID, role string) (*model.Contest, error) {
	var (
		c   *model.Contest
		err error
	)
	if _, perr := uuid.Parse(idOrSlug); perr == nil {
		c, err = s.contests.FindByID(ctx, nil, idOrSlug)
	} else {
		c, err = s.contests.FindBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, err
	}
	if c.Status == model.ContestDraft && !isStaff(role) {
		return nil, common.ErrNotFound
	}
	redactInvite(c, viewerID, role)
	return c, nil
}

func (s *ContestService) ListContests(ctx context.Context, status, role string, page, limit int) (*common.Page[model.Contest], error) {
	filter := repository.ContestFilter{PublicOnly: !isStaff(role)}
	if status != "" {
		st, ok := model.ParseContestStatus(status)
		if !ok {
			return nil, common.Errorf("unknown contest status %q: %w", status, common.ErrValidation)
		}
		filter.Status = st
	}
	contests, total, err := s.contests.List(ctx, filter, limit, scoring.Offset(page, limit))
	if err != nil {
		return nil, err
	}
	for i := range contests {
		redactInvite(&contests[i], "", role)
	}
	return &common.Page[model.Contest]{Items: contests, Total: total, Page: page, Limit: limit}, nil
}

// ContestProblems returns the problem set once the contest is LIVE or ENDED.
// Private contests show it only to participants.
func (s *ContestService) ContestProblems(ctx context.Context, contestID, playerID, role string) ([]model.Problem, error) {
	c, err := s.contests.FindByID(ctx, nil, contestID)
	if err != nil {
		return nil, err
	}
	if !isStaff(role) {
		if !scoring.ProblemsVisible(c.Status) {
			return nil, common.Errorf("problems are hidden until the contest starts: %w", common.ErrForbidden)
		}
		if !c.IsPublic {
			if playerID == "" {
				return nil, common.ErrForbidden
			}
			if _, err := s.participants.Find(ctx, nil, c.ID, playerID); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return nil, common.Errorf("join this private contest to see its problems: %w", common.ErrForbidden)
				}
				return nil, err
			}
		}
	}
	return s.problems.FindByIDs(ctx, c.ProblemIDs)
}

func (s *ContestService) checkProblems(ctx context.Context, ids []string) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}
	found, err := s.problems.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return common.Errorf("%d of %d problems do not exist: %w", len(ids)-len(found), len(ids), common.ErrValidation)
	}
	return nil
}

func (s *ContestService) uniqueSlug(ctx context.Context, title string) string {
	base := slug.Make(title)
	if base == "" {
		base = "contest"
	}
	if _, err := s.contests.FindBySlug(ctx, base); errors.Is(err, common.ErrNotFound) {
		return base
	}
	return base + "-" + uuid.NewString()[:6]
}

// ParseStartTime accepts RFC3339 or an English phrase relative to now.
// An empty string means now.
func ParseStartTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Truncate(time.Minute), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	w := when.New(nil)
	w.Add(en.All...)
	r, err := w.Parse(strings.ToLower(s), now)
	if err != nil {
		return time.Time{}, common.Errorf("parse start time %q: %v: %w", s, err, common.ErrValidation)
	}
	if r == nil {
		return time.Time{}, common.Errorf("unrecognized start time %q: %w", s, common.ErrValidation)
	}
	return r.Time.UTC().Truncate(time.Minute), nil
}

func newInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(buf), nil
}

func isStaff(role string) bool {
	return role == model.RoleAdmin || role == model.RoleOrganizer
}

func canManage(c *model.Contest, userID, role string) error {
	if role == model.RoleAdmin || (role == model.RoleOrganizer && userID != "" && userID == c.CreatedBy) {
		return nil
	}
	return common.Errorf("only the contest's organizer can manage it: %w", common.ErrForbidden)
}

func redactInvite(c *model.Contest, viewerID, role string) {
	if role == model.RoleAdmin || (viewerID != "" && viewerID == c.CreatedBy) {
		return
	}
	c.InviteCode = nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
