package service

import (
	"fmt"
	"testing"
	"time"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedBoard gives each participant a distinct rating, highest first.
func seedBoard(h *harness, contestID string, players []string) {
	h.t.Helper()
	for i, pid := range players {
		cp := h.participant(contestID, pid)
		cp.FinalRating = float64(1000 - i*100)
		cp.RawScore = 1000 - i*100
		require.NoError(h.t, h.store.Participants().UpdateScores(h.ctx, nil, cp))
	}
}

func rankBonuses(h *harness, players []string, contestID string) []int {
	h.t.Helper()
	out := make([]int, len(players))
	for i, pid := range players {
		entries, _, err := h.store.Ledger().ListByPlayer(h.ctx, pid, 100, 0)
		require.NoError(h.t, err)
		for _, e := range entries {
			if e.Source == model.SourceRankBonus && e.ContestID != nil && *e.ContestID == contestID {
				out[i] += e.FinalXP
			}
		}
	}
	return out
}

func TestFinalize_SixParticipants(t *testing.T) {
	h := newHarness(t)
	c := h.contest(h.problem(model.DifficultyEasy))
	var players []string
	for range 6 {
		p := h.player()
		h.join(c.ID, p, model.ModeGrinder)
		players = append(players, p)
	}
	h.status(c.ID, model.ContestLive)
	seedBoard(h, c.ID, players)
	h.notifier.reset()

	change := h.status(c.ID, model.ContestEnded)
	require.NotNil(t, change.Finalized)
	assert.True(t, change.Finalized.First)

	want := []int{500, 400, 300, 200, 100, 0}
	if diff := cmp.Diff(want, rankBonuses(h, players, c.ID)); diff != "" {
		t.Errorf("rank bonuses mismatch (-want +got):\n%s", diff)
	}
	for i, pid := range players {
		cp := h.participant(c.ID, pid)
		require.NotNil(t, cp.FinalRank)
		assert.Equal(t, i+1, *cp.FinalRank)
	}

	ended, err := h.store.Contests().FindByID(h.ctx, nil, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContestEnded, ended.Status)
	assert.NotNil(t, ended.FinalizedAt)
	require.Len(t, ended.WinnerIDs, 3)
	assert.Equal(t, h.participant(c.ID, players[0]).ID, ended.WinnerIDs[0])

	assert.Equal(t, 1, h.playerRow(players[0]).TotalWins)
	assert.Equal(t, 0, h.playerRow(players[1]).TotalWins)
	assert.Equal(t, 50+500, h.playerRow(players[0]).XP)

	types := h.notifier.types()
	assert.Contains(t, types, model.EventContestStatusChanged)
	assert.Contains(t, types, model.EventContestFinished)
}

func TestFinalize_TwiceIsIdempotent(t *testing.T) {
	h := newHarness(t)
	c := h.contest(h.problem(model.DifficultyEasy))
	var players []string
	for range 3 {
		p := h.player()
		h.join(c.ID, p, model.ModeLegend)
		players = append(players, p)
	}
	h.status(c.ID, model.ContestLive)
	seedBoard(h, c.ID, players)
	first := h.status(c.ID, model.ContestEnded)
	h.notifier.reset()

	again, err := h.contests.Finalize(h.ctx, "organizer", model.RoleOrganizer, c.ID)
	require.NoError(t, err)
	assert.False(t, again.First)

	if diff := cmp.Diff(first.Finalized.Ranks, again.Ranks, cmpopts.IgnoreFields(FinalRank{}, "BonusGranted")); diff != "" {
		t.Errorf("ranks changed (-first +again):\n%s", diff)
	}
	for _, r := range again.Ranks {
		assert.False(t, r.BonusGranted)
	}
	assert.Equal(t, []int{500, 400, 300}, rankBonuses(h, players, c.ID))
	assert.Equal(t, 1, h.playerRow(players[0]).TotalWins)
	assert.Empty(t, h.notifier.types())

	for _, pid := range players {
		report, err := h.ledger.Reconcile(h.ctx, pid)
		require.NoError(t, err)
		assert.True(t, report.Consistent(), "player %s drift %d", pid, report.Drift)
	}
}

func TestFinalize_EmptyContest(t *testing.T) {
	h := newHarness(t)
	c := h.contest(h.problem(model.DifficultyEasy))
	change := h.status(c.ID, model.ContestEnded)
	require.NotNil(t, change.Finalized)
	assert.Empty(t, change.Finalized.Ranks)
	assert.Empty(t, change.Finalized.WinnerIDs)
}

func TestChangeStatus_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []model.ContestStatus
		to      string
		wantErr error
		want    string
	}{
		{name: "forward skip", path: nil, to: "LIVE", want: "apply"},
		{name: "same status", path: []model.ContestStatus{model.ContestUpcoming}, to: "UPCOMING", want: "noop"},
		{name: "backward", path: []model.ContestStatus{model.ContestUpcoming, model.ContestLive}, to: "UPCOMING", wantErr: common.ErrValidation},
		{name: "cancel live", path: []model.ContestStatus{model.ContestLive}, to: "cancelled", want: "apply"},
		{name: "cancelled is terminal", path: []model.ContestStatus{model.ContestCancelled}, to: "LIVE", wantErr: common.ErrValidation},
		{name: "ended cannot be cancelled", path: []model.ContestStatus{model.ContestEnded}, to: "CANCELLED", wantErr: common.ErrValidation},
		{name: "unknown status", to: "PAUSED", wantErr: common.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			c, err := h.contests.CreateContest(h.ctx, "org", CreateContestRequest{Title: "Weekly " + tt.name})
			require.NoError(t, err)
			for _, s := range tt.path {
				h.status(c.ID, s)
			}
			change, err := h.contests.ChangeStatus(h.ctx, "org", model.RoleOrganizer, c.ID, tt.to)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, change.Transition)
		})
	}
}

func TestJoinContest(t *testing.T) {
	h := newHarness(t)
	open := h.contest(h.problem(model.DifficultyEasy))

	draft, err := h.contests.CreateContest(h.ctx, "org", CreateContestRequest{Title: "Draft round"})
	require.NoError(t, err)

	private, err := h.contests.CreateContest(h.ctx, "org", CreateContestRequest{Title: "Invitational", IsPublic: ptr(false)})
	require.NoError(t, err)
	require.NotNil(t, private.InviteCode)
	assert.Len(t, *private.InviteCode, inviteCodeLength)
	h.status(private.ID, model.ContestUpcoming)

	t.Run("defaults to preferred mode and grants join xp", func(t *testing.T) {
		p := h.player()
		h.notifier.reset()
		cp, err := h.contests.JoinContest(h.ctx, p, open.ID, JoinContestRequest{})
		require.NoError(t, err)
		assert.Equal(t, model.DefaultMode, cp.Mode)

		player := h.playerRow(p)
		assert.Equal(t, 50, player.XP)
		assert.Equal(t, 1, player.TotalContests)
		assert.NotNil(t, player.LastContestAt)
		assert.Contains(t, h.notifier.types(), model.EventPlayerJoinedContest)

		stored, err := h.store.Contests().FindByID(h.ctx, nil, open.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.ParticipantCount)

		_, err = h.contests.JoinContest(h.ctx, p, open.ID, JoinContestRequest{})
		require.ErrorIs(t, err, common.ErrConflict)
		assert.Equal(t, 50, h.playerRow(p).XP)
	})

	errCases := []struct {
		name      string
		contestID string
		req       JoinContestRequest
		want      error
	}{
		{name: "missing contest", contestID: "nope", want: common.ErrNotFound},
		{name: "draft contest", contestID: draft.ID, want: common.ErrValidation},
		{name: "wrong invite code", contestID: private.ID, req: JoinContestRequest{InviteCode: "WRONG123"}, want: common.ErrForbidden},
		{name: "bad mode", contestID: open.ID, req: JoinContestRequest{Mode: "turbo"}, want: common.ErrValidation},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.contests.JoinContest(h.ctx, h.player(), tc.contestID, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("private with invite code", func(t *testing.T) {
		cp, err := h.contests.JoinContest(h.ctx, h.player(), private.ID, JoinContestRequest{InviteCode: *private.InviteCode, Mode: "legend"})
		require.NoError(t, err)
		assert.Equal(t, model.ModeLegend, cp.Mode)
	})
}

func TestUpdateContest(t *testing.T) {
	h := newHarness(t)
	c, err := h.contests.CreateContest(h.ctx, "org", CreateContestRequest{
		Title:     "Autumn Open",
		StartTime: "2026-11-01T18:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "autumn-open", c.Slug)
	assert.Equal(t, model.DefaultContestDurationMins, c.DurationMins)

	updated, err := h.contests.UpdateContest(h.ctx, "org", model.RoleOrganizer, c.ID, UpdateContestRequest{
		DurationMins:      ptr(120),
		LeaderboardFrozen: ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 11, 1, 20, 0, 0, 0, time.UTC), updated.EndTime)
	assert.True(t, updated.LeaderboardFrozen)

	_, err = h.contests.UpdateContest(h.ctx, "org", model.RoleOrganizer, c.ID, UpdateContestRequest{ProblemIDs: ptr([]string{"missing"})})
	require.ErrorIs(t, err, common.ErrValidation)

	h.status(c.ID, model.ContestCancelled)
	_, err = h.contests.UpdateContest(h.ctx, "org", model.RoleOrganizer, c.ID, UpdateContestRequest{Title: ptr("Renamed")})
	require.ErrorIs(t, err, common.ErrValidation)

	dup, err := h.contests.CreateContest(h.ctx, "org", CreateContestRequest{Title: "Autumn Open"})
	require.NoError(t, err)
	assert.NotEqual(t, c.Slug, dup.Slug)
}

func TestContestManagement_OwnerOrAdmin(t *testing.T) {
	h := newHarness(t)
	c, err := h.contests.CreateContest(h.ctx, "org-a", CreateContestRequest{Title: "Owned Round"})
	require.NoError(t, err)

	_, err = h.contests.UpdateContest(h.ctx, "org-b", model.RoleOrganizer, c.ID, UpdateContestRequest{Title: ptr("Hijacked")})
	require.ErrorIs(t, err, common.ErrForbidden)
	_, err = h.contests.ChangeStatus(h.ctx, "org-b", model.RoleOrganizer, c.ID, "CANCELLED")
	require.ErrorIs(t, err, common.ErrForbidden)
	_, err = h.contests.Finalize(h.ctx, "org-b", model.RoleOrganizer, c.ID)
	require.ErrorIs(t, err, common.ErrForbidden)
	_, err = h.contests.ChangeStatus(h.ctx, "org-a", model.RolePlayer, c.ID, "UPCOMING")
	require.ErrorIs(t, err, common.ErrForbidden, "role must still be staff")

	stored, err := h.store.Contests().FindByID(h.ctx, nil, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Owned Round", stored.Title)
	assert.Equal(t, model.ContestDraft, stored.Status)

	updated, err := h.contests.UpdateContest(h.ctx, "org-a", model.RoleOrganizer, c.ID, UpdateContestRequest{Title: ptr("Owned Round II")})
	require.NoError(t, err)
	assert.Equal(t, "Owned Round II", updated.Title)

	change, err := h.contests.ChangeStatus(h.ctx, "admin", model.RoleAdmin, c.ID, "CANCELLED")
	require.NoError(t, err)
	assert.Equal(t, model.ContestCancelled, change.Contest.Status)
}

func TestContestProblems(t *testing.T) {
	h := newHarness(t)
	easy, hard := h.problem(model.DifficultyEasy), h.problem(model.DifficultyHard)
	c := h.contest(easy, hard)
	p := h.player()

	_, err := h.contests.ContestProblems(h.ctx, c.ID, p, model.RolePlayer)
	require.ErrorIs(t, err, common.ErrForbidden)

	staff, err := h.contests.ContestProblems(h.ctx, c.ID, "", model.RoleOrganizer)
	require.NoError(t, err)
	assert.Len(t, staff, 2)

	h.status(c.ID, model.ContestLive)
	problems, err := h.contests.ContestProblems(h.ctx, c.ID, p, model.RolePlayer)
	require.NoError(t, err)
	require.Len(t, problems, 2)
	assert.Equal(t, easy.ID, problems[0].ID)
	assert.Equal(t, hard.ID, problems[1].ID)
}

func TestGetAndListContests(t *testing.T) {
	h := newHarness(t)
	private, err := h.contests.CreateContest(h.ctx, "org", CreateContestRequest{Title: "Secret Sprint", IsPublic: ptr(false)})
	require.NoError(t, err)

	_, err = h.contests.GetContest(h.ctx, private.Slug, "someone", model.RolePlayer)
	require.ErrorIs(t, err, common.ErrNotFound, "drafts are hidden from players")

	h.status(private.ID, model.ContestUpcoming)
	got, err := h.contests.GetContest(h.ctx, private.ID, "someone", model.RolePlayer)
	require.NoError(t, err)
	assert.Nil(t, got.InviteCode)

	own, err := h.contests.GetContest(h.ctx, private.Slug, "org", model.RoleOrganizer)
	require.NoError(t, err)
	assert.NotNil(t, own.InviteCode)

	for i := range 3 {
		c, err := h.contests.CreateContest(h.ctx, "org", CreateContestRequest{Title: fmt.Sprintf("Round %d", i)})
		require.NoError(t, err)
		h.status(c.ID, model.ContestUpcoming)
	}
	page, err := h.contests.ListContests(h.ctx, "upcoming", model.RolePlayer, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total, "private contests are not listed publicly")

	_, err = h.contests.ListContests(h.ctx, "someday", model.RolePlayer, 1, 10)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestParseStartTime(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 15, 30, 0, time.UTC)

	got, err := ParseStartTime("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 18, 9, 15, 0, 0, time.UTC), got)

	got, err = ParseStartTime("2026-10-20T18:00:00+02:00", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 20, 16, 0, 0, 0, time.UTC), got)

	got, err = ParseStartTime("tomorrow at 6pm", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC), got)

	_, err = ParseStartTime("whenever", now)
	require.ErrorIs(t, err, common.ErrValidation)
}
