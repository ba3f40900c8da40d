package service

import (
	"testing"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type issuedToken struct {
	userID, role, playerID string
}

func TestAuthService(t *testing.T) {
	h := newHarness(t)
	var issued []issuedToken
	auth := NewAuthService(h.store.Users(), h.store.Players(), h.store, h.rules.Levels, func(userID, role, playerID string) (string, error) {
		issued = append(issued, issuedToken{userID, role, playerID})
		return "token-" + userID, nil
	})

	resp, err := auth.Signup(h.ctx, SignupRequest{Name: "Ada", Email: " Ada@Example.com ", Password: "correct-horse"})
	require.NoError(t, err)
	require.NotNil(t, resp.Player)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.Empty(t, resp.User.HashedPassword)
	assert.Equal(t, model.DefaultMode, resp.Player.PreferredMode)
	assert.Equal(t, 1, resp.Player.Level)
	assert.Equal(t, "token-"+resp.User.ID, resp.Token)
	assert.Equal(t, issuedToken{resp.User.ID, model.RolePlayer, resp.Player.ID}, issued[0])

	_, err = auth.Signup(h.ctx, SignupRequest{Name: "Ada 2", Email: "ada@example.com", Password: "correct-horse"})
	require.ErrorIs(t, err, common.ErrConflict)

	org, err := auth.Signup(h.ctx, SignupRequest{Name: "Org", Email: "org@example.com", Password: "organizer-pw", Role: "organizer"})
	require.NoError(t, err)
	assert.Nil(t, org.Player)

	_, err = auth.Signup(h.ctx, SignupRequest{Name: "Root", Email: "root@example.com", Password: "admin-password", Role: "ADMIN"})
	require.ErrorIs(t, err, common.ErrForbidden)
	_, err = auth.Signup(h.ctx, SignupRequest{Name: "Short", Email: "short@example.com", Password: "short"})
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = auth.Signup(h.ctx, SignupRequest{Name: "Bad", Email: "not-an-email", Password: "long-enough"})
	require.ErrorIs(t, err, common.ErrValidation)

	login, err := auth.Login(h.ctx, LoginRequest{Email: "ADA@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	require.NotNil(t, login.Player)
	assert.Equal(t, resp.Player.ID, login.Player.ID)

	_, err = auth.Login(h.ctx, LoginRequest{Email: "ada@example.com", Password: "wrong-horse"})
	require.ErrorIs(t, err, common.ErrUnauthorized)
	_, err = auth.Login(h.ctx, LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	require.ErrorIs(t, err, common.ErrUnauthorized)

	me, err := auth.Me(h.ctx, resp.User.ID, false)
	require.NoError(t, err)
	assert.Empty(t, me.Token)
	assert.Empty(t, me.User.HashedPassword)
	assert.Equal(t, resp.Player.ID, me.Player.ID)

	issued = nil
	refreshed, err := auth.Me(h.ctx, org.User.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "token-"+org.User.ID, refreshed.Token)
	assert.Equal(t, []issuedToken{{org.User.ID, model.RoleOrganizer, ""}}, issued)

	_, err = auth.Me(h.ctx, "missing", false)
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestProblemService(t *testing.T) {
	h := newHarness(t)

	p, err := h.problems.CreateProblem(h.ctx, "author", CreateProblemRequest{
		Title:       "Two Sum",
		Description: "Find two numbers.",
		Difficulty:  "easy",
		Tags:        []string{"Arrays", "hash map", "arrays"},
	})
	require.NoError(t, err)
	assert.Equal(t, "two-sum", p.Slug)
	assert.Equal(t, model.DifficultyEasy, p.Difficulty)
	assert.Equal(t, 100, p.Points)
	assert.Equal(t, []string{"arrays", "hash-map"}, p.Tags)
	assert.Equal(t, defaultTimeLimitMs, p.TimeLimitMs)

	again, err := h.problems.CreateProblem(h.ctx, "author", CreateProblemRequest{Title: "Two Sum", Description: "Again.", Difficulty: "HARD", Points: 250})
	require.NoError(t, err)
	assert.NotEqual(t, p.Slug, again.Slug)
	assert.Equal(t, 250, again.Points)

	_, err = h.problems.CreateProblem(h.ctx, "author", CreateProblemRequest{Title: "X", Description: "Y", Difficulty: "extreme"})
	require.ErrorIs(t, err, common.ErrValidation)

	got, err := h.problems.GetProblem(h.ctx, "two-sum")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	page, err := h.problems.ListProblems(h.ctx, 1, 10, "Easy", []string{"arrays"}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = h.problems.ListProblems(h.ctx, 1, 10, "trivial", nil, "")
	require.ErrorIs(t, err, common.ErrValidation)
}
