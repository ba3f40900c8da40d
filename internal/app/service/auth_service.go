package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"tle_arena/internal/common"
	"tle_arena/internal/common/security"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository"
	"tle_arena/internal/domain/scoring"

	"github.com/google/uuid"
)

const minPasswordLength = 8

// TokenIssuer signs access tokens.
type TokenIssuer func(userID, role, playerID string) (string, error)

type AuthService struct {
	userRepo   repository.UserRepository
	playerRepo repository.PlayerRepository
	tx         repository.Transactor
	levels     scoring.LevelTable
	issue      TokenIssuer
}

func NewAuthService(userRepo repository.UserRepository, playerRepo repository.PlayerRepository, tx repository.Transactor, levels scoring.LevelTable, issue TokenIssuer) *AuthService {
	if issue == nil {
		issue = security.GenerateToken
	}
	return &AuthService{userRepo: userRepo, playerRepo: playerRepo, tx: tx, levels: levels, issue: issue}
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// Role defaults to PLAYER. Only PLAYER and ORGANIZER can be self-registered.
	Role string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User   *model.User   `json:"user"`
	Player *model.Player `json:"player,omitempty"`
	Token  string        `json:"token,omitempty"`
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, common.Errorf("invalid email: %w", common.ErrValidation)
	}
	if len(req.Password) < minPasswordLength {
		return nil, common.Errorf("password must be at least %d characters: %w", minPasswordLength, common.ErrValidation)
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = model.RolePlayer
	}
	if role != model.RolePlayer && role != model.RoleOrganizer {
		return nil, common.Errorf("role %q cannot be self-registered: %w", req.Role, common.ErrForbidden)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Email:          req.Email,
		HashedPassword: hashedPassword,
		Role:           role,
	}
	var player *model.Player

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return err
		}
		if role != model.RolePlayer {
			return nil
		}
		start := s.levels.LevelFor(0)
		player = &model.Player{
			ID:            uuid.NewString(),
			UserID:        user.ID,
			Level:         start.Level,
			Tier:          start.Tier,
			SubRank:       start.SubRank,
			PreferredMode: model.DefaultMode,
			Status:        model.PlayerStatusActive,
			Name:          &user.Name,
		}
		return s.playerRepo.Create(ctx, tx, player)
	})
	if err != nil {
		// Repo returns common.ErrConflict for a taken email
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.respond(user, player)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}

	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized // Generic message for security
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.ErrUnauthorized
	}

	var player *model.Player
	if user.Role == model.RolePlayer {
		player, err = s.playerRepo.FindByUserID(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load player: %w", err)
		}
	}
	return s.respond(user, player)
}

// Me returns the caller's account and player profile. Refresh also issues a new
// token, picking up role or profile changes made since the last login.
func (s *AuthService) Me(ctx context.Context, userID string, refresh bool) (*AuthResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	var player *model.Player
	if user.Role == model.RolePlayer {
		player, err = s.playerRepo.FindByUserID(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load player: %w", err)
		}
	}
	if refresh {
		return s.respond(user, player)
	}
	user.HashedPassword = ""
	return &AuthResponse{User: user, Player: player}, nil
}

func (s *AuthService) respond(user *model.User, player *model.Player) (*AuthResponse, error) {
	playerID := ""
	if player != nil {
		playerID = player.ID
	}
	token, err := s.issue(user.ID, user.Role, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = ""
	return &AuthResponse{User: user, Player: player, Token: token}, nil
}
