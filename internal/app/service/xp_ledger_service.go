package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"tle_arena/internal/common"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository"
	"tle_arena/internal/domain/scoring"

	"github.com/google/uuid"
)

const ledgerServiceName = "XPLedgerService"

// XPLedgerService is the only writer of player XP, level and tier.
type XPLedgerService struct {
	players  repository.PlayerRepository
	ledger   repository.XPLedgerRepository
	tx       repository.Transactor
	rules    scoring.Rules
	notifier Notifier
	tel      Telemetry
	now      func() time.Time
}

func NewXPLedgerService(
	players repository.PlayerRepository,
	ledger repository.XPLedgerRepository,
	tx repository.Transactor,
	rules scoring.Rules,
	notifier Notifier,
	tel Telemetry,
) *XPLedgerService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &XPLedgerService{
		players:  players,
		ledger:   ledger,
		tx:       tx,
		rules:    rules,
		notifier: notifier,
		tel:      tel.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type Grant struct {
	PlayerID   string
	ContestID  *string
	Source     model.XPSource
	BaseXP     int
	Multiplier float64
}

type GrantResult struct {
	Entry    model.XPLedgerEntry `json:"entry"`
	Granted  bool                `json:"granted"` // false when GrantOnce found an existing entry
	OldXP    int                 `json:"old_xp"`
	NewXP    int                 `json:"new_xp"`
	OldLevel scoring.Level       `json:"old_level"`
	NewLevel scoring.Level       `json:"new_level"`
	Events   []model.Event       `json:"-"`
}

// Grant appends one ledger entry in its own transaction and returns the final XP.
func (s *XPLedgerService) Grant(ctx context.Context, g Grant) (*GrantResult, error) {
	return s.grant(ctx, "Grant", g, false)
}

// GrantOnce is Grant that does nothing when (player, contest, source) was already granted.
func (s *XPLedgerService) GrantOnce(ctx context.Context, g Grant) (*GrantResult, error) {
	return s.grant(ctx, "GrantOnce", g, true)
}

func (s *XPLedgerService) grant(ctx context.Context, op string, g Grant, once bool) (*GrantResult, error) {
	res, err := withTelemetry(s.tel, ctx, ledgerServiceName, op, g.PlayerID, func(ctx context.Context) (*GrantResult, error) {
		var res GrantResult
		err := s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			var err error
			if once {
				res, err = s.GrantOnceTx(ctx, tx, g)
			} else {
				res, err = s.GrantTx(ctx, tx, g)
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		return &res, nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, res.Events...)
	return res, nil
}

// GrantTx appends the entry, bumps the player's XP counter and re-resolves the
// level inside the caller's transaction. Events are returned for the caller to
// publish after commit.
func (s *XPLedgerService) GrantTx(ctx context.Context, tx *sql.Tx, g Grant) (GrantResult, error) {
	return s.grantTx(ctx, tx, g, false)
}

func (s *XPLedgerService) GrantOnceTx(ctx context.Context, tx *sql.Tx, g Grant) (GrantResult, error) {
	return s.grantTx(ctx, tx, g, true)
}

func (s *XPLedgerService) grantTx(ctx context.Context, tx *sql.Tx, g Grant, once bool) (GrantResult, error) {
	finalXP := scoring.FinalXP(g.BaseXP, g.Multiplier)

	player, err := s.players.LockByID(ctx, tx, g.PlayerID)
	if err != nil {
		return GrantResult{}, fmt.Errorf("lock player %s: %w", g.PlayerID, err)
	}
	res := GrantResult{
		Entry: model.XPLedgerEntry{
			ID:         uuid.NewString(),
			PlayerID:   g.PlayerID,
			ContestID:  g.ContestID,
			Source:     g.Source,
			BaseXP:     g.BaseXP,
			Multiplier: g.Multiplier,
			FinalXP:    finalXP,
			EarnedAt:   s.now(),
		},
		OldXP:    player.XP,
		NewXP:    player.XP,
		OldLevel: scoring.Level{Level: player.Level, Tier: player.Tier, SubRank: player.SubRank},
	}
	res.NewLevel = res.OldLevel

	if once {
		inserted, err := s.ledger.AppendOnce(ctx, tx, &res.Entry)
		if err != nil {
			return GrantResult{}, err
		}
		if !inserted {
			return res, nil
		}
	} else if err := s.ledger.Append(ctx, tx, &res.Entry); err != nil {
		return GrantResult{}, err
	}
	res.Granted = true

	newXP, err := s.players.AddXP(ctx, tx, g.PlayerID, finalXP)
	if err != nil {
		return GrantResult{}, fmt.Errorf("add xp to player %s: %w", g.PlayerID, err)
	}
	if newXP < 0 {
		panic(fmt.Sprintf("xp ledger: player %s xp went negative (%d)", g.PlayerID, newXP))
	}
	res.NewXP = newXP

	lvl := s.rules.Levels.LevelFor(newXP)
	res.NewLevel = lvl
	if lvl.Level != player.Level || lvl.Tier != player.Tier || lvl.SubRank != player.SubRank {
		if err := s.players.UpdateLevel(ctx, tx, g.PlayerID, lvl.Level, lvl.Tier, lvl.SubRank); err != nil {
			return GrantResult{}, fmt.Errorf("update level for player %s: %w", g.PlayerID, err)
		}
	}
	if lvl.Level > player.Level {
		res.Events = append(res.Events, model.NewEvent(model.EventPlayerLevelUp, model.LevelUpPayload{
			PlayerID: g.PlayerID,
			OldLevel: player.Level,
			NewLevel: lvl.Level,
			Tier:     lvl.Tier,
			SubRank:  lvl.SubRank,
		}))
		if lvl.Tier != player.Tier {
			res.Events = append(res.Events, model.NewEvent(model.EventPlayerTierUpgraded, model.TierUpgradedPayload{
				PlayerID: g.PlayerID,
				OldTier:  player.Tier,
				NewTier:  lvl.Tier,
			}))
		}
	}

	s.tel.Metrics.RecordXPGranted(ctx, string(g.Source), finalXP)
	return res, nil
}

type ReconcileReport struct {
	PlayerID  string `json:"player_id"`
	CounterXP int    `json:"counter_xp"`
	LedgerXP  int    `json:"ledger_xp"`
	Drift     int    `json:"drift"`
}

func (r ReconcileReport) Consistent() bool { return r.Drift == 0 }

// Reconcile compares the player's XP counter with the sum of their ledger entries.
func (s *XPLedgerService) Reconcile(ctx context.Context, playerID string) (*ReconcileReport, error) {
	return withTelemetry(s.tel, ctx, ledgerServiceName, "Reconcile", playerID, func(ctx context.Context) (*ReconcileReport, error) {
		var report *ReconcileReport
		err := s.tx.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			player, err := s.players.LockByID(ctx, tx, playerID)
			if err != nil {
				return err
			}
			sum, err := s.ledger.SumByPlayer(ctx, tx, playerID)
			if err != nil {
				return err
			}
			report = &ReconcileReport{PlayerID: playerID, CounterXP: player.XP, LedgerXP: sum, Drift: player.XP - sum}
			return nil
		})
		return report, err
	})
}

// ReconcileAll returns only the players whose counter drifted from the ledger.
func (s *XPLedgerService) ReconcileAll(ctx context.Context) ([]ReconcileReport, error) {
	ids, err := s.players.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	var drifted []ReconcileReport
	for _, id := range ids {
		report, err := s.Reconcile(ctx, id)
		if err != nil {
			return nil, err
		}
		if !report.Consistent() {
			drifted = append(drifted, *report)
		}
	}
	return drifted, nil
}

// History pages the player's ledger, newest first.
func (s *XPLedgerService) History(ctx context.Context, playerID string, page, limit int) (*common.Page[model.XPLedgerEntry], error) {
	entries, total, err := s.ledger.ListByPlayer(ctx, playerID, limit, scoring.Offset(page, limit))
	if err != nil {
		return nil, err
	}
	return &common.Page[model.XPLedgerEntry]{Items: entries, Total: total, Page: page, Limit: limit}, nil
}
