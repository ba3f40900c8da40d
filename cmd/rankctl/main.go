// Command rankctl is the operator tool for the arena engine: it prints the level
// table, applies the schema, repairs finalization, exports standings and checks
// player XP counters against the ledger.
package main

import (
	"context"
	"log"
	"os"
	"tle_arena/internal/app/notify"
	"tle_arena/internal/app/service"
	"tle_arena/internal/domain/repository"
	"tle_arena/internal/domain/scoring"
	"tle_arena/internal/platform/broker"
	"tle_arena/internal/platform/config"
	"tle_arena/internal/platform/database"
	"tle_arena/internal/platform/telemetry"
)

func main() {
	if err := newApp(openPostgres).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openPostgres builds the backend against the configured database.
func openPostgres(ctx context.Context, rules scoring.Rules) (*backend, error) {
	config.Load()
	cfg := config.AppConfig
	logger := telemetry.NewLoggerTo(os.Stderr, cfg.LogLevel, false)

	db, err := database.Open(ctx, cfg.DBConnStr)
	if err != nil {
		return nil, err
	}
	closers := []func(){func() { db.Close() }}

	var notifier service.Notifier = notify.Discard{}
	if cfg.EventsEnabled {
		pub, err := broker.NewPublisher(cfg.NATSURL, cfg.NATSNKeySeed, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		closers = append(closers, func() { pub.Close() })
		notifier = notify.NewPublisher(pub, logger, telemetry.NoOpMetrics{})
	}

	b := newBackend(stores{
		tx:           repository.NewSQLTransactor(db),
		players:      repository.NewPgPlayerRepository(db),
		ledger:       repository.NewPgXPLedgerRepository(db),
		contests:     repository.NewPgContestRepository(db),
		participants: repository.NewPgParticipantRepository(db),
		problems:     repository.NewPgProblemRepository(db),
	}, rules, notifier, service.Telemetry{Logger: logger})
	b.migrate = func(ctx context.Context) error { return database.Migrate(ctx, db) }
	b.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return b, nil
}
