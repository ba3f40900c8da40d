package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"tle_arena/internal/app/report"
	"tle_arena/internal/app/service"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository"
	"tle_arena/internal/domain/scoring"

	"github.com/urfave/cli/v2"
)

type stores struct {
	tx           repository.Transactor
	players      repository.PlayerRepository
	ledger       repository.XPLedgerRepository
	contests     repository.ContestRepository
	participants repository.ParticipantRepository
	problems     repository.ProblemRepository
}

type backend struct {
	contests    *service.ContestService
	leaderboard *service.LeaderboardService
	ledger      *service.XPLedgerService
	migrate     func(ctx context.Context) error
	close       func()
}

func newBackend(s stores, rules scoring.Rules, notifier service.Notifier, tel service.Telemetry) *backend {
	ledger := service.NewXPLedgerService(s.players, s.ledger, s.tx, rules, notifier, tel)
	return &backend{
		contests:    service.NewContestService(s.contests, s.participants, s.players, s.problems, ledger, s.tx, rules, notifier, tel),
		leaderboard: service.NewLeaderboardService(s.contests, s.participants, s.players, tel),
		ledger:      ledger,
		migrate:     func(context.Context) error { return errors.New("migrations need a database backend") },
		close:       func() {},
	}
}

type opener func(ctx context.Context, rules scoring.Rules) (*backend, error)

// errDrift makes reconcile exit non-zero when any counter disagrees with its ledger.
var errDrift = cli.Exit("xp counters drifted from the ledger", 2)

func newApp(open opener) *cli.App {
	rulesFlag := &cli.StringFlag{
		Name:    "rules",
		Usage:   "scoring rules YAML file",
		EnvVars: []string{"SCORING_RULES_FILE"},
	}

	// withBackend loads the rules, opens the backend and closes it after fn.
	withBackend := func(fn func(c *cli.Context, b *backend) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			rules, err := scoring.LoadRules(c.String("rules"))
			if err != nil {
				return err
			}
			b, err := open(c.Context, rules)
			if err != nil {
				return err
			}
			defer b.close()
			return fn(c, b)
		}
	}

	return &cli.App{
		Name:  "rankctl",
		Usage: "arena scoring and ranking operations",
		Flags: []cli.Flag{rulesFlag},
		Commands: []*cli.Command{
			{
				Name:  "levels",
				Usage: "print the level table, or resolve --xp to a level",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "xp", Usage: "resolve this XP total", Value: -1},
				},
				Action: func(c *cli.Context) error {
					rules, err := scoring.LoadRules(c.String("rules"))
					if err != nil {
						return err
					}
					if xp := c.Int("xp"); xp >= 0 {
						p := rules.Levels.Progress(xp)
						fmt.Fprintf(c.App.Writer, "xp %d: level %d %s (%s)\n", xp, p.Current.Level, p.Current.SubRank, p.Current.Tier)
						if p.Next != nil {
							fmt.Fprintf(c.App.Writer, "next: level %d at %d xp, %d to go\n", p.Next.Level, p.Next.MinXP, p.XPToNext)
						}
						return nil
					}
					tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "LEVEL\tMIN XP\tTIER\tSUB RANK")
					for _, l := range rules.Levels {
						fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", l.Level, l.MinXP, l.Tier, l.SubRank)
					}
					return tw.Flush()
				},
			},
			{
				Name:  "migrate",
				Usage: "apply the database schema",
				Action: withBackend(func(c *cli.Context, b *backend) error {
					if err := b.migrate(c.Context); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "schema applied")
					return nil
				}),
			},
			{
				Name:      "finalize",
				Usage:     "end a contest, or re-run finalization of an ended one",
				ArgsUsage: "<contest-id>",
				Action: withBackend(func(c *cli.Context, b *backend) error {
					id := c.Args().First()
					if id == "" {
						return cli.Exit("contest id is required", 1)
					}
					// The operator CLI acts with admin rights.
					fin, err := b.contests.Finalize(c.Context, "", model.RoleAdmin, id)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "RANK\tPLAYER\tRATING\tBONUS XP\tGRANTED")
					for _, r := range fin.Ranks {
						fmt.Fprintf(tw, "%d\t%s\t%.3f\t%d\t%t\n", r.Rank, r.PlayerID, r.FinalRating, r.BonusXP, r.BonusGranted)
					}
					if err := tw.Flush(); err != nil {
						return err
					}
					if !fin.First {
						fmt.Fprintln(c.App.Writer, "contest was already finalized; missing bonuses were repaired")
					}
					return nil
				}),
			},
			{
				Name:      "export",
				Usage:     "write contest standings to an xlsx file",
				ArgsUsage: "<contest-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output path (default <slug>-standings.xlsx)"},
				},
				Action: withBackend(func(c *cli.Context, b *backend) error {
					id := c.Args().First()
					if id == "" {
						return cli.Exit("contest id is required", 1)
					}
					data, filename, err := b.leaderboard.ExportStandings(c.Context, id)
					if err != nil {
						return err
					}
					out := c.String("out")
					if out == "" {
						out = filename
					}
					if err := os.WriteFile(out, data, 0o644); err != nil {
						return fmt.Errorf("write %s: %w", out, err)
					}
					fmt.Fprintf(c.App.Writer, "wrote %s (%s)\n", out, report.XLSXContentType)
					return nil
				}),
			},
			{
				Name:  "reconcile",
				Usage: "compare player XP counters with the ledger",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "player", Usage: "check a single player"},
				},
				Action: withBackend(func(c *cli.Context, b *backend) error {
					var reports []service.ReconcileReport
					if id := c.String("player"); id != "" {
						r, err := b.ledger.Reconcile(c.Context, id)
						if err != nil {
							return err
						}
						if !r.Consistent() {
							reports = append(reports, *r)
						}
					} else {
						drifted, err := b.ledger.ReconcileAll(c.Context)
						if err != nil {
							return err
						}
						reports = drifted
					}
					if len(reports) == 0 {
						fmt.Fprintln(c.App.Writer, "all counters match the ledger")
						return nil
					}
					tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "PLAYER\tCOUNTER\tLEDGER\tDRIFT")
					for _, r := range reports {
						fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", r.PlayerID, r.CounterXP, r.LedgerXP, r.Drift)
					}
					if err := tw.Flush(); err != nil {
						return err
					}
					return errDrift
				}),
			},
		},
	}
}
