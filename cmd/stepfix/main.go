package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/jorge-barreto/stepfix/internal/config"
	"github.com/jorge-barreto/stepfix/internal/docs"
	"github.com/jorge-barreto/stepfix/internal/logging"
	"github.com/jorge-barreto/stepfix/internal/reconcile"
	"github.com/jorge-barreto/stepfix/internal/report"
	"github.com/jorge-barreto/stepfix/internal/scaffold"
	"github.com/jorge-barreto/stepfix/internal/seed"
	"github.com/jorge-barreto/stepfix/internal/store"
	"github.com/jorge-barreto/stepfix/internal/ux"
)

func main() {
	app := &cli.Command{
		Name:        "stepfix",
		Usage:       "Merge duplicate onboarding steps into their canonical versions",
		Description: "Run 'stepfix docs' for documentation on config, reconciliation, and seeding.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Print what would change without writing"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Config file (default ./stepfix.yaml if present)"},
			&cli.StringFlag{Name: "report", Usage: "Also write the result as JSON to this file"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Debug logging on stderr"},
		},
		Action: reconcileAction,
		Commands: []*cli.Command{
			checkCmd(),
			seedCmd(),
			initCmd(),
			docsCmd(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

// session is the per-invocation state shared by the database commands.
type session struct {
	cfg   *config.Config
	log   *zap.Logger
	store store.Store
}

func (s *session) close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Warn("closing store", zap.Error(err))
		}
	}
	_ = s.log.Sync()
}

func (s *session) canon() store.Canon {
	return store.Canon{Author: s.cfg.CanonicalAuthor, Status: s.cfg.ApprovedStatus}
}

func openSession(ctx context.Context, cmd *cli.Command) (*session, error) {
	log, err := logging.New(cmd.Bool("verbose"))
	if err != nil {
		return nil, err
	}

	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	path, err := config.Resolve(cmd.String("config"), dir)
	if err != nil {
		return nil, fmt.Errorf("locating config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log.Debug("config loaded",
		zap.String("path", path),
		zap.String("database", cfg.Database.Redacted()),
		zap.String("canonical_author", cfg.CanonicalAuthor),
		zap.String("approved_status", cfg.ApprovedStatus))

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Error("opening store", zap.String("database", cfg.Database.Redacted()), zap.Error(err))
		return nil, err
	}
	return &session{cfg: cfg, log: log, store: st}, nil
}

// rerunCommand rebuilds the invocation for the re-run hint, minus --report.
func rerunCommand() string {
	var args []string
	skip := false
	for _, a := range os.Args[1:] {
		switch {
		case skip:
			skip = false
		case a == "--report":
			skip = true
		case strings.HasPrefix(a, "--report="):
		default:
			args = append(args, a)
		}
	}
	return strings.TrimSpace("stepfix " + strings.Join(args, " "))
}

func saveReport(path string, save func(string) error) error {
	if path == "" {
		return nil
	}
	if err := save(path); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func reconcileAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Present() {
		return fmt.Errorf("unknown command %q: run 'stepfix --help'", cmd.Args().First())
	}
	sess, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	r := &reconcile.Runner{
		Repo: sess.store,
		Opts: reconcile.Options{
			DryRun:       cmd.Bool("dry-run"),
			Canon:        sess.canon(),
			Concurrency:  sess.cfg.Concurrency,
			BatchSize:    sess.cfg.BatchSize,
			RerunCommand: rerunCommand(),
		},
		Out: os.Stdout,
		Log: sess.log,
	}
	rep, runErr := r.Run(ctx)
	if err := saveReport(cmd.String("report"), rep.Save); err != nil {
		if runErr == nil {
			return err
		}
		sess.log.Error("writing report", zap.Error(err))
	}
	return runErr
}

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Report duplicate steps and dangling use-case references",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "strict", Usage: "Exit 1 if anything is found"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sess, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			r := &reconcile.Runner{
				Repo: sess.store,
				Opts: reconcile.Options{
					Canon:       sess.canon(),
					Concurrency: sess.cfg.Concurrency,
					BatchSize:   sess.cfg.BatchSize,
				},
				Out: os.Stdout,
				Log: sess.log,
			}
			c, err := r.Check(ctx)
			if err != nil {
				return err
			}
			if err := saveReport(cmd.String("report"), c.Save); err != nil {
				return err
			}
			if cmd.Bool("strict") && !c.Clean() {
				return fmt.Errorf("check found %s, %s and %s",
					ux.Plural(len(c.Pairs), "duplicate"),
					ux.Plural(len(c.Anomalies), "ambiguous title"),
					ux.Plural(len(c.Dangling), "dangling reference"))
			}
			return nil
		},
	}
}

func seedCmd() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Insert canonical steps from a seed file and link them into use cases",
		ArgsUsage: "[file]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				path = scaffold.SeedFile
			}
			f, err := seed.Load(path)
			if err != nil {
				return err
			}

			sess, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			sd := &seed.Seeder{
				Catalog:    sess.store,
				Canon:      sess.canon(),
				ModifiedBy: sess.cfg.ModifiedBy,
				DryRun:     cmd.Bool("dry-run"),
				Out:        os.Stdout,
				Log:        sess.log,
			}
			title := "Seeding " + path
			if sd.DryRun {
				title += " (dry run, nothing written)"
			}
			fmt.Printf("\n%s%s%s\n", ux.Bold, title, ux.Reset)

			res, seedErr := sd.Apply(ctx, f)
			fmt.Println()
			if err := saveReport(cmd.String("report"), func(p string) error { return report.WriteJSON(p, res) }); err != nil {
				if seedErr == nil {
					return err
				}
				sess.log.Error("writing report", zap.Error(err))
			}
			return seedErr
		},
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write example stepfix.yaml and seed.yaml into the current directory",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			return scaffold.Init(os.Stdout, dir)
		},
	}
}

func docsCmd() *cli.Command {
	return &cli.Command{
		Name:      "docs",
		Usage:     "Show documentation",
		ArgsUsage: "[topic]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				fmt.Print("\nAvailable topics:\n\n")
				for _, t := range docs.All() {
					fmt.Printf("  %-14s %s\n", t.Name, t.Summary)
				}
				fmt.Println("\nRun 'stepfix docs <topic>' to read a topic.")
				return nil
			}
			t, err := docs.Get(name)
			if err != nil {
				return err
			}
			fmt.Print(t.Content)
			return nil
		},
	}
}
