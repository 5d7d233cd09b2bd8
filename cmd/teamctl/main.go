// Command teamctl is the GBFC roster operator CLI.
//
// Usage:
//
//	teamctl migrate up
//	teamctl migrate down --steps 1
//	teamctl snapshot --owner <id>
//	teamctl seed --file roster.yaml --owner <id>
//	teamctl team create --name Falcons --owner <id>
//	teamctl player add --team <id> --name Ana --goals 2 --owner <id>
//	teamctl match add --team <id> --opponent Hawks --date 2024-06-01 --time 18:30 --owner <id>
//	teamctl training add --team <id> --date 2024-05-20 --attendee <id> --attendee <id> --owner <id>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Dilbarpun07/GBFC-website/internal/backend"
	"github.com/Dilbarpun07/GBFC-website/internal/config"
	"github.com/Dilbarpun07/GBFC-website/internal/db"
	"github.com/Dilbarpun07/GBFC-website/internal/maintenance"
	"github.com/Dilbarpun07/GBFC-website/internal/model"
	"github.com/Dilbarpun07/GBFC-website/internal/notifications"
	"github.com/Dilbarpun07/GBFC-website/internal/repository"
	"github.com/Dilbarpun07/GBFC-website/internal/seed"
	"github.com/Dilbarpun07/GBFC-website/internal/syncer"
)

// Logs go to stderr so JSON output on stdout stays clean.
var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Session flags shared by every command that talks to the store.
var (
	ownerID     string
	accessToken string
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "teamctl",
		Short:         "GBFC roster operator CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&ownerID, "owner", os.Getenv("GBFC_OWNER_ID"), "Principal id the session is established for (env GBFC_OWNER_ID)")
	root.PersistentFlags().StringVar(&accessToken, "token", os.Getenv("GBFC_ACCESS_TOKEN"), "Access token forwarded to the REST store (env GBFC_ACCESS_TOKEN)")

	root.AddCommand(migrateCmd())
	root.AddCommand(snapshotCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(teamCmd())
	root.AddCommand(playerCmd())
	root.AddCommand(matchCmd())
	root.AddCommand(trainingCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the Postgres schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			if err := db.MigrateUp(url); err != nil {
				return err
			}
			return printVersion(url)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			if err := db.MigrateDown(url, steps); err != nil {
				return err
			}
			return printVersion(url)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			return printVersion(url)
		},
	})
	return cmd
}

func databaseURL() (string, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		url = os.Getenv("SUPABASE_DB_URL")
	}
	if url == "" {
		return "", errors.New("DATABASE_URL is required")
	}
	return url, nil
}

func printVersion(url string) error {
	version, dirty, err := db.MigrationVersion(url)
	if err != nil {
		return err
	}
	logger.Info("Schema version", "version", version, "dirty", dirty)
	return nil
}

// --------------------------------------------------------------------------
// snapshot / seed commands
// --------------------------------------------------------------------------

func snapshotCmd() *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Load all collections for --owner and print them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSync(func(ctx context.Context, s *syncer.Synchronizer) error {
				snap := s.Snapshot()
				if summary {
					return printJSON(snap.Summary())
				}
				return printJSON(snap)
			})
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "Print counts only")
	return cmd
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create teams, players, matches and sessions from a roster file",
		RunE: func(cmd *cobra.Command, args []string) error {
			roster, err := seed.LoadFile(file)
			if err != nil {
				return err
			}
			return runWithSync(func(ctx context.Context, s *syncer.Synchronizer) error {
				start := time.Now()
				result := seed.Apply(ctx, s, roster, ownerID, logger)
				logger.Info("Seed finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"summary", result.Summary())
				for _, e := range result.Errors {
					logger.Warn("Seed error", "error", e)
				}
				if err := maintenance.Reconcile(ctx, s, logger); err != nil {
					return err
				}
				if len(result.Errors) > 0 {
					return fmt.Errorf("seed completed with %d error(s)", len(result.Errors))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "roster.yaml", "Roster YAML file")
	return cmd
}

// --------------------------------------------------------------------------
// entity commands
// --------------------------------------------------------------------------

func teamCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "team", Short: "Manage teams"}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a team owned by --owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSync(func(ctx context.Context, s *syncer.Synchronizer) error {
				team, err := s.CreateTeam(ctx, name, ownerID)
				if err != nil {
					return err
				}
				return printJSON(team)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "Team name")

	rename := &cobra.Command{
		Use:   "rename <id>",
		Short: "Rename a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSync(func(ctx context.Context, s *syncer.Synchronizer) error {
				changed, err := s.EditTeam(ctx, args[0], name)
				if err != nil {
					return err
				}
				return printJSON(map[string]bool{"changed": changed})
			})
		},
	}
	rename.Flags().StringVar(&name, "name", "", "New team name")

	cmd.AddCommand(create, rename, deleteCmd("Delete a team and everything that references it",
		func(ctx context.Context, s *syncer.Synchronizer, id string) error { return s.DeleteTeam(ctx, id) }))
	return cmd
}

func playerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "player", Short: "Manage players"}

	var np model.NewPlayer
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a player to a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSync(func(ctx context.Context, s *syncer.Synchronizer) error {
				p, err := s.AddPlayer(ctx, np)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	add.Flags().StringVar(&np.TeamID, "team", "", "Team id")
	add.Flags().StringVar(&np.Name, "name", "", "Player name")
	add.Flags().IntVar(&np.MatchesPlayed, "matches-played", 0, "Matches played")
	add.Flags().IntVar(&np.TrainingsAttended, "trainings-attended", 0, "Training sessions attended")
	add.Flags().IntVar(&np.Goals, "goals", 0, "Goals")
	add.Flags().IntVar(&np.Assists, "assists", 0, "Assists")

	cmd.AddCommand(add, deleteCmd("Delete a player",
		func(ctx context.Context, s *syncer.Synchronizer, id string) error { return s.DeletePlayer(ctx, id) }))
	return cmd
}

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "match", Short: "Manage matches"}

	var nm model.NewMatch
	add := &cobra.Command{
		Use:   "add",
		Short: "Schedule a match",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSync(func(ctx context.Context, s *syncer.Synchronizer) error {
				m, err := s.AddMatch(ctx, nm)
				if err != nil {
					return err
				}
				return printJSON(m)
			})
		},
	}
	add.Flags().StringVar(&nm.TeamID, "team", "", "Team id")
	add.Flags().StringVar(&nm.Opponent, "opponent", "", "Opponent name")
	add.Flags().StringVar(&nm.Date, "date", "", "Date (YYYY-MM-DD)")
	add.Flags().StringVar(&nm.Time, "time", "", "Kick-off time (HH:MM)")
	add.Flags().StringVar(&nm.Location, "location", "", "Location")

	cmd.AddCommand(add, deleteCmd("Delete a match",
		func(ctx context.Context, s *syncer.Synchronizer, id string) error { return s.DeleteMatch(ctx, id) }))
	return cmd
}

func trainingCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "training", Short: "Manage training sessions"}

	var ns model.NewTrainingSession
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a training session and count attendance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSync(func(ctx context.Context, s *syncer.Synchronizer) error {
				ts, err := s.AddTrainingSession(ctx, ns)
				var partial *syncer.PartialIncrementError
				if errors.As(err, &partial) {
					for _, id := range partial.PlayerIDs() {
						logger.Warn("Attendance not updated", "player", id, "error", partial.Failed[id])
					}
				} else if err != nil {
					return err
				}
				return printJSON(ts)
			})
		},
	}
	add.Flags().StringVar(&ns.TeamID, "team", "", "Team id")
	add.Flags().StringVar(&ns.Date, "date", "", "Date (YYYY-MM-DD)")
	add.Flags().StringSliceVar(&ns.AttendedPlayerIDs, "attendee", nil, "Attending player id (repeatable)")

	cmd.AddCommand(add, deleteCmd("Delete a training session (attendance counters are kept)",
		func(ctx context.Context, s *syncer.Synchronizer, id string) error { return s.DeleteTrainingSession(ctx, id) }))
	return cmd
}

func deleteCmd(short string, del func(ctx context.Context, s *syncer.Synchronizer, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSync(func(ctx context.Context, s *syncer.Synchronizer) error {
				return del(ctx, s, args[0])
			})
		},
	}
}

// --------------------------------------------------------------------------
// helpers
// --------------------------------------------------------------------------

// runWithSync opens the configured store and establishes a session for
// --owner before calling fn.
func runWithSync(fn func(ctx context.Context, s *syncer.Synchronizer) error) error {
	if ownerID == "" {
		return errors.New("--owner is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	s := syncer.New(syncer.Deps{
		Repos:    repository.NewSet(store.Gateway),
		Notifier: notifications.NewLogNotifier(logger),
		Logger:   logger,
	}, syncer.Options{
		IncrementMode:    cfg.AttendanceIncrementMode,
		IncrementWorkers: cfg.AttendanceWorkers,
	})
	if err := s.Establish(ctx, syncer.Session{PrincipalID: ownerID, AccessToken: accessToken}); err != nil {
		return fmt.Errorf("establish session: %w", err)
	}
	defer s.End()

	return fn(ctx, s)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
