package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"talentflow/internal/auth"
	"talentflow/internal/config"
	"talentflow/internal/database"
	"talentflow/internal/seed"
	"talentflow/internal/store"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Maintenance commands for the TalentFlow database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSeedCmd(), newResetCmd(), newCheckCmd(), newTokenCmd())
	return root
}

// openStore 按环境变量配置连接数据库并迁移表结构。管理命令不注入故障。
func openStore() (*store.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("init database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return store.New(db, store.WithLogger(logger)), cfg, nil
}

type seedFlags struct {
	jobs, candidates, assessments int
	randomSeed                    int64
}

func (f *seedFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.jobs, "jobs", -1, "number of jobs (default from SEED_JOBS)")
	cmd.Flags().IntVar(&f.candidates, "candidates", -1, "number of candidates (default from SEED_CANDIDATES)")
	cmd.Flags().IntVar(&f.assessments, "assessments", -1, "number of assessments (default from SEED_ASSESSMENTS)")
	cmd.Flags().Int64Var(&f.randomSeed, "random-seed", 0, "random seed; 0 uses SEED_RANDOM_SEED or the clock")
}

func (f seedFlags) dataset(cfg config.SeedConfig) seed.Dataset {
	counts := seed.Counts{Jobs: cfg.Jobs, Candidates: cfg.Candidates, Assessments: cfg.Assessments}
	if f.jobs >= 0 {
		counts.Jobs = f.jobs
	}
	if f.candidates >= 0 {
		counts.Candidates = f.candidates
	}
	if f.assessments >= 0 {
		counts.Assessments = f.assessments
	}
	rs := f.randomSeed
	if rs == 0 {
		rs = cfg.RandomSeed
	}
	if rs == 0 {
		rs = time.Now().UnixNano()
	}
	return seed.Generate(rand.New(rand.NewSource(rs)), counts, time.Now())
}

func newSeedCmd() *cobra.Command {
	var flags seedFlags
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate an empty database with demo data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			seeded, err := s.EnsureSeeded(cmd.Context(), func() seed.Dataset { return flags.dataset(cfg.Seed) })
			if err != nil {
				return err
			}
			if seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "database seeded")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "database already has jobs; nothing to do")
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newResetCmd() *cobra.Command {
	var (
		flags seedFlags
		yes   bool
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all data and reseed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset deletes every record; pass --yes to confirm")
			}
			s, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Reset(cmd.Context(), flags.dataset(cfg.Seed)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database reset")
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that job orders form 1..N",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			return runCheck(cmd.Context(), cmd, s, repair)
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "renumber jobs when orders are not dense")
	return cmd
}

func runCheck(ctx context.Context, cmd *cobra.Command, s *store.Store, repair bool) error {
	out := cmd.OutOrStdout()
	report, err := s.Jobs().CheckOrder(ctx)
	if err != nil {
		return err
	}
	if report.Dense() {
		fmt.Fprintf(out, "ok: %d jobs, orders 1..%d\n", report.Total, report.Total)
		return nil
	}
	fmt.Fprintf(out, "orders not dense: %d jobs, missing %v, extra %v\n", report.Total, report.Missing, report.Extra)
	if !repair {
		return errors.New("job order check failed")
	}

	changed, err := s.Jobs().Normalize(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "renumbered %d jobs\n", changed)
	return nil
}

func newTokenCmd() *cobra.Command {
	var member string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a recruiter token for a team member",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Team.Roster())
			if err != nil {
				return err
			}
			token, err := tokens.Issue(member)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "team member name from TEAM_MEMBERS")
	_ = cmd.MarkFlagRequired("member")
	return cmd
}
