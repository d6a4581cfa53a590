package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sigfix/internal/config"
	"sigfix/internal/logx"
	"sigfix/internal/pipeline"
	"sigfix/internal/report"
	"sigfix/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:   "sigfix",
		Short: "Turn CI tool findings into reviewed fix pull requests",
	}
	dbPath     string
	configPath string
	dryRun     bool

	historyLimit int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the run history database (SQLite); defaults to pipeline.db_path")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sigfix.yaml", "Path to the YAML config file (optional)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Write fixes and PR descriptions to the dry-run directory instead of GitHub")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(historyCmd)
}

func fatalf(format string, args ...any) {
	logx.Errorf(format, args...)
	os.Exit(1)
}

func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logx.SetLevel(cfg.LogLevel())
	if dbPath == "" {
		dbPath = cfg.Pipeline.DBPath
	}
	return cfg
}

func artifactsDir(cfg *config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Pipeline.ArtifactsDir
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var runCmd = &cobra.Command{
	Use:   "run [artifacts-dir]",
	Short: "Parse CI artifacts, plan fixes and open pull requests",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx, cancel := signalContext()
		defer cancel()

		deps, mode, err := pipeline.HostingFor(cfg, dryRun)
		if err != nil {
			fatalf("Failed to set up code hosting: %v", err)
		}
		store, err := storage.NewSQLiteStore(dbPath)
		if err != nil {
			logx.Warningf("run history disabled: %v", err)
		} else {
			defer store.Close()
			deps.Store = store
		}

		dir := artifactsDir(cfg, args)
		fmt.Printf("📂 Scanning artifacts: %s (mode: %s)\n", dir, mode)
		out, err := pipeline.New(cfg, mode, deps).Run(ctx, dir)
		if out != nil && out.Report != nil && len(out.Report.Stages) > 0 {
			printSummary(out.Report)
			if out.ReportPath != "" {
				fmt.Printf("📝 Run report: %s\n", out.ReportPath)
			}
		}
		if err != nil {
			fatalf("Run failed: %v", err)
		}
		if out.Report.Summary.PlansFailed > 0 || out.Report.Summary.PRsFailed > 0 {
			os.Exit(2)
		}
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse [artifacts-dir]",
	Short: "Parse and prioritize CI artifacts without planning fixes",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx, cancel := signalContext()
		defer cancel()

		dir := artifactsDir(cfg, args)
		rep := report.NewRunReport("parse", dir)
		signals, groups, err := pipeline.New(cfg, "parse", pipeline.Deps{}).Collect(ctx, dir, rep)
		if err != nil {
			fatalf("Parse failed: %v", err)
		}

		fmt.Printf("🔎 %d signal(s), %d skipped, %d group(s)\n", len(signals), rep.Summary.SignalsSkipped, len(groups))
		bold := color.New(color.Bold)
		for i, g := range groups {
			bold.Printf("#%d %s %s", i+1, g.ToolID, g.Type)
			fmt.Printf(" (%d signal(s))\n", len(g.Signals))
			for _, s := range g.Signals {
				fmt.Printf("   %-10s %-8s %s  %s\n", s.RuleCode, s.Severity, s.Location(), s.Message)
			}
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the history database",
	Run: func(cmd *cobra.Command, args []string) {
		loadConfig()
		store, err := storage.NewSQLiteStore(dbPath)
		if err != nil {
			fatalf("Failed to open history database: %v", err)
		}
		defer store.Close()

		ctx := context.Background()
		runs, err := store.ListRuns(ctx, historyLimit)
		if err != nil {
			fatalf("Failed to list runs: %v", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return
		}
		for _, r := range runs {
			s := r.Summary
			fmt.Printf("#%d %s [%s] %s signals=%d groups=%d plans=%d/%d prs=%d failed=%d\n",
				r.ID, r.StartedAt, r.Mode, r.ArtifactsDir, s.SignalsTotal, s.Groups,
				s.PlansCreated, s.PlansCreated+s.PlansFailed, s.PRsCreated, s.PRsFailed)
			groups, err := store.GroupsForRun(ctx, r.ID)
			if err != nil {
				logx.Warningf("run %d: %v", r.ID, err)
				continue
			}
			for _, g := range groups {
				if g.PRURL != "" {
					fmt.Printf("    %s/%s %s\n", g.ToolID, g.SignalType, g.PRURL)
				}
			}
		}
	},
}

func printSummary(r *report.RunReport) {
	s := r.Summary
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	fail := func(n int) string {
		if n > 0 {
			return bad(n)
		}
		return fmt.Sprint(n)
	}

	fmt.Println()
	fmt.Printf("Artifacts: %d found, %d parsed, %s failed\n", s.ArtifactsFound, s.ArtifactsParsed, fail(s.ArtifactsFailed))
	fmt.Printf("Signals:   %d total, %d skipped\n", s.SignalsTotal, s.SignalsSkipped)
	fmt.Printf("Plans:     %s created, %s failed (of %d groups)\n", ok(s.PlansCreated), fail(s.PlansFailed), s.Groups)
	fmt.Printf("PRs:       %s created, %s failed\n", ok(s.PRsCreated), fail(s.PRsFailed))
	fmt.Printf("Files:     %d fixed, %d skipped, %d unchanged\n", s.FilesFixed, s.FilesSkipped, s.FilesUnchanged)
}
