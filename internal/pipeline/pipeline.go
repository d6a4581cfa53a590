// Package pipeline runs one end-to-end pass: discover artifacts, parse and
// prioritize signals, plan a fix per group and publish each plan.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"sigfix/internal/agent"
	"sigfix/internal/codectx"
	"sigfix/internal/config"
	"sigfix/internal/crawler"
	"sigfix/internal/llm"
	"sigfix/internal/logx"
	"sigfix/internal/parser"
	"sigfix/internal/planner"
	"sigfix/internal/prioritizer"
	"sigfix/internal/publish"
	"sigfix/internal/report"
	"sigfix/internal/signal"
	"sigfix/internal/storage"
)

// Deps are the collaborators of a run. Provider is built from the config
// when nil; Store is optional.
type Deps struct {
	Hosting  publish.Hosting
	Source   codectx.FileSource
	Provider llm.Provider
	Store    storage.RunStore
}

type Pipeline struct {
	cfg  *config.Config
	deps Deps
	mode string
	now  func() time.Time
}

func New(cfg *config.Config, mode string, deps Deps) *Pipeline {
	return &Pipeline{cfg: cfg, deps: deps, mode: mode, now: time.Now}
}

// Outcome is what a run leaves behind for the caller.
type Outcome struct {
	Report     *report.RunReport
	ReportPath string
	RunID      int64
	Signals    []signal.Signal
	Groups     []signal.Group
}

type parsedArtifact struct {
	artifact crawler.Artifact
	signals  []signal.Signal
	err      error
}

// Run executes every stage. Per-artifact and per-group failures are recorded
// in the report; only an unreadable artifacts directory or a bad provider
// configuration fail the run itself.
func (p *Pipeline) Run(ctx context.Context, artifactsDir string) (*Outcome, error) {
	stamp := p.now()
	rep := report.NewRunReport(p.mode, artifactsDir)
	out := &Outcome{Report: rep}

	var dump *report.Dumper
	if p.cfg.LogLevel() == logx.Debug {
		dump = report.NewDumper(p.cfg.Logging.DebugDir, stamp)
		logx.Debugf("debug mode enabled, dumping to %s", dump.Dir())
	}

	signals, groups, err := p.Collect(ctx, artifactsDir, rep)
	if err != nil {
		return out, err
	}
	out.Signals, out.Groups = signals, groups
	dumpJSON(dump, "all-signals", signals)
	dumpJSON(dump, "groups", groups)

	if len(groups) > 0 {
		pl, pub, err := p.buildStages(ctx, dump, stamp)
		if err != nil {
			return out, err
		}
		h := rep.BeginStage("fix")
		for i, g := range groups {
			if ctx.Err() != nil {
				break
			}
			rep.AddGroup(p.processGroup(ctx, i+1, len(groups), g, pl, pub, dump))
		}
		rep.EndStage(h, "", map[string]float64{"groups": float64(len(groups))}, nil, ctx.Err())
	} else {
		logx.Infof("no signals found, nothing to do")
	}

	out.ReportPath = filepath.Join(p.cfg.Logging.LogDir, "run_report_"+stamp.Format(report.TimestampLayout)+".txt")
	if err := rep.SaveText(out.ReportPath); err != nil {
		logx.Warningf("failed to write run report: %v", err)
		out.ReportPath = ""
	}
	if dump != nil {
		if err := rep.SaveJSON(filepath.Join(dump.Dir(), "run-report-"+stamp.Format(report.TimestampLayout)+".json")); err != nil {
			logx.Warningf("failed to write run report json: %v", err)
		}
	}
	if p.deps.Store != nil {
		id, err := p.deps.Store.SaveRun(ctx, rep)
		if err != nil {
			logx.Warningf("failed to record run history: %v", err)
		} else {
			out.RunID = id
		}
	}
	return out, ctx.Err()
}

// Collect runs discovery, parsing and prioritization only.
func (p *Pipeline) Collect(ctx context.Context, artifactsDir string, rep *report.RunReport) ([]signal.Signal, []signal.Group, error) {
	artifacts, err := p.discoverStage(artifactsDir, rep)
	if err != nil {
		return nil, nil, err
	}
	signals := p.parseStage(ctx, artifacts, rep)
	return p.prioritizeStage(signals, rep)
}

func (p *Pipeline) discoverStage(dir string, rep *report.RunReport) ([]crawler.Artifact, error) {
	h := rep.BeginStage("discover")
	logx.Infof("scanning artifacts in %s", dir)

	var artifacts []crawler.Artifact
	skipped := 0
	err := crawler.NewCrawler().ScanArtifacts(dir, func(a crawler.Artifact) {
		if a.Kind == parser.KindNone {
			logx.Debugf("skip %s (no matching parser)", a.Name)
			skipped++
			return
		}
		artifacts = append(artifacts, a)
	})
	rep.Summary.ArtifactsFound = len(artifacts)
	rep.EndStage(h, "", map[string]float64{"artifacts": float64(len(artifacts)), "ignored": float64(skipped)}, nil, err)
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

// parseStage parses artifacts concurrently; results keep discovery order.
func (p *Pipeline) parseStage(ctx context.Context, artifacts []crawler.Artifact, rep *report.RunReport) []signal.Signal {
	h := rep.BeginStage("parse")
	results := make([]parsedArtifact, len(artifacts))
	opts := parser.Options{RepoRoot: p.cfg.Repo.Root}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.cfg.Pipeline.ParseWorkers))
	for i, a := range artifacts {
		g.Go(func() error {
			results[i].artifact = a
			if err := gctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			data, err := os.ReadFile(a.Path)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].signals, results[i].err = parser.Parse(a.Kind, data, opts)
			return nil
		})
	}
	_ = g.Wait()

	var all []signal.Signal
	var notes []string
	for _, r := range results {
		if r.err != nil {
			rep.Summary.ArtifactsFailed++
			logx.Warningf("parse error in %s: %v", r.artifact.Name, r.err)
			notes = append(notes, fmt.Sprintf("%s: %v", r.artifact.Name, r.err))
			continue
		}
		rep.Summary.ArtifactsParsed++
		logx.Infof("parsed %s with %s: %d signal(s)", r.artifact.Name, r.artifact.Kind, len(r.signals))
		all = append(all, r.signals...)
	}
	rep.Summary.SignalsTotal = len(all)
	for t, n := range signal.CountByType(all) {
		rep.Summary.SignalsByType[string(t)] = n
	}
	rep.EndStage(h, "", map[string]float64{
		"parsed":  float64(rep.Summary.ArtifactsParsed),
		"failed":  float64(rep.Summary.ArtifactsFailed),
		"signals": float64(len(all)),
	}, notes, nil)
	logx.Infof("total signals parsed: %d", len(all))
	return all
}

func (p *Pipeline) prioritizeStage(signals []signal.Signal, rep *report.RunReport) ([]signal.Signal, []signal.Group, error) {
	h := rep.BeginStage("prioritize")
	var opts []prioritizer.Option
	if len(p.cfg.Pipeline.SkipRules) > 0 {
		opts = append(opts, prioritizer.WithSkipRules(p.cfg.Pipeline.SkipRules...))
	}
	pr, err := prioritizer.New(p.cfg.Pipeline.SignalsPerPR, opts...)
	if err != nil {
		rep.EndStage(h, "", nil, nil, err)
		return nil, nil, err
	}

	kept, skipped := pr.FilterSkipped(signals)
	rep.Summary.SignalsSkipped = len(skipped)
	groups := pr.Prioritize(kept)
	rep.EndStage(h, "", map[string]float64{"groups": float64(len(groups)), "skipped": float64(len(skipped))}, nil, nil)
	logx.Infof("signal groups: %d (%d signal(s) skipped by rule)", len(groups), len(skipped))
	return signals, groups, nil
}

func (p *Pipeline) buildStages(ctx context.Context, dump *report.Dumper, stamp time.Time) (*planner.Planner, *publish.Publisher, error) {
	provider := p.deps.Provider
	if provider == nil {
		var err error
		provider, err = llm.NewProvider(ctx, p.cfg.LLMOptions())
		if err != nil {
			return nil, nil, fmt.Errorf("llm provider: %w", err)
		}
	}
	if !provider.IsConfigured() {
		logx.Warningf("LLM provider %s is not configured; only direct format fixes can succeed", provider.Name())
	}

	ctxOpts, err := p.cfg.ContextOptions()
	if err != nil {
		return nil, nil, err
	}
	source := p.deps.Source
	if source == nil {
		source = codectx.LocalSource{Root: p.cfg.Repo.Root}
	}
	builder := codectx.NewBuilder(source, ctxOpts)
	handler := agent.NewHandler(provider,
		agent.WithTemperature(p.cfg.LLM.Temperature),
		agent.WithMaxTokens(p.cfg.LLM.MaxTokens),
	)

	plOpts := []planner.Option{planner.WithAutoApplyFormat(p.cfg.Pipeline.AutoApplyFormatFixes)}
	if p.cfg.Logging.DebugLLM {
		llmDump := dump
		if llmDump == nil {
			llmDump = report.NewDumper(p.cfg.Logging.DebugDir, stamp)
		}
		plOpts = append(plOpts, planner.WithDebugDumper(llmDump.Sub("llm-contexts")))
	}
	pl := planner.New(builder, handler, plOpts...)

	if p.deps.Hosting == nil {
		return nil, nil, fmt.Errorf("no code hosting configured")
	}
	pub := publish.New(p.deps.Hosting, p.cfg.Repo.DefaultBranch, p.cfg.Pipeline.ConfidenceThreshold,
		publish.WithClock(p.now))
	return pl, pub, nil
}

func (p *Pipeline) processGroup(ctx context.Context, idx, total int, g signal.Group, pl *planner.Planner, pub *publish.Publisher, dump *report.Dumper) report.GroupMetric {
	label := fmt.Sprintf("[group %d/%d | %s %s]", idx, total, g.ToolID, g.Type)
	logx.Infof("%s %d signal(s)", label, len(g.Signals))
	m := report.GroupMetric{Index: idx, ToolID: g.ToolID, SignalType: string(g.Type), SignalCount: len(g.Signals)}

	res := pl.CreateFixPlan(ctx, g)
	m.UsedLLM = res.UsedLLM
	if !res.Success || res.FixPlan == nil {
		m.Error = res.Error
		logx.Errorf("%s fix plan failed: %s", label, res.Error)
		return m
	}
	m.PlanSuccess = true
	m.Confidence = res.FixPlan.Confidence
	m.Warnings = len(res.FixPlan.Warnings)
	dumpJSON(dump, fmt.Sprintf("fix-plan-%d-%s-%s", idx, g.ToolID, g.Type), res.FixPlan)

	pr := pub.CreatePR(ctx, res.FixPlan)
	dumpJSON(dump, fmt.Sprintf("pr-result-%d-%s-%s", idx, g.ToolID, g.Type), pr)
	m.PRAttempted = !pr.Success || pr.PRURL != ""
	m.PRSuccess = pr.Success
	m.PRURL = pr.PRURL
	m.PRNumber = pr.PRNumber
	m.Fixed = len(pr.FilesChanged)
	m.Skipped = len(pr.SkippedFixes)
	m.Unchanged = len(pr.UnchangedFixes)

	switch {
	case pr.Success && pr.PRURL != "":
		logx.Infof("%s PR created: %s", label, pr.PRURL)
	case pr.Success:
		logx.Infof("%s nothing to commit, no PR", label)
	default:
		m.Error = pr.Error
		logx.Errorf("%s PR failed: %s", label, pr.Error)
	}
	if m.Skipped > 0 {
		logx.Infof("%s skipped %d fix(es) below confidence threshold", label, m.Skipped)
	}
	if m.Unchanged > 0 {
		logx.Infof("%s %d fix(es) left the file unchanged", label, m.Unchanged)
	}
	return m
}

func dumpJSON(d *report.Dumper, name string, v any) {
	path, err := d.Dump(name, v)
	if err != nil {
		logx.Warningf("failed to dump %s: %v", name, err)
		return
	}
	if path != "" {
		logx.Debugf("dumped %s to %s", name, path)
	}
}
