package pipeline

import (
	"sigfix/internal/codectx"
	"sigfix/internal/config"
	"sigfix/internal/github"
	"sigfix/internal/logx"
	"sigfix/internal/publish"
)

const (
	ModeGitHub = "github"
	ModeDryRun = "dry-run"
)

// HostingFor picks GitHub when it is configured and dryRun is off, otherwise
// the local dry-run hosting. Source reads from the same place.
func HostingFor(cfg *config.Config, dryRun bool) (Deps, string, error) {
	if dryRun || !cfg.GitHubConfigured() {
		if !dryRun {
			logx.Warningf("GitHub is not configured (GITHUB_TOKEN, TARGET_REPO_OWNER, TARGET_REPO_NAME); writing fixes to %s", cfg.Pipeline.DryRunDir)
		}
		return Deps{
			Hosting: publish.NewLocalHosting(cfg.Repo.Root, cfg.Pipeline.DryRunDir),
			Source:  codectx.LocalSource{Root: cfg.Repo.Root},
		}, ModeDryRun, nil
	}

	client, err := github.NewClient(cfg.Repo.Token, cfg.Repo.Owner, cfg.Repo.Name)
	if err != nil {
		return Deps{}, "", err
	}
	return Deps{
		Hosting: client,
		Source:  client.Source(cfg.Repo.DefaultBranch),
	}, ModeGitHub, nil
}
