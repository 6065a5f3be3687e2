package preflight

import (
	"context"

	"uploadr/internal/config"
	"uploadr/internal/flickr"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// TokenChecker validates the cached auth token against the remote service.
type TokenChecker interface {
	CheckToken(ctx context.Context) (flickr.TokenInfo, error)
}

// Local runs the filesystem checks that need no network access.
func Local(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Media directory", cfg.Paths.MediaDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckTokenCached(cfg.TokenPath()),
	}
}

// RunAll runs the local checks plus a remote token check when checker is set.
func RunAll(ctx context.Context, cfg *config.Config, checker TokenChecker) []Result {
	results := Local(cfg)
	if checker != nil {
		results = append(results, CheckRemote(ctx, checker))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
