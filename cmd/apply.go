/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/fulmenhq/pbxmend/internal/driver"
	"github.com/fulmenhq/pbxmend/internal/gitctx"
	"github.com/fulmenhq/pbxmend/internal/report"
	"github.com/fulmenhq/pbxmend/pkg/config"
	"github.com/fulmenhq/pbxmend/pkg/logger"
	"github.com/fulmenhq/pbxmend/pkg/pbxproj"
	"github.com/fulmenhq/pbxmend/pkg/requests"
	"github.com/fulmenhq/pbxmend/pkg/safeio"
)

func newApplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apply [request-files...]",
		Short: "Apply request lists to the manifest",
		Long: `Apply one or more request lists (YAML, TOML or JSON) to the manifest in
order. Without arguments the lists named by 'requests' in pbxmend.yaml are
used; those are relative to the repository root. Request files must live
inside the repository. Every list is checked against the request-list schema
and resolved against the manifest before the first request is applied.`,
		RunE: runApply,
	}
}

func runApply(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	files := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return err
		}
		files = append(files, abs)
	}
	if len(files) == 0 {
		files = env.cfg.RequestFiles()
	}
	if len(files) == 0 {
		return &config.Error{Path: env.cfg.File, Err: fmt.Errorf("no request lists: pass files to apply or list them under 'requests' in pbxmend.yaml")}
	}
	names, err := env.relative(files)
	if err != nil {
		return err
	}
	lists, err := requests.LoadAll(env.fs, names)
	if err != nil {
		return err
	}
	return env.run(cmd, lists)
}

// environment is what every manifest command resolves before touching the
// manifest: the repository, the merged configuration and a filesystem rooted
// at the repository.
type environment struct {
	git *gitctx.Context
	cfg *config.Config
	fs  billy.Filesystem
}

func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	start, _ := cmd.Flags().GetString("root")
	if start == "" {
		start = "."
	}
	gc, err := gitctx.Discover(start)
	if err != nil {
		return nil, fmt.Errorf("discover repository: %w", err)
	}
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(config.Options{Root: gc.Root, File: cfgFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded",
		logger.String("root", gc.Root),
		logger.String("file", cfg.File),
		logger.String("manifest", cfg.Manifest),
		logger.Bool("in_repo", gc.InRepo))
	return &environment{git: gc, cfg: cfg, fs: osfs.New(gc.Root)}, nil
}

// relative maps request files onto the repository filesystem. Relative paths
// are taken as relative to the repository root already.
func (e *environment) relative(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := relTo(e.git.Root, p)
		if err != nil {
			return nil, &requests.Error{Source: p, Err: err}
		}
		out = append(out, r)
	}
	return out, nil
}

func (e *environment) rel(p string) string {
	r, err := relTo(e.git.Root, p)
	if err != nil {
		return p
	}
	return r
}

func (e *environment) run(cmd *cobra.Command, lists []*requests.List) error {
	cfg := e.cfg
	location := e.rel(cfg.Manifest)
	if modified, err := e.git.Modified(cfg.Resolve(cfg.Manifest)); err == nil && modified {
		logger.Warn("Manifest has uncommitted changes", logger.String("manifest", cfg.Manifest))
	}

	d := driver.New(pbxproj.NewStore(e.fs), driver.Options{
		Location: location,
		Group:    cfg.Group,
		Target:   cfg.Target,
		Phase:    cfg.Phase,
		DryRun:   cfg.DryRun,
	})
	res, err := d.Run(lists)
	if err != nil {
		return err
	}

	data := report.NewData(cfg.Manifest, res, cfg.DryRun)
	jsonOut, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	if jsonOut {
		if err := report.WriteJSON(cmd.OutOrStdout(), data); err != nil {
			return err
		}
	} else {
		console := report.NewConsole(cmd.OutOrStdout(), !noColor)
		if err := console.Records(res.Records); err != nil {
			return err
		}
		if err := console.Summary(data); err != nil {
			return err
		}
	}

	if cfg.Report.Output != "" {
		tpl := ""
		if cfg.Report.Template != "" {
			tpl = e.rel(cfg.Report.Template)
		}
		if err := report.WriteFile(e.fs, e.rel(cfg.Report.Output), tpl, data); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info("Run report written", logger.String("path", cfg.Report.Output))
	}
	return nil
}

// relTo returns p relative to root. Paths that leave root are rejected.
func relTo(root, p string) (string, error) {
	if !filepath.IsAbs(p) {
		return safeio.CleanUserPath(p)
	}
	r, err := filepath.Rel(root, p)
	if err != nil {
		return "", err
	}
	if r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", p, root)
	}
	return filepath.ToSlash(r), nil
}
