// Package launch implements the end-to-end game start: engine, IWAD and mod
// package are brought up to date, then the engine is spawned.
package launch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"doomstrap/pkg/config"
	"doomstrap/pkg/download"
	"doomstrap/pkg/engine"
	"doomstrap/pkg/fetch"
	"doomstrap/pkg/github"
	"doomstrap/pkg/iwad"
	"doomstrap/pkg/journal"
	"doomstrap/pkg/moddb"
	"doomstrap/pkg/pick"
	"doomstrap/pkg/progress"
	"doomstrap/pkg/task"

	"github.com/spf13/cobra"
)

type options struct {
	configPath   string
	modURL       string
	enginePath   string
	iwadPath     string
	saveDir      string
	extraFiles   []string
	skipMod      bool
	forceMod     bool
	updateEngine bool
	updateIWAD   bool
	headless     bool
	dryRun       bool
}

func GetCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "launch [-- engine args]",
		Short: "Update everything and start the game",
		Long: `Update everything and start the game.

Brings the engine, the IWAD and the newest mod package up to date, then
starts the engine detached. Arguments after -- are passed to the engine.`,
		RunE: func(c *cobra.Command, args []string) error {
			return run(c.Context(), opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&opts.modURL, "mod-url", "", "Mod page URL (default from config)")
	cmd.Flags().StringVar(&opts.enginePath, "gzdoom", "", "Use this engine binary instead of auto-installing")
	cmd.Flags().StringVar(&opts.iwadPath, "iwad", "", "Use this IWAD instead of auto-installing")
	cmd.Flags().StringVar(&opts.saveDir, "savedir", "", "Save directory (default from config)")
	cmd.Flags().StringArrayVar(&opts.extraFiles, "extra-file", nil, "Additional -file entries (repeatable)")
	cmd.Flags().BoolVar(&opts.skipMod, "skip-mod-update", false, "Launch the newest local mod package without checking the site")
	cmd.Flags().BoolVar(&opts.forceMod, "force-mod-redownload", false, "Re-download the mod package even if it looks current")
	cmd.Flags().BoolVar(&opts.updateEngine, "update-gzdoom", false, "Re-install the engine even when one is present")
	cmd.Flags().BoolVar(&opts.updateIWAD, "update-iwad", false, "Re-download the IWAD even when one is present")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "Log progress instead of drawing bars")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Prepare everything but do not start the engine")
	return cmd
}

func run(ctx context.Context, opts options, engineArgs []string) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.modURL != "" {
		cfg.ModURL = opts.modURL
	}
	if opts.saveDir != "" {
		cfg.Paths.Saves = config.ExpandPath(opts.saveDir)
	}
	fc := fetch.New(30 * time.Second)
	gh := github.New(fc)

	enginePath, err := ensureEngine(ctx, cfg, fc, gh, opts)
	if err != nil {
		return fmt.Errorf("failed to set up engine: %w", err)
	}
	slog.Info("engine ready", "path", enginePath)

	iwadPath, err := ensureIWAD(ctx, cfg, fc, gh, opts)
	if err != nil {
		return fmt.Errorf("failed to set up IWAD: %w", err)
	}
	slog.Info("iwad ready", "path", iwadPath)

	var modPath string
	if opts.skipMod {
		modPath, err = newestLocalPayload(cfg.Paths.Mods)
		if err != nil {
			return err
		}
		slog.Info("using local mod package", "path", modPath)
	} else {
		payload, err := EnsurePayload(ctx, cfg, fc, opts.forceMod, opts.headless)
		if err != nil {
			return fmt.Errorf("failed to fetch mod package: %w", err)
		}
		slog.Info("mod package ready", "path", payload.Path, "verified", payload.Verified)
		RecordPayload(ctx, cfg, payload)
		modPath = payload.Path
	}

	iwadPath = engine.MirrorIWAD(iwadPath, enginePath)

	spec := engine.LaunchSpec{
		Engine:    enginePath,
		IWAD:      iwadPath,
		ModFiles:  append([]string{modPath}, opts.extraFiles...),
		SaveDir:   cfg.Paths.Saves,
		ConfigINI: cfg.Paths.EngineINI,
		ExtraArgs: engineArgs,
	}
	if opts.dryRun {
		fmt.Println(spec.Argv())
		return nil
	}
	slog.Info("starting engine", "argv", spec.Argv())
	return engine.Launch(spec)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

func ensureEngine(ctx context.Context, cfg *config.Config, fc *fetch.Client, gh *github.Client, opts options) (string, error) {
	r := progress.New(os.Stderr, "engine", opts.headless)
	defer r.Finish()
	return engine.Ensure(ctx, engine.Options{
		Client:        fc,
		GitHub:        gh,
		Repo:          cfg.Engine.Repo,
		AssetTokens:   cfg.Engine.AssetTokens,
		AppImageIndex: cfg.Engine.AppImageIndex,
		BinDir:        cfg.Paths.Bin,
		PreferPath:    opts.enginePath,
		ForceUpdate:   opts.updateEngine,
		Progress:      r.Update,
	})
}

func ensureIWAD(ctx context.Context, cfg *config.Config, fc *fetch.Client, gh *github.Client, opts options) (string, error) {
	if opts.iwadPath != "" {
		if _, err := os.Stat(opts.iwadPath); err != nil {
			return "", fmt.Errorf("iwad not found: %w", err)
		}
		return filepath.Abs(opts.iwadPath)
	}
	r := progress.New(os.Stderr, "iwad", opts.headless)
	defer r.Finish()
	return iwad.Ensure(ctx, iwad.Options{
		Client:      fc,
		GitHub:      gh,
		Repo:        cfg.IWAD.Repo,
		Dir:         cfg.Paths.IWADs,
		ForceUpdate: opts.updateIWAD,
		Progress:    r.Update,
	})
}

// newestLocalPayload finds the best-ranked playable file already in the
// mods dir.
func newestLocalPayload(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("no local mod packages: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && pick.IsPreferredMember(e.Name()) {
			names = append(names, e.Name())
		}
	}
	best, ok := pick.Best(names, pick.MemberRank)
	if !ok {
		return "", fmt.Errorf("no local mod packages in %s", dir)
	}
	return filepath.Join(dir, best), nil
}

// EnsurePayload resolves and downloads the newest mod package in a
// background worker while the foreground renders progress. The fetch
// command reuses it.
func EnsurePayload(ctx context.Context, cfg *config.Config, fc *fetch.Client, force, headless bool) (moddb.Payload, error) {
	resolver := &moddb.Resolver{Client: fc}
	tk := task.Go(ctx, func(ctx context.Context, report task.Report) (moddb.Payload, error) {
		var progressFn download.Progress = func(written, total int64) {
			report(task.Event{Stage: "mod", Written: written, Total: total})
		}
		return resolver.EnsurePayload(ctx, cfg.ModURL, cfg.Paths.Mods, force, progressFn)
	})

	r := progress.New(os.Stderr, "mod package", headless)
	for e := range tk.Events() {
		r.Update(e.Written, e.Total)
	}
	r.Finish()
	return tk.Wait()
}

// RecordPayload journals a fresh download. Journal failures never block a
// launch.
func RecordPayload(ctx context.Context, cfg *config.Config, payload moddb.Payload) {
	if !payload.Downloaded {
		return
	}
	j, err := journal.Open(cfg.Paths.Journal)
	if err != nil {
		slog.Warn("failed to open download journal", "err", err)
		return
	}
	defer j.Close()

	var size int64
	if st, err := os.Stat(payload.Path); err == nil {
		size = st.Size()
	}
	err = j.Record(ctx, journal.Entry{
		Kind:      "mod",
		Name:      filepath.Base(payload.Path),
		URL:       payload.URL,
		Path:      payload.Path,
		SizeBytes: size,
		Verified:  payload.Verified,
	})
	if err != nil {
		slog.Warn("failed to record download", "err", err)
	}
}
