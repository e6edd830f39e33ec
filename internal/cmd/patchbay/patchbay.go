package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"patchbay"
	"patchbay/internal/config"
	"patchbay/internal/engine"
	"patchbay/internal/entities/bundle"
	"patchbay/internal/netstatus"
	"patchbay/internal/notify"
	"patchbay/internal/release"
	"patchbay/internal/source"
	"patchbay/internal/store"
	"patchbay/internal/transport"
	"patchbay/internal/versions"

	"github.com/spf13/cobra"
)

var (
	settingsPath string

	forceUpdate  bool
	allowMetered bool
	manualSource bool
)

// runtime bundles everything a command needs once the settings are
// loaded.
type runtime struct {
	cfg    *config.Config
	engine *engine.Engine
	db     *store.SQLite
}

func (r *runtime) close() {
	r.engine.Close()
	if r.db != nil {
		r.db.Close()
	}
}

func openRuntime() (*runtime, error) {
	cfg, err := config.Load(settingsPath)
	if err != nil {
		return nil, err
	}
	db, err := store.OpenSQLite(cfg.RecordsPath())
	if err != nil {
		return nil, err
	}
	settings := cfg.Get()
	client := transport.New(nil)
	resolver := release.NewResolver(client, func() string { return cfg.Get().APIToken })
	factory := source.NewFactory(client, resolver, cfg.SourcesDir(), func() bool { return cfg.Get().Prereleases })
	e := engine.New(engine.Options{
		Gateway:  db,
		Factory:  factory,
		Config:   cfg,
		Oracle:   netstatus.Probe{},
		Notifier: notify.New(settings.NotifyURL),
	})
	if err := e.Reload(context.Background()); err != nil {
		e.Close()
		db.Close()
		return nil, err
	}
	return &runtime{cfg: cfg, engine: e, db: db}, nil
}

var rootCmd = &cobra.Command{
	Use:           patchbay.AppName,
	Version:       patchbay.Version,
	Short:         "Patch bundle source manager",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return loadEnvFile(settingsPath)
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage patch bundle sources",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sources",
	RunE: func(*cobra.Command, []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		for _, entry := range rt.engine.State().Ordered() {
			printEntry(entry)
		}
		return nil
	},
}

func printEntry(entry engine.Entry) {
	switch state := entry.State.(type) {
	case bundle.Available:
		printSuccess("%s", entry.Label())
		printLabel("patches", strconv.Itoa(len(state.Info.Patches)))
		if state.Info.Version != "" {
			printLabel("version", state.Info.Version)
		}
	case bundle.Missing:
		printWarn("%s (not downloaded)", entry.Label())
	case bundle.Failed:
		labelColor.Printf("✗ %s", entry.Label())
		fmt.Println()
		printLabel("error", state.Err.Error())
	}
	printLabel("uid", strconv.FormatInt(entry.UID, 10))
	if entry.URL != "" {
		printLabel("url", entry.URL)
	}
	dimColor.Printf("  kind=%s auto_update=%v\n", entry.Kind, entry.AutoUpdate)
}

var addCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add a remote or pull request source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.engine.CreateRemote(cmd.Context(), args[0], args[1], !manualSource); err != nil {
			return err
		}
		printSuccess("added %s", args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <name> <file>",
	Short: "Import a bundle from a local file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		file, err := os.Open(args[1])
		if err != nil {
			return err
		}
		if err := rt.engine.ImportLocal(cmd.Context(), args[0], file); err != nil {
			return err
		}
		printSuccess("imported %s", args[0])
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <uid>",
	Short: "Remove a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid uid %q", args[0])
		}
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.engine.Remove(cmd.Context(), uid); err != nil {
			return err
		}
		printSuccess("removed source %d", uid)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the official source after removing it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.engine.RestoreDefault(cmd.Context()); err != nil {
			return err
		}
		printSuccess("restored the official source")
		return nil
	},
}

var reorderCmd = &cobra.Command{
	Use:   "reorder <uid>...",
	Short: "Reorder sources; list every uid in the desired order",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uids := make([]int64, 0, len(args))
		for _, arg := range args {
			uid, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid uid %q", arg)
			}
			uids = append(uids, uid)
		}
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()
		return rt.engine.Reorder(cmd.Context(), uids)
	},
}

var autoUpdateCmd = &cobra.Command{
	Use:   "auto-update <uid> <on|off>",
	Short: "Toggle unattended updates for a source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid uid %q", args[0])
		}
		var enabled bool
		switch args[1] {
		case "on":
			enabled = true
		case "off":
		default:
			return fmt.Errorf("expected on or off, got %q", args[1])
		}
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()
		return rt.engine.SetAutoUpdate(cmd.Context(), uid, enabled)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [uid...]",
	Short: "Fetch the latest bundle content for network sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		uids := make([]int64, 0, len(args))
		for _, arg := range args {
			uid, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid uid %q", arg)
			}
			uids = append(uids, uid)
		}
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		updates, cancel := rt.engine.SubscribeProgress()
		defer cancel()
		done := make(chan struct{})
		quit := make(chan struct{})
		go func() {
			defer close(done)
			for {
				var p engine.Progress
				select {
				case p = <-updates:
				case <-quit:
					// drain the terminal value if it raced with quit
					select {
					case p = <-updates:
					default:
						return
					}
				}
				if printProgress(p) {
					return
				}
			}
		}()

		err = rt.engine.Update(cmd.Context(), engine.UpdateOptions{
			UIDs:         uids,
			Force:        forceUpdate,
			AllowMetered: allowMetered,
		})
		close(quit)
		<-done
		return err
	},
}

// printProgress reports a progress value and returns true when it was
// terminal.
func printProgress(p engine.Progress) bool {
	switch p.Result {
	case engine.BatchSuccess:
		printSuccess("updated %d of %d sources", p.Completed, p.Total)
	case engine.BatchError:
		printError(fmt.Errorf("update batch failed"))
	case engine.BatchNoInternet:
		printWarn("no internet connection")
	case "":
		if p.Total > 0 {
			dimColor.Printf("  %d/%d\n", p.Completed, p.Total)
		}
		return false
	default:
		printWarn("update skipped (%s)", p.Result)
	}
	return true
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check manually updated sources for new versions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.engine.CheckManualUpdates(cmd.Context()); err != nil {
			return err
		}
		pending := rt.engine.ManualUpdates()
		if len(pending) == 0 {
			printSuccess("everything is up to date")
			return nil
		}
		state := rt.engine.State()
		for uid, update := range pending {
			name := strconv.FormatInt(uid, 10)
			if entry, ok := state.Sources[uid]; ok {
				name = entry.Label()
			}
			printWarn("%s has a new version: %s", name, update.LatestVersion)
			if update.PageURL != "" {
				printLabel("page", update.PageURL)
			}
		}
		return nil
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend [package...]",
	Short: "Show the suggested app version per target package",
	RunE: func(_ *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		state := rt.engine.State()
		infos := make([]*bundle.Info, 0, len(state.Info))
		for _, entry := range state.Ordered() {
			if info, ok := state.Info[entry.UID]; ok {
				infos = append(infos, info)
			}
		}
		suggested := versions.Suggested(infos, rt.cfg.Get().CountUnspecifiedVersions)

		packages := args
		if len(packages) == 0 {
			for pkg := range suggested {
				packages = append(packages, pkg)
			}
			sort.Strings(packages)
		}
		for _, pkg := range packages {
			rec, ok := suggested[pkg]
			if !ok {
				printWarn("%s: no patches target this package", pkg)
				continue
			}
			version := rec.Version
			if version == "" {
				version = "any"
			}
			printLabel(pkg, fmt.Sprintf("%s (%d patches)", version, rec.Count))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "patchbay.yml", "Path to the settings file")
	addCmd.Flags().BoolVar(&manualSource, "manual", false, "Disable unattended updates for this source")
	updateCmd.Flags().BoolVar(&forceUpdate, "force", false, "Re-download even when nothing changed")
	updateCmd.Flags().BoolVar(&allowMetered, "allow-metered", false, "Run the batch even on a metered connection")

	sourcesCmd.AddCommand(listCmd, addCmd, importCmd, removeCmd, restoreCmd, reorderCmd, autoUpdateCmd)
	rootCmd.AddCommand(sourcesCmd, updateCmd, checkCmd, recommendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if strings.TrimSpace(err.Error()) != "" {
			printError(err)
		}
		os.Exit(1)
	}
}
