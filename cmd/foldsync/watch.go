package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foldsync/foldsync/internal/models"
	"github.com/foldsync/foldsync/internal/storage"
	"github.com/foldsync/foldsync/internal/sync"
	"github.com/foldsync/foldsync/internal/transport"
)

var watchCmd = &cobra.Command{
	Use:   "watch <local-dir> <remote-folder>",
	Short: "Continuously synchronize a folder pair",
	Long: `Watch reconciles the folder pair, then keeps it in sync: local
filesystem changes are uploaded as they happen, and remote push
notifications trigger downloads. Conflicts are raised on the console
for a decision. Runs until interrupted.`,
	Example: `  foldsync watch ./docs team-docs
  foldsync watch ./docs team-docs --auto-resolve --prefer local`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

var (
	watchAutoResolve bool
	watchPrefer      string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchAutoResolve, "auto-resolve", false,
		"Resolve conflicts without asking, using the preferred side")
	watchCmd.Flags().StringVar(&watchPrefer, "prefer", "remote",
		"Side that wins auto-resolved conflicts (remote or local)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	localDir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve local directory: %w", err)
	}
	remoteFolder := args[1]

	defaultAction, err := parsePrefer(watchPrefer)
	if err != nil {
		return err
	}

	local, err := storage.NewLocalStore(localDir,
		cfg.Sync.LocalRetryAttempts, cfg.Sync.LocalRetryDelay, logger)
	if err != nil {
		return fmt.Errorf("open local folder: %w", err)
	}

	remote := transport.NewHTTPRemote(&cfg.API, remoteFolder, logger)
	defer remote.Close()

	push := transport.NewPushClient(hubURL(), remoteFolder,
		func(state string) { printInfo("push channel: %s", state) }, logger)

	engine := sync.New(cfg, remote, push, logger)
	engine.SetDefaultAction(defaultAction)

	if watchAutoResolve {
		engine.SetConfirmationKinds()
	} else {
		wireConflictPrompt(engine)
	}

	go func() {
		for n := range engine.Notifications() {
			renderNote(n)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printInfo("syncing %s <-> %s", localDir, remoteFolder)
	if err := engine.Start(ctx, localDir, remoteFolder, local); err != nil {
		return err
	}

	<-ctx.Done()
	printInfo("shutting down")
	engine.Stop()
	return nil
}

// wireConflictPrompt routes raised conflicts to a single stdin prompt
// loop. The engine callback only enqueues; answers come back through
// ResolveConflict.
func wireConflictPrompt(engine *sync.Engine) {
	type pending struct {
		name string
		kind models.ConflictKind
		id   string
	}
	queue := make(chan pending, 16)

	engine.OnConflict(func(name string, kind models.ConflictKind, id string) {
		select {
		case queue <- pending{name, kind, id}:
		default:
			printWarn("conflict queue full, auto-resolving %s to the remote side", name)
			go func() {
				_ = engine.ResolveConflict(context.Background(), id, models.PreferRemote)
			}()
		}
	})

	go func() {
		in := bufio.NewReader(os.Stdin)
		for p := range queue {
			action := promptAction(in, p.name, p.kind)
			if err := engine.ResolveConflict(context.Background(), p.id, action); err != nil {
				printError("resolve %s: %v", p.name, err)
			}
		}
	}()
}

// hubURL returns the push notification endpoint, derived from the API
// base URL unless configured explicitly.
func hubURL() string {
	if cfg.API.HubURL != "" {
		return cfg.API.HubURL
	}
	return strings.TrimSuffix(cfg.API.BaseURL, "/") + "/Notifications"
}

func parsePrefer(s string) (models.ConflictAction, error) {
	switch strings.ToLower(s) {
	case "remote":
		return models.PreferRemote, nil
	case "local":
		return models.PreferLocal, nil
	default:
		return "", fmt.Errorf("invalid --prefer value %q (want remote or local)", s)
	}
}
