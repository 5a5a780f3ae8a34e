package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/foldsync/foldsync/internal/models"
	"github.com/foldsync/foldsync/internal/storage"
	"github.com/foldsync/foldsync/internal/sync"
	"github.com/foldsync/foldsync/internal/transport"
)

var syncCmd = &cobra.Command{
	Use:   "sync <local-dir> <remote-folder>",
	Short: "Run a single synchronization pass",
	Long: `Sync reconciles the folder pair once and exits. By default every
conflict is resolved in favor of the remote side; use --interactive to
decide each one on the console instead.`,
	Example: `  foldsync sync ./docs team-docs
  foldsync sync ./docs team-docs --interactive`,
	Args: cobra.ExactArgs(2),
	RunE: runSyncOnce,
}

var syncInteractive bool

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVarP(&syncInteractive, "interactive", "i", false,
		"Ask about each conflict instead of preferring the remote side")
}

func runSyncOnce(cmd *cobra.Command, args []string) error {
	localDir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve local directory: %w", err)
	}
	remoteFolder := args[1]

	local, err := storage.NewLocalStore(localDir,
		cfg.Sync.LocalRetryAttempts, cfg.Sync.LocalRetryDelay, logger)
	if err != nil {
		return fmt.Errorf("open local folder: %w", err)
	}

	remote := transport.NewHTTPRemote(&cfg.API, remoteFolder, logger)
	defer remote.Close()

	engine := sync.New(cfg, remote, nil, logger)

	if syncInteractive {
		// Keep conflicts pending so they can be prompted after the pass.
		engine.OnConflict(func(name string, kind models.ConflictKind, id string) {})
	}

	drainNotes := func() {
		for {
			select {
			case n := <-engine.Notifications():
				renderNote(n)
			default:
				return
			}
		}
	}

	ctx := context.Background()
	if err := engine.SyncNowOnce(ctx, localDir, remoteFolder, local, !syncInteractive); err != nil {
		return err
	}
	drainNotes()

	if syncInteractive {
		conflicts := engine.Conflicts()
		sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Name < conflicts[j].Name })

		in := bufio.NewReader(os.Stdin)
		for _, c := range conflicts {
			action := promptAction(in, c.Name, c.Kind)
			if err := engine.ResolveConflict(ctx, c.ID, action); err != nil {
				printError("resolve %s: %v", c.Name, err)
			}
			drainNotes()
		}
	}

	printSuccess("sync complete")
	return nil
}
