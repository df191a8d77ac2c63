package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/maruel/walletdb/internal/jsonldb"
	"github.com/maruel/walletdb/internal/models"
)

// cmdWatch prints the stored wallets every time another process rewrites the
// file, until interrupted.
//
// It only reads: an unreadable file is reported and left in place.
func cmdWatch(ctx context.Context, env *environment, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown arguments: %v", args)
	}
	path := env.path
	f, err := jsonldb.NewFile[models.MultiSigWallet](path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	// Saves replace the file through a rename, so watch the directory.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	reprint := func() {
		list, err := f.Load()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				slog.WarnContext(ctx, "Cannot read wallets", "path", path, "err", err)
			}
			return
		}
		fmt.Fprintf(env.out, "--- %d wallets\n", len(list))
		printWallets(env.out, list)
	}
	reprint()
	slog.InfoContext(ctx, "Watching", "path", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				reprint()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "Error watching data directory", "err", err)
		}
	}
}
