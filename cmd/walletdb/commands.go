package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/walletdb/internal/models"
	"github.com/maruel/walletdb/internal/observable"
	"github.com/maruel/walletdb/internal/storage"
	"github.com/maruel/walletdb/internal/wallets"
	"gopkg.in/yaml.v3"
)

// environment is the state shared by all commands.
//
// store and list are nil in a read-only environment.
type environment struct {
	cfg   *storage.Config
	path  string
	store *storage.Storage[models.MultiSigWallet]
	list  *wallets.List[models.MultiSigWallet]
	out   io.Writer
	unsub func()
}

// openReadOnly loads the configuration and resolves the wallet file without
// touching it.
func openReadOnly(dataDir string) (*environment, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg, err := storage.LoadConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config.json: %w", err)
	}
	return &environment{
		cfg:  cfg,
		path: storage.FilePath(dataDir, cfg.FileName),
		out:  os.Stdout,
	}, nil
}

// openEnvironment loads the wallet list, quarantining an unreadable file, and
// starts the background saver.
func openEnvironment(ctx context.Context, dataDir string) (*environment, error) {
	env, err := openReadOnly(dataDir)
	if err != nil {
		return nil, err
	}
	env.store = storage.New[models.MultiSigWallet](dataDir, *env.cfg)
	env.list = wallets.New[models.MultiSigWallet](ctx, env.store, env.cfg.FileName)
	env.unsub = env.list.Observable().Subscribe(func(c observable.Change[models.MultiSigWallet]) {
		slog.InfoContext(ctx, "Wallet "+c.Kind.String(), "id", c.Value.ID.String(), "name", c.Value.Name, "index", c.Index)
	})
	slog.DebugContext(ctx, "Loaded wallets", "path", env.path, "count", env.list.Len())
	return env, nil
}

func (e *environment) close(ctx context.Context) error {
	if e.unsub != nil {
		e.unsub()
	}
	if e.store == nil {
		return nil
	}
	return e.store.Close(ctx)
}

func (e *environment) find(id ksid.ID) (models.MultiSigWallet, bool) {
	for w := range e.list.All() {
		if w.ID == id {
			return w, true
		}
	}
	return models.MultiSigWallet{}, false
}

func printWallets(w io.Writer, list []models.MultiSigWallet) {
	for i := range list {
		wal := &list[i]
		fmt.Fprintf(w, "%s  %-24s %-8s %s\n", wal.ID.String(), wal.String(), wal.Network, wal.Address)
	}
}

func cmdList(_ context.Context, env *environment, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown arguments: %v", args)
	}
	var all []models.MultiSigWallet
	for w := range env.list.All() {
		all = append(all, w)
	}
	printWallets(env.out, all)
	return nil
}

func cmdAdd(ctx context.Context, env *environment, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.String("name", "", "Wallet name")
	network := fs.String("network", string(models.NetworkMainnet), "Network (mainnet, testnet, regtest)")
	required := fs.Int("m", 2, "Number of signatures required")
	keys := fs.String("keys", "", "Comma separated hex encoded public keys")
	address := fs.String("address", "", "Funding address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("unknown arguments: %v", fs.Args())
	}
	w := models.MultiSigWallet{
		ID:       ksid.NewID(),
		Name:     *name,
		Network:  models.Network(*network),
		Required: *required,
		Address:  *address,
		Created:  time.Now().UTC(),
	}
	for k := range strings.SplitSeq(*keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			w.PubKeys = append(w.PubKeys, k)
		}
	}
	if err := w.Validate(); err != nil {
		return fmt.Errorf("invalid wallet: %w", err)
	}
	env.list.Add(w)
	fmt.Fprintln(env.out, w.ID.String())
	slog.DebugContext(ctx, "Queued save", "path", env.path)
	return nil
}

func cmdRemove(_ context.Context, env *environment, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: walletdb remove <id>")
	}
	id, err := ksid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", args[0], err)
	}
	w, ok := env.find(id)
	if !ok || !env.list.Remove(w) {
		return fmt.Errorf("wallet %s not found", id.String())
	}
	return nil
}

// importFile is the YAML document accepted by the import command.
type importFile struct {
	Wallets []models.MultiSigWallet `yaml:"wallets"`
}

func cmdImport(ctx context.Context, env *environment, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: walletdb import <file.yaml>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var doc importFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}
	// A bad entry leaves the list untouched.
	now := time.Now().UTC()
	var toAdd []models.MultiSigWallet
	for i := range doc.Wallets {
		w := doc.Wallets[i]
		if w.ID.IsZero() {
			w.ID = ksid.NewID()
		} else if _, ok := env.find(w.ID); ok {
			slog.WarnContext(ctx, "Skipping wallet already present", "id", w.ID.String(), "name", w.Name)
			continue
		}
		if w.Created.IsZero() {
			w.Created = now
		}
		if err := w.Validate(); err != nil {
			return fmt.Errorf("wallet %d (%s): %w", i, w.Name, err)
		}
		toAdd = append(toAdd, w)
	}
	for _, w := range toAdd {
		env.list.Add(w)
	}
	slog.InfoContext(ctx, "Imported wallets", "file", args[0], "added", len(toAdd), "total", env.list.Len())
	return nil
}

func cmdExport(_ context.Context, env *environment, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown arguments: %v", args)
	}
	var doc importFile
	for w := range env.list.All() {
		doc.Wallets = append(doc.Wallets, w)
	}
	enc := yaml.NewEncoder(env.out)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("failed to encode: %w", err)
	}
	return enc.Close()
}
