// Decksync is the calendar reconciliation engine behind The Deck: it mirrors
// Google and Outlook calendar events into the local database and keeps each
// task's due-date event in step with the task.
//
// Usage:
//
//	decksync sync-once [--config <path>]        # one batch pass over all enabled accounts
//	decksync daemon [--config <path>]           # periodic batch sync
//	decksync connect <provider> --email <addr>  # authorize a new calendar account
//	decksync accounts                           # list connected accounts
//	decksync disconnect <account-id>            # remove an account and its mirror events
//	decksync status                             # show config and database state
//	decksync version                            # print version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/decklabs/decksync/internal/auth"
	"github.com/decklabs/decksync/internal/config"
	"github.com/decklabs/decksync/internal/google"
	"github.com/decklabs/decksync/internal/model"
	"github.com/decklabs/decksync/internal/outlook"
	"github.com/decklabs/decksync/internal/store"
	syncp "github.com/decklabs/decksync/internal/sync"
	"github.com/decklabs/decksync/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the appropriate subcommand.
func run() error {
	// Secrets may live in a .env next to the binary; absence is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		return printUsage()
	}

	switch cmd := os.Args[1]; cmd {
	case "daemon":
		return runSync(os.Args[2:], true)
	case "sync-once":
		return runSync(os.Args[2:], false)
	case "connect":
		return runConnect(os.Args[2:])
	case "accounts":
		return runAccounts(os.Args[2:])
	case "disconnect":
		return runDisconnect(os.Args[2:])
	case "status":
		return runStatus()
	case "version":
		fmt.Println("decksync", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q — run 'decksync' for usage", cmd)
	}
}

func printUsage() error {
	fmt.Fprintln(os.Stderr, "decksync — calendar sync engine for The Deck")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  decksync sync-once [--config ...]          Single batch sync then exit")
	fmt.Fprintln(os.Stderr, "  decksync daemon [--config ...]             Periodic batch sync")
	fmt.Fprintln(os.Stderr, "  decksync connect <provider> --email ...    Authorize a calendar account")
	fmt.Fprintln(os.Stderr, "  decksync accounts                          List connected accounts")
	fmt.Fprintln(os.Stderr, "  decksync disconnect <account-id>           Remove an account")
	fmt.Fprintln(os.Stderr, "  decksync status                            Show config and database state")
	fmt.Fprintln(os.Stderr, "  decksync version                           Print version")

	os.Exit(1)
	return nil // unreachable
}

// --- Subcommands -------------------------------------------------------------

// runSync handles both "daemon" and "sync-once".
func runSync(args []string, daemon bool) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := newLogger(*verbose)
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Telemetry first, so engine counters land somewhere if configured.
	if cfg.Telemetry != nil {
		shutdown, err := telemetry.Setup(ctx, telemetry.Config{
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure:     cfg.Telemetry.Insecure,
			ServiceName:  cfg.Telemetry.ServiceName,
			Headers:      cfg.Telemetry.Headers,
		})
		if err != nil {
			logger.Warn("telemetry setup failed, continuing without", "error", err)
		}
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = shutdown(shCtx)
		}()
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	engine := syncp.NewEngine(newOrchestrator(cfg, db, logger), cfg.UserID, cfg.PollInterval, logger)

	if daemon {
		logger.Info("starting daemon", "poll_interval", cfg.PollInterval)
		err := engine.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	results, err := engine.RunOnce(ctx)
	if err != nil {
		return err
	}
	printResults(results)
	return nil
}

// runConnect authorizes a new provider account and stores it.
func runConnect(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: decksync connect <google|outlook> --email <address>")
	}
	provider, err := model.ParseProvider(args[0])
	if err != nil {
		return err
	}
	if !provider.Remote() {
		return fmt.Errorf("cannot connect provider %q", provider)
	}

	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	email := fs.String("email", "", "email address of the calendar account")
	calendarID := fs.String("calendar", "primary", "provider-side calendar identifier")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	oauthCfg, ok := cfg.GoogleOAuth()
	if provider == model.ProviderOutlook {
		oauthCfg, ok = cfg.OutlookOAuth()
	}
	if !ok {
		return fmt.Errorf("%s: %w", provider, model.ErrNotConfigured)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	creds, err := auth.Connect(ctx, oauthCfg, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	account := &model.Account{
		UserID:      cfg.UserID,
		Provider:    provider,
		Email:       *email,
		Credentials: creds,
		CalendarID:  *calendarID,
		Enabled:     true,
	}
	if err := db.CreateAccount(ctx, account); err != nil {
		return err
	}

	fmt.Printf("Connected %s account %s (id %d)\n", provider, *email, account.ID)
	return nil
}

// runAccounts lists the user's connected accounts.
func runAccounts(args []string) error {
	fs := flag.NewFlagSet("accounts", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	accounts, err := db.ListAccounts(ctx, cfg.UserID)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No calendar accounts connected. Run 'decksync connect <provider>'.")
		return nil
	}

	for _, a := range accounts {
		state := "enabled"
		if !a.Enabled {
			state = "disabled"
		}
		lastSynced := "never"
		if a.LastSyncedAt != nil {
			lastSynced = a.LastSyncedAt.Format(time.RFC3339)
		}
		count, err := db.CountMirrorEvents(ctx, a.ID)
		if err != nil {
			return err
		}
		fmt.Printf("  [%d] %-8s %-30s %s, %d events, last synced %s\n",
			a.ID, a.Provider, a.Email, state, count, lastSynced)
	}
	return nil
}

// runDisconnect removes an account; its mirror events go with it.
func runDisconnect(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: decksync disconnect <account-id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid account id %q", args[0])
	}

	fs := flag.NewFlagSet("disconnect", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	account, err := db.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("account id=%d not found", id)
	}
	if err := db.DeleteAccount(ctx, id); err != nil {
		return err
	}

	fmt.Printf("Disconnected %s account %s and removed its mirror events\n", account.Provider, account.Email)
	return nil
}

// runStatus prints the current configuration and database state.
func runStatus() error {
	cfgPath, _ := config.DefaultPath()

	fmt.Println("Decksync Status")
	fmt.Println("───────────────")

	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Printf("  Config:   not found (%s)\n", cfgPath)
		return nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config:   %s (invalid: %v)\n", cfgPath, err)
		return nil
	}

	fmt.Printf("  Config:   %s ✓\n", cfgPath)
	fmt.Printf("  Poll:     %s\n", cfg.PollInterval)
	fmt.Printf("  Window:   -%dd … +%dd\n", cfg.Window.PastDays, cfg.Window.FutureDays)
	fmt.Printf("  Google:   %s\n", configuredLabel(cfg.Providers.Google.Configured()))
	fmt.Printf("  Outlook:  %s\n", configuredLabel(cfg.Providers.Outlook.Configured()))

	if info, err := os.Stat(cfg.DatabasePath); err == nil {
		fmt.Printf("  Database: %s (%s)\n", cfg.DatabasePath, humanSize(info.Size()))
	} else {
		fmt.Printf("  Database: not found (%s)\n", cfg.DatabasePath)
	}
	return nil
}

// --- Wiring ------------------------------------------------------------------

// newOrchestrator assembles the sync pipeline: one provider client per
// configured provider, the reconciler, and the batch orchestrator.
func newOrchestrator(cfg *config.Config, db *store.Store, logger *slog.Logger) *syncp.Orchestrator {
	clients := make(map[model.Provider]syncp.ProviderClient)
	if oauthCfg, ok := cfg.GoogleOAuth(); ok {
		clients[model.ProviderGoogle] = google.NewClient(oauthCfg, logger)
	}
	if oauthCfg, ok := cfg.OutlookOAuth(); ok {
		clients[model.ProviderOutlook] = outlook.NewClient(oauthCfg, logger)
	}

	window := syncp.Window{
		Past:   time.Duration(cfg.Window.PastDays) * 24 * time.Hour,
		Future: time.Duration(cfg.Window.FutureDays) * 24 * time.Hour,
	}

	reconciler := syncp.NewReconciler(db, db, logger)
	return syncp.NewOrchestrator(clients, reconciler, db, window, logger)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func printResults(results []syncp.AccountResult) {
	if len(results) == 0 {
		fmt.Println("No enabled calendar accounts to sync.")
		return
	}
	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("  %-8s %-30s error: %v\n", res.Provider, res.Email, res.Err)
			continue
		}
		fmt.Printf("  %-8s %-30s %d events\n", res.Provider, res.Email, res.Synced)
	}
}

func configuredLabel(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
