// Package main is the entrypoint for beacon-dapp.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/beacon-dapp/internal/config"
	"github.com/morezero/beacon-dapp/internal/server"
	"github.com/morezero/beacon-dapp/pkg/beacon"
	"github.com/morezero/beacon-dapp/pkg/client"
	"github.com/morezero/beacon-dapp/pkg/session"
	"github.com/morezero/beacon-dapp/pkg/storage"
)

const usage = `Usage: beacon-dapp [command]
       beacon-dapp run                          Start the engine (COMMS, HTTP health and metrics).
       beacon-dapp permissions [scope...]       Request permissions from a wallet (default scopes: operation_request sign).
       beacon-dapp sign <payload> [type]        Ask the active account to sign a payload (type: raw, operation, micheline).
       beacon-dapp operation <json>             Ask the wallet to forge, sign and inject operations (JSON array).
       beacon-dapp broadcast <signed-tx>        Ask the wallet to inject a signed transaction.
       beacon-dapp accounts list                List granted accounts.
       beacon-dapp accounts use <identifier>    Make a granted account the active account.
       beacon-dapp accounts remove <identifier> Forget a granted account.
       beacon-dapp migrate up                   Run database migrations.
       beacon-dapp ensure-db [name]             Create the database if missing (default: the one in DATABASE_URL).
       beacon-dapp clear                        Truncate stored accounts and settings; rotates the dApp identity.

Commands:
  run         (default) Start the engine and wait for a shutdown signal.
  permissions Request scopes; the granted account becomes active.
  sign        Requires the sign scope.
  operation   Requires the operation_request scope.
  broadcast   Requires no scope.
  accounts    Manage granted accounts (requires DATABASE_URL).
  migrate up  Run database migrations only.
  ensure-db   Create a database on the DATABASE_URL host, e.g. beacon_test for integration tests.
  clear       Truncate beacon storage; schema preserved.

Environment: COMMS_URL (default nats://127.0.0.1:4222), BEACON_REQUEST_SUBJECT, BEACON_WIRE_FORMAT,
BEACON_DEFAULT_NETWORK, BEACON_REQUEST_TIMEOUT, DATABASE_URL (empty means in-memory), HTTP_PORT. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	var err error
	switch cmd {
	case "permissions":
		err = runPermissions(args[1:])
	case "sign":
		err = runSign(args[1:])
	case "operation":
		err = runOperation(args[1:])
	case "broadcast":
		err = runBroadcast(args[1:])
	case "accounts":
		err = runAccounts(args[1:])
	case "migrate":
		if len(args) < 2 || args[1] != "up" {
			log.Fatalf("beacon-dapp migrate: require subcommand up")
		}
		err = runMigrateUp()
	case "ensure-db":
		dbName := ""
		if len(args) > 1 {
			dbName = args[1]
		}
		err = runEnsureDB(dbName)
	case "clear":
		err = runClear()
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "run", "":
		err = server.Run()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}
	if err != nil {
		if cmd == "" {
			cmd = "run"
		}
		log.Fatalf("beacon-dapp %s: %v", cmd, err)
	}
}

// withClient starts the engine, waits for the persisted session and runs fn
// with a context bounded by the configured request timeout.
func withClient(fn func(ctx context.Context, c *client.Client) (interface{}, error)) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	server.SetupLogging(cfg.LogLevel, os.Stderr)
	if err := cfg.ValidateForRun(); err != nil {
		return err
	}

	ctx := context.Background()
	s, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	<-s.Ready()

	reqCtx, cancel := s.RequestContext(ctx)
	defer cancel()
	out, err := fn(reqCtx, s.Client())
	if err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseScopes(args []string) ([]beacon.PermissionScope, error) {
	var scopes []beacon.PermissionScope
	for _, a := range args {
		s := beacon.PermissionScope(strings.ToLower(a))
		switch s {
		case beacon.ScopeSign, beacon.ScopeOperationRequest, beacon.ScopeThreshold:
			scopes = append(scopes, s)
		default:
			return nil, fmt.Errorf("unknown scope %q", a)
		}
	}
	return scopes, nil
}

func runPermissions(args []string) error {
	scopes, err := parseScopes(args)
	if err != nil {
		return err
	}
	return withClient(func(ctx context.Context, c *client.Client) (interface{}, error) {
		return c.RequestPermissions(ctx, client.PermissionInput{Scopes: scopes})
	})
}

func runSign(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("require payload")
	}
	in := client.SignPayloadInput{Payload: args[0]}
	if len(args) > 1 {
		in.SigningType = beacon.SigningType(args[1])
	}
	return withClient(func(ctx context.Context, c *client.Client) (interface{}, error) {
		return c.RequestSignPayload(ctx, in)
	})
}

func runOperation(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("require operation details")
	}
	var details []json.RawMessage
	if err := json.Unmarshal([]byte(args[0]), &details); err != nil {
		return fmt.Errorf("operation details must be a JSON array: %w", err)
	}
	return withClient(func(ctx context.Context, c *client.Client) (interface{}, error) {
		return c.RequestOperation(ctx, client.OperationInput{OperationDetails: details})
	})
}

func runBroadcast(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("require signed transaction")
	}
	return withClient(func(ctx context.Context, c *client.Client) (interface{}, error) {
		return c.RequestBroadcast(ctx, client.BroadcastInput{SignedTransaction: args[0]})
	})
}

// openDB returns the Postgres-backed store. Callers close the pool.
func openDB(ctx context.Context) (*pgxpool.Pool, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	server.SetupLogging(cfg.LogLevel, os.Stderr)
	if err := cfg.ValidateForDB(); err != nil {
		return nil, nil, err
	}
	pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, cfg, nil
}

func runAccounts(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("require subcommand (list, use, remove)")
	}
	ctx := context.Background()
	pool, _, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := storage.NewRepository(pool)

	switch args[0] {
	case "list":
		accounts, err := store.ListAccounts(ctx)
		if err != nil {
			return err
		}
		return printJSON(accounts)
	case "use":
		if len(args) < 2 {
			return fmt.Errorf("require account identifier")
		}
		acc, err := store.GetAccount(ctx, args[1])
		if err != nil {
			return err
		}
		if acc == nil {
			return fmt.Errorf("unknown account %q", args[1])
		}
		if err := session.NewManager(store, nil).SetActive(ctx, acc); err != nil {
			return err
		}
		return printJSON(acc)
	case "remove":
		if len(args) < 2 {
			return fmt.Errorf("require account identifier")
		}
		if err := store.RemoveAccount(ctx, args[1]); err != nil {
			return err
		}
		active, ok, err := store.Get(ctx, storage.KeyActiveAccount)
		if err == nil && ok && active == args[1] {
			return store.Delete(ctx, storage.KeyActiveAccount)
		}
		return err
	default:
		return fmt.Errorf("unknown subcommand %q (use list, use, remove)", args[0])
	}
}

func runMigrateUp() error {
	ctx := context.Background()
	pool, cfg, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrations, err := storage.LoadMigrations(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := storage.RunMigrations(ctx, pool, migrations); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runClear() error {
	ctx := context.Background()
	pool, _, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := storage.ClearStorage(ctx, pool); err != nil {
		return fmt.Errorf("clear storage: %w", err)
	}
	return nil
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	server.SetupLogging(cfg.LogLevel, os.Stderr)
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	target := cfg.DatabaseURL
	if dbName != "" {
		if target, err = storage.WithDatabase(cfg.DatabaseURL, dbName); err != nil {
			return err
		}
	}
	if err := storage.EnsureDatabase(context.Background(), target); err != nil {
		return err
	}
	name, _ := storage.DatabaseName(target)
	fmt.Printf("Database %q is ready.\n", name)
	return nil
}
