// Package commands implements blogctl, the operator CLI for the travel blog.
//
// blogctl works directly on the SQLite database the server uses, so it can
// repair data while the server is stopped (or, thanks to WAL, running).
package commands

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/travel-blog/internal/auth"
	"github.com/sakif/travel-blog/internal/config"
	"github.com/sakif/travel-blog/internal/repository/sqlite"
	"github.com/sakif/travel-blog/internal/service"
)

type options struct {
	configPath string
	dbPath     string
	verbose    bool
	jsonOutput bool
}

// app holds what a subcommand needs. It is opened in PersistentPreRunE and
// closed in PersistentPostRunE.
type app struct {
	cfg     *config.Config
	db      *sqlite.DB
	content *service.ContentService
	auth    *service.AuthService
	out     io.Writer
	json    bool
}

// NewRootCmd builds the blogctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	a := &app{}

	root := &cobra.Command{
		Use:   "blogctl",
		Short: "Maintenance commands for the travel blog",
		Long: `blogctl runs maintenance tasks against the blog database.

Examples:
  blogctl files list
  blogctl files fix-permissions
  blogctl files fix-permissions --file cs7k2m3p0nq4
  blogctl stats users
  blogctl accounts create --email mia@example.com --name Mia --password ...`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd, opts)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default: $CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides config)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log service activity to stderr")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	root.AddCommand(newFilesCmd(a), newStatsCmd(a), newAccountsCmd(a))
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) open(cmd *cobra.Command, opts *options) error {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if opts.dbPath != "" {
		cfg.Database.Path = opts.dbPath
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.verbose {
		logger = cfg.Logging.NewLogger(cmd.ErrOrStderr())
	}

	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}

	// Accounts created here get a session like any signup. Without a
	// configured secret the token is signed with a throwaway key and is
	// never handed out.
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = randomSecret()
	}
	tokens, err := auth.NewTokenService(secret, auth.WithIssuer(cfg.Auth.Issuer), auth.WithTTL(cfg.Auth.SessionTTL))
	if err != nil {
		db.Close()
		return err
	}

	a.cfg = cfg
	a.db = db
	a.content = service.NewContentService(db.Posts(), db.Files(cfg.Content.Bucket), logger)
	a.auth = service.NewAuthService(
		db.Accounts(), db.Profiles(), db.Sessions(), db.Stats(),
		tokens, auth.NewPasswordService(), cfg.Content.DemoUserCount, logger,
	)
	a.out = cmd.OutOrStdout()
	a.json = opts.jsonOutput
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func randomSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
