// Package ctl implements artivaultctl, the administrative command line that
// migrates the schema and provisions users, groups, tokens and attribute keys
// directly against the database.
package ctl

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/artivault/internal/logging"
	"github.com/dmitrijs2005/artivault/internal/server/config"
	"github.com/dmitrijs2005/artivault/internal/server/models"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/artivault/internal/server/services"
)

// Env is an opened database with the services the commands need.
type Env struct {
	Admin   *services.AdminService
	Migrate func(ctx context.Context) error
	Close   func() error
}

// Opener connects to the database described by cfg.
type Opener func(ctx context.Context, cfg *config.Config) (*Env, error)

// Open is the production Opener.
func Open(ctx context.Context, cfg *config.Config) (*Env, error) {
	m, err := repomanager.NewRepositoryManager(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogBackend)
	if err != nil {
		return nil, err
	}
	db, err := repomanager.OpenDB(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &Env{
		Admin:   services.NewAdminService(db, m, cfg, logger),
		Migrate: func(ctx context.Context) error { return m.RunMigrations(ctx, db) },
		Close:   db.Close,
	}, nil
}

type rootFlags struct {
	configPath string
	driver     string
	dsn        string
	secret     string
	logBackend string
}

// loadConfig applies defaults, then the config file, then explicit flags.
func (f *rootFlags) loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	if f.configPath != "" {
		if err := config.LoadFile(f.configPath, cfg); err != nil {
			return nil, err
		}
	}
	for dst, v := range map[*string]string{
		&cfg.DatabaseDriver: f.driver,
		&cfg.DatabaseDSN:    f.dsn,
		&cfg.SecretKey:      f.secret,
		&cfg.LogBackend:     f.logBackend,
	} {
		if v != "" {
			*dst = v
		}
	}
	return cfg, nil
}

type runner struct {
	flags rootFlags
	open  Opener
}

// with opens the database for one command and closes it afterwards.
func (r *runner) with(fn func(ctx context.Context, env *Env, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := r.flags.loadConfig()
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		env, err := r.open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()
		return fn(cmd.Context(), env, cmd.OutOrStdout(), args)
	}
}

// NewRootCommand builds the artivaultctl command tree around open.
func NewRootCommand(open Opener) *cobra.Command {
	r := &runner{open: open}

	root := &cobra.Command{
		Use:           "artivaultctl",
		Short:         "Administer an artivault database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&r.flags.configPath, "config", "c", "", "JSON or TOML config file")
	pf.StringVar(&r.flags.driver, "driver", "", `database driver, "pgx" or "sqlite3"`)
	pf.StringVar(&r.flags.dsn, "dsn", "", "database DSN")
	pf.StringVar(&r.flags.secret, "secret", "", "JWT secret used by token")
	pf.StringVar(&r.flags.logBackend, "log", "", `log backend, "slog" or "zap"`)

	root.AddCommand(
		r.migrateCmd(),
		r.userCmd(),
		r.groupCmd(),
		r.tokenCmd(),
		r.metakeyCmd(),
	)
	return root
}

func (r *runner) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: r.with(func(ctx context.Context, env *Env, out io.Writer, _ []string) error {
			if err := env.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "Schema is up to date")
			return nil
		}),
	}
}

func (r *runner) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	create := &cobra.Command{
		Use:   "create <login>",
		Short: "Create a user with a personal group",
		Args:  cobra.ExactArgs(1),
	}
	create.RunE = r.with(func(ctx context.Context, env *Env, out io.Writer, args []string) error {
		u, err := env.Admin.CreateUser(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Created user %s\n", u.Login)
		return nil
	})

	cmd.AddCommand(create)
	return cmd
}

func (r *runner) groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups",
	}

	var g models.Group
	var caps []string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
	}
	create.Flags().BoolVar(&g.Public, "public", false, "every user joins the group")
	create.Flags().BoolVar(&g.Pending, "pending", false, "objects cannot be shared with the group yet")
	create.Flags().BoolVar(&g.AllAccess, "all-access", false, "members see every object")
	create.Flags().StringSliceVar(&caps, "capability", nil, "capability to grant (repeatable)")
	create.RunE = r.with(func(ctx context.Context, env *Env, out io.Writer, args []string) error {
		g.Name = args[0]
		for _, name := range caps {
			g.Capabilities = append(g.Capabilities, models.Capability(strings.TrimSpace(name)))
		}
		created, err := env.Admin.CreateGroup(ctx, g)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Created group %s\n", created.Name)
		return nil
	})

	addMember := &cobra.Command{
		Use:   "add-member <group> <login>",
		Short: "Add a user to a group",
		Args:  cobra.ExactArgs(2),
	}
	addMember.RunE = r.with(func(ctx context.Context, env *Env, out io.Writer, args []string) error {
		if err := env.Admin.AddMember(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Added %s to %s\n", args[1], args[0])
		return nil
	})

	grant := &cobra.Command{
		Use:   "grant-capability <group> <capability>",
		Short: "Grant a capability to a group",
		Args:  cobra.ExactArgs(2),
	}
	grant.RunE = r.with(func(ctx context.Context, env *Env, out io.Writer, args []string) error {
		if err := env.Admin.GrantCapability(ctx, args[0], models.Capability(args[1])); err != nil {
			return err
		}
		fmt.Fprintf(out, "Granted %s to %s\n", args[1], args[0])
		return nil
	})

	cmd.AddCommand(create, addMember, grant)
	return cmd
}

func (r *runner) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <login>",
		Short: "Mint an access token for a user",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = r.with(func(ctx context.Context, env *Env, out io.Writer, args []string) error {
		token, err := env.Admin.IssueToken(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, token)
		return nil
	})
	return cmd
}

func (r *runner) metakeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metakey",
		Short: "Manage attribute keys",
	}

	var def models.MetakeyDefinition
	define := &cobra.Command{
		Use:   "define <key>",
		Short: "Create or replace an attribute key definition",
		Args:  cobra.ExactArgs(1),
	}
	define.Flags().StringVar(&def.Label, "label", "", "display label")
	define.Flags().StringVar(&def.Description, "description", "", "description")
	define.Flags().StringVar(&def.URLTemplate, "url-template", "", "link template, $value is substituted")
	define.Flags().BoolVar(&def.Hidden, "hidden", false, "only readable with reading_all_attributes")
	define.RunE = r.with(func(ctx context.Context, env *Env, out io.Writer, args []string) error {
		def.Key = args[0]
		saved, err := env.Admin.DefineMetakey(ctx, def)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Defined metakey %s\n", saved.Key)
		return nil
	})

	var canRead, canSet bool
	permit := &cobra.Command{
		Use:   "permit <key> <group>",
		Short: "Set what a group may do with a key",
		Args:  cobra.ExactArgs(2),
	}
	permit.Flags().BoolVar(&canRead, "read", false, "group may read values")
	permit.Flags().BoolVar(&canSet, "set", false, "group may set values")
	permit.RunE = r.with(func(ctx context.Context, env *Env, out io.Writer, args []string) error {
		if err := env.Admin.PermitMetakey(ctx, args[0], args[1], canRead, canSet); err != nil {
			return err
		}
		fmt.Fprintf(out, "Permitted %s on %s (read=%t set=%t)\n", args[1], args[0], canRead, canSet)
		return nil
	})

	revoke := &cobra.Command{
		Use:   "revoke <key> <group>",
		Short: "Remove a group's permission on a key",
		Args:  cobra.ExactArgs(2),
	}
	revoke.RunE = r.with(func(ctx context.Context, env *Env, out io.Writer, args []string) error {
		if err := env.Admin.RevokeMetakey(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Revoked %s on %s\n", args[1], args[0])
		return nil
	})

	cmd.AddCommand(define, permit, revoke)
	return cmd
}
