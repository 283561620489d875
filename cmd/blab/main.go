// Blab - Lab Switch Reservation Tool
//
// A CLI for managing a shared lab of physical switches:
//   - Reserve and release switches, with login banners naming the owner
//   - Cross-connect switch ports through the backbone fabric
//   - Share a reserved topology with other users
//   - Restore freed switches to a clean boot state
//
// Examples:
//
//	blab switch list                        # Catalog of lab switches
//	blab reserve 12 --until 48h             # Reserve switch 12 for two days
//	blab connect 3 17                       # Link port 3 to port 17
//	blab disconnect 3 17                    # Tear the link down
//	blab share bob                          # Let bob use your topology
//	blab release 12 --cleanup               # Release and factory-reset
//	blab sweep --interval 10m               # Expiry daemon with metrics
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/TitouanDH/BLab/pkg/audit"
	"github.com/TitouanDH/BLab/pkg/backbone"
	"github.com/TitouanDH/BLab/pkg/config"
	"github.com/TitouanDH/BLab/pkg/device"
	"github.com/TitouanDH/BLab/pkg/engine"
	"github.com/TitouanDH/BLab/pkg/lock"
	"github.com/TitouanDH/BLab/pkg/model"
	"github.com/TitouanDH/BLab/pkg/store"
	"github.com/TitouanDH/BLab/pkg/util"
	"github.com/TitouanDH/BLab/pkg/version"
)

var (
	// Global option flags
	cfgPath    string
	actingUser string
	verbose    bool
	jsonOutput bool

	// Global state, assembled in PersistentPreRunE
	cfg    *config.Config
	st     *store.Postgres
	locker lock.Locker
	eng    *engine.Engine
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "blab",
	Short:         "Lab Switch Reservation Tool",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `Blab manages a shared lab of physical switches: reservations,
port cross-connects through the backbone fabric, and cleanup.

  blab reserve <switch-id>
  blab connect <port-id> <port-id>`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isHelpOrVersion(cmd) {
			return nil
		}

		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}

		if cfgPath == "" {
			cfgPath = os.Getenv("BLAB_CONFIG")
		}

		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if cfg.Database.DSN == "" {
			return fmt.Errorf("no database configured: set database.dsn or BLAB_DB_DSN")
		}
		if cfg.Device.Password == "" {
			if cfg.Device.Password, err = promptPassword(cfg.Device.Username); err != nil {
				return err
			}
		}

		st, err = store.Open(cfg.Database.DSN)
		if err != nil {
			return err
		}
		if err := st.EnsureSchema(cmd.Context()); err != nil {
			return err
		}

		if cfg.Redis.Addr != "" {
			redisLocker := lock.NewRedis(cfg.Redis.Addr)
			if err := redisLocker.Ping(cmd.Context()); err != nil {
				return err
			}
			locker = redisLocker
		} else {
			locker = lock.NewLocal()
		}

		gw := device.NewGateway(cfg.Device.Username, cfg.Device.Password, cfg.Device.Timeout.Std())
		eng = engine.New(st, gw, locker, engine.Options{
			SVLANBase: cfg.SVLANBase,
			Verify: backbone.RetryPolicy{
				Attempts: cfg.Verify.Attempts,
				Interval: cfg.Verify.Interval.Std(),
			},
		})

		auditLogger, err := audit.NewFileLogger(cfg.Audit.Path, audit.RotationConfig{
			MaxSize:    cfg.Audit.MaxSize,
			MaxBackups: cfg.Audit.MaxBackups,
		})
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if st != nil {
			st.Close()
		}
		if closer, ok := locker.(interface{ Close() error }); ok {
			closer.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().StringVarP(&actingUser, "user", "u", "", "Act as this user (default $USER)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	for _, cmd := range []*cobra.Command{
		switchCmd, portCmd, listLinksCmd, reservationsCmd, sharesCmd, userCmd, auditCmd,
	} {
		addOutputFlags(cmd)
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "lifecycle", Title: "Reservation & Links:"},
		&cobra.Group{ID: "catalog", Title: "Catalog Management:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{
		reserveCmd, releaseCmd, reservationsCmd,
		connectCmd, disconnectCmd, listLinksCmd,
		shareCmd, unshareCmd, sharesCmd,
	} {
		cmd.GroupID = "lifecycle"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{switchCmd, portCmd, userCmd} {
		cmd.GroupID = "catalog"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{auditCmd, sweepCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("blab dev build (use 'make build' for version info)")
		} else {
			fmt.Printf("blab %s (%s)\n", version.Version, version.GitCommit)
		}
	},
}

// currentUser resolves the acting user from --user or $USER, creating
// the record on first use.
func currentUser(ctx context.Context) (*model.User, error) {
	name := actingUser
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		return nil, fmt.Errorf("cannot determine user: use -u <name> or set $USER")
	}
	return eng.User(ctx, name, true)
}

// promptPassword asks for the device password when neither the config
// file nor BLAB_DEVICE_PASSWORD provides one.
func promptPassword(username string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("no device password configured: set device.password or BLAB_DEVICE_PASSWORD")
	}
	fmt.Fprintf(os.Stderr, "Device password for %s: ", username)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

// parseID parses a numeric catalog ID argument.
func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q", what, arg)
	}
	return id, nil
}

// isHelpOrVersion checks whether cmd (or any ancestor) is a help or
// version command.
func isHelpOrVersion(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "completion":
			return true
		}
	}
	return false
}

// addOutputFlags registers --json as a local flag.
// For noun-group parent commands, this is a PersistentFlag so subcommands inherit.
func addOutputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVar(&jsonOutput, "json", false, "JSON output")
}
