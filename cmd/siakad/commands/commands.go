package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/siakad/core/internal/adapters/repository"
	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/config"
	"github.com/siakad/core/internal/infrastructure/database"
	"github.com/siakad/core/internal/infrastructure/server"
	"github.com/siakad/core/internal/ports"
)

// Version is overridden at build time with -ldflags "-X .../commands.Version=..."
var Version = "dev"

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the sync agent and its local API",
		Long:  "Start background sync, attendance reminders and the local HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage the kv_store schema of the postgres storage driver (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("up")
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("down")
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			showMigrationVersion()
		},
	})

	return migrateCmd
}

// NewLoginCommand creates the login command
func NewLoginCommand() *cobra.Command {
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the student locally",
		Run: func(cmd *cobra.Command, args []string) {
			nim, _ := cmd.Flags().GetString("nim")
			password, _ := cmd.Flags().GetString("password")

			withApp(func(ctx context.Context, a *app) error {
				user, err := a.auth.Login(ctx, ports.LoginRequest{NIM: nim, Password: password})
				if err != nil {
					return err
				}
				fmt.Printf("Logged in as %s (%s)\n", user.Name, user.NIM)
				return nil
			})
		},
	}

	loginCmd.Flags().String("nim", "", "Student NIM (required)")
	loginCmd.Flags().String("password", "", "Password (required)")
	loginCmd.MarkFlagRequired("nim")
	loginCmd.MarkFlagRequired("password")
	return loginCmd
}

// NewRegisterCommand creates the register command
func NewRegisterCommand() *cobra.Command {
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Create a SIAKAD account and log in",
		Run: func(cmd *cobra.Command, args []string) {
			req := ports.RegisterRequest{}
			req.NIM, _ = cmd.Flags().GetString("nim")
			req.Name, _ = cmd.Flags().GetString("name")
			req.Password, _ = cmd.Flags().GetString("password")
			regType, _ := cmd.Flags().GetString("type")
			req.Type = entities.RegistrationType(regType)
			if email, _ := cmd.Flags().GetString("email"); email != "" {
				req.Email = &email
			}

			withApp(func(ctx context.Context, a *app) error {
				user, err := a.auth.Register(ctx, req)
				if err != nil {
					return err
				}
				fmt.Printf("Registered %s (%s), type %s\n", user.Name, user.NIM, user.Type)
				return nil
			})
		},
	}

	registerCmd.Flags().String("nim", "", "Student NIM (required)")
	registerCmd.Flags().String("name", "", "Full name (required)")
	registerCmd.Flags().String("password", "", "Password (required)")
	registerCmd.Flags().String("email", "", "Email address")
	registerCmd.Flags().String("type", string(entities.RegistrationRegular), "Registration type (reguler, karyawan)")
	registerCmd.MarkFlagRequired("nim")
	registerCmd.MarkFlagRequired("name")
	registerCmd.MarkFlagRequired("password")
	return registerCmd
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored student",
		Run: func(cmd *cobra.Command, args []string) {
			withApp(func(ctx context.Context, a *app) error {
				if err := a.auth.Logout(ctx); err != nil {
					return err
				}
				fmt.Println("Logged out")
				return nil
			})
		},
	}
}

// NewPasswdCommand creates the password change command
func NewPasswdCommand() *cobra.Command {
	passwdCmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the logged in student",
		Run: func(cmd *cobra.Command, args []string) {
			oldPassword, _ := cmd.Flags().GetString("old")
			newPassword, _ := cmd.Flags().GetString("new")

			withApp(func(ctx context.Context, a *app) error {
				msg, err := a.auth.ChangePassword(ctx, oldPassword, newPassword)
				if err != nil {
					return err
				}
				if msg == "" {
					msg = "Password changed"
				}
				fmt.Println(msg)
				return nil
			})
		},
	}

	passwdCmd.Flags().String("old", "", "Current password (required)")
	passwdCmd.Flags().String("new", "", "New password (required)")
	passwdCmd.MarkFlagRequired("old")
	passwdCmd.MarkFlagRequired("new")
	return passwdCmd
}

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the local snapshot and counts",
		Run: func(cmd *cobra.Command, args []string) {
			withApp(func(ctx context.Context, a *app) error {
				a.state.Init(ctx)
				a.state.Wait()

				out, err := json.MarshalIndent(a.state.Snapshot(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			})
		},
	}
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print siakad version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("siakad %s\n", Version)
		},
	}
}

// withApp runs fn against a quiet service graph and exits non-zero on error.
func withApp(fn func(ctx context.Context, a *app) error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		log.Fatalf("%v", err)
	}

	err = fn(ctx, a)
	a.Close()
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func runServer() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, false)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	a.notifier.Start()
	defer a.notifier.Stop()

	a.seedReminderTime(ctx)
	a.state.Init(ctx)

	go func() {
		if err := a.state.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Errorw("Background refresh stopped", "error", err)
		}
	}()

	srv := server.New(a.cfg, a.state, a.auth, a.store, a.metrics, a.logger)

	a.logger.Infow("Starting SIAKAD agent",
		"port", a.cfg.Server.Port,
		"environment", a.cfg.App.Environment,
		"storage", a.cfg.Storage.Driver,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(a.cfg.Server.GetAddr())
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorw("Server failed", "error", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Errorw("Server shutdown failed", "error", err)
	}
}

func openMigrator() (*migrate.Migrate, *database.DB) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	m, err := repository.NewMigrator(db.DB)
	if err != nil {
		db.Close()
		log.Fatalf("%v", err)
	}

	return m, db
}

func runMigration(direction string) {
	m, db := openMigrator()
	defer db.Close()

	var err error
	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration failed: %v", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("No migrations to run")
	} else {
		fmt.Printf("Migration %s completed successfully\n", direction)
	}
}

func showMigrationVersion() {
	m, db := openMigrator()
	defer db.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("No migrations applied")
		return
	}
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}

	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
}
