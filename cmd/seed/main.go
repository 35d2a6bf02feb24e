package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/cetzal/authcore/internal/app"
	"github.com/cetzal/authcore/internal/config"
	"github.com/cetzal/authcore/internal/repository/postgres"
	"github.com/cetzal/authcore/internal/service"
	"github.com/cetzal/authcore/pkg/logger"
)

type seedOptions struct {
	username  string
	email     string
	password  string
	firstName string
	lastName  string
	age       int
	inactive  bool
	timeout   time.Duration
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo account if it does not exist",
		Long: `seed connects to the configured PostgreSQL database, applies pending
migrations and creates one account. Running it again is harmless: an existing
username or e-mail is reported and left untouched.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.username, "username", "demo", "account username")
	f.StringVar(&opts.email, "email", "demo@demo.com", "account e-mail")
	f.StringVar(&opts.password, "password", "12345", "account password")
	f.StringVar(&opts.firstName, "first-name", "Demo", "first name")
	f.StringVar(&opts.lastName, "last-name", "User", "last name")
	f.IntVar(&opts.age, "age", 30, "age, negative to leave unset")
	f.BoolVar(&opts.inactive, "inactive", false, "create the account disabled")
	f.DurationVar(&opts.timeout, "timeout", time.Minute, "overall deadline")

	return cmd
}

func run(ctx context.Context, opts seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.ServiceName+"-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	pool, err := app.Connect(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect", slog.String("error", err.Error()))
		return err
	}
	defer pool.Close()

	var age *int
	if opts.age >= 0 {
		age = &opts.age
	}

	users := service.NewUserService(postgres.NewUserRepository(pool), log)
	user, created, err := users.CreateIfAbsent(ctx, service.CreateUserInput{
		Username:  opts.username,
		FirstName: opts.firstName,
		LastName:  opts.lastName,
		Email:     opts.email,
		Age:       age,
		Password:  opts.password,
		IsActive:  !opts.inactive,
	})
	if err != nil {
		log.Error("failed to seed user", slog.String("error", err.Error()))
		return fmt.Errorf("seed user: %w", err)
	}
	if !created {
		log.Warn("user already exists, nothing to do",
			slog.String("username", opts.username),
			slog.String("email", opts.email),
		)
		return nil
	}

	log.Info("seeded user",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return nil
}
