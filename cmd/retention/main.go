package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/application/retention"
	"github.com/groceryshare/backend/internal/bootstrap"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/infrastructure/auth"
	"github.com/groceryshare/backend/internal/infrastructure/config"
	"github.com/groceryshare/backend/internal/infrastructure/crypto"
	"github.com/groceryshare/backend/internal/infrastructure/scheduler"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var flagLogLevel = &cli.StringFlag{
	Name:    "log-level",
	Usage:   "Override log.level from the configuration",
	EnvVars: []string{"GROCERY_LOG_LEVEL"},
}

var flagNow = &cli.TimestampFlag{
	Name:   "now",
	Usage:  "Evaluate expiry against this instant instead of the current time (RFC3339)",
	Layout: time.RFC3339,
}

var flagOnce = &cli.BoolFlag{
	Name:  "once",
	Usage: "Run every sweep once and exit",
}

var flagRole = &cli.StringFlag{
	Name:     "role",
	Required: true,
	Usage:    "recipient, volunteer or admin",
}

var flagUserID = &cli.StringFlag{
	Name:  "user-id",
	Usage: "User ID to embed; a random one when empty",
}

var flagProfileID = &cli.StringFlag{
	Name:  "profile-id",
	Usage: "Recipient or volunteer ID to embed",
}

func main() {
	app := &cli.App{
		Name:  "retention",
		Usage: "Data retention and key maintenance for the grocery share backend",
		Flags: []cli.Flag{flagLogLevel},
		Commands: []*cli.Command{
			{
				Name:   "expire-uploads",
				Usage:  "Delete ID uploads past their expiry",
				Flags:  []cli.Flag{flagNow},
				Action: sweep(retention.JobExpireUploads),
			},
			{
				Name:   "purge-inactive",
				Usage:  "Purge recipients inactive past the retention window",
				Flags:  []cli.Flag{flagNow},
				Action: sweep(retention.JobPurgeInactive),
			},
			{
				Name:   "run",
				Usage:  "Run the retention sweeps every scheduler.sweep_interval until interrupted",
				Flags:  []cli.Flag{flagOnce, flagNow},
				Action: run,
			},
			{
				Name: "rotate-key",
				Usage: "Re-encrypt recipient contact fields from encryption.previous_key " +
					"to encryption.key",
				Action: rotateKey,
			},
			{
				Name:   "generate-key",
				Usage:  "Print a new base64 encryption key",
				Action: generateKey,
			},
			{
				Name:   "mint-token",
				Usage:  "Mint a development access token (requires jwt.dev_mint)",
				Flags:  []cli.Flag{flagRole, flagUserID, flagProfileID},
				Action: mintToken,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withInfra loads the configuration, opens the infrastructure and runs fn
// until it returns or the process is interrupted.
func withInfra(cCtx *cli.Context, fn func(ctx context.Context, infra *bootstrap.Infra) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if level := cCtx.String(flagLogLevel.Name); level != "" {
		cfg.Log.Level = level
	}
	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(cCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := infra.Close(closeCtx); err != nil {
			log.Warn("Error releasing resources", zap.Error(err))
		}
	}()
	return fn(ctx, infra)
}

// sweep runs one retention job through the scheduler, so retries and the
// per-attempt timeout apply as they do in the server.
func sweep(job string) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		return withInfra(cCtx, func(ctx context.Context, infra *bootstrap.Infra) error {
			s, err := newScheduler(cCtx, infra)
			if err != nil {
				return err
			}
			run, err := s.RunJob(ctx, job)
			if err != nil {
				return fmt.Errorf("%s: %w", job, err)
			}
			fmt.Printf("%s: %d affected\n", job, run.Affected)
			return nil
		})
	}
}

func run(cCtx *cli.Context) error {
	return withInfra(cCtx, func(ctx context.Context, infra *bootstrap.Infra) error {
		s, err := newScheduler(cCtx, infra)
		if err != nil {
			return err
		}
		if cCtx.Bool(flagOnce.Name) {
			return reportRuns(s.RunAll(ctx))
		}

		if err := s.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), infra.Config.Scheduler.JobTimeout)
		defer cancel()
		return s.Stop(stopCtx)
	})
}

func reportRuns(runs []scheduler.Run) error {
	var errs []error
	for _, run := range runs {
		if run.Status == scheduler.JobStatusFailed {
			errs = append(errs, fmt.Errorf("%s: %s", run.Job, run.Error))
			continue
		}
		fmt.Printf("%s: %d affected\n", run.Job, run.Affected)
	}
	return errors.Join(errs...)
}

func newScheduler(cCtx *cli.Context, infra *bootstrap.Infra) (*scheduler.RetentionScheduler, error) {
	cfg := infra.Config.Scheduler
	cfg.Enabled = true
	s, err := scheduler.NewRetentionScheduler(cfg, infra.Logger,
		scheduler.RetentionJobs(infra.Services().Retention)...)
	if err != nil {
		return nil, err
	}
	if now := cCtx.Timestamp(flagNow.Name); now != nil {
		at := now.UTC()
		s.SetClock(func() time.Time { return at })
	}
	return s, nil
}

func rotateKey(cCtx *cli.Context) error {
	return withInfra(cCtx, func(ctx context.Context, infra *bootstrap.Infra) error {
		from, err := crypto.PreviousFromConfig(infra.Config.Encryption)
		if err != nil {
			return fmt.Errorf("previous key: %w", err)
		}
		if from == nil {
			return errors.New("encryption.previous_key is not configured")
		}

		result, err := infra.Services().Retention.RotateKey(ctx, from, infra.Cipher)
		if err != nil {
			return err
		}
		infra.Logger.Info("Key rotation finished",
			zap.String("key_id", result.KeyID),
			zap.Int("resealed", result.Resealed),
			zap.Int("unchanged", result.Unchanged),
		)
		return nil
	})
}

func generateKey(*cli.Context) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

func mintToken(cCtx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	actor, err := actorFromFlags(cCtx)
	if err != nil {
		return err
	}

	token, exp, err := auth.NewJWTService(cfg.JWT).Mint(actor)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
	return nil
}

func actorFromFlags(cCtx *cli.Context) (identity.Actor, error) {
	userID := uuid.New()
	if raw := cCtx.String(flagUserID.Name); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return identity.Actor{}, fmt.Errorf("user-id: %w", err)
		}
		userID = id
	}
	var profileID uuid.UUID
	if raw := cCtx.String(flagProfileID.Name); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return identity.Actor{}, fmt.Errorf("profile-id: %w", err)
		}
		profileID = id
	}

	switch identity.Role(cCtx.String(flagRole.Name)) {
	case identity.RoleRecipient:
		return identity.NewRecipientActor(userID, profileID), nil
	case identity.RoleVolunteer:
		return identity.NewVolunteerActor(userID, profileID), nil
	case identity.RoleAdmin:
		return identity.NewAdminActor(userID), nil
	default:
		return identity.Actor{}, fmt.Errorf("unknown role %q", cCtx.String(flagRole.Name))
	}
}
