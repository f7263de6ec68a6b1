// Command bankdemo exercises examples/bank end to end: open an account,
// optionally set an overdraft limit and post a deposit, and watch the welcome EmailNotification a
// process.Follower produces downstream — the system.System/runner wiring a
// deployable would otherwise spread across several processes, collapsed
// into one CLI the way go-runner/cmd/go-runner/main.go collapses its
// plugin runner behind a cobra command.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arc-self/eventcore/application"
	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/examples/bank"
	"github.com/arc-self/eventcore/mapper"
	"github.com/arc-self/eventcore/notification"
	"github.com/arc-self/eventcore/process"
	"github.com/arc-self/eventcore/recorder"
	"github.com/arc-self/eventcore/recorder/inmemory"
	"github.com/arc-self/eventcore/repository"
	"github.com/arc-self/eventcore/settings"
	"github.com/arc-self/eventcore/store"
	"github.com/arc-self/eventcore/system"
	"github.com/arc-self/eventcore/telemetry"
)

func newRunCommand(logger *zap.Logger, cipher mapper.Cipher) *cobra.Command {
	var fullName, emailAddress string
	var depositCents, overdraftCents int64

	cmd := &cobra.Command{
		Use:   "open-account",
		Short: "Open a bank account, post a deposit, and relay its welcome notification",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), logger, cipher, fullName, emailAddress, depositCents, overdraftCents)
		},
	}
	cmd.Flags().StringVar(&fullName, "name", "Alice", "account holder's full name")
	cmd.Flags().StringVar(&emailAddress, "email", "alice@example.com", "account holder's email address")
	cmd.Flags().Int64Var(&depositCents, "deposit-cents", 1000, "initial deposit, in cents")
	cmd.Flags().Int64Var(&overdraftCents, "overdraft-cents", 0, "overdraft limit to set before depositing, in cents")
	return cmd
}

func main() {
	logger, _ := telemetry.NewLogger(false)
	defer logger.Sync()

	env := settings.New(nil)
	cipher, err := resolveCipher(env)
	if err != nil {
		logger.Fatal("failed to build cipher from CIPHER_KEY", zap.Error(err))
	}

	root := &cobra.Command{
		Use:  "bankdemo",
		Long: "bankdemo wires examples/bank through application, process, and system end to end.",
	}
	root.AddCommand(newRunCommand(logger, cipher))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// resolveCipher looks up CIPHER_KEY through Vault first (when VAULT_ADDR is
// configured), falling back to the plain environment variable, and returns
// a nil Cipher when neither is set — encryption at rest is optional, per
// mapper.Mapper's own Compressor/Cipher-both-optional contract.
func resolveCipher(env *settings.Env) (mapper.Cipher, error) {
	secrets, err := settings.ResolveSecrets(env)
	if err != nil {
		return nil, err
	}
	key := settings.SecretString(secrets, "CIPHER_KEY")
	if key == "" {
		key = env.GetString("CIPHER_KEY", "")
	}
	if key == "" {
		return nil, nil
	}
	return mapper.NewChaCha20Poly1305Cipher([]byte(key))
}

// run wires a leader Accounts application and a follower application
// reacting to it via bank.NotificationPolicy, joins them into a
// system.System, and drives one SingleThreadedRunner-mediated scenario
// against real (in-process) components.
func run(ctx context.Context, logger *zap.Logger, cipher mapper.Cipher, fullName, emailAddress string, depositCents, overdraftCents int64) error {
	accountsApp := buildAccountsApp(cipher)
	notificationsApp, notificationsEvents := buildNotificationsApp(cipher)

	leader := process.NewLeader("Accounts", accountsApp.Application)
	follower := process.NewFollower("Notifications", notificationsApp, bank.NotificationPolicy, notification.DefaultSectionSize)

	sys, err := system.New(
		[]system.Node{
			{Name: "Accounts", Leader: leader, Log: accountsApp.Log},
			{Name: "Notifications", Follower: follower},
		},
		[]system.Edge{{Upstream: "Accounts", Downstream: "Notifications"}},
	)
	if err != nil {
		return fmt.Errorf("wiring system: %w", err)
	}
	system.NewSingleThreadedRunner(sys)

	accountID, err := accountsApp.OpenAccount(ctx, fullName, emailAddress)
	if err != nil {
		return fmt.Errorf("opening account: %w", err)
	}
	logger.Info("account opened", zap.String("account_id", accountID.String()))

	if overdraftCents > 0 {
		if err := accountsApp.SetOverdraftLimit(ctx, accountID, overdraftCents); err != nil {
			return fmt.Errorf("setting overdraft limit: %w", err)
		}
	}

	if depositCents != 0 {
		if err := accountsApp.AppendTransaction(ctx, accountID, depositCents); err != nil {
			return fmt.Errorf("posting deposit: %w", err)
		}
	}

	account, err := accountsApp.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("reloading account: %w", err)
	}
	logger.Info("account balance",
		zap.String("account_id", accountID.String()),
		zap.Int64("balance_cents", account.BalanceCents()),
	)

	section, err := notificationsApp.Log.Section(ctx, "1,10")
	if err != nil {
		return fmt.Errorf("reading notifications log: %w", err)
	}
	for _, item := range section.Items {
		events, err := notificationsEvents.Get(ctx, item.OriginatorID, recorder.SelectOptions{})
		if err != nil {
			return fmt.Errorf("reading email notification %s: %w", item.OriginatorID, err)
		}
		for _, e := range events {
			if created, ok := e.(*bank.EmailNotificationCreatedEvent); ok {
				logger.Info("email notification sent",
					zap.String("to", created.To),
					zap.String("subject", created.Subject),
					zap.String("message", created.Message),
				)
			}
		}
	}

	return nil
}

func buildAccountsApp(cipher mapper.Cipher) *bank.Accounts {
	transcoder := mapper.NewJSONTranscoder()
	bank.RegisterTopics(transcoder)
	m := mapper.New(transcoder, nil, cipher)

	rec := inmemory.New()
	events := store.New(m, rec)
	return bank.NewAccounts(events, nil, rec, notification.New(rec, notification.DefaultSectionSize), 0)
}

func buildNotificationsApp(cipher mapper.Cipher) (*application.Application, *store.EventStore) {
	transcoder := mapper.NewJSONTranscoder()
	transcoder.Register(bank.EmailNotificationCreatedTopic, func() domain.Event { return &bank.EmailNotificationCreatedEvent{} })
	bank.RegisterTopics(transcoder) // decodes the upstream Accounts notifications
	m := mapper.New(transcoder, nil, cipher)

	rec := inmemory.New()
	events := store.New(m, rec)
	repo, err := repository.New(events, nil, bank.ProjectEmailNotification, 0, false)
	if err != nil {
		panic(err) // arguments above are constants, never user input
	}
	app := application.New(application.Options{
		Events:     events,
		Recorder:   rec,
		Repository: repo,
		Log:        notification.New(rec, notification.DefaultSectionSize),
	})
	return app, events
}
