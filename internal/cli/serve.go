package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"wellops/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the wellops daemon (API, reminders, hot config reload)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		return err
	}

	if err := a.Start(ctx); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.Stop(stopCtx, app.StopFatalError)
		stopCancel()
		return err
	}

	// Under systemd Type=notify this flips the unit to "active"; elsewhere
	// it is a no-op.
	_, _ = sddaemon.SdNotify(false, sddaemon.SdNotifyReady)

	<-a.Done()

	reason := app.StopSignal
	if err := a.Err(); err != nil && !errors.Is(err, context.Canceled) {
		reason = app.StopFatalError
	}

	_, _ = sddaemon.SdNotify(false, sddaemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		return err
	}
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}
