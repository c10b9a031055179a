// Command marathond runs the cluster workload orchestrator control
// plane: GroupManager, DeploymentExecutor, and HealthSupervisor wired
// over an in-memory Repository and a simulated launch facade, serving
// the REST façade described in spec.md §6. CLI shape follows the
// teacher's cmd/ convention (cobra flags, translated exit codes).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/canonical/marathond/api"
	"github.com/canonical/marathond/auth"
	"github.com/canonical/marathond/events"
	"github.com/canonical/marathond/executor"
	"github.com/canonical/marathond/groupmanager"
	"github.com/canonical/marathond/launch/fake"
	"github.com/canonical/marathond/logging"
	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/repository/memory"
	"github.com/canonical/marathond/timestamp"
)

// Exit codes documented in spec.md §6.
const (
	exitClean           = 0
	exitConfigError     = 1
	exitRepoUnreachable = 2
)

// configError marks a failure as a bad invocation (flags, unsupported
// backend) rather than a runtime failure of an otherwise valid config.
type configError struct{ error }

func main() {
	os.Exit(run())
}

func run() int {
	var (
		httpAddr    string
		repoKind    string
		logLevel    string
		retention   time.Duration
	)

	root := &cobra.Command{
		Use:   "marathond",
		Short: "Cluster workload orchestrator control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.SetLevel(logLevel)

			if repoKind != "memory" {
				return configError{fmt.Errorf("unsupported --repo %q: only \"memory\" is built in", repoKind)}
			}

			return serve(cmd.Context(), httpAddr, retention)
		},
		SilenceUsage: true,
	}

	root.Flags().StringVar(&httpAddr, "http-addr", ":8443", "address the REST API listens on")
	root.Flags().StringVar(&repoKind, "repo", "memory", "snapshot repository backend")
	root.Flags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")
	root.Flags().DurationVar(&retention, "retention", 24*time.Hour, "age at which superseded root snapshots are pruned")

	if err := root.Execute(); err != nil {
		logging.Error("marathond exited with error", logging.Ctx{"err": err})

		if isConfigError(err) {
			return exitConfigError
		}

		return exitRepoUnreachable
	}

	return exitClean
}

func isConfigError(err error) bool {
	_, ok := err.(configError)
	return ok
}

func serve(ctx context.Context, httpAddr string, retention time.Duration) error {
	hub := events.NewHub()
	repo := memory.New()
	launchFacade := fake.New()
	ex := executor.New(launchFacade, hub, nil) // nil prober: executor dials real hosts over HTTP/TCP
	mgr := groupmanager.New(repo, ex, hub, timestamp.Now())
	caps := auth.NewPermissive()

	janitor := cron.New()
	_, err := janitor.AddFunc("@hourly", func() {
		cutoff := timestamp.FromTime(time.Now().Add(-retention))
		if err := repo.PruneBefore(context.Background(), pathid.Root, cutoff); err != nil {
			logging.Warn("snapshot retention prune failed", logging.Ctx{"err": err})
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling retention janitor: %w", err)
	}

	janitor.Start()
	defer janitor.Stop()

	server := api.NewServer(mgr, hub, caps)

	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: server,
	}

	logging.Info("marathond listening", logging.Ctx{"addr": httpAddr})

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}

		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	}
}
