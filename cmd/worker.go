package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/livestock/internal/messaging"
)

// sweepUserID attributes sweep-originated events to the system account
const sweepUserID = 1

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker to process queue messages and sweep pending father assignments`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.close()

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	a.dispatcher.Start(ctx)

	// Start the service bus consumers when a connection string is configured
	if a.cfg.Azure.QueueConnStr != "" {
		azureBus, err := messaging.NewAzureClient(a.cfg.Azure)
		if err != nil {
			return err
		}
		processor := messaging.NewProcessor(a.regService, a.insService)

		g.Go(func() error {
			log.Info().Str("queue", a.cfg.Azure.QueueName).Msg("Starting Azure Service Bus consumers")
			return azureBus.StartConsumers(ctx, a.cfg.Azure.QueueName, processor)
		})
	} else {
		log.Warn().Msg("Azure Service Bus connection string not configured, queue consumers disabled")
	}

	// Periodic sweep catches assignments whose async trigger was dropped
	g.Go(func() error {
		log.Info().Dur("interval", a.cfg.Worker.SweepInterval).Msg("Starting father assignment sweep job")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(a.cfg.Worker.SweepInterval),
			gocron.NewTask(func() {
				log.Info().Msg("Running father assignment sweep")
				companies, err := a.registrations.DistinctCompanies(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Failed to list companies for sweep")
					return
				}
				for _, companyID := range companies {
					if _, err := a.fathers.ProcessAllRegistrations(ctx, companyID, sweepUserID, false); err != nil {
						log.Error().Err(err).Int64("companyID", companyID).Msg("Sweep failed for company")
					}
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	a.dispatcher.Stop()

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
