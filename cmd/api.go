package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/livestock/internal/api"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server to handle registrations, inseminations and snapshot reads`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.close()

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Background assignment workers serve the async trigger behind
	// insemination creation
	a.dispatcher.Start(ctx)

	server := api.NewServer(a.cfg, api.Deps{
		Registrations:    a.regService,
		Inseminations:    a.insService,
		Fathers:          a.fathers,
		Projector:        a.proj,
		RegistrationRepo: a.registrations,
		Elastic:          a.elastic,
		Metrics:          a.collector,
		Tracer:           a.tracer,
	})

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	a.dispatcher.Stop()

	log.Info().Msg("Shutting down API server")
	return nil
}
