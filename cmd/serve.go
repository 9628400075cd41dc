package cmd

import (
	"time"

	"genpool/internal/api"
	"genpool/internal/config"
	"genpool/internal/infra/gemini"
	"genpool/internal/pool"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		port          int
		model         string
		workersPerKey int
		rateLimit     time.Duration
		output        string
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			cfg := config.Load()

			p, err := pool.New(pool.Options{
				Model:            model,
				APIKeys:          cfg.Gemini.Keys(),
				Generator:        gemini.New(cfg.Gemini),
				WorkersPerKey:    workersPerKey,
				RateLimitPerSlot: rateLimit,
				CheckpointPath:   output,
			})
			if err != nil {
				return err
			}
			defer p.Close()

			log.Info().Msgf("API server using model %s with %d keys", model, len(cfg.Gemini.Keys()))
			server := api.NewServer(p)
			server.Run(port)
			return nil
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 8080, "Port to run the server on")
	command.Flags().StringVar(&model, "model", "gemini-2.0-flash", "Model name")
	command.Flags().IntVar(&workersPerKey, "workers-per-key", 4, "Worker slots per API key")
	command.Flags().DurationVar(&rateLimit, "rate-limit", 12*time.Second, "Minimum spacing between calls on one slot")
	command.Flags().StringVarP(&output, "output", "o", "", "Checkpoint/result file for submitted batches")

	return command
}
