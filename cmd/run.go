package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genpool/internal/config"
	"genpool/internal/infra/gemini"
	"genpool/internal/pool"
	"genpool/internal/ports"
	"genpool/internal/queue"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var (
		tasksPath     string
		output        string
		model         string
		workersPerKey int
		rateLimit     time.Duration
		maxRetries    int
		temperature   float64
		system        string
		parseJSON     bool
		idKey         string
		promptKey     string
		errorLog      string
		queueBackend  string
		batchName     string
	)

	var command = &cobra.Command{
		Use:   "run",
		Short: "Run a batch of generation tasks from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			cfg := config.Load()

			tasks, err := loadTasks(tasksPath)
			if err != nil {
				return err
			}

			var q ports.TaskQueue
			if queueBackend == "redis" {
				rq := queue.NewRedis(cfg.Redis, batchName)
				if err := rq.Ping(cmd.Context()); err != nil {
					return err
				}
				q = rq
			}

			p, err := pool.New(pool.Options{
				Model:             model,
				APIKeys:           cfg.Gemini.Keys(),
				Generator:         gemini.New(cfg.Gemini),
				WorkersPerKey:     workersPerKey,
				RateLimitPerSlot:  rateLimit,
				MaxRetriesPerTask: maxRetries,
				Temperature:       temperature,
				SystemInstruction: system,
				ParseJSON:         parseJSON,
				IDKey:             idKey,
				PromptKey:         promptKey,
				CheckpointPath:    output,
				ErrorLogPath:      errorLog,
				Queue:             q,
			})
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := p.GenerateBatch(ctx, tasks)
			if err != nil {
				return err
			}

			snap := p.Snapshot()
			log.Info().
				Int("results", len(results)).
				Int64("successful", snap.Successful).
				Int64("failed", snap.Failed).
				Int64("retried", snap.Retried).
				Int64("api_calls", snap.TotalAPICalls).
				Msgf("batch finished, %.1f%% success rate", snap.SuccessRate)

			if output == "" {
				return json.NewEncoder(os.Stdout).Encode(results)
			}
			return nil
		},
	}

	command.Flags().StringVar(&tasksPath, "tasks", "", "Path to a JSON array of prompts or task objects")
	command.Flags().StringVarP(&output, "output", "o", "", "Checkpoint/result file (enables resume)")
	command.Flags().StringVar(&model, "model", "gemini-2.0-flash", "Model name")
	command.Flags().IntVar(&workersPerKey, "workers-per-key", 4, "Worker slots per API key")
	command.Flags().DurationVar(&rateLimit, "rate-limit", 12*time.Second, "Minimum spacing between calls on one slot")
	command.Flags().IntVar(&maxRetries, "max-task-retries", 5, "Max retries for task-attributed errors")
	command.Flags().Float64Var(&temperature, "temperature", 0.3, "Generation temperature")
	command.Flags().StringVar(&system, "system", "", "Optional system instruction")
	command.Flags().BoolVar(&parseJSON, "parse-json", false, "Parse model output as JSON")
	command.Flags().StringVar(&idKey, "id-key", "id", "Task field holding the id")
	command.Flags().StringVar(&promptKey, "prompt-key", "prompt", "Task field holding the prompt")
	command.Flags().StringVar(&errorLog, "error-log", "errors.log", "Per-call error log file")
	command.Flags().StringVar(&queueBackend, "queue", "memory", "Queue backend: memory or redis")
	command.Flags().StringVar(&batchName, "batch", "", "Shared batch name for the redis queue")
	_ = command.MarkFlagRequired("tasks")

	return command
}

func loadTasks(path string) ([]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks file: %w", err)
	}
	var tasks []any
	if err := json.Unmarshal(b, &tasks); err != nil {
		return nil, fmt.Errorf("parse tasks file: %w", err)
	}
	return tasks, nil
}
