package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run configured jobs on their cron or interval triggers until interrupted",
	RunE:  runSchedule,
}

var scheduleRunNow bool

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleRunNow, "run-now", false, "Run every job once before starting the schedule")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	svc, err := application.NewScheduler()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if scheduleRunNow {
		for _, status := range svc.Statuses() {
			if ctx.Err() != nil {
				break
			}
			result, err := svc.RunJob(ctx, status.ID)
			if err != nil {
				return err
			}
			logger.Info().
				Str("job_id", status.ID).
				Str("status", string(result.Status)).
				Msg("Initial run finished")
		}
	}

	for _, status := range svc.Statuses() {
		logger.Info().
			Str("job_id", status.ID).
			Str("trigger", status.Trigger).
			Msg("Job scheduled")
	}

	logger.Info().Msg("Scheduler running, press Ctrl+C to stop")
	if err := svc.Start(ctx); err != nil {
		return err
	}
	logger.Info().Msg("Scheduler stopped")
	return nil
}
