package commands

import (
	"fmt"
	"time"

	"github.com/benvon/jotjot/internal/queue"
	"github.com/spf13/cobra"
)

func newEnqueueCmd(deps Deps, flags *rootFlags) *cobra.Command {
	var (
		job   queue.Job
		delay time.Duration
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:       "enqueue <daily_report|daily_maintenance|test_user_email_report>",
		Short:     "Queue a job for the worker",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(queue.JobTypeDailyReport), string(queue.JobTypeDailyMaintenance), string(queue.JobTypeTestUserEmailReport)},
		RunE: func(cmd *cobra.Command, args []string) error {
			jobType, err := queue.ParseJobType(args[0])
			if err != nil {
				return err
			}
			j := queue.NewJob(jobType)
			j.UserID = job.UserID
			j.DryRun = job.DryRun
			j.Date = job.Date
			j.TargetEmail = job.TargetEmail
			j.Tables = job.Tables
			j.Functions = job.Functions
			if delay > 0 {
				notBefore := j.CreatedAt.Add(delay)
				j.NotBefore = &notBefore
			}
			if ttl > 0 {
				notAfter := j.CreatedAt.Add(delay + ttl)
				j.NotAfter = &notAfter
			}
			if err := j.Validate(); err != nil {
				return err
			}

			q, err := deps.NewQueue(cmd.Context())
			if err != nil {
				return fmt.Errorf("connect to queue: %w", err)
			}
			defer func() { _ = q.Close() }()

			if err := q.Enqueue(cmd.Context(), j); err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), flags.output, j)
		},
	}
	cmd.Flags().StringVar(&job.UserID, "user", "", "user id (required for test_user_email_report)")
	cmd.Flags().BoolVar(&job.DryRun, "dry-run", false, "daily_report: log instead of sending")
	cmd.Flags().StringVar(&job.Date, "date", "", "report date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&job.TargetEmail, "target", "", "daily_maintenance: report recipient")
	cmd.Flags().StringSliceVar(&job.Tables, "table", nil, "daily_maintenance: table to count")
	cmd.Flags().StringSliceVar(&job.Functions, "function", nil, "daily_maintenance: function to measure")
	cmd.Flags().DurationVar(&delay, "delay", 0, "do not run before now+delay")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "drop the job if not run within ttl after it becomes ready")
	return cmd
}
