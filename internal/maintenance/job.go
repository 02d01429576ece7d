// Package maintenance collects operational metrics for the skill's tables and
// functions and reports them to an operator.
package maintenance

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/benvon/jotjot/internal/logger"
	"github.com/benvon/jotjot/internal/mailer"
	"github.com/benvon/jotjot/internal/models"
	"github.com/benvon/jotjot/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	namespaceDynamoDB = "AWS/DynamoDB"
	namespaceLambda   = "AWS/Lambda"

	// trailingDays is the number of days before the last one averaged for anomaly detection
	trailingDays = 3
	// anomalyFactor flags a last-day invocation count above this multiple of the trailing mean
	anomalyFactor = 2.0

	notAvailable = "n/a"
)

// Metric names in the report
const (
	MetricItemCount           = "item_count"
	MetricConsumedWrites      = "consumed_write_capacity_24h"
	MetricDurationAverage     = "duration_avg_ms_24h"
	MetricInvocations         = "invocations_24h"
	MetricInvocationsTrailing = "invocations_prior_3d_mean"
	MetricInvocationAnomaly   = "invocation_anomaly"
)

// Report is the result of one collection run
type Report struct {
	RunID       string              `json:"run_id"`
	WindowEnd   time.Time           `json:"window_end"`
	Lines       []models.MetricLine `json:"lines"`
	Failures    int                 `json:"failures"`
	Delivered   bool                `json:"delivered"`
	DeliveredTo string              `json:"delivered_to,omitempty"`
}

// Job collects and reports metrics
type Job struct {
	counter  store.TableCounter
	metrics  MetricsSource
	sender   mailer.Sender
	from     string
	operator string
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Job
type Option func(*Job)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// NewJob creates a maintenance job. A nil sender or empty from address means results are only logged.
func NewJob(counter store.TableCounter, metrics MetricsSource, sender mailer.Sender, from, operator string, log *zap.Logger, opts ...Option) *Job {
	if log == nil {
		log = zap.NewNop()
	}
	j := &Job{
		counter:  counter,
		metrics:  metrics,
		sender:   sender,
		from:     from,
		operator: operator,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// windowEnd anchors every window at the most recent UTC midnight so repeated runs on the same day agree
func (j *Job) windowEnd() time.Time {
	return j.now().UTC().Truncate(24 * time.Hour)
}

// Collect gathers every metric. Each fetch is isolated: a failure yields "n/a" for that cell only.
func (j *Job) Collect(ctx context.Context, tables, functions []string) *Report {
	end := j.windowEnd()
	r := &Report{RunID: uuid.NewString(), WindowEnd: end}

	add := func(resource, metric, value string, failed bool) {
		r.Lines = append(r.Lines, models.MetricLine{Resource: resource, Metric: metric, Value: value, Failed: failed})
		if failed {
			r.Failures++
		}
	}

	for _, table := range tables {
		if j.counter != nil {
			n, err := j.counter.ItemCount(ctx, table)
			if err != nil {
				j.warn(table, MetricItemCount, err)
				add(table, MetricItemCount, notAvailable, true)
			} else {
				add(table, MetricItemCount, strconv.FormatInt(n, 10), false)
			}
		}

		v, failed := j.fetch(ctx, table, MetricConsumedWrites, MetricQuery{
			Namespace: namespaceDynamoDB, Metric: "ConsumedWriteCapacityUnits",
			DimensionName: "TableName", DimensionValue: table,
			Start: end.Add(-24 * time.Hour), End: end, Stat: StatSum,
		})
		add(table, MetricConsumedWrites, formatFloat(v, failed), failed)
	}

	for _, fn := range functions {
		dur, durFailed := j.fetchAverage(ctx, fn, end)
		add(fn, MetricDurationAverage, dur, durFailed)

		last, lastFailed := j.fetch(ctx, fn, MetricInvocations, MetricQuery{
			Namespace: namespaceLambda, Metric: "Invocations",
			DimensionName: "FunctionName", DimensionValue: fn,
			Start: end.Add(-24 * time.Hour), End: end, Stat: StatSum,
		})
		add(fn, MetricInvocations, formatCount(last, lastFailed), lastFailed)

		prior, priorFailed := j.fetch(ctx, fn, MetricInvocationsTrailing, MetricQuery{
			Namespace: namespaceLambda, Metric: "Invocations",
			DimensionName: "FunctionName", DimensionValue: fn,
			Start: end.Add(-time.Duration(trailingDays+1) * 24 * time.Hour), End: end.Add(-24 * time.Hour), Stat: StatSum,
		})
		mean := prior / trailingDays
		add(fn, MetricInvocationsTrailing, formatFloat(mean, priorFailed), priorFailed)

		switch {
		case lastFailed || priorFailed:
			add(fn, MetricInvocationAnomaly, notAvailable, false)
		case IsAnomalous(last, mean):
			add(fn, MetricInvocationAnomaly, "yes", false)
			j.logger.Warn("maintenance_invocation_anomaly",
				zap.String("function", fn),
				zap.Float64("last_day", last),
				zap.Float64("trailing_mean", mean),
			)
		default:
			add(fn, MetricInvocationAnomaly, "no", false)
		}
	}

	return r
}

// IsAnomalous reports whether last exceeds anomalyFactor times a positive trailing mean
func IsAnomalous(last, trailingMean float64) bool {
	return trailingMean > 0 && last > anomalyFactor*trailingMean
}

// fetch returns a summed value and whether it failed. Missing datapoints count as zero.
func (j *Job) fetch(ctx context.Context, resource, metric string, q MetricQuery) (float64, bool) {
	if j.metrics == nil {
		return 0, true
	}
	v, ok, err := j.metrics.Fetch(ctx, q)
	if err != nil {
		j.warn(resource, metric, err)
		return 0, true
	}
	if !ok {
		return 0, false
	}
	return v, false
}

// fetchAverage formats the average duration; no datapoints reads as "n/a" without counting as a failure
func (j *Job) fetchAverage(ctx context.Context, fn string, end time.Time) (string, bool) {
	if j.metrics == nil {
		return notAvailable, true
	}
	v, ok, err := j.metrics.Fetch(ctx, MetricQuery{
		Namespace: namespaceLambda, Metric: "Duration",
		DimensionName: "FunctionName", DimensionValue: fn,
		Start: end.Add(-24 * time.Hour), End: end, Stat: StatAverage,
	})
	if err != nil {
		j.warn(fn, MetricDurationAverage, err)
		return notAvailable, true
	}
	if !ok {
		return notAvailable, false
	}
	return strconv.FormatFloat(v, 'f', 2, 64), false
}

func (j *Job) warn(resource, metric string, err error) {
	j.logger.Warn("maintenance_metric_failed",
		zap.String("resource", resource),
		zap.String("metric", metric),
		zap.String("error", logger.SanitizeError(err)),
	)
}

func formatFloat(v float64, failed bool) string {
	if failed {
		return notAvailable
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatCount(v float64, failed bool) string {
	if failed {
		return notAvailable
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}

// CollectAndReport collects metrics and emails them to target (or the configured
// operator). Without a recipient or sender every line is logged instead.
func (j *Job) CollectAndReport(ctx context.Context, tables, functions []string, target string) (*Report, error) {
	r := j.Collect(ctx, tables, functions)

	to := target
	if to == "" {
		to = j.operator
	}

	if to == "" || j.sender == nil || j.from == "" {
		for _, line := range r.Lines {
			j.logger.Info("maintenance_metric",
				zap.String("run_id", r.RunID),
				zap.String("resource", line.Resource),
				zap.String("metric", line.Metric),
				zap.String("value", line.Value),
			)
		}
		j.logger.Info("maintenance_logged", zap.String("run_id", r.RunID), zap.Int("lines", len(r.Lines)), zap.Int("failures", r.Failures))
		return r, nil
	}

	body, err := RenderHTML(r)
	if err != nil {
		return r, err
	}
	if _, err := j.sender.Send(ctx, mailer.Message{
		From:     j.from,
		To:       to,
		Subject:  "Maintenance Report " + r.WindowEnd.Format(models.DateLayout),
		HTMLBody: body,
		TextBody: RenderText(r),
	}); err != nil {
		return r, fmt.Errorf("failed to send maintenance report: %w", err)
	}

	r.Delivered = true
	r.DeliveredTo = to
	j.logger.Info("maintenance_report_sent",
		zap.String("run_id", r.RunID),
		zap.String("to", logger.MaskEmail(to)),
		zap.Int("lines", len(r.Lines)),
		zap.Int("failures", r.Failures),
	)
	return r, nil
}

const reportHTML = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Maintenance Report</title></head>
<body>
<h1>Maintenance Report</h1>
<p>Window ending {{.WindowEnd.Format "2006-01-02 15:04 MST"}} (run {{.RunID}})</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Resource</th><th>Metric</th><th>Value</th></tr>
{{- range .Lines}}
<tr><td>{{.Resource}}</td><td>{{.Metric}}</td><td>{{.Value}}</td></tr>
{{- end}}
</table>
</body>
</html>
`

var reportTemplate = template.Must(template.New("maintenance").Parse(reportHTML))

// RenderHTML renders the report as an HTML table
func RenderHTML(r *Report) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("failed to render maintenance report: %w", err)
	}
	return buf.String(), nil
}

// RenderText renders one "resource metric: value" line per metric
func RenderText(r *Report) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Maintenance report for window ending %s\n\n", r.WindowEnd.Format(time.RFC3339))
	for _, line := range r.Lines {
		fmt.Fprintf(&buf, "%s %s: %s\n", line.Resource, line.Metric, line.Value)
	}
	return buf.String()
}
