package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Stat is the aggregation requested from the monitoring service
type Stat string

const (
	StatSum     Stat = "Sum"
	StatAverage Stat = "Average"
)

// MetricQuery identifies one aggregated metric over a window
type MetricQuery struct {
	Namespace      string
	Metric         string
	DimensionName  string
	DimensionValue string
	Start          time.Time
	End            time.Time
	Stat           Stat
}

// MetricsSource fetches one aggregated value; ok is false when there were no datapoints
type MetricsSource interface {
	Fetch(ctx context.Context, q MetricQuery) (value float64, ok bool, err error)
}

// CloudWatchAPI is the subset of the CloudWatch client used here
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

var _ CloudWatchAPI = (*cloudwatch.Client)(nil)

// CloudWatchSource reads metrics from CloudWatch
type CloudWatchSource struct {
	client CloudWatchAPI
}

var _ MetricsSource = (*CloudWatchSource)(nil)

// NewCloudWatchSource creates a CloudWatch backed source
func NewCloudWatchSource(client CloudWatchAPI) *CloudWatchSource {
	return &CloudWatchSource{client: client}
}

// Fetch requests the whole window as a single period and combines any datapoints returned
func (s *CloudWatchSource) Fetch(ctx context.Context, q MetricQuery) (float64, bool, error) {
	window := q.End.Sub(q.Start)
	if window < time.Minute {
		return 0, false, fmt.Errorf("metric window %s is shorter than a minute", window)
	}
	period := int32(window / time.Second)
	period -= period % 60

	out, err := s.client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(q.Namespace),
		MetricName: aws.String(q.Metric),
		Dimensions: []types.Dimension{
			{Name: aws.String(q.DimensionName), Value: aws.String(q.DimensionValue)},
		},
		StartTime:  aws.Time(q.Start),
		EndTime:    aws.Time(q.End),
		Period:     aws.Int32(period),
		Statistics: []types.Statistic{types.Statistic(q.Stat)},
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to get %s/%s for %s: %w", q.Namespace, q.Metric, q.DimensionValue, err)
	}

	var total float64
	n := 0
	for _, dp := range out.Datapoints {
		switch q.Stat {
		case StatSum:
			if dp.Sum != nil {
				total += *dp.Sum
				n++
			}
		case StatAverage:
			if dp.Average != nil {
				total += *dp.Average
				n++
			}
		}
	}
	if n == 0 {
		return 0, false, nil
	}
	if q.Stat == StatAverage {
		return total / float64(n), true, nil
	}
	return total, true, nil
}
