package metrics

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sirupsen/logrus"

	domainMetrics "sickleave_notifier/internal/domain/metrics"
	"sickleave_notifier/internal/infra/logger"
)

const (
	DefaultNamespace = "SickleaveNotifier"
	DimSource        = "Source"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ domainMetrics.Recorder = (*CloudWatchRecorder)(nil)

// CloudWatchRecorder emits one Count datum per Incr with a Source dimension.
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
}

func NewCloudWatchRecorder(client CloudWatchClient, namespace string) *CloudWatchRecorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CloudWatchRecorder{client: client, namespace: namespace}
}

func (r *CloudWatchRecorder) Incr(ctx context.Context, metric, source string) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metric),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(DimSource), Value: aws.String(source)},
				},
			},
		},
	}

	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"metric": metric,
			"source": source,
		}).WithError(err).Warn("failed to record metric")
	}
}

// LogRecorder writes counters to the debug log. Used when no CloudWatch region is configured.
type LogRecorder struct{}

func (LogRecorder) Incr(_ context.Context, metric, source string) {
	logger.Log.WithFields(logrus.Fields{"metric": metric, "source": source}).Debug("metric")
}
