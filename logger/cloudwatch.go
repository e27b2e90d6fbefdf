package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	cwMu        sync.RWMutex
	cwClient    *cloudwatch.Client
	cwNamespace = "TradesXBT"
)

// InitCloudWatch creates the CloudWatch client used by LogMetric. An empty
// region falls back to AWS_REGION. When the AWS configuration cannot be
// loaded publishing stays disabled and only a warning is logged.
func InitCloudWatch(ctx context.Context, region, namespace, dashboard string) {
	log := GetLogger().WithComponent("cloudwatch")

	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	cwMu.Lock()
	cwClient = cloudwatch.NewFromConfig(cfg)
	if namespace != "" {
		cwNamespace = namespace
	}
	cwMu.Unlock()

	log.WithFields(Fields{"region": region, "namespace": namespace}).Info("initialized CloudWatch client")

	if dashboard != "" {
		createDashboard(ctx, dashboard)
	}
}

func cloudWatch() (*cloudwatch.Client, string) {
	cwMu.RLock()
	defer cwMu.RUnlock()
	return cwClient, cwNamespace
}

func publishMetrics(ctx context.Context, data []cwtypes.MetricDatum) {
	client, namespace := cloudWatch()
	if client == nil || len(data) == 0 {
		return
	}

	log := GetLogger().WithComponent("cloudwatch")
	if _, err := client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(namespace),
		MetricData: data,
	}); err != nil {
		log.WithError(err).Warn("failed to publish CloudWatch metrics")
		return
	}

	names := make([]string, 0, len(data))
	for _, datum := range data {
		if datum.MetricName != nil {
			names = append(names, *datum.MetricName)
		}
	}
	log.WithField("metrics", strings.Join(names, ",")).Debug("published metrics to CloudWatch")
}

func createDashboard(ctx context.Context, name string) {
	client, namespace := cloudWatch()
	if client == nil {
		return
	}

	body := fmt.Sprintf(`{
"widgets": [{
"type": "metric",
"width": 24,
"height": 6,
"properties": {
"metrics": [
    ["%[1]s","http_attempt_failed"],
    ["%[1]s","market_refresh_failed"],
    ["%[1]s","ai_fallback_used"],
    ["%[1]s","CPUPercent"]
],
"period": 60,
"stat": "Sum",
"title": "TradesXBT provider health"
}
}]
}`, namespace)

	if _, err := client.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(name),
		DashboardBody: aws.String(body),
	}); err != nil {
		GetLogger().WithComponent("cloudwatch").WithError(err).Warn("failed to create CloudWatch dashboard")
	}
}
