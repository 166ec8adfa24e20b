package misasync

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	importMeter    = otel.Meter("fintrack/misasync")
	importTotal, _ = importMeter.Int64Counter("misa.import.total", metric.WithDescription("Imported transactions by step and outcome"))
)

func recordImportMetrics(ctx context.Context, step string, result *ImportResult) {
	stepAttr := attribute.String("step", step)
	importTotal.Add(ctx, int64(len(result.Imported)), metric.WithAttributes(stepAttr, attribute.String("outcome", "imported")))
	importTotal.Add(ctx, int64(len(result.Skipped)), metric.WithAttributes(stepAttr, attribute.String("outcome", "skipped")))
	importTotal.Add(ctx, int64(len(result.Errors)), metric.WithAttributes(stepAttr, attribute.String("outcome", "error")))
}
