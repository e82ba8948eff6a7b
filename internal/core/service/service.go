package service

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rl1809/storefront/internal/core/service"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	ordersCreated        metric.Int64Counter
	ordersCancelled      metric.Int64Counter
	restockNotifications metric.Int64Counter
	reorderAlerts        metric.Int64Counter
)

func init() {
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			panic(err)
		}
		return c
	}
	ordersCreated = counter("storefront.orders.created", "Orders placed", "{order}")
	ordersCancelled = counter("storefront.orders.cancelled", "Orders cancelled", "{order}")
	restockNotifications = counter("storefront.restock.notifications", "Restock notifications by outcome", "{notification}")
	reorderAlerts = counter("storefront.reorder.alerts", "Low stock alerts raised", "{alert}")
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Clock is the time source used by services and jobs.
type Clock func() time.Time

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
