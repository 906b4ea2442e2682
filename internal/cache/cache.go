package cache

import (
	"context"
	"time"

	"sobanhang/backend/internal/report"
)

type ReportCache interface {
	Get(ctx context.Context, key string) (*report.BookReport, bool, error)
	Set(ctx context.Context, key string, value *report.BookReport, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*report.BookReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *report.BookReport, _ time.Duration) error {
	return nil
}
