package reports

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/taralabs/invoicing_backend/cache"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReportService is the read-only aggregation side. Reports never mutate
// state and are safe to run concurrently with invoice writes.
type ReportService struct {
	db     *gorm.DB
	cache  cache.Service
	logger *logrus.Logger
}

func NewReportService(db *gorm.DB, cacheSvc cache.Service, logger *logrus.Logger) *ReportService {
	return &ReportService{db: db, cache: cacheSvc, logger: logger}
}

func reportCacheEnabled() bool {
	v := strings.TrimSpace(os.Getenv("ENABLE_REPORT_CACHE"))
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes") || strings.EqualFold(v, "on")
}

func reportCacheTTL() time.Duration {
	// Env: REPORT_CACHE_TTL_SECONDS (default 120s)
	ttl := 120
	if v := strings.TrimSpace(os.Getenv("REPORT_CACHE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return time.Duration(ttl) * time.Second
}

// cached wraps a report loader in the cache service when report caching is
// enabled; otherwise the loader runs directly.
func cached[T any](ctx context.Context, s *ReportService, key string, loader func() (T, error)) (T, error) {
	if !reportCacheEnabled() || s.cache == nil {
		return loader()
	}
	var dest T
	err := s.cache.GetOrSet(ctx, key, &dest, reportCacheTTL(), func() (any, error) {
		return loader()
	})
	return dest, err
}
