package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/satishbabariya/salesreport/internal/debug"
	"github.com/satishbabariya/salesreport/query"
	"github.com/satishbabariya/salesreport/query/cache"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

// Recorder receives one call per report run.
type Recorder interface {
	RecordReport(report string, d time.Duration, cached bool, err error)
}

// Result is the outcome of one report run.
type Result struct {
	Report    *Report
	Query     *query.Query
	Rows      query.Rows
	Cached    bool
	Duration  time.Duration
	RequestID uuid.UUID
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRecorder reports every run to r.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithTTL overrides the cache TTL for report results.
func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.ttl = ttl }
}

// WithWorkers bounds how many reports RunAll executes at once.
func WithWorkers(n int) ServiceOption {
	return func(s *Service) { s.workers = n }
}

// DefaultWorkers is the RunAll concurrency when none is configured.
const DefaultWorkers = 4

// Service runs reports through the result cache. It is safe for concurrent
// use.
type Service struct {
	queries  Queries
	gateway  query.Gateway
	cache    *cache.Cache
	recorder Recorder
	logger   *slog.Logger
	ttl      time.Duration
	workers  int
	pool     *ants.Pool
}

// NewService returns a service rendering for dialect and executing through
// gateway.
func NewService(dialect sqlgen.Dialect, gateway query.Gateway, c *cache.Cache, opts ...ServiceOption) (*Service, error) {
	if gateway == nil {
		return nil, errors.New("analytics: gateway is required")
	}
	if c == nil {
		return nil, errors.New("analytics: cache is required")
	}
	s := &Service{
		queries: NewQueries(dialect),
		gateway: gateway,
		cache:   c,
		logger:  debug.Logger(),
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers <= 0 {
		return nil, fmt.Errorf("analytics: workers must be positive, got %d", s.workers)
	}

	pool, err := ants.NewPool(s.workers, ants.WithPanicHandler(func(v any) {
		s.logger.Error("report worker panic", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	s.pool = pool
	return s, nil
}

// Queries returns the templates the service renders.
func (s *Service) Queries() Queries {
	return s.queries
}

// Cache returns the result cache.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// Build renders the named report without running it.
func (s *Service) Build(name string, opts Options) (*Report, *query.Query, error) {
	report, err := LookupReport(name)
	if err != nil {
		return nil, nil, err
	}
	q, err := report.Build(s.queries, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("build %s: %w", name, err)
	}
	return report, q, nil
}

// Run builds and runs the named report.
func (s *Service) Run(ctx context.Context, name string, opts Options) (*Result, error) {
	report, q, err := s.Build(name, opts)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, report, q)
}

func (s *Service) execute(ctx context.Context, report *Report, q *query.Query) (*Result, error) {
	requestID := uuid.New()
	logger := s.logger.With("report", report.Name, "request_id", requestID.String(), "fingerprint", q.Fingerprint.Short())

	start := time.Now()
	rows, cached, err := s.cache.GetOrCompute(ctx, q.Fingerprint, func(ctx context.Context) (query.Rows, error) {
		logger.Debug("executing report query", "sql", q.SQL, "args", len(q.Args))
		return s.gateway.Execute(ctx, q.SQL, q.Args)
	}, s.ttl, cache.WithTags(q.Tables...))
	elapsed := time.Since(start)

	if s.recorder != nil {
		s.recorder.RecordReport(report.Name, elapsed, cached, err)
	}
	if err != nil {
		logger.Warn("report failed", "error", err, "duration", elapsed)
		return nil, fmt.Errorf("run %s: %w", report.Name, err)
	}
	logger.Info("report completed", "rows", len(rows), "cached", cached, "duration", elapsed)

	return &Result{
		Report:    report,
		Query:     q,
		Rows:      rows,
		Cached:    cached,
		Duration:  elapsed,
		RequestID: requestID,
	}, nil
}

// RunAll runs the named reports concurrently on the worker pool. It returns
// the results that succeeded and the joined errors of those that did not.
func (s *Service) RunAll(ctx context.Context, names []string, opts Options) (map[string]*Result, error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]*Result, len(names))
		errs    = make(map[string]error)
	)

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			res, err := s.Run(ctx, name, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[name] = err
				return
			}
			results[name] = res
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			errs[name] = fmt.Errorf("schedule %s: %w", name, err)
			mu.Unlock()
		}
	}
	wg.Wait()

	var joined []error
	for _, name := range names {
		if !seen[name] {
			continue
		}
		seen[name] = false
		if err, ok := errs[name]; ok {
			joined = append(joined, err)
		} else if _, ok := results[name]; !ok {
			joined = append(joined, fmt.Errorf("report %s did not complete", name))
		}
	}
	return results, errors.Join(joined...)
}

// ProductRanking runs ProductRanking and decodes its rows.
func (s *Service) ProductRanking(ctx context.Context, params ProductRankingParams) ([]ProductRank, error) {
	rows, err := s.run(ctx, ReportProductRanking, func() (*query.Query, error) { return s.queries.ProductRanking(params) })
	if err != nil {
		return nil, err
	}
	return DecodeProductRanks(rows)
}

// EmployeePerformance runs EmployeePerformance and decodes its rows.
func (s *Service) EmployeePerformance(ctx context.Context, params EmployeePerformanceParams) ([]EmployeeRank, error) {
	rows, err := s.run(ctx, ReportEmployeePerformance, func() (*query.Query, error) { return s.queries.EmployeePerformance(params) })
	if err != nil {
		return nil, err
	}
	return DecodeEmployeeRanks(rows)
}

// CustomerSegmentation runs CustomerSegmentation and decodes its rows.
func (s *Service) CustomerSegmentation(ctx context.Context, params SegmentationParams) ([]CustomerSegment, error) {
	rows, err := s.run(ctx, ReportCustomerSegmentation, func() (*query.Query, error) { return s.queries.CustomerSegmentation(params) })
	if err != nil {
		return nil, err
	}
	return DecodeCustomerSegments(rows)
}

// SalesTrend runs SalesTrend and decodes its rows.
func (s *Service) SalesTrend(ctx context.Context, params TrendParams) ([]TrendPoint, error) {
	rows, err := s.run(ctx, ReportSalesTrend, func() (*query.Query, error) { return s.queries.SalesTrend(params) })
	if err != nil {
		return nil, err
	}
	return DecodeTrendPoints(rows)
}

// TopSellingProducts runs TopSellingProducts and decodes its rows.
func (s *Service) TopSellingProducts(ctx context.Context, params TopProductsParams) ([]TopProduct, error) {
	rows, err := s.run(ctx, ReportTopProducts, func() (*query.Query, error) { return s.queries.TopSellingProducts(params) })
	if err != nil {
		return nil, err
	}
	return DecodeTopProducts(rows)
}

func (s *Service) run(ctx context.Context, name string, build func() (*query.Query, error)) (query.Rows, error) {
	report, err := LookupReport(name)
	if err != nil {
		return nil, err
	}
	q, err := build()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}
	res, err := s.execute(ctx, report, q)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Close stops the worker pool. The cache and gateway belong to the caller.
func (s *Service) Close() error {
	return s.pool.ReleaseTimeout(3 * time.Second)
}
