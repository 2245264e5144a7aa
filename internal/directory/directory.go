// Package directory builds the business master directory by searching
// Google Places for every category in every city.
package directory

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tre1322/best-of-analyzer/internal/config"
	"github.com/tre1322/best-of-analyzer/internal/reference"
	"github.com/tre1322/best-of-analyzer/internal/resilience"
	"github.com/tre1322/best-of-analyzer/pkg/google"
)

// Query is one text search: a category term in a city.
type Query struct {
	Category string `json:"category"`
	City     string `json:"city"`
}

// Text is the search string sent to Places.
func (q Query) Text() string {
	return q.Category + " in " + q.City
}

// Queries returns every category × city pair, categories outermost.
func Queries(categories, cities []string) []Query {
	out := make([]Query, 0, len(categories)*len(cities))
	for _, cat := range categories {
		for _, city := range cities {
			out = append(out, Query{Category: cat, City: city})
		}
	}
	return out
}

// Result summarizes a collection run.
type Result struct {
	RunID      string               `json:"run_id"`
	Queries    int                  `json:"queries"`
	APICalls   int                  `json:"api_calls"`
	Failed     []Query              `json:"failed,omitempty"`
	Businesses []reference.Business `json:"businesses"`
	Duration   time.Duration        `json:"duration"`
}

// Collector runs text searches against Places.
type Collector struct {
	google  google.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	cfg     *config.DirectoryConfig
}

// NewCollector creates a Collector. A non-positive rate limit falls back
// to one request per second.
func NewCollector(g google.Client, cfg *config.DirectoryConfig) *Collector {
	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 1
	}
	retry := resilience.FromSettings(cfg.MaxAttempts, cfg.InitialBackoffMs, cfg.MaxBackoffMs)
	retry.OnRetry = resilience.RetryLogger("google", "text_search")
	return &Collector{
		google:  g,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		retry:   retry,
		cfg:     cfg,
	}
}

type queryResult struct {
	businesses []reference.Business
	calls      int
	err        error
}

// Collect searches every configured category and city. A query that still
// fails after retries is logged and recorded in Result.Failed; the run only
// fails when ctx is done.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	start := time.Now()
	queries := Queries(c.cfg.Categories, c.cfg.Cities)
	res := &Result{RunID: uuid.New().String(), Queries: len(queries)}
	log := zap.L().With(zap.String("run_id", res.RunID))
	log.Info("directory: collection started", zap.Int("queries", len(queries)))

	concurrency := c.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]queryResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, q := range queries {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			log.Debug("directory: searching", zap.String("query", q.Text()))
			found, calls, err := c.search(gctx, q)
			results[i] = queryResult{businesses: found, calls: calls, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "directory: collect")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "directory: collect")
	}

	var all []reference.Business
	for i, r := range results {
		res.APICalls += r.calls
		if r.err != nil {
			log.Warn("directory: query failed", zap.String("query", queries[i].Text()), zap.Error(r.err))
			res.Failed = append(res.Failed, queries[i])
		}
		all = append(all, r.businesses...)
	}
	res.Businesses = dedupe(all)
	res.Duration = time.Since(start)

	log.Info("directory: collection complete",
		zap.Int("businesses", len(res.Businesses)),
		zap.Int("api_calls", res.APICalls),
		zap.Int("failed", len(res.Failed)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// search runs one query, following page tokens up to MaxPages.
func (c *Collector) search(ctx context.Context, q Query) ([]reference.Business, int, error) {
	maxPages := c.cfg.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}

	var (
		out       []reference.Business
		pageToken string
		calls     int
	)
	for page := 0; page < maxPages; page++ {
		req := google.TextSearchRequest{TextQuery: q.Text(), PageToken: pageToken}
		resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*google.TextSearchResponse, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "directory: rate limit wait")
			}
			calls++
			return c.google.TextSearch(ctx, req)
		})
		if err != nil {
			return out, calls, eris.Wrapf(err, "directory: search %q", q.Text())
		}

		for _, p := range resp.Places {
			out = append(out, reference.Business{
				Name:          p.DisplayName.Text,
				Address:       p.FormattedAddress,
				PlaceID:       p.ID,
				CategoryQuery: q.Category,
				City:          q.City,
			})
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return out, calls, nil
}

// dedupe drops repeats of the same place under the same category term,
// keeping the first. Places without an ID are always kept.
func dedupe(in []reference.Business) []reference.Business {
	seen := make(map[string]bool, len(in))
	out := make([]reference.Business, 0, len(in))
	for _, b := range in {
		if b.Name == "" {
			continue
		}
		if b.PlaceID != "" {
			key := b.PlaceID + "|" + b.CategoryQuery
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, b)
	}
	return out
}

// Upserter persists collected businesses.
type Upserter interface {
	UpsertBusinesses(ctx context.Context, businesses []reference.Business) (int, error)
}

// SaveCSV writes businesses in the master directory layout. Nothing is
// written when there are no businesses; the returned bool reports whether
// the file was created.
func SaveCSV(path string, businesses []reference.Business) (bool, error) {
	if len(businesses) == 0 {
		zap.L().Warn("directory: no businesses collected, skipping file", zap.String("path", path))
		return false, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return false, eris.Wrapf(err, "directory: create %s", path)
	}
	if err := reference.WriteMaster(f, businesses); err != nil {
		f.Close() //nolint:errcheck
		return false, eris.Wrapf(err, "directory: write %s", path)
	}
	if err := f.Close(); err != nil {
		return false, eris.Wrapf(err, "directory: close %s", path)
	}
	zap.L().Info("directory: master directory saved", zap.String("path", path), zap.Int("businesses", len(businesses)))
	return true, nil
}

// Save stores businesses through u. An empty list is a no-op.
func Save(ctx context.Context, u Upserter, businesses []reference.Business) (int, error) {
	if len(businesses) == 0 {
		zap.L().Warn("directory: no businesses collected, skipping store")
		return 0, nil
	}
	n, err := u.UpsertBusinesses(ctx, businesses)
	if err != nil {
		return 0, eris.Wrap(err, "directory: upsert businesses")
	}
	return n, nil
}
