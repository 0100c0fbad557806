// Package tefas implements the fetcher capability against the TEFAS fund
// marketplace history endpoint.
package tefas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/burakyilmaz321/fonapi/internal/crawl"
	"github.com/burakyilmaz321/fonapi/internal/policy/ratelimit"
)

const (
	defaultBaseURL  = "https://www.tefas.gov.tr"
	defaultFundType = "YAT"
	defaultPageSize = 100

	historyPath = "/api/DB/BindHistoryInfo"
	refererPath = "/TarihselVeriler.aspx"
)

// Config controls collector behavior. A nil Limiter disables throttling.
type Config struct {
	BaseURL   string
	FundType  string
	PageSize  int
	UserAgent string
	Timeout   time.Duration
	Limiter   *ratelimit.Limiter
}

// Fetcher implements crawl.Fetcher using the Colly collector. One Fetch call
// covers a single day: the history endpoint is paginated, so the fetcher
// walks start/length offsets until recordsTotal is reached.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher, filling zero config values with defaults.
func New(cfg Config) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.FundType == "" {
		cfg.FundType = defaultFundType
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	// colly v2.1.0's Async option ignores its argument and always enables
	// async mode; the collector is synchronous by default, which is what
	// Async(false) intends.
	c := colly.NewCollector()
	c.IgnoreRobotsTxt = true
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// historyEnvelope is the DataTables-style payload BindHistoryInfo returns.
type historyEnvelope struct {
	Draw            int               `json:"draw"`
	RecordsTotal    int               `json:"recordsTotal"`
	RecordsFiltered int               `json:"recordsFiltered"`
	Data            []json.RawMessage `json:"data"`
}

// Fetch retrieves every page of fund history for day. Days without data
// (weekends, market holidays) yield a Result with zero records and no error.
func (f *Fetcher) Fetch(ctx context.Context, day crawl.Day) (crawl.Result, error) {
	result := crawl.Result{Day: day}
	start := 0
	for page := 1; ; page++ {
		body, err := f.fetchPage(ctx, day, start)
		if err != nil {
			return crawl.Result{}, err
		}
		var envelope historyEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return crawl.Result{}, crawl.Transient(day, fmt.Errorf("decode history payload: %w", err))
		}
		if len(envelope.Data) == 0 {
			break
		}
		result.Pages = append(result.Pages, crawl.Page{Number: page, Body: body})
		result.Records += len(envelope.Data)
		if result.Records >= envelope.RecordsTotal {
			break
		}
		start += len(envelope.Data)
	}
	return result, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, day crawl.Day, start int) ([]byte, error) {
	if f.cfg.Limiter != nil {
		if err := f.cfg.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector := f.buildCollector(&body, &status, &fetchErr)

	form := map[string]string{
		"fontip":   f.cfg.FundType,
		"bastarih": day.String(),
		"bittarih": day.String(),
		"start":    strconv.Itoa(start),
		"length":   strconv.Itoa(f.cfg.PageSize),
	}

	done := make(chan error, 1)
	go func() {
		done <- collector.Post(f.cfg.BaseURL+historyPath, form)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("tefas fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, f.classify(day, status, err)
		}
		if fetchErr != nil {
			return nil, f.classify(day, status, fetchErr)
		}
		return body, nil
	}
}

func (f *Fetcher) buildCollector(body *[]byte, status *int, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnRequest(func(r *colly.Request) {
		// The endpoint rejects requests that don't look like they came
		// from the history page itself.
		r.Headers.Set("Referer", f.cfg.BaseURL+refererPath)
		r.Headers.Set("Origin", f.cfg.BaseURL)
		r.Headers.Set("X-Requested-With", "XMLHttpRequest")
	})
	collector.OnResponse(func(r *colly.Response) {
		*status = r.StatusCode
		*body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			*status = r.StatusCode
		}
		*fetchErr = err
	})
	return collector
}

// classify maps HTTP-level failures to retry dispositions: client errors
// mean the request itself is wrong and will not succeed on retry, anything
// else is assumed transient.
func (f *Fetcher) classify(day crawl.Day, status int, err error) error {
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError &&
		status != http.StatusTooManyRequests {
		return crawl.Terminal(day, fmt.Errorf("tefas responded %d: %w", status, err))
	}
	return crawl.Transient(day, fmt.Errorf("tefas fetch failed: %w", err))
}
