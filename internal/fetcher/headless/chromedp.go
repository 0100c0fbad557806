// Package headless contains a browser-driven fetcher for when the JSON
// endpoint is not usable and the history page must be scraped directly.
package headless

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/burakyilmaz321/fonapi/internal/crawl"
)

// Element IDs on the TarihselVeriler page.
const (
	mainViewID    = "MainContent_GridViewGenel"
	detailViewID  = "MainContent_GridViewDagilim"
	pageNumID     = "MainContent_LabelGenelPageNumber"
	startDateID   = "MainContent_TextBoxStartDate"
	endDateID     = "MainContent_TextBoxEndDate"
	nextButtonID  = "MainContent_ImageButtonGenelNext"
	searchButton  = "MainContent_ButtonSearchDates"
	defaultPageTO = 60 * time.Second
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	URL               string
	UserAgent         string
	NavigationTimeout time.Duration
	MaxParallel       int
}

// Fetcher implements crawl.Fetcher using chromedp and headless Chrome. It
// drives the historical data form the way an operator would: fill the date
// inputs, trigger the search, and walk the pagination capturing both grid
// tables per page.
type Fetcher struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// pageCapture is the raw material stored for one pagination page.
type pageCapture struct {
	General    string `json:"general"`
	Allocation string `json:"allocation"`
}

// NewChromedp creates a headless fetcher backed by chromedp.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("history page url is required")
	}
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultPageTO
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch loads the history page for day and captures every pagination page.
func (f *Fetcher) Fetch(ctx context.Context, day crawl.Day) (crawl.Result, error) {
	if err := f.acquire(ctx); err != nil {
		return crawl.Result{}, err
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	if err := f.search(taskCtx, day); err != nil {
		return crawl.Result{}, crawl.Transient(day, err)
	}

	result := crawl.Result{Day: day}
	for page := 1; ; page++ {
		capture, rows, err := f.capturePage(taskCtx)
		if err != nil {
			return crawl.Result{}, crawl.Transient(day, err)
		}
		body, err := json.Marshal(capture)
		if err != nil {
			return crawl.Result{}, fmt.Errorf("encode page capture: %w", err)
		}
		result.Pages = append(result.Pages, crawl.Page{Number: page, Body: body})
		result.Records += rows

		more, err := f.hasNextPage(taskCtx)
		if err != nil {
			return crawl.Result{}, crawl.Transient(day, err)
		}
		if !more {
			return result, nil
		}
		if err := f.advancePage(taskCtx, page+1); err != nil {
			return crawl.Result{}, crawl.Transient(day, err)
		}
	}
}

// search fills both date inputs with the same day and triggers the query.
// The search button only reacts to a scripted click, so the click goes
// through jQuery like the page's own handlers do.
func (f *Fetcher) search(ctx context.Context, day crawl.Day) error {
	actions := []chromedp.Action{
		f.userAgentAction(),
		chromedp.Navigate(f.cfg.URL),
		chromedp.WaitVisible("#"+startDateID, chromedp.ByQuery),
		chromedp.SetValue("#"+startDateID, day.String(), chromedp.ByQuery),
		chromedp.SetValue("#"+endDateID, day.String(), chromedp.ByQuery),
		chromedp.Evaluate(jqueryClick(searchButton), nil),
		chromedp.WaitVisible("#"+mainViewID+" tbody tr", chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return fmt.Errorf("submit history search: %w", err)
	}
	return nil
}

func (f *Fetcher) capturePage(ctx context.Context) (pageCapture, int, error) {
	var capture pageCapture
	var rows int
	actions := []chromedp.Action{
		chromedp.InnerHTML("#"+mainViewID, &capture.General, chromedp.ByQuery),
		chromedp.InnerHTML("#"+detailViewID, &capture.Allocation, chromedp.ByQuery),
		chromedp.Evaluate(
			fmt.Sprintf(`document.querySelectorAll('#%s tbody tr').length`, mainViewID),
			&rows,
		),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return pageCapture{}, 0, fmt.Errorf("capture history tables: %w", err)
	}
	return capture, rows, nil
}

func (f *Fetcher) hasNextPage(ctx context.Context) (bool, error) {
	var present bool
	expr := fmt.Sprintf(`document.getElementById(%q) !== null`, nextButtonID)
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &present)); err != nil {
		return false, fmt.Errorf("probe next button: %w", err)
	}
	return present, nil
}

// advancePage clicks through to the next page and waits for the page number
// label to reflect it.
func (f *Fetcher) advancePage(ctx context.Context, page int) error {
	wait := fmt.Sprintf(
		`document.getElementById(%q).textContent.trim() === %q`,
		pageNumID, strconv.Itoa(page),
	)
	actions := []chromedp.Action{
		chromedp.Evaluate(jqueryClick(nextButtonID), nil),
		chromedp.Poll(wait, nil, chromedp.WithPollingInterval(250*time.Millisecond)),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return fmt.Errorf("advance to page %d: %w", page, err)
	}
	return nil
}

func (f *Fetcher) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if f.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

func jqueryClick(id string) string {
	return fmt.Sprintf("jQuery('#%s').click();", id)
}
