// Package export renders dashboards to standalone HTML and prints them to PDF
// with a headless Chrome driven over the DevTools protocol.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/erp/gestao/internal/infrastructure/config"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// A4 in millimetres
const (
	a4Width  = 210.0
	a4Height = 297.0
)

var (
	ErrEmptyHTML   = errors.New("export: HTML content is empty")
	ErrTimeout     = errors.New("export: PDF rendering timed out")
	ErrEmptyOutput = errors.New("export: generated PDF is empty")
)

// PDFRequest is one page set to print
type PDFRequest struct {
	HTML      string
	Landscape bool
	// MarginMM applies to all four sides
	MarginMM float64
	Timeout  time.Duration
}

// PDFRenderer prints HTML to PDF
type PDFRenderer interface {
	RenderPDF(ctx context.Context, req PDFRequest) ([]byte, error)
	Close() error
}

// ChromeRenderer prints HTML with a local or remote Chrome instance
type ChromeRenderer struct {
	timeout     time.Duration
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromeRenderer creates the browser allocator. Chrome itself starts lazily on the first render.
func NewChromeRenderer(cfg config.ExportConfig, logger *zap.Logger) *ChromeRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ChromeRenderer{timeout: cfg.Timeout, logger: logger}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}

	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

// RenderPDF loads the HTML into a blank page and prints it
func (r *ChromeRenderer) RenderPDF(ctx context.Context, req PDFRequest) ([]byte, error) {
	if strings.TrimSpace(req.HTML) == "" {
		return nil, ErrEmptyHTML
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	// stop the tab when the caller's deadline passes
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	params := printParams(req)
	start := time.Now()
	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, req.HTML).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := params.Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
		}
		r.logger.Error("chromedp rendering failed", zap.Error(err))
		return nil, fmt.Errorf("export: chromedp: %w", err)
	}
	if len(pdf) == 0 {
		return nil, ErrEmptyOutput
	}

	r.logger.Info("pdf rendered",
		zap.Int("bytes", len(pdf)),
		zap.Duration("duration", time.Since(start)))
	return pdf, nil
}

// Close releases the browser allocator
func (r *ChromeRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

func printParams(req PDFRequest) *page.PrintToPDFParams {
	margin := mmToInches(req.MarginMM)
	if req.MarginMM <= 0 {
		margin = mmToInches(10)
	}
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithPaperWidth(mmToInches(a4Width)).
		WithPaperHeight(mmToInches(a4Height)).
		WithLandscape(req.Landscape).
		WithMarginTop(margin).
		WithMarginRight(margin).
		WithMarginBottom(margin).
		WithMarginLeft(margin).
		WithPreferCSSPageSize(false)
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}

var _ PDFRenderer = (*ChromeRenderer)(nil)
