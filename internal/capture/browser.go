package capture

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	"icalfilter/internal/form"
	"icalfilter/internal/model"
)

// Default browser parameters.
const (
	DefaultWidth      = 1024
	DefaultHeight     = 900
	DefaultTimeoutSec = 30
)

// Options describes one build action performed through a real browser.
type Options struct {
	// BaseURL is the form page, e.g. "http://127.0.0.1:8080/".
	BaseURL string

	Form model.FormState

	// ScreenshotPath, if set, receives a PNG of the page after the build.
	ScreenshotPath string

	// Width and Height are the viewport size. Zero uses the defaults.
	Width  int
	Height int

	// Timeout bounds the whole run. Zero uses DefaultTimeoutSec.
	Timeout time.Duration
}

// BuildLink launches headless Chromium via chromedp, fills the form at
// opts.BaseURL, clicks the build button and returns the href of the link
// rendered into the result container. It is a smoke check of a deployed
// instance: the returned URL should equal filterurl.Build for the same
// inputs and the page's data-host.
func BuildLink(parentCtx context.Context, opts Options) (string, error) {
	if opts.BaseURL == "" {
		return "", fmt.Errorf("capture: BaseURL is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var (
		href    string
		hasHref bool
		png     []byte
	)
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.BaseURL),
		chromedp.WaitVisible(byID(form.IDCalendarURL), chromedp.ByQuery),
		chromedp.SetValue(byID(form.IDCalendarURL), opts.Form.CalendarURL, chromedp.ByQuery),
		chromedp.SetValue(byID(form.IDNameRegex), opts.Form.NameRegex, chromedp.ByQuery),
		chromedp.SetValue(byID(form.IDDescriptionRegex), opts.Form.DescriptionRegex, chromedp.ByQuery),
	}
	for _, d := range opts.Form.Days.Selected() {
		tasks = append(tasks, chromedp.Click(byID(form.DayID(d)), chromedp.ByQuery))
	}
	tasks = append(tasks,
		chromedp.Click("#build", chromedp.ByQuery),
		chromedp.WaitVisible(byID(form.IDResult)+" a", chromedp.ByQuery),
		chromedp.AttributeValue(byID(form.IDResult)+" a", "href", &href, &hasHref, chromedp.ByQuery),
	)
	if opts.ScreenshotPath != "" {
		tasks = append(tasks, chromedp.FullScreenshot(&png, 100))
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	if !hasHref {
		return "", fmt.Errorf("capture: result link has no href")
	}

	if opts.ScreenshotPath != "" {
		if err := os.WriteFile(opts.ScreenshotPath, png, 0o644); err != nil {
			return href, fmt.Errorf("capture: failed to write PNG: %w", err)
		}
	}

	return href, nil
}

func byID(id string) string {
	return "#" + id
}
