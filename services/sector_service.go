package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const profileUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// profileReadySelector is visible once the profile facts have rendered
const profileReadySelector = "body"

// PageRenderer returns the HTML of a page after client-side rendering
type PageRenderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// ChromedpRenderer renders pages in a headless Chrome
type ChromedpRenderer struct {
	timeout time.Duration
}

// NewChromedpRenderer creates a renderer with a per-page time limit
func NewChromedpRenderer(timeout time.Duration) *ChromedpRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromedpRenderer{timeout: timeout}
}

// Render implements PageRenderer
func (r *ChromedpRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("mute-audio", true),
		chromedp.UserAgent(profileUserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, r.timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(1920, 1080),
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(profileReadySelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", shared.NewServiceError(shared.ErrorCategoryNetwork, "PROFILE_RENDER_FAILED",
			fmt.Sprintf("failed to render %s", pageURL), "ChromedpRenderer", "Render", true, err)
	}
	return html, nil
}

// SectorLookupService reads the sector of a company from its profile page
type SectorLookupService struct {
	baseURL        string
	requestTimeout time.Duration
	rateLimiter    *shared.HTTPRequestRateLimiter
	renderer       PageRenderer
	utility        *UtilityService
	serviceMetrics *shared.ServiceMetrics
}

// NewSectorLookupService creates a lookup service. renderer may be nil to
// disable the rendering fallback.
func NewSectorLookupService(cfg shared.ServiceConfig, renderer PageRenderer) *SectorLookupService {
	return &SectorLookupService{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		requestTimeout: cfg.HTTPRequestTimeout,
		rateLimiter:    shared.NewHTTPRequestRateLimiter(cfg.RequestRateLimit),
		renderer:       renderer,
		utility:        NewUtilityService(),
		serviceMetrics: shared.NewServiceMetrics("Sector_Lookup_Service"),
	}
}

// ProfileURL is the profile page of ticker
func (s *SectorLookupService) ProfileURL(ticker string) string {
	return fmt.Sprintf("%s/quote/%s/profile", s.baseURL, s.utility.NormalizeTicker(ticker))
}

// LookupSector returns the sector of ticker. It returns UnknownSector with
// an error when neither the static page nor the rendered page names one.
func (s *SectorLookupService) LookupSector(ctx context.Context, ticker string) (string, error) {
	startTime := time.Now()
	logger := logrus.WithFields(logrus.Fields{
		"component": "SectorLookupService",
		"ticker":    ticker,
	})

	if err := s.rateLimiter.Wait(ctx); err != nil {
		return models.UnknownSector, err
	}

	pageURL := s.ProfileURL(ticker)
	sector, scrapeErr := s.scrape(pageURL)
	if scrapeErr == nil && sector != "" {
		s.serviceMetrics.IncrementCustomCounter("scraped")
		s.serviceMetrics.RecordRequest(true, time.Since(startTime))
		logger.WithField("sector", sector).Debug("Sector scraped from profile page")
		return sector, nil
	}

	if s.renderer != nil && ctx.Err() == nil {
		logger.WithError(scrapeErr).Debug("Static profile had no sector, rendering")
		html, err := s.renderer.Render(ctx, pageURL)
		if err == nil {
			sector, err = ExtractSectorFromHTML(html)
		}
		if err == nil && sector != "" {
			s.serviceMetrics.IncrementCustomCounter("rendered")
			s.serviceMetrics.RecordRequest(true, time.Since(startTime))
			return sector, nil
		}
		if err != nil {
			scrapeErr = err
		}
	}

	s.serviceMetrics.IncrementCustomCounter("unknown")
	s.serviceMetrics.RecordRequest(false, time.Since(startTime))
	if scrapeErr == nil {
		scrapeErr = fmt.Errorf("no sector on profile page of %s", ticker)
	}
	return models.UnknownSector, shared.NewServiceError(shared.ErrorCategoryNotFound, "SECTOR_NOT_FOUND",
		fmt.Sprintf("sector lookup failed for %s", ticker), "SectorLookupService", "LookupSector", false, scrapeErr)
}

func (s *SectorLookupService) scrape(pageURL string) (string, error) {
	c := colly.NewCollector()
	if s.requestTimeout > 0 {
		c.SetRequestTimeout(s.requestTimeout)
	}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", profileUserAgent)
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var sector string
	c.OnHTML("html", func(e *colly.HTMLElement) {
		sector = ExtractSector(e.DOM)
	})

	var scrapeErr error
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("profile request failed with HTTP %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(pageURL); err != nil && scrapeErr == nil {
		scrapeErr = err
	}
	return sector, scrapeErr
}

// ExtractSectorFromHTML parses a rendered page and extracts its sector
func ExtractSectorFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return ExtractSector(doc.Selection), nil
}

// ExtractSector finds the value following a "Sector" label. It understands
// definition lists (<dt>Sector:</dt><dd>...</dd>) and label spans
// (<span>Sector(s)</span><span>...</span>).
func ExtractSector(root *goquery.Selection) string {
	var sector string

	root.Find("dt, span, th").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		if !isSectorLabel(label.Text()) {
			return true
		}
		value := strings.Join(strings.Fields(label.Next().Text()), " ")
		if value == "" || isSectorLabel(value) {
			return true
		}
		sector = value
		return false
	})

	return sector
}

func isSectorLabel(text string) bool {
	label := strings.ToLower(strings.TrimSpace(text))
	label = strings.TrimSuffix(label, ":")
	return label == "sector" || label == "sector(s)"
}
