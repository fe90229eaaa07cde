package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

var errEmptyBody = errors.New("empty response body")

// HTTPSource scrapes the publisher's download page for data links and
// downloads every linked file.
type HTTPSource struct {
	pageURL    string
	selector   string
	httpClient *http.Client
	opts       Options
	logger     *slog.Logger
}

// NewHTTPSource creates a source for the given page. An empty selector means "a".
func NewHTTPSource(pageURL, selector string, timeout time.Duration, opts Options, logger *slog.Logger) *HTTPSource {
	if selector == "" {
		selector = "a"
	}
	return &HTTPSource{
		pageURL:    pageURL,
		selector:   selector,
		httpClient: &http.Client{Timeout: timeout},
		opts:       opts,
		logger:     logger,
	}
}

// Fetch downloads the page, discovers data links and retrieves each of them.
func (s *HTTPSource) Fetch(ctx context.Context) (domain.RawRecordSet, error) {
	page, err := s.get(ctx, s.pageURL)
	if err != nil {
		return domain.RawRecordSet{}, err
	}

	links, err := s.discoverLinks(page)
	if err != nil {
		return domain.RawRecordSet{}, &domain.RetrievalError{URL: s.pageURL, Err: err}
	}
	if len(links) == 0 {
		return domain.RawRecordSet{}, &domain.RetrievalError{URL: s.pageURL, Err: domain.ErrNoDataFiles}
	}
	s.logger.Info("discovered data links", "url", s.pageURL, "links", len(links))

	c := newCollector(s.pageURL, s.opts, s.logger)
	for _, link := range links {
		data, err := s.get(ctx, link)
		if err != nil {
			return domain.RawRecordSet{}, err
		}
		if err := c.add(fileName(link), data); err != nil {
			return domain.RawRecordSet{}, &domain.RetrievalError{URL: link, Err: err}
		}
	}
	return c.result()
}

// discoverLinks returns the absolute URLs of data links in page order, deduplicated.
func (s *HTTPSource) discoverLinks(page []byte) ([]string, error) {
	base, err := url.Parse(s.pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find(s.selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || !isDataLink(href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			s.logger.Warn("malformed link skipped", "href", href, "error", err)
			return
		}
		abs := base.ResolveReference(ref).String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, abs)
	})
	return links, nil
}

func (s *HTTPSource) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.RetrievalError{URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}
	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &domain.RetrievalError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.RetrievalError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RetrievalError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) == 0 {
		return nil, &domain.RetrievalError{URL: rawURL, Err: errEmptyBody}
	}
	s.logger.Debug("downloaded", "url", rawURL, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

// fileName is the unescaped last path segment of a link.
func fileName(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return path.Base(link)
	}
	name := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}
