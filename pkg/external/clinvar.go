package external

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/iliaanaa/genekor/internal/domain"
)

const (
	// DefaultBaseURL is the root of the ClinVar FTP mirror served over HTTPS.
	DefaultBaseURL = "https://ftp.ncbi.nlm.nih.gov/pub/clinvar/"

	VariantSummaryFile    = "tab_delimited/variant_summary.txt.gz"
	SubmissionSummaryFile = "tab_delimited/submission_summary.txt.gz"

	readmeFile  = "README.txt"
	releaseTag  = "20060102"
	userAgent   = "genekor/1.0 (+https://github.com/iliaanaa/genekor)"
	breakerName = "ClinVar"
)

var (
	// ErrReleaseDateNotFound means README.txt carried no recognisable release date.
	ErrReleaseDateNotFound = errors.New("release date not found in ClinVar README")
	// ErrInvalidGzip means a downloaded .gz file does not start with the gzip magic.
	ErrInvalidGzip = errors.New("downloaded file is not a valid gzip stream")

	releaseDatePattern = regexp.MustCompile(`(?i)release date:\s*(\d{8})`)
)

// statusError is a non-200 HTTP reply.
type statusError struct {
	url    string
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.url, e.status)
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// ClinVarClient polls the ClinVar FTP mirror for releases and downloads the
// tab-delimited dumps.
type ClinVarClient struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retries    int
	backoff    time.Duration
	logger     *logrus.Logger
}

// NewClinVarClient creates a new ClinVar client
func NewClinVarClient(config domain.ClinVarConfig, logger *logrus.Logger) *ClinVarClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(config.BaseURL, "/") {
		config.BaseURL += "/"
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 3 // NCBI asks for at most 3 requests per second
	}
	if config.RetryCount <= 0 {
		config.RetryCount = 3
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 1500 * time.Millisecond
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &ClinVarClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:   NewCircuitBreaker(breakerName, DefaultCircuitBreakerConfig(), logger),
		retries:   config.RetryCount,
		backoff:   config.RetryBackoff,
		logger:    logger,
	}
}

// BreakerState reports the state of the client's circuit breaker.
func (c *ClinVarClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// LatestRelease reads the current release date from README.txt.
func (c *ClinVarClient) LatestRelease(ctx context.Context) (*domain.Release, error) {
	var body []byte
	err := c.withRetry(ctx, readmeFile, func() error {
		var err error
		body, err = c.get(ctx, c.baseURL+readmeFile)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching ClinVar README: %w", err)
	}

	date, err := ParseReleaseDate(body)
	if err != nil {
		return nil, err
	}
	return &domain.Release{Date: date, Version: date.Format(releaseTag)}, nil
}

// ParseReleaseDate finds the "Release date: YYYYMMDD" line of a ClinVar
// README. Failing that, it takes the first line mentioning a release whose
// remainder parses as a date.
func ParseReleaseDate(readme []byte) (time.Time, error) {
	if m := releaseDatePattern.FindSubmatch(readme); m != nil {
		if t, err := time.Parse(releaseTag, string(m[1])); err == nil {
			return t, nil
		}
	}

	sc := bufio.NewScanner(bytes.NewReader(readme))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(strings.ToLower(line), "release") {
			continue
		}
		_, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if t, err := dateparse.ParseAny(strings.TrimSpace(rest)); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, ErrReleaseDateNotFound
}

// Download fetches file (relative to the base URL) into destDir and returns
// the local path. The body is written to a .tmp file and renamed once
// complete; .gz files must carry the gzip magic.
func (c *ClinVarClient) Download(ctx context.Context, file, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}
	dest := filepath.Join(destDir, path.Base(file))
	url := c.baseURL + strings.TrimPrefix(file, "/")

	start := time.Now()
	var written int64
	err := c.withRetry(ctx, file, func() error {
		var err error
		written, err = c.fetchTo(ctx, url, dest)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", file, err)
	}

	c.logger.WithFields(logrus.Fields{
		"file":        file,
		"path":        dest,
		"bytes":       written,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Downloaded ClinVar file")
	return dest, nil
}

// DownloadRelease fetches variant_summary and submission_summary.
func (c *ClinVarClient) DownloadRelease(ctx context.Context, destDir string) (variants, submissions string, err error) {
	if variants, err = c.Download(ctx, VariantSummaryFile, destDir); err != nil {
		return "", "", err
	}
	if submissions, err = c.Download(ctx, SubmissionSummaryFile, destDir); err != nil {
		return "", "", err
	}
	return variants, submissions, nil
}

// withRetry runs fn through the rate limiter and circuit breaker, retrying
// with linear backoff.
func (c *ClinVarClient) withRetry(ctx context.Context, what string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if err := c.rateLimit.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait failed: %w", err)
		}

		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		if err == nil {
			return nil
		}
		lastErr = breakerError(breakerName, err)
		if !retryable(lastErr) || errors.Is(lastErr, ErrServiceUnavailable) {
			return lastErr
		}

		c.logger.WithError(lastErr).WithFields(logrus.Fields{
			"file":    what,
			"attempt": attempt,
			"of":      c.retries,
		}).Warn("ClinVar request failed")

		if attempt == c.retries {
			break
		}
		select {
		case <-time.After(c.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", c.retries, lastErr)
}

func (c *ClinVarClient) request(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &statusError{url: url, status: resp.StatusCode}
	}
	return resp, nil
}

func (c *ClinVarClient) get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.request(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func (c *ClinVarClient) fetchTo(ctx context.Context, url, dest string) (int64, error) {
	resp, err := c.request(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("download failed: %w", err)
	}

	if strings.HasSuffix(dest, ".gz") {
		if err := checkGzipMagic(tmp); err != nil {
			os.Remove(tmp)
			return 0, err
		}
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("rename file: %w", err)
	}
	return n, nil
}

func checkGzipMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	magic := make([]byte, 2)
	if _, err := io.ReadFull(f, magic); err != nil || magic[0] != 0x1f || magic[1] != 0x8b {
		return ErrInvalidGzip
	}
	return nil
}
