package guard

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/legacy-guard/guard-client/pkg/datamodel"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

const (
	apiPrefix   = "/api/v1"
	analyzePath = apiPrefix + "/analyze"

	// multipart field names, owned by the backend
	fieldProjectFile = "project_file"
	fieldProjectName = "project_name"
	fieldLanguage    = "language"

	maxErrorBody = 4 * 1024
)

var (
	ErrMissingEndpoint  = errors.New("guard API endpoint is not set")
	ErrMissingProjectID = errors.New("backend response has no project id")
)

// HTTPError is returned when the backend answers with a non-2xx status.
type HTTPError struct {
	Code   int
	Status string
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s : %s", e.Code, e.Status, e.Body)
}

// SubmissionError wraps any failure to create an analysis job. No job id
// exists when it is returned, so the caller must not start polling.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %s", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollFetchError wraps a failed status fetch. The caller keeps its
// last-known-good snapshot when it sees one.
type PollFetchError struct {
	ProjectID string
	Err       error
}

func (e *PollFetchError) Error() string {
	return fmt.Sprintf("status fetch for %s failed: %s", e.ProjectID, e.Err)
}

func (e *PollFetchError) Unwrap() error { return e.Err }

// Submitter is the backend surface the rest of the client depends on.
type Submitter interface {
	SubmitProject(ctx context.Context, archive io.Reader, filename, projectName, language string) (projectID string, err error)
	GetAnalysis(ctx context.Context, projectID string) (analysis *datamodel.Analysis, err error)
}

type ClientConfig struct {
	Endpoint    string
	Timeout     time.Duration
	PollRetries int
	Insecure    bool
}

type Client struct {
	endpoint    string
	client      *http.Client
	pollRetries int
}

var _ Submitter = &Client{}

func NewClientFromConfig(cfg ClientConfig) (c *Client, err error) {
	if cfg.Endpoint == "" {
		err = ErrMissingEndpoint
		return
	}
	if _, err = url.Parse(cfg.Endpoint); err != nil {
		err = fmt.Errorf("invalid guard API endpoint: %w", err)
		return
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.Insecure {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // configuration chosen by user
			},
		}
	}
	c = &Client{
		endpoint:    strings.TrimSuffix(cfg.Endpoint, "/"),
		client:      httpClient,
		pollRetries: cfg.PollRetries,
	}
	return
}

// SubmitProject creates a new analysis job from an archive. Single
// attempt, no retry: on failure no job exists and the submission must be
// surfaced to the user. When projectName is empty the archive filename
// is used instead.
func (c *Client) SubmitProject(ctx context.Context, archive io.Reader, filename, projectName, language string) (projectID string, err error) {
	if projectName == "" {
		projectName = filename
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile(fieldProjectFile, filename)
	if err != nil {
		err = &SubmissionError{Err: err}
		return
	}
	if _, err = io.Copy(part, archive); err != nil {
		err = &SubmissionError{Err: err}
		return
	}
	if err = form.WriteField(fieldProjectName, projectName); err != nil {
		err = &SubmissionError{Err: err}
		return
	}
	// empty language means "unspecified" server side
	if err = form.WriteField(fieldLanguage, language); err != nil {
		err = &SubmissionError{Err: err}
		return
	}
	if err = form.Close(); err != nil {
		err = &SubmissionError{Err: err}
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+analyzePath, body)
	if err != nil {
		err = &SubmissionError{Err: err}
		return
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		err = &SubmissionError{Err: err}
		return
	}
	defer func() {
		if e := resp.Body.Close(); e != nil {
			logger.Warn("could not close response body", slog.String("error", e.Error()))
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err = &SubmissionError{Err: newHTTPError(resp)}
		return
	}

	created := &datamodel.Analysis{}
	if err = json.NewDecoder(resp.Body).Decode(created); err != nil {
		err = &SubmissionError{Err: fmt.Errorf("malformed backend response: %w", err)}
		return
	}
	if created.ProjectID == "" {
		err = &SubmissionError{Err: ErrMissingProjectID}
		return
	}
	projectID = created.ProjectID
	logger.Debug("analysis job created", slog.String("project-id", projectID), slog.String("project-name", projectName))
	return
}

// GetAnalysis fetches the current snapshot of a job. Transient failures
// (network errors, 5xx) are retried with exponential backoff, bounded by
// the configured retry count; 4xx answers are not retried.
func (c *Client) GetAnalysis(ctx context.Context, projectID string) (analysis *datamodel.Analysis, err error) {
	operation := func() (fetched *datamodel.Analysis, err error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+apiPrefix+"/"+url.PathEscape(projectID), nil)
		if err != nil {
			return
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())

		resp, err := c.client.Do(req)
		if err != nil {
			return
		}
		defer func() {
			if e := resp.Body.Close(); e != nil {
				logger.Warn("could not close response body", slog.String("error", e.Error()))
			}
		}()

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			httpErr := newHTTPError(resp)
			if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
				err = backoff.Permanent(httpErr)
				return
			}
			err = httpErr
			return
		}

		fetched = &datamodel.Analysis{}
		if err = json.NewDecoder(resp.Body).Decode(fetched); err != nil {
			err = backoff.Permanent(fmt.Errorf("malformed backend response: %w", err))
			fetched = nil
			return
		}
		return
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(c.pollRetries, 0))),
		ctx,
	)
	analysis, err = backoff.RetryWithData(operation, policy)
	if err != nil {
		err = &PollFetchError{ProjectID: projectID, Err: err}
		return
	}
	if analysis.ProjectID == "" {
		analysis.ProjectID = projectID
	}
	return
}

func newHTTPError(resp *http.Response) *HTTPError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{
		Code:   resp.StatusCode,
		Status: resp.Status,
		Body:   strings.TrimSpace(string(raw)),
	}
}
