// Package catmaid implements the HTTP client for a CATMAID server. It is the
// concrete fetch.Fetcher behind lazily populated neurons, and additionally
// resolves names and annotations to skeleton IDs.
package catmaid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/catmaid-go/internal/fetch"
	"github.com/ajitpratap0/catmaid-go/internal/metrics"
	"github.com/ajitpratap0/catmaid-go/internal/models"
)

const defaultMaxParallel = 4

// Config holds connection settings for one CATMAID server and project.
type Config struct {
	BaseURL   string
	APIToken  string
	ProjectID int64

	// Timeout bounds each request; zero means no client-side timeout.
	Timeout time.Duration
	// RateLimit is the request budget per second; zero disables limiting.
	RateLimit float64
	// MaxParallel bounds concurrent per-skeleton requests in a batch fetch.
	MaxParallel int
}

// Client talks to a CATMAID server. It implements fetch.Fetcher. A Client is
// safe for concurrent use; the neurons borrowing it are not.
type Client struct {
	baseURL     string
	token       string
	projectID   int64
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxParallel int
	logger      *slog.Logger
}

// NewClient creates a client for the given server.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.APIToken,
		projectID:   cfg.ProjectID,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     limiter,
		maxParallel: maxParallel,
		logger:      logger,
	}
}

// FetchFields retrieves one field group for a batch of skeleton IDs.
// Skeleton data is one request per skeleton, run in parallel and reassembled
// keyed by ID; the other groups are a single multi-ID request.
func (c *Client) FetchFields(ctx context.Context, ids []int64, group fetch.FieldGroup) (map[int64]*fetch.Record, error) {
	if len(ids) == 0 {
		return map[int64]*fetch.Record{}, nil
	}
	switch group {
	case fetch.GroupSkeleton:
		return c.fetchSkeletons(ctx, ids)
	case fetch.GroupName:
		return c.fetchNames(ctx, ids)
	case fetch.GroupAnnotations:
		return c.fetchAnnotations(ctx, ids)
	case fetch.GroupReview:
		return c.fetchReview(ctx, ids)
	}
	return nil, fmt.Errorf("catmaid: unsupported field group %s", group)
}

func (c *Client) fetchSkeletons(ctx context.Context, ids []int64) (map[int64]*fetch.Record, error) {
	type result struct {
		id  int64
		rec *fetch.Record
	}
	results := make([]result, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)
	for i, id := range ids {
		g.Go(func() error {
			var payload compactSkeleton
			path := fmt.Sprintf("/%d/%d/1/1/compact-skeleton", c.projectID, id)
			if err := c.get(gctx, "compact-skeleton", path, &payload); err != nil {
				var remote *fetch.RemoteError
				if errors.As(err, &remote) && remote.Status == http.StatusNotFound {
					return &fetch.UnknownSkeletonError{ID: id}
				}
				return err
			}
			results[i] = result{id: id, rec: &fetch.Record{
				Nodes:      payload.Nodes,
				Connectors: payload.Connectors,
				Tags:       payload.Tags,
			}}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int64]*fetch.Record, len(ids))
	for _, r := range results {
		out[r.id] = r.rec
	}
	c.logger.Debug("fetched skeletons", "count", len(ids))
	return out, nil
}

func (c *Client) fetchNames(ctx context.Context, ids []int64) (map[int64]*fetch.Record, error) {
	form := url.Values{}
	for i, id := range ids {
		form.Set(fmt.Sprintf("skids[%d]", i), strconv.FormatInt(id, 10))
	}

	names := map[string]string{}
	path := fmt.Sprintf("/%d/skeleton/neuronnames", c.projectID)
	if err := c.post(ctx, "neuronnames", path, form, &names); err != nil {
		return nil, err
	}

	out := make(map[int64]*fetch.Record, len(ids))
	for _, id := range ids {
		name, ok := names[strconv.FormatInt(id, 10)]
		if !ok {
			return nil, &fetch.UnknownSkeletonError{ID: id}
		}
		out[id] = &fetch.Record{Name: &name}
	}
	return out, nil
}

func (c *Client) fetchAnnotations(ctx context.Context, ids []int64) (map[int64]*fetch.Record, error) {
	form := url.Values{}
	for i, id := range ids {
		form.Set(fmt.Sprintf("skeleton_ids[%d]", i), strconv.FormatInt(id, 10))
	}

	var payload annotationsForSkeletons
	path := fmt.Sprintf("/%d/annotations/forskeletons", c.projectID)
	if err := c.post(ctx, "annotations-forskeletons", path, form, &payload); err != nil {
		return nil, err
	}

	out := make(map[int64]*fetch.Record, len(ids))
	for _, id := range ids {
		refs := payload.Skeletons[strconv.FormatInt(id, 10)]
		annotations := make([]models.Annotation, 0, len(refs))
		for _, ref := range refs {
			annotations = append(annotations, models.Annotation{
				ID:   ref.ID,
				Name: payload.Annotations[strconv.FormatInt(ref.ID, 10)],
			})
		}
		sort.Slice(annotations, func(i, j int) bool {
			return annotations[i].Name < annotations[j].Name
		})
		out[id] = &fetch.Record{Annotations: annotations}
	}
	return out, nil
}

func (c *Client) fetchReview(ctx context.Context, ids []int64) (map[int64]*fetch.Record, error) {
	form := url.Values{}
	for i, id := range ids {
		form.Set(fmt.Sprintf("skeleton_ids[%d]", i), strconv.FormatInt(id, 10))
	}

	// Response maps skeleton ID to a [total, reviewed] pair.
	counts := map[string][2]int{}
	path := fmt.Sprintf("/%d/skeletons/review-status", c.projectID)
	if err := c.post(ctx, "review-status", path, form, &counts); err != nil {
		return nil, err
	}

	out := make(map[int64]*fetch.Record, len(ids))
	for _, id := range ids {
		pair, ok := counts[strconv.FormatInt(id, 10)]
		if !ok {
			return nil, &fetch.UnknownSkeletonError{ID: id}
		}
		out[id] = &fetch.Record{Review: &models.ReviewStatus{Total: pair[0], Reviewed: pair[1]}}
	}
	return out, nil
}

// Version returns the server's version string. Useful as a health check.
func (c *Client) Version(ctx context.Context) (string, error) {
	var payload struct {
		ServerVersion string `json:"SERVER_VERSION"`
	}
	if err := c.get(ctx, "version", "/version", &payload); err != nil {
		return "", err
	}
	return payload.ServerVersion, nil
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	return c.do(ctx, op, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, op, path string, form url.Values, out any) error {
	return c.do(ctx, op, http.MethodPost, path, form, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, form url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &fetch.RemoteError{Op: op, Err: err}
		}
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &fetch.RemoteError{Op: op, Err: err}
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.token != "" {
		req.Header.Set("X-Authorization", "Token "+c.token)
	}

	metrics.Inc(metrics.FetchTotal)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &fetch.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &fetch.RemoteError{
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", strings.TrimSpace(string(raw))),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &fetch.RemoteError{Op: op, Err: err}
	}
	if err := decodeBody(raw, out); err != nil {
		return &fetch.RemoteError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

var _ fetch.Fetcher = (*Client)(nil)
