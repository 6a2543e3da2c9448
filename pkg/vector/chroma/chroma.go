// Package chroma provides a Chroma vector database driver implementation.
//
// Each index is a Chroma collection of the same name. The index schema is
// kept in the collection metadata; document fields and metadata are flattened
// into Chroma's scalar metadata under "f." and "m." key prefixes.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

const (
	// DefaultTenant is the Chroma tenant used when none is configured.
	DefaultTenant = "default_tenant"

	// DefaultDatabase is the Chroma database used when none is configured.
	DefaultDatabase = "default_database"

	// pageSize bounds the documents fetched per request during exhaustive scans.
	pageSize = 1000

	fieldPrefix    = "f."
	metadataPrefix = "m."

	keySpace      = "hnsw:space"
	keyDimensions = "simsearch:dimensions"
	keyMetric     = "simsearch:metric"
	keyFields     = "simsearch:text_fields"
)

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// Tenant and Database select the Chroma namespace. They default to
	// DefaultTenant and DefaultDatabase.
	Tenant   string
	Database string

	// MaxRetries is the number of heartbeat attempts made while Chroma is
	// starting up. Defaults to 1.
	MaxRetries int

	// RetryDelay is the initial delay between attempts, doubled after each
	// failure up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// statusError is a non-success HTTP response from Chroma.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

// NewDriver creates a new Chroma vector driver, waiting for the server to
// answer its heartbeat.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("%w: chroma URL is required", vector.ErrStoreUnavailable)
	}

	tenant := c.Tenant
	if tenant == "" {
		tenant = DefaultTenant
	}
	database := c.Database
	if database == "" {
		database = DefaultDatabase
	}

	d := &Driver{
		baseURL: fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s",
			strings.TrimSuffix(c.URL, "/"), tenant, database),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	attempts := max(c.MaxRetries, 1)
	delay := c.RetryDelay
	if delay == 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.MaxRetryDelay
	if maxDelay == 0 {
		maxDelay = 10 * time.Second
	}

	heartbeat := strings.TrimSuffix(c.URL, "/") + "/api/v2/heartbeat"
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = d.request(context.Background(), http.MethodGet, heartbeat, nil, nil); lastErr == nil {
			logger.Info("connected to Chroma",
				"url", c.URL,
				"tenant", tenant,
				"database", database,
			)
			return d, nil
		}

		if attempt < attempts {
			logger.Warn("chroma not ready, retrying",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			time.Sleep(delay)
			delay = min(delay*2, maxDelay)
		}
	}

	return nil, fmt.Errorf("%w: chroma unreachable after %d attempts: %v", vector.ErrStoreUnavailable, attempts, lastErr)
}

// request sends a JSON request and decodes a JSON response into out.
func (d *Driver) request(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.code == http.StatusNotFound || strings.Contains(se.body, "does not exist")
}

func isClientError(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code >= 400 && se.code < 500
}

func space(m vector.Metric) string {
	switch m {
	case vector.MetricDotProduct:
		return "ip"
	case vector.MetricL2:
		return "l2"
	default:
		return "cosine"
	}
}

// score converts a Chroma distance into a similarity score. Chroma reports
// 1-cos for cosine, 1-dot for ip and the squared distance for l2.
func score(m vector.Metric, distance float64) float64 {
	switch m {
	case vector.MetricL2:
		return vector.ScoreOrZero(vector.L2Score(math.Sqrt(distance)))
	default:
		return vector.ScoreOrZero(1 - distance)
	}
}

func (d *Driver) collection(ctx context.Context, name string) (chromaCollection, vector.Schema, error) {
	var c chromaCollection
	if err := d.request(ctx, http.MethodGet, d.baseURL+"/collections/"+name, nil, &c); err != nil {
		if isNotFound(err) {
			return c, vector.Schema{}, vector.IndexNotFound(name)
		}
		return c, vector.Schema{}, vector.Unavailable(err, "getting collection")
	}

	s := vector.Schema{Name: name}
	if dims, ok := c.Metadata[keyDimensions].(float64); ok {
		s.Dimensions = int(dims)
	}
	if m, ok := c.Metadata[keyMetric].(string); ok {
		s.Metric = vector.Metric(m)
	}
	if f, ok := c.Metadata[keyFields].(string); ok && f != "" {
		if err := json.Unmarshal([]byte(f), &s.TextFields); err != nil {
			return c, vector.Schema{}, vector.Unavailable(err, "decoding text fields")
		}
	}
	if s.Dimensions == 0 || !s.Metric.Valid() {
		return c, vector.Schema{}, fmt.Errorf("%w: collection %q was not created by simsearch", vector.ErrSchemaConflict, name)
	}
	return c, s, nil
}

// CreateIndex creates a collection carrying the schema in its metadata.
func (d *Driver) CreateIndex(ctx context.Context, schema vector.Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	if _, _, err := d.collection(ctx, schema.Name); err == nil {
		return fmt.Errorf("%w: index %q already exists", vector.ErrSchemaConflict, schema.Name)
	} else if !errors.Is(err, vector.ErrIndexNotFound) {
		return err
	}

	fields, err := json.Marshal(schema.TextFields)
	if err != nil {
		return fmt.Errorf("%w: encoding text fields: %v", vector.ErrSchemaConflict, err)
	}

	req := chromaCreateRequest{
		Name: schema.Name,
		Metadata: map[string]any{
			keySpace:      space(schema.Metric),
			keyDimensions: schema.Dimensions,
			keyMetric:     string(schema.Metric),
			keyFields:     string(fields),
		},
	}
	if err := d.request(ctx, http.MethodPost, d.baseURL+"/collections", req, nil); err != nil {
		if isClientError(err) {
			return fmt.Errorf("%w: creating collection %q: %v", vector.ErrSchemaConflict, schema.Name, err)
		}
		return vector.Unavailable(err, "creating collection")
	}

	d.logger.Debug("created chroma collection",
		"index", schema.Name,
		"dimensions", schema.Dimensions,
		"metric", schema.Metric,
	)
	return nil
}

// DeleteIndex deletes the collection.
func (d *Driver) DeleteIndex(ctx context.Context, name string) error {
	err := d.request(ctx, http.MethodDelete, d.baseURL+"/collections/"+name, nil, nil)
	if err != nil && !isNotFound(err) {
		return vector.Unavailable(err, "deleting collection")
	}
	return nil
}

// IndexExists reports whether the collection exists.
func (d *Driver) IndexExists(ctx context.Context, name string) (bool, error) {
	_, _, err := d.collection(ctx, name)
	if errors.Is(err, vector.ErrIndexNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Describe returns the schema stored in the collection metadata.
func (d *Driver) Describe(ctx context.Context, name string) (vector.Schema, error) {
	_, s, err := d.collection(ctx, name)
	return s, err
}

func flatten(doc vector.Document) map[string]any {
	if len(doc.Fields) == 0 && len(doc.Metadata) == 0 {
		return nil
	}
	m := make(map[string]any, len(doc.Fields)+len(doc.Metadata))
	for k, v := range doc.Fields {
		m[fieldPrefix+k] = v
	}
	for k, v := range doc.Metadata {
		m[metadataPrefix+k] = v
	}
	return m
}

func unflatten(m map[string]any) (map[string]string, map[string]any) {
	var (
		fields   map[string]string
		metadata map[string]any
	)
	for k, v := range m {
		switch {
		case strings.HasPrefix(k, fieldPrefix):
			if fields == nil {
				fields = make(map[string]string)
			}
			s, _ := v.(string)
			fields[strings.TrimPrefix(k, fieldPrefix)] = s
		case strings.HasPrefix(k, metadataPrefix):
			if metadata == nil {
				metadata = make(map[string]any)
			}
			metadata[strings.TrimPrefix(k, metadataPrefix)] = v
		}
	}
	return fields, metadata
}

// BulkUpsert upserts documents in one request. Chroma validates a batch as a
// whole, so a rejected batch is resubmitted one document at a time to find
// the offending documents.
func (d *Driver) BulkUpsert(ctx context.Context, name string, docs []vector.Document) ([]vector.ItemResult, error) {
	c, schema, err := d.collection(ctx, name)
	if err != nil {
		return nil, err
	}

	results := make([]vector.ItemResult, len(docs))
	var pending []int
	for i, doc := range docs {
		results[i].ID = doc.ID
		switch {
		case doc.ID == "":
			results[i].Err = vector.Rejected("missing document id")
		case len(doc.Embedding) != schema.Dimensions:
			results[i].Err = vector.Rejected("embedding has %d dimensions, index %q expects %d",
				len(doc.Embedding), name, schema.Dimensions)
		case !vector.Finite(doc.Embedding):
			results[i].Err = vector.Rejected("embedding contains non-finite values")
		default:
			pending = append(pending, i)
		}
	}

	if len(pending) == 0 {
		return results, nil
	}

	upsert := func(idx []int) error {
		req := chromaUpsertRequest{
			IDs:        make([]string, len(idx)),
			Embeddings: make([][]float32, len(idx)),
			Metadatas:  make([]map[string]any, len(idx)),
		}
		for j, i := range idx {
			req.IDs[j] = docs[i].ID
			req.Embeddings[j] = docs[i].Embedding
			req.Metadatas[j] = flatten(docs[i])
		}
		return d.request(ctx, http.MethodPost, d.baseURL+"/collections/"+c.ID+"/upsert", req, nil)
	}

	err = upsert(pending)
	switch {
	case err == nil:
	case isClientError(err):
		d.logger.Debug("chroma rejected batch, retrying per document",
			"index", name,
			"error", err,
		)
		for _, i := range pending {
			if err := upsert([]int{i}); err != nil {
				if !isClientError(err) {
					return nil, vector.Unavailable(err, "upserting documents")
				}
				results[i].Err = vector.Rejected("%v", err)
			}
		}
	default:
		return nil, vector.Unavailable(err, "upserting documents")
	}

	d.logger.Debug("upserted documents to chroma",
		"index", name,
		"count", len(docs),
	)
	return results, nil
}

// Query runs Chroma's HNSW query for approximate searches, and pages through
// every stored embedding for exhaustive ones.
func (d *Driver) Query(ctx context.Context, name string, q vector.Query) ([]vector.Hit, error) {
	c, schema, err := d.collection(ctx, name)
	if err != nil {
		return nil, err
	}

	var hits []vector.Hit
	if q.Strategy == vector.StrategyANN {
		hits, err = d.knn(ctx, c, schema, q)
	} else {
		hits, err = d.scan(ctx, c, schema, q)
	}
	if err != nil {
		return nil, err
	}

	d.logger.Debug("queried chroma",
		"index", name,
		"strategy", q.Strategy,
		"results", len(hits),
	)
	return hits, nil
}

func (d *Driver) knn(ctx context.Context, c chromaCollection, schema vector.Schema, q vector.Query) ([]vector.Hit, error) {
	req := chromaQueryRequest{
		QueryEmbeddings: [][]float32{q.Vector},
		NResults:        max(q.NumCandidates, q.K),
		Include:         []string{"metadatas", "distances"},
	}

	var resp chromaQueryResponse
	if err := d.request(ctx, http.MethodPost, d.baseURL+"/collections/"+c.ID+"/query", req, &resp); err != nil {
		return nil, vector.Unavailable(err, "querying collection")
	}

	// Process first group (we only query with one embedding)
	if len(resp.IDs) == 0 {
		return []vector.Hit{}, nil
	}

	hits := make([]vector.Hit, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		h := vector.Hit{ID: id}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			h.Score = score(schema.Metric, resp.Distances[0][i])
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			h.Fields, h.Metadata = unflatten(resp.Metadatas[0][i])
		}
		hits = append(hits, h)
	}
	return vector.Rank(hits, q.K), nil
}

func (d *Driver) scan(ctx context.Context, c chromaCollection, schema vector.Schema, q vector.Query) ([]vector.Hit, error) {
	metric := schema.Metric
	if q.Metric != "" {
		metric = q.Metric
	}

	var docs []vector.Document
	for offset := 0; ; offset += pageSize {
		req := chromaGetRequest{
			Limit:   pageSize,
			Offset:  offset,
			Include: []string{"metadatas", "embeddings"},
		}

		var resp chromaGetResponse
		if err := d.request(ctx, http.MethodPost, d.baseURL+"/collections/"+c.ID+"/get", req, &resp); err != nil {
			return nil, vector.Unavailable(err, "getting documents")
		}

		for i, id := range resp.IDs {
			doc := vector.Document{ID: id}
			if i < len(resp.Metadatas) {
				doc.Fields, doc.Metadata = unflatten(resp.Metadatas[i])
			}
			if i < len(resp.Embeddings) {
				doc.Embedding = resp.Embeddings[i]
			}
			docs = append(docs, doc)
		}

		if len(resp.IDs) < pageSize {
			break
		}
	}

	return vector.ScoreAll(metric, q.Vector, docs, q.K)
}

// Count returns the number of documents in the collection.
func (d *Driver) Count(ctx context.Context, name string) (int, error) {
	c, _, err := d.collection(ctx, name)
	if err != nil {
		return 0, err
	}

	var n int
	if err := d.request(ctx, http.MethodGet, d.baseURL+"/collections/"+c.ID+"/count", nil, &n); err != nil {
		return 0, vector.Unavailable(err, "counting documents")
	}
	return n, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, name string, ids []string) error {
	c, _, err := d.collection(ctx, name)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	if err := d.request(ctx, http.MethodPost, d.baseURL+"/collections/"+c.ID+"/delete", chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return vector.Unavailable(err, "deleting documents")
	}

	d.logger.Debug("deleted documents from chroma",
		"index", name,
		"count", len(ids),
	)
	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

var _ vector.Driver = (*Driver)(nil)
