// Package qdrant provides a Qdrant vector driver over gRPC.
//
// Each index is a Qdrant collection of the same name. Qdrant point IDs must be
// integers or UUIDs, so document IDs are mapped onto deterministic UUIDv5
// point IDs and the original ID is kept in the payload. Index schemas are
// recorded as points of the _simsearch_indexes registry collection.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

const (
	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	registryCollection = "_simsearch_indexes"

	payloadID       = "doc_id"
	payloadFields   = "fields"
	payloadMetadata = "metadata"
)

// pointNamespace seeds the UUIDv5 point IDs.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("simsearch/qdrant"))

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Addr is the Qdrant gRPC address, e.g. "localhost:6334".
	Addr string

	APIKey string
	UseTLS bool
}

// Driver implements vector.Driver using Qdrant.
type Driver struct {
	client *qdrant.Client
	logger *slog.Logger
}

// NewDriver connects to Qdrant and ensures the registry collection exists.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Addr == "" {
		return nil, fmt.Errorf("%w: qdrant address is required", vector.ErrStoreUnavailable)
	}

	host, portStr, err := net.SplitHostPort(c.Addr)
	if err != nil {
		host, portStr = c.Addr, strconv.Itoa(DefaultPort)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid qdrant port %q", vector.ErrStoreUnavailable, portStr)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, vector.Unavailable(err, "connecting to qdrant")
	}

	d := &Driver{client: client, logger: logger}

	exists, err := client.CollectionExists(ctx, registryCollection)
	if err != nil {
		client.Close()
		return nil, vector.Unavailable(err, "checking registry collection")
	}
	if !exists {
		err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: registryCollection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     1,
				Distance: qdrant.Distance_Dot,
			}),
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			client.Close()
			return nil, vector.Unavailable(err, "creating registry collection")
		}
	}

	logger.Info("connected to Qdrant", "addr", c.Addr)
	return d, nil
}

// PointID returns the Qdrant point ID a document ID is stored under.
func PointID(id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

func distance(m vector.Metric) qdrant.Distance {
	switch m {
	case vector.MetricDotProduct:
		return qdrant.Distance_Dot
	case vector.MetricL2:
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

func metric(d qdrant.Distance) (vector.Metric, error) {
	switch d {
	case qdrant.Distance_Cosine:
		return vector.MetricCosine, nil
	case qdrant.Distance_Dot:
		return vector.MetricDotProduct, nil
	case qdrant.Distance_Euclid:
		return vector.MetricL2, nil
	default:
		return "", fmt.Errorf("%w: unsupported qdrant distance %s", vector.ErrSchemaConflict, d)
	}
}

// score converts a Qdrant score into a similarity score. Euclid scores are
// distances.
func score(m vector.Metric, s float32) float64 {
	if m == vector.MetricL2 {
		return vector.ScoreOrZero(vector.L2Score(float64(s)))
	}
	return vector.ScoreOrZero(float64(s))
}

func (d *Driver) wrap(err error, name, msg string) error {
	if status.Code(err) == codes.NotFound {
		return vector.IndexNotFound(name)
	}
	return vector.Unavailable(err, msg)
}

// lookup reads the vector space of a collection.
func (d *Driver) lookup(ctx context.Context, name string) (vector.Schema, error) {
	info, err := d.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return vector.Schema{}, d.wrap(err, name, "getting collection info")
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return vector.Schema{}, fmt.Errorf("%w: collection %q has no default vector", vector.ErrSchemaConflict, name)
	}
	m, err := metric(params.GetDistance())
	if err != nil {
		return vector.Schema{}, err
	}
	return vector.Schema{
		Name:       name,
		Dimensions: int(params.GetSize()),
		Metric:     m,
	}, nil
}

// CreateIndex creates a collection and records its schema in the registry.
func (d *Driver) CreateIndex(ctx context.Context, schema vector.Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	exists, err := d.client.CollectionExists(ctx, schema.Name)
	if err != nil {
		return vector.Unavailable(err, "checking collection")
	}
	if exists {
		return fmt.Errorf("%w: index %q already exists", vector.ErrSchemaConflict, schema.Name)
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: schema.Name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(schema.Dimensions),
			Distance: distance(schema.Metric),
		}),
	})
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("%w: index %q already exists", vector.ErrSchemaConflict, schema.Name)
	}
	if err != nil {
		return vector.Unavailable(err, "creating collection")
	}

	fields := make([]any, len(schema.TextFields))
	for i, f := range schema.TextFields {
		fields[i] = f
	}
	_, err = d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: registryCollection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(PointID(schema.Name)),
			Vectors: qdrant.NewVectors(0),
			Payload: qdrant.NewValueMap(map[string]any{
				"name":        schema.Name,
				"text_fields": fields,
			}),
		}},
	})
	if err != nil {
		return vector.Unavailable(err, "registering index")
	}

	d.logger.Debug("created qdrant collection",
		"index", schema.Name,
		"dimensions", schema.Dimensions,
		"metric", schema.Metric,
	)
	return nil
}

// DeleteIndex deletes the collection and its registry entry.
func (d *Driver) DeleteIndex(ctx context.Context, name string) error {
	exists, err := d.client.CollectionExists(ctx, name)
	if err != nil {
		return vector.Unavailable(err, "checking collection")
	}
	if exists {
		if err := d.client.DeleteCollection(ctx, name); err != nil && status.Code(err) != codes.NotFound {
			return vector.Unavailable(err, "deleting collection")
		}
	}

	_, err = d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: registryCollection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(qdrant.NewID(PointID(name))),
	})
	if err != nil {
		return vector.Unavailable(err, "unregistering index")
	}

	d.logger.Debug("deleted qdrant collection", "index", name)
	return nil
}

// IndexExists reports whether the collection exists.
func (d *Driver) IndexExists(ctx context.Context, name string) (bool, error) {
	exists, err := d.client.CollectionExists(ctx, name)
	if err != nil {
		return false, vector.Unavailable(err, "checking collection")
	}
	return exists, nil
}

// Describe returns the schema of an index: the vector space from the
// collection itself and the text fields from the registry.
func (d *Driver) Describe(ctx context.Context, name string) (vector.Schema, error) {
	s, err := d.lookup(ctx, name)
	if err != nil {
		return vector.Schema{}, err
	}

	points, err := d.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: registryCollection,
		Ids:            []*qdrant.PointId{qdrant.NewID(PointID(name))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return vector.Schema{}, vector.Unavailable(err, "reading index registry")
	}
	if len(points) > 0 {
		for _, v := range points[0].GetPayload()["text_fields"].GetListValue().GetValues() {
			s.TextFields = append(s.TextFields, v.GetStringValue())
		}
	}
	return s, nil
}

func toAny(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		m := make(map[string]any, len(k.StructValue.GetFields()))
		for key, fv := range k.StructValue.GetFields() {
			m[key] = toAny(fv)
		}
		return m
	case *qdrant.Value_ListValue:
		l := make([]any, 0, len(k.ListValue.GetValues()))
		for _, lv := range k.ListValue.GetValues() {
			l = append(l, toAny(lv))
		}
		return l
	default:
		return nil
	}
}

func fromPayload(payload map[string]*qdrant.Value) (string, map[string]string, map[string]any) {
	id := payload[payloadID].GetStringValue()

	var fields map[string]string
	if sv := payload[payloadFields].GetStructValue(); len(sv.GetFields()) > 0 {
		fields = make(map[string]string, len(sv.GetFields()))
		for k, v := range sv.GetFields() {
			fields[k] = v.GetStringValue()
		}
	}

	var metadata map[string]any
	if sv := payload[payloadMetadata].GetStructValue(); len(sv.GetFields()) > 0 {
		metadata = make(map[string]any, len(sv.GetFields()))
		for k, v := range sv.GetFields() {
			metadata[k] = toAny(v)
		}
	}
	return id, fields, metadata
}

func toPoint(doc vector.Document) (*qdrant.PointStruct, error) {
	fields := make(map[string]any, len(doc.Fields))
	for k, v := range doc.Fields {
		fields[k] = v
	}
	metadata := make(map[string]any, len(doc.Metadata))
	for k, v := range doc.Metadata {
		metadata[k] = v
	}

	payload, err := qdrant.TryValueMap(map[string]any{
		payloadID:       doc.ID,
		payloadFields:   fields,
		payloadMetadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewID(PointID(doc.ID)),
		Vectors: qdrant.NewVectors(doc.Embedding...),
		Payload: payload,
	}, nil
}

// BulkUpsert upserts all points in one request. Qdrant rejects a batch as a
// whole on invalid input, in which case points are resubmitted one at a time
// to find the offending documents.
func (d *Driver) BulkUpsert(ctx context.Context, name string, docs []vector.Document) ([]vector.ItemResult, error) {
	schema, err := d.lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	results := make([]vector.ItemResult, len(docs))
	var (
		points  []*qdrant.PointStruct
		pending []int
	)
	for i, doc := range docs {
		results[i].ID = doc.ID
		switch {
		case doc.ID == "":
			results[i].Err = vector.Rejected("missing document id")
			continue
		case len(doc.Embedding) != schema.Dimensions:
			results[i].Err = vector.Rejected("embedding has %d dimensions, index %q expects %d",
				len(doc.Embedding), name, schema.Dimensions)
			continue
		case !vector.Finite(doc.Embedding):
			results[i].Err = vector.Rejected("embedding contains non-finite values")
			continue
		}

		p, err := toPoint(doc)
		if err != nil {
			results[i].Err = vector.Rejected("%v", err)
			continue
		}
		points = append(points, p)
		pending = append(pending, i)
	}

	if len(points) == 0 {
		return results, nil
	}

	upsert := func(ps []*qdrant.PointStruct) error {
		_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Wait:           qdrant.PtrOf(true),
			Points:         ps,
		})
		return err
	}

	err = upsert(points)
	switch {
	case err == nil:
	case status.Code(err) == codes.InvalidArgument:
		d.logger.Debug("qdrant rejected batch, retrying per point",
			"index", name,
			"error", err,
		)
		for j, p := range points {
			if err := upsert([]*qdrant.PointStruct{p}); err != nil {
				if status.Code(err) != codes.InvalidArgument {
					return nil, d.wrap(err, name, "upserting points")
				}
				results[pending[j]].Err = vector.Rejected("%s", status.Convert(err).Message())
			}
		}
	default:
		return nil, d.wrap(err, name, "upserting points")
	}

	d.logger.Debug("upserted points into qdrant",
		"index", name,
		"count", len(docs),
	)
	return results, nil
}

// Query searches the HNSW graph with hnsw_ef set to the candidate count for
// approximate queries, and uses Qdrant's exact search for exhaustive ones.
// Exhaustive queries widen the limit while points tie with the k-th score so
// the id tie-break in vector.Rank sees every tied point.
func (d *Driver) Query(ctx context.Context, name string, q vector.Query) ([]vector.Hit, error) {
	schema, err := d.lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	params := &qdrant.SearchParams{}
	if q.Strategy == vector.StrategyANN {
		params.HnswEf = qdrant.PtrOf(uint64(max(q.NumCandidates, q.K)))
	} else {
		if q.Metric != "" && q.Metric != schema.Metric {
			return nil, fmt.Errorf("%w: qdrant scores index %q with %s only", vector.ErrSchemaConflict, name, schema.Metric)
		}
		params.Exact = qdrant.PtrOf(true)
	}

	limit := q.K
	points, err := d.search(ctx, name, q.Vector, limit, params)
	if err != nil {
		return nil, err
	}
	for q.Strategy != vector.StrategyANN && tiedAtLimit(scores(points), q.K, limit) {
		limit *= 2
		if points, err = d.search(ctx, name, q.Vector, limit, params); err != nil {
			return nil, err
		}
	}

	hits := make([]vector.Hit, 0, len(points))
	for _, p := range points {
		id, fields, metadata := fromPayload(p.GetPayload())
		hits = append(hits, vector.Hit{
			ID:       id,
			Score:    score(schema.Metric, p.GetScore()),
			Fields:   fields,
			Metadata: metadata,
		})
	}

	d.logger.Debug("queried qdrant",
		"index", name,
		"strategy", q.Strategy,
		"limit", limit,
		"results", len(hits),
	)
	return vector.Rank(hits, q.K), nil
}

func (d *Driver) search(ctx context.Context, name string, v []float32, limit int, params *qdrant.SearchParams) ([]*qdrant.ScoredPoint, error) {
	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(v...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Params:         params,
	})
	if err != nil {
		return nil, d.wrap(err, name, "querying points")
	}
	return points, nil
}

func scores(points []*qdrant.ScoredPoint) []float32 {
	out := make([]float32, len(points))
	for i, p := range points {
		out[i] = p.GetScore()
	}
	return out
}

// tiedAtLimit reports whether a full page of scores ends on a tie with the
// k-th score, in which case points past the limit may share that score.
func tiedAtLimit(scores []float32, k, limit int) bool {
	if k < 1 || len(scores) < limit || limit < k {
		return false
	}
	return scores[limit-1] == scores[k-1]
}

// Count returns the exact number of points in the collection.
func (d *Driver) Count(ctx context.Context, name string) (int, error) {
	n, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, d.wrap(err, name, "counting points")
	}
	return int(n), nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		if _, err := d.lookup(ctx, name); err != nil {
			return err
		}
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(PointID(id))
	}

	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return d.wrap(err, name, "deleting points")
	}

	d.logger.Debug("deleted points from qdrant",
		"index", name,
		"count", len(ids),
	)
	return nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

var _ vector.Driver = (*Driver)(nil)

