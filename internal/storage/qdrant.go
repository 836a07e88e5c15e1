package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// vectorName is the named vector holding chunk embeddings.
const vectorName = "content"

// QdrantConfig holds connection settings for a Qdrant server.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client     *qdrant.Client
	collection string
	dim        int
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(ctx context.Context, cfg QdrantConfig) (*QdrantStorage, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &QdrantStorage{
		client:     client,
		collection: cfg.Collection,
	}

	if err := s.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	return s, nil
}

func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error { return s.Health(ctx) }, newRetryBackoff(ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the collection with a cosine "content" vector of the
// given size and keyword indexes on the filterable payload fields.
// Idempotent - safe to call multiple times.
func (s *QdrantStorage) EnsureCollection(ctx context.Context, dim int) error {
	s.dim = dim

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	if exists {
		current, err := s.collectionDim(ctx)
		if err != nil {
			return err
		}
		if current == dim {
			return nil
		}
		// Vectors of another size cannot be written or searched; start over.
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("failed to drop collection with %d dimensions: %w", current, err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if err := s.createPayloadIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}
	return nil
}

func (s *QdrantStorage) createPayloadIndexes(ctx context.Context) error {
	fields := []string{
		fieldChapter,
		fieldType,
		fieldDifficulty,
		fieldGeneration, // stale-entry pruning
	}

	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	return nil
}

func (s *QdrantStorage) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	}
	return backoff.Retry(operation, newRetryBackoff(ctx))
}

// Upsert stores entries in batches of 100. Entry IDs must be UUIDs.
func (s *QdrantStorage) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := validateEntries(entries, s.dim); err != nil {
		return err
	}

	batchSize := 100
	for i := 0; i < len(entries); i += batchSize {
		end := min(i+batchSize, len(entries))

		batch := entries[i:end]
		points := make([]*qdrant.PointStruct, len(batch))
		for j, e := range batch {
			points[j] = &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(e.ID),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					vectorName: qdrant.NewVector(e.Vector...),
				}),
				Payload: qdrant.NewValueMap(payloadFor(e).asMap()),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// Query performs a cosine similarity search on the "content" vector.
func (s *QdrantStorage) Query(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if limit <= 0 {
		return nil, nil
	}
	if s.dim > 0 && len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dim)
	}

	using := vectorName
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Using:          &using,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		// A collection that was never created is an empty index, not a failure.
		if exists, existsErr := s.client.CollectionExists(ctx, s.collection); existsErr == nil && !exists {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search %s: %w", s.collection, err)
	}

	matches := make([]Match, 0, len(results))
	for _, result := range results {
		p := payloadFromQdrant(result.Payload)
		matches = append(matches, Match{
			ID:       result.Id.GetUuid(),
			Score:    float64(result.Score),
			Content:  p.Content,
			Metadata: p.metadata(),
		})
	}
	return topK(matches, len(matches)), nil
}

func payloadFromQdrant(v map[string]*qdrant.Value) payload {
	p := payload{
		Content:    v[fieldContent].GetStringValue(),
		Chapter:    v[fieldChapter].GetStringValue(),
		Topic:      v[fieldTopic].GetStringValue(),
		Difficulty: v[fieldDifficulty].GetStringValue(),
		Type:       v[fieldType].GetStringValue(),
		Generation: v[fieldGeneration].GetStringValue(),
	}
	if week, ok := v[fieldWeek]; ok && week != nil {
		w := int(week.GetIntegerValue())
		p.Week = &w
	}
	return p
}

// DeleteStale removes every point whose generation differs from keepGeneration.
func (s *QdrantStorage) DeleteStale(ctx context.Context, keepGeneration string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			MustNot: []*qdrant.Condition{
				qdrant.NewMatch(fieldGeneration, keepGeneration),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete stale points: %w", err)
	}
	return nil
}

// Clear deletes the collection and recreates it with the last known dimension.
func (s *QdrantStorage) Clear(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if s.dim == 0 {
		return nil
	}
	return s.EnsureCollection(ctx, s.dim)
}

// Count returns the exact number of points in the collection.
func (s *QdrantStorage) Count(ctx context.Context) (int, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	if !exists {
		return 0, nil
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

// Dimension returns the size of the "content" vector of the collection.
func (s *QdrantStorage) Dimension(ctx context.Context) (int, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	if !exists {
		return 0, nil
	}
	return s.collectionDim(ctx)
}

func (s *QdrantStorage) collectionDim(ctx context.Context) (int, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection info: %w", err)
	}
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if params, ok := vectors.GetParamsMap().GetMap()[vectorName]; ok {
		return int(params.GetSize()), nil
	}
	return int(vectors.GetParams().GetSize()), nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

var _ Index = (*QdrantStorage)(nil)
