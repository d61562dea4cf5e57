package clients

import (
	"context"
	"fmt"

	config "github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

type QdrantClient struct {
	Client *qdrant.Client
	cfg    *config.QdrantCfg
}

func NewQdrantClient(cfg *config.QdrantCfg) (*QdrantClient, error) {
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.ApiKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &QdrantClient{
		Client: qdrantClient,
		cfg:    cfg,
	}, nil
}

func (c *QdrantClient) Close() error {
	return c.Client.Close()
}

// EnsureCollection создаёт коллекцию с именованными векторами full/upper/lower
// и payload-индексами для фильтров.
func EnsureCollection(ctx context.Context, client *QdrantClient) error {
	name := client.cfg.QdrantCollectionName

	exists, err := client.Client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	params := make(map[string]*qdrant.VectorParams, 3)
	for _, r := range domain.Regions() {
		params[string(r)] = &qdrant.VectorParams{
			Size:     client.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}
	}

	if err := client.Client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig:  qdrant.NewVectorsConfigMap(params),
	}); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	indexes := []struct {
		field string
		typ   qdrant.FieldType
	}{
		{"gender", qdrant.FieldType_FieldTypeKeyword},
		{"category", qdrant.FieldType_FieldTypeKeyword},
		{"price", qdrant.FieldType_FieldTypeInteger},
	}
	for _, idx := range indexes {
		typ := idx.typ
		if _, err := client.Client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      idx.field,
			FieldType:      &typ,
		}); err != nil {
			return fmt.Errorf("failed to create %s index: %w", idx.field, err)
		}
	}

	return nil
}
