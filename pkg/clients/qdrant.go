package clients

import (
	"context"
	"fmt"

	"github.com/jimlawless/whereami"
	config "github.com/modaics/fitsearch/internal/cfg"
	"github.com/modaics/fitsearch/pkg/e"
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

// EnsureCollection создаёт коллекцию каталога с косинусной метрикой и
// payload-индексами для фильтров, если она еще не существует.
func EnsureCollection(ctx context.Context, client *QdrantClient) error {
	exists, err := client.Client.CollectionExists(ctx, client.cfg.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		if err := client.Client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: client.cfg.CollectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     client.cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		// Индексы payload-полей, по которым режет pre-filter поиска.
		if _, err := client.Client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: client.cfg.CollectionName,
			FieldName:      "platform",
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		}); err != nil {
			return fmt.Errorf("failed to index platform field: %w", err)
		}

		if _, err := client.Client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: client.cfg.CollectionName,
			FieldName:      "price_cents",
			FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
		}); err != nil {
			return fmt.Errorf("failed to index price_cents field: %w", err)
		}
	}

	return nil
}
