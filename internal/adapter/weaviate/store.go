package weaviate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"docindex/internal/upload"
)

var ErrObjectsRejected = errors.New("objects rejected by weaviate")

// idNamespace seeds ids that are not already 128-bit hex digests.
var idNamespace = uuid.MustParse("8f2c3a6e-5b41-4d7a-9c0e-2f6b1d4e7a93")

type Store struct {
	client    *weaviate.Client
	className string
}

func NewStore(client *weaviate.Client, className string) *Store {
	return &Store{client: client, className: className}
}

// ObjectID maps a record id onto a Weaviate UUID. Hex MD5 identities map
// byte for byte, so writing the same record twice replaces the object.
func ObjectID(id string) strfmt.UUID {
	if len(id) == 32 {
		if u, err := uuid.Parse(id); err == nil {
			return strfmt.UUID(u.String())
		}
	}
	return strfmt.UUID(uuid.NewMD5(idNamespace, []byte(id)).String())
}

// Upsert writes the batch in a single batch-objects request. Any object
// level error fails the whole batch.
func (s *Store) Upsert(ctx context.Context, batch []upload.Record) error {
	objects := make([]*models.Object, len(batch))
	for i, r := range batch {
		objects[i] = &models.Object{
			Class:      s.className,
			ID:         ObjectID(r.ID),
			Properties: r.Metadata.Properties(),
			Vector:     r.Values,
		}
	}

	res, err := s.client.Batch().ObjectsBatcher().
		WithObjects(objects...).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("batch objects: %w", err)
	}

	var messages []string
	for _, obj := range res {
		if obj.Result == nil || obj.Result.Errors == nil {
			continue
		}
		for _, e := range obj.Result.Errors.Error {
			if e != nil {
				messages = append(messages, fmt.Sprintf("%s: %s", obj.ID, e.Message))
			}
		}
	}
	if len(messages) > 0 {
		return fmt.Errorf("%w: %s", ErrObjectsRejected, strings.Join(messages, "; "))
	}
	return nil
}

// Count returns the number of objects currently stored in the class.
func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(s.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	if data, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if groups, ok := data[s.className].([]interface{}); ok && len(groups) > 0 {
			if group, ok := groups[0].(map[string]interface{}); ok {
				if meta, ok := group["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}
