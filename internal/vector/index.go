package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate/entities/models"
)

var ErrIndexNotFound = errors.New("vector index not found")

// SchemaClient defines the read-only Weaviate schema operations used before
// an upload starts.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	GetClass(ctx context.Context, className string) (*models.Class, error)
}

// VerifyIndex checks that the target class exists. Indexes are provisioned
// separately and are never created here.
func VerifyIndex(ctx context.Context, client SchemaClient, className string) error {
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, className)
	}

	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}
	// Vectors are supplied by the client; a server-side vectorizer would be ignored.
	if class != nil && class.Vectorizer != "" && class.Vectorizer != "none" {
		slog.WarnContext(ctx, "index has a vectorizer configured", "index", className, "vectorizer", class.Vectorizer)
	}
	return nil
}
