package loaders

import (
	"context"
	"net/http"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/medcoding/backend/pkg/errors"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders contains the per-request dataloaders
type Loaders struct {
	CodeLoader *dataloader.Loader[string, *entities.MedicalCode]
}

// NewLoaders creates a new instance of Loaders. Loaders cache for their whole
// lifetime, so a fresh set is built for every request.
func NewLoaders(codes repositories.MedicalCodeRepository) *Loaders {
	return &Loaders{
		CodeLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.MedicalCode] {
			results := make([]*dataloader.Result[*entities.MedicalCode], len(keys))
			found, err := codes.GetByIDs(ctx, keys)

			byID := make(map[string]*entities.MedicalCode, len(found))
			if err == nil {
				for _, c := range found {
					byID[c.ID] = c
				}
			}

			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[*entities.MedicalCode]{Error: err}
				} else if c, ok := byID[key]; ok {
					results[i] = &dataloader.Result[*entities.MedicalCode]{Data: c}
				} else {
					results[i] = &dataloader.Result[*entities.MedicalCode]{Error: apperrors.NewNotFoundError("medical code " + key + " not found")}
				}
			}
			return results
		}),
	}
}

// For returns the loaders for a given context, or nil outside a request
// served through Middleware
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Middleware attaches a fresh set of loaders to every request
func Middleware(codes repositories.MedicalCodeRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(codes))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
