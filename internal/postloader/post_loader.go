package postloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// PostLoader batches blog post lookups made while serving one request.
type PostLoader struct {
	Loader *dataloader.Loader
}

func NewPostLoader(repo repository.BlogPostRepository) *PostLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				return failAll(len(keys), fmt.Errorf("invalid post id %q: %w", k.String(), err))
			}
			ids[i] = id
		}

		posts, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			return failAll(len(keys), err)
		}

		byID := make(map[uuid.UUID]domain.BlogPost, len(posts))
		for _, p := range posts {
			byID[p.ID] = p
		}

		// results follow key order
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if p, ok := byID[id]; ok {
				results[i] = &dataloader.Result{Data: p}
			} else {
				results[i] = &dataloader.Result{Error: fmt.Errorf("post %s: %w", id, repository.ErrNotFound)}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))
	return &PostLoader{Loader: loader}
}

// Load returns one post, joining concurrent calls into a single batch.
func (l *PostLoader) Load(ctx context.Context, id uuid.UUID) (domain.BlogPost, error) {
	data, err := l.Loader.Load(ctx, dataloader.StringKey(id.String()))()
	if err != nil {
		return domain.BlogPost{}, err
	}
	post, ok := data.(domain.BlogPost)
	if !ok {
		return domain.BlogPost{}, fmt.Errorf("post %s: unexpected loader value %T", id, data)
	}
	return post, nil
}

// LoadMany returns posts in id order. errs is nil when every load succeeded.
func (l *PostLoader) LoadMany(ctx context.Context, ids []uuid.UUID) ([]domain.BlogPost, []error) {
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = dataloader.StringKey(id.String())
	}
	data, errs := l.Loader.LoadMany(ctx, keys)()

	posts := make([]domain.BlogPost, len(ids))
	for i := range ids {
		if i < len(data) {
			if post, ok := data[i].(domain.BlogPost); ok {
				posts[i] = post
			}
		}
	}
	return posts, errs
}

func failAll(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}

type ctxKey struct{}

// WithPostLoader stores l in ctx.
func WithPostLoader(ctx context.Context, l *PostLoader) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request's loader, or nil.
func FromContext(ctx context.Context) *PostLoader {
	if l, ok := ctx.Value(ctxKey{}).(*PostLoader); ok {
		return l
	}
	return nil
}
