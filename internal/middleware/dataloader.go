package middleware

import (
	"net/http"

	"github.com/rpattn/travelcms/internal/postloader"
	"github.com/rpattn/travelcms/internal/repository"
)

// PostLoaderMiddleware attaches a fresh post loader to every request context.
func PostLoaderMiddleware(repo repository.BlogPostRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := postloader.NewPostLoader(repo)
			ctx := postloader.WithPostLoader(r.Context(), loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
