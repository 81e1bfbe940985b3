// Package site serves the embedded live match viewer.
package site

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches the viewer routes to r. The viewer lives at / and reads
// the match id from the "match" query parameter.
func Register(_ context.Context, r chi.Router) {
	if r == nil {
		panic("router is nil")
	}
	files := http.FileServer(FS())
	r.Handle("/", files)
	r.Handle("/assets/*", files)
}
