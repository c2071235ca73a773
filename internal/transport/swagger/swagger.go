// Package swagger serves the embedded OpenAPI document and the Swagger UI.
package swagger

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	httpSwagger "github.com/swaggo/http-swagger"
)

const SpecPath = "/openapi.yml"

//go:embed openapi.yml
var spec []byte

var (
	docOnce sync.Once
	doc     *openapi3.T
	docErr  error
)

// Document parses and validates the embedded OpenAPI document once.
func Document(ctx context.Context) (*openapi3.T, error) {
	docOnce.Do(func() {
		loader := openapi3.NewLoader()
		loader.Context = ctx
		d, err := loader.LoadFromData(spec)
		if err != nil {
			docErr = fmt.Errorf("load openapi document: %w", err)
			return
		}
		if err := d.Validate(ctx); err != nil {
			docErr = fmt.Errorf("validate openapi document: %w", err)
			return
		}
		doc = d
	})
	return doc, docErr
}

// SpecHandler serves the raw document.
func SpecHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(spec)
	})
}

func Handler() http.Handler {
	return httpSwagger.Handler(
		httpSwagger.URL(SpecPath),
	)
}
