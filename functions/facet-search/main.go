package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/facetx"
	"github.com/letmevibethatforyou/facetx/inmemory"
	"github.com/letmevibethatforyou/facetx/internal/ddb"
	"github.com/urfave/cli/v2"
)

const defaultTop = 10

// FacetRequest describes one requested facet dimension. Facet values are
// cached per field for the life of the function instance, so a field's kind
// and range bounds must stay the same across requests; changes are rejected
// with facetx.ErrInvalidFacetField.
type FacetRequest struct {
	Field      string         `json:"field"`
	Ranges     []facetx.Range `json:"ranges,omitempty"`
	Selections []string       `json:"selections,omitempty"`
	Max        *int           `json:"max,omitempty"`
}

// Request is the faceted search event payload.
type Request struct {
	Query        string            `json:"query"`
	Top          *int              `json:"top,omitempty"`
	Facets       []FacetRequest    `json:"facets"`
	Filters      map[string]string `json:"filters,omitempty"`
	IncludeEmpty bool              `json:"include_empty"`
	Rollup       bool              `json:"rollup"`
}

// Hit is one returned document.
type Hit struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields"`
}

// Facet is one facet value count.
type Facet struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Response is the faceted search result payload.
type Response struct {
	Total  int64   `json:"total"`
	TookMs int64   `json:"took_ms"`
	Hits   []Hit   `json:"hits"`
	Facets []Facet `json:"facets"`
}

type Handler struct {
	searcher   facetx.Searcher
	queryField string
	mapping    map[uint32]uint32
}

func NewHandler(searcher facetx.Searcher, queryField string, mapping map[uint32]uint32) *Handler {
	return &Handler{
		searcher:   searcher,
		queryField: queryField,
		mapping:    mapping,
	}
}

func (h *Handler) HandleRequest(ctx context.Context, req Request) (Response, error) {
	fields, err := facetFields(req.Facets)
	if err != nil {
		slog.WarnContext(ctx, "Rejecting faceted search request", "error", err)
		return Response{}, err
	}

	top := defaultTop
	if req.Top != nil {
		top = *req.Top
	}

	query := facetx.MatchAll()
	if q := strings.TrimSpace(req.Query); q != "" {
		query = facetx.Match(h.queryField, q)
	}

	opts := []facetx.SearchOption{facetx.WithIncludeEmptyFacets(req.IncludeEmpty)}
	for field, value := range req.Filters {
		opts = append(opts, facetx.Eq(field, value))
	}
	if req.Rollup {
		opts = append(opts, facetx.WithDocIDMapping(h.mapping))
	}

	slog.InfoContext(ctx, "Processing faceted search request",
		"query", req.Query,
		"facets", len(fields),
		"filters", len(req.Filters),
		"top", top,
	)

	res, err := h.searcher.SearchWithFacets(ctx, query, top, fields, opts...)
	if err != nil {
		slog.ErrorContext(ctx, "Faceted search failed", "error", err)
		return Response{}, err
	}

	resp := Response{
		Total:  res.Hits.Total,
		TookMs: res.Hits.Took,
		Hits:   make([]Hit, 0, len(res.Hits.Items)),
		Facets: make([]Facet, 0, len(res.Facets)),
	}
	for _, item := range res.Hits.Items {
		resp.Hits = append(resp.Hits, Hit{ID: item.ID, Score: item.Score, Fields: item.Fields})
	}
	for _, m := range res.Facets {
		resp.Facets = append(resp.Facets, Facet{Field: m.FacetFieldName, Value: m.Value, Count: m.Count})
	}
	return resp, nil
}

func facetFields(reqs []FacetRequest) ([]facetx.FacetFieldInfo, error) {
	fields := make([]facetx.FacetFieldInfo, 0, len(reqs))
	for _, r := range reqs {
		var f facetx.FacetFieldInfo
		if len(r.Ranges) > 0 {
			f = facetx.RangeField(r.Field, r.Ranges, r.Selections...)
		} else {
			f = facetx.TermField(r.Field, r.Selections...)
		}
		if r.Max != nil {
			f = f.WithMaxToFetch(*r.Max)
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func main() {
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("AWS_REGION") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	app := &cli.App{
		Name:  "facet-search",
		Usage: "Answer faceted search requests over a catalog loaded from DynamoDB",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "table-name",
				Usage:    "DynamoDB table holding the catalog",
				EnvVars:  []string{"TABLE_NAME"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "catalog",
				Usage:   "Catalog (sort key) to serve",
				EnvVars: []string{"CATALOG"},
				Value:   "products",
			},
			&cli.StringSliceFlag{
				Name:    "analyzed",
				Usage:   "Fields tokenized for full-text matching",
				EnvVars: []string{"ANALYZED_FIELDS"},
				Value:   cli.NewStringSlice("keywords"),
			},
			&cli.StringFlag{
				Name:    "query-field",
				Usage:   "Analyzed field the full-text query is matched against",
				EnvVars: []string{"QUERY_FIELD"},
				Value:   "keywords",
			},
			&cli.StringFlag{
				Name:    "rollup-field",
				Usage:   "Field holding a variant's parent id",
				EnvVars: []string{"ROLLUP_FIELD"},
				Value:   "parent",
			},
			&cli.StringSliceFlag{
				Name:    "prime",
				Usage:   "Term facet fields cached at cold start",
				EnvVars: []string{"PRIME_FIELDS"},
			},
			&cli.IntFlag{
				Name:    "min-count",
				Usage:   "Hide facet values matching fewer documents in the whole catalog",
				EnvVars: []string{"MIN_COUNT"},
			},
			&cli.IntFlag{
				Name:    "keep-bitsets",
				Usage:   "Cached bitsets kept per field; the rest are recomputed on demand (0 keeps all)",
				EnvVars: []string{"KEEP_BITSETS"},
			},
		},
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func runAction(c *cli.Context) error {
	ctx := c.Context
	tableName := c.String("table-name")
	catalog := c.String("catalog")

	slog.InfoContext(ctx, "Starting faceted search function", "table", tableName, "catalog", catalog)

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") == "" {
		slog.InfoContext(ctx, "Function cannot run outside of AWS Lambda environment")
		return nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load AWS config", "error", err)
		return err
	}

	ix := inmemory.New(inmemory.WithAnalyzedFields(c.StringSlice("analyzed")...))
	n, err := ddb.LoadCatalog(ctx, dynamodb.NewFromConfig(cfg), tableName, catalog, func(r ddb.Record) error {
		ix.AddDocument(inmemory.Document{ID: r.ID, Fields: r.Object})
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}
	slog.InfoContext(ctx, "Loaded catalog", "documents", n)

	var opts []facetx.Option
	if minCount := c.Int("min-count"); minCount > 0 {
		opts = append(opts, facetx.WithMinimumCount(uint64(minCount)))
	}
	if keep := c.Int("keep-bitsets"); keep > 0 {
		opts = append(opts, facetx.WithMemoryOptimizer(facetx.TailEvictionOptimizer{KeepPerField: keep}))
	}
	searcher := facetx.NewFacetSearcher(ix, opts...)

	var prime []facetx.FacetFieldInfo
	for _, field := range c.StringSlice("prime") {
		prime = append(prime, facetx.TermField(field))
	}
	if err := searcher.Prime(ctx, prime...); err != nil {
		return errors.Wrap(err, "prime facet cache")
	}

	handler := NewHandler(searcher, c.String("query-field"), ix.ParentMapping(c.String("rollup-field")))

	slog.InfoContext(ctx, "Running in Lambda environment")
	lambda.Start(handler.HandleRequest)
	return nil
}
