package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/letmevibethatforyou/facetx"
	"github.com/letmevibethatforyou/facetx/inmemory"
	"github.com/letmevibethatforyou/facetx/internal/ddb"
	"github.com/urfave/cli/v2"
)

const (
	defaultTop     = 10
	defaultTimeout = 5 * time.Second
)

func main() {
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("AWS_REGION") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	app := &cli.App{
		Name:  "query",
		Usage: "Run a faceted search over a catalog loaded from a JSON lines file or DynamoDB",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "JSON lines catalog file; each line is an object with an \"id\" field",
			},
			&cli.StringFlag{
				Name:    "table-name",
				Aliases: []string{"t"},
				Usage:   "DynamoDB table to load the catalog from when no file is given",
				EnvVars: []string{"TABLE_NAME"},
			},
			&cli.StringFlag{
				Name:    "catalog",
				Usage:   "Catalog (sort key) to load from the DynamoDB table",
				EnvVars: []string{"CATALOG"},
				Value:   "products",
			},
			&cli.StringSliceFlag{
				Name:  "analyzed",
				Usage: "Field tokenized for full-text matching; repeatable",
				Value: cli.NewStringSlice("keywords"),
			},
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Full-text query; positional arg is a fallback",
			},
			&cli.StringFlag{
				Name:  "query-field",
				Usage: "Analyzed field the full-text query is matched against",
				Value: "keywords",
			},
			&cli.StringSliceFlag{
				Name:  "facet",
				Usage: "Term facet field; repeatable",
			},
			&cli.StringSliceFlag{
				Name:  "range-facet",
				Usage: "Range facet in field=id:from:to;id:from:to format; repeatable",
			},
			&cli.StringSliceFlag{
				Name:  "select",
				Usage: "Selected facet value in field=value format; repeatable",
			},
			&cli.StringSliceFlag{
				Name:  "filter",
				Usage: "Filter in field=value format; repeatable",
			},
			&cli.IntFlag{
				Name:  "max",
				Usage: "Maximum number of non-selected values per facet",
				Value: facetx.DefaultMaxToFetchExcludingSelections,
			},
			&cli.IntFlag{
				Name:  "min-count",
				Usage: "Hide facet values matching fewer documents in the whole catalog",
			},
			&cli.BoolFlag{
				Name:  "include-empty",
				Usage: "Include facet values with a zero count",
			},
			&cli.StringFlag{
				Name:  "rollup-field",
				Usage: "Field holding a variant's parent id; counts are rolled up to parents",
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "Number of top hits to return",
				Value: defaultTop,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Timeout for the search request",
				Value: defaultTimeout,
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

	query := strings.TrimSpace(c.String("query"))
	if query == "" && c.NArg() > 0 {
		query = strings.TrimSpace(c.Args().First())
	}

	top := c.Int("top")
	if top < 0 {
		slog.WarnContext(ctx, "top cannot be negative; falling back to default", "top", top, "default", defaultTop)
		top = defaultTop
	}

	timeout := c.Duration("timeout")
	if timeout <= 0 {
		slog.WarnContext(ctx, "timeout must be positive; using default", "timeout", timeout, "default", defaultTimeout)
		timeout = defaultTimeout
	}

	fields, err := buildFacetFields(c.StringSlice("facet"), c.StringSlice("range-facet"), c.StringSlice("select"), c.Int("max"))
	if err != nil {
		return fmt.Errorf("invalid facet: %w", err)
	}

	filterOptions, err := buildFilterOptions(c.StringSlice("filter"))
	if err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}

	ix := inmemory.New(inmemory.WithAnalyzedFields(c.StringSlice("analyzed")...))
	if err := loadCatalog(c, ix); err != nil {
		return err
	}

	opts := append([]facetx.SearchOption{facetx.WithIncludeEmptyFacets(c.Bool("include-empty"))}, filterOptions...)
	if field := strings.TrimSpace(c.String("rollup-field")); field != "" {
		opts = append(opts, facetx.WithDocIDMapping(ix.ParentMapping(field)))
	}

	var searcherOpts []facetx.Option
	if n := c.Int("min-count"); n > 0 {
		searcherOpts = append(searcherOpts, facetx.WithMinimumCount(uint64(n)))
	}
	searcher := facetx.NewFacetSearcher(ix, searcherOpts...)

	base := facetx.MatchAll()
	if query != "" {
		base = facetx.Match(c.String("query-field"), query)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog.InfoContext(ctx, "executing faceted query",
		"documents", ix.Size(),
		"query", query,
		"facets", len(fields),
		"filter_count", len(filterOptions),
		"top", top,
		"timeout", timeout,
	)

	results, err := searcher.SearchWithFacets(ctx, base, top, fields, opts...)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if err := printResults(os.Stdout, results); err != nil {
		return fmt.Errorf("failed to serialize results: %w", err)
	}

	return nil
}

func loadCatalog(c *cli.Context, ix *inmemory.Index) error {
	ctx := c.Context

	if path := strings.TrimSpace(c.String("file")); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open catalog file: %w", err)
		}
		defer f.Close()

		n, err := loadJSONLines(f, ix)
		if err != nil {
			return fmt.Errorf("failed to load catalog file %s: %w", path, err)
		}
		slog.InfoContext(ctx, "loaded catalog file", "path", path, "documents", n)
		return nil
	}

	tableName := strings.TrimSpace(c.String("table-name"))
	if tableName == "" {
		return fmt.Errorf("either --file or --table-name is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	catalog := c.String("catalog")
	n, err := ddb.LoadCatalog(ctx, dynamodb.NewFromConfig(cfg), tableName, catalog, func(r ddb.Record) error {
		ix.AddDocument(inmemory.Document{ID: r.ID, Fields: r.Object})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load catalog from DynamoDB: %w", err)
	}
	slog.InfoContext(ctx, "loaded catalog table", "table", tableName, "catalog", catalog, "documents", n)
	return nil
}

// loadJSONLines adds one document per non-blank line of r.
func loadJSONLines(r io.Reader, ix *inmemory.Index) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	n := 0
	for line := 1; scanner.Scan(); line++ {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		id, ok := fields["id"].(string)
		if !ok || id == "" {
			return n, fmt.Errorf("line %d: missing string id", line)
		}
		ix.AddDocument(inmemory.Document{ID: id, Fields: fields})
		n++
	}
	return n, scanner.Err()
}

func buildFacetFields(termFacets, rangeFacets, selections []string, maxToFetch int) ([]facetx.FacetFieldInfo, error) {
	selected := make(map[string][]string)
	for _, item := range selections {
		field, value, err := splitPair(item)
		if err != nil {
			return nil, err
		}
		selected[field] = append(selected[field], value)
	}

	var fields []facetx.FacetFieldInfo
	seen := make(map[string]bool)
	for _, name := range termFacets {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("facet field cannot be empty")
		}
		fields = append(fields, facetx.TermField(name, selected[name]...).WithMaxToFetch(maxToFetch))
		seen[name] = true
	}

	for _, item := range rangeFacets {
		field, spec, err := splitPair(item)
		if err != nil {
			return nil, err
		}
		ranges, err := parseRanges(spec)
		if err != nil {
			return nil, fmt.Errorf("range facet %s: %w", field, err)
		}
		fields = append(fields, facetx.RangeField(field, ranges, selected[field]...).WithMaxToFetch(maxToFetch))
		seen[field] = true
	}

	for field := range selected {
		if !seen[field] {
			return nil, fmt.Errorf("selection for %q has no matching --facet or --range-facet", field)
		}
	}

	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

// parseRanges parses id:from:to entries separated by semicolons. Either bound
// may be empty.
func parseRanges(spec string) ([]facetx.Range, error) {
	var ranges []facetx.Range
	for _, entry := range strings.Split(spec, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("range must be in id:from:to format: %q", entry)
		}
		ranges = append(ranges, facetx.Range{
			ID:   strings.TrimSpace(parts[0]),
			From: strings.TrimSpace(parts[1]),
			To:   strings.TrimSpace(parts[2]),
		})
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no ranges in %q", spec)
	}
	return ranges, nil
}

func splitPair(item string) (string, string, error) {
	item = strings.TrimSpace(item)
	parts := strings.SplitN(item, "=", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("value must be in field=value format: %q", item)
	}

	field := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if field == "" || value == "" {
		return "", "", fmt.Errorf("field and value must be non-empty: %q", item)
	}
	return field, value, nil
}

func buildFilterOptions(raw []string) ([]facetx.SearchOption, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	options := make([]facetx.SearchOption, 0, len(raw))
	for _, item := range raw {
		field, value, err := splitPair(item)
		if err != nil {
			return nil, err
		}
		options = append(options, facetx.Eq(field, value))
	}

	return options, nil
}

func printResults(w io.Writer, res *facetx.FacetSearchResult) error {
	if res == nil {
		_, err := fmt.Fprintln(w, "{}")
		return err
	}

	type facet struct {
		Field string `json:"field"`
		Value string `json:"value"`
		Count int64  `json:"count"`
	}

	payload := struct {
		Total    int64        `json:"total"`
		Took     int64        `json:"took_ms"`
		MaxScore float64      `json:"max_score"`
		Items    []facetx.Hit `json:"items"`
		Facets   []facet      `json:"facets"`
	}{
		Items:  []facetx.Hit{},
		Facets: make([]facet, 0, len(res.Facets)),
	}
	if res.Hits != nil {
		payload.Total = res.Hits.Total
		payload.Took = res.Hits.Took
		payload.MaxScore = res.Hits.MaxScore
		payload.Items = res.Hits.Items
	}
	for _, m := range res.Facets {
		payload.Facets = append(payload.Facets, facet{Field: m.FacetFieldName, Value: m.Value, Count: m.Count})
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))
	return err
}
