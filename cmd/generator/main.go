package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/letmevibethatforyou/facetx/internal/ddb"
	"github.com/segmentio/ksuid"
	"github.com/urfave/cli/v2"
)

// maxBatchWrite is the DynamoDB BatchWriteItem limit.
const maxBatchWrite = 25

var (
	categories = map[string][]string{
		"shoes":    {"Runner", "Trail", "Court", "Loafer", "Boot"},
		"shirts":   {"Oxford", "Polo", "Henley", "Tee", "Flannel"},
		"jackets":  {"Parka", "Bomber", "Windbreaker", "Fleece", "Blazer"},
		"trousers": {"Chino", "Jeans", "Cargo", "Jogger", "Slacks"},
	}

	brands = []string{"Acme", "Northwind", "Globex", "Initech", "Umbrella", "Hooli"}

	colors = []string{
		"Red", "Blue", "Black", "White", "Silver", "Gray", "Green", "Yellow", "Orange", "Purple",
	}

	sizes = []string{"XS", "S", "M", "L", "XL"}

	adjectives = []string{"classic", "lightweight", "waterproof", "organic", "slim", "relaxed", "vintage"}
)

// generateProduct returns a parent product record and its variants. Prices are
// zero padded so that range facets compare them correctly as strings.
func generateProduct(catalog string) []ddb.Record {
	categoryKeys := make([]string, 0, len(categories))
	for c := range categories {
		categoryKeys = append(categoryKeys, c)
	}

	category := categoryKeys[rand.IntN(len(categoryKeys))]
	models := categories[category]
	model := models[rand.IntN(len(models))]
	brand := brands[rand.IntN(len(brands))]
	adjective := adjectives[rand.IntN(len(adjectives))]
	price := fmt.Sprintf("%05d", rand.IntN(300)+10)

	parentID := ksuid.New().String()
	records := []ddb.Record{{
		ID:      parentID,
		Catalog: catalog,
		Object: map[string]any{
			"kind":     "product",
			"name":     fmt.Sprintf("%s %s %s", brand, adjective, model),
			"brand":    brand,
			"category": category,
			"price":    price,
			"keywords": strings.Join([]string{brand, adjective, model, category}, " "),
		},
	}}

	for _, color := range pick(colors, rand.IntN(3)+1) {
		for _, size := range pick(sizes, rand.IntN(3)+1) {
			records = append(records, ddb.Record{
				ID:      ksuid.New().String(),
				Catalog: catalog,
				Object: map[string]any{
					"kind":     "variant",
					"parent":   parentID,
					"brand":    brand,
					"category": category,
					"color":    color,
					"size":     size,
					"price":    price,
				},
			})
		}
	}
	return records
}

// pick returns n distinct random elements of values.
func pick(values []string, n int) []string {
	perm := rand.Perm(len(values))
	out := make([]string, 0, n)
	for _, i := range perm[:min(n, len(values))] {
		out = append(out, values[i])
	}
	return out
}

func insertRecords(ctx context.Context, client *dynamodb.Client, tableName string, records []ddb.Record) error {
	for start := 0; start < len(records); start += maxBatchWrite {
		batch := records[start:min(start+maxBatchWrite, len(records))]

		requests := make([]types.WriteRequest, 0, len(batch))
		for _, record := range batch {
			item, err := ddb.MarshalRecord(record)
			if err != nil {
				return fmt.Errorf("failed to marshal product record: %w", err)
			}
			requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}

		pending := map[string][]types.WriteRequest{tableName: requests}
		for len(pending) > 0 {
			out, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("failed to batch write items to DynamoDB: %w", err)
			}
			pending = out.UnprocessedItems
		}
	}

	slog.InfoContext(ctx, "Successfully inserted product",
		"id", records[0].ID,
		"name", records[0].Object["name"],
		"variants", len(records)-1,
	)
	return nil
}

func writeRecords(w io.Writer, records []ddb.Record) error {
	enc := json.NewEncoder(w)
	for _, record := range records {
		line := make(map[string]any, len(record.Object)+1)
		for k, v := range record.Object {
			line[k] = v
		}
		line["id"] = record.ID
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode product record: %w", err)
		}
	}
	return nil
}

func runAction(c *cli.Context) error {
	ctx := c.Context
	env := c.String("env")
	tableName := c.String("table-name")
	catalog := c.String("catalog")
	count := c.Int("count")

	slog.InfoContext(ctx, "Starting product generator",
		"environment", env,
		"table", tableName,
		"catalog", catalog,
		"count", count,
	)

	if tableName == "" {
		for i := 0; i < count; i++ {
			if err := writeRecords(os.Stdout, generateProduct(catalog)); err != nil {
				return fmt.Errorf("failed to write product %d: %w", i+1, err)
			}
		}
		return nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg)

	for i := 0; i < count; i++ {
		if err := insertRecords(ctx, client, tableName, generateProduct(catalog)); err != nil {
			return fmt.Errorf("failed to insert product %d: %w", i+1, err)
		}
	}

	slog.InfoContext(ctx, "Successfully generated and inserted all products", "count", count)
	return nil
}

func main() {
	// Configure JSON logging for AWS environments
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("AWS_REGION") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	} else {
		// Keep stdout clean for JSON lines output
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}

	app := &cli.App{
		Name:  "generator",
		Usage: "Generate random catalog products with variants into DynamoDB or as JSON lines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Environment name",
				EnvVars: []string{"ENVIRONMENT"},
			},
			&cli.StringFlag{
				Name:    "table-name",
				Aliases: []string{"t"},
				Usage:   "DynamoDB table name; JSON lines are written to stdout when empty",
				EnvVars: []string{"TABLE_NAME"},
			},
			&cli.StringFlag{
				Name:    "catalog",
				Usage:   "Catalog (sort key) the products belong to",
				EnvVars: []string{"CATALOG"},
				Value:   "products",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"c"},
				Usage:   "Number of products to generate",
				Value:   1,
			},
		},
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}
