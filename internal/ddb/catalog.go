package ddb

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cockroachdb/errors"
)

// Record represents one catalog item as stored in DynamoDB
type Record struct {
	ID      string         `dynamodbav:"pk"`     // PK field
	Catalog string         `dynamodbav:"sk"`     // SK field
	Object  map[string]any `dynamodbav:"object"` // object field
}

// UnmarshalRecord converts a DynamoDB item into a Record struct
func UnmarshalRecord(item map[string]types.AttributeValue) (Record, error) {
	var record Record
	err := attributevalue.UnmarshalMap(item, &record)
	if err != nil {
		return Record{}, err
	}
	return record, nil
}

// MarshalRecord converts a Record into a DynamoDB item
func MarshalRecord(record Record) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(record)
}

// LoadCatalog scans tableName for the items of one catalog and passes each
// well-formed record to add. Malformed items are logged and skipped. It returns
// the number of records added.
func LoadCatalog(ctx context.Context, client dynamodb.ScanAPIClient, tableName, catalog string, add func(Record) error) (int, error) {
	paginator := dynamodb.NewScanPaginator(client, &dynamodb.ScanInput{
		TableName:        aws.String(tableName),
		FilterExpression: aws.String("sk = :catalog"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":catalog": &types.AttributeValueMemberS{Value: catalog},
		},
	})

	loaded := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return loaded, errors.Wrapf(err, "scan table %s", tableName)
		}

		for _, item := range page.Items {
			record, err := UnmarshalRecord(item)
			if err != nil {
				slog.WarnContext(ctx, "Failed to unmarshal record, skipping", "error", err)
				continue
			}
			if record.ID == "" {
				slog.WarnContext(ctx, "Missing ID (pk) in record, skipping record")
				continue
			}
			if record.Object == nil {
				slog.WarnContext(ctx, "Missing Object in record, skipping record", "id", record.ID, "catalog", record.Catalog)
				continue
			}
			if err := add(record); err != nil {
				return loaded, errors.Wrapf(err, "add record %s", record.ID)
			}
			loaded++
		}
	}

	return loaded, nil
}
