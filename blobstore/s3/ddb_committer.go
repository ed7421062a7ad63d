package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/searchcache/blobstore"
)

// ErrConcurrentModification is returned when another writer committed the
// same snapshot version first.
var ErrConcurrentModification = blobstore.ErrConcurrentModification

// DDBClient is the interface for DynamoDB operations.
// *dynamodb.Client satisfies it.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBCommitter records committed snapshot versions in DynamoDB.
//
// S3 has no compare-and-swap, so a CURRENT blob cannot arbitrate between
// concurrent writers. The committer uses a conditional write per version
// instead: two writers committing the same version cannot both succeed.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 prefix/path
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name searchcache-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitter struct {
	client    DDBClient
	tableName string
	baseURI   string
}

// NewDDBCommitter creates a committer for the snapshots stored under baseURI,
// e.g. "s3://bucket/prefix".
func NewDDBCommitter(client DDBClient, tableName, baseURI string) *DDBCommitter {
	return &DDBCommitter{
		client:    client,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Commit atomically records name as snapshot version.
// It returns ErrConcurrentModification if the version was already committed.
func (c *DDBCommitter) Commit(ctx context.Context, version uint64, name string) error {
	_, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri": &types.AttributeValueMemberS{Value: c.baseURI},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
			"snapshot": &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("commit version %d: %w", version, ErrConcurrentModification)
		}
		return fmt.Errorf("failed to commit version to DynamoDB: %w", err)
	}
	return nil
}

// Latest returns the highest committed version and its snapshot name.
// It returns blobstore.ErrNotFound if nothing was committed yet.
func (c *DDBCommitter) Latest(ctx context.Context) (uint64, string, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: c.baseURI},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("failed to query DynamoDB: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", blobstore.ErrNotFound
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in DynamoDB")
	}
	nameAttr, ok := item["snapshot"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid snapshot attribute in DynamoDB")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse version: %w", err)
	}
	return version, nameAttr.Value, nil
}
