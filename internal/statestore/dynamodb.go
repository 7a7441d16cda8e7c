package statestore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBBackend stores state blobs as items in a DynamoDB table keyed by
// a partition key named "key", with the blob in a binary attribute named
// "data". It suits deployments already standardized on DynamoDB for
// coordination state.
type DynamoDBBackend struct {
	client *dynamodb.Client
	table  string
}

// NewDynamoDBBackend returns a Backend backed by the given table.
func NewDynamoDBBackend(client *dynamodb.Client, table string) *DynamoDBBackend {
	return &DynamoDBBackend{client: client, table: table}
}

type item struct {
	Key  string `dynamodbav:"key"`
	Data []byte `dynamodbav:"data"`
}

func (d *DynamoDBBackend) Put(ctx context.Context, key string, data []byte) error {
	av, err := attributevalue.MarshalMap(item{Key: key, Data: data})
	if err != nil {
		return fmt.Errorf("statestore: marshaling DynamoDB item: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("statestore: DynamoDB PutItem on table %q: %w", d.table, err)
	}
	return nil
}

func (d *DynamoDBBackend) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			"key": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("statestore: DynamoDB GetItem on table %q: %w", d.table, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("statestore: unmarshaling DynamoDB item: %w", err)
	}
	return it.Data, nil
}
