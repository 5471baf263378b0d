package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBClient is the interface for the DynamoDB operations used by
// DynamoDB. It is satisfied by *dynamodb.Client.
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDB implements Store on a DynamoDB table.
//
// Table schema:
//   - Partition key: pk (string) - the store key
//   - Attribute: val (string) - the stored value
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name docgo-index \
//	  --attribute-definitions AttributeName=pk,AttributeType=S \
//	  --key-schema AttributeName=pk,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type DynamoDB struct {
	client    DynamoDBClient
	tableName string
}

// NewDynamoDB creates a DynamoDB-backed key-value store.
func NewDynamoDB(client DynamoDBClient, tableName string) *DynamoDB {
	return &DynamoDB{client: client, tableName: tableName}
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (d *DynamoDB) Get(ctx context.Context, key string) (string, error) {
	resp, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get item from DynamoDB: %w", err)
	}
	if resp.Item == nil {
		return "", ErrKeyNotFound
	}

	valAttr, ok := resp.Item["val"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("invalid val attribute in DynamoDB item")
	}
	return valAttr.Value, nil
}

// Set stores value under key.
func (d *DynamoDB) Set(ctx context.Context, key, value string) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item: map[string]types.AttributeValue{
			"pk":  &types.AttributeValueMemberS{Value: key},
			"val": &types.AttributeValueMemberS{Value: value},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put item to DynamoDB: %w", err)
	}
	return nil
}

// Delete removes key.
func (d *DynamoDB) Delete(ctx context.Context, key string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete item from DynamoDB: %w", err)
	}
	return nil
}
