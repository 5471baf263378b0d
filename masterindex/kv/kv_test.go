package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	t.Run("get missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k", "v1"))

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v1", got)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k", "v2"))

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v2", got)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "k"))

		_, err := store.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("delete absent key", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "never-set"))
	})
}

// fakeDynamoDB implements DynamoDBClient on a map.
type fakeDynamoDB struct {
	items map[string]string
	err   error
}

func newFakeDynamoDB() *fakeDynamoDB {
	return &fakeDynamoDB{items: make(map[string]string)}
}

func (f *fakeDynamoDB) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := params.Key["pk"].(*types.AttributeValueMemberS).Value
	val, ok := f.items[key]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{
			"pk":  &types.AttributeValueMemberS{Value: key},
			"val": &types.AttributeValueMemberS{Value: val},
		},
	}, nil
}

func (f *fakeDynamoDB) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := params.Item["pk"].(*types.AttributeValueMemberS).Value
	f.items[key] = params.Item["val"].(*types.AttributeValueMemberS).Value
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamoDB) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, params.Key["pk"].(*types.AttributeValueMemberS).Value)
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoDB(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		client := newFakeDynamoDB()
		store := NewDynamoDB(client, "docgo-index")

		require.NoError(t, store.Set(ctx, "k", "v"))

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)

		require.NoError(t, store.Delete(ctx, "k"))

		_, err = store.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("client errors are wrapped", func(t *testing.T) {
		client := newFakeDynamoDB()
		client.err = errors.New("throttled")
		store := NewDynamoDB(client, "docgo-index")

		_, err := store.Get(ctx, "k")
		assert.ErrorContains(t, err, "throttled")

		assert.Error(t, store.Set(ctx, "k", "v"))
		assert.Error(t, store.Delete(ctx, "k"))
	})

	t.Run("malformed item", func(t *testing.T) {
		store := NewDynamoDB(malformedDynamoDB{}, "docgo-index")

		_, err := store.Get(ctx, "k")
		assert.ErrorContains(t, err, "invalid val attribute")
	})
}

// malformedDynamoDB returns an item whose val attribute has the wrong type.
type malformedDynamoDB struct{}

func (malformedDynamoDB) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{
			"pk":  params.Key["pk"],
			"val": &types.AttributeValueMemberN{Value: "42"},
		},
	}, nil
}

func (malformedDynamoDB) PutItem(_ context.Context, _ *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return &dynamodb.PutItemOutput{}, nil
}

func (malformedDynamoDB) DeleteItem(_ context.Context, _ *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return &dynamodb.DeleteItemOutput{}, nil
}
