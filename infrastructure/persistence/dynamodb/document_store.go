package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"knowde-backend/application/ports"
	pkgerrors "knowde-backend/pkg/errors"
	"knowde-backend/pkg/utils"
)

// DocumentStore implements ports.DocumentStore on a single DynamoDB table.
// A tree path maps onto the composite key: the first two segments
// (users/{userId}) become the partition key, the rest the sort key. All
// reads use strongly consistent mode so a Set is observable by the very
// next Get, which the verify-read step requires.
type DocumentStore struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// documentItem is the stored shape of one document
type documentItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Path      string `dynamodbav:"Path"`
	Data      string `dynamodbav:"Data"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

// rootSortKey is the sort key for a document addressed by a two-segment path
const rootSortKey = "ROOT"

// NewDocumentStore creates a DynamoDB-backed document store
func NewDocumentStore(client *dynamodb.Client, tableName string, logger *zap.Logger) *DocumentStore {
	return &DocumentStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// splitPath maps a tree path onto the table's composite key
func splitPath(path string) (pk, sk string, err error) {
	parts := strings.SplitN(strings.Trim(path, "/"), "/", 3)
	if len(parts) < 2 {
		return "", "", pkgerrors.NewInvalidRequestError("document path must have at least two segments: " + path)
	}
	pk = parts[0] + "/" + parts[1]
	sk = rootSortKey
	if len(parts) == 3 {
		sk = parts[2]
	}
	return pk, sk, nil
}

// Get implements ports.DocumentStore
func (s *DocumentStore) Get(ctx context.Context, path string, out interface{}) error {
	pk, sk, err := splitPath(path)
	if err != nil {
		return err
	}

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return pkgerrors.NewCapabilityUnavailableError("dynamodb", err)
	}
	if result.Item == nil {
		return pkgerrors.NewNotFoundError("document " + path)
	}

	var item documentItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return pkgerrors.Wrap(err, "unmarshaling document "+path)
	}
	if err := json.Unmarshal([]byte(item.Data), out); err != nil {
		return pkgerrors.Wrap(err, "decoding document "+path)
	}
	return nil
}

// Set implements ports.DocumentStore
func (s *DocumentStore) Set(ctx context.Context, path string, doc interface{}) error {
	pk, sk, err := splitPath(path)
	if err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return pkgerrors.Wrap(err, "encoding document "+path)
	}

	item, err := attributevalue.MarshalMap(documentItem{
		PK:        pk,
		SK:        sk,
		Path:      path,
		Data:      string(data),
		UpdatedAt: utils.NowRFC3339(),
	})
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling document "+path)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return pkgerrors.NewCapabilityUnavailableError("dynamodb", err)
	}

	s.logger.Debug("document written", zap.String("path", path))
	return nil
}

// Stream implements ports.DocumentStore. The prefix names a collection; only
// direct children are returned, nested collections under a child are not.
func (s *DocumentStore) Stream(ctx context.Context, prefix string) ([]ports.Document, error) {
	pk, skPrefix, err := splitPath(prefix)
	if err != nil {
		return nil, err
	}
	if skPrefix == rootSortKey {
		return nil, pkgerrors.NewInvalidRequestError("stream prefix must name a collection: " + prefix)
	}

	keyCond := expression.Key("PK").Equal(expression.Value(pk)).
		And(expression.Key("SK").BeginsWith(skPrefix + "/"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "building stream query")
	}

	docs := []ports.Document{}
	var lastKey map[string]types.AttributeValue
	for {
		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ConsistentRead:            aws.Bool(true),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, pkgerrors.NewCapabilityUnavailableError("dynamodb", err)
		}

		for _, raw := range result.Items {
			var item documentItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, pkgerrors.Wrap(err, "unmarshaling document under "+prefix)
			}
			// Skip documents in nested collections
			rest := strings.TrimPrefix(item.SK, skPrefix+"/")
			if strings.Contains(rest, "/") {
				continue
			}
			docs = append(docs, ports.Document{Path: item.Path, Data: json.RawMessage(item.Data)})
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		lastKey = result.LastEvaluatedKey
	}

	return docs, nil
}

// Delete removes a document; a missing path is not an error
func (s *DocumentStore) Delete(ctx context.Context, path string) error {
	pk, sk, err := splitPath(path)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return pkgerrors.NewCapabilityUnavailableError("dynamodb", fmt.Errorf("deleting %s: %w", path, err))
	}
	return nil
}
