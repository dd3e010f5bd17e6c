package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"knowde-backend/application/ports"
)

// LockTableAPI is the slice of the DynamoDB API the locker needs
type LockTableAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// RunLocker implements ports.RunLocker using DynamoDB conditional writes.
// One lock row per key; the conditional Put succeeds only when no live lock
// exists, which serializes orchestration runs that share a key. Expiry is
// stored as epoch seconds, so the condition compares numerically and the same
// attribute lets DynamoDB reap locks orphaned by a crashed holder.
type RunLocker struct {
	client        LockTableAPI
	tableName     string
	logger        *zap.Logger
	retryInterval time.Duration
}

// NewRunLocker creates a DynamoDB-backed run locker
func NewRunLocker(client LockTableAPI, tableName string, logger *zap.Logger) *RunLocker {
	return &RunLocker{
		client:        client,
		tableName:     tableName,
		logger:        logger,
		retryInterval: 100 * time.Millisecond,
	}
}

var errLockHeld = errors.New("lock already held")

// Acquire implements ports.RunLocker. It blocks until the lock is held or
// ctx is done, backing off between attempts.
func (l *RunLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (ports.RunLock, error) {
	lockID := fmt.Sprintf("%s_%d", owner, time.Now().UnixNano())
	interval := l.retryInterval

	for {
		err := l.tryPut(ctx, key, lockID, owner, ttl)
		if err == nil {
			l.logger.Debug("run lock acquired",
				zap.String("key", key),
				zap.String("owner", owner))
			return &runLock{locker: l, key: key, lockID: lockID, owner: owner}, nil
		}
		if !errors.Is(err, errLockHeld) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquiring lock for %s: %w", key, ctx.Err())
		case <-time.After(interval):
			if interval < time.Second {
				interval = time.Duration(float64(interval) * 1.5)
			}
		}
	}
}

func (l *RunLocker) tryPut(ctx context.Context, key, lockID, owner string, ttl time.Duration) error {
	now := time.Now()
	expiresAt := now.Add(ttl)

	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]types.AttributeValue{
			"PK":         &types.AttributeValueMemberS{Value: "LOCK#" + key},
			"SK":         &types.AttributeValueMemberS{Value: "LOCK"},
			"LockID":     &types.AttributeValueMemberS{Value: lockID},
			"Owner":      &types.AttributeValueMemberS{Value: owner},
			"AcquiredAt": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
			"ExpiresAt":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt.Unix())},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return errLockHeld
		}
		return fmt.Errorf("acquiring lock for %s: %w", key, err)
	}
	return nil
}

// runLock is an acquired lock; Release deletes the row only when this holder
// still owns it
type runLock struct {
	locker *RunLocker
	key    string
	lockID string
	owner  string
}

// Release implements ports.RunLock
func (rl *runLock) Release(ctx context.Context) error {
	_, err := rl.locker.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(rl.locker.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "LOCK#" + rl.key},
			"SK": &types.AttributeValueMemberS{Value: "LOCK"},
		},
		ConditionExpression: aws.String("LockID = :lockId AND #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "Owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lockId": &types.AttributeValueMemberS{Value: rl.lockID},
			":owner":  &types.AttributeValueMemberS{Value: rl.owner},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			// Already expired or taken over; nothing left to release
			rl.locker.logger.Warn("run lock already gone on release",
				zap.String("key", rl.key),
				zap.String("owner", rl.owner))
			return nil
		}
		return fmt.Errorf("releasing lock for %s: %w", rl.key, err)
	}

	rl.locker.logger.Debug("run lock released", zap.String("key", rl.key))
	return nil
}
