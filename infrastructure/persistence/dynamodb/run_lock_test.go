package dynamodb

import (
	"context"
	"strconv"
	"testing"
	"time"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeLockTable records calls and plays back queued PutItem errors
type fakeLockTable struct {
	puts    []*awsdynamodb.PutItemInput
	putErrs []error
	deletes []*awsdynamodb.DeleteItemInput
}

func (f *fakeLockTable) PutItem(ctx context.Context, params *awsdynamodb.PutItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, params)
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &awsdynamodb.PutItemOutput{}, nil
}

func (f *fakeLockTable) DeleteItem(ctx context.Context, params *awsdynamodb.DeleteItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.DeleteItemOutput, error) {
	f.deletes = append(f.deletes, params)
	return &awsdynamodb.DeleteItemOutput{}, nil
}

func newTestRunLocker(table *fakeLockTable) *RunLocker {
	return &RunLocker{
		client:        table,
		tableName:     "knowde-locks",
		logger:        zap.NewNop(),
		retryInterval: time.Millisecond,
	}
}

func numericAttr(t *testing.T, attrs map[string]types.AttributeValue, name string) int64 {
	t.Helper()
	n, ok := attrs[name].(*types.AttributeValueMemberN)
	require.True(t, ok, "%s must be a numeric attribute", name)
	value, err := strconv.ParseInt(n.Value, 10, 64)
	require.NoError(t, err)
	return value
}

func TestRunLocker_Acquire_ComparesExpiryNumerically(t *testing.T) {
	// Arrange
	table := &fakeLockTable{}
	locker := newTestRunLocker(table)

	// Act
	before := time.Now().Unix()
	lock, err := locker.Acquire(context.Background(), "users/user123", "req-1", 5*time.Minute)
	after := time.Now().Unix()

	// Assert: expiry and the takeover threshold are epoch seconds, so the
	// condition orders correctly regardless of timestamp formatting
	require.NoError(t, err)
	require.NotNil(t, lock)
	require.Len(t, table.puts, 1)

	put := table.puts[0]
	assert.Equal(t, "attribute_not_exists(PK) OR ExpiresAt < :now", *put.ConditionExpression)

	expiresAt := numericAttr(t, put.Item, "ExpiresAt")
	now := numericAttr(t, put.ExpressionAttributeValues, ":now")
	assert.GreaterOrEqual(t, now, before)
	assert.LessOrEqual(t, now, after)
	assert.Equal(t, int64((5 * time.Minute).Seconds()), expiresAt-now)
}

func TestRunLocker_Acquire_RetriesWhileLockHeld(t *testing.T) {
	// Arrange: the first conditional write loses to a live lock
	table := &fakeLockTable{putErrs: []error{&types.ConditionalCheckFailedException{}}}
	locker := newTestRunLocker(table)

	// Act
	lock, err := locker.Acquire(context.Background(), "users/user123", "req-1", time.Minute)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Len(t, table.puts, 2)
}

func TestRunLock_Release_DeletesOnlyOwnRow(t *testing.T) {
	// Arrange
	table := &fakeLockTable{}
	locker := newTestRunLocker(table)
	lock, err := locker.Acquire(context.Background(), "users/user123", "req-1", time.Minute)
	require.NoError(t, err)

	// Act
	require.NoError(t, lock.Release(context.Background()))

	// Assert: the delete is conditional on this holder's lock id and owner
	require.Len(t, table.deletes, 1)
	del := table.deletes[0]
	assert.Equal(t, "LOCK#users/user123", del.Key["PK"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "LockID = :lockId AND #owner = :owner", *del.ConditionExpression)
	assert.Equal(t, "Owner", del.ExpressionAttributeNames["#owner"])
	assert.Equal(t, "req-1", del.ExpressionAttributeValues[":owner"].(*types.AttributeValueMemberS).Value)
}
