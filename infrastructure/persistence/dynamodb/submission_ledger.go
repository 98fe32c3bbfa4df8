package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"killrvideo/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// SubmissionLedger records which counter submissions have been applied, using
// conditional writes on the shared table. Entries expire through DynamoDB TTL.
type SubmissionLedger struct {
	client    Client
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubmissionLedger creates a ledger on tableName
func NewSubmissionLedger(client Client, tableName string, logger *zap.Logger) *SubmissionLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionLedger{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

func submissionKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: "SUBMISSION#" + id},
		attrSK: &types.AttributeValueMemberS{Value: "SUBMISSION"},
	}
}

// Claim marks submissionID as applied. It returns false when an unexpired
// claim already exists.
func (l *SubmissionLedger) Claim(ctx context.Context, submissionID string, ttl time.Duration) (bool, error) {
	now := l.now()
	expiresAt := now.Add(ttl)

	item := submissionKey(submissionID)
	item["ClaimedAt"] = &types.AttributeValueMemberS{Value: utils.FormatRFC3339(now)}
	item["ExpiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt.Unix(), 10)}
	item["TTL"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt.Unix(), 10)}

	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			l.logger.Debug("Submission already claimed", zap.String("submission_id", submissionID))
			return false, nil
		}
		return false, fmt.Errorf("failed to claim submission: %w", err)
	}

	l.logger.Debug("Submission claimed",
		zap.String("submission_id", submissionID),
		zap.Duration("ttl", ttl),
	)
	return true, nil
}

// Release drops a claim so the submission can be applied again
func (l *SubmissionLedger) Release(ctx context.Context, submissionID string) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key:       submissionKey(submissionID),
	})
	if err != nil {
		return fmt.Errorf("failed to release submission: %w", err)
	}
	return nil
}
