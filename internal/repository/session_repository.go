package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/eligify/eligify/internal/models"
	"github.com/sirupsen/logrus"
)

// SessionRepository persists one WorkflowState per phone number. The
// record survives reloads and restarts until an explicit reset deletes
// it.
type SessionRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewSessionRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *SessionRepository {
	return &SessionRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Save writes the full session record. Callers invoke it synchronously
// after every accepted transition, so the persisted step is never ahead
// of its data.
func (r *SessionRepository) Save(ctx context.Context, state models.WorkflowState) error {
	item, err := attributevalue.MarshalMap(state)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal session for DynamoDB")
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: state.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: state.GetSK()}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to store session in DynamoDB")
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// Load returns the persisted session, or (nil, nil) when the phone has
// no active application.
func (r *SessionRepository) Load(ctx context.Context, phoneNumber string) (*models.WorkflowState, error) {
	key := models.WorkflowState{PhoneNumber: phoneNumber}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: key.GetSK()},
		},
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to get session from DynamoDB")
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var state models.WorkflowState
	if err := attributevalue.UnmarshalMap(result.Item, &state); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal session from DynamoDB")
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &state, nil
}

// Delete removes the session record on reset.
func (r *SessionRepository) Delete(ctx context.Context, phoneNumber string) error {
	key := models.WorkflowState{PhoneNumber: phoneNumber}

	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: key.GetSK()},
		},
	})

	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}
