package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/eligify/eligify/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrDuplicatePAN is returned when a PAN marker item already exists for
// another customer.
var ErrDuplicatePAN = errors.New("pan already registered")

// CustomerRepository stores eligibility records. Three item shapes
// share the table: the record itself under CUSTOMER#<phone>, a PAN
// uniqueness marker under PAN#<pan>, and an id pointer under
// CUSTOMER_ID#<id> so orders can be provisioned from a customer id
// alone.
type CustomerRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewCustomerRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *CustomerRepository {
	return &CustomerRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Create writes the PAN marker first with a conditional put, so a
// duplicate identity document is rejected before any record exists.
func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"PK":         &types.AttributeValueMemberS{Value: "PAN#" + customer.PAN},
			"SK":         &types.AttributeValueMemberS{Value: "MARKER"},
			"CustomerID": &types.AttributeValueMemberS{Value: customer.ID},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrDuplicatePAN
		}
		r.logger.WithError(err).Error("Failed to store PAN marker in DynamoDB")
		return fmt.Errorf("failed to reserve pan: %w", err)
	}

	item, err := attributevalue.MarshalMap(customer)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal customer for DynamoDB")
		return fmt.Errorf("failed to marshal customer: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: customer.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: customer.GetSK()}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		r.logger.WithError(err).Error("Failed to store customer in DynamoDB")
		return fmt.Errorf("failed to store customer: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"PK":          &types.AttributeValueMemberS{Value: "CUSTOMER_ID#" + customer.ID},
			"SK":          &types.AttributeValueMemberS{Value: "POINTER"},
			"PhoneNumber": &types.AttributeValueMemberS{Value: customer.PhoneNumber},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to store customer id pointer in DynamoDB")
		return fmt.Errorf("failed to store customer pointer: %w", err)
	}

	return nil
}

// GetByPhone returns the eligibility record, or (nil, nil) when the
// phone has never completed a profile.
func (r *CustomerRepository) GetByPhone(ctx context.Context, phoneNumber string) (*models.Customer, error) {
	key := models.Customer{PhoneNumber: phoneNumber}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: key.GetSK()},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get customer from DynamoDB")
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var customer models.Customer
	if err := attributevalue.UnmarshalMap(result.Item, &customer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal customer: %w", err)
	}
	return &customer, nil
}

// GetByID resolves the id pointer and then loads the record.
func (r *CustomerRepository) GetByID(ctx context.Context, customerID string) (*models.Customer, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "CUSTOMER_ID#" + customerID},
			"SK": &types.AttributeValueMemberS{Value: "POINTER"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get customer pointer: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var pointer struct {
		PhoneNumber string `dynamodbav:"PhoneNumber"`
	}
	if err := attributevalue.UnmarshalMap(result.Item, &pointer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal customer pointer: %w", err)
	}

	return r.GetByPhone(ctx, pointer.PhoneNumber)
}

// Update rewrites an existing record, e.g. after re-qualification when
// a previous verdict expired.
func (r *CustomerRepository) Update(ctx context.Context, customer *models.Customer) error {
	item, err := attributevalue.MarshalMap(customer)
	if err != nil {
		return fmt.Errorf("failed to marshal customer: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: customer.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: customer.GetSK()}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		r.logger.WithError(err).Error("Failed to update customer in DynamoDB")
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}
