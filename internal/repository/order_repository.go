package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/eligify/eligify/internal/models"
	"github.com/sirupsen/logrus"
)

// OrderRepository stores provisioning artifacts. Besides the order
// record under ORDER#<id> it keeps a per-customer pointer so
// create-order can be idempotent per customer.
type OrderRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewOrderRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *OrderRepository {
	return &OrderRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal order for DynamoDB")
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: order.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: order.GetSK()}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		r.logger.WithError(err).Error("Failed to store order in DynamoDB")
		return fmt.Errorf("failed to store order: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"PK":      &types.AttributeValueMemberS{Value: "ORDER_CUSTOMER#" + order.CustomerID},
			"SK":      &types.AttributeValueMemberS{Value: "POINTER"},
			"OrderID": &types.AttributeValueMemberS{Value: order.OrderID},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to store order pointer in DynamoDB")
		return fmt.Errorf("failed to store order pointer: %w", err)
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*models.Order, error) {
	key := models.Order{OrderID: orderID}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: key.GetSK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var order models.Order
	if err := attributevalue.UnmarshalMap(result.Item, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &order, nil
}

// GetByCustomerID resolves the customer pointer and loads the order; a
// second create-order call for the same customer finds the first one
// here.
func (r *OrderRepository) GetByCustomerID(ctx context.Context, customerID string) (*models.Order, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "ORDER_CUSTOMER#" + customerID},
			"SK": &types.AttributeValueMemberS{Value: "POINTER"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get order pointer: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var pointer struct {
		OrderID string `dynamodbav:"OrderID"`
	}
	if err := attributevalue.UnmarshalMap(result.Item, &pointer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order pointer: %w", err)
	}

	return r.GetByID(ctx, pointer.OrderID)
}

// UpdateStatus moves an order through its lifecycle.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	key := models.Order{OrderID: orderID}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: key.GetSK()},
		},
		UpdateExpression: aws.String("SET #status = :status, updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":     &types.AttributeValueMemberS{Value: string(status)},
			":updated_at": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to update order status in DynamoDB")
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}

// List scans the order partition. Order volume per merchant table is
// modest; the dashboard reads the full set.
func (r *OrderRepository) List(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	var startKey map[string]types.AttributeValue

	for {
		result, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(r.tableName),
			FilterExpression: aws.String("begins_with(PK, :prefix) AND SK = :sk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prefix": &types.AttributeValueMemberS{Value: "ORDER#"},
				":sk":     &types.AttributeValueMemberS{Value: "METADATA"},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			r.logger.WithError(err).Error("Failed to scan orders in DynamoDB")
			return nil, fmt.Errorf("failed to list orders: %w", err)
		}

		var page []models.Order
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal orders: %w", err)
		}
		orders = append(orders, page...)

		if result.LastEvaluatedKey == nil {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	return orders, nil
}

// SearchByPhone filters the order partition by customer phone.
func (r *OrderRepository) SearchByPhone(ctx context.Context, phoneNumber string) ([]models.Order, error) {
	result, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("begins_with(PK, :prefix) AND SK = :sk AND phone_number = :phone"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: "ORDER#"},
			":sk":     &types.AttributeValueMemberS{Value: "METADATA"},
			":phone":  &types.AttributeValueMemberS{Value: phoneNumber},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to search orders in DynamoDB")
		return nil, fmt.Errorf("failed to search orders: %w", err)
	}

	var orders []models.Order
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &orders); err != nil {
		return nil, fmt.Errorf("failed to unmarshal orders: %w", err)
	}
	return orders, nil
}
