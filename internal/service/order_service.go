package service

import (
	"context"
	"net/url"
	"time"

	"github.com/eligify/eligify/internal/config"
	"github.com/eligify/eligify/internal/models"
	"github.com/eligify/eligify/internal/repository"
	"github.com/eligify/eligify/internal/workflow"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// OrderService provisions QR artifacts and backs the merchant order
// dashboard.
type OrderService struct {
	orders    *repository.OrderRepository
	customers *repository.CustomerRepository
	cfg       *config.OrderConfig
	logger    *logrus.Logger
}

func NewOrderService(
	orders *repository.OrderRepository,
	customers *repository.CustomerRepository,
	cfg *config.OrderConfig,
	logger *logrus.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		customers: customers,
		cfg:       cfg,
		logger:    logger,
	}
}

// Create implements the workflow's ArtifactCreator. It is idempotent
// per customer: a repeat call returns the QR URL of the existing order
// instead of opening a second one.
func (s *OrderService) Create(ctx context.Context, customerID string) (string, error) {
	existing, err := s.orders.GetByCustomerID(ctx, customerID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.QRURL, nil
	}

	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return "", err
	}
	if customer == nil {
		return "", &workflow.NotFoundError{Resource: "customer", ID: customerID}
	}

	now := time.Now()
	order := &models.Order{
		OrderID:     uuid.New().String(),
		CustomerID:  customerID,
		PhoneNumber: customer.PhoneNumber,
		Name:        customer.FullName(),
		Status:      models.OrderStatusQRGenerated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	order.QRURL = s.qrURL(order.OrderID)

	if err := s.orders.Create(ctx, order); err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":    order.OrderID,
		"customer_id": customerID,
	}).Info("Order created")

	return order.QRURL, nil
}

func (s *OrderService) qrURL(orderID string) string {
	return s.cfg.QRBaseURL + "?order=" + url.QueryEscape(orderID)
}

func (s *OrderService) List(ctx context.Context) ([]models.Order, error) {
	return s.orders.List(ctx)
}

func (s *OrderService) SearchByPhone(ctx context.Context, phoneNumber string) ([]models.Order, error) {
	return s.orders.SearchByPhone(ctx, phoneNumber)
}

// Complete marks a QR-generated order as finished.
func (s *OrderService) Complete(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &workflow.NotFoundError{Resource: "order", ID: orderID}
	}

	if err := s.orders.UpdateStatus(ctx, orderID, models.OrderStatusCompleted); err != nil {
		return nil, err
	}
	order.Status = models.OrderStatusCompleted
	return order, nil
}

// StatusCounts aggregates the dashboard badge counters.
func (s *OrderService) StatusCounts(ctx context.Context) (map[models.OrderStatus]int, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[models.OrderStatus]int)
	for _, o := range orders {
		counts[o.Status]++
	}
	return counts, nil
}
