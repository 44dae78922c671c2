package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/eligify/eligify/internal/models"
	"github.com/eligify/eligify/internal/service"
	"github.com/eligify/eligify/internal/workflow"
)

// OrderHandlers serves the merchant order dashboard.
type OrderHandlers struct {
	orderService *service.OrderService
	logger       *logrus.Logger
}

func NewOrderHandlers(orderService *service.OrderService, logger *logrus.Logger) *OrderHandlers {
	return &OrderHandlers{
		orderService: orderService,
		logger:       logger,
	}
}

type ordersResponse struct {
	Success bool           `json:"success"`
	Orders  []models.Order `json:"orders"`
}

type orderResponse struct {
	Success bool          `json:"success"`
	Order   *models.Order `json:"order"`
}

type statusCountsResponse struct {
	Success bool           `json:"success"`
	Counts  map[string]int `json:"counts"`
}

// List handles GET /api/orders.
func (h *OrderHandlers) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list orders")
		respondWithError(w, http.StatusInternalServerError, "LIST_FAILED", "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, ordersResponse{Success: true, Orders: orders})
}

// Search handles GET /api/orders/search?number=NNNNNNNNNN.
func (h *OrderHandlers) Search(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("number")
	if err := workflow.ValidatePhone(number); err != nil {
		respondWorkflowError(w, err)
		return
	}

	orders, err := h.orderService.SearchByPhone(r.Context(), number)
	if err != nil {
		h.logger.WithError(err).WithField("phone", number).Error("Failed to search orders")
		respondWithError(w, http.StatusInternalServerError, "SEARCH_FAILED", "Failed to search orders")
		return
	}

	respondWithJSON(w, http.StatusOK, ordersResponse{Success: true, Orders: orders})
}

// Complete handles PUT /api/orders/{id}/complete, marking a settled
// application as completed on the dashboard.
func (h *OrderHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	order, err := h.orderService.Complete(r.Context(), orderID)
	if err != nil {
		var notFound *workflow.NotFoundError
		if errors.As(err, &notFound) {
			respondWorkflowError(w, err)
			return
		}
		h.logger.WithError(err).WithField("order_id", orderID).Error("Failed to complete order")
		respondWithError(w, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update order")
		return
	}

	respondWithJSON(w, http.StatusOK, orderResponse{Success: true, Order: order})
}

// StatusCounts handles GET /api/orders/status-counts, the dashboard's
// per-status summary row.
func (h *OrderHandlers) StatusCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.orderService.StatusCounts(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to count orders")
		respondWithError(w, http.StatusInternalServerError, "COUNT_FAILED", "Failed to count orders")
		return
	}

	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}

	respondWithJSON(w, http.StatusOK, statusCountsResponse{Success: true, Counts: out})
}
