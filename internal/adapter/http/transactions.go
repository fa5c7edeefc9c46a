package http

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/simaogato/folio-backend/internal/domain"
	"github.com/simaogato/folio-backend/internal/usecase/transaction"
)

type createTransactionRequest struct {
	Date     string           `json:"date" validate:"required,datetime=2006-01-02"`
	Type     string           `json:"type" validate:"required"`
	Asset    string           `json:"asset" validate:"required"`
	Price    *decimal.Decimal `json:"price" validate:"required"`
	Quantity *int64           `json:"quantity" validate:"required"`
	Fee      *decimal.Decimal `json:"fee" validate:"required"`
	Broker   string           `json:"broker" validate:"required"`
}

type transactionResponse struct {
	ID        int64       `json:"id"`
	Date      civil.Date  `json:"date"`
	Type      string      `json:"type"`
	Asset     string      `json:"asset"`
	Price     json.Number `json:"price"`
	Quantity  int64       `json:"quantity"`
	Fee       json.Number `json:"fee"`
	Broker    string      `json:"broker"`
	CreatedAt time.Time   `json:"createdAt"`
}

func newTransactionResponse(t domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:        t.ID,
		Date:      t.Date,
		Type:      string(t.Type),
		Asset:     t.Asset,
		Price:     json.Number(t.Price.String()),
		Quantity:  t.Quantity,
		Fee:       json.Number(t.Fee.String()),
		Broker:    t.Broker,
		CreatedAt: t.CreatedAt,
	}
}

// TransactionHandler serves the transactions REST resource
type TransactionHandler struct {
	service transaction.UseCase
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(service transaction.UseCase) *TransactionHandler {
	return &TransactionHandler{service: service}
}

// Register mounts the routes under /v1/transactions
func (h *TransactionHandler) Register(router fiber.Router) {
	group := router.Group("/v1/transactions")
	group.Get("/", h.List)
	group.Post("/", h.Create)
	group.Delete("/:id", h.Delete)
}

// List handles GET /v1/transactions; an empty page is answered with 204
func (h *TransactionHandler) List(c *fiber.Ctx) error {
	input := transaction.ListInput{
		Broker:    c.Query("broker"),
		Asset:     c.Query("asset"),
		Property:  c.Query("property"),
		Direction: c.Query("direction"),
	}

	var err error
	if input.PageSize, err = intQuery(c, "pageSize", "Page size"); err != nil {
		return err
	}
	if input.PageNumber, err = intQuery(c, "pageNumber", "Page number"); err != nil {
		return err
	}

	page, err := h.service.List(c.UserContext(), input)
	if err != nil {
		return err
	}

	if page.IsEmpty() {
		return c.SendStatus(fiber.StatusNoContent)
	}

	content := make([]transactionResponse, 0, len(page.Content))
	for _, t := range page.Content {
		content = append(content, newTransactionResponse(t))
	}

	return c.JSON(domain.NewPage(content, page.TotalElements, page.Number, page.Size))
}

// Create handles POST /v1/transactions
func (h *TransactionHandler) Create(c *fiber.Ctx) error {
	var req createTransactionRequest
	if err := parseBodyAndValidate(c, &req); err != nil {
		return err
	}

	date, err := civil.ParseDate(req.Date)
	if err != nil {
		return domain.NewValidationError("date", "Date must be a date formatted as 2006-01-02.")
	}

	created, err := h.service.Create(c.UserContext(), transaction.CreateInput{
		Date:     date,
		Type:     req.Type,
		Asset:    req.Asset,
		Price:    *req.Price,
		Quantity: *req.Quantity,
		Fee:      *req.Fee,
		Broker:   req.Broker,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(newTransactionResponse(*created))
}

// Delete handles DELETE /v1/transactions/:id
func (h *TransactionHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return domain.NewValidationError("id", "Id must be a positive integer.")
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func intQuery(c *fiber.Ctx, key, label string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, domain.NewValidationError(key, label+" must be a number.")
	}

	return &v, nil
}
