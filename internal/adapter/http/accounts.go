package http

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/folio-backend/internal/domain"
	"github.com/simaogato/folio-backend/internal/usecase/account"
)

// AccountService is the set of account operations exposed over REST
type AccountService interface {
	Create(ctx context.Context, input account.CreateInput) (*domain.Account, error)
	Get(ctx context.Context, broker string) (*domain.Account, error)
	List(ctx context.Context) ([]*domain.Account, error)
	Summary(ctx context.Context) (*domain.AccountSummary, error)
}

type createAccountRequest struct {
	Broker  string           `json:"broker" validate:"required"`
	Balance *decimal.Decimal `json:"balance"`
}

type accountResponse struct {
	ID        uuid.UUID   `json:"id"`
	Broker    string      `json:"broker"`
	Balance   json.Number `json:"balance"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type summaryResponse struct {
	Total    json.Number `json:"total"`
	Accounts int         `json:"accounts"`
}

func newAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Broker:    a.Broker,
		Balance:   json.Number(a.Balance.StringFixed(domain.BalanceScale)),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AccountHandler serves the accounts REST resource
type AccountHandler struct {
	service AccountService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(service AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// Register mounts the routes under /v1/accounts
func (h *AccountHandler) Register(router fiber.Router) {
	group := router.Group("/v1/accounts")
	group.Get("/", h.List)
	group.Post("/", h.Create)
	group.Get("/summary", h.Summary)
	group.Get("/:broker", h.Get)
}

// List handles GET /v1/accounts; no accounts is answered with 204
func (h *AccountHandler) List(c *fiber.Ctx) error {
	accounts, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	resp := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, newAccountResponse(a))
	}

	return c.JSON(resp)
}

// Get handles GET /v1/accounts/:broker
func (h *AccountHandler) Get(c *fiber.Ctx) error {
	a, err := h.service.Get(c.UserContext(), c.Params("broker"))
	if err != nil {
		return err
	}

	return c.JSON(newAccountResponse(a))
}

// Create handles POST /v1/accounts
func (h *AccountHandler) Create(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := parseBodyAndValidate(c, &req); err != nil {
		return err
	}

	input := account.CreateInput{Broker: req.Broker, Balance: decimal.Zero}
	if req.Balance != nil {
		input.Balance = *req.Balance
	}

	a, err := h.service.Create(c.UserContext(), input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(newAccountResponse(a))
}

// Summary handles GET /v1/accounts/summary
func (h *AccountHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(summaryResponse{
		Total:    json.Number(summary.Total.StringFixed(domain.BalanceScale)),
		Accounts: summary.Accounts,
	})
}
