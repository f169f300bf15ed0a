package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"alemkitap.org/internal/audit"
	"alemkitap.org/internal/catalog"
	"alemkitap.org/internal/orders"
)

type placeOrderRequest struct {
	PhysicalBookID string `json:"physical_book_id"`
	Quantity       int    `json:"quantity"`
	CustomerName   string `json:"customer_name"`
	PhoneNumber    string `json:"phone_number"`
	Email          string `json:"email"`
	City           string `json:"city"`
	Address        string `json:"address"`
	PostalCode     string `json:"postal_code"`
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.placeOrder(w, r)
	case http.MethodGet:
		a.listMyOrders(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) placeOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.City) == "" ||
		strings.TrimSpace(req.Address) == "" {
		writeError(w, r, http.StatusBadRequest, "customer_name, city and address are required")
		return
	}

	order, err := a.deps.Orders.Place(r.Context(), &orders.Order{
		UserID:         userID,
		PhysicalBookID: strings.TrimSpace(req.PhysicalBookID),
		Quantity:       req.Quantity,
		CustomerName:   strings.TrimSpace(req.CustomerName),
		PhoneNumber:    strings.TrimSpace(req.PhoneNumber),
		Email:          strings.TrimSpace(req.Email),
		City:           strings.TrimSpace(req.City),
		Address:        strings.TrimSpace(req.Address),
		PostalCode:     strings.TrimSpace(req.PostalCode),
	})
	if err != nil {
		handleOrderError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "orders.placed", map[string]any{
		"order_id":         order.ID,
		"physical_book_id": order.PhysicalBookID,
		"quantity":         strconv.Itoa(order.Quantity),
		"amount_minor":     strconv.FormatInt(order.AmountMinor, 10),
	})

	w.Header().Set("Location", "/v1/orders/"+order.ID)
	writeJSON(w, http.StatusCreated, order)
}

func (a *API) listMyOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	list, err := a.deps.Orders.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func handleOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orders.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, orders.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, catalog.ErrOutOfStock):
		writeError(w, r, http.StatusConflict, "out of stock")
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
