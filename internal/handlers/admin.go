package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/promoshop/promoshop/internal/models"
	"github.com/promoshop/promoshop/internal/orders"
)

type pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type orderListResponse struct {
	Orders     []models.Order `json:"orders"`
	Pagination pagination     `json:"pagination"`
	Sort       orders.SortKey `json:"sort"`
}

type dashboardResponse struct {
	Stats  orders.Stats   `json:"stats"`
	Orders []models.Order `json:"orders"`
	Filter orders.Filter  `json:"filter"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type paymentRequest struct {
	PaymentStatus string `json:"paymentStatus"`
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.adminService.ListOrders(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, r, err, "failed to list orders")
		return
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: page.Orders,
		Pagination: pagination{
			Total:  page.Total,
			Limit:  page.Limit,
			Offset: page.Offset,
		},
		Sort: orders.SortDateDesc,
	}, h.loggerFromContext(r.Context()))
}

func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	view, err := h.adminService.Dashboard(r.Context(), orders.ParseFilter(r.URL.Query()))
	if err != nil {
		h.respondError(w, r, err, "failed to build dashboard")
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		Stats:  view.Stats,
		Orders: view.Orders,
		Filter: view.Filter,
	}, h.loggerFromContext(r.Context()))
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.adminService.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		h.respondError(w, r, err, "failed to update order status")
		return
	}
	writeJSON(w, http.StatusOK, order, h.loggerFromContext(r.Context()))
}

func (h *Handlers) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.adminService.UpdatePaymentStatus(r.Context(), mux.Vars(r)["id"], req.PaymentStatus)
	if err != nil {
		h.respondError(w, r, err, "failed to update payment status")
		return
	}
	writeJSON(w, http.StatusOK, order, h.loggerFromContext(r.Context()))
}

// ExportOrders downloads the filtered order view. The format comes from the
// route's file extension.
func (h *Handlers) ExportOrders(w http.ResponseWriter, r *http.Request) {
	format, err := orders.ParseExportFormat(mux.Vars(r)["format"])
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown export format")
		return
	}

	file, err := h.adminService.Export(r.Context(), format, orders.ParseFilter(r.URL.Query()))
	if err != nil {
		h.respondError(w, r, err, "failed to export orders")
		return
	}

	headers := w.Header()
	headers.Set("Content-Type", file.ContentType)
	headers.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	headers.Set("Content-Length", strconv.Itoa(len(file.Body)))
	headers.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Body); err != nil {
		h.loggerFromContext(r.Context()).Warn("failed to write export", "error", err)
	}
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return value, nil
}
