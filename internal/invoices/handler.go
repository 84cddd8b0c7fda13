package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/catalog"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
	"github.com/invoicedesk/invoicedesk/internal/shared"
	"github.com/invoicedesk/invoicedesk/internal/view"
)

// PDFRenderer turns a computed invoice into a PDF document.
type PDFRenderer interface {
	RenderInvoice(ctx context.Context, view InvoiceView) ([]byte, error)
}

// Handler manages invoice, draft and catalog endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	catalog   *catalog.Service
	templates *view.Engine
	pdf       PDFRenderer
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, products *catalog.Service, templates *view.Engine, pdf PDFRenderer) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		catalog:   products,
		templates: templates,
		pdf:       pdf,
		validator: validator.New(),
	}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showInvoiceList)

	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/quote", h.quote)
		r.Get("/{id}", h.getInvoice)
		r.Get("/{id}/view", h.showInvoice)
		r.Get("/{id}/pdf", h.downloadPDF)
		r.Post("/{id}/drafts", h.openDraft)
	})

	r.Route("/drafts/{draftID}", func(r chi.Router) {
		r.Get("/", h.getDraft)
		r.Delete("/", h.discardDraft)
		r.Post("/items", h.addItem)
		r.Patch("/items/{itemID}", h.updateItem)
		r.Delete("/items/{itemID}", h.removeItem)
		r.Put("/discount", h.setDiscount)
		r.Put("/taxes", h.setTaxes)
		r.Post("/commit", h.commitDraft)
	})

	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/clients", h.listClients)
	r.Get("/clients/{id}", h.getClient)
}

type addItemRequest struct {
	ID        string                `json:"id" validate:"omitempty,max=64"`
	Name      string                `json:"name" validate:"required_without=ProductID,max=200"`
	ProductID string                `json:"productId" validate:"omitempty,max=64"`
	Quantity  int64                 `json:"quantity" validate:"gte=0"`
	Rate      decimal.Decimal       `json:"rate"`
	Taxes     []billing.TaxTemplate `json:"taxes"`
}

type updateItemRequest struct {
	Quantity *int64           `json:"quantity" validate:"omitempty,gte=0"`
	Rate     *decimal.Decimal `json:"rate"`
}

type discountRequest struct {
	Discount decimal.NullDecimal `json:"discount"`
}

type taxesRequest struct {
	Taxes []billing.TaxTemplate `json:"taxes" validate:"dive"`
}

type productRequest struct {
	ID       string                `json:"id" validate:"omitempty,max=64"`
	Name     string                `json:"itemName" validate:"required,max=200"`
	Category string                `json:"category" validate:"max=100"`
	Rate     decimal.Decimal       `json:"rate"`
	Taxes    []billing.TaxTemplate `json:"taxes"`
}

func (h *Handler) showInvoiceList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
	}
	h.render(w, r, "pages/invoice_list.html", "Invoices", shared.Resolve(res, err), err)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "view invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) showInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inv, err := h.service.View(r.Context(), id)
	if err != nil {
		h.logger.Warn("view invoice page", slog.String("invoice_id", id), slog.Any("error", err))
	}
	title := "Invoice"
	if err == nil {
		title = "Invoice " + inv.Invoice.Number
	}
	h.render(w, r, "pages/invoice.html", title, shared.Resolve(inv, err), err)
}

func (h *Handler) downloadPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inv, err := h.service.View(r.Context(), id)
	if err != nil {
		h.fail(w, "view invoice for pdf", err)
		return
	}
	pdf, err := h.pdf.RenderInvoice(r.Context(), inv)
	if err != nil {
		h.logger.Error("render invoice pdf", slog.String("invoice_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Render Failed", "The PDF could not be generated.")
		return
	}
	filename := strings.NewReplacer("/", "-", `"`, "").Replace(inv.Invoice.Number)
	if filename == "" {
		filename = id
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, filename))
	_, _ = w.Write(pdf)
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Currency = strings.ToUpper(req.Currency)
	view, err := h.service.Quote(r.Context(), req)
	if err != nil {
		h.fail(w, "quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) openDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.OpenDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "open draft", err)
		return
	}
	w.Header().Set("Location", "/drafts/"+draft.ID)
	httpx.JSON(w, http.StatusCreated, draft)
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.Draft(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		h.fail(w, "get draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DiscardDraft(r.Context(), chi.URLParam(r, "draftID")); err != nil {
		h.fail(w, "discard draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	edit := DraftEdit{
		Kind:     EditAddItem,
		ItemID:   req.ID,
		Name:     req.Name,
		Quantity: req.Quantity,
		Rate:     req.Rate,
		Taxes:    req.Taxes,
	}
	if req.ProductID != "" {
		edit = DraftEdit{Kind: EditAddProduct, ItemID: req.ID, ProductID: req.ProductID, Quantity: req.Quantity}
	}
	h.updateDraft(w, r, edit)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	itemID := chi.URLParam(r, "itemID")
	var edits []DraftEdit
	if req.Quantity != nil {
		edits = append(edits, DraftEdit{Kind: EditSetQuantity, ItemID: itemID, Quantity: *req.Quantity})
	}
	if req.Rate != nil {
		edits = append(edits, DraftEdit{Kind: EditSetRate, ItemID: itemID, Rate: *req.Rate})
	}
	if len(edits) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "quantity or rate is required")
		return
	}
	h.updateDraft(w, r, edits...)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	h.updateDraft(w, r, DraftEdit{Kind: EditRemoveItem, ItemID: chi.URLParam(r, "itemID")})
}

func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.updateDraft(w, r, DraftEdit{Kind: EditSetDiscount, Discount: req.Discount})
}

func (h *Handler) setTaxes(w http.ResponseWriter, r *http.Request) {
	var req taxesRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.updateDraft(w, r, DraftEdit{Kind: EditSetTaxes, Taxes: req.Taxes})
}

func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request, edits ...DraftEdit) {
	draft, err := h.service.UpdateDraft(r.Context(), chi.URLParam(r, "draftID"), edits...)
	if err != nil {
		h.fail(w, "update draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}

func (h *Handler) commitDraft(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CommitDraft(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		h.fail(w, "commit draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Products(r.Context())
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": products})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !h.decode(w, r, &req) {
		return
	}
	saved, err := h.catalog.SaveProduct(r.Context(), billing.Product{
		ID:       req.ID,
		Name:     req.Name,
		Category: req.Category,
		Rate:     req.Rate,
		Taxes:    req.Taxes,
	})
	if err != nil {
		h.fail(w, "save product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, saved)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.catalog.Clients(r.Context())
	if err != nil {
		h.fail(w, "list clients", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": clients})
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.catalog.Client(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get client", err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

// decode reads and validates a JSON body, writing a problem response on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fieldErr := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fieldErr.Namespace(), fieldErr.Tag()))
			}
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", strings.Join(msgs, "; "))
			return false
		}
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	} else {
		h.logger.Debug(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any, err error) {
	status := http.StatusOK
	if err != nil {
		status = httpx.StatusFor(err)
	}
	viewData := view.TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{ClientID: q.Get("clientId")}
	if raw := q.Get("status"); raw != "" {
		filter.Status = billing.ParseStatus(raw)
	}
	for name, dst := range map[string]*int{"page": &filter.Page, "limit": &filter.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return ListFilter{}, fmt.Errorf("%w: %s must be a non-negative integer", shared.ErrValidation, name)
		}
		*dst = n
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return filter, nil
}
