package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/balcao-erp/balcao-erp/internal/backend"
	"github.com/balcao-erp/balcao-erp/internal/lookup"
	"github.com/balcao-erp/balcao-erp/internal/observability"
	"github.com/balcao-erp/balcao-erp/internal/platform/httpx"
	"github.com/balcao-erp/balcao-erp/internal/sale"
)

// CandidateSearcher resolves name fragments into candidate lists.
type CandidateSearcher interface {
	Clients(ctx context.Context, fragment string) ([]sale.Client, error)
	Products(ctx context.Context, fragment string) ([]sale.Product, error)
}

// Handler manages draft and lookup endpoints.
type Handler struct {
	logger   *slog.Logger
	store    *Store
	gateway  sale.Gateway
	searcher CandidateSearcher
	validate *validator.Validate
	metrics  *observability.Metrics
	minQuery int
	debounce time.Duration
}

// NewHandler builds a Handler instance.
func NewHandler(
	logger *slog.Logger,
	store *Store,
	gateway sale.Gateway,
	searcher CandidateSearcher,
	metrics *observability.Metrics,
	minQuery int,
	debounce time.Duration,
) *Handler {
	if minQuery <= 0 {
		minQuery = lookup.DefaultMinChars
	}
	if debounce <= 0 {
		debounce = lookup.DefaultWait
	}
	return &Handler{
		logger:   logger,
		store:    store,
		gateway:  gateway,
		searcher: searcher,
		validate: validator.New(),
		metrics:  metrics,
		minQuery: minQuery,
		debounce: debounce,
	}
}

// MountRoutes registers draft and lookup routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/drafts", func(r chi.Router) {
		r.Post("/", h.createDraft)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.showDraft)
			r.Delete("/", h.cancelDraft)
			r.Put("/client", h.selectClient)
			r.Delete("/client", h.clearClient)
			r.Put("/client-query", h.clientQuery)
			r.Get("/client-candidates", h.clientCandidates)
			r.Put("/product-query", h.productQuery)
			r.Get("/product-candidates", h.productCandidates)
			r.Put("/date", h.setDate)
			r.Post("/items", h.addItem)
			r.Patch("/items/{productID}", h.editItem)
			r.Delete("/items/{productID}", h.removeItem)
			r.Post("/submit", h.submit)
		})
	})
	r.Route("/lookup", func(r chi.Router) {
		r.Get("/clients", h.lookupClients)
		r.Get("/products", h.lookupProducts)
	})
}

// ============================================================================
// REQUEST PAYLOADS
// ============================================================================

type clientPayload struct {
	ID      int64  `json:"id" validate:"required,gt=0"`
	Name    string `json:"nome" validate:"required,max=200"`
	TaxID   string `json:"cpfOuCnpj" validate:"omitempty,max=20"`
	Phone   string `json:"telefone" validate:"omitempty,max=30"`
	Address string `json:"endereco" validate:"omitempty,max=300"`
}

type productPayload struct {
	ID        int64      `json:"idProduto" validate:"required,gt=0"`
	Name      string     `json:"nome" validate:"required,max=200"`
	Type      *string    `json:"tipo"`
	ExpiresAt *sale.Date `json:"validade"`
	Price     float64    `json:"preco" validate:"gte=0"`
	CostPrice *float64   `json:"precoCusto" validate:"omitempty,gte=0"`
	Stock     *float64   `json:"quantidadeEstoque" validate:"omitempty,gte=0"`
}

// itemEditPayload carries raw form input; parsing and coercion rules live in
// the line item store.
type itemEditPayload struct {
	UnitPrice *string `json:"precoUnitario"`
	Quantity  *string `json:"quantidade"`
}

type datePayload struct {
	Date string `json:"data" validate:"required"`
}

type queryPayload struct {
	Query string `json:"q"`
}

type draftCreatedResponse struct {
	ID    string     `json:"id"`
	Draft sale.Draft `json:"draft"`
}

type itemsResponse struct {
	Items []sale.LineItem `json:"itens"`
	Total float64         `json:"valorTotal"`
}

type itemEditResponse struct {
	UnitPrice float64 `json:"precoUnitario"`
	Quantity  float64 `json:"quantidade"`
	Clamped   bool    `json:"clamped"`
	Total     float64 `json:"valorTotal"`
}

// ============================================================================
// DRAFT HANDLERS
// ============================================================================

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	b := sale.New(h.gateway, sale.WithLogger(h.logger))
	sess := &Session{
		Builder: b,
		Clients: lookup.NewField(h.searcher.Clients,
			lookup.WithWait[sale.Client](h.debounce),
			lookup.WithMinChars[sale.Client](h.minQuery),
			lookup.WithFieldLogger[sale.Client](h.logger)),
		Products: lookup.NewField(h.searcher.Products,
			lookup.WithWait[sale.Product](h.debounce),
			lookup.WithMinChars[sale.Product](h.minQuery),
			lookup.WithFieldLogger[sale.Product](h.logger)),
	}
	id := h.store.Put(sess)
	h.logger.Info("draft session created", slog.String("draft_id", id))
	httpx.JSON(w, http.StatusCreated, draftCreatedResponse{ID: id, Draft: b.Snapshot()})
}

func (h *Handler) showDraft(w http.ResponseWriter, r *http.Request) {
	b, ok := h.builder(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, b.Snapshot())
}

func (h *Handler) cancelDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := h.store.Get(id)
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown draft session")
		return
	}
	sess.Builder.Cancel()
	h.store.Delete(id)
	httpx.NoContent(w)
}

func (h *Handler) selectClient(w http.ResponseWriter, r *http.Request) {
	b, ok := h.builder(w, r)
	if !ok {
		return
	}
	var payload clientPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	b.SelectClient(sale.Client{
		ID:      payload.ID,
		Name:    payload.Name,
		TaxID:   payload.TaxID,
		Phone:   payload.Phone,
		Address: payload.Address,
	})
	httpx.JSON(w, http.StatusOK, b.Snapshot())
}

func (h *Handler) clearClient(w http.ResponseWriter, r *http.Request) {
	b, ok := h.builder(w, r)
	if !ok {
		return
	}
	b.ClearClient()
	httpx.JSON(w, http.StatusOK, b.Snapshot())
}

func (h *Handler) setDate(w http.ResponseWriter, r *http.Request) {
	b, ok := h.builder(w, r)
	if !ok {
		return
	}
	var payload datePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := sale.ParseDate(payload.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "data must be an ISO date (YYYY-MM-DD)")
		return
	}
	b.SetDate(date)
	httpx.JSON(w, http.StatusOK, b.Snapshot())
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	b, ok := h.builder(w, r)
	if !ok {
		return
	}
	var payload productPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items, err := b.AddProduct(sale.Product{
		ID:        payload.ID,
		Name:      payload.Name,
		Type:      payload.Type,
		ExpiresAt: payload.ExpiresAt,
		Price:     payload.Price,
		CostPrice: payload.CostPrice,
		Stock:     payload.Stock,
	})
	switch {
	case errors.Is(err, sale.ErrOutOfStock):
		httpx.Problem(w, http.StatusConflict, "Out Of Stock", err.Error())
		return
	case errors.Is(err, sale.ErrStockExceeded):
		httpx.Problem(w, http.StatusConflict, "Stock Exceeded", err.Error())
		return
	case err != nil:
		h.logger.Error("add item", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, itemsResponse{Items: items, Total: b.Total()})
}

func (h *Handler) editItem(w http.ResponseWriter, r *http.Request) {
	b, ok := h.builder(w, r)
	if !ok {
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "productID must be an integer")
		return
	}
	var payload itemEditPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if payload.UnitPrice == nil && payload.Quantity == nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "nothing to update")
		return
	}

	resp := itemEditResponse{}
	found := false
	if payload.UnitPrice != nil {
		price, ok := b.UpdateUnitPrice(productID, *payload.UnitPrice)
		if ok {
			found = true
			resp.UnitPrice = price
		}
	}
	if payload.Quantity != nil {
		qty, clamped, ok := b.UpdateQuantity(productID, *payload.Quantity)
		if ok {
			found = true
			resp.Quantity = qty
			resp.Clamped = clamped
		}
	}
	if !found {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no line item for this product")
		return
	}
	// Fill in whichever side was not edited so the response mirrors the line.
	for _, line := range b.Snapshot().Items {
		if line.Product.ID == productID {
			resp.UnitPrice = line.UnitPrice
			resp.Quantity = line.Quantity
		}
	}
	resp.Total = b.Total()
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	b, ok := h.builder(w, r)
	if !ok {
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "productID must be an integer")
		return
	}
	b.RemoveItem(productID)
	httpx.JSON(w, http.StatusOK, itemsResponse{Items: b.Snapshot().Items, Total: b.Total()})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	b, ok := h.builder(w, r)
	if !ok {
		return
	}
	err := b.Submit(r.Context())
	switch {
	case err == nil:
		h.metrics.ObserveSubmission("success")
		httpx.JSON(w, http.StatusOK, b.Snapshot())
	case errors.Is(err, sale.ErrMissingClient), errors.Is(err, sale.ErrEmptyCart):
		h.metrics.ObserveSubmission("rejected")
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, sale.ErrSubmitInFlight):
		h.metrics.ObserveSubmission("in_flight")
		httpx.Problem(w, http.StatusConflict, "Submission In Progress", err.Error())
	case errors.Is(err, backend.ErrBackend):
		h.metrics.ObserveSubmission("backend_error")
		httpx.Problem(w, http.StatusBadGateway, "Backend Error", err.Error())
	default:
		h.metrics.ObserveSubmission("error")
		h.logger.Error("submit sale", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// ============================================================================
// TYPEAHEAD HANDLERS
// ============================================================================

// The query endpoints feed keystrokes into the draft's debounced fields and
// return immediately; the candidate endpoints poll the current list. A search
// only goes out after the input settles, and a late response never overwrites
// candidates for a newer query.

func (h *Handler) clientQuery(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload queryPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	sess.Clients.Input(payload.Query)
	httpx.JSON(w, http.StatusAccepted, sess.Clients.Candidates())
}

func (h *Handler) clientCandidates(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, sess.Clients.Candidates())
}

func (h *Handler) productQuery(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload queryPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	sess.Products.Input(payload.Query)
	httpx.JSON(w, http.StatusAccepted, sess.Products.Candidates())
}

func (h *Handler) productCandidates(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, sess.Products.Candidates())
}

// ============================================================================
// LOOKUP HANDLERS
// ============================================================================

func (h *Handler) lookupClients(w http.ResponseWriter, r *http.Request) {
	h.lookupInto(w, r, "clients", func(q string) (any, error) {
		return h.searcher.Clients(r.Context(), q)
	}, []sale.Client{})
}

func (h *Handler) lookupProducts(w http.ResponseWriter, r *http.Request) {
	h.lookupInto(w, r, "products", func(q string) (any, error) {
		return h.searcher.Products(r.Context(), q)
	}, []sale.Product{})
}

// lookupInto answers candidate lookups. Short fragments and backend failures
// both degrade to an empty list; failures are logged and counted, never
// surfaced as errors (the screen keeps working).
func (h *Handler) lookupInto(w http.ResponseWriter, r *http.Request, entity string, search func(string) (any, error), empty any) {
	q := r.URL.Query().Get("q")
	if len([]rune(q)) < h.minQuery {
		h.metrics.ObserveLookup(entity, "skipped")
		httpx.JSON(w, http.StatusOK, empty)
		return
	}
	results, err := search(q)
	if err != nil {
		h.metrics.ObserveLookup(entity, "error")
		h.logger.Warn("candidate lookup failed",
			slog.String("entity", entity),
			slog.String("query", q),
			slog.Any("error", err))
		httpx.JSON(w, http.StatusOK, empty)
		return
	}
	h.metrics.ObserveLookup(entity, "success")
	httpx.JSON(w, http.StatusOK, results)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown draft session")
		return nil, false
	}
	return sess, true
}

func (h *Handler) builder(w http.ResponseWriter, r *http.Request) (*sale.Builder, bool) {
	sess, ok := h.session(w, r)
	if !ok {
		return nil, false
	}
	return sess.Builder, true
}
