package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dreschagin/item-tracker/internal/application/usecase"
	"github.com/dreschagin/item-tracker/internal/domain/entity"
	"github.com/dreschagin/item-tracker/internal/interfaces/http/middleware"
)

// ItemsAPIHandler обрабатывает API запросы для items
type ItemsAPIHandler struct {
	listItemsUC  *usecase.ListItemsUseCase
	createItemUC *usecase.CreateItemUseCase
	rateLimiter  *middleware.IPRateLimiter
}

type createItemRequest struct {
	Name string `json:"name"`
}

// NewItemsAPIHandler создает новый handler; rateLimiter может быть nil
func NewItemsAPIHandler(
	listItemsUC *usecase.ListItemsUseCase,
	createItemUC *usecase.CreateItemUseCase,
	rateLimiter *middleware.IPRateLimiter,
) *ItemsAPIHandler {
	return &ItemsAPIHandler{
		listItemsUC:  listItemsUC,
		createItemUC: createItemUC,
		rateLimiter:  rateLimiter,
	}
}

// HandleItems диспатчит GET/POST /api/items
func (h *ItemsAPIHandler) HandleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listItems(w, r)
	case http.MethodPost:
		h.createItem(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// listItems возвращает items, новые первыми. Детали ошибки хранилища
// клиенту не отдаются.
func (h *ItemsAPIHandler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.listItemsUC.Execute(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server error"})
		return
	}

	respondJSON(w, http.StatusOK, items)
}

func (h *ItemsAPIHandler) createItem(w http.ResponseWriter, r *http.Request) {
	if h.rateLimiter != nil && !h.rateLimiter.Allow(middleware.ClientIP(r)) {
		respondJSON(w, http.StatusTooManyRequests, map[string]string{"message": "Rate limit exceeded"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	// Некорректный body эквивалентен пустому имени и уходит в валидацию
	var req createItemRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	item, err := h.createItemUC.Execute(r.Context(), req.Name)
	if errors.Is(err, entity.ErrNameRequired) {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "Item name is required"})
		return
	}
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "Error adding item"})
		return
	}

	respondJSON(w, http.StatusCreated, item)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
