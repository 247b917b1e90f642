package catalog

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"PointsCalc/pkg/kit"
)

const staleWarning = "changes may not survive a reload"

type Server struct {
	Store *Store
	Log   *zap.Logger

	writeLimiter *kit.IPRateLimiter
}

func (s *Server) Routes() http.Handler {
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.writeLimiter == nil {
		s.writeLimiter = kit.NewIPRateLimiter(0, writeWindow)
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := s.Store.Ping(ctx); err != nil {
			s.Log.Warn("readyz failed", zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/view", s.view)
	r.Get("/categories", s.listCategories)
	r.Get("/categories/{name}/items", s.listItems)

	r.Group(func(wr chi.Router) {
		wr.Use(s.writeLimiter.Middleware)

		wr.Post("/categories", s.createCategory)
		wr.Delete("/categories/{name}", s.deleteCategory)
		wr.Put("/active", s.selectCategory)

		wr.Post("/categories/{name}/items", s.addItem)
		wr.Put("/categories/{name}/items/{id}", s.updateItem)
		wr.Delete("/categories/{name}/items/{id}", s.deleteItem)

		wr.Delete("/catalog", s.reset)
	})

	return r
}

type tab struct {
	Name     string `json:"name"`
	NameHTML string `json:"name_html"`
	Active   bool   `json:"active"`
}

type card struct {
	ID            string  `json:"id"`
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	NameHTML      string  `json:"name_html"`
	Points        float64 `json:"points"`
	Price         float64 `json:"price"`
	ValuePerPoint float64 `json:"value_per_point"`
	BestDeal      bool    `json:"best_deal"`
	PriceDisplay  string  `json:"price_display"`
	ValueDisplay  string  `json:"value_display"`
}

type emptyState struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type viewResp struct {
	Tabs   []tab       `json:"tabs"`
	Active *string     `json:"active"`
	Items  []card      `json:"items,omitempty"`
	Empty  *emptyState `json:"empty,omitempty"`
}

type categoriesResp struct {
	Categories []string `json:"categories"`
	Active     *string  `json:"active"`
}

type itemReq struct {
	Name   string `json:"name"`
	Points Number `json:"points"`
	Price  Number `json:"price"`
}

func (q itemReq) item() Item {
	return Item{Name: q.Name, Points: float64(q.Points), Price: float64(q.Price)}
}

type createCategoryReq struct {
	Name string   `json:"name"`
	Item *itemReq `json:"item,omitempty"`
}

type selectReq struct {
	Name string `json:"name"`
}

type mutationResp struct {
	Category string  `json:"category,omitempty"`
	Active   *string `json:"active"`
	Item     *Item   `json:"item,omitempty"`
	Index    *int    `json:"index,omitempty"`
	Warning  string  `json:"warning,omitempty"`
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.render())
}

// render builds the tabs and the active category's ranked cards from the
// current store state.
func (s *Server) render() viewResp {
	names := s.Store.ListCategories()
	active, ok := s.Store.Active()

	v := viewResp{Tabs: make([]tab, 0, len(names))}
	for _, n := range names {
		v.Tabs = append(v.Tabs, tab{Name: n, NameHTML: html.EscapeString(n), Active: ok && n == active})
	}

	if !ok {
		v.Empty = &emptyState{Title: "Welcome!", Message: `Click "+ New Category" to get started.`}
		return v
	}
	v.Active = &active

	ranked, err := s.Store.Ranked(active)
	if err != nil || len(ranked) == 0 {
		v.Empty = &emptyState{Title: "No items yet", Message: "Add your first item to this category."}
		return v
	}
	v.Items = cards(ranked)
	return v
}

func cards(ranked []Ranked) []card {
	out := make([]card, 0, len(ranked))
	for _, it := range ranked {
		out = append(out, card{
			ID:            it.ID,
			Index:         it.Index,
			Name:          it.Name,
			NameHTML:      html.EscapeString(it.Name),
			Points:        it.Points,
			Price:         it.Price,
			ValuePerPoint: it.ValuePerPoint,
			BestDeal:      it.BestDeal,
			PriceDisplay:  fmt.Sprintf("$%.2f", it.Price),
			ValueDisplay:  fmt.Sprintf("$%.4f", it.ValuePerPoint),
		})
	}
	return out
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, categoriesResp{
		Categories: s.Store.ListCategories(),
		Active:     s.activePtr(),
	})
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	ranked, err := s.Store.Ranked(pathParam(r, "name"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, cards(ranked))
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	resp := mutationResp{}
	var warn string

	if req.Item != nil {
		// A new category with its first item: validate the item before the
		// category exists so a bad item leaves nothing behind.
		if _, err := validateItem(req.Item.item()); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
	}

	name, err := s.Store.CreateCategory(r.Context(), req.Name)
	if warn, err = s.persistWarning(err, warn); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	resp.Category = name

	if req.Item != nil {
		idx, it, err := s.Store.AddItem(r.Context(), name, req.Item.item())
		if warn, err = s.persistWarning(err, warn); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		resp.Item, resp.Index = &it, &idx
	}

	if err := s.Store.Select(name); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp.Active, resp.Warning = s.activePtr(), warn
	kit.WriteJSON(w, http.StatusCreated, resp)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}

	name := pathParam(r, "name")
	warn, err := s.persistWarning(s.Store.DeleteCategory(r.Context(), name), "")
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, mutationResp{Category: name, Active: s.activePtr(), Warning: warn})
}

func (s *Server) selectCategory(w http.ResponseWriter, r *http.Request) {
	var req selectReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if err := s.Store.Select(req.Name); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, s.render())
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var req itemReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	category := pathParam(r, "name")
	idx, it, err := s.Store.AddItem(r.Context(), category, req.item())
	warn, err := s.persistWarning(err, "")
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, mutationResp{
		Category: category,
		Active:   s.activePtr(),
		Item:     &it,
		Index:    &idx,
		Warning:  warn,
	})
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	var req itemReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	category := pathParam(r, "name")
	idx, it, err := s.Store.UpdateItemByID(r.Context(), category, pathParam(r, "id"), req.item())
	warn, err := s.persistWarning(err, "")
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, mutationResp{
		Category: category,
		Active:   s.activePtr(),
		Item:     &it,
		Index:    &idx,
		Warning:  warn,
	})
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}

	category := pathParam(r, "name")
	warn, err := s.persistWarning(s.Store.DeleteItemByID(r.Context(), category, pathParam(r, "id")), "")
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, mutationResp{Category: category, Active: s.activePtr(), Warning: warn})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if !confirmed(w, r) {
		return
	}

	warn, err := s.persistWarning(s.Store.Reset(r.Context()), "")
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, mutationResp{Active: s.activePtr(), Warning: warn})
}

// persistWarning turns a *PersistenceError into a user warning: the
// mutation went through and only the saved copy is stale. Other errors
// pass through untouched.
func (s *Server) persistWarning(err error, warn string) (string, error) {
	if err == nil {
		return warn, nil
	}
	if IsPersistenceError(err) {
		s.Log.Warn("catalog not persisted", zap.Error(err))
		return staleWarning, nil
	}
	return warn, err
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *ValidationError
		ie *IndexError
	)
	switch {
	case errors.As(err, &ve):
		kit.WriteError(w, r, http.StatusBadRequest, "Please fill in all fields with valid values",
			map[string]any{"field": ve.Field, "reason": ve.Msg})
	case errors.As(err, &ie):
		kit.WriteError(w, r, http.StatusNotFound, "stale item reference",
			map[string]any{"category": ie.Category, "index": ie.Index})
	case errors.Is(err, ErrCategoryNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "category not found", nil)
	case errors.Is(err, ErrItemNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "item not found", nil)
	default:
		s.Log.Error("catalog request failed", zap.Error(err), zap.String("path", r.URL.Path))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) activePtr() *string {
	if a, ok := s.Store.Active(); ok {
		return &a
	}
	return nil
}

// confirmed enforces ?confirm=true on destructive routes.
func confirmed(w http.ResponseWriter, r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if !ok {
		kit.WriteError(w, r, http.StatusPreconditionRequired, "confirmation required",
			map[string]any{"hint": "repeat the request with ?confirm=true"})
	}
	return ok
}

// pathParam returns a decoded route parameter. chi matches on the decoded
// path unless the request carries a RawPath (an escaped "/" for example),
// in which case the parameters are still escaped.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
