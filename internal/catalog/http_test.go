package catalog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"PointsCalc/internal/catalog"
	"PointsCalc/internal/kv"
)

type brokenPut struct{ *kv.MemStore }

func (brokenPut) Put(context.Context, string, []byte) error { return errors.New("quota exceeded") }

func newCatalogTS(t *testing.T, blob catalog.Blob, deps catalog.HTTPDeps) (*httptest.Server, *catalog.Store) {
	t.Helper()

	store, err := catalog.Open(context.Background(), blob, catalog.Options{Log: zap.NewNop()})
	require.NoError(t, err)

	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	deps.Service = "catalog"

	ts := httptest.NewServer(catalog.NewHandler(&catalog.Server{Store: store, Log: zap.NewNop()}, deps))
	t.Cleanup(ts.Close)
	return ts, store
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

type view struct {
	Tabs []struct {
		Name   string `json:"name"`
		Active bool   `json:"active"`
	} `json:"tabs"`
	Active *string `json:"active"`
	Items  []struct {
		ID           string  `json:"id"`
		Index        int     `json:"index"`
		Name         string  `json:"name"`
		NameHTML     string  `json:"name_html"`
		Value        float64 `json:"value_per_point"`
		BestDeal     bool    `json:"best_deal"`
		PriceDisplay string  `json:"price_display"`
		ValueDisplay string  `json:"value_display"`
	} `json:"items"`
	Empty *struct {
		Title string `json:"title"`
	} `json:"empty"`
}

type mutation struct {
	Category string        `json:"category"`
	Active   *string       `json:"active"`
	Item     *catalog.Item `json:"item"`
	Index    *int          `json:"index"`
	Warning  string        `json:"warning"`
}

func getView(t *testing.T, base string) view {
	t.Helper()
	resp, raw := doJSON(t, http.MethodGet, base+"/view", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var v view
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestCatalogAPI_HappyPath(t *testing.T) {
	ts, _ := newCatalogTS(t, kv.NewMemStore(), catalog.HTTPDeps{})

	v := getView(t, ts.URL)
	require.NotNil(t, v.Empty)
	assert.Equal(t, "Welcome!", v.Empty.Title)
	assert.Nil(t, v.Active)

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/categories", map[string]any{
		"name": "Flights",
		"item": map[string]any{"name": "A", "points": "100", "price": 50},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/categories/Flights/items", map[string]any{
		"name": "<b>B</b>", "points": 200, "price": "150",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var added mutation
	require.NoError(t, json.Unmarshal(raw, &added))
	require.NotNil(t, added.Item)
	require.NotNil(t, added.Index)
	assert.Equal(t, 1, *added.Index)
	assert.Empty(t, added.Warning)

	v = getView(t, ts.URL)
	require.NotNil(t, v.Active)
	assert.Equal(t, "Flights", *v.Active)
	require.Len(t, v.Items, 2)
	assert.Equal(t, "<b>B</b>", v.Items[0].Name)
	assert.Equal(t, "&lt;b&gt;B&lt;/b&gt;", v.Items[0].NameHTML)
	assert.True(t, v.Items[0].BestDeal)
	assert.Equal(t, "$150.00", v.Items[0].PriceDisplay)
	assert.Equal(t, "$0.7500", v.Items[0].ValueDisplay)
	assert.Equal(t, "A", v.Items[1].Name)
	assert.False(t, v.Items[1].BestDeal)

	resp, raw = doJSON(t, http.MethodPut, ts.URL+"/categories/Flights/items/"+added.Item.ID, map[string]any{
		"name": "B", "points": 200, "price": 10,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	v = getView(t, ts.URL)
	assert.Equal(t, "A", v.Items[0].Name)
	assert.Equal(t, added.Item.ID, v.Items[1].ID)
	assert.Equal(t, 1, v.Items[1].Index)
}

func TestCatalogAPI_Validation(t *testing.T) {
	ts, store := newCatalogTS(t, kv.NewMemStore(), catalog.HTTPDeps{})

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/categories", map[string]any{"name": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(raw))

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/categories", map[string]any{
		"name": "Flights",
		"item": map[string]any{"name": "", "points": 10, "price": 5},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(raw))
	assert.Empty(t, store.ListCategories())

	for _, body := range []map[string]any{
		{"name": "x", "points": "ten", "price": 5},
		{"name": "x", "points": 10, "price": 0},
		{"name": "x", "points": -3, "price": 1},
	} {
		resp, raw = doJSON(t, http.MethodPost, ts.URL+"/categories/Flights/items", body, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(raw))
	}
	assert.Empty(t, store.ListCategories())

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/categories/Flights/items", map[string]any{
		"name": "x", "points": 1, "price": 1, "color": "red",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(raw))
}

func TestCatalogAPI_DestructiveNeedsConfirm(t *testing.T) {
	ts, store := newCatalogTS(t, kv.NewMemStore(), catalog.HTTPDeps{})
	ctx := context.Background()

	_, a, err := store.AddItem(ctx, "Gift Cards", catalog.Item{Name: "A", Points: 100, Price: 1})
	require.NoError(t, err)
	_, _, err = store.AddItem(ctx, "Hotels", catalog.Item{Name: "H", Points: 100, Price: 1})
	require.NoError(t, err)

	itemURL := ts.URL + "/categories/" + url.PathEscape("Gift Cards") + "/items/" + a.ID

	resp, _ := doJSON(t, http.MethodDelete, itemURL, nil, nil)
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)
	items, _ := store.Items("Gift Cards")
	assert.Len(t, items, 1)

	resp, raw := doJSON(t, http.MethodDelete, itemURL+"?confirm=true", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var m mutation
	require.NoError(t, json.Unmarshal(raw, &m))
	require.NotNil(t, m.Active)
	assert.Equal(t, "Hotels", *m.Active)
	assert.Equal(t, []string{"Hotels"}, store.ListCategories())

	resp, _ = doJSON(t, http.MethodDelete, itemURL+"?confirm=true", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/categories/Hotels", nil, nil)
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/categories/Hotels?confirm=1", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, store.ListCategories())

	v := getView(t, ts.URL)
	assert.Nil(t, v.Active)
	require.NotNil(t, v.Empty)
}

func TestCatalogAPI_SelectAndList(t *testing.T) {
	ts, store := newCatalogTS(t, kv.NewMemStore(), catalog.HTTPDeps{})
	ctx := context.Background()

	_, _, _ = store.AddItem(ctx, "Flights", catalog.Item{Name: "A", Points: 1, Price: 1})
	_, err := store.CreateCategory(ctx, "Hotels")
	require.NoError(t, err)

	resp, raw := doJSON(t, http.MethodPut, ts.URL+"/active", map[string]any{"name": "Hotels"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var v view
	require.NoError(t, json.Unmarshal(raw, &v))
	require.NotNil(t, v.Empty)
	assert.Equal(t, "No items yet", v.Empty.Title)
	assert.True(t, v.Tabs[1].Active)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/active", map[string]any{"name": "Cars"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/categories", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"categories":["Flights","Hotels"],"active":"Hotels"}`, string(raw))

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/categories/Cars/items", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCatalogAPI_SaveFailureWarns(t *testing.T) {
	ts, store := newCatalogTS(t, brokenPut{kv.NewMemStore()}, catalog.HTTPDeps{})

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/categories/Flights/items", map[string]any{
		"name": "A", "points": 100, "price": 50,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var m mutation
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.NotEmpty(t, m.Warning)

	items, err := store.Items("Flights")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCatalogAPI_CategoryNamesWithEscapes(t *testing.T) {
	ts, store := newCatalogTS(t, kv.NewMemStore(), catalog.HTTPDeps{})
	ctx := context.Background()

	for _, name := range []string{"50%20off", "Air/Rail", "Gift Cards"} {
		_, it, err := store.AddItem(ctx, name, catalog.Item{Name: "A", Points: 100, Price: 50})
		require.NoError(t, err)

		base := ts.URL + "/categories/" + url.PathEscape(name)

		resp, raw := doJSON(t, http.MethodGet, base+"/items", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, name+": "+string(raw))

		resp, raw = doJSON(t, http.MethodPut, base+"/items/"+url.PathEscape(it.ID),
			map[string]any{"name": "B", "points": 100, "price": 60}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, name+": "+string(raw))

		items, err := store.Items(name)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "B", items[0].Name)

		resp, raw = doJSON(t, http.MethodDelete, base+"?confirm=true", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, name+": "+string(raw))
		_, err = store.Items(name)
		assert.ErrorIs(t, err, catalog.ErrCategoryNotFound)
	}
}

func TestCatalogAPI_Reset(t *testing.T) {
	ts, store := newCatalogTS(t, kv.NewMemStore(), catalog.HTTPDeps{})
	_, _, _ = store.AddItem(context.Background(), "Flights", catalog.Item{Name: "A", Points: 1, Price: 1})

	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/catalog", nil, nil)
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/catalog?confirm=true", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, store.ListCategories())
}

func TestCatalogAPI_WriteLimit(t *testing.T) {
	ts, _ := newCatalogTS(t, kv.NewMemStore(), catalog.HTTPDeps{WriteLimitPerMin: 1})

	body := map[string]any{"name": "A", "points": 1, "price": 1}
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/categories/Flights/items", body, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/categories/Flights/items", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/view", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCatalogAPI_MetricsAndProbes(t *testing.T) {
	reg := prometheus.NewRegistry()
	ts, _ := newCatalogTS(t, kv.NewMemStore(), catalog.HTTPDeps{
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   "tok",
	})

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/metrics", nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/metrics", nil, map[string]string{"Authorization": "Bearer tok"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestCatalogAPI_NotReady(t *testing.T) {
	blob := kv.NewMemStore()
	ts, _ := newCatalogTS(t, blob, catalog.HTTPDeps{})
	require.NoError(t, blob.Close())

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
