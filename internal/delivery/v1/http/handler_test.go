package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type fakeSearchUC struct {
	last *usecase.SearchReq
	res  *usecase.SearchRes
	err  error
}

func (f *fakeSearchUC) Search(_ context.Context, req *usecase.SearchReq) (*usecase.SearchRes, error) {
	f.last = req
	return f.res, f.err
}

type fakeProductUC struct {
	registered *usecase.RegisterProductReq
	analyzed   *usecase.AnalyzeProductReq
	deleted    []bool
	mode       usecase.RecommendMode
	question   string
	err        error
}

func (f *fakeProductUC) RegisterProduct(_ context.Context, req *usecase.RegisterProductReq) (*domain.Product, error) {
	f.registered = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Product{ID: 10, Name: req.Name, Price: req.Price, Category: domain.Category(req.Category)}, nil
}

func (f *fakeProductUC) AnalyzeAndRegister(_ context.Context, req *usecase.AnalyzeProductReq) (*domain.Product, error) {
	f.analyzed = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Product{ID: 11, Name: "레더 자켓"}, nil
}

func (f *fakeProductUC) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Product{ID: id, Name: "화이트 셔츠", Category: domain.CategoryTops}, nil
}

func (f *fakeProductUC) DeleteProduct(_ context.Context, _ int64, hard bool) error {
	f.deleted = append(f.deleted, hard)
	return f.err
}

func (f *fakeProductUC) Recommend(_ context.Context, id int64, mode usecase.RecommendMode) (*usecase.RecommendRes, error) {
	f.mode = mode
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.RecommendRes{Answer: "추천", Products: []domain.Candidate{{Product: domain.Product{ID: id + 1}}}}, nil
}

func (f *fakeProductUC) Ask(_ context.Context, _ int64, question string) (string, error) {
	f.question = question
	if f.err != nil {
		return "", f.err
	}
	return "소가죽입니다.", nil
}

type fakeHealUC struct{}

func (fakeHealUC) HealProduct(_ context.Context, id int64) (*usecase.HealReport, error) {
	return &usecase.HealReport{ProductID: id, Text: true, Regions: []domain.Region{domain.RegionUpper}}, nil
}

func (fakeHealUC) Backfill(context.Context, int, int) (*usecase.BackfillRes, error) {
	return &usecase.BackfillRes{}, nil
}

type fakeEngine struct {
	calls int
	err   error
}

func (f *fakeEngine) Reinitialize(context.Context) error {
	f.calls++
	return f.err
}

type testAPI struct {
	handler http.Handler
	search  *fakeSearchUC
	product *fakeProductUC
	engine  *fakeEngine
}

func newTestAPI(checks ...HealthCheck) *testAPI {
	score := 0.93
	api := &testAPI{
		search: &fakeSearchUC{res: &usecase.SearchRes{
			Strategy: domain.StrategyTextVector,
			Path:     domain.SearchPathInternal,
			Answer:   "'자켓' 검색 결과입니다.",
			Intent:   domain.SearchIntent{Query: "자켓", CoreKeyword: "자켓", Region: domain.RegionFull},
			Products: []domain.Candidate{
				{Product: domain.Product{ID: 1, Name: "블랙 자켓"}, Score: &score},
				{Product: domain.Product{ID: 2, Name: "네이비 자켓"}},
			},
		}},
		product: &fakeProductUC{},
		engine:  &fakeEngine{},
	}

	r := chi.NewRouter()
	NewRouter(r, logger.NewNop()).Init(Handlers{
		Search:  api.search,
		Product: api.product,
		Heal:    fakeHealUC{},
		Engine:  api.engine,
		Checks:  checks,
	})
	api.handler = r
	return api
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile(name, name+".png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSearchByQuery(t *testing.T) {
	api := newTestAPI()

	rec := api.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q="+url.QueryEscape("자켓")+"&limit=5&min_price=10000&category=tops,Outerwear", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "text_vector", body["search_strategy"])
	assert.Equal(t, "internal", body["search_path"])
	assert.Nil(t, body["evidence"])

	products := body["products"].([]any)
	require.Len(t, products, 2)
	assert.InDelta(t, 0.93, products[0].(map[string]any)["similarity"], 1e-9)
	assert.Nil(t, products[1].(map[string]any)["similarity"])

	req := api.search.last
	assert.Equal(t, "자켓", req.Query)
	assert.Equal(t, 5, req.Limit)
	require.NotNil(t, req.Filters.MinPrice)
	assert.Equal(t, int64(10000), *req.Filters.MinPrice)
	assert.Equal(t, []domain.Category{domain.CategoryTops, domain.CategoryOuterwear}, req.Filters.Categories)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSearchValidationErrors(t *testing.T) {
	api := newTestAPI()

	cases := map[string]string{
		"region":   "/api/v1/search?q=a&region=middle",
		"limit":    "/api/v1/search?q=a&limit=ten",
		"category": "/api/v1/search?q=a&category=hats",
		"price":    "/api/v1/search?q=a&min_price=5000&max_price=100",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rec := api.do(httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "error", decode(t, rec)["status"])
		})
	}
}

func TestSearchByFormWithImage(t *testing.T) {
	api := newTestAPI()

	body, contentType := multipartBody(t, map[string]string{"query": "이거랑 비슷한 셔츠", "region": "upper"}, map[string][]byte{"image": pngHeader})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", body)
	req.Header.Set("Content-Type", contentType)

	rec := api.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	got := api.search.last
	assert.Equal(t, "image/png", got.ImageMime)
	assert.Equal(t, pngHeader, got.Image)
	assert.Equal(t, domain.RegionUpper, got.Region)
}

func TestSearchByFormRejects(t *testing.T) {
	api := newTestAPI()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":"a"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, api.do(req).Code)

	body, contentType := multipartBody(t, map[string]string{"query": "a"}, map[string][]byte{"image": []byte("plain text")})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/search", body)
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusUnsupportedMediaType, api.do(req).Code)
}

func TestSearchStorageFailure(t *testing.T) {
	api := newTestAPI()
	api.search.err = e.Wrap("SearchUseCase.Search", e.ErrStorage)

	rec := api.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q="+url.QueryEscape("자켓"), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, e.ErrInternalServerError.Error(), decode(t, rec)["message"])
}

func TestRegisterProduct(t *testing.T) {
	api := newTestAPI()

	body, contentType := multipartBody(t, map[string]string{
		"name":           "블랙 자켓",
		"price":          "129,000",
		"stock_quantity": "3",
		"category":       "Outerwear",
		"gender":         "male",
	}, map[string][]byte{"images": pngHeader})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", body)
	req.Header.Set("Content-Type", contentType)

	rec := api.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(10), decode(t, rec)["id"])

	got := api.product.registered
	assert.Equal(t, int64(129000), got.Price)
	assert.Equal(t, int64(3), got.StockQuantity)
	require.Len(t, got.Images, 1)
	assert.Equal(t, "image/png", got.Images[0].MimeType)
}

func TestRegisterProductValidation(t *testing.T) {
	api := newTestAPI()

	body, contentType := multipartBody(t, map[string]string{"name": "자켓", "category": "Outerwear"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", body)
	req.Header.Set("Content-Type", contentType)
	rec := api.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, e.ErrMissingFields.Error(), decode(t, rec)["message"])

	body, contentType = multipartBody(t, map[string]string{"name": "자켓", "category": "Outerwear", "price": "10.5"}, nil)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/products", body)
	req.Header.Set("Content-Type", contentType)
	rec = api.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, e.ErrPricePrecision.Error(), decode(t, rec)["message"])
	assert.Nil(t, api.product.registered)
}

func TestAnalyzeProduct(t *testing.T) {
	api := newTestAPI()

	body, contentType := multipartBody(t, map[string]string{"price": "99000"}, map[string][]byte{"image": pngHeader})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/analyze", body)
	req.Header.Set("Content-Type", contentType)

	rec := api.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, api.product.analyzed.Price)
	assert.Equal(t, int64(99000), *api.product.analyzed.Price)

	api.product.err = e.Wrap("Engine.AnalyzeProductImage", e.ErrModelUnavailable)
	body, contentType = multipartBody(t, nil, map[string][]byte{"image": pngHeader})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/products/analyze", body)
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusServiceUnavailable, api.do(req).Code)
}

func TestProductRoutes(t *testing.T) {
	api := newTestAPI()

	rec := api.do(httptest.NewRequest(http.MethodGet, "/api/v1/products/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "화이트 셔츠", decode(t, rec)["name"])

	assert.Equal(t, http.StatusBadRequest, api.do(httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil)).Code)

	require.Equal(t, http.StatusOK, api.do(httptest.NewRequest(http.MethodDelete, "/api/v1/products/7?hard=true", nil)).Code)
	require.Equal(t, http.StatusOK, api.do(httptest.NewRequest(http.MethodDelete, "/api/v1/products/7", nil)).Code)
	assert.Equal(t, []bool{true, false}, api.product.deleted)

	modes := map[string]usecase.RecommendMode{
		"related-price": usecase.RecommendByPrice,
		"coordination":  usecase.RecommendByCoordination,
		"related-color": usecase.RecommendByColor,
		"related-style": usecase.RecommendByStyle,
	}
	for path, mode := range modes {
		rec := api.do(httptest.NewRequest(http.MethodGet, "/api/v1/products/7/"+path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, mode, api.product.mode)
		assert.Len(t, decode(t, rec)["products"], 1)
	}

	rec = api.do(httptest.NewRequest(http.MethodPost, "/api/v1/products/7/heal", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"upper"}, decode(t, rec)["regions"])
}

func TestProductNotFound(t *testing.T) {
	api := newTestAPI()
	api.product.err = e.Wrap("ProductUseCase.GetProduct", e.ErrProductNotFound)

	rec := api.do(httptest.NewRequest(http.MethodGet, "/api/v1/products/7", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAskProduct(t *testing.T) {
	api := newTestAPI()

	rec := api.do(httptest.NewRequest(http.MethodPost, "/api/v1/products/7/ask", strings.NewReader(`{"question":"소재가 뭐예요?"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "소가죽입니다.", decode(t, rec)["answer"])
	assert.Equal(t, "소재가 뭐예요?", api.product.question)

	assert.Equal(t, http.StatusBadRequest, api.do(httptest.NewRequest(http.MethodPost, "/api/v1/products/7/ask", strings.NewReader(`{`))).Code)

	api.product.err = e.Wrap("ProductUseCase.Ask", e.ErrModelUnavailable)
	rec = api.do(httptest.NewRequest(http.MethodPost, "/api/v1/products/7/ask", strings.NewReader(`{"question":"?"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminAndHealth(t *testing.T) {
	api := newTestAPI(
		HealthCheck{Name: "postgres", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)

	rec := api.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "ok", body["dependencies"].(map[string]any)["postgres"])

	rec = api.do(httptest.NewRequest(http.MethodPost, "/api/v1/admin/engine/reinitialize", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, api.engine.calls)

	rec = api.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		err  error
	}{
		{"129000", 129000, nil},
		{" 129,000 ", 129000, nil},
		{"0", 0, nil},
		{"1000.00", 1000, nil},
		{"10.5", 0, e.ErrPricePrecision},
		{"-1", 0, e.ErrInvalidPrice},
		{"abc", 0, e.ErrInvalidPrice},
		{"", 0, e.ErrInvalidPrice},
		{"100000000000", 0, e.ErrInvalidPrice},
	}

	for _, tc := range cases {
		got, err := parsePrice(tc.in)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestToHTTPResponse(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{e.Wrap("op", e.ErrInvalidCategory), http.StatusBadRequest},
		{e.Wrap("op", e.ErrEmptySearchRequest), http.StatusBadRequest},
		{e.Wrap("op", e.ErrProductNotFound), http.StatusNotFound},
		{e.Wrap("op", e.ErrFileTooLarge), http.StatusRequestEntityTooLarge},
		{e.Wrap("op", e.ErrModelUnavailable), http.StatusServiceUnavailable},
		{e.Wrap("op", e.ErrStorage), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		code, _ := ToHTTPResponse(tc.err)
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}
