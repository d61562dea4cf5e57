package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
)

type SearchHandler struct {
	searchUsecase usecase.SearchUC
	logger        logger.Logger
}

func NewSearchHandler(searchUsecase usecase.SearchUC, logger logger.Logger) *SearchHandler {
	return &SearchHandler{searchUsecase: searchUsecase, logger: logger}
}

// searchByForm
//
//	@Summary		Гибридный поиск
//	@Description	Поиск по тексту и/или изображению с фильтрами
//	@Tags			search
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			query				formData	string	false	"Текст запроса"
//	@Param			image				formData	file	false	"Изображение-образец"
//	@Param			limit				formData	int		false	"Размер выдачи"
//	@Param			region				formData	string	false	"full | upper | lower"
//	@Param			min_price			formData	int		false	"Минимальная цена"
//	@Param			max_price			formData	int		false	"Максимальная цена"
//	@Param			category			formData	string	false	"Категории через запятую"
//	@Param			exclude_category	formData	string	false	"Исключённые категории через запятую"
//	@Success		200					{object}	SearchResponse
//	@Failure		400					{object}	ErrorResponse
//	@Router			/search [post]
func (h *SearchHandler) searchByForm(w http.ResponseWriter, r *http.Request) {
	const (
		maxTotalRequestSize = 12 << 20
		maxMemory           = 12 << 20
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	req, err := parseSearchRequest(r, "query")
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	if files := r.MultipartForm.File["image"]; len(files) > 0 {
		if len(files) > 1 {
			WriteError(w, e.ErrTooManyImages)
			return
		}
		data, mimeType, err := readFile(files[0], maxFileSize)
		if err != nil {
			h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
			WriteError(w, err)
			return
		}
		req.Image, req.ImageMime = data, mimeType
	}

	h.search(w, r, req)
}

// searchByQuery
//
//	@Summary	Поиск по тексту
//	@Tags		search
//	@Produce	json
//	@Param		q		query		string	true	"Текст запроса"
//	@Param		limit	query		int		false	"Размер выдачи"
//	@Success	200		{object}	SearchResponse
//	@Router		/search [get]
func (h *SearchHandler) searchByQuery(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r, "q")
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	h.search(w, r, req)
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request, req *usecase.SearchReq) {
	res, err := h.searchUsecase.Search(r.Context(), req)
	if err != nil {
		writeUsecaseError(h.logger, w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toSearchResponse(res))
}

// parseSearchRequest читает параметры поиска из query string или формы.
func parseSearchRequest(r *http.Request, queryKey string) (*usecase.SearchReq, error) {
	limit, err := parseOptionalInt(r.FormValue("limit"), e.ErrInvalidLimit)
	if err != nil {
		return nil, err
	}

	region, ok := domain.ParseRegion(r.FormValue("region"))
	if !ok {
		return nil, fmt.Errorf("%w: %q", e.ErrInvalidRegion, r.FormValue("region"))
	}

	var filters domain.SearchFilters
	if filters.MinPrice, err = parseOptionalPrice(r.FormValue("min_price")); err != nil {
		return nil, err
	}
	if filters.MaxPrice, err = parseOptionalPrice(r.FormValue("max_price")); err != nil {
		return nil, err
	}
	if filters.MinPrice != nil && filters.MaxPrice != nil && *filters.MinPrice > *filters.MaxPrice {
		return nil, fmt.Errorf("%w: min_price > max_price", e.ErrInvalidPrice)
	}
	if filters.Categories, err = parseCategories(r.FormValue("category")); err != nil {
		return nil, err
	}
	if filters.ExcludeCategories, err = parseCategories(r.FormValue("exclude_category")); err != nil {
		return nil, err
	}
	if filters.ExcludeIDs, err = parseIDs(r.FormValue("exclude_ids")); err != nil {
		return nil, err
	}

	return usecase.NewSearchReq(r.FormValue(queryKey), nil, "", int(limit), region, filters), nil
}

func parseCategories(s string) ([]domain.Category, error) {
	var out []domain.Category
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, ok := domain.ParseCategory(part)
		if !ok {
			return nil, fmt.Errorf("%w: %q", e.ErrInvalidCategory, part)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: %q", e.ErrInvalidID, part)
		}
		out = append(out, id)
	}
	return out, nil
}

// writeUsecaseError пишет ответ и логирует ошибку с уровнем по её статусу.
func writeUsecaseError(log logger.Logger, w http.ResponseWriter, err error) {
	code, _ := ToHTTPResponse(err)
	if code >= http.StatusInternalServerError {
		log.Errorf(err, "%d %s", code, http.StatusText(code))
	} else {
		log.Warnf("%d %s: %v", code, http.StatusText(code), err)
	}
	WriteError(w, err)
}
