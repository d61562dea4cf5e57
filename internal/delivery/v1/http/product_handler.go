package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const (
	maxTotalRequestSize = 60 << 20
	maxMemory           = 32 << 20
)

type ProductHandler struct {
	productUsecase usecase.ProductUC
	healUsecase    usecase.HealUC
	logger         logger.Logger
}

func NewProductHandler(productUsecase usecase.ProductUC, healUsecase usecase.HealUC, logger logger.Logger) *ProductHandler {
	return &ProductHandler{productUsecase: productUsecase, healUsecase: healUsecase, logger: logger}
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Status    string `json:"status"`
	ProductID int64  `json:"product_id"`
	Answer    string `json:"answer"`
}

// registerProduct
//
//	@Summary		Регистрация нового товара
//	@Description	Создает товар с изображением и эмбеддингами. Недостающие векторы восстанавливаются асинхронно.
//	@Tags			products
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			name			formData	string	true	"Название товара"
//	@Param			description		formData	string	false	"Описание"
//	@Param			price			formData	int		true	"Цена в вонах"
//	@Param			stock_quantity	formData	int		false	"Остаток"
//	@Param			category		formData	string	true	"Tops | Bottoms | Outerwear | Dresses | Shoes | Accessories"
//	@Param			gender			formData	string	false	"Male | Female | Unisex"
//	@Param			image_url		formData	string	false	"URL изображения, если файлы не переданы"
//	@Param			images			formData	file	false	"Изображения товара"
//	@Success		201				{object}	ProductResponse
//	@Failure		400				{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/products [post]
func (p *ProductHandler) registerProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	req, err := parseProductForm(r)
	if err != nil {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	// без файлов допустим image_url; отсутствие обоих проверит usecase
	images, err := parseImages(r.MultipartForm.File["images"])
	if err != nil && !errors.Is(err, e.ErrNoImages) {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}
	req.Images = images

	product, err := p.productUsecase.RegisterProduct(r.Context(), req)
	if err != nil {
		writeUsecaseError(p.logger, w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, toProductResponse(product))
}

// analyzeProduct
//
//	@Summary		Регистрация товара по фото
//	@Description	Заполняет карточку с помощью модели. Переданные поля имеют приоритет.
//	@Tags			products
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image	formData	file	true	"Фото товара"
//	@Success		201		{object}	ProductResponse
//	@Failure		503		{object}	ErrorResponse	"Модель недоступна"
//	@Router			/products/analyze [post]
func (p *ProductHandler) analyzeProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	images, err := parseImages(r.MultipartForm.File["image"])
	if err == nil && len(images) > 1 {
		err = e.ErrTooManyImages
	}
	if err != nil {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	price, err := parseOptionalPrice(r.FormValue("price"))
	if err != nil {
		WriteError(w, err)
		return
	}
	stock, err := parseOptionalInt(r.FormValue("stock_quantity"), e.ErrInvalidStock)
	if err != nil {
		WriteError(w, err)
		return
	}

	product, err := p.productUsecase.AnalyzeAndRegister(r.Context(), &usecase.AnalyzeProductReq{
		Image:         images[0],
		Name:          strings.TrimSpace(r.FormValue("name")),
		Category:      r.FormValue("category"),
		Gender:        r.FormValue("gender"),
		Price:         price,
		StockQuantity: stock,
	})
	if err != nil {
		writeUsecaseError(p.logger, w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, toProductResponse(product))
}

// getProduct
//
//	@Summary	Карточка товара
//	@Tags		products
//	@Produce	json
//	@Param		id	path		int	true	"ID товара"
//	@Success	200	{object}	ProductResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/products/{id} [get]
func (p *ProductHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}

	product, err := p.productUsecase.GetProduct(r.Context(), id)
	if err != nil {
		writeUsecaseError(p.logger, w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toProductResponse(product))
}

// deleteProduct: ?hard=true удаляет строку, точки индекса и изображение.
func (p *ProductHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}

	hard := false
	if v := r.URL.Query().Get("hard"); v != "" {
		if hard, err = strconv.ParseBool(v); err != nil {
			WriteError(w, fmt.Errorf("%w: hard=%q", e.ErrStatusBadRequest, v))
			return
		}
	}

	if err := p.productUsecase.DeleteProduct(r.Context(), id, hard); err != nil {
		writeUsecaseError(p.logger, w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"status":     statusSuccess,
		"product_id": id,
		"hard":       hard,
	})
}

// recommend возвращает обработчик подборки в заданном режиме.
func (p *ProductHandler) recommend(mode usecase.RecommendMode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, err)
			return
		}

		res, err := p.productUsecase.Recommend(r.Context(), id, mode)
		if err != nil {
			writeUsecaseError(p.logger, w, err)
			return
		}

		WriteSuccess(w, http.StatusOK, &RecommendResponse{
			Status:   statusSuccess,
			Answer:   res.Answer,
			Products: toCandidates(res.Products),
		})
	}
}

// askProduct
//
//	@Summary	Вопрос о товаре
//	@Tags		products
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int			true	"ID товара"
//	@Param		body	body		askRequest	true	"Вопрос"
//	@Success	200		{object}	askResponse
//	@Failure	503		{object}	ErrorResponse	"Модель недоступна"
//	@Router		/products/{id}/ask [post]
func (p *ProductHandler) askProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}

	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		WriteError(w, fmt.Errorf("%w: %v", e.ErrStatusBadRequest, err))
		return
	}

	answer, err := p.productUsecase.Ask(r.Context(), id, req.Question)
	if err != nil {
		writeUsecaseError(p.logger, w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, &askResponse{Status: statusSuccess, ProductID: id, Answer: answer})
}

// healProduct синхронно восстанавливает повреждённые поля товара.
func (p *ProductHandler) healProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}

	report, err := p.healUsecase.HealProduct(r.Context(), id)
	if err != nil {
		writeUsecaseError(p.logger, w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toHealResponse(report))
}

func parseProductForm(r *http.Request) (*usecase.RegisterProductReq, error) {
	name := strings.TrimSpace(r.FormValue("name"))
	category := r.FormValue("category")
	priceStr := r.FormValue("price")

	if name == "" || category == "" || priceStr == "" {
		return nil, e.Wrap(fmt.Sprintf("name: %s, category: %s, price: %s", name, category, priceStr), e.ErrMissingFields)
	}

	price, err := parsePrice(priceStr)
	if err != nil {
		return nil, err
	}

	stock, err := parseOptionalInt(r.FormValue("stock_quantity"), e.ErrInvalidStock)
	if err != nil {
		return nil, err
	}

	return &usecase.RegisterProductReq{
		Name:          name,
		Description:   r.FormValue("description"),
		Price:         price,
		StockQuantity: stock,
		Category:      category,
		Gender:        r.FormValue("gender"),
		ImageURL:      strings.TrimSpace(r.FormValue("image_url")),
	}, nil
}
