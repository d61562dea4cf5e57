package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/metrics"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
)

const (
	maxProductImages    = 5
	recommendLimit      = 5
	priceBandPercent    = 15
	coordinationKwCount = 5
	styleKwCount        = 3
)

// ProductUseCase реализует управление каталогом и подборки по товару.
type ProductUseCase struct {
	productRepo  ProductRepository
	store        VectorStore
	visualIndex  VisualIndex // nil, если Qdrant не настроен
	outbox       OutboxRepository
	txManager    TxManager
	imagesInfra  ImagesInfra
	engine       ModelEngine
	searchCache  SearchCacheRepository
	productCache ProductCacheRepository
	logger       logger.Logger
}

func NewProductUC(
	productRepo ProductRepository,
	store VectorStore,
	visualIndex VisualIndex,
	outbox OutboxRepository,
	txManager TxManager,
	imagesInfra ImagesInfra,
	engine ModelEngine,
	searchCache SearchCacheRepository,
	productCache ProductCacheRepository,
	logger logger.Logger,
) *ProductUseCase {
	return &ProductUseCase{
		productRepo:  productRepo,
		store:        store,
		visualIndex:  visualIndex,
		outbox:       outbox,
		txManager:    txManager,
		imagesInfra:  imagesInfra,
		engine:       engine,
		searchCache:  searchCache,
		productCache: productCache,
		logger:       logger,
	}
}

// RegisterProduct сохраняет товар с изображением и эмбеддингами. Сбой модели не мешает
// регистрации: недостающие векторы ставятся в очередь восстановления в той же транзакции.
func (p *ProductUseCase) RegisterProduct(ctx context.Context, req *RegisterProductReq) (_ *domain.Product, err error) {
	const op = "ProductUseCase.RegisterProduct"

	product, err := p.validateProduct(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var uploadedKeys []string
	// Если произошла ошибка, загруженные изображения удаляются
	defer func() {
		if err != nil && len(uploadedKeys) > 0 {
			p.logger.Warnf(
				"Cleaning up orphaned images after registration failure. product_name: %s, error: %v",
				req.Name,
				err,
			)
			p.imagesInfra.CleanupImages(uploadedKeys)
		}
	}()

	var image []byte
	if len(req.Images) > 0 {
		uploaded, err := p.imagesInfra.UploadImages(ctx, NewUploadImagesReq(req.Name, req.Images))
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		for _, img := range uploaded.Images {
			uploadedKeys = append(uploadedKeys, img.Key)
		}
		product.ImageKey = uploaded.Images[0].Key
		product.ImageURL = uploaded.Images[0].URL
		image = req.Images[0].Data
	} else {
		product.ImageURL = strings.TrimSpace(req.ImageURL)
		fetched, _, fetchErr := p.imagesInfra.FetchImage(ctx, "", product.ImageURL)
		if fetchErr != nil {
			// без изображения товар регистрируется, визуальные векторы восстановит heal
			p.logger.Warnf("fetch image %s for %q: %v", product.ImageURL, product.Name, fetchErr)
		}
		image = fetched
	}

	product.Vectors = p.embedProduct(ctx, product, image)
	if n := product.Vectors.Normalize(); n > 0 {
		metrics.VectorRepairsTotal.WithLabelValues("register").Add(float64(n))
	}

	var created *domain.Product
	err = p.txManager.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = p.productRepo.Create(ctx, product)
		if err != nil {
			return err
		}

		if !created.Health.Broken() {
			return nil
		}

		event, err := NewHealEvent(created.ID, "register")
		if err != nil {
			return err
		}
		return p.outbox.Create(ctx, event)
	})
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrStorage, err))
	}

	p.mirrorVisuals(ctx, created)
	p.invalidate(ctx, created.ID)

	p.logger.Infof("registered product %d %q (broken=%t)", created.ID, created.Name, created.Health.Broken())
	return created, nil
}

// AnalyzeAndRegister заполняет карточку по фото с помощью модели и регистрирует товар.
// Явно переданные поля имеют приоритет над ответом модели.
func (p *ProductUseCase) AnalyzeAndRegister(ctx context.Context, req *AnalyzeProductReq) (*domain.Product, error) {
	const op = "ProductUseCase.AnalyzeAndRegister"

	if len(req.Image.Data) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}

	draft, err := p.engine.AnalyzeProductImage(ctx, req.Image.Data, req.Image.MimeType)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	reg := &RegisterProductReq{
		Name:          firstNonEmpty(req.Name, draft.Name),
		Description:   draft.Description,
		StockQuantity: req.StockQuantity,
		Category:      firstNonEmpty(req.Category, draft.Category),
		Gender:        req.Gender,
		Images:        []ProductImage{req.Image},
	}
	if reg.Gender == "" {
		// пол из ответа модели берётся, только если он из известного множества
		if g, ok := domain.ParseGender(draft.Gender); ok {
			reg.Gender = string(g)
		}
	}
	switch {
	case req.Price != nil:
		reg.Price = *req.Price
	case draft.Price != nil:
		reg.Price = *draft.Price
	}

	return p.RegisterProduct(ctx, reg)
}

// GetProduct возвращает карточку товара, сначала из кэша.
func (p *ProductUseCase) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	const op = "ProductUseCase.GetProduct"

	if id <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidID)
	}

	cached, err := p.productCache.GetProducts(ctx, []int64{id})
	if err != nil {
		p.logger.Warnf("product cache unavailable: %v", e.Wrap(op, err))
	} else if product, ok := cached[id]; ok {
		return &product, nil
	}

	product, err := p.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Фоновое добавление продукта в хэш
	go func(product domain.Product) {
		bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if err := p.productCache.SetProducts(bgCtx, []domain.Product{product}); err != nil {
			p.logger.Warnf("Failed to cache products in background: %v", e.Wrap(op, err))
		}
	}(*product)

	return product, nil
}

// DeleteProduct мягко (deleted_at) или полностью удаляет товар.
// При полном удалении убираются также точки индекса и изображение.
func (p *ProductUseCase) DeleteProduct(ctx context.Context, id int64, hard bool) error {
	const op = "ProductUseCase.DeleteProduct"

	if id <= 0 {
		return e.Wrap(op, e.ErrInvalidID)
	}

	if !hard {
		if err := p.productRepo.SoftDelete(ctx, id); err != nil {
			return e.Wrap(op, err)
		}
		p.invalidate(ctx, id)
		return nil
	}

	// полное удаление доступно и для уже мягко удалённых товаров
	found, err := p.productRepo.GetByIDs(ctx, []int64{id})
	if err != nil {
		return e.Wrap(op, err)
	}
	if len(found) == 0 {
		return e.Wrap(op, e.ErrProductNotFound)
	}
	product := found[0]

	if err := p.productRepo.HardDelete(ctx, id); err != nil {
		return e.Wrap(op, err)
	}

	if p.visualIndex != nil {
		if err := p.visualIndex.Delete(ctx, id); err != nil {
			p.logger.Warnf("Failed to delete visual point of product %d: %v", id, e.Wrap(op, err))
		}
	}
	if product.ImageKey != "" {
		p.imagesInfra.CleanupImages([]string{product.ImageKey})
	}

	p.invalidate(ctx, id)
	return nil
}

// Recommend подбирает до пяти товаров, связанных с данным, по текстовому вектору.
func (p *ProductUseCase) Recommend(ctx context.Context, id int64, mode RecommendMode) (*RecommendRes, error) {
	const op = "ProductUseCase.Recommend"

	if id <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidID)
	}

	product, err := p.productRepo.GetWithVectors(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var (
		text    string
		filters = domain.SearchFilters{ExcludeIDs: []int64{product.ID}}
		answer  string
	)

	switch mode {
	case RecommendByPrice:
		minPrice := product.Price * (100 - priceBandPercent) / 100
		maxPrice := product.Price * (100 + priceBandPercent) / 100
		filters.MinPrice, filters.MaxPrice = &minPrice, &maxPrice
		answer = fmt.Sprintf("'%s'와 비슷한 가격대의 상품입니다.", product.Name)

	case RecommendByCoordination:
		kws := p.suggestKeywords(ctx, fmt.Sprintf(
			"'%s'(%s)와 함께 코디하기 좋은 다른 종류의 패션 아이템 키워드 %d개를 쉼표로 구분해 키워드만 답하세요.",
			product.Name, product.Category, coordinationKwCount), coordinationKwCount)
		text = product.Name + " 코디"
		if len(kws) > 0 {
			text += ", " + strings.Join(kws, ", ")
		}
		filters.ExcludeCategories = []domain.Category{product.Category}
		answer = fmt.Sprintf("'%s'와 어울리는 코디 아이템입니다.", product.Name)

	case RecommendByColor:
		color := "다른"
		if kws := p.suggestKeywords(ctx, fmt.Sprintf(
			"'%s'와 같은 디자인으로 추천할 다른 색상 하나를 한국어 단어 하나로만 답하세요.", product.Name), 1); len(kws) > 0 {
			color = kws[0]
		}
		text = fmt.Sprintf("%s과 동일한 디자인, %s 색상", product.Name, color)
		answer = fmt.Sprintf("'%s'의 %s 색상 상품입니다.", product.Name, color)

	case RecommendByStyle:
		kws := p.suggestKeywords(ctx, fmt.Sprintf(
			"'%s'의 스타일을 나타내는 키워드 %d개를 쉼표로 구분해 키워드만 답하세요.", product.Name, styleKwCount), styleKwCount)
		text = fmt.Sprintf("다른 브랜드, %s의 %s 상품", product.Category, strings.Join(kws, " "))
		filters.Categories = []domain.Category{product.Category}
		answer = fmt.Sprintf("'%s'와 비슷한 스타일의 다른 상품입니다.", product.Name)

	default:
		return nil, e.Wrap(op, fmt.Errorf("%w: unknown recommend mode %q", e.ErrStatusBadRequest, mode))
	}

	vector, err := p.recommendVector(ctx, product, text)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	found, err := p.store.SearchText(ctx, vector, filters, recommendLimit)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &RecommendRes{Answer: answer, Products: found}, nil
}

// Ask отвечает на вопрос о товаре, используя его карточку как контекст.
func (p *ProductUseCase) Ask(ctx context.Context, id int64, question string) (string, error) {
	const op = "ProductUseCase.Ask"

	question = strings.TrimSpace(question)
	if question == "" {
		return "", e.Wrap(op, e.ErrMissingFields)
	}

	product, err := p.GetProduct(ctx, id)
	if err != nil {
		return "", e.Wrap(op, err)
	}

	prompt := fmt.Sprintf(`당신은 패션 쇼핑몰의 상품 상담원입니다. 아래 상품 정보만 근거로 한국어로 간결하게 답하세요.
정보에 없는 내용은 모른다고 답하세요.

상품명: %s
카테고리: %s
가격: %d원
설명: %s

질문: %s`, product.Name, product.Category, product.Price, product.Description, question)

	answer, err := p.engine.GenerateText(ctx, prompt)
	if err != nil {
		return "", e.Wrap(op, err)
	}

	return answer, nil
}

// validateProduct проверяет запрос и строит из него товар.
func (p *ProductUseCase) validateProduct(req *RegisterProductReq) (*domain.Product, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, e.ErrProductNameRequired
	}

	if req.Price < 0 {
		return nil, e.ErrInvalidPrice
	}

	if req.StockQuantity < 0 {
		return nil, e.ErrInvalidStock
	}

	category, ok := domain.ParseCategory(req.Category)
	if !ok {
		return nil, fmt.Errorf("%w: %q", e.ErrInvalidCategory, req.Category)
	}

	gender, ok := domain.ParseGender(req.Gender)
	if !ok {
		return nil, fmt.Errorf("%w: %q", e.ErrInvalidGender, req.Gender)
	}

	if len(req.Images) == 0 && strings.TrimSpace(req.ImageURL) == "" {
		return nil, e.ErrNoImages
	}

	if len(req.Images) > maxProductImages {
		return nil, e.ErrTooManyImages
	}

	return domain.NewProduct(req.Name, req.Description, req.Price, req.StockQuantity, category, gender), nil
}

// embedProduct параллельно считает текстовый и визуальные векторы.
// Неполученные векторы остаются nil.
func (p *ProductUseCase) embedProduct(ctx context.Context, product *domain.Product, image []byte) domain.ProductVectors {
	var (
		vectors domain.ProductVectors
		wg      sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		vec, err := p.engine.EmbedText(ctx, ProductText(product.Name, product.Category, product.Description))
		if err != nil {
			p.logger.Warnf("text embedding for %q unavailable: %v", product.Name, err)
			return
		}
		vectors.Text = vec
	}()

	if len(image) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			regions, err := p.engine.EmbedImageRegions(ctx, image, domain.Regions())
			if err != nil {
				p.logger.Warnf("image embedding for %q incomplete: %v", product.Name, err)
			}
			for r, vec := range regions {
				vectors.SetVisual(r, vec)
			}
		}()
	}

	wg.Wait()

	return vectors
}

// mirrorVisuals копирует визуальные векторы во внешний индекс. Сбой не отменяет запись.
func (p *ProductUseCase) mirrorVisuals(ctx context.Context, product *domain.Product) {
	if p.visualIndex == nil {
		return
	}

	if err := p.visualIndex.Upsert(ctx, domain.NewVisualPoint(product)); err != nil {
		p.logger.Warnf("Failed to mirror visual vectors of product %d: %v", product.ID, err)
	}
}

// invalidate сбрасывает кэш карточки и поколение кэша поиска.
func (p *ProductUseCase) invalidate(ctx context.Context, id int64) {
	if err := p.productCache.DeleteProducts(ctx, []int64{id}); err != nil {
		p.logger.Warnf("Failed to delete products from cache: %v", err)
	}

	if err := p.searchCache.BumpGeneration(ctx); err != nil {
		p.logger.Warnf("Failed to bump search cache generation: %v", err)
	}
}

// recommendVector: пустой text означает «использовать сохранённый вектор товара».
func (p *ProductUseCase) recommendVector(ctx context.Context, product *domain.Product, text string) (domain.Vector, error) {
	if text == "" {
		if product.Vectors.Text.Usable(domain.TextVectorDim) {
			return product.Vectors.Text, nil
		}
		text = ProductText(product.Name, product.Category, product.Description)
	}

	vec, err := p.engine.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}

	out, repaired := domain.NormalizeVector(vec, domain.TextVectorDim)
	if repaired {
		metrics.VectorRepairsTotal.WithLabelValues("recommend").Inc()
	}
	if out.IsZero() {
		return nil, fmt.Errorf("%w: zero text vector", e.ErrMalformedVector)
	}

	return out, nil
}

// suggestKeywords просит модель перечислить ключевые слова. Сбой модели даёт пустой список.
func (p *ProductUseCase) suggestKeywords(ctx context.Context, prompt string, limit int) []string {
	text, err := p.engine.GenerateText(ctx, prompt)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.Warnf("keyword suggestion unavailable: %v", err)
		}
		return nil
	}

	return SplitKeywords(text, limit)
}

// SplitKeywords разбирает ответ модели вида "a, b\nc" в список без повторов.
func SplitKeywords(text string, limit int) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n' || r == '/' || r == '·'
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, limit)
	for _, f := range fields {
		f = strings.TrimLeft(strings.TrimSpace(f), "-*.#)0123456789 ")
		f = strings.TrimSpace(strings.Trim(f, `"'.`))
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
		if len(out) == limit {
			break
		}
	}

	return out
}

// ProductText — текст, по которому считается текстовый вектор товара.
func ProductText(name string, category domain.Category, description string) string {
	parts := []string{strings.TrimSpace(name), string(category)}
	if !domain.IsBadDescription(description) {
		parts = append(parts, strings.TrimSpace(description))
	}
	return strings.Join(parts, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
