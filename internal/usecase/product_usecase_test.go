package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type productDeps struct {
	catalog      *memCatalog
	engine       *fakeEngine
	images       *fakeImages
	outbox       *fakeOutbox
	tx           *fakeTx
	index        *fakeVisualIndex
	searchCache  *fakeSearchCache
	productCache *fakeProductCache
}

func newProductDeps(products ...domain.Product) *productDeps {
	return &productDeps{
		catalog: newMemCatalog(products...),
		engine: &fakeEngine{visual: map[domain.Region]domain.Vector{
			domain.RegionFull:  axis(domain.VisualVectorDim, 5),
			domain.RegionUpper: axis(domain.VisualVectorDim, 6),
			domain.RegionLower: axis(domain.VisualVectorDim, 7),
		}},
		images:       &fakeImages{image: []byte("fetched")},
		outbox:       newFakeOutbox(),
		tx:           &fakeTx{},
		index:        newFakeVisualIndex(),
		searchCache:  newFakeSearchCache(),
		productCache: newFakeProductCache(),
	}
}

func (d *productDeps) build() *ProductUseCase {
	return NewProductUC(d.catalog, d.catalog, d.index, d.outbox, d.tx, d.images, d.engine, d.searchCache, d.productCache, logger.NewNop())
}

func jacketReq() *RegisterProductReq {
	return &RegisterProductReq{
		Name:          "블랙 레더 자켓",
		Description:   "소가죽 라이더 자켓",
		Price:         129000,
		StockQuantity: 3,
		Category:      "outerwear",
		Gender:        "male",
		Images:        []ProductImage{*NewProductImage([]byte("img"), "image/png", 3, "jacket.png")},
	}
}

func TestRegisterProductValidation(t *testing.T) {
	uc := newProductDeps().build()

	cases := []struct {
		name   string
		mutate func(r *RegisterProductReq)
		want   error
	}{
		{"empty name", func(r *RegisterProductReq) { r.Name = "  " }, e.ErrProductNameRequired},
		{"negative price", func(r *RegisterProductReq) { r.Price = -1 }, e.ErrInvalidPrice},
		{"negative stock", func(r *RegisterProductReq) { r.StockQuantity = -1 }, e.ErrInvalidStock},
		{"unknown category", func(r *RegisterProductReq) { r.Category = "Hats" }, e.ErrInvalidCategory},
		{"unknown gender", func(r *RegisterProductReq) { r.Gender = "kids" }, e.ErrInvalidGender},
		{"no image", func(r *RegisterProductReq) { r.Images = nil }, e.ErrNoImages},
		{"too many images", func(r *RegisterProductReq) { r.Images = make([]ProductImage, maxProductImages+1) }, e.ErrTooManyImages},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := jacketReq()
			tc.mutate(req)

			_, err := uc.RegisterProduct(context.Background(), req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRegisterProduct(t *testing.T) {
	deps := newProductDeps()
	uc := deps.build()

	created, err := uc.RegisterProduct(context.Background(), jacketReq())
	require.NoError(t, err)

	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, domain.CategoryOuterwear, created.Category)
	assert.Equal(t, domain.GenderMale, created.Gender)
	assert.Equal(t, "products/jacket.png", created.ImageKey)
	assert.False(t, created.Health.Broken())
	assert.Equal(t, []string{"블랙 레더 자켓 Outerwear 소가죽 라이더 자켓"}, deps.engine.texts)

	assert.Empty(t, deps.outbox.created)
	assert.Empty(t, deps.images.cleaned)
	require.Contains(t, deps.index.points, int64(1))
	assert.Len(t, deps.index.points[1].Vectors, 3)
	assert.Equal(t, []int64{1}, deps.productCache.deleted)
	assert.Equal(t, int64(1), deps.searchCache.gen)
}

func TestRegisterProductQueuesHealWhenModelsFail(t *testing.T) {
	deps := newProductDeps()
	deps.engine.visualErr = e.ErrModelUnavailable
	uc := deps.build()

	created, err := uc.RegisterProduct(context.Background(), jacketReq())
	require.NoError(t, err)

	assert.True(t, created.Health.MissingVisual())
	assert.False(t, created.Health.MissingText)

	require.Len(t, deps.outbox.created, 1)
	event := deps.outbox.created[0]
	assert.Equal(t, created.ID, event.ProductID)
	assert.Equal(t, ProductHealRequested, event.EventType)

	req, err := DecodeHealRequest(event.Payload)
	require.NoError(t, err)
	assert.Equal(t, "register", req.Reason)
}

func TestRegisterProductFromURLWithoutImage(t *testing.T) {
	deps := newProductDeps()
	deps.images.fetchErr = errors.New("404")
	uc := deps.build()

	req := jacketReq()
	req.Images = nil
	req.ImageURL = "https://cdn.example.com/jacket.jpg"

	created, err := uc.RegisterProduct(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, req.ImageURL, created.ImageURL)
	assert.Empty(t, created.ImageKey)
	assert.True(t, created.Health.MissingFull)
	assert.Len(t, deps.outbox.created, 1)
}

func TestRegisterProductCleansUpOnStorageFailure(t *testing.T) {
	deps := newProductDeps()
	deps.tx.err = errors.New("commit failed")
	uc := deps.build()

	_, err := uc.RegisterProduct(context.Background(), jacketReq())
	require.Error(t, err)

	assert.ErrorIs(t, err, e.ErrStorage)
	assert.Equal(t, []string{"products/jacket.png"}, deps.images.cleaned)
	assert.Empty(t, deps.index.points)
}

func TestAnalyzeAndRegister(t *testing.T) {
	deps := newProductDeps()
	price := int64(89000)
	deps.engine.draft = &domain.ProductDraft{
		Name:        "레더 자켓",
		Category:    "Outerwear",
		Gender:      "female",
		Description: "광택 있는 레더 자켓",
		Price:       &price,
	}
	uc := deps.build()

	img := *NewProductImage([]byte("img"), "image/jpeg", 3, "photo.jpg")

	created, err := uc.AnalyzeAndRegister(context.Background(), &AnalyzeProductReq{Image: img, StockQuantity: 2})
	require.NoError(t, err)
	assert.Equal(t, "레더 자켓", created.Name)
	assert.Equal(t, domain.GenderFemale, created.Gender)
	assert.Equal(t, int64(89000), created.Price)
	assert.Equal(t, "광택 있는 레더 자켓", created.Description)

	override := int64(99000)
	created, err = uc.AnalyzeAndRegister(context.Background(), &AnalyzeProductReq{
		Image:  img,
		Name:   "라이더 자켓",
		Gender: "unisex",
		Price:  &override,
	})
	require.NoError(t, err)
	assert.Equal(t, "라이더 자켓", created.Name)
	assert.Equal(t, domain.GenderUnisex, created.Gender)
	assert.Equal(t, int64(99000), created.Price)
}

func TestAnalyzeAndRegisterRejectsUnknownCategory(t *testing.T) {
	deps := newProductDeps()
	deps.engine.draft = &domain.ProductDraft{Name: "모자", Category: "Hats", Gender: "기타"}
	uc := deps.build()

	_, err := uc.AnalyzeAndRegister(context.Background(), &AnalyzeProductReq{
		Image: *NewProductImage([]byte("img"), "image/jpeg", 3, "hat.jpg"),
	})
	assert.ErrorIs(t, err, e.ErrInvalidCategory)

	_, err = uc.AnalyzeAndRegister(context.Background(), &AnalyzeProductReq{})
	assert.ErrorIs(t, err, e.ErrNoImages)
}

func TestGetProduct(t *testing.T) {
	deps := newProductDeps(testProduct(1, "화이트 셔츠", domain.CategoryTops, domain.GenderFemale, 40000, fullVectors(1, 1)))
	cached := testProduct(2, "캐시된 팬츠", domain.CategoryBottoms, domain.GenderUnisex, 50000, domain.ProductVectors{})
	deps.productCache.items[2] = cached
	uc := deps.build()

	p, err := uc.GetProduct(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "캐시된 팬츠", p.Name)

	p, err = uc.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "화이트 셔츠", p.Name)

	_, err = uc.GetProduct(context.Background(), 42)
	assert.ErrorIs(t, err, e.ErrProductNotFound)

	_, err = uc.GetProduct(context.Background(), 0)
	assert.ErrorIs(t, err, e.ErrInvalidID)
}

func TestDeleteProduct(t *testing.T) {
	product := testProduct(1, "화이트 셔츠", domain.CategoryTops, domain.GenderFemale, 40000, fullVectors(1, 1))
	product.ImageKey = "products/shirt.png"
	deps := newProductDeps(product)
	uc := deps.build()

	require.NoError(t, uc.DeleteProduct(context.Background(), 1, false))
	_, err := deps.catalog.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, e.ErrProductNotFound)

	assert.ErrorIs(t, uc.DeleteProduct(context.Background(), 1, false), e.ErrProductNotFound)

	require.NoError(t, uc.DeleteProduct(context.Background(), 1, true))
	assert.Equal(t, []int64{1}, deps.index.deleted)
	assert.Equal(t, []string{"products/shirt.png"}, deps.images.cleaned)
	assert.Equal(t, int64(2), deps.searchCache.gen)

	assert.ErrorIs(t, uc.DeleteProduct(context.Background(), 1, true), e.ErrProductNotFound)
}

func recommendCatalog() *productDeps {
	return newProductDeps(
		testProduct(1, "블랙 자켓", domain.CategoryOuterwear, domain.GenderUnisex, 100000, fullVectors(1, 1)),
		testProduct(2, "네이비 자켓", domain.CategoryOuterwear, domain.GenderUnisex, 90000, fullVectors(2, 2)),
		testProduct(3, "화이트 셔츠", domain.CategoryTops, domain.GenderUnisex, 200000, fullVectors(3, 3)),
		testProduct(4, "울 코트", domain.CategoryOuterwear, domain.GenderUnisex, 115000, fullVectors(4, 4)),
	)
}

func TestRecommendByPrice(t *testing.T) {
	deps := recommendCatalog()
	uc := deps.build()

	res, err := uc.Recommend(context.Background(), 1, RecommendByPrice)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{2, 4}, ids(res.Products))
	assert.Empty(t, deps.engine.texts, "stored text vector is reused")
	assert.Contains(t, res.Answer, "블랙 자켓")
}

func TestRecommendByCoordination(t *testing.T) {
	deps := recommendCatalog()
	deps.engine.generated = "셔츠, 팬츠\n스니커즈"
	uc := deps.build()

	res, err := uc.Recommend(context.Background(), 1, RecommendByCoordination)
	require.NoError(t, err)

	assert.Equal(t, []int64{3}, ids(res.Products))
	assert.Equal(t, []string{"블랙 자켓 코디, 셔츠, 팬츠, 스니커즈"}, deps.engine.texts)
}

func TestRecommendByColorAndStyle(t *testing.T) {
	deps := recommendCatalog()
	deps.engine.generated = "네이비"
	uc := deps.build()

	res, err := uc.Recommend(context.Background(), 1, RecommendByColor)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2, 3, 4}, ids(res.Products))
	assert.Equal(t, "블랙 자켓과 동일한 디자인, 네이비 색상", deps.engine.texts[0])

	res, err = uc.Recommend(context.Background(), 1, RecommendByStyle)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2, 4}, ids(res.Products))
}

func TestRecommendDegradesWithoutKeywords(t *testing.T) {
	deps := recommendCatalog()
	deps.engine.genErr = e.ErrModelUnavailable
	uc := deps.build()

	res, err := uc.Recommend(context.Background(), 1, RecommendByColor)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Products)
	assert.Equal(t, "블랙 자켓과 동일한 디자인, 다른 색상", deps.engine.texts[0])
}

func TestRecommendErrors(t *testing.T) {
	deps := recommendCatalog()
	uc := deps.build()

	_, err := uc.Recommend(context.Background(), 1, RecommendMode("random"))
	assert.ErrorIs(t, err, e.ErrStatusBadRequest)

	_, err = uc.Recommend(context.Background(), 99, RecommendByPrice)
	assert.ErrorIs(t, err, e.ErrProductNotFound)

	deps.engine.textErr = e.ErrModelUnavailable
	_, err = uc.Recommend(context.Background(), 1, RecommendByStyle)
	assert.ErrorIs(t, err, e.ErrModelUnavailable)
}

func TestAsk(t *testing.T) {
	deps := recommendCatalog()
	deps.engine.generated = "소가죽 소재입니다."
	uc := deps.build()

	_, err := uc.Ask(context.Background(), 1, " ")
	assert.ErrorIs(t, err, e.ErrMissingFields)

	answer, err := uc.Ask(context.Background(), 1, "소재가 뭐예요?")
	require.NoError(t, err)
	assert.Equal(t, "소가죽 소재입니다.", answer)
	require.Len(t, deps.engine.prompts, 1)
	assert.Contains(t, deps.engine.prompts[0], "상품명: 블랙 자켓")
	assert.Contains(t, deps.engine.prompts[0], "질문: 소재가 뭐예요?")
}

func TestSplitKeywords(t *testing.T) {
	assert.Equal(t, []string{"셔츠", "팬츠", "스니커즈"}, SplitKeywords("1. 셔츠\n2. 팬츠, 셔츠, \"스니커즈\"", 5))
	assert.Equal(t, []string{"셔츠", "팬츠"}, SplitKeywords("셔츠 / 팬츠 / 스니커즈", 2))
	assert.Empty(t, SplitKeywords(" , \n", 3))
}

func TestProductText(t *testing.T) {
	assert.Equal(t, "자켓 Outerwear 소가죽", ProductText(" 자켓 ", domain.CategoryOuterwear, "소가죽"))
	assert.Equal(t, "자켓 Outerwear", ProductText("자켓", domain.CategoryOuterwear, "AI 분석 실패"))
}
