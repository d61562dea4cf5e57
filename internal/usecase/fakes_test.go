package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/intent"
	"github.com/DRSN-tech/fashion-search/pkg/e"
)

// memCatalog — in-memory ProductRepository и VectorStore поверх одного набора товаров.
type memCatalog struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]*domain.Product

	failSearch  error
	failCreate  error
	updates     []DerivedUpdate
	keywordHits []string
}

func newMemCatalog(products ...domain.Product) *memCatalog {
	c := &memCatalog{products: make(map[int64]*domain.Product)}
	for i := range products {
		p := products[i]
		if p.ID == 0 {
			c.nextID++
			p.ID = c.nextID
		} else if p.ID > c.nextID {
			c.nextID = p.ID
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Unix(p.ID, 0)
		}
		p.Health = healthOf(&p)
		c.products[p.ID] = &p
	}
	return c
}

func healthOf(p *domain.Product) domain.ProductHealth {
	return domain.ProductHealth{
		MissingText:    !p.Vectors.Text.Usable(domain.TextVectorDim),
		MissingFull:    !p.Vectors.Full.Usable(domain.VisualVectorDim),
		MissingUpper:   !p.Vectors.Upper.Usable(domain.VisualVectorDim),
		MissingLower:   !p.Vectors.Lower.Usable(domain.VisualVectorDim),
		BadDescription: domain.IsBadDescription(p.Description),
	}
}

func (c *memCatalog) live(p *domain.Product) bool {
	return p.IsActive && p.DeletedAt == nil
}

func (c *memCatalog) Create(_ context.Context, product *domain.Product) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failCreate != nil {
		return nil, c.failCreate
	}
	c.nextID++
	p := *product
	p.ID = c.nextID
	p.CreatedAt = time.Unix(p.ID, 0)
	p.Health = healthOf(&p)
	c.products[p.ID] = &p
	out := p
	return &out, nil
}

func (c *memCatalog) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok || !c.live(p) {
		return nil, e.ErrProductNotFound
	}
	out := *p
	out.Vectors = domain.ProductVectors{}
	return &out, nil
}

func (c *memCatalog) GetByIDs(_ context.Context, ids []int64) ([]domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Product
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (c *memCatalog) GetWithVectors(_ context.Context, id int64) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok || p.DeletedAt != nil {
		return nil, e.ErrProductNotFound
	}
	out := *p
	return &out, nil
}

func (c *memCatalog) UpdateDerived(_ context.Context, id int64, upd *DerivedUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return e.ErrProductNotFound
	}
	c.updates = append(c.updates, *upd)
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.TextVector != nil {
		p.Vectors.Text = upd.TextVector
	}
	for r, v := range upd.Visual {
		p.Vectors.SetVisual(r, v)
	}
	p.Health = healthOf(p)
	return nil
}

func (c *memCatalog) SoftDelete(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok || p.DeletedAt != nil {
		return e.ErrProductNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

func (c *memCatalog) HardDelete(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[id]; !ok {
		return e.ErrProductNotFound
	}
	delete(c.products, id)
	return nil
}

func (c *memCatalog) ListNeedingHeal(_ context.Context, afterID int64, limit int) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []int64
	for id, p := range c.products {
		if id > afterID && c.live(p) && p.Health.Broken() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// selectLive возвращает живые товары, прошедшие фильтры, по убыванию id.
func (c *memCatalog) selectLive(filters domain.SearchFilters, keep func(p *domain.Product) bool) []domain.Product {
	var out []domain.Product
	for _, p := range c.products {
		if !c.live(p) || !filters.Admits(p) || !keep(p) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func byDistance(products []domain.Product, dist func(p *domain.Product) float64, limit int) []domain.Candidate {
	sort.SliceStable(products, func(i, j int) bool { return dist(&products[i]) < dist(&products[j]) })
	out := make([]domain.Candidate, 0, limit)
	for i := range products {
		out = append(out, domain.NewCandidate(products[i], domain.ScoreFromDistance(dist(&products[i]))))
		if len(out) == limit {
			break
		}
	}
	return out
}

func (c *memCatalog) SearchKeyword(_ context.Context, keyword string, textVector domain.Vector, filters domain.SearchFilters, limit int) ([]domain.Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSearch != nil {
		return nil, c.failSearch
	}
	c.keywordHits = append(c.keywordHits, keyword)
	kw := strings.ToLower(keyword)
	found := c.selectLive(filters, func(p *domain.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), kw)
	})
	if textVector != nil {
		return byDistance(found, func(p *domain.Product) float64 {
			return domain.CosineDistance(textVector, p.Vectors.Text)
		}, limit), nil
	}
	out := make([]domain.Candidate, 0, limit)
	for _, p := range found {
		out = append(out, domain.NewCandidate(p, nil))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *memCatalog) SearchText(_ context.Context, vector domain.Vector, filters domain.SearchFilters, limit int) ([]domain.Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSearch != nil {
		return nil, c.failSearch
	}
	found := c.selectLive(filters, func(p *domain.Product) bool {
		return p.Vectors.Text.Usable(domain.TextVectorDim)
	})
	return byDistance(found, func(p *domain.Product) float64 {
		return domain.CosineDistance(vector, p.Vectors.Text)
	}, limit), nil
}

func (c *memCatalog) SearchVisual(_ context.Context, vector domain.Vector, region domain.Region, filters domain.SearchFilters, limit int) ([]domain.Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSearch != nil {
		return nil, c.failSearch
	}
	found := c.selectLive(filters, func(p *domain.Product) bool {
		return p.Vectors.Visual(region).Usable(domain.VisualVectorDim)
	})
	return byDistance(found, func(p *domain.Product) float64 {
		return domain.CosineDistance(vector, p.Vectors.Visual(region))
	}, limit), nil
}

func (c *memCatalog) SearchCombined(_ context.Context, text, visual domain.Vector, region domain.Region, w Weights, filters domain.SearchFilters, limit int) ([]domain.Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSearch != nil {
		return nil, c.failSearch
	}
	found := c.selectLive(filters, func(p *domain.Product) bool {
		return p.Vectors.Text.Usable(domain.TextVectorDim) && p.Vectors.Visual(region).Usable(domain.VisualVectorDim)
	})
	return byDistance(found, func(p *domain.Product) float64 {
		return w.Text*domain.CosineDistance(text, p.Vectors.Text) + w.Visual*domain.CosineDistance(visual, p.Vectors.Visual(region))
	}, limit), nil
}

func (c *memCatalog) ListRecent(_ context.Context, filters domain.SearchFilters, limit int) ([]domain.Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSearch != nil {
		return nil, c.failSearch
	}
	found := c.selectLive(filters, func(*domain.Product) bool { return true })
	out := make([]domain.Candidate, 0, limit)
	for _, p := range found {
		out = append(out, domain.NewCandidate(p, nil))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeEngine возвращает заданные векторы и ответы. Ошибки подменяют результат.
type fakeEngine struct {
	mu sync.Mutex

	textVec   func(text string) domain.Vector
	textErr   error
	visual    map[domain.Region]domain.Vector
	visualErr error
	generated string
	genErr    error
	described string
	descErr   error
	draft     *domain.ProductDraft

	texts   []string
	prompts []string
}

func (f *fakeEngine) EmbedText(_ context.Context, text string) (domain.Vector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.textErr != nil {
		return nil, f.textErr
	}
	if f.textVec == nil {
		return axis(domain.TextVectorDim, 0), nil
	}
	return f.textVec(text), nil
}

func (f *fakeEngine) EmbedImage(_ context.Context, _ []byte, region domain.Region) (domain.Vector, error) {
	if f.visualErr != nil {
		return nil, f.visualErr
	}
	if v, ok := f.visual[region]; ok {
		return v, nil
	}
	return nil, e.ErrEmptyModelOutput
}

func (f *fakeEngine) EmbedImageRegions(ctx context.Context, image []byte, regions []domain.Region) (map[domain.Region]domain.Vector, error) {
	out := make(map[domain.Region]domain.Vector, len(regions))
	var errs []error
	for _, r := range regions {
		v, err := f.EmbedImage(ctx, image, r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[r] = v
	}
	return out, errors.Join(errs...)
}

func (f *fakeEngine) GenerateText(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.generated, f.genErr
}

func (f *fakeEngine) DescribeImage(context.Context, []byte, string, string) (string, error) {
	return f.described, f.descErr
}

func (f *fakeEngine) AnalyzeProductImage(context.Context, []byte, string) (*domain.ProductDraft, error) {
	if f.draft == nil {
		return nil, e.ErrEmptyModelOutput
	}
	return f.draft, nil
}

type fakeImages struct {
	mu       sync.Mutex
	uploaded []string
	cleaned  []string
	image    []byte
	fetchErr error
}

func (f *fakeImages) UploadImages(_ context.Context, req *UploadImagesReq) (*UploadImagesRes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]UploadImageRes, 0, len(req.Images))
	for _, img := range req.Images {
		key := "products/" + img.Name
		f.uploaded = append(f.uploaded, key)
		res = append(res, UploadImageRes{Key: key, URL: "http://minio/" + key})
	}
	return NewUploadImagesRes(res), nil
}

func (f *fakeImages) CleanupImages(keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, keys...)
}

func (f *fakeImages) FetchImage(context.Context, string, string) ([]byte, string, error) {
	if f.fetchErr != nil {
		return nil, "", f.fetchErr
	}
	return f.image, "image/png", nil
}

type fakeSearchCache struct {
	mu       sync.Mutex
	gen      int64
	genErr   error
	entries  map[string]*SearchRes
	sets     int
	setsDone chan struct{}
}

func newFakeSearchCache() *fakeSearchCache {
	return &fakeSearchCache{entries: make(map[string]*SearchRes), setsDone: make(chan struct{}, 16)}
}

func (c *fakeSearchCache) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, c.genErr
}

func (c *fakeSearchCache) BumpGeneration(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return nil
}

func (c *fakeSearchCache) GetSearch(_ context.Context, key string) (*SearchRes, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	cp := *res
	return &cp, true, nil
}

func (c *fakeSearchCache) SetSearch(_ context.Context, key string, res *SearchRes) error {
	c.mu.Lock()
	c.entries[key] = res
	c.sets++
	c.mu.Unlock()
	c.setsDone <- struct{}{}
	return nil
}

type fakeProductCache struct {
	mu      sync.Mutex
	items   map[int64]domain.Product
	deleted []int64
}

func newFakeProductCache() *fakeProductCache {
	return &fakeProductCache{items: make(map[int64]domain.Product)}
}

func (c *fakeProductCache) GetProducts(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int64]domain.Product)
	for _, id := range ids {
		if p, ok := c.items[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *fakeProductCache) SetProducts(_ context.Context, products []domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range products {
		c.items[p.ID] = p
	}
	return nil
}

func (c *fakeProductCache) DeleteProducts(_ context.Context, ids []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.items, id)
	}
	c.deleted = append(c.deleted, ids...)
	return nil
}

type fakeOutbox struct {
	mu       sync.Mutex
	created  []OutboxEvent
	enqueued chan []OutboxEvent
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{enqueued: make(chan []OutboxEvent, 4)}
}

func (o *fakeOutbox) Create(_ context.Context, event *OutboxEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created = append(o.created, *event)
	return nil
}

func (o *fakeOutbox) GetAndMarkAsProcessing(context.Context, int) ([]OutboxEvent, error) {
	return nil, nil
}

func (o *fakeOutbox) MarkAsProcessed(context.Context, []int64) error { return nil }

func (o *fakeOutbox) EnqueueHeal(_ context.Context, events []OutboxEvent) error {
	o.enqueued <- events
	return nil
}

// fakeTx выполняет fn без транзакции; err подменяет результат после fn.
type fakeTx struct {
	err error
}

func (t *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return t.err
}

type fakeVisualIndex struct {
	mu      sync.Mutex
	points  map[int64]*domain.VisualPoint
	deleted []int64
}

func newFakeVisualIndex() *fakeVisualIndex {
	return &fakeVisualIndex{points: make(map[int64]*domain.VisualPoint)}
}

func (v *fakeVisualIndex) Upsert(_ context.Context, point *domain.VisualPoint) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.points[point.ProductID] = point
	return nil
}

func (v *fakeVisualIndex) Delete(_ context.Context, id int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.points, id)
	v.deleted = append(v.deleted, id)
	return nil
}

func (v *fakeVisualIndex) Search(context.Context, domain.Vector, domain.Region, domain.SearchFilters, int) ([]ScoredID, error) {
	return nil, nil
}

// fakeClassifier возвращает заранее заданный разбор запроса.
type fakeClassifier struct {
	intent domain.SearchIntent
}

func (c *fakeClassifier) Classify(query string, opts intent.Options) domain.SearchIntent {
	si := c.intent
	si.Query = query
	if opts.Region != "" {
		si.Region = opts.Region
	}
	if si.Region == "" {
		si.Region = domain.RegionFull
	}
	return si
}

func (c *fakeClassifier) Version() int { return 1 }

// axis — единичный вектор размерности dim вдоль оси i.
func axis(dim, i int) domain.Vector {
	v := make(domain.Vector, dim)
	v[i] = 1
	return v
}

func fullVectors(textAxis, visualAxis int) domain.ProductVectors {
	return domain.ProductVectors{
		Text:  axis(domain.TextVectorDim, textAxis),
		Full:  axis(domain.VisualVectorDim, visualAxis),
		Upper: axis(domain.VisualVectorDim, visualAxis),
		Lower: axis(domain.VisualVectorDim, visualAxis),
	}
}

func testProduct(id int64, name string, category domain.Category, gender domain.Gender, price int64, vectors domain.ProductVectors) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        name,
		Description: name + " 설명",
		Price:       price,
		Category:    category,
		Gender:      gender,
		IsActive:    true,
		Vectors:     vectors,
	}
}
