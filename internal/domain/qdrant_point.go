package domain

// VisualPoint — зеркальная запись визуальных векторов товара во внешнем векторном индексе.
// Отсутствующие регионы в Vectors не передаются.
type VisualPoint struct {
	ProductID int64
	Vectors   map[Region]Vector
	Gender    Gender
	Category  Category
	Price     int64
}

func NewVisualPoint(p *Product) *VisualPoint {
	vectors := make(map[Region]Vector, 3)
	for _, r := range Regions() {
		if v := p.Vectors.Visual(r); v.Usable(VisualVectorDim) {
			vectors[r] = v
		}
	}

	return &VisualPoint{
		ProductID: p.ID,
		Vectors:   vectors,
		Gender:    p.Gender,
		Category:  p.Category,
		Price:     p.Price,
	}
}
