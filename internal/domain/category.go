package domain

import "strings"

// Category — закрытое множество категорий каталога.
type Category string

const (
	CategoryTops        Category = "Tops"
	CategoryBottoms     Category = "Bottoms"
	CategoryOuterwear   Category = "Outerwear"
	CategoryDresses     Category = "Dresses"
	CategoryShoes       Category = "Shoes"
	CategoryAccessories Category = "Accessories"
)

// Categories возвращает все допустимые категории в каноническом порядке.
func Categories() []Category {
	return []Category{
		CategoryTops,
		CategoryBottoms,
		CategoryOuterwear,
		CategoryDresses,
		CategoryShoes,
		CategoryAccessories,
	}
}

// ParseCategory приводит строку к категории без учёта регистра.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}

	return "", false
}

// Valid сообщает, что значение точно совпадает с одной из категорий.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}

	return false
}
