package domain

import "strings"

// Gender — целевой пол товара. GenderUnset означает отсутствие ограничения.
type Gender string

const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderUnisex Gender = "Unisex"
)

// ParseGender разбирает пол товара. Пустая строка допустима и даёт GenderUnset.
func ParseGender(s string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return GenderUnset, true
	case "male", "m", "men":
		return GenderMale, true
	case "female", "f", "women":
		return GenderFemale, true
	case "unisex", "u":
		return GenderUnisex, true
	default:
		return GenderUnset, false
	}
}

func (g Gender) IsSet() bool {
	return g != GenderUnset
}

// Admits сообщает, проходит ли товар с полом product фильтр g.
// Unisex и товары без пола проходят любой фильтр.
func (g Gender) Admits(product Gender) bool {
	if !g.IsSet() {
		return true
	}

	return product == g || product == GenderUnisex || product == GenderUnset
}
