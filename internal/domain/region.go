package domain

import "strings"

// Region — область изображения, по которой считается визуальный вектор.
type Region string

const (
	RegionFull  Region = "full"
	RegionUpper Region = "upper"
	RegionLower Region = "lower"
)

func Regions() []Region {
	return []Region{RegionFull, RegionUpper, RegionLower}
}

// ParseRegion разбирает регион. Пустая строка даёт RegionFull.
func ParseRegion(s string) (Region, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return RegionFull, true
	case "upper", "top":
		return RegionUpper, true
	case "lower", "bottom":
		return RegionLower, true
	default:
		return "", false
	}
}
