package domain

// ProductVectors — набор эмбеддингов товара: текстовый (768) и три визуальных (512).
type ProductVectors struct {
	Text  Vector
	Full  Vector
	Upper Vector
	Lower Vector
}

// Visual возвращает визуальный вектор для региона.
func (v ProductVectors) Visual(r Region) Vector {
	switch r {
	case RegionUpper:
		return v.Upper
	case RegionLower:
		return v.Lower
	default:
		return v.Full
	}
}

// SetVisual записывает визуальный вектор региона.
func (v *ProductVectors) SetVisual(r Region, vec Vector) {
	switch r {
	case RegionUpper:
		v.Upper = vec
	case RegionLower:
		v.Lower = vec
	default:
		v.Full = vec
	}
}

// Normalize приводит все присутствующие векторы к их размерностям.
// Возвращает число исправленных векторов.
func (v *ProductVectors) Normalize() int {
	repaired := 0
	fix := func(vec Vector, dim int) Vector {
		if vec == nil {
			return nil
		}
		out, changed := NormalizeVector(vec, dim)
		if changed {
			repaired++
		}
		return out
	}

	v.Text = fix(v.Text, TextVectorDim)
	v.Full = fix(v.Full, VisualVectorDim)
	v.Upper = fix(v.Upper, VisualVectorDim)
	v.Lower = fix(v.Lower, VisualVectorDim)

	return repaired
}
