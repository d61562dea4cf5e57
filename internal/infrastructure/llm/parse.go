package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/pkg/e"
)

// Fields — структурированные поля, извлечённые из свободного ответа модели.
// Ключи приведены к каноническим: name, category, gender, description, price.
type Fields map[string]string

// ParseAttempt — одна стадия разбора: чистая функция из текста в поля или типизированную ошибку.
type ParseAttempt func(text string) (Fields, error)

var knownKeys = map[string]string{
	"name":         "name",
	"product_name": "name",
	"이름":           "name",
	"상품명":          "name",
	"category":     "category",
	"카테고리":         "category",
	"gender":       "gender",
	"성별":           "gender",
	"description":  "description",
	"desc":         "description",
	"설명":           "description",
	"price":        "price",
	"가격":           "price",
}

// ParseChain — стадии в порядке убывания строгости.
var ParseChain = []ParseAttempt{parseStrictJSON, parseRelaxedLiteral, parseFieldLines}

// ParseFields пробует стадии по порядку и возвращает первый успех.
// Если ни одна не сработала, возвращает объединение их ошибок.
func ParseFields(text string) (Fields, error) {
	var errs []error
	for _, attempt := range ParseChain {
		fields, err := attempt(text)
		if err == nil {
			return fields, nil
		}
		errs = append(errs, err)
	}

	return nil, errors.Join(errs...)
}

// parseStrictJSON ищет JSON-объект в тексте, в том числе внутри ```json блока.
func parseStrictJSON(text string) (Fields, error) {
	obj, err := extractObject(text)
	if err != nil {
		return nil, err
	}

	return decodeObject(obj)
}

// parseRelaxedLiteral принимает литералы в стиле Python: одинарные кавычки,
// True/False/None и висячие запятые.
func parseRelaxedLiteral(text string) (Fields, error) {
	obj, err := extractObject(text)
	if err != nil {
		return nil, err
	}

	return decodeObject(relaxLiteral(obj))
}

// parseFieldLines вытаскивает поля построчно из текста вида "name: ...".
func parseFieldLines(text string) (Fields, error) {
	fields := Fields{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•{ ")
		line = strings.TrimRight(line, ",} ")

		sep := strings.IndexAny(line, ":=")
		if sep <= 0 {
			continue
		}

		key := normalizeKey(line[:sep])
		canon, ok := knownKeys[key]
		if !ok {
			continue
		}

		value := strings.Trim(strings.TrimSpace(line[sep+1:]), `"'`)
		if value == "" {
			continue
		}
		if _, dup := fields[canon]; !dup {
			fields[canon] = value
		}
	}

	if len(fields) == 0 {
		return nil, e.ErrNoFields
	}

	return fields, nil
}

func extractObject(text string) (string, error) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", e.ErrNoJSONObject
	}

	return text[start : end+1], nil
}

func decodeObject(obj string) (Fields, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrNoJSONObject, err)
	}

	fields := Fields{}
	for k, v := range raw {
		canon, ok := knownKeys[normalizeKey(k)]
		if !ok || v == nil {
			continue
		}

		var s string
		switch val := v.(type) {
		case string:
			s = strings.TrimSpace(val)
		case float64:
			s = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(val)
		default:
			continue
		}
		if s != "" {
			fields[canon] = s
		}
	}

	if len(fields) == 0 {
		return nil, e.ErrNoFields
	}

	return fields, nil
}

// relaxLiteral переписывает литерал в валидный JSON. Строки в одинарных кавычках
// переводятся в двойные, вне строк заменяются True/False/None.
func relaxLiteral(s string) string {
	var b strings.Builder
	var quote rune
	escaped := false

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if quote != 0 {
			switch {
			case escaped:
				escaped = false
				if r == '\'' {
					b.WriteRune(r)
					continue
				}
				b.WriteRune('\\')
				b.WriteRune(r)
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
				b.WriteRune('"')
			case r == '"':
				b.WriteString(`\"`)
			default:
				b.WriteRune(r)
			}
			continue
		}

		switch {
		case r == '\'' || r == '"':
			quote = r
			b.WriteRune('"')
		case r == ',' && nextNonSpaceCloses(runes, i+1):
			// висячая запятая
		case unicode.IsLetter(r):
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || runes[j] == '_') {
				j++
			}
			word := string(runes[i:j])
			switch word {
			case "True":
				word = "true"
			case "False":
				word = "false"
			case "None":
				word = "null"
			}
			b.WriteString(word)
			i = j - 1
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

func nextNonSpaceCloses(runes []rune, from int) bool {
	for _, r := range runes[from:] {
		if unicode.IsSpace(r) {
			continue
		}
		return r == '}' || r == ']'
	}

	return false
}

func normalizeKey(k string) string {
	k = strings.TrimSpace(k)
	k = strings.Trim(k, `"'*`)
	return strings.ToLower(strings.TrimSpace(k))
}

// Draft переводит поля в черновик карточки товара. Цена берётся только
// если из неё удалось извлечь неотрицательное целое.
func (f Fields) Draft() *domain.ProductDraft {
	d := &domain.ProductDraft{
		Name:        f["name"],
		Category:    f["category"],
		Gender:      f["gender"],
		Description: f["description"],
	}

	if price, ok := parsePrice(f["price"]); ok {
		d.Price = &price
	}

	return d
}

// parsePrice понимает "238000", "238,000원", "₩ 49800" и "49800.0".
func parsePrice(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}

	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}

	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}

	v, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}

	return v, true
}
