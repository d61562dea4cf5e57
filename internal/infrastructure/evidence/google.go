package evidence

import (
	"context"

	"github.com/DRSN-tech/fashion-search/pkg/e"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// maxResultsPerCall — больше за один вызов Custom Search API не отдаёт.
const maxResultsPerCall = 10

// GoogleImageSearch ищет изображения через Google Custom Search.
type GoogleImageSearch struct {
	svc *customsearch.Service
	cx  string
}

func NewGoogleImageSearch(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*GoogleImageSearch, error) {
	const op = "evidence.NewGoogleImageSearch"

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &GoogleImageSearch{svc: svc, cx: cx}, nil
}

// SearchImages возвращает ссылки на найденные изображения в порядке выдачи.
func (g *GoogleImageSearch) SearchImages(ctx context.Context, query string, num int) ([]string, error) {
	const op = "GoogleImageSearch.SearchImages"

	if num <= 0 || num > maxResultsPerCall {
		num = maxResultsPerCall
	}

	res, err := g.svc.Cse.List().
		Cx(g.cx).
		Q(query).
		SearchType("image").
		Safe("active").
		Num(int64(num)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	links := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		if item.Link != "" {
			links = append(links, item.Link)
		}
	}

	return links, nil
}
