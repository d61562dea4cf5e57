package grpc

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/infrastructure"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// SearchServer — серверная сторона fashion.search.v1.SearchService.
// Запрос и ответ передаются как google.protobuf.Struct с теми же ключами, что и в HTTP API.
type SearchServer interface {
	Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var SearchServiceDesc = grpc.ServiceDesc{
	ServiceName: "fashion.search.v1.SearchService",
	HandlerType: (*SearchServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Search",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := &structpb.Struct{}
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(SearchServer).Search(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/fashion.search.v1.SearchService/Search"}
				return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
					return srv.(SearchServer).Search(ctx, req.(*structpb.Struct))
				})
			},
		},
	},
	Metadata: "fashion/search/v1/search.proto",
}

type SearchService struct {
	searchUC usecase.SearchUC
	logger   logger.Logger
}

func NewSearchService(searchUC usecase.SearchUC, logger logger.Logger) *SearchService {
	return &SearchService{searchUC: searchUC, logger: logger}
}

func (g *SearchService) Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.Search"

	searchReq, err := toSearchReq(req)
	if err != nil {
		g.logger.Warnf("%s: %v", op, err)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	res, err := g.searchUC.Search(ctx, searchReq)
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	out, err := structpb.NewStruct(fromSearchRes(res))
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s: encode response", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}
	return out, nil
}

// toSearchReq разбирает запрос. Изображение передаётся строкой base64 в поле image.
func toSearchReq(s *structpb.Struct) (*usecase.SearchReq, error) {
	fields := s.GetFields()

	var image []byte
	var mime string
	if raw := fields["image"].GetStringValue(); raw != "" {
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: image is not base64", e.ErrStatusBadRequest)
		}
		mime = infrastructure.DetectImageMIME(data)
		if _, err := infrastructure.GetExtensionFromMIME(mime); err != nil {
			return nil, err
		}
		image = data
	}

	limit, err := wholeNumber(fields["limit"], e.ErrInvalidLimit)
	if err != nil {
		return nil, err
	}

	region, ok := domain.ParseRegion(fields["region"].GetStringValue())
	if !ok {
		return nil, fmt.Errorf("%w: %q", e.ErrInvalidRegion, fields["region"].GetStringValue())
	}

	var filters domain.SearchFilters
	if filters.MinPrice, err = optionalPrice(fields["min_price"]); err != nil {
		return nil, err
	}
	if filters.MaxPrice, err = optionalPrice(fields["max_price"]); err != nil {
		return nil, err
	}
	if filters.Categories, err = categories(fields["categories"]); err != nil {
		return nil, err
	}
	if filters.ExcludeCategories, err = categories(fields["exclude_categories"]); err != nil {
		return nil, err
	}
	for _, v := range fields["exclude_ids"].GetListValue().GetValues() {
		id, err := wholeNumber(v, e.ErrInvalidID)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: %v", e.ErrInvalidID, v.AsInterface())
		}
		filters.ExcludeIDs = append(filters.ExcludeIDs, id)
	}

	return usecase.NewSearchReq(fields["query"].GetStringValue(), image, mime, int(limit), region, filters), nil
}

func wholeNumber(v *structpb.Value, invalid error) (int64, error) {
	if v == nil {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, fmt.Errorf("%w: %v", invalid, v.AsInterface())
	}
	return int64(n.NumberValue), nil
}

func optionalPrice(v *structpb.Value) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue < 0 {
		return nil, fmt.Errorf("%w: %v", e.ErrInvalidPrice, v.AsInterface())
	}
	if n.NumberValue != math.Trunc(n.NumberValue) {
		return nil, e.ErrPricePrecision
	}
	price := int64(n.NumberValue)
	return &price, nil
}

func categories(v *structpb.Value) ([]domain.Category, error) {
	var out []domain.Category
	for _, item := range v.GetListValue().GetValues() {
		c, ok := domain.ParseCategory(item.GetStringValue())
		if !ok {
			return nil, fmt.Errorf("%w: %v", e.ErrInvalidCategory, item.AsInterface())
		}
		out = append(out, c)
	}
	return out, nil
}

func fromSearchRes(res *usecase.SearchRes) map[string]any {
	products := make([]any, len(res.Products))
	for i, c := range res.Products {
		var similarity any
		if c.Score != nil {
			similarity = *c.Score
		}
		products[i] = map[string]any{
			"id":             c.Product.ID,
			"name":           c.Product.Name,
			"description":    c.Product.Description,
			"price":          c.Product.Price,
			"stock_quantity": c.Product.StockQuantity,
			"category":       string(c.Product.Category),
			"gender":         string(c.Product.Gender),
			"image_url":      c.Product.ImageURL,
			"similarity":     similarity,
		}
	}

	out := map[string]any{
		"status":                "success",
		"search_path":           string(res.Path),
		"search_strategy":       string(res.Strategy),
		"gender_filter_applied": res.GenderFilterApplied,
		"answer":                res.Answer,
		"intent": map[string]any{
			"query":              res.Intent.Query,
			"gender":             string(res.Intent.Gender),
			"core_keyword":       res.Intent.CoreKeyword,
			"keyword_candidates": anyList(res.Intent.KeywordCandidates),
			"region":             string(res.Intent.Region),
			"external":           res.Intent.External,
		},
		"products":            products,
		"unavailable_signals": anyList(res.UnavailableSignals),
		"cached":              res.Cached,
		"evidence":            nil,
	}

	if ev := res.Evidence; ev != nil {
		candidates := make([]any, len(ev.Candidates))
		for i, img := range ev.Candidates {
			candidates[i] = map[string]any{"url": img.URL, "score": img.Score, "display_score": img.DisplayScore}
		}
		out["evidence"] = map[string]any{
			"query":               ev.Query,
			"summary":             ev.Summary,
			"reference_image_url": ev.ReferenceImageURL,
			"candidates":          candidates,
		}
	}

	return out
}

func anyList(list []string) []any {
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}
