package ml_service

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	embedImageMethod     = "/fashion.ml.v1.VisionService/EmbedImage"
	scoreImageTextMethod = "/fashion.ml.v1.VisionService/ScoreImageText"
)

// MLService — клиент gRPC-сервиса визуальных моделей. Сообщения передаются как
// google.protobuf.Struct: {image: base64, region} -> {vector: [...]}.
// Каждый метод делает один вызов; повторы выполняет engine.
type MLService struct {
	conn   grpc.ClientConnInterface
	sem    chan struct{} // ограничение одновременных вызовов
	logger logger.Logger
}

func NewMLService(conn grpc.ClientConnInterface, maxConcurrent int, logger logger.Logger) *MLService {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &MLService{
		conn:   conn,
		sem:    make(chan struct{}, maxConcurrent),
		logger: logger,
	}
}

// EmbedImage возвращает визуальный вектор изображения для региона.
func (m *MLService) EmbedImage(ctx context.Context, image []byte, region domain.Region) (domain.Vector, error) {
	const op = "MLService.EmbedImage"

	req, err := structpb.NewStruct(map[string]any{
		"image":  base64.StdEncoding.EncodeToString(image),
		"region": string(region),
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	resp := &structpb.Struct{}
	if err := m.invoke(ctx, embedImageMethod, req, resp); err != nil {
		return nil, e.Wrap(op, err)
	}

	vec, err := vectorFromStruct(resp)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return vec, nil
}

// ScoreImageText возвращает сходство изображения и текста в диапазоне [0,1].
func (m *MLService) ScoreImageText(ctx context.Context, image []byte, text string) (float64, error) {
	const op = "MLService.ScoreImageText"

	req, err := structpb.NewStruct(map[string]any{
		"image": base64.StdEncoding.EncodeToString(image),
		"text":  text,
	})
	if err != nil {
		return 0, e.Wrap(op, err)
	}

	resp := &structpb.Struct{}
	if err := m.invoke(ctx, scoreImageTextMethod, req, resp); err != nil {
		return 0, e.Wrap(op, err)
	}

	v, ok := resp.GetFields()["score"]
	if !ok {
		return 0, e.Wrap(op, e.ErrEmptyModelOutput)
	}

	score, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || math.IsNaN(score.NumberValue) || math.IsInf(score.NumberValue, 0) {
		return 0, e.Wrap(op, e.ErrMalformedVector)
	}

	return score.NumberValue, nil
}

func (m *MLService) invoke(ctx context.Context, method string, req, resp *structpb.Struct) error {
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.sem }()

	return m.conn.Invoke(ctx, method, req, resp)
}

// vectorFromStruct достаёт поле vector. Нечисловые элементы делают весь вектор битым.
func vectorFromStruct(s *structpb.Struct) (domain.Vector, error) {
	v, ok := s.GetFields()["vector"]
	if !ok {
		return nil, e.ErrEmptyModelOutput
	}

	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: vector is not a list", e.ErrMalformedVector)
	}
	if len(list.GetValues()) == 0 {
		return nil, e.ErrEmptyModelOutput
	}

	out := make(domain.Vector, len(list.GetValues()))
	for i, item := range list.GetValues() {
		n, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not a number", e.ErrMalformedVector, i)
		}
		out[i] = float32(n.NumberValue)
	}

	return out, nil
}
