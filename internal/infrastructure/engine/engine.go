// Package engine собирает текстовую, визуальную и генеративную модели за одним фасадом.
// Клиенты создаются один раз при старте и пересоздаются только по явному Reinitialize.
package engine

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/infrastructure"
	"github.com/DRSN-tech/fashion-search/internal/infrastructure/llm"
	ml_service "github.com/DRSN-tech/fashion-search/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/fashion-search/pkg/clients"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
)

type TextModel interface {
	EmbedText(ctx context.Context, text string) (domain.Vector, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
	DescribeImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
	AnalyzeProductImage(ctx context.Context, image []byte, mimeType string) (*domain.ProductDraft, error)
}

type VisionModel interface {
	EmbedImage(ctx context.Context, image []byte, region domain.Region) (domain.Vector, error)
	ScoreImageText(ctx context.Context, image []byte, text string) (float64, error)
}

// Dialer строит свежий набор клиентов. closer освобождает соединения старого набора.
type Dialer func(ctx context.Context) (TextModel, VisionModel, io.Closer, error)

type Engine struct {
	mu     sync.RWMutex
	text   TextModel
	vision VisionModel
	closer io.Closer

	dial         Dialer
	textPolicy   infrastructure.RetryPolicy
	visionPolicy infrastructure.RetryPolicy
	logger       logger.Logger
}

// NewDialer возвращает Dialer для рабочих клиентов: go-openai и gRPC к ml-service.
func NewDialer(llmCfg *cfg.LLMCfg, mlCfg *cfg.MLServiceCfg, textDim int, log logger.Logger) Dialer {
	return func(ctx context.Context) (TextModel, VisionModel, io.Closer, error) {
		conn, err := clients.NewMLConn(mlCfg)
		if err != nil {
			return nil, nil, nil, err
		}

		return llm.NewClient(llmCfg, textDim), ml_service.NewMLService(conn, mlCfg.MaxConcurrent, log), conn, nil
	}
}

func New(ctx context.Context, dial Dialer, textPolicy, visionPolicy infrastructure.RetryPolicy, log logger.Logger) (*Engine, error) {
	const op = "engine.New"

	eng := &Engine{
		dial:         dial,
		textPolicy:   textPolicy,
		visionPolicy: visionPolicy,
		logger:       log,
	}

	if err := eng.Reinitialize(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}

	return eng, nil
}

// Reinitialize пересоздаёт клиентов. Вызовы, начатые до замены, дорабатывают на старых.
func (eng *Engine) Reinitialize(ctx context.Context) error {
	const op = "Engine.Reinitialize"

	text, vision, closer, err := eng.dial(ctx)
	if err != nil {
		return e.Wrap(op, err)
	}

	eng.mu.Lock()
	old := eng.closer
	eng.text, eng.vision, eng.closer = text, vision, closer
	eng.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			eng.logger.Warnf("%s: close previous clients: %v", op, err)
		}
	}

	eng.logger.Infof("model engine initialized")
	return nil
}

func (eng *Engine) Close() error {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	if eng.closer == nil {
		return nil
	}
	err := eng.closer.Close()
	eng.closer = nil
	return err
}

func (eng *Engine) models() (TextModel, VisionModel) {
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	return eng.text, eng.vision
}

func (eng *Engine) EmbedText(ctx context.Context, text string) (domain.Vector, error) {
	tm, _ := eng.models()
	return infrastructure.Retry(ctx, eng.textPolicy, eng.logger, "Engine.EmbedText", func(ctx context.Context) (domain.Vector, error) {
		return tm.EmbedText(ctx, text)
	})
}

func (eng *Engine) GenerateText(ctx context.Context, prompt string) (string, error) {
	tm, _ := eng.models()
	return infrastructure.Retry(ctx, eng.textPolicy, eng.logger, "Engine.GenerateText", func(ctx context.Context) (string, error) {
		return tm.GenerateText(ctx, prompt)
	})
}

func (eng *Engine) DescribeImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	tm, _ := eng.models()
	return infrastructure.Retry(ctx, eng.textPolicy, eng.logger, "Engine.DescribeImage", func(ctx context.Context) (string, error) {
		return tm.DescribeImage(ctx, image, mimeType, prompt)
	})
}

func (eng *Engine) AnalyzeProductImage(ctx context.Context, image []byte, mimeType string) (*domain.ProductDraft, error) {
	tm, _ := eng.models()
	return infrastructure.Retry(ctx, eng.textPolicy, eng.logger, "Engine.AnalyzeProductImage", func(ctx context.Context) (*domain.ProductDraft, error) {
		return tm.AnalyzeProductImage(ctx, image, mimeType)
	})
}

func (eng *Engine) EmbedImage(ctx context.Context, image []byte, region domain.Region) (domain.Vector, error) {
	_, vm := eng.models()
	return infrastructure.Retry(ctx, eng.visionPolicy, eng.logger, "Engine.EmbedImage", func(ctx context.Context) (domain.Vector, error) {
		return vm.EmbedImage(ctx, image, region)
	})
}

// EmbedImageRegions считает векторы регионов параллельно. Возвращает то, что удалось
// получить, и объединённую ошибку по неудавшимся регионам.
func (eng *Engine) EmbedImageRegions(ctx context.Context, image []byte, regions []domain.Region) (map[domain.Region]domain.Vector, error) {
	type result struct {
		region domain.Region
		vec    domain.Vector
		err    error
	}

	results := make(chan result, len(regions))
	for _, region := range regions {
		go func() {
			vec, err := eng.EmbedImage(ctx, image, region)
			results <- result{region: region, vec: vec, err: err}
		}()
	}

	vectors := make(map[domain.Region]domain.Vector, len(regions))
	var errs []error
	for range regions {
		r := <-results
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		vectors[r.region] = r.vec
	}

	return vectors, errors.Join(errs...)
}

func (eng *Engine) ScoreImageText(ctx context.Context, image []byte, text string) (float64, error) {
	_, vm := eng.models()
	return infrastructure.Retry(ctx, eng.visionPolicy, eng.logger, "Engine.ScoreImageText", func(ctx context.Context) (float64, error) {
		return vm.ScoreImageText(ctx, image, text)
	})
}
