package app

import (
	"context"

	config "github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/metrics"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/closer"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/jimlawless/whereami"
)

// Backfill — разовый прогон восстановления векторов и описаний по всему каталогу.
// Серверы и Kafka не поднимаются.
type Backfill struct {
	heal   usecase.HealUC
	closer *closer.Closer
}

func NewBackfill(ctx context.Context, cfg *config.Config, log logger.Logger) (*Backfill, error) {
	metrics.Register()

	cl := closer.NewCloser(0)
	d, err := buildDeps(ctx, cfg, log, cl)
	if err != nil {
		if cerr := cl.Close(context.Background()); cerr != nil {
			log.Warnf("release resources after failed init: %v", cerr)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Backfill{heal: d.healUC(log), closer: cl}, nil
}

func (b *Backfill) Run(ctx context.Context, batchSize, maxProducts int) (*usecase.BackfillRes, error) {
	return b.heal.Backfill(ctx, batchSize, maxProducts)
}

func (b *Backfill) Close(ctx context.Context) error {
	return b.closer.Close(ctx)
}
