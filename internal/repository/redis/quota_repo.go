package redis

import (
	"context"
	"time"

	"github.com/DRSN-tech/fashion-search/pkg/clients"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/jimlawless/whereami"
)

// QuotaRepo — суточный счётчик обращений к внешнему поиску.
type QuotaRepo struct {
	client *clients.RedisClient
	now    func() time.Time
}

func NewQuotaRepo(client *clients.RedisClient) *QuotaRepo {
	return &QuotaRepo{client: client, now: time.Now}
}

// Acquire увеличивает счётчик текущих суток (UTC) и сообщает, укладывается ли вызов в limit.
func (q *QuotaRepo) Acquire(ctx context.Context, limit int) (bool, error) {
	key := "quota:external:" + q.now().UTC().Format("2006-01-02")

	pipe := q.client.Client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return incr.Val() <= int64(limit), nil
}
