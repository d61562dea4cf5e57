package clients

import (
	config "github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/jimlawless/whereami"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// NewMLConn открывает соединение с сервисом визуальных моделей.
// Подключение ленивое: сеть трогается при первом вызове.
func NewMLConn(cfg *config.MLServiceCfg) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return conn, nil
}
