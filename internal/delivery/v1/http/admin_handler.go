package http

import (
	"context"
	"net/http"
	"time"

	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
)

// EngineReinitializer пересоздаёт клиентов моделей без перезапуска процесса.
type EngineReinitializer interface {
	Reinitialize(ctx context.Context) error
}

// HealthCheck проверяет одну зависимость. Имя попадает в ответ /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type AdminHandler struct {
	engine EngineReinitializer
	checks []HealthCheck
	logger logger.Logger
}

func NewAdminHandler(engine EngineReinitializer, checks []HealthCheck, logger logger.Logger) *AdminHandler {
	return &AdminHandler{engine: engine, checks: checks, logger: logger}
}

func (a *AdminHandler) reinitializeEngine(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Reinitialize(r.Context()); err != nil {
		a.logger.Errorf(err, "engine reinitialize failed")
		WriteError(w, e.Wrap("AdminHandler.reinitializeEngine", err))
		return
	}

	a.logger.Infof("model engine reinitialized by admin request")
	WriteSuccess(w, http.StatusOK, map[string]string{"status": statusSuccess})
}

// healthz отвечает 503, если хотя бы одна зависимость не отвечает.
func (a *AdminHandler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(a.checks))
	for _, c := range a.checks {
		if err := c.Check(ctx); err != nil {
			a.logger.Warnf("health check %s failed: %v", c.Name, err)
			deps[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[c.Name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	WriteSuccess(w, status, map[string]interface{}{"status": state, "dependencies": deps})
}
