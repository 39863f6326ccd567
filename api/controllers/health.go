package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/angelmondragon/stagecall/api/responses"
	"github.com/angelmondragon/stagecall/pkg/config"
	pkgerrors "github.com/angelmondragon/stagecall/pkg/errors"
	"github.com/angelmondragon/stagecall/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is a dependency the worker needs before it can take jobs.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Stagecall-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency; nil entries are reported as disabled.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Stagecall-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := map[string]string{}
		var failed []string
		for _, name := range names {
			dep := deps[name]
			if dep == nil {
				status[name] = "disabled"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				logg.Warn(logg.WithField(ctx, "dependency", name), "readiness ping failed")
				status[name] = "down"
				failed = append(failed, name)
				continue
			}
			status[name] = "ok"
		}
		if len(failed) > 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").
				WithDetails(map[string]any{"failed": failed, "checks": status}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": status})
	}
}
