package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/avelor/identity-auth/internal/infra/config"
)

// Provider holds the service metric handles.
type Provider struct {
	cfg             config.TelemetrySettings
	logins          prometheus.Counter
	authFailures    prometheus.Counter
	reaperDeletions *prometheus.CounterVec
}

// Attach registers the service metrics and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &Provider{
		cfg: cfg.Telemetry,
		logins: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "idp",
			Name:      "logins_total",
			Help:      "Total number of successful logins",
		}),
		authFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "idp",
			Name:      "auth_failures_total",
			Help:      "Total number of rejected authentication attempts",
		}),
		reaperDeletions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idp",
			Name:      "reaper_deletions_total",
			Help:      "Total number of expired records removed by the reapers",
		}, []string{"reaper"}),
	}, nil
}

// LoginCounter exposes the successful login metric.
func (p *Provider) LoginCounter() prometheus.Counter {
	if p == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{})
	}
	return p.logins
}

// AuthFailureCounter exposes the rejected authentication metric.
func (p *Provider) AuthFailureCounter() prometheus.Counter {
	if p == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{})
	}
	return p.authFailures
}

// ReaperDeletionCounter exposes the deletion metric for the named reaper.
func (p *Provider) ReaperDeletionCounter(name string) prometheus.Counter {
	if p == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{})
	}
	return p.reaperDeletions.WithLabelValues(name)
}

// Serve exposes the Prometheus scrape endpoint until the context is cancelled.
func (p *Provider) Serve(ctx context.Context, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", p.cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics endpoint listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve metrics: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
