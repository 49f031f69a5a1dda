package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/DiagramEngine/internal/api"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the HTTP API until ctx is done and then shuts it down. Failed
// runs and connection outages are reported to the alert webhook.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config
	alerter := api.NewAlerter(cfg.Alerts.WebhookURL, cfg.Service.Name, a.Logger.Named("alerts"))
	alerter.Watch(ctx)

	srv := api.New(api.Deps{
		Runner:  a.Orchestrator,
		Ledger:  a.Ledger,
		Store:   a.Store,
		Logger:  a.Logger.Named("api"),
		Alerter: alerter,
		Service: cfg.Service.Name,
		Debug:   cfg.Service.Debug,
		MQTT:    func() (bool, bool) { return a.MQTTEnabled(), a.MQTTConnected() },
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Addr(), api.NewTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && err == nil {
		err = serveErr
	}
	alerter.Wait()
	if err != nil {
		a.Logger.Warn("api shutdown", zap.Error(err))
	}
	return err
}
