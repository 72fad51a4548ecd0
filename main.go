package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moyoez/fleet-notify/api"
	"github.com/moyoez/fleet-notify/api/notifyhub"
	"github.com/moyoez/fleet-notify/notify"
	"github.com/moyoez/fleet-notify/session"
	"github.com/moyoez/fleet-notify/tool"
)

func main() {
	cfg := tool.SetFlags()

	// initialize logger
	tool.InitLogger()
	tool.SetLogMode(cfg.Log)

	appCfg, err := tool.LoadConfig(cfg.UseConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.ApplyFlags(&appCfg, cfg)
	tool.LoadSecrets(&appCfg, cfg.UseEnvPath)

	alerts := notify.Multi{notify.LogSink{}}
	if appCfg.AlertSocketPath != "" {
		alerts = append(alerts, notify.NewSocketSink(appCfg.AlertSocketPath))
	} else {
		tool.DefaultLogger.Info("Desktop alerts disabled")
	}

	sess, err := session.New(session.Options{
		Config: appCfg,
		Alerts: alerts,
	})
	if err != nil {
		tool.DefaultLogger.Fatalf("Failed to create notification session: %v", err)
	}

	hub := notifyhub.New()
	sess.Subscribe(hub)
	sess.SubscribeConnection(hub)

	apiServer := api.NewServer(appCfg.Port, sess, hub)
	go func() {
		if err := apiServer.Start(); err != nil {
			tool.DefaultLogger.Fatalf("Gateway startup failed: %v", err)
		}
	}()

	// bounds the baseline fetch that runs before the channel dials
	startCtx, cancel := context.WithTimeout(context.Background(), tool.DefaultTimeout)
	err = sess.Start(startCtx)
	cancel()
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.DefaultLogger.Infof("Listening for notifications from %s", appCfg.ServerURL)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	tool.DefaultLogger.Info("Shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		tool.DefaultLogger.Warnf("Gateway shutdown: %v", err)
	}
	sess.Stop()
}
