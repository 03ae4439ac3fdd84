package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"

	"github.com/sweeney/door-alerter/internal/chat"
	"github.com/sweeney/door-alerter/internal/config"
	"github.com/sweeney/door-alerter/internal/gpio"
	"github.com/sweeney/door-alerter/internal/incident"
	"github.com/sweeney/door-alerter/internal/logic"
	"github.com/sweeney/door-alerter/internal/monitor"
	"github.com/sweeney/door-alerter/internal/mqtt"
	"github.com/sweeney/door-alerter/internal/prefs"
	"github.com/sweeney/door-alerter/internal/presence"
	"github.com/sweeney/door-alerter/internal/status"
	"github.com/sweeney/door-alerter/internal/web"
	"github.com/sweeney/door-alerter/internal/webhook"
)

// tickInterval is how often the loop wakes to check its gates.
const tickInterval = 100 * time.Millisecond

func runPrintState(cfg *config.Config, w io.Writer) error {
	reader, err := gpio.NewRealReader(cfg.Door.Chip, cfg.Door.Pin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	return printDoorState(reader, w)
}

func printDoorState(reader gpio.Reader, w io.Writer) error {
	open, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	_, err = fmt.Fprintf(w, "Door: %s\n", logic.StateFromOpen(open))
	return err
}

func run(ctx context.Context, cfg *config.Config, sig <-chan os.Signal, log zerolog.Logger) error {
	startTime := time.Now()

	reader, err := gpio.NewRealReader(cfg.Door.Chip, cfg.Door.Pin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	store, err := openPrefs(ctx, cfg.Prefs.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	var deps monitor.Deps

	indicator, err := gpio.NewRealIndicator(cfg.Door.Chip, cfg.Door.LEDOpenPin, cfg.Door.LEDClosedPin)
	if err != nil {
		log.Warn().Err(err).Msg("indicator unavailable, continuing without LEDs")
	} else {
		defer indicator.Close()
		deps.Indicator = indicator
	}

	if cfg.Presence.Enabled {
		deps.Presence = presence.NewChecker(presence.NewBLEScanner(), cfg.Presence.ScanDuration,
			cfg.Presence.MinRSSI, component(log, "presence"))
	}

	if cfg.PagerDuty.Enabled {
		deps.Incidents = incident.NewClient(cfg.PagerDuty.RoutingKey, cfg.PagerDuty.Endpoint,
			cfg.PagerDuty.Timeout, component(log, "pagerduty"))
	}

	if cfg.Webhook.Enabled {
		deps.Webhook = webhook.New(webhook.Config{
			TLS:     cfg.Webhook.TLS,
			Host:    cfg.Webhook.Host,
			Port:    cfg.Webhook.Port,
			Path:    cfg.Webhook.Path,
			Timeout: cfg.Webhook.Timeout,
		}, component(log, "webhook"))
	}

	var transport chat.Transport
	var channel *chat.Channel
	if cfg.Telegram.Enabled {
		tg, err := chat.NewTelegram(cfg.Telegram.Token, 10*time.Second)
		if err != nil {
			return fmt.Errorf("init telegram: %w", err)
		}
		transport = tg
		channel = chat.NewChannel(tg, cfg.Telegram.OwnerChatID, component(log, "chat"))
		deps.Chat = channel
	}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Enabled {
		p, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.Device.Name, cfg.MQTT.TopicPrefix, component(log, "mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
		deps.Events = p
	}

	severity, _ := incident.ParseSeverity(cfg.PagerDuty.Severity)
	mon := monitor.New(monitor.Config{
		PollInterval: cfg.Door.PollInterval,
		Stealth:      cfg.Device.Stealth,
		Tokens:       cfg.Tokens(),
		Severity:     severity,
		Summary:      cfg.PagerDuty.Summary,
		Source:       cfg.PagerDuty.Source,
	}, deps, startTime, component(log, "monitor"))

	tracker := status.NewTracker(startTime, status.Config{
		Device:      cfg.Device.Name,
		PollMs:      cfg.Door.PollInterval.Milliseconds(),
		HeartbeatMs: heartbeatInterval(cfg).Milliseconds(),
		Stealth:     cfg.Device.Stealth,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		Presence:    cfg.Presence.Enabled,
		PagerDuty:   cfg.PagerDuty.Enabled,
		Telegram:    cfg.Telegram.Enabled,
		Webhook:     cfg.Webhook.Enabled,
	})

	if cfg.HTTP.Addr != "" && cfg.HTTP.Addr != "off" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	l := &loop{
		reader:     reader,
		mon:        mon,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		prefs:      store,
		chat:       channel,
		ttl:        cfg.Device.TTL,
		heartbeat:  heartbeatInterval(cfg),
		startTime:  startTime,
		now:        time.Now,
		notify:     sdNotify,
		log:        log,
	}
	if transport != nil {
		l.bot = chat.NewBot(transport, mon, chat.BotConfig{
			Owner:     cfg.Telegram.OwnerChatID,
			StartTime: startTime,
			Restart:   l.requestRestart,
		}, component(log, "bot"))
		l.chatGate = logic.NewGate(cfg.Telegram.PollInterval)
	}

	l.boot(ctx)

	log.Info().
		Dur("poll", cfg.Door.PollInterval).
		Bool("stealth", cfg.Device.Stealth).
		Dur("ttl", cfg.Device.TTL).
		Msg("started")

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	return l.run(ctx, ticker.C, sig)
}

func openPrefs(ctx context.Context, path string) (prefs.Store, error) {
	if path == "" {
		return prefs.NewMemoryStore(), nil
	}
	s, err := prefs.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func heartbeatInterval(cfg *config.Config) time.Duration {
	if !cfg.MQTT.Enabled || cfg.MQTT.Heartbeat < 0 {
		return 0
	}
	return cfg.MQTT.Heartbeat
}

// sdNotify reports to systemd when running under it. Outside systemd it is a no-op.
func sdNotify(state string) {
	_, _ = daemon.SdNotify(false, state)
}
