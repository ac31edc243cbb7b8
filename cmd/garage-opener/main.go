// Command garage-opener drives two garage door relays from MQTT and HTTP commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/garage-opener/internal/config"
	"github.com/sweeney/garage-opener/internal/door"
	"github.com/sweeney/garage-opener/internal/logger"
	"github.com/sweeney/garage-opener/internal/mqtt"
	"github.com/sweeney/garage-opener/internal/status"
	"github.com/sweeney/garage-opener/internal/web"
)

const (
	appName        = "garage-opener"
	version        = "0.3.0"
	connectTimeout = 10 * time.Second
)

type options struct {
	configPath string
	logLevel   string
	broker     string
	httpAddr   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:     appName,
		Short:   "Pulse garage door relays on MQTT and HTTP commands",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			if err := run(cfg, log); err != nil {
				log.Errorw("fatal", "error", err)
				return err
			}
			return nil
		},
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the file")
	root.Flags().StringVar(&opts.broker, "broker", "", `MQTT broker address; overrides the file ("off" disables MQTT)`)
	root.Flags().StringVar(&opts.httpAddr, "http", "", `HTTP status address; overrides the file ("off" disables HTTP)`)

	root.AddCommand(newPulseCmd(opts))
	return root
}

// setup loads the config, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, opts *options) (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	applyOverrides(cfg, cmd, opts)
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(level).Named(appName), nil
}

func applyOverrides(cfg *config.Config, cmd *cobra.Command, opts *options) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("broker") {
		cfg.MQTT.Broker = disabled(opts.broker)
	}
	if flags.Changed("http") {
		cfg.HTTP.Addr = disabled(opts.httpAddr)
	}
}

func disabled(v string) string {
	if v == "off" {
		return ""
	}
	return v
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	hw, err := openHardware(cfg.GPIO, log)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := hw.Close(); err != nil {
			log.Errorw("gpio close", "error", err)
		}
	}()

	// The controller is assigned before the client connects, so no command
	// can arrive before boot.
	var ctrl *door.Controller
	client := newPublisher(cfg.MQTT, log, func(id door.ID, on bool) error {
		return ctrl.Activate(id, on)
	})
	defer client.Close()

	ctrl = door.NewController(door.Config{
		Door1:     hw.door1,
		Door2:     hw.door2,
		Indicator: hw.indicator,
		Reporter:  client,
		Logger:    log.Named("door"),
	})
	if err := ctrl.Boot(); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	if err := client.Connect(connectTimeout); err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Door1Pin:     cfg.GPIO.Door1Pin,
		Door2Pin:     cfg.GPIO.Door2Pin,
		IndicatorPin: cfg.GPIO.IndicatorPin,
		PulseMs:      door.PulseDuration.Milliseconds(),
		HeartbeatMs:  cfg.Heartbeat.Milliseconds(),
		Broker:       cfg.MQTT.Broker,
		HTTPAddr:     cfg.HTTP.Addr,
	}, ctrl)
	tracker.SetMQTTConnected(client.IsConnected())

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(startup); err != nil {
		log.Warnw("failed to publish startup event", "error", err)
	} else {
		log.Infow("published startup event")
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, ctrl, log.Named("http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Errorw("http shutdown", "error", err)
			}
		}()
		log.Infow("http status server listening", "addr", cfg.HTTP.Addr)
	}

	log.Infow("started",
		"door1_pin", cfg.GPIO.Door1Pin,
		"door2_pin", cfg.GPIO.Door2Pin,
		"broker", cfg.MQTT.Broker,
		"heartbeat", cfg.Heartbeat)

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		ticker := time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(client, client, ctrl, tracker, log, time.Now, heartbeat, sigCh)
}

// stopper is satisfied by the door controller.
type stopper interface {
	Stop()
}

func runLoop(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, pulses stopper, tracker *status.Tracker, log *zap.SugaredLogger, now func() time.Time, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Infow("shutting down", "signal", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			// Pulses cannot be aborted. Refuse new ones and let the running
			// ones restore the relays before the lines are released.
			pulses.Stop()

			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warnw("failed to publish shutdown event", "error", err)
			} else {
				log.Infow("published shutdown event")
			}
			return nil

		case <-heartbeat:
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				log.Debugw("heartbeat", "uptime", snap.Uptime(), "indicator", snap.Indicator())
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warnw("heartbeat publish error", "error", err)
			}
		}
	}
}
