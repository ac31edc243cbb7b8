package main

import (
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sweeney/garage-opener/internal/config"
	"github.com/sweeney/garage-opener/internal/door"
	"github.com/sweeney/garage-opener/internal/gpio"
	"github.com/sweeney/garage-opener/internal/indicator"
	"github.com/sweeney/garage-opener/internal/mqtt"
)

// hardware holds the GPIO lines the daemon owns.
type hardware struct {
	chip      *gpio.Chip
	door1     *gpio.RealOutput
	door2     *gpio.RealOutput
	led       *gpio.RealOutput
	indicator *indicator.Aggregator
}

func openHardware(cfg config.GPIOConfig, log *zap.SugaredLogger) (_ *hardware, err error) {
	chip, err := gpio.OpenChip(cfg.Chip)
	if err != nil {
		return nil, err
	}
	hw := &hardware{chip: chip}
	defer func() {
		if err != nil {
			err = multierr.Append(err, hw.Close())
		}
	}()

	if hw.door1, err = chip.Output(cfg.Door1Pin, appName+"-door1"); err != nil {
		return nil, err
	}
	if hw.door2, err = chip.Output(cfg.Door2Pin, appName+"-door2"); err != nil {
		return nil, err
	}

	var renderer indicator.Renderer = indicator.NopRenderer{}
	if cfg.IndicatorPin != config.IndicatorDisabled {
		if hw.led, err = chip.Output(cfg.IndicatorPin, appName+"-indicator"); err != nil {
			return nil, err
		}
		renderer = indicator.NewLEDRenderer(hw.led)
	}
	hw.indicator = indicator.New(renderer, log.Named("indicator"))
	return hw, nil
}

// Close releases every line, relays first, then the chip.
func (hw *hardware) Close() error {
	var err error
	for _, out := range []*gpio.RealOutput{hw.door1, hw.door2, hw.led} {
		if out != nil {
			err = multierr.Append(err, out.Close())
		}
	}
	if hw.chip != nil {
		err = multierr.Append(err, hw.chip.Close())
	}
	return err
}

// brokerClient is the MQTT surface the daemon uses.
type brokerClient interface {
	mqtt.Publisher
	mqtt.ConnectionStatus
	Connect(timeout time.Duration) error
}

func newPublisher(cfg config.MQTTConfig, log *zap.SugaredLogger, onCommand mqtt.CommandHandler) brokerClient {
	if cfg.Broker == "" {
		log.Infow("mqtt disabled")
		return offline{}
	}
	return mqtt.NewRealClient(mqtt.Options{
		Broker:    cfg.Broker,
		ClientID:  cfg.ClientID,
		Prefix:    cfg.TopicPrefix,
		Logger:    log.Named("mqtt"),
		OnCommand: onCommand,
	})
}

// offline stands in for the broker when MQTT is disabled.
type offline struct{}

func (offline) ReportPowerState(door.ID, bool) error { return nil }
func (offline) PublishSystem(mqtt.SystemEvent) error { return nil }
func (offline) Close() error                         { return nil }
func (offline) IsConnected() bool                    { return false }
func (offline) Connect(time.Duration) error          { return nil }

