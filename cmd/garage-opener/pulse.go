package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/garage-opener/internal/config"
	"github.com/sweeney/garage-opener/internal/door"
)

func newPulseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pulse <door>",
		Short: "Boot the relay lines, pulse one door once and exit",
		Long: `Runs the boot sequence, pulses the given door (door1 or door2) once and
waits for the relay to open again. Nothing is published to MQTT.
Do not run it while the daemon holds the GPIO lines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := door.ParseID(args[0])
			if err != nil {
				return err
			}
			cfg, log, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			return pulseOnce(cfg, log, id)
		},
	}
}

func pulseOnce(cfg *config.Config, log *zap.SugaredLogger, id door.ID) error {
	hw, err := openHardware(cfg.GPIO, log)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := hw.Close(); err != nil {
			log.Errorw("gpio close", "error", err)
		}
	}()

	ctrl := door.NewController(door.Config{
		Door1:     hw.door1,
		Door2:     hw.door2,
		Indicator: hw.indicator,
		Logger:    log.Named("door"),
	})
	if err := ctrl.Boot(); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	if err := ctrl.Activate(id, true); err != nil {
		return err
	}
	ctrl.Wait()
	return nil
}
