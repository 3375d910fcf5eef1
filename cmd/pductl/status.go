package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-pdu/device"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show device identity, power readings, and outlet states",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := connectClient()
	if err != nil {
		return err
	}
	defer client.Close()

	dev := device.New(client, nil)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	model, err := dev.Model(ctx)
	if err != nil {
		return fmt.Errorf("query model: %w", err)
	}
	firmware, err := dev.Firmware(ctx)
	if err != nil {
		return fmt.Errorf("query firmware: %w", err)
	}
	hostname, err := dev.Hostname(ctx)
	if err != nil {
		return fmt.Errorf("query hostname: %w", err)
	}
	tag, err := dev.ServiceTag(ctx)
	if err != nil {
		return fmt.Errorf("query service tag: %w", err)
	}

	fmt.Printf("Device:      %s\n", client.Host())
	fmt.Printf("Hostname:    %s\n", hostname)
	fmt.Printf("Model:       %s\n", model)
	fmt.Printf("Firmware:    %s\n", firmware)
	fmt.Printf("Service tag: %s\n", tag)

	if metrics, err := dev.Power(ctx); err == nil {
		fmt.Printf("Power:       %.2f A, %.1f W, %.1f V\n", metrics.Amps, metrics.Watts, metrics.Volts)
	}

	names, err := dev.OutletNames(ctx)
	if err != nil {
		return fmt.Errorf("query outlet names: %w", err)
	}
	states, err := dev.OutletStatus(ctx)
	if err != nil {
		return fmt.Errorf("query outlet status: %w", err)
	}

	fmt.Println()
	for i, name := range names {
		state := "?"
		if i < len(states) {
			if states[i] {
				state = "ON"
			} else {
				state = "OFF"
			}
		}
		fmt.Printf("  %2d  %-4s  %s\n", i+1, state, name)
	}

	return nil
}
