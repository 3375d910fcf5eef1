package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-pdu/device"
)

var outletCmd = &cobra.Command{
	Use:   "outlet <number> <on|off|toggle|reset>",
	Short: "Apply a power action to one outlet",
	Args:  cobra.ExactArgs(2),
	RunE:  runOutlet,
}

func init() {
	rootCmd.AddCommand(outletCmd)
}

func runOutlet(cmd *cobra.Command, args []string) error {
	outlet, err := strconv.Atoi(args[0])
	if err != nil || outlet < 1 {
		return fmt.Errorf("outlet number %q must be a positive integer", args[0])
	}

	var action device.OutletAction
	switch strings.ToLower(args[1]) {
	case "on":
		action = device.ActionOn
	case "off":
		action = device.ActionOff
	case "toggle":
		action = device.ActionToggle
	case "reset":
		action = device.ActionReset
	default:
		return fmt.Errorf("unknown action %q: want on, off, toggle, or reset", args[1])
	}

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

	if err := dev.SetOutlet(ctx, outlet, action); err != nil {
		return fmt.Errorf("outlet %d %s: %w", outlet, args[1], err)
	}

	fmt.Printf("outlet %d: %s acknowledged\n", outlet, strings.ToUpper(args[1]))
	return nil
}
