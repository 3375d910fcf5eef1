package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-pdu/pduclient"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stay connected and stream device notifications",
	Long: `Keeps the session open and prints every unsolicited notification the
device sends, such as outlet state changes. With --verbose every raw
protocol line is shown as well. The session reconnects automatically
if the device drops it. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, err := connectClient()
	if err != nil {
		return err
	}
	defer client.Close()

	client.OnNotification(func(event pduclient.NotificationEvent) {
		fmt.Printf("%s  %-16s %s\n",
			event.Timestamp.Format(time.TimeOnly), event.Name, strings.Join(event.Values, ","))
	})
	client.OnPhaseChange(func(event pduclient.PhaseChangeEvent) {
		fmt.Printf("%s  [session %s]\n", event.Timestamp.Format(time.TimeOnly), event.Phase)
	})
	if flagVerbose {
		client.OnRawMessage(func(event pduclient.RawMessageEvent) {
			fmt.Printf("%s  %s %s\n", event.Timestamp.Format(time.TimeOnly), event.Direction, event.Line)
		})
	}

	fmt.Printf("watching %s, Ctrl+C to stop\n", client.Host())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	fmt.Println("\nstopping")
	return nil
}
