package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-pdu/devicesim"
)

var (
	flagSimAddr    string
	flagSimOutlets int
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run a local simulated device",
	Long: `Runs an in-process simulated power-distribution device for development
and testing. It accepts the credentials admin/admin and serves the full
query and control catalog. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runSim,
}

func init() {
	simCmd.Flags().StringVar(&flagSimAddr, "addr", "127.0.0.1:2323", "Address to listen on")
	simCmd.Flags().IntVar(&flagSimOutlets, "outlets", 4, "Number of outlets")
	rootCmd.AddCommand(simCmd)
}

func runSim(cmd *cobra.Command, args []string) error {
	if flagSimOutlets < 1 {
		return fmt.Errorf("outlet count %d must be positive", flagSimOutlets)
	}

	log, err := newLogger(flagLogDir)
	if err != nil {
		return err
	}

	cfg := devicesim.DefaultConfig(flagSimAddr)
	cfg.Logger = log
	cfg.OutletNames = make([]string, flagSimOutlets)
	for i := range cfg.OutletNames {
		cfg.OutletNames[i] = fmt.Sprintf("Outlet %d", i+1)
	}

	server := devicesim.New(cfg)
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	fmt.Printf("simulated device on %s (login admin/admin), Ctrl+C to stop\n", server.Addr())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	fmt.Println("\nstopping")
	return nil
}
