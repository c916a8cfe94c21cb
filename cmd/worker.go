package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TR14WR/Testinfotecs/internal/worker"
	"github.com/TR14WR/Testinfotecs/pkg/logger"
)

var (
	workerCoordAddr string
	workerLanes     int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Manage worker nodes",
}

var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a worker",
	Long: `Start a worker: connect to the coordinator, report local capacity and
compute tasks until the coordinator closes the connection. The worker does
not reconnect; on transport failure it exits non-zero so a supervisor can
restart it.`,
	Example: `  # Connect to a local coordinator with auto-detected lanes
  integrator worker start

  # Connect to a remote coordinator with a fixed lane count
  integrator worker start --coordinator host:12345 --lanes 4`,
	RunE: runWorkerStart,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerStartCmd)

	workerStartCmd.Flags().StringVar(&workerCoordAddr, "coordinator", "", "coordinator TCP address")
	workerStartCmd.Flags().IntVar(&workerLanes, "lanes", 0, "execution lane count (0 = CPU count)")
}

func runWorkerStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cmd.Flags().Changed("coordinator") {
		cfg.Worker.CoordinatorAddr = workerCoordAddr
	}
	if cmd.Flags().Changed("lanes") {
		cfg.Worker.Lanes = workerLanes
	}

	engine := worker.New(&worker.Config{
		CoordinatorAddr: cfg.Worker.CoordinatorAddr,
		Lanes:           cfg.Worker.Lanes,
		DialTimeout:     cfg.Worker.DialTimeout,
		MaxFrameSize:    cfg.Worker.MaxFrameSize,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := engine.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer engine.Close()

	if !quiet {
		fmt.Printf("worker %d connected to %s with %d lanes\n",
			engine.ID(), cfg.Worker.CoordinatorAddr, engine.Lanes())
	}

	if err := engine.Run(ctx); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	return nil
}
