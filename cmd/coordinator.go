package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TR14WR/Testinfotecs/api/rest"
	"github.com/TR14WR/Testinfotecs/internal/coordinator"
	"github.com/TR14WR/Testinfotecs/pkg/logger"
	"github.com/TR14WR/Testinfotecs/pkg/types"
)

var (
	coordListenAddr string
	coordAssignMode string
	coordTimeout    time.Duration
	coordHTTP       bool
	coordHTTPAddr   string

	coordOnce  bool
	coordWait  time.Duration
	coordLower float64
	coordUpper float64
	coordStep  float64
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Manage the coordinator",
}

var coordinatorStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the coordinator",
	Long: `Start the coordinator: accept worker connections and serve integration
requests over the HTTP control surface, or run a single request with --once.`,
	Example: `  # Accept workers and serve requests over HTTP
  integrator coordinator start --http --http-addr :8080

  # Wait 5s for workers, run one request, print the result and exit
  integrator coordinator start --once --wait 5s --lower 2 --upper 3 --step 0.001`,
	RunE: runCoordinatorStart,
}

func init() {
	rootCmd.AddCommand(coordinatorCmd)
	coordinatorCmd.AddCommand(coordinatorStartCmd)

	coordinatorStartCmd.Flags().StringVar(&coordListenAddr, "listen", "", "TCP address to accept workers on")
	coordinatorStartCmd.Flags().StringVar(&coordAssignMode, "assign-mode", "", "task assignment mode (ceil, largest_remainder)")
	coordinatorStartCmd.Flags().DurationVar(&coordTimeout, "timeout", 0, "result wait deadline (0 = none)")
	coordinatorStartCmd.Flags().BoolVar(&coordHTTP, "http", false, "enable the HTTP control surface")
	coordinatorStartCmd.Flags().StringVar(&coordHTTPAddr, "http-addr", "", "HTTP control surface address")

	coordinatorStartCmd.Flags().BoolVar(&coordOnce, "once", false, "run one integration request and exit")
	coordinatorStartCmd.Flags().DurationVar(&coordWait, "wait", 2*time.Second, "time to wait for workers before --once runs")
	coordinatorStartCmd.Flags().Float64Var(&coordLower, "lower", 0, "lower integration bound for --once")
	coordinatorStartCmd.Flags().Float64Var(&coordUpper, "upper", 0, "upper integration bound for --once")
	coordinatorStartCmd.Flags().Float64Var(&coordStep, "step", 0, "integration step for --once")
}

func runCoordinatorStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cmd.Flags().Changed("listen") {
		cfg.Coordinator.ListenAddr = coordListenAddr
	}
	if cmd.Flags().Changed("assign-mode") {
		cfg.Coordinator.AssignMode = coordAssignMode
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Coordinator.ResultTimeout = coordTimeout
	}
	if cmd.Flags().Changed("http") {
		cfg.HTTP.Enabled = coordHTTP
	}
	if cmd.Flags().Changed("http-addr") {
		cfg.HTTP.Address = coordHTTPAddr
	}
	if !types.AssignMode(cfg.Coordinator.AssignMode).Valid() {
		return fmt.Errorf("invalid assign mode: %s", cfg.Coordinator.AssignMode)
	}

	coord := coordinator.New(&coordinator.Config{
		ListenAddr:    cfg.Coordinator.ListenAddr,
		AssignMode:    types.AssignMode(cfg.Coordinator.AssignMode),
		ResultTimeout: cfg.Coordinator.ResultTimeout,
		MaxFrameSize:  cfg.Coordinator.MaxFrameSize,
	})
	if err := coord.Start(); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	defer coord.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if !quiet {
		fmt.Printf("coordinator listening on %s\n", coord.Addr())
	}

	if coordOnce {
		return runOnce(ctx, coord)
	}

	var httpSrv *rest.Server
	if cfg.HTTP.Enabled {
		httpSrv = rest.NewServer(coord, coord, &rest.Config{
			Address:      cfg.HTTP.Address,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		})
		go func() {
			if err := httpSrv.Listen(); err != nil {
				logger.Error("http server stopped", zap.Error(err))
				cancel()
			}
		}()
		if !quiet {
			fmt.Printf("http control surface on %s\n", cfg.HTTP.Address)
		}
	}

	<-ctx.Done()

	if httpSrv != nil {
		_ = httpSrv.Shutdown()
	}
	return nil
}

// runOnce waits for workers to connect, runs a single integration request
// and prints the result.
func runOnce(ctx context.Context, coord *coordinator.Coordinator) error {
	if coordUpper <= coordLower || coordStep <= 0 {
		return fmt.Errorf("--once requires --upper > --lower and --step > 0")
	}

	if !quiet {
		fmt.Printf("waiting %s for workers to connect...\n", coordWait)
	}
	select {
	case <-time.After(coordWait):
	case <-ctx.Done():
		return ctx.Err()
	}

	result, err := coord.Integrate(ctx, coordLower, coordUpper, coordStep)
	if err != nil {
		return fmt.Errorf("integrate: %w", err)
	}

	fmt.Printf("result: %g\n", result)
	return nil
}
