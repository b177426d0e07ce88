package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/chrisdamba/deliverysim/internal/feed"
	"github.com/chrisdamba/deliverysim/internal/logger"
	"github.com/chrisdamba/deliverysim/internal/metrics"
	"github.com/chrisdamba/deliverysim/internal/models"
	"github.com/chrisdamba/deliverysim/internal/scheduler"
	"github.com/chrisdamba/deliverysim/internal/simulator"
)

var (
	cfgFile       string
	runFor        time.Duration
	initialOrders []string
)

// cmdOnly lists flags that are not part of models.Config.
var cmdOnly = map[string]bool{"config": true, "duration": true, "order": true}

var rootCmd = &cobra.Command{
	Use:   "deliverysim",
	Short: "Simulates a pizza delivery vehicle driving a small road grid",
	Long: `deliverysim places pizza orders, plans a route for the delivery vehicle around red
traffic signals and animates the trip, streaming every event to the configured outputs and to a
live websocket feed.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	d := models.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml or json)")

	f := rootCmd.Flags()
	f.DurationVar(&runFor, "duration", 0, "Stop after this long, 0 runs until interrupted")
	f.StringSliceVar(&initialOrders, "order", nil, "Menu items to order at startup")

	f.Int64("seed", d.Seed, "Random seed for destinations and generated orders")
	f.Duration("prep-time", d.PrepTime, "Kitchen preparation time per order")
	f.Duration("delivery-time", d.DeliveryTime, "Time the vehicle takes for one trip")
	f.Duration("dispatch-delay", d.DispatchDelay, "Pause between route planning and departure")
	f.Duration("signal-period", d.SignalPeriod, "Traffic signal toggle period")
	f.String("planner", d.Planner, "Route planner: traffic or axis")
	f.Float64("traffic-penalty", d.TrafficPenalty, "Cost added for each red signal on a route")
	f.Duration("order-interval", d.OrderInterval, "Place a random order every interval, 0 disables")
	f.Int("max-orders", d.MaxOrders, "Stop generating orders after this many, 0 means no limit")
	f.Int("state-sample-ticks", d.StateSampleTicks, "Publish every nth vehicle frame, 0 publishes only arrivals")
	f.String("output-format", d.OutputFormat, "Output format: console, json, csv, parquet or none")
	f.String("output-path", d.OutputPath, "Base directory for file outputs")
	f.String("output-folder", d.OutputFolder, "Folder under the output path or bucket")
	f.String("output-destination", d.OutputDestination, "Parquet destination: local or cloud")
	f.Bool("kafka-enabled", d.KafkaEnabled, "Enable Kafka output")
	f.String("kafka-broker-list", d.KafkaBrokerList, "Kafka broker list")
	f.Bool("mqtt-enabled", d.MQTTEnabled, "Enable MQTT output")
	f.String("mqtt-broker", d.MQTTBroker, "MQTT broker URL")
	f.String("http-addr", ":8080", "Live feed address, empty disables the server")
	f.Bool("progress-bar", false, "Draw a progress bar for each delivery on stderr")

	f.VisitAll(func(fl *pflag.Flag) {
		if cmdOnly[fl.Name] {
			return
		}
		cobra.CheckErr(viper.BindPFlag(strings.ReplaceAll(fl.Name, "-", "_"), fl))
	})
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := models.LoadConfig(viper.GetViper(), cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	log := logger.New("cmd")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runFor)
		defer cancel()
	}

	output, err := simulator.NewOutputDestination(ctx, cfg, logger.New("output"))
	if err != nil {
		return fmt.Errorf("configure outputs: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		_ = output.Close()
		return fmt.Errorf("register metrics: %w", err)
	}

	loop := scheduler.NewLoop()
	sim, err := simulator.NewSimulator(cfg, loop,
		simulator.WithOutput(output),
		simulator.WithMetrics(prom),
		simulator.WithLogger(logger.New("simulator")),
	)
	if err != nil {
		_ = output.Close()
		return err
	}
	if cfg.ProgressBar {
		sim.Subscribe(simulator.NewProgressReporter(os.Stderr).HandleEvent)
	}

	var server *feed.Server
	if cfg.HTTPAddr != "" {
		feedLog := logger.New("feed")
		hub := feed.NewHub(feedLog)
		sim.Subscribe(hub.HandleEvent)
		server = feed.NewServer(cfg.HTTPAddr, sim, loop, hub, reg, feedLog)
		go func() {
			if err := server.ListenAndServe(); err != nil {
				log.Errorf("%v", err)
				stop()
			}
		}()
	}

	for _, item := range initialOrders {
		item := strings.TrimSpace(item)
		loop.Post(func() {
			if _, err := sim.PlaceOrder(item); err != nil {
				log.Warnf("%v", err)
			}
		})
	}

	err = sim.Run(ctx, loop)
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = errors.Join(err, server.Shutdown(shutdownCtx))
	}
	return err
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
