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

	"github.com/DavidGamba/go-getoptions"
	"github.com/cyverse-de/configurate"
	"github.com/cyverse-de/go-mod/otelutils"
	"github.com/pdv-retail/business-alerts/alerts"
	"github.com/pdv-retail/business-alerts/common"
	"github.com/pdv-retail/business-alerts/db"
	"github.com/pdv-retail/business-alerts/handlers"
	"github.com/pdv-retail/business-alerts/handlerset"
	"github.com/pdv-retail/business-alerts/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"
)

const serviceName = "business-alerts"

var log = logrus.WithFields(logrus.Fields{"service": serviceName})

// commandLineOptionValues represents the values of the command-line options that were passed on the command line when
// this service was invoked.
type commandLineOptionValues struct {
	Config   string
	LogLevel string
}

func parseCommandLine() *commandLineOptionValues {
	optionValues := &commandLineOptionValues{}
	opt := getoptions.New()

	// Default option values.
	defaultConfigPath := "/etc/pdv/business-alerts.yml"

	// Define the command-line options.
	opt.Bool("help", false, opt.Alias("h", "?"))
	opt.StringVar(&optionValues.Config, "config", defaultConfigPath,
		opt.Alias("c"),
		opt.Description("the path to the configuration file"))
	opt.StringVar(&optionValues.LogLevel, "log-level", "info",
		opt.Alias("l"),
		opt.Description("one of trace, debug, info, warn, error, fatal or panic"))

	// Parse the command line, handling requests for help and usage errors.
	_, err := opt.Parse(os.Args[1:])
	if opt.Called("help") {
		fmt.Fprint(os.Stderr, opt.Help())
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", err)
		fmt.Fprint(os.Stderr, opt.Help(getoptions.HelpSynopsis))
		os.Exit(1)
	}

	return optionValues
}

// initLogging configures the global logger.
func initLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithError(err).Warn("invalid log level, using info")
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)
}

// serveMetrics exposes the Prometheus metrics until the server is shut down.
func serveMetrics(listenAddress string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()

	return server
}

func main() {
	// Parse the command-line.
	optionValues := parseCommandLine()

	// Initialize logging.
	initLogging(optionValues.LogLevel)

	// Initialize tracing.
	tracerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdown := otelutils.TracerProviderFromEnv(tracerCtx, serviceName, func(e error) { log.Fatal(e) })
	defer shutdown()

	// Read in the configuration file.
	cfg, err := configurate.InitDefaults(optionValues.Config, defaultConfig)
	if err != nil {
		log.Fatal(err)
	}

	// Determine the fallback time zone.
	location, err := time.LoadLocation(cfg.GetString("alerts.timezone"))
	if err != nil {
		log.Fatal(err)
	}

	// Establish the database connection.
	dbconn, err := db.InitDatabase("postgres", cfg.GetString("db.uri"))
	if err != nil {
		log.Fatal(err)
	}
	defer dbconn.Close()

	// Build the refresh pipeline.
	m := metrics.New(prometheus.DefaultRegisterer)
	pipelineConfig := alerts.DefaultPipelineConfig()
	pipelineConfig.Location = location
	pipelineConfig.SettingsTTL = cfg.GetDuration("alerts.settings_ttl")
	pipeline := alerts.NewPipeline(db.NewStore(dbconn), pipelineConfig, log.WithField("component", "pipeline"), m)
	refresher := alerts.NewRefresher(
		pipeline,
		cfg.GetDuration("alerts.refresh_interval"),
		log.WithField("component", "refresher"),
		m,
	)

	// Connect to the AMQP broker.
	amqpSettings := &common.AMQPSettings{
		URI:          cfg.GetString("amqp.uri"),
		ExchangeName: cfg.GetString("amqp.exchange.name"),
		ExchangeType: cfg.GetString("amqp.exchange.type"),
		QueueName:    cfg.GetString("amqp.queue"),
	}
	handlerSet, err := handlerset.New(
		amqpSettings,
		handlers.InitMessageHandlers(refresher),
		log.WithField("component", "handlerset"),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer handlerSet.Close()
	refresher.WithPublisher(handlerSet)

	// Start everything up.
	metricsServer := serveMetrics(cfg.GetString("metrics.listen"))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refresher.Start(ctx)
	handlerSet.Listen()
	log.Info("business alerts service started")

	// Wait for a termination signal.
	<-ctx.Done()
	log.Info("shutting down")

	refresher.Close()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("unable to shut down the metrics server cleanly")
	}
}
