package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"streamgen/internal/config"
	"streamgen/internal/dictionary"
	"streamgen/internal/dispatch"
	"streamgen/internal/models"
	"streamgen/internal/producer"
	"streamgen/internal/quarantine"
	"streamgen/pkg/metrics"
	"streamgen/pkg/sink"
)

// setupLogging configures logrus from the log section: level, and optionally
// a size-rotated file next to stderr.
func setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rotated))
	}
	return nil
}

// loadDictionaries loads every configured CSV dictionary into a store.
func loadDictionaries(cfgs map[string]config.DictionaryConfig) (*dictionary.Store, error) {
	store := dictionary.NewStore()
	for name, cfg := range cfgs {
		dict, err := dictionary.LoadCSV(name, cfg.File, cfg.Columns)
		if err != nil {
			return nil, err
		}
		store.Add(dict)
		log.WithFields(log.Fields{"dictionary": name, "rows": dict.Len()}).Debug("dictionary loaded")
	}
	return store, nil
}

// buildSink constructs the configured output sink.
func buildSink(app *config.AppConfig, pcfg models.ProducerConfig) (sink.Sink, error) {
	switch pcfg.Sink.Type {
	case models.SinkConsole:
		return sink.NewConsole(os.Stdout), nil
	case models.SinkMemory:
		return sink.NewMemory(), nil
	case models.SinkFile:
		return sink.NewFile(pcfg.Sink.Path, pcfg.Name, app.FileOutput.Rolling, nil)
	case models.SinkKafka:
		kcfg := sink.KafkaConfig{
			Brokers: app.Kafka.BootstrapServers,
			Topic:   pcfg.Sink.Topic,
		}
		if app.Kafka.SecurityProtocol == "SASL_PLAINTEXT" || app.Kafka.SecurityProtocol == "SASL_SSL" {
			kcfg.Username = app.Kafka.SASLUsername
			kcfg.Password = app.Kafka.SASLPassword
		}
		kcfg.TLS = app.Kafka.SecurityProtocol == "SSL" || app.Kafka.SecurityProtocol == "SASL_SSL"
		return sink.NewKafka(kcfg)
	default:
		return nil, &models.ConfigError{Field: "output", Reason: fmt.Sprintf("unknown sink type %q", pcfg.Sink.Type)}
	}
}

// buildController assembles the full producer from configuration: sink,
// quarantine, metrics, dispatcher and controller.
func buildController(app *config.AppConfig) (*producer.Controller, *quarantine.Log, prometheus.Gatherer, error) {
	pcfg := app.ProducerConfig()

	dicts, err := loadDictionaries(app.Dictionaries)
	if err != nil {
		return nil, nil, nil, err
	}
	snk, err := buildSink(app, pcfg)
	if err != nil {
		return nil, nil, nil, err
	}
	quar, err := quarantine.New(pcfg.Name, quarantine.Config{
		Directory: app.ErrorLog.Directory,
		Rolling:   app.ErrorLog.Rolling,
	}, nil)
	if err != nil {
		return nil, nil, nil, err
	}

	registry := prometheus.NewRegistry()
	mtr := metrics.NewMetrics("streamgen", registry)

	ctrl, err := producer.New(pcfg, dicts, snk, producer.Options{
		Quarantine: quar,
		Metrics:    mtr,
		Dispatch: dispatch.Config{
			MaxInFlight:   app.Dispatch.MaxInFlight,
			SlotTimeout:   app.Dispatch.SlotTimeout.Std(),
			RetryAttempts: app.Dispatch.RetryAttempts,
			RetryDelay:    app.Dispatch.RetryDelay.Std(),
			StopGrace:     app.Dispatch.StopGrace.Std(),
		},
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return ctrl, quar, registry, nil
}

// quarantineMaxAge converts the configured retention in days.
func quarantineMaxAge(cfg config.ErrorLogConfig) time.Duration {
	return time.Duration(cfg.MaxAgeDays) * 24 * time.Hour
}
