package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"streamgen/internal/config"
	"streamgen/internal/models"
)

func newQuickCmd() *cobra.Command {
	var (
		rateFlag       int
		output         string
		kafkaBootstrap string
		kafkaTopic     string
		filePath       string
		noAPI          bool
	)

	cmd := &cobra.Command{
		Use:   "quick <schema>",
		Short: "Run a producer from an inline schema like \"id:int,name:string\"",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := config.ParseQuickSchema(args[0])
			if err != nil {
				return err
			}

			app := &config.AppConfig{
				Producer: &config.ProducerSection{
					Name:       "quick-producer",
					Output:     models.SinkType(output),
					Rate:       rateFlag,
					KafkaTopic: kafkaTopic,
					FilePath:   filePath,
					Fields:     fields,
				},
			}
			if kafkaBootstrap != "" || models.SinkType(output) == models.SinkKafka {
				servers := []string{"localhost:9092"}
				if kafkaBootstrap != "" {
					servers = strings.Split(kafkaBootstrap, ",")
				}
				app.Kafka = &config.KafkaConfig{BootstrapServers: servers}
			}

			if err := app.Finalize(); err != nil {
				return err
			}
			if err := setupLogging(app.Log); err != nil {
				return err
			}
			return runProducer(cmd.Context(), app, noAPI)
		},
	}
	cmd.Flags().IntVarP(&rateFlag, "rate", "r", 1, "records per second")
	cmd.Flags().StringVarP(&output, "output", "o", "console", "output type (console, file, kafka)")
	cmd.Flags().StringVar(&kafkaBootstrap, "kafka-bootstrap", "", "comma-separated Kafka bootstrap servers")
	cmd.Flags().StringVar(&kafkaTopic, "kafka-topic", "", "Kafka topic")
	cmd.Flags().StringVar(&filePath, "file-path", "", "output directory for file output")
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "run without the HTTP API")
	return cmd
}
