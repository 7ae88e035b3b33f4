package api

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/transitlive/transitlive/pkg/consumer"
	"github.com/transitlive/transitlive/pkg/database"
	"github.com/transitlive/transitlive/pkg/elastic_client"
	"github.com/transitlive/transitlive/pkg/events"
	"github.com/transitlive/transitlive/pkg/redis_client"
	"github.com/transitlive/transitlive/pkg/store"
	"github.com/transitlive/transitlive/pkg/tracker"
	"github.com/transitlive/transitlive/pkg/transit"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "tracker",
		Usage: "Realtime engine ingests vehicle reports, tracks live state and fans out events",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run an instance of the realtime tracking engine",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
					&cli.StringFlag{
						Name:  "stats-listen",
						Value: "localhost:3333",
						Usage: "listen target for the consumer stats server",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}
					if err := elastic_client.Connect(false); err != nil {
						return err
					}

					entities := store.NewMongoEntityStore()
					history := store.NewMongoHistoryStore()

					broadcaster := events.NewBroadcaster()

					recorder, err := tracker.NewQueueRecorder()
					if err != nil {
						return err
					}

					liveTracker := tracker.New(tracker.Options{
						Entities:    entities,
						History:     history,
						Recorder:    recorder,
						Broadcaster: broadcaster,
						Catalog:     tracker.NewCachedStopCatalog(tracker.NewEntityStopCatalog(entities), redis_client.Client),

						HistoryRetention: time.Duration(database.HistoryRetentionSeconds()) * time.Second,
					})

					historyConsumer := consumer.RedisConsumer{
						QueueName:       tracker.HistoryQueueName,
						NumberConsumers: 2,
						BatchSize:       200,
						Timeout:         2 * time.Second,
						Consumer:        tracker.NewHistoryBatchConsumer(history),
					}
					historyConsumer.Setup()

					reportConsumer := consumer.RedisConsumer{
						QueueName:       tracker.ReportQueueName,
						NumberConsumers: 5,
						BatchSize:       200,
						Timeout:         2 * time.Second,
						Consumer:        tracker.NewReportBatchConsumer(liveTracker),
					}
					reportConsumer.Setup()

					go consumer.StartStatsServer(c.String("stats-listen"))

					go func() {
						if err := SetupServer(c.String("listen"), liveTracker, broadcaster); err != nil {
							log.Fatal().Err(err).Msg("Web server failed")
						}
					}()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					broadcaster.Shutdown()
					elastic_client.WaitUntilQueueEmpty()

					return nil
				},
			},
			{
				Name:  "test-report",
				Usage: "publish a sample location report onto the reports queue",
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					report := transit.LocationReport{
						VehicleRef:  "TRANSITLIVE:VEHICLE:BUS001",
						Coordinates: []float64{-0.141944, 51.514797},
						Speed:       23,
						Heading:     180,
						Accuracy:    8,
						Occupancy:   31,
						Status:      transit.TrackingStatusMoving,
						Timestamp:   time.Now(),
					}

					reportsQueue, err := redis_client.QueueConnection.OpenQueue(tracker.ReportQueueName)
					if err != nil {
						log.Fatal().Err(err).Msg("Failed to open reports queue")
					}

					reportBytes, _ := json.Marshal(report)
					if err := reportsQueue.PublishBytes(reportBytes); err != nil {
						return err
					}

					pretty.Println(report)

					return nil
				},
			},
		},
	}
}
