package tracker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/transitlive/transitlive/pkg/store"
	"github.com/transitlive/transitlive/pkg/transit"
)

// HistoryBatchConsumer drains the tracking history queue and
// bulk-writes records to the history store.
type HistoryBatchConsumer struct {
	history store.HistoryStore
}

func NewHistoryBatchConsumer(history store.HistoryStore) *HistoryBatchConsumer {
	return &HistoryBatchConsumer{history: history}
}

func (consumer *HistoryBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	var records []transit.TrackingRecord
	for _, payload := range payloads {
		var record transit.TrackingRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			log.Error().Err(err).Msg("Failed to decode tracking record payload")
			continue
		}

		records = append(records, record)
	}

	if len(records) > 0 {
		startTime := time.Now()
		err := consumer.history.AppendBatch(context.Background(), records)

		if err != nil {
			log.Error().Err(err).Msg("Failed to bulk write tracking records")

			if rejectErrors := batch.Reject(); len(rejectErrors) > 0 {
				for _, err := range rejectErrors {
					log.Error().Err(err).Msg("Failed to reject tracking record batch")
				}
			}

			return
		}

		log.Info().Int("Length", len(records)).Str("Time", time.Since(startTime).String()).Msg("Bulk write tracking history")
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to ack tracking record batch")
		}
	}
}
