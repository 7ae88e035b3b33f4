package tracker

import (
	"context"
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/transitlive/transitlive/pkg/transit"
)

// ReportBatchConsumer feeds queued location reports into the tracker.
// Rejected reports are logged and dropped, they are never retried.
type ReportBatchConsumer struct {
	tracker *Tracker
}

func NewReportBatchConsumer(tracker *Tracker) *ReportBatchConsumer {
	return &ReportBatchConsumer{tracker: tracker}
}

func (consumer *ReportBatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		var report transit.LocationReport
		if err := json.Unmarshal([]byte(payload), &report); err != nil {
			log.Error().Err(err).Msg("Failed to decode location report payload")
			continue
		}

		if _, err := consumer.tracker.SubmitReport(context.Background(), report); err != nil {
			log.Error().Err(err).Str("vehicle", report.VehicleRef).Msg("Rejected location report")
		}
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to ack location report batch")
		}
	}
}
