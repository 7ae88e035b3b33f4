package tracker

import (
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/transitlive/transitlive/pkg/redis_client"
	"github.com/transitlive/transitlive/pkg/transit"
)

const HistoryQueueName = "tracking-history-queue"
const ReportQueueName = "location-reports-queue"

// HistoryRecorder appends accepted reports to the history store.
// Recording must never block or fail vehicle-state acknowledgment.
type HistoryRecorder interface {
	Record(record transit.TrackingRecord)
}

// QueueRecorder hands records to a redis-backed queue; a batch consumer
// bulk-writes them to the history store.
type QueueRecorder struct {
	queue rmq.Queue
}

func NewQueueRecorder() (*QueueRecorder, error) {
	queue, err := redis_client.QueueConnection.OpenQueue(HistoryQueueName)
	if err != nil {
		return nil, err
	}

	return &QueueRecorder{queue: queue}, nil
}

func (r *QueueRecorder) Record(record transit.TrackingRecord) {
	recordBytes, _ := json.Marshal(record)

	if err := r.queue.PublishBytes(recordBytes); err != nil {
		log.Error().Err(err).Str("vehicle", record.VehicleRef).Msg("Failed to queue tracking record")
	}
}
