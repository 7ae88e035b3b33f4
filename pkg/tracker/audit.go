package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/transitlive/transitlive/pkg/elastic_client"
)

const (
	auditOutcomeAccepted = "ACCEPTED"
	auditOutcomeStale    = "STALE"
	auditOutcomeRejected = "REJECTED"
)

type reportAuditEvent struct {
	Timestamp time.Time

	VehicleRef string
	RouteRef   string

	Outcome string
	Reason  string
}

func auditReportOutcome(vehicleRef string, routeRef string, outcome string, reason string) {
	currentTime := time.Now()
	yearNumber, weekNumber := currentTime.ISOWeek()
	indexName := fmt.Sprintf("tracking-report-events-%d-%d", yearNumber, weekNumber)

	auditEvent, _ := json.Marshal(reportAuditEvent{
		Timestamp: currentTime,

		VehicleRef: vehicleRef,
		RouteRef:   routeRef,

		Outcome: outcome,
		Reason:  reason,
	})

	elastic_client.IndexRequest(indexName, bytes.NewReader(auditEvent))
}
