package core

import "context"

const (
	metricTransitions        = "dispatch.lifecycle.transitions"
	metricTransitionRejected = "dispatch.lifecycle.rejected"
	metricOffersSubmitted    = "dispatch.offers.submitted"
	metricOffersAccepted     = "dispatch.offers.accepted"
	metricOffersLostRace     = "dispatch.offers.lost_race"
	metricCodeMismatches     = "dispatch.codes.mismatches"
	metricLocationDropped    = "dispatch.location.throttled"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}
