package delivery

import (
	"context"
	"fmt"
	"time"
)

// Metrics summarizes delivery outcomes over a queried record set. Values
// are computed from persisted records on every call rather than
// accumulated live, so they always reconcile with stored state.
type Metrics struct {
	TotalSent      int `json:"total_sent"`
	TotalDelivered int `json:"total_delivered"`
	TotalFailed    int `json:"total_failed"`
	TotalRetried   int `json:"total_retried"`

	SuccessRate            float64 `json:"success_rate"`
	RetryRate              float64 `json:"retry_rate"`
	AverageDeliverySeconds float64 `json:"average_delivery_seconds"`
}

// TimeRange bounds a metrics query. Zero fields are unbounded.
type TimeRange struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

func (tr TimeRange) listOptions() ListOptions {
	opts := ListOptions{}
	if !tr.Since.IsZero() {
		since := tr.Since
		opts.Since = &since
	}
	if !tr.Until.IsZero() {
		until := tr.Until
		opts.Until = &until
	}
	return opts
}

// Metrics computes delivery metrics for records sent within the range.
func (t *Tracker) Metrics(ctx context.Context, tr TimeRange) (Metrics, error) {
	records, err := t.store.List(ctx, tr.listOptions())
	if err != nil {
		return Metrics{}, err
	}
	return computeMetrics(records), nil
}

func computeMetrics(records []Record) Metrics {
	m := Metrics{TotalSent: len(records)}

	var deliveryTotal time.Duration
	for _, rec := range records {
		switch rec.Status {
		case StatusDelivered:
			m.TotalDelivered++
			deliveryTotal += rec.DeliveryTime
		case StatusFailed, StatusBounced, StatusExpired:
			// Expired records never resolved; counted as failures.
			m.TotalFailed++
		}
		if rec.RetryCount > 0 {
			m.TotalRetried++
		}
	}

	if m.TotalSent > 0 {
		m.SuccessRate = float64(m.TotalDelivered) / float64(m.TotalSent) * 100
		m.RetryRate = float64(m.TotalRetried) / float64(m.TotalSent) * 100
	}
	if m.TotalDelivered > 0 {
		m.AverageDeliverySeconds = deliveryTotal.Seconds() / float64(m.TotalDelivered)
	}
	return m
}

// Report grades a metrics snapshot and adds qualitative recommendations.
type Report struct {
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	Metrics         Metrics   `json:"metrics"`
	Grade           string    `json:"grade"`
	Recommendations []string  `json:"recommendations,omitempty"`
}

// Report builds a graded delivery report for the period.
func (t *Tracker) Report(ctx context.Context, start, end time.Time) (Report, error) {
	m, err := t.Metrics(ctx, TimeRange{Since: start, Until: end})
	if err != nil {
		return Report{}, err
	}

	return Report{
		PeriodStart:     start,
		PeriodEnd:       end,
		Metrics:         m,
		Grade:           gradeSuccessRate(m.SuccessRate),
		Recommendations: recommendations(m),
	}, nil
}

func gradeSuccessRate(rate float64) string {
	switch {
	case rate >= 95:
		return "A"
	case rate >= 85:
		return "B"
	case rate >= 75:
		return "C"
	case rate >= 60:
		return "D"
	default:
		return "F"
	}
}

func recommendations(m Metrics) []string {
	var recs []string
	if m.RetryRate > 20 {
		recs = append(recs, fmt.Sprintf(
			"high retry rate (%.1f%%): check channel provider health and credentials", m.RetryRate))
	}
	if m.AverageDeliverySeconds > 30 {
		recs = append(recs, fmt.Sprintf(
			"slow delivery (%.1fs average): consider raising channel timeouts or switching providers", m.AverageDeliverySeconds))
	}
	if m.TotalSent > 0 && m.SuccessRate < 60 {
		recs = append(recs, "success rate below 60%: investigate failed records before resending")
	}
	return recs
}
