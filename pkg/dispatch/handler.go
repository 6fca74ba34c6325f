package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/formwatch/dispatchkit/pkg/backoff"
	"github.com/formwatch/dispatchkit/pkg/batch"
	"github.com/formwatch/dispatchkit/pkg/delivery"
	"github.com/formwatch/dispatchkit/pkg/notification"
	"github.com/formwatch/dispatchkit/pkg/throttle"
)

// Handler exposes the dispatcher's admin operations over HTTP. Mount it
// under an authenticated admin router; it performs no auth itself.
func Handler(d *Dispatcher) http.Handler {
	r := chi.NewRouter()

	r.Get("/metrics", handleMetrics(d))

	r.Route("/batches", func(r chi.Router) {
		r.Get("/", handleListBatches(d))
		r.Get("/{id}", handleGetBatch(d))
		r.Post("/{id}/send", handleSendBatch(d))
		r.Delete("/{id}", handleCancelBatch(d))
	})

	r.Route("/throttle", func(r chi.Router) {
		r.Get("/", handleThrottleMetrics(d))
		r.Delete("/{userID}", handleResetThrottle(d))
	})

	r.Route("/delivery", func(r chi.Router) {
		r.Get("/metrics", handleDeliveryMetrics(d))
		r.Get("/report", handleDeliveryReport(d))
		r.Get("/retries", handlePendingRetries(d))
		r.Delete("/retries/{id}", handleCancelRetry(d))
		r.Post("/cleanup", handleCleanup(d))
	})

	r.Route("/config", func(r chi.Router) {
		r.Put("/batch", handleUpdateBatchConfig(d))
		r.Put("/throttle", handleUpdateThrottleConfig(d))
		r.Put("/retry", handleUpdateRetryConfig(d))
	})

	return r
}

func handleMetrics(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := d.Metrics(r.Context(), parseTimeRange(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func handleListBatches(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.ListActiveBatches())
	}
}

func handleGetBatch(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := d.GetBatch(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func handleSendBatch(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.SendBatchNow(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func handleCancelBatch(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.CancelBatch(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleThrottleMetrics(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := d.GetThrottleMetrics(r.Context(), r.URL.Query().Get("user_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleResetThrottle(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var channels []notification.Channel
		for _, raw := range r.URL.Query()["channel"] {
			ch := notification.Channel(raw)
			if !ch.Valid() {
				writeJSON(w, http.StatusBadRequest, errorBody("unknown channel: "+raw))
				return
			}
			channels = append(channels, ch)
		}

		if err := d.ResetThrottle(r.Context(), chi.URLParam(r, "userID"), channels...); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeliveryMetrics(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := d.GetDeliveryMetrics(r.Context(), parseTimeRange(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func handleDeliveryReport(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tr := parseTimeRange(r)
		if tr.Until.IsZero() {
			tr.Until = time.Now()
		}
		if tr.Since.IsZero() {
			tr.Since = tr.Until.Add(-24 * time.Hour)
		}

		report, err := d.DeliveryReport(r.Context(), tr.Since, tr.Until)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func handlePendingRetries(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := d.PendingRetries(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleCancelRetry(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.CancelRetry(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleCleanup(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expired, err := d.CleanupExpired(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"expired": expired})
	}
}

func handleUpdateBatchConfig(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg batch.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("malformed config: "+err.Error()))
			return
		}
		if err := d.UpdateBatchConfig(cfg); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func handleUpdateThrottleConfig(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg throttle.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("malformed config: "+err.Error()))
			return
		}
		if err := d.UpdateThrottleConfig(cfg); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func handleUpdateRetryConfig(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg backoff.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("malformed config: "+err.Error()))
			return
		}
		if err := d.UpdateRetryConfig(cfg); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

// parseTimeRange reads optional RFC3339 "since" and "until" query params.
// Malformed values are ignored and treated as unbounded.
func parseTimeRange(r *http.Request) delivery.TimeRange {
	tr := delivery.TimeRange{}
	if v := r.URL.Query().Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			tr.Since = t
		}
	}
	if v := r.URL.Query().Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			tr.Until = t
		}
	}
	return tr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, batch.ErrBatchNotFound),
		errors.Is(err, delivery.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, batch.ErrInvalidConfig),
		errors.Is(err, throttle.ErrInvalidConfig),
		errors.Is(err, backoff.ErrInvalidConfig),
		errors.Is(err, delivery.ErrInvalidTransition):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	}
}
