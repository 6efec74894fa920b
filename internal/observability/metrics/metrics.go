package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bloodlink_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_registrations_total",
		Help: "Registrations by role and result",
	}, []string{"role", "result"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_logins_total",
		Help: "Login attempts by role and result",
	}, []string{"role", "result"})

	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_hospital_verifications_total",
		Help: "Hospital verification changes",
	}, []string{"verified"})

	bloodRequestsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_blood_requests_created_total",
		Help: "Blood requests created by blood type and urgency",
	}, []string{"blood_type", "urgent"})

	donorsNotified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bloodlink_donors_notified_total",
		Help: "Donors added to notified sets",
	})

	donorResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_donor_responses_total",
		Help: "Donor responses by value and result",
	}, []string{"response", "result"})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodlink_blood_request_status_total",
		Help: "Blood request status changes by target status",
	}, []string{"status"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func ObserveRegistration(role, result string) {
	registrations.WithLabelValues(role, result).Inc()
}

func ObserveLogin(role, result string) {
	logins.WithLabelValues(role, result).Inc()
}

func ObserveVerification(verified bool) {
	label := "false"
	if verified {
		label = "true"
	}
	verifications.WithLabelValues(label).Inc()
}

func ObserveBloodRequestCreated(bloodType string, urgent bool) {
	label := "false"
	if urgent {
		label = "true"
	}
	bloodRequestsCreated.WithLabelValues(bloodType, label).Inc()
}

// ObserveDonorsNotified adds count newly notified donors
func ObserveDonorsNotified(count int) {
	if count > 0 {
		donorsNotified.Add(float64(count))
	}
}

func ObserveDonorResponse(response, result string) {
	donorResponses.WithLabelValues(response, result).Inc()
}

func ObserveStatusChange(status string) {
	statusTransitions.WithLabelValues(status).Inc()
}
