package handler

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/healthycity/healthycity/internal/api/models"
	"github.com/healthycity/healthycity/internal/api/response"
	"github.com/healthycity/healthycity/internal/provider/resilience"
)

// OpsHandler handles the root banner and operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
	}
}

// Root handles GET / - liveness banner.
func (h *OpsHandler) Root(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Banner{
		Message: "Welcome to the HealthyCity API. See /capabilities for available analyses.",
	})
}

// HealthCheck handles GET /ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /ops/status - collaborator circuit health.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   now,
	}

	for _, ph := range h.registry.GetAllHealth() {
		ps := models.ProviderStatus{
			Provider: ph.Name,
			Status:   providerStatus(ph),
		}
		if ph.LastSuccessAt != nil {
			ts := models.Timestamp(*ph.LastSuccessAt)
			ps.LastSuccessAt = &ts
		}
		if ph.LastFailureAt != nil {
			ts := models.Timestamp(*ph.LastFailureAt)
			ps.LastFailureAt = &ts
		}
		if ph.LastError != "" {
			msg := ph.LastError
			ps.Message = &msg
		}
		status.Providers = append(status.Providers, ps)

		if ps.Status == models.HealthStatusFail {
			status.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(ph *resilience.ProviderHealth) models.HealthStatus {
	switch ph.CircuitState {
	case gobreaker.StateOpen:
		return models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
