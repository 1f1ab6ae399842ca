package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trafficcap/internal/core"
	"trafficcap/pkg/domain"
)

// Error codes carried in the "code" field of error bodies.
const (
	CodeValidation       = "validation"
	CodeNotFound         = "not_found"
	CodeCapacityExceeded = "capacity_exceeded"
	CodeInternal         = "internal"
	CodeUnavailable      = "unavailable"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HousingRejection is returned when a housing allocation is refused.
type HousingRejection struct {
	ErrorResponse
	IsSuccess      bool `json:"isSuccess"`
	RemainingLimit int  `json:"remainingLimit"`
}

type handlers struct {
	svc       Service
	snapshots SnapshotArchive
}

func (h *handlers) createTraffic(c *gin.Context) {
	var payload core.TrafficPayload
	if !bindJSON(c, &payload) {
		return
	}
	id, err := h.svc.CreateTraffic(c.Request.Context(), payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *handlers) listTraffic(c *gin.Context) {
	list, err := h.svc.ListTraffic(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) getTraffic(c *gin.Context) {
	traffic, err := h.svc.GetTraffic(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, traffic)
}

func (h *handlers) editTrafficLimit(c *gin.Context) {
	var payload core.TrafficPayload
	if !bindJSON(c, &payload) {
		return
	}
	traffic, err := h.svc.EditTrafficLimit(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, traffic)
}

func (h *handlers) remainingLimit(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, gin.H{"id": id, "remainingLimit": h.svc.GetTrafficRemainingLimit(c.Request.Context(), id)})
}

func (h *handlers) capacityUsage(c *gin.Context) {
	usage, err := h.svc.CapacityUsage(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (h *handlers) listOverAllocated(c *gin.Context) {
	list, err := h.svc.ListOverAllocated(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) createHousing(c *gin.Context) {
	var payload core.HousingPayload
	if !bindJSON(c, &payload) {
		return
	}
	resp, err := h.svc.CreateHousing(c.Request.Context(), payload)
	if err == nil {
		c.JSON(http.StatusCreated, resp)
		return
	}
	status, body := errorBody(err)
	if status == http.StatusConflict || status == http.StatusNotFound {
		var capErr domain.CapacityExceededError
		remaining := 0
		if errors.As(err, &capErr) {
			remaining = capErr.RemainingLimit
		}
		c.JSON(status, HousingRejection{ErrorResponse: body, RemainingLimit: remaining})
		return
	}
	c.JSON(status, body)
}

func (h *handlers) getHousing(c *gin.Context) {
	housing, err := h.svc.GetHousing(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, housing)
}

func (h *handlers) listHousing(c *gin.Context) {
	list, err := h.svc.ListHousing(c.Request.Context(), c.Query("traffic_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) exportSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "snapshot archive not configured", Code: CodeUnavailable})
		return
	}
	info, err := h.snapshots.Export(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal})
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (h *handlers) listSnapshots(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "snapshot archive not configured", Code: CodeUnavailable})
		return
	}
	list, err := h.snapshots.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal})
		return
	}
	c.JSON(http.StatusOK, list)
}

// bindJSON decodes the body into dst. Malformed JSON is a validation failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed request body: " + err.Error(), Code: CodeValidation})
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	status, body := errorBody(err)
	c.JSON(status, body)
}

func errorBody(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeValidation}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeNotFound}
	case errors.Is(err, domain.ErrCapacityExceeded):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: CodeCapacityExceeded}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal}
	}
}
