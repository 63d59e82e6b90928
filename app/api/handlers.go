package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vesselwatch/vesselwatch/app/ais"
	"github.com/vesselwatch/vesselwatch/app/database"
)

func NewHandler(positionRepo database.PositionRepository, pipeline Pipeline, metricsHandler http.Handler) *Handler {
	return &Handler{
		positionRepo:   positionRepo,
		pipeline:       pipeline,
		metricsHandler: metricsHandler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":           "ok",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"subscriber_state": h.pipeline.SubscriberState().String(),
		"counters":         h.pipeline.Stats().Snapshot(),
	}

	if count, err := h.positionRepo.GetPositionCount(c.Request.Context()); err == nil {
		health["positions"] = count
	}
	if count, err := h.positionRepo.GetVesselCount(c.Request.Context()); err == nil {
		health["vessels"] = count
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"counters":         h.pipeline.Stats().Snapshot(),
		"subscriber_state": h.pipeline.SubscriberState().String(),
	})
}

func (h *Handler) GetMetrics(c *gin.Context) {
	h.metricsHandler.ServeHTTP(c.Writer, c.Request)
}

// APIListVessels returns the latest known position for every vessel.
func (h *Handler) APIListVessels(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 100, 1000)

	positions, err := h.positionRepo.GetLatestPositions(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_vessels", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(positions),
		"vessels": toVesselResponses(positions),
	})
}

// APIGetVesselTrack returns a vessel's recent reports, newest first.
func (h *Handler) APIGetVesselTrack(c *gin.Context) {
	mmsi, err := strconv.ParseInt(c.Param("mmsi"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid MMSI"})
		return
	}

	window := 24 * time.Hour
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window duration"})
			return
		}
		window = parsed
	}

	limit := parseIntQuery(c, "limit", 500, 5000)
	since := time.Now().UTC().Add(-window)

	positions, err := h.positionRepo.GetVesselTrack(c.Request.Context(), mmsi, since, limit)
	if err != nil {
		slog.Error("Database error", "operation", "vessel_track", "mmsi", mmsi, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mmsi":  mmsi,
		"since": since.Format(time.RFC3339),
		"count": len(positions),
		"track": toVesselResponses(positions),
	})
}

func toVesselResponses(positions []ais.Position) []VesselResponse {
	out := make([]VesselResponse, 0, len(positions))
	for _, pos := range positions {
		out = append(out, VesselResponse{
			MMSI:      pos.MMSI,
			ShipName:  pos.ShipName,
			Lat:       pos.Lat,
			Lon:       pos.Lon,
			Sog:       pos.Sog,
			Cog:       pos.Cog,
			Heading:   pos.Heading,
			NavStatus: pos.NavStatus,
			Time:      pos.Time,
		})
	}
	return out
}

func parseIntQuery(c *gin.Context, name string, fallback, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}
