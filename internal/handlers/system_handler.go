package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-retail-core/internal/database"
	"go-retail-core/internal/models"
)

// SystemStatus is what the settings screen shows about the installation.
type SystemStatus struct {
	SchemaVersion int   `json:"schema_version"`
	Products      int64 `json:"products"`
	Customers     int64 `json:"customers"`
	Bills         int64 `json:"bills"`
	Backups       int64 `json:"backups"`
}

// GET /api/system/status
func (h *Handler) GetSystemStatus(c *gin.Context) {
	version, err := database.SchemaVersion(h.DB)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := SystemStatus{SchemaVersion: version}
	counts := []struct {
		model interface{}
		dst   *int64
	}{
		{&models.Product{}, &status.Products},
		{&models.Customer{}, &status.Customers},
		{&models.Bill{}, &status.Bills},
		{&models.BackupRecord{}, &status.Backups},
	}
	for _, count := range counts {
		if err := h.DB.Model(count.model).Count(count.dst).Error; err != nil {
			h.respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, status)
}
