package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-retail-core/internal/backup"
)

type CreateBackupRequest struct {
	Type string `json:"type"`
}

// POST /api/backups
func (h *Handler) CreateBackup(c *gin.Context) {
	var input CreateBackupRequest
	if err := c.ShouldBindJSON(&input); err != nil || input.Type == "" {
		input.Type = backup.TypeManual
	}

	record, err := h.Backups.Create(input.Type)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// GET /api/backups
func (h *Handler) GetBackups(c *gin.Context) {
	records, err := h.Backups.List()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// POST /api/backups/:id/restore (admin) - replaces the live dataset.
func (h *Handler) RestoreBackup(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Backups.Restore(id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Dataset restored from snapshot"})
}
