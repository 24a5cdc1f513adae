package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/settings
func (h *Handler) GetSettings(c *gin.Context) {
	all, err := h.Settings.List()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

type SettingRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

// PUT /api/settings (admin)
func (h *Handler) UpsertSetting(c *gin.Context) {
	var input SettingRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := h.Settings.Set(input.Key, input.Value); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Setting saved"})
}
