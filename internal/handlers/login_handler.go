package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-retail-core/internal/models"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /login
func (h *Handler) Login(c *gin.Context) {
	var input LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	session, err := h.Gate.Authenticate(input.Username, input.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

type CreateUserRequest struct {
	Username string      `json:"username" binding:"required"`
	Password string      `json:"password" binding:"required"`
	Role     models.Role `json:"role"`
}

// POST /register (only when ALLOW_REGISTRATION is on) and
// POST /api/users (admin).
func (h *Handler) CreateUser(c *gin.Context) {
	var input CreateUserRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if input.Role == "" {
		input.Role = models.RoleUser
	}

	if err := h.Gate.CreateUser(input.Username, input.Password, input.Role); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully"})
}

// GET /api/users (admin)
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Gate.ListUsers()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

type SetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// PUT /api/users/:username/password (admin)
func (h *Handler) SetPassword(c *gin.Context) {
	var input SetPasswordRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := h.Gate.SetPassword(c.Param("username"), input.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}
