package api

import (
	"net/http"
	"strings"

	"storefront-service/internal/models"

	"github.com/gin-gonic/gin"
)

const userContextKey = "user"

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func userResponse(user *models.User) gin.H {
	return gin.H{"id": user.ID, "name": user.Name, "role": user.Role}
}

// register handles account creation
func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name, email and password are required"})
		return
	}

	user, token, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   token,
		"user":    userResponse(user),
	})
}

// login handles credential verification
func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "email and password are required"})
		return
	}

	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": userResponse(user)})
}

// requireAuth verifies the bearer token and attaches the account to the
// request context.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authorization header missing"})
			return
		}

		user, err := h.auth.Authenticate(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid or expired token"})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// requireCapability enforces the role capability check. Must run after
// requireAuth.
func (h *Handler) requireCapability(capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(userContextKey)
		user, _ := v.(*models.User)
		if !ok || user == nil || !user.Role.Can(capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "forbidden: insufficient role"})
			return
		}
		c.Next()
	}
}
