package controllers

import (
	"net/http"

	"libraryhub_go/config"
	"libraryhub_go/middleware"
	"libraryhub_go/models"
	"libraryhub_go/services"
	"libraryhub_go/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthController handles login and logout for both roles
type AuthController struct {
	authService *services.AuthService
	cookie      *config.CookieConfig
}

// NewAuthController creates the controller
func NewAuthController(authService *services.AuthService, cookie *config.CookieConfig) *AuthController {
	return &AuthController{authService: authService, cookie: cookie}
}

// AdminLogin logs an admin in
// @Summary Admin login
// @Tags auth
// @Accept json
// @Produce json
// @Router /api/admin/login [post]
func (ac *AuthController) AdminLogin(c *gin.Context) {
	var req services.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, err)
		return
	}

	admin, token, err := ac.authService.AdminLogin(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	setAuthCookie(c, ac.cookie, token)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":    admin.ID,
			"name":  admin.Name,
			"email": admin.Email,
			"role":  models.RoleAdmin,
		},
	})
}

// StudentLogin logs a student in
// @Summary Student login
// @Tags auth
// @Accept json
// @Produce json
// @Router /api/student/login [post]
func (ac *AuthController) StudentLogin(c *gin.Context) {
	var req services.StudentLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, err)
		return
	}

	student, token, err := ac.authService.StudentLogin(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	setAuthCookie(c, ac.cookie, token)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":               student.ID,
			"name":             student.Name,
			"enrollmentNumber": student.EnrollmentNumber,
			"role":             models.RoleStudent,
		},
	})
}

// Logout clears the cookie and revokes the presented token
func (ac *AuthController) Logout(c *gin.Context) {
	if err := ac.authService.Logout(c.Request.Context(), middleware.TokenFromRequest(c)); err != nil {
		middleware.WarnLogger("token revocation failed", zap.Error(err))
	}
	clearAuthCookie(c, ac.cookie)
	utils.Message(c, http.StatusOK, "Logged out")
}
