package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"libraryhub_go/config"
	"libraryhub_go/middleware"
	"libraryhub_go/utils"

	"github.com/gin-gonic/gin"
)

func sameSite(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}

func setAuthCookie(c *gin.Context, cfg *config.CookieConfig, token string) {
	c.SetSameSite(sameSite(cfg.SameSite))
	c.SetCookie(cfg.Name, token, int(cfg.MaxAge.Seconds()), "/", "", cfg.Secure, true)
}

func clearAuthCookie(c *gin.Context, cfg *config.CookieConfig) {
	c.SetSameSite(sameSite(cfg.SameSite))
	c.SetCookie(cfg.Name, "", -1, "/", "", cfg.Secure, true)
}

// queryInt parses a positive integer query value. Missing or invalid
// values yield 0 so services apply their defaults.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// requireSelf rejects students acting on another student's account
func requireSelf(c *gin.Context, studentID string) bool {
	if c.GetString(middleware.ContextUserID) == studentID {
		return true
	}
	utils.Message(c, http.StatusForbidden, "Forbidden")
	return false
}
