package controllers

import (
	"net/http"

	"libraryhub_go/services"
	"libraryhub_go/utils"

	"github.com/gin-gonic/gin"
)

// GamificationController serves discovery, ratings and progress for students
type GamificationController struct {
	game           *services.Gamification
	borrowService  *services.BorrowService
	recommendation *services.RecommendationService
	leaderboard    *services.LeaderboardService
}

// NewGamificationController creates the controller
func NewGamificationController(
	game *services.Gamification,
	borrowService *services.BorrowService,
	recommendation *services.RecommendationService,
	leaderboard *services.LeaderboardService,
) *GamificationController {
	return &GamificationController{
		game:           game,
		borrowService:  borrowService,
		recommendation: recommendation,
		leaderboard:    leaderboard,
	}
}

// Recommendations ranks books for the caller
// @Summary Personal recommendations
// @Tags student
// @Produce json
// @Param limit query int false "max results, default 10"
// @Router /api/student/recommendations/{id} [get]
func (gc *GamificationController) Recommendations(c *gin.Context) {
	id := c.Param("id")
	if !requireSelf(c, id) {
		return
	}
	recs, err := gc.recommendation.Recommend(c.Request.Context(), id, queryInt(c, "limit"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// Similar lists books close to :bookId
func (gc *GamificationController) Similar(c *gin.Context) {
	books, err := gc.recommendation.Similar(c.Request.Context(), c.Param("bookId"), queryInt(c, "limit"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

// Trending lists the most borrowed recently active books
func (gc *GamificationController) Trending(c *gin.Context) {
	books, err := gc.recommendation.Trending(c.Request.Context(), queryInt(c, "limit"), queryInt(c, "days"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

// RateBook rates a book the caller has returned
// @Summary Rate a returned book
// @Tags student
// @Accept json
// @Produce json
// @Router /api/student/rate/{id}/{bookId} [post]
func (gc *GamificationController) RateBook(c *gin.Context) {
	id := c.Param("id")
	if !requireSelf(c, id) {
		return
	}
	var req services.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, err)
		return
	}

	result, err := gc.borrowService.Rate(c.Request.Context(), id, c.Param("bookId"), &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	newBadges := result.NewBadges
	if newBadges == nil {
		newBadges = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Rating submitted successfully",
		"rating":    result.Rating,
		"review":    result.Review,
		"newBadges": newBadges,
	})
}

// Leaderboard ranks students by ?type=points|books
func (gc *GamificationController) Leaderboard(c *gin.Context) {
	t, err := services.ParseLeaderboardType(c.Query("type"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	entries, err := gc.leaderboard.Leaderboard(c.Request.Context(), queryInt(c, "limit"), t)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Badges returns the badge catalog
func (gc *GamificationController) Badges(c *gin.Context) {
	c.JSON(http.StatusOK, gc.game.Badges.Catalog())
}

// TouchStreak records activity for the caller today
func (gc *GamificationController) TouchStreak(c *gin.Context) {
	id := c.Param("id")
	if !requireSelf(c, id) {
		return
	}
	streak, err := gc.borrowService.TouchStreak(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, streak)
}
