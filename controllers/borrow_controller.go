package controllers

import (
	"net/http"

	"libraryhub_go/models"
	"libraryhub_go/services"
	"libraryhub_go/utils"

	"github.com/gin-gonic/gin"
)

// BorrowController serves the admin lending desk
type BorrowController struct {
	borrowService *services.BorrowService
}

// NewBorrowController creates the controller
func NewBorrowController(borrowService *services.BorrowService) *BorrowController {
	return &BorrowController{borrowService: borrowService}
}

type borrowResponse struct {
	Message   string          `json:"message"`
	Student   *models.Student `json:"student"`
	NewBadges []string        `json:"newBadges,omitempty"`
}

type returnResponse struct {
	Message   string          `json:"message"`
	Student   *models.Student `json:"student"`
	WasOnTime bool            `json:"wasOnTime"`
	NewBadges []string        `json:"newBadges,omitempty"`
}

// BorrowBook lends a book by enrollment number and ISBN
// @Summary Borrow a book
// @Tags admin
// @Accept json
// @Produce json
// @Router /api/admin/borrow-book [post]
func (bc *BorrowController) BorrowBook(c *gin.Context) {
	var req services.BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, err)
		return
	}

	result, err := bc.borrowService.Borrow(c.Request.Context(), &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, borrowResponse{
		Message:   "Book borrowed",
		Student:   result.Student,
		NewBadges: result.NewBadges,
	})
}

// ReturnBook closes an open loan
// @Summary Return a book
// @Tags admin
// @Accept json
// @Produce json
// @Router /api/admin/return-book [post]
func (bc *BorrowController) ReturnBook(c *gin.Context) {
	var req services.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, err)
		return
	}

	result, err := bc.borrowService.Return(c.Request.Context(), &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, returnResponse{
		Message:   "Book returned",
		Student:   result.Student,
		WasOnTime: result.WasOnTime,
		NewBadges: result.NewBadges,
	})
}

// AllBorrowed lists every student that has borrowed at least once
func (bc *BorrowController) AllBorrowed(c *gin.Context) {
	students, err := bc.borrowService.AllBorrowed(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	c.JSON(http.StatusOK, students)
}
