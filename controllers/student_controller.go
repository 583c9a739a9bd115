package controllers

import (
	"net/http"

	"libraryhub_go/services"
	"libraryhub_go/utils"

	"github.com/gin-gonic/gin"
)

// StudentController serves student accounts for admins and for the
// students themselves
type StudentController struct {
	studentService *services.StudentService
}

// NewStudentController creates the controller
func NewStudentController(studentService *services.StudentService) *StudentController {
	return &StudentController{studentService: studentService}
}

// ListStudents returns every student
func (sc *StudentController) ListStudents(c *gin.Context) {
	students, err := sc.studentService.ListStudents(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

// CreateStudent registers a student
// @Summary Add a student
// @Tags admin
// @Accept json
// @Produce json
// @Router /api/admin/students [post]
func (sc *StudentController) CreateStudent(c *gin.Context) {
	var req services.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, err)
		return
	}

	student, err := sc.studentService.CreateStudent(c.Request.Context(), &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Student added successfully",
		"student": gin.H{
			"id":               student.ID,
			"name":             student.Name,
			"enrollmentNumber": student.EnrollmentNumber,
			"rollNumber":       student.RollNumber,
			"branch":           student.Branch,
			"session":          student.Session,
		},
	})
}

// DeleteStudent removes a student without open loans
func (sc *StudentController) DeleteStudent(c *gin.Context) {
	if err := sc.studentService.DeleteStudent(c.Request.Context(), c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Message(c, http.StatusOK, "Student deleted successfully")
}

// LibraryStats returns the dashboard counters
func (sc *StudentController) LibraryStats(c *gin.Context) {
	stats, err := sc.studentService.LibraryStats(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// BorrowedBooks returns the caller's loan history
func (sc *StudentController) BorrowedBooks(c *gin.Context) {
	id := c.Param("id")
	if !requireSelf(c, id) {
		return
	}
	records, err := sc.studentService.BorrowedBooks(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// UpdatePassword changes the caller's password
func (sc *StudentController) UpdatePassword(c *gin.Context) {
	id := c.Param("id")
	if !requireSelf(c, id) {
		return
	}
	var req services.UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := sc.studentService.UpdatePassword(c.Request.Context(), id, &req); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Message(c, http.StatusOK, "Password updated")
}

// Stats summarizes the caller's reading history
func (sc *StudentController) Stats(c *gin.Context) {
	id := c.Param("id")
	if !requireSelf(c, id) {
		return
	}
	stats, err := sc.studentService.Stats(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
