package controllers

import (
	"net/http"

	"libraryhub_go/middleware"
	"libraryhub_go/services"
	"libraryhub_go/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookController serves the admin catalog endpoints
type BookController struct {
	bookService *services.BookService
	uploader    *utils.FileUploader
}

// NewBookController creates the controller
func NewBookController(bookService *services.BookService, uploader *utils.FileUploader) *BookController {
	return &BookController{bookService: bookService, uploader: uploader}
}

// CreateBook adds a title
// @Summary Add a book
// @Tags admin
// @Accept json
// @Produce json
// @Router /api/admin/add-book [post]
func (bc *BookController) CreateBook(c *gin.Context) {
	var req services.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, err)
		return
	}

	book, err := bc.bookService.CreateBook(c.Request.Context(), &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

// GetBooks lists the catalog. Optional ?category= and ?q= filters.
func (bc *BookController) GetBooks(c *gin.Context) {
	books, err := bc.bookService.ListBooks(c.Request.Context(), services.BookFilter{
		Category: c.Query("category"),
		Search:   c.Query("q"),
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

// UpdateBook changes the fields present in the body
func (bc *BookController) UpdateBook(c *gin.Context) {
	var req services.UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, err)
		return
	}

	book, err := bc.bookService.UpdateBook(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// DeleteBook removes a title
func (bc *BookController) DeleteBook(c *gin.Context) {
	if err := bc.bookService.DeleteBook(c.Request.Context(), c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Message(c, http.StatusOK, "Book deleted")
}

// UploadCover stores a multipart "cover" image for the book
// @Summary Upload a book cover
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Router /api/admin/books/{id}/cover [post]
func (bc *BookController) UploadCover(c *gin.Context) {
	file, err := c.FormFile("cover")
	if err != nil {
		utils.BadRequest(c, "cover file is required")
		return
	}

	uploaded, err := bc.uploader.Save(file)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	book, previous, err := bc.bookService.SetCover(c.Request.Context(), c.Param("id"), uploaded.URL)
	if err != nil {
		if delErr := bc.uploader.Delete(uploaded.URL); delErr != nil {
			middleware.WarnLogger("failed to remove orphaned cover", zap.Error(delErr))
		}
		utils.RespondError(c, err)
		return
	}
	if previous != "" {
		if err := bc.uploader.Delete(previous); err != nil {
			middleware.WarnLogger("failed to remove previous cover", zap.String("url", previous), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, book)
}
