package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"libraryhub_go/middleware"
	"libraryhub_go/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Message writes {"message": msg}
func Message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}

// BadRequest reports a malformed request body or parameter
func BadRequest(c *gin.Context, msg string) {
	Message(c, http.StatusBadRequest, msg)
}

// StatusFor maps an error to its HTTP status
func StatusFor(err error) int {
	switch services.KindOf(err) {
	case services.ErrValidation, services.ErrConflict:
		return http.StatusBadRequest
	case services.ErrNotFound:
		return http.StatusNotFound
	case services.ErrUnauthorized:
		return http.StatusUnauthorized
	case services.ErrForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// RespondError writes err as {"message"} with the status of its kind.
// Binding failures add an "errors" field map. Internal errors are logged
// and only described outside release mode.
func RespondError(c *gin.Context, err error) {
	if fields, ok := FieldErrors(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "errors": fields})
		return
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		BadRequest(c, "Invalid request body")
		return
	}

	status := StatusFor(err)
	if status != http.StatusInternalServerError {
		Message(c, status, err.Error())
		return
	}

	middleware.ErrorLogger("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	body := gin.H{"message": "Internal server error"}
	if gin.Mode() != gin.ReleaseMode {
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}
