package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope of every API response. Code is 0 on success and the HTTP status
// otherwise.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func fail(c *gin.Context, status int, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, Response{
		Code:    status,
		Message: message,
	})
}

func badRequest(c *gin.Context, message string, err error) {
	fail(c, http.StatusBadRequest, message, err)
}

func notFound(c *gin.Context, message string) {
	fail(c, http.StatusNotFound, message, nil)
}

func internalError(c *gin.Context, message string, err error) {
	fail(c, http.StatusInternalServerError, message, err)
}
