// HTTP handlers: thin gin bindings over the service layer, sharing one
// response envelope and error mapping.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/threadline/threadline/pkg/models"
	"github.com/threadline/threadline/pkg/service"
)

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, models.Response{Code: 200, Data: data})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: message})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: message})
}

// respondError maps service errors onto HTTP statuses: ErrNotFound → 404,
// ErrNoModelConfigured → 503, anything else → 500 with the wrapped message.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, models.Response{Code: 404, Message: err.Error()})
	case errors.Is(err, service.ErrNoModelConfigured):
		c.JSON(http.StatusServiceUnavailable, models.Response{Code: 503, Message: "No chat model configured"})
	default:
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: err.Error()})
	}
}
