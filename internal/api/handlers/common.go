// Package handlers contains the gin HTTP handlers for the public API and the
// inbound webhook endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse is the uniform envelope for every JSON response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError carries a machine-readable code plus a human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

func SendCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

func SendAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, APIResponse{Success: true, Data: data})
}

func SendBadRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: &APIError{Code: code, Message: message}})
}

func SendUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, APIResponse{Success: false, Error: &APIError{Code: "UNAUTHORIZED", Message: message}})
}

func SendNotFound(c *gin.Context, code, message string) {
	c.JSON(http.StatusNotFound, APIResponse{Success: false, Error: &APIError{Code: code, Message: message}})
}

func SendInternalError(c *gin.Context, code, message string) {
	c.JSON(http.StatusInternalServerError, APIResponse{Success: false, Error: &APIError{Code: code, Message: message}})
}
