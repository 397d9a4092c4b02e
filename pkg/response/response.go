// Package response 提供统一的 HTTP 响应封装
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body 统一响应结构
type Body struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{
		Code:    0,
		Message: "ok",
		Data:    data,
	})
}

// Error 错误响应，kind 用于标识错误类别供调用方渲染
func Error(c *gin.Context, status int, kind string, message string) {
	c.JSON(status, Body{
		Code:    status,
		Message: message,
		Data:    gin.H{"kind": kind},
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "invalid_request", message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, "not_found", message)
}

// Internal 内部错误响应
func Internal(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, "internal", message)
}
