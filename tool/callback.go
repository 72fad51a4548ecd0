package tool

import (
	"maps"

	"github.com/gin-gonic/gin"
)

// Keys of the JSON envelope every gateway endpoint answers with.
const (
	KeyError  = "error"
	KeyStatus = "status"
	KeyData   = "data"
)

func FastReturnError(msg string) gin.H {
	return gin.H{KeyError: msg}
}

func FastReturnSuccess() gin.H {
	return gin.H{KeyStatus: "ok"}
}

// FastReturnSuccessWithData wraps a payload as {"status":"ok","data":...}.
func FastReturnSuccessWithData(data any) gin.H {
	return gin.H{
		KeyStatus: "ok",
		KeyData:   data,
	}
}

// FastReturnErrorWithData adds extra top-level fields, e.g. the host a probe targeted.
func FastReturnErrorWithData(msg string, data map[string]any) gin.H {
	resp := gin.H{KeyError: msg}
	maps.Copy(resp, data)
	return resp
}
