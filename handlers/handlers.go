package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Every endpoint answers with the same envelope: {"success": true, "data": ...}
// on success, {"success": false, "error": {"code", "message"}} on failure.

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// queryInt parses an optional integer query parameter. Absent parameters
// yield zero so services can apply their defaults; malformed ones answer
// the request with a 400.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_"+strings.ToUpper(name),
			fmt.Sprintf("%s must be an integer", name))
		return 0, false
	}
	return value, true
}
