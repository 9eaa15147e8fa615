package ginutil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParamID extracts a positive numeric row id from path parameters
func ParamID(c *gin.Context, key string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return id, nil
}
