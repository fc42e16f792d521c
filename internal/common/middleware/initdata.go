package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"
)

const userCtxKey = "telegram_user"

// InitData validates Telegram Mini Apps init-data and stores the parsed user
// in the context. Accepted in the "X-Telegram-Init-Data" header or the
// "init_data" query parameter. expIn==0 disables the TTL check.
func InitData(token string, expIn time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "init-data validation is not configured"})
			return
		}
		data := c.GetHeader("X-Telegram-Init-Data")
		if data == "" {
			data = c.Query("init_data")
		}
		if data == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing init_data"})
			return
		}
		if err := initdata.Validate(data, token, expIn); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid init_data"})
			return
		}
		parsed, err := initdata.Parse(data)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid init_data format"})
			return
		}
		c.Set(userCtxKey, parsed.User)
		c.Next()
	}
}

// TelegramUserFrom returns the validated init-data user, if present.
func TelegramUserFrom(c *gin.Context) (initdata.User, bool) {
	v, ok := c.Get(userCtxKey)
	if !ok {
		return initdata.User{}, false
	}
	user, ok := v.(initdata.User)
	return user, ok
}
