package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"talentflow/internal/auth"
	"talentflow/internal/errcode"
)

const memberKey = "member"

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": errcode.Unauthorized})
}

// AuthMiddleware 校验 Bearer 令牌并将成员名注入上下文。
// required 为 false 时允许匿名请求，但携带的令牌仍必须有效。
func AuthMiddleware(tokens *auth.TokenService, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || tokens == nil {
			if required {
				abortUnauthorized(c)
				return
			}
			c.Next()
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(memberKey, claims.Member)
		c.Next()
	}
}

// MemberFromContext 返回已认证的成员名，匿名请求返回空串。
func MemberFromContext(c *gin.Context) string {
	if value, ok := c.Get(memberKey); ok {
		if member, ok := value.(string); ok {
			return member
		}
	}
	return ""
}
