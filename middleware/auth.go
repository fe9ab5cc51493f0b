package middleware

import (
	"errors"

	"github.com/yashrajoria/equipment-workflow-service/auth"
	apperrors "github.com/yashrajoria/equipment-workflow-service/errors"
	"github.com/yashrajoria/equipment-workflow-service/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const UserContextKey = "userID"

// AuthMiddleware requires a bearer token, resolves the caller's user id and
// hands the token to downstream ERP calls through the request context.
func AuthMiddleware(resolver *auth.SubjectResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "Unauthorized: missing bearer token", "kind": apperrors.KindPermission})
			return
		}

		userID, err := resolver.Subject(token)
		if err != nil {
			logger.Warn(c, "rejected bearer token", zap.Error(err))
			c.AbortWithStatusJSON(401, gin.H{"error": "Unauthorized: invalid token", "kind": apperrors.KindPermission})
			return
		}

		c.Set(UserContextKey, userID)
		ctx := auth.WithTokenStore(c.Request.Context(), auth.NewMemoryTokenStore(token))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func GetUserID(c *gin.Context) (string, error) {
	val, exists := c.Get(UserContextKey)
	if !exists {
		return "", errors.New("user ID not found in context")
	}
	userID, ok := val.(string)
	if !ok || userID == "" {
		return "", errors.New("user ID has invalid type in context")
	}
	return userID, nil
}
