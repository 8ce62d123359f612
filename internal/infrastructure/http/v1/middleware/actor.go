package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"prodledger/internal/core/apperror"
	appctx "prodledger/internal/core/context"
)

// HeaderActorID names the actor when no token validator is configured.
const HeaderActorID = "X-Actor-ID"

// ActorValidator turns a bearer token into the actor it names.
type ActorValidator interface {
	ValidateToken(tokenString string) (*appctx.Actor, error)
}

// Auth middleware requires a valid bearer token and puts its actor in context.
func Auth(validator ActorValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		actor, err := validator.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		setActor(c, actor)
		c.Next()
	}
}

// HeaderActor trusts X-Actor-ID as set by a fronting gateway. Requests
// without it run with no actor.
func HeaderActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorID := strings.TrimSpace(c.GetHeader(HeaderActorID)); actorID != "" {
			setActor(c, &appctx.Actor{ID: actorID})
		}
		c.Next()
	}
}

func setActor(c *gin.Context, actor *appctx.Actor) {
	ctx := appctx.WithActor(c.Request.Context(), actor)
	c.Request = c.Request.WithContext(ctx)
	c.Set("actor_id", actor.ID)
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
