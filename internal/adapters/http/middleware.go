package http

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

const guestSessionKey = "guest_identity"

// IdentityMiddleware resolves who is calling. The gateway in front of
// this service authenticates users and forwards X-User-ID / X-User-Name
// / X-User-Role; without those headers a guest identity is minted and
// pinned to the cookie session when guests are allowed.
func IdentityMiddleware(allowGuests bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID != "" {
			c.Set("user_id", userID)
			username := c.GetHeader("X-User-Name")
			if username == "" {
				username = userID
			}
			c.Set("username", username)
			c.Set("role_hint", c.GetHeader("X-User-Role"))
			c.Next()
			return
		}

		if !allowGuests {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		session := sessions.Default(c)
		if v, ok := session.Get(guestSessionKey).(string); ok && v != "" {
			c.Set("user_id", v)
			c.Set("username", guestName(v))
			c.Next()
			return
		}

		guest := domain.NewGuestIdentity()
		session.Set(guestSessionKey, string(guest.UserID))
		if err := session.Save(); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("guest session save failed")
		}
		c.Set("user_id", string(guest.UserID))
		c.Set("username", guest.Username)
		c.Next()
	}
}

func guestName(userID string) string {
	id := userID
	if len(id) > 8 {
		id = id[:8]
	}
	return "guest-" + id
}

// identityFrom rebuilds the resolved identity from the request context.
func identityFrom(c *gin.Context) domain.Identity {
	return domain.Identity{
		UserID:   domain.UserID(c.GetString("user_id")),
		Username: c.GetString("username"),
		RoleHint: domain.Role(c.GetString("role_hint")),
	}
}
