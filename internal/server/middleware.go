package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	apikeydomain "github.com/textlane/textlane/internal/apikey/domain"
	obscontext "github.com/textlane/textlane/internal/observability/context"
	"github.com/textlane/textlane/internal/orgcontext"
	"github.com/textlane/textlane/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	// HeaderOrg selects the active organization on dashboard requests.
	HeaderOrg = "X-Org-ID"

	// HeaderWebhookSecret authenticates server-to-server event pushes.
	HeaderWebhookSecret = "X-Webhook-Secret"

	contextUserIDKey = "user_id"
	contextAuthIDKey = "auth_id"
	contextActorKey  = "actor"
	contextAPIKeyKey = "api_key_identity"
)

// APIKeyRequired authenticates requests using an API key only.
// Organization identity is derived solely from the key; requests that also
// carry an explicit org id are refused so a key can never act outside its
// own organization.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if requestHasOrgID(c) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		identity, err := s.apiKeySvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		actor := fmt.Sprintf("api_key:%s:%s", identity.KeyID, identity.Permission)

		ctx := c.Request.Context()
		ctx = orgcontext.WithOrgID(ctx, int64(identity.OrgID))
		ctx = obscontext.WithOrgID(ctx, identity.OrgID.String())
		ctx = obscontext.WithActor(ctx, "api_key", identity.KeyID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Set(contextActorKey, actor)
		c.Set(contextAPIKeyKey, identity)
		c.Set(contextUserIDKey, int64(identity.UserID))

		c.Next()
	}
}

// IdentityRequired authenticates dashboard requests. The auth provider hands
// the browser a token of the form "<auth_id>:<hmac-sha256 hex>" signed with
// the shared identity secret; we verify the signature and resolve the user.
func (s *Server) IdentityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.IdentitySecret == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		authID, signature, found := strings.Cut(token, ":")
		if !found || authID == "" || !verifyIdentitySignature(s.cfg.IdentitySecret, authID, signature) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.userSvc.GetByAuthID(c.Request.Context(), authID)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), "user", user.ID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Set(contextUserIDKey, int64(user.ID))
		c.Set(contextAuthIDKey, authID)
		c.Set(contextActorKey, "user:"+user.ID.String())

		c.Next()
	}
}

// OrgContext resolves the active organization from the X-Org-ID header.
// Authorization against the membership happens per route.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
		if raw == "" {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		orgID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), int64(orgID))
		ctx = obscontext.WithOrgID(ctx, orgID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// authorizeOrgAction gates a route on the actor's role or key permission
// within the active organization.
func (s *Server) authorizeOrgAction(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.GetString(contextActorKey)
		if actor == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		if err := s.authzSvc.Authorize(c.Request.Context(), actor, orgID.String(), object, action); err != nil {
			AbortWithError(c, err)
			return
		}

		c.Next()
	}
}

// WebhookSecretRequired authenticates server-to-server pushes with the
// shared provisioning secret.
func (s *Server) WebhookSecretRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := s.cfg.ProvisioningSecret
		presented := strings.TrimSpace(c.GetHeader(HeaderWebhookSecret))
		if secret == "" || presented == "" ||
			subtle.ConstantTimeCompare([]byte(secret), []byte(presented)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// MessageSendRateLimit applies the per-organization send limits. The
// limiter failing is treated as open: a redis outage must not stop sends.
func (s *Server) MessageSendRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.sendLimiter.Enabled() {
			c.Next()
			return
		}

		orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		org, err := s.organizationSvc.GetByID(c.Request.Context(), orgID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		decision, err := s.sendLimiter.AllowSend(c.Request.Context(), org.ID, org.SubscriptionTier)
		if err != nil {
			s.log.Warn("send rate limit check failed",
				zap.String("org_id", org.ID),
				zap.Error(err),
			)
			c.Next()
			return
		}

		switch decision {
		case ratelimit.DecisionThrottle:
			AbortWithError(c, ErrRateLimited)
		case ratelimit.DecisionDailyCap:
			AbortWithError(c, ErrDailyCap)
		default:
			c.Next()
		}
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func requestHasOrgID(c *gin.Context) bool {
	if strings.TrimSpace(c.GetHeader(HeaderOrg)) != "" {
		return true
	}
	if value, ok := c.GetQuery("org_id"); ok && strings.TrimSpace(value) != "" {
		return true
	}
	return false
}

func identitySignature(secret, authID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(authID))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyIdentitySignature(secret, authID, signature string) bool {
	expected := identitySignature(secret, authID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

func currentUserID(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(int64)
	if !ok || id == 0 {
		return 0, false
	}
	return snowflake.ID(id), true
}

func currentAPIKeyIdentity(c *gin.Context) (*apikeydomain.Identity, bool) {
	value, ok := c.Get(contextAPIKeyKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*apikeydomain.Identity)
	return identity, ok && identity != nil
}
