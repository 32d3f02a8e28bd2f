package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/textlane/textlane/internal/apikey"
	apikeydomain "github.com/textlane/textlane/internal/apikey/domain"
	"github.com/textlane/textlane/internal/authorization"
	"github.com/textlane/textlane/internal/config"
	"github.com/textlane/textlane/internal/contact"
	contactdomain "github.com/textlane/textlane/internal/contact/domain"
	"github.com/textlane/textlane/internal/invite"
	invitedomain "github.com/textlane/textlane/internal/invite/domain"
	"github.com/textlane/textlane/internal/message"
	messagedomain "github.com/textlane/textlane/internal/message/domain"
	"github.com/textlane/textlane/internal/observability"
	obsmiddleware "github.com/textlane/textlane/internal/observability/logger"
	obsmetrics "github.com/textlane/textlane/internal/observability/metrics"
	obstracing "github.com/textlane/textlane/internal/observability/tracing"
	"github.com/textlane/textlane/internal/organization"
	organizationdomain "github.com/textlane/textlane/internal/organization/domain"
	"github.com/textlane/textlane/internal/provisioning"
	provisioningdomain "github.com/textlane/textlane/internal/provisioning/domain"
	"github.com/textlane/textlane/internal/ratelimit"
	"github.com/textlane/textlane/internal/user"
	userdomain "github.com/textlane/textlane/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	authorization.Module,
	user.Module,
	organization.Module,
	invite.Module,
	contact.Module,
	message.Module,
	apikey.Module,
	provisioning.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	userSvc         userdomain.Service
	organizationSvc organizationdomain.Service
	inviteSvc       invitedomain.Service
	contactSvc      contactdomain.Service
	messageSvc      messagedomain.Service
	apiKeySvc       apikeydomain.Service
	provisioningSvc provisioningdomain.Service
	authzSvc        authorization.Service
	sendLimiter     *ratelimit.MessageSendLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	UserSvc         userdomain.Service
	OrganizationSvc organizationdomain.Service
	InviteSvc       invitedomain.Service
	ContactSvc      contactdomain.Service
	MessageSvc      messagedomain.Service
	APIKeySvc       apikeydomain.Service
	ProvisioningSvc provisioningdomain.Service
	AuthzSvc        authorization.Service
	SendLimiter     *ratelimit.MessageSendLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("http.server"),
		genID:           p.GenID,
		userSvc:         p.UserSvc,
		organizationSvc: p.OrganizationSvc,
		inviteSvc:       p.InviteSvc,
		contactSvc:      p.ContactSvc,
		messageSvc:      p.MessageSvc,
		apiKeySvc:       p.APIKeySvc,
		provisioningSvc: p.ProvisioningSvc,
		authzSvc:        p.AuthzSvc,
		sendLimiter:     p.SendLimiter,
	}

	s.registerAPIRoutes()
	s.registerDashboardRoutes()
	s.registerWebhookRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerAPIRoutes mounts the programmatic surface. Every route is gated by
// an API key; the organization comes from the key, never from the request.
func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Messages --------
	v1.POST("/messages",
		s.APIKeyRequired(),
		s.authorizeOrgAction(authorization.ObjectMessage, authorization.ActionMessageSend),
		s.MessageSendRateLimit(),
		s.SendMessage,
	)
	v1.GET("/messages", s.APIKeyRequired(), s.authorizeOrgAction(authorization.ObjectMessage, authorization.ActionMessageView), s.ListMessages)
	v1.GET("/messages/:id", s.APIKeyRequired(), s.authorizeOrgAction(authorization.ObjectMessage, authorization.ActionMessageView), s.GetMessage)

	// -------- Contacts --------
	v1.GET("/contacts", s.APIKeyRequired(), s.authorizeOrgAction(authorization.ObjectContact, authorization.ActionContactView), s.SearchContacts)
	v1.POST("/contacts", s.APIKeyRequired(), s.authorizeOrgAction(authorization.ObjectContact, authorization.ActionContactUpsert), s.UpsertContact)
}

// registerDashboardRoutes mounts the browser-facing surface. Identity comes
// from the auth provider's signed token; the active organization from the
// X-Org-ID header.
func (s *Server) registerDashboardRoutes() {
	dash := s.engine.Group("/dashboard", s.IdentityRequired())

	dash.GET("/identity", s.IdentityVerification)

	dash.POST("/organizations", s.CreateOrganization)
	dash.GET("/organizations", s.ListOrganizations)

	dash.POST("/invites/accept", s.AcceptInvite)

	org := dash.Group("", s.OrgContext())
	{
		org.GET("/organization", s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationView), s.GetOrganization)
		org.PATCH("/organization", s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationUpdate), s.UpdateSubscriptionTier)
		org.DELETE("/organization", s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationDelete), s.DeleteOrganization)
		org.POST("/organization/transfer", s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationTransfer), s.TransferOwnership)
		// Leaving needs no grant: membership checks live in the service.
		org.POST("/organization/leave", s.LeaveOrganization)

		org.GET("/members", s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberView), s.ListMembers)

		org.GET("/invites", s.authorizeOrgAction(authorization.ObjectInvite, authorization.ActionInviteView), s.ListInvites)
		org.POST("/invites", s.authorizeOrgAction(authorization.ObjectInvite, authorization.ActionInviteCreate), s.CreateInvite)
		org.DELETE("/invites/:id", s.authorizeOrgAction(authorization.ObjectInvite, authorization.ActionInviteRevoke), s.RevokeInvite)

		org.GET("/contacts", s.authorizeOrgAction(authorization.ObjectContact, authorization.ActionContactView), s.SearchContacts)
		org.POST("/contacts", s.authorizeOrgAction(authorization.ObjectContact, authorization.ActionContactUpsert), s.UpsertContact)

		org.GET("/messages", s.authorizeOrgAction(authorization.ObjectMessage, authorization.ActionMessageView), s.ListMessages)
		org.GET("/messages/:id", s.authorizeOrgAction(authorization.ObjectMessage, authorization.ActionMessageView), s.GetMessage)

		org.GET("/api-keys", s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyView), s.ListAPIKeys)
		org.POST("/api-keys", s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyCreate), s.IssueAPIKey)
		org.DELETE("/api-keys/:id", s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyRevoke), s.RevokeAPIKey)
	}
}

// registerWebhookRoutes mounts the server-to-server surface.
func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/events/identity", s.WebhookSecretRequired(), s.HandleIdentityEvent)
	s.engine.POST("/webhooks/status", s.WebhookSecretRequired(), s.UpdateMessageStatus)
}
