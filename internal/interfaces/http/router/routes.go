package router

import (
	"github.com/gin-gonic/gin"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/interfaces/http/handler"
	"github.com/groceryshare/backend/internal/interfaces/http/middleware"
)

// Handlers are the API handlers mounted by Routes
type Handlers struct {
	Delivery  *handler.DeliveryHandler
	Message   *handler.MessageHandler
	Recipient *handler.RecipientHandler
	Volunteer *handler.VolunteerHandler
	Audit     *handler.AuditHandler
	System    *handler.SystemHandler
}

var (
	recipientOnly = middleware.RequireRole(identity.RoleRecipient)
	volunteerOnly = middleware.RequireRole(identity.RoleVolunteer)
	adminOnly     = middleware.RequireRole(identity.RoleAdmin)
	participants  = middleware.RequireRole(identity.RoleRecipient, identity.RoleVolunteer)
	anyRole       = middleware.RequireRole(identity.RoleRecipient, identity.RoleVolunteer, identity.RoleAdmin)
)

// Routes returns the API's domain groups. Every group expects the JWT
// middleware to have run.
func Routes(h Handlers) []RouteRegistrar {
	deliveries := NewDomainGroup("deliveries", "/deliveries")
	deliveries.POST("", recipientOnly, h.Delivery.Create)
	deliveries.GET("/pool", volunteerOnly, h.Delivery.ListPool)
	deliveries.GET("/mine", participants, h.Delivery.ListMine)
	deliveries.GET("/:id", anyRole, h.Delivery.Get)
	deliveries.POST("/:id/claim", volunteerOnly, h.Delivery.Claim)
	deliveries.POST("/:id/pickup", volunteerOnly, h.Delivery.MarkPickedUp)
	deliveries.POST("/:id/cancel", anyRole, h.Delivery.Cancel)
	deliveries.POST("/:id/complete", recipientOnly, h.Delivery.Complete)
	deliveries.POST("/:id/rating", recipientOnly, h.Message.Rate)
	deliveries.GET("/:id/messages", anyRole, h.Message.List)
	deliveries.POST("/:id/messages", participants, h.Message.Send)
	deliveries.GET("/:id/messages/unread", participants, h.Message.Unread)
	deliveries.GET("/:id/audit", adminOnly, h.Audit.ListByDelivery)

	recipients := NewDomainGroup("recipients", "/recipients").Use(recipientOnly)
	recipients.POST("", h.Recipient.Register)
	recipients.GET("/me", h.Recipient.GetMine)
	recipients.PUT("/me/contact", h.Recipient.UpdateContact)
	recipients.DELETE("/me", h.Recipient.DeleteMine)

	volunteers := NewDomainGroup("volunteers", "/volunteers").Use(volunteerOnly)
	volunteers.POST("", h.Volunteer.Register)
	volunteers.GET("/me", h.Volunteer.GetMine)
	volunteers.POST("/me/id-uploads", h.Volunteer.RegisterIDUpload)

	admin := NewDomainGroup("admin", "/admin").Use(adminOnly)
	admin.GET("/audit", h.Audit.ListRecent)
	adminRecipients := admin.Group("admin-recipients", "/recipients")
	adminRecipients.GET("/:id", h.Recipient.AdminGet)
	adminRecipients.DELETE("/:id", h.Recipient.AdminDelete)
	adminRecipients.GET("/:id/audit", h.Audit.ListByRecipient)
	adminVolunteers := admin.Group("admin-volunteers", "/volunteers")
	adminVolunteers.GET("/pending", h.Volunteer.ListPending)
	adminVolunteers.POST("/:id/approve", h.Volunteer.Approve)
	adminVolunteers.POST("/:id/reject", h.Volunteer.Reject)
	adminVolunteers.POST("/:id/suspend", h.Volunteer.Suspend)
	adminVolunteers.POST("/:id/reinstate", h.Volunteer.Reinstate)
	adminVolunteers.GET("/:id/audit", h.Audit.ListByVolunteer)

	return []RouteRegistrar{deliveries, recipients, volunteers, admin}
}

// EngineConfig carries the cross-cutting middleware of the HTTP engine
type EngineConfig struct {
	// Outer runs on every request, including /health
	Outer []gin.HandlerFunc
	// API runs on /api/v1 only, after Outer
	API []gin.HandlerFunc
	// Docs guards /swagger; nil leaves the docs unmounted
	Docs gin.HandlerFunc
}

// NewEngine builds the gin engine with /health, /api/v1/ping and the
// authenticated domain routes.
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	engine := gin.New()
	engine.Use(cfg.Outer...)
	engine.GET("/health", h.System.Health)
	if cfg.Docs != nil {
		MountDocs(engine, cfg.Docs)
	}

	r := NewRouter(engine, WithAPIMiddleware(cfg.API...))
	r.Register(pingRoute{h.System})
	r.Register(Routes(h)...)
	r.Setup()
	return engine
}

type pingRoute struct {
	system *handler.SystemHandler
}

func (p pingRoute) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", p.system.Ping)
}
