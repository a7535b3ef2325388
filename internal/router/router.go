package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/portal-service/api"
	"github.com/psds-microservice/portal-service/internal/access"
	"github.com/psds-microservice/portal-service/internal/handler"
	"github.com/psds-microservice/portal-service/internal/service"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Deps — всё, что нужно роутеру.
type Deps struct {
	Log           *slog.Logger
	Verifier      handler.TokenVerifier
	Ready         handler.Pinger
	Directory     *service.UserService
	Users         *handler.UserHandler
	Conversations *handler.ConversationHandler
	Tickets       *handler.TicketHandler
	Leads         *handler.LeadHandler
}

func New(d Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	if d.Log != nil {
		r.Use(handler.RequestLogger(d.Log))
	}
	r.GET(paths.PathHealth, gin.WrapF(handler.Health))
	r.GET(paths.PathReady, gin.WrapF(handler.Ready(d.Ready)))
	r.GET(paths.PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, paths.PathSwagger+"/") })
	r.GET(paths.PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = paths.PathSwagger + "/index.html"
			c.Request.RequestURI = paths.PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(paths.PathSwagger+"/openapi.json"))(c)
	})

	v1 := r.Group("/api/v1")
	v1.Use(handler.Authenticate(d.Verifier))
	{
		v1.POST("/newsletter", d.Leads.Newsletter)
		v1.POST("/contact", d.Leads.Contact)
		v1.GET("/access", d.Users.Access)

		v1.GET("/me", d.Users.Me)
		v1.POST("/me/sync", d.Users.Sync)

		v1.GET("/conversations", d.Conversations.List)
		v1.POST("/conversations", d.Conversations.Open)
		v1.GET("/conversations/:id/messages", d.Conversations.Messages)
		v1.POST("/conversations/:id/messages", d.Conversations.Send)

		v1.GET("/bookings/:bookingId/ticket", d.Tickets.GetForBooking)
		v1.POST("/bookings/:bookingId/ticket", d.Tickets.Create)
		v1.POST("/tickets/:id/messages", d.Tickets.AddMessage)
		v1.POST("/tickets/:id/close", d.Tickets.Close)
	}

	staff := v1.Group("")
	staff.Use(handler.RequireGate(d.Directory, access.Gate{RequireAdmin: true}))
	{
		staff.GET("/users", d.Users.List)
		staff.PUT("/users/:id/role", d.Users.UpdateRole)
		staff.GET("/tickets", d.Tickets.List)
	}

	return r
}
