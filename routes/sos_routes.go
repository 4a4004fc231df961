package routes

import (
	"pulsepath/internal/handlers"
	"pulsepath/internal/middleware"
	"pulsepath/internal/models"
	"pulsepath/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// SetupSOSRoutes wires the request lifecycle endpoints. Role middleware does
// the static gate; per-request ownership is enforced in the service.
func SetupSOSRoutes(r *gin.RouterGroup, jwtSecret string, sosHandler *handlers.SOSHandler) {
	sos := r.Group("/sos")
	sos.Use(middleware.AuthRequired(jwtSecret))
	{
		sos.GET("/:id", sosHandler.GetRequest)

		patient := sos.Group("")
		patient.Use(middleware.RoleRequired(models.RolePatient))
		{
			patient.POST("", sosHandler.SubmitRequest)
			patient.GET("/mine", sosHandler.ListMyRequests)
		}

		hospital := sos.Group("")
		hospital.Use(middleware.RoleRequired(models.RoleHospital))
		{
			hospital.GET("/eligible", sosHandler.ListEligible)
			hospital.GET("/assigned", sosHandler.ListAssigned)
			hospital.PUT("/:id/accept", sosHandler.AcceptRequest)
			hospital.PUT("/:id/decline", sosHandler.DeclineRequest)
			hospital.PUT("/:id/dispatch", sosHandler.DispatchAmbulance)
		}

		ambulance := sos.Group("")
		ambulance.Use(middleware.RoleRequired(models.RoleAmbulance))
		{
			ambulance.GET("/unit", sosHandler.ListAmbulanceAssignments)
		}

		// Complete is open to hospital and ambulance; cancel to every human
		// role. The service decides which edge is legal for the caller.
		shared := sos.Group("")
		shared.Use(middleware.RoleRequired(models.RoleHospital, models.RoleAmbulance))
		{
			shared.PUT("/:id/complete", sosHandler.CompleteRequest)
		}

		cancel := sos.Group("")
		cancel.Use(middleware.RoleRequired(models.RolePatient, models.RoleHospital))
		{
			cancel.PUT("/:id/cancel", sosHandler.CancelRequest)
		}
	}
}

// SetupDirectoryRoutes wires the hospital directory and fleet endpoints.
func SetupDirectoryRoutes(r *gin.RouterGroup, jwtSecret string, hospitalHandler *handlers.HospitalHandler) {
	hospitals := r.Group("/hospitals")
	hospitals.Use(middleware.AuthRequired(jwtSecret))
	{
		hospitals.GET("", hospitalHandler.ListHospitals)
		hospitals.GET("/:id", hospitalHandler.GetHospital)
		hospitals.GET("/:id/capacity", hospitalHandler.GetCapacity)

		admin := hospitals.Group("")
		admin.Use(middleware.RoleRequired(models.RoleHospital))
		{
			admin.POST("", hospitalHandler.RegisterHospital)
			admin.POST("/ambulances", hospitalHandler.RegisterAmbulance)
			admin.GET("/fleet", hospitalHandler.ListFleet)
		}
	}
}

// SetupEventRoutes exposes the live event stream.
func SetupEventRoutes(r *gin.RouterGroup, jwtSecret string, wsHandler *websocket.Handler) {
	events := r.Group("/events")
	events.Use(middleware.AuthRequired(jwtSecret))
	{
		events.GET("/stream", wsHandler.HandleWebSocket)
	}
}
