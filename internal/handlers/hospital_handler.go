package handlers

import (
	"pulsepath/internal/middleware"
	"pulsepath/internal/models"
	"pulsepath/internal/services"
	"pulsepath/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type HospitalHandler struct {
	directoryService services.DirectoryService
}

func NewHospitalHandler(directoryService services.DirectoryService) *HospitalHandler {
	return &HospitalHandler{
		directoryService: directoryService,
	}
}

type registerHospitalBody struct {
	Name     string         `json:"name" validate:"required"`
	Type     string         `json:"type" validate:"required,hospital_type"`
	Address  string         `json:"address"`
	Phone    string         `json:"phone" validate:"omitempty,phone"`
	Capacity map[string]int `json:"capacity" validate:"required,min=1"`
}

// RegisterHospital creates a hospital profile with its initial ward
// capacity. The ward set fixed here is what the hospital serves.
func (h *HospitalHandler) RegisterHospital(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var body registerHospitalBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.BadRequestResponse(c, "invalid request: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		utils.ValidationErrorResponse(c, utils.ValidationErrors(err))
		return
	}

	capacity := make(map[models.WardType]models.BedCount, len(body.Capacity))
	for ward, beds := range body.Capacity {
		wardType := models.WardType(ward)
		if !models.ValidWardType(wardType) {
			utils.BadRequestResponse(c, "unknown ward type: "+ward)
			return
		}
		if beds < 0 {
			utils.BadRequestResponse(c, "negative bed count for ward: "+ward)
			return
		}
		capacity[wardType] = models.BedCount{Total: beds, Available: beds}
	}

	hospital := &models.Hospital{
		ID:       caller.ID,
		Name:     body.Name,
		Type:     models.HospitalType(body.Type),
		Address:  body.Address,
		Phone:    body.Phone,
		Capacity: capacity,
	}

	if err := h.directoryService.RegisterHospital(c.Request.Context(), hospital); err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "hospital registered", hospital)
}

// ListHospitals returns the directory, optionally narrowed by type.
func (h *HospitalHandler) ListHospitals(c *gin.Context) {
	var (
		hospitals []*models.Hospital
		err       error
	)

	if typeFilter := c.Query("type"); typeFilter != "" {
		hospitalType := models.HospitalType(typeFilter)
		if !models.ValidHospitalType(hospitalType) {
			utils.BadRequestResponse(c, "unknown hospital type: "+typeFilter)
			return
		}
		hospitals, err = h.directoryService.ListHospitalsByType(c.Request.Context(), hospitalType)
	} else {
		hospitals, err = h.directoryService.ListHospitals(c.Request.Context())
	}

	if err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "hospitals retrieved", hospitals)
}

// GetHospital returns one directory entry.
func (h *HospitalHandler) GetHospital(c *gin.Context) {
	hospitalID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid hospital id")
		return
	}

	hospital, err := h.directoryService.GetHospital(c.Request.Context(), hospitalID)
	if err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "hospital retrieved", hospital)
}

// GetCapacity returns the dashboard snapshot for one hospital.
func (h *HospitalHandler) GetCapacity(c *gin.Context) {
	hospitalID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid hospital id")
		return
	}

	snapshot, err := h.directoryService.CapacitySnapshot(c.Request.Context(), hospitalID)
	if err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "capacity snapshot retrieved", snapshot)
}

type registerAmbulanceBody struct {
	CallSign   string `json:"call_sign" validate:"required"`
	DriverName string `json:"driver_name"`
	Phone      string `json:"phone" validate:"omitempty,phone"`
}

// RegisterAmbulance adds a unit to the calling hospital's fleet.
func (h *HospitalHandler) RegisterAmbulance(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var body registerAmbulanceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.BadRequestResponse(c, "invalid request: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		utils.ValidationErrorResponse(c, utils.ValidationErrors(err))
		return
	}

	ambulance := &models.Ambulance{
		HospitalID: caller.ID,
		CallSign:   body.CallSign,
		DriverName: body.DriverName,
		Phone:      body.Phone,
		Available:  true,
	}

	if err := h.directoryService.RegisterAmbulance(c.Request.Context(), ambulance); err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "ambulance registered", ambulance)
}

// ListFleet returns the calling hospital's units; ?available=true narrows to
// dispatchable ones.
func (h *HospitalHandler) ListFleet(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var (
		fleet []*models.Ambulance
		err   error
	)
	if c.Query("available") == "true" {
		fleet, err = h.directoryService.ListAvailableFleet(c.Request.Context(), caller.ID)
	} else {
		fleet, err = h.directoryService.ListFleet(c.Request.Context(), caller.ID)
	}

	if err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "fleet retrieved", fleet)
}
