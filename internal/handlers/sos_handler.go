package handlers

import (
	"pulsepath/internal/middleware"
	"pulsepath/internal/models"
	"pulsepath/internal/services"
	"pulsepath/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SOSHandler struct {
	dispatchService services.DispatchService
}

func NewSOSHandler(dispatchService services.DispatchService) *SOSHandler {
	return &SOSHandler{
		dispatchService: dispatchService,
	}
}

type submitRequestBody struct {
	HospitalType          string `json:"hospital_type" validate:"required,hospital_type"`
	WardType              string `json:"ward_type" validate:"required,ward_type"`
	PreferredHospitalID   string `json:"preferred_hospital_id,omitempty"`
	Notes                 string `json:"notes"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone" validate:"omitempty,phone"`
}

// SubmitRequest creates a new SOS request for the authenticated patient.
func (h *SOSHandler) SubmitRequest(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var body submitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.BadRequestResponse(c, "invalid request: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		utils.ValidationErrorResponse(c, utils.ValidationErrors(err))
		return
	}

	input := &services.SubmitRequestInput{
		PatientID:            caller.ID,
		HospitalType:         models.HospitalType(body.HospitalType),
		WardType:             models.WardType(body.WardType),
		Notes:                body.Notes,
		EmergencyContactName: body.EmergencyContactName,
	}
	if body.EmergencyContactPhone != "" {
		input.EmergencyContactPhone = utils.NormalizePhone(body.EmergencyContactPhone)
	}
	if body.PreferredHospitalID != "" {
		preferred, err := primitive.ObjectIDFromHex(body.PreferredHospitalID)
		if err != nil {
			utils.BadRequestResponse(c, "invalid preferred hospital id")
			return
		}
		input.PreferredHospitalID = &preferred
	}

	request, err := h.dispatchService.Submit(c.Request.Context(), input)
	if err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "SOS request submitted", request)
}

// GetRequest returns the current state of one request.
func (h *SOSHandler) GetRequest(c *gin.Context) {
	requestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid request id")
		return
	}

	request, err := h.dispatchService.Get(c.Request.Context(), requestID)
	if err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "SOS request retrieved", request)
}

// ListMyRequests returns the authenticated patient's request history.
func (h *SOSHandler) ListMyRequests(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	requests, err := h.dispatchService.ListByPatient(c.Request.Context(), caller.ID)
	if err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "SOS requests retrieved", requests)
}

// ListEligible returns pending requests the hospital could accept.
func (h *SOSHandler) ListEligible(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	requests, err := h.dispatchService.ListEligible(c.Request.Context(), caller.ID)
	if err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "eligible SOS requests retrieved", requests)
}

// ListAssigned returns requests assigned to the calling hospital.
func (h *SOSHandler) ListAssigned(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	requests, err := h.dispatchService.ListAssignedToHospital(c.Request.Context(), caller.ID)
	if err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "assigned SOS requests retrieved", requests)
}

// ListAmbulanceAssignments returns requests assigned to the calling unit.
func (h *SOSHandler) ListAmbulanceAssignments(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	requests, err := h.dispatchService.ListAssignedToAmbulance(c.Request.Context(), caller.ID)
	if err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "ambulance assignments retrieved", requests)
}

// AcceptRequest claims a pending request for the calling hospital.
func (h *SOSHandler) AcceptRequest(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	requestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid request id")
		return
	}

	request, err := h.dispatchService.Accept(c.Request.Context(), caller.ID, requestID)
	if err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "SOS request accepted", request)
}

// DeclineRequest turns down a pending request.
func (h *SOSHandler) DeclineRequest(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	requestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid request id")
		return
	}

	if err := h.dispatchService.Decline(c.Request.Context(), caller.ID, requestID); err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "SOS request declined", nil)
}

type dispatchBody struct {
	AmbulanceID string `json:"ambulance_id" validate:"required"`
}

// DispatchAmbulance sends one of the hospital's units to an accepted request.
func (h *SOSHandler) DispatchAmbulance(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	requestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid request id")
		return
	}

	var body dispatchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.BadRequestResponse(c, "invalid request: "+err.Error())
		return
	}
	ambulanceID, err := primitive.ObjectIDFromHex(body.AmbulanceID)
	if err != nil {
		utils.BadRequestResponse(c, "invalid ambulance id")
		return
	}

	request, err := h.dispatchService.Dispatch(c.Request.Context(), caller.ID, requestID, ambulanceID)
	if err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "ambulance dispatched", request)
}

// CompleteRequest closes out a dispatched request.
func (h *SOSHandler) CompleteRequest(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	requestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid request id")
		return
	}

	if err := h.dispatchService.Complete(c.Request.Context(), caller, requestID); err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "SOS request completed", nil)
}

// CancelRequest aborts a request; permitted edges depend on role and state.
func (h *SOSHandler) CancelRequest(c *gin.Context) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	requestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid request id")
		return
	}

	if err := h.dispatchService.Cancel(c.Request.Context(), caller, requestID); err != nil {
		utils.DispatchErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "SOS request cancelled", nil)
}
