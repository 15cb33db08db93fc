package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-scheduler-api/internal/models"
	"github.com/noah-isme/class-scheduler-api/internal/service"
	"github.com/noah-isme/class-scheduler-api/pkg/response"
)

// MasterDataHandler serves the read-only master-data listings.
type MasterDataHandler struct {
	masterData *service.MasterDataService
}

// NewMasterDataHandler constructs MasterDataHandler.
func NewMasterDataHandler(masterData *service.MasterDataService) *MasterDataHandler {
	return &MasterDataHandler{masterData: masterData}
}

// ListStudents godoc
// @Summary List students
// @Tags MasterData
// @Produce json
// @Param search query string false "Match natural id, name or email"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *MasterDataHandler) ListStudents(c *gin.Context) {
	students, pagination, err := h.masterData.ListStudents(c.Request.Context(), models.StudentFilter{
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 20),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// ListInstructors godoc
// @Summary List instructors
// @Tags MasterData
// @Produce json
// @Param search query string false "Match natural id, name or email"
// @Success 200 {object} response.Envelope
// @Router /instructors [get]
func (h *MasterDataHandler) ListInstructors(c *gin.Context) {
	instructors, pagination, err := h.masterData.ListInstructors(c.Request.Context(), models.InstructorFilter{
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 20),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructors, pagination)
}

// ListClassTypes godoc
// @Summary List class types
// @Tags MasterData
// @Produce json
// @Param search query string false "Match natural id or name"
// @Success 200 {object} response.Envelope
// @Router /class-types [get]
func (h *MasterDataHandler) ListClassTypes(c *gin.Context) {
	classTypes, pagination, err := h.masterData.ListClassTypes(c.Request.Context(), models.ClassTypeFilter{
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 20),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classTypes, pagination)
}
