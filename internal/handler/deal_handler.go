package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hazeltrade/internal/catalog"
	"hazeltrade/internal/middleware"
	"hazeltrade/internal/model"
	"hazeltrade/internal/service"
	"hazeltrade/pkg/pagination"
	"hazeltrade/pkg/response"
)

type DealHandler struct {
	dealService     service.DealService
	workflowService service.WorkflowService
	authService     service.AuthService
}

// NewDealHandler sets up the routing dependencies for deal endpoints
func NewDealHandler(dealService service.DealService, workflowService service.WorkflowService, authService service.AuthService) *DealHandler {
	return &DealHandler{dealService: dealService, workflowService: workflowService, authService: authService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *DealHandler) RegisterRoutes(router *gin.RouterGroup) {
	deals := router.Group("/deals")
	{
		deals.POST("", middleware.RequireRole(catalog.RoleBroker), h.CreateDeal)
		deals.GET("", middleware.RequireAuth(), h.ListDeals)
		deals.GET("/:id", middleware.RequireAuth(), h.GetDeal)
		deals.GET("/:id/steps", middleware.RequireAuth(), h.GetDealSteps)
		deals.POST("/:id/steps/:stepNumber/approve", middleware.RequireAuth(), h.ApproveStep)
		deals.POST("/:id/steps/:stepNumber/complete", middleware.RequireAuth(), h.CompleteStep)
	}

	invites := router.Group("/invites")
	{
		invites.GET("/:token", h.GetInvite)
		invites.POST("/:token/accept", middleware.RequireAuth(), h.AcceptInvite)
	}

	router.GET("/companies", middleware.RequireRole(catalog.RoleBroker), h.ListCompanies)
}

// CreateDeal handles POST /deals to open a new brokered deal
// @Summary      Create a deal
// @Description  Creates a deal with its 12 workflow steps. New parties get 30-day invites; when both parties already exist the deal matches immediately.
// @Tags         deals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateDealRequest  true  "Create Deal Payload"
// @Success      201      {object}  response.Response{data=service.CreateDealResult}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /deals [post]
func (h *DealHandler) CreateDeal(c *gin.Context) {
	broker, ok := loadUser(c, h.authService)
	if !ok {
		return
	}

	var req service.CreateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.dealService.Create(c.Request.Context(), broker, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListDeals handles GET /deals with role-scoped visibility
// @Summary      List deals
// @Description  Brokers see their own deals; buyers and sellers see deals their company is attached to
// @Tags         deals
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Filter by deal status"
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response.Response{data=[]model.Deal}
// @Router       /deals [get]
func (h *DealHandler) ListDeals(c *gin.Context) {
	user, ok := loadUser(c, h.authService)
	if !ok {
		return
	}

	params := pagination.Parse(c)
	deals, total, err := h.dealService.List(c.Request.Context(), user, c.Query("status"), params.Offset, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"deals": deals,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	}))
}

// GetDeal handles GET /deals/:id for the full deal view
// @Summary      Get deal detail
// @Description  Returns the deal with its step rows, approval rows and the step catalog grouped by phase
// @Tags         deals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Deal ID"
// @Success      200  {object}  response.Response{data=service.DealDetail}
// @Failure      404  {object}  response.Response
// @Router       /deals/{id} [get]
func (h *DealHandler) GetDeal(c *gin.Context) {
	user, ok := loadUser(c, h.authService)
	if !ok {
		return
	}
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid deal id"))
		return
	}

	detail, err := h.dealService.Get(c.Request.Context(), user, dealID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// GetDealSteps handles GET /deals/:id/steps
// @Summary      Get deal steps
// @Description  Returns the deal's 12 step rows and their party approvals
// @Tags         deals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Deal ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /deals/{id}/steps [get]
func (h *DealHandler) GetDealSteps(c *gin.Context) {
	user, ok := loadUser(c, h.authService)
	if !ok {
		return
	}
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid deal id"))
		return
	}

	detail, err := h.dealService.Get(c.Request.Context(), user, dealID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"current_step": detail.Deal.CurrentStep,
		"steps":        detail.Steps,
		"approvals":    detail.Approvals,
	}))
}

// ApproveStep handles POST /deals/:id/steps/:stepNumber/approve
// @Summary      Approve a workflow step
// @Description  Records the caller's approval on the step. The step completes and the deal advances when every required party has approved.
// @Tags         deals
// @Produce      json
// @Security     BearerAuth
// @Param        id          path      string  true  "Deal ID"
// @Param        stepNumber  path      int     true  "Step number (1-12)"
// @Success      200  {object}  response.Response{data=service.StepResult}
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /deals/{id}/steps/{stepNumber}/approve [post]
func (h *DealHandler) ApproveStep(c *gin.Context) {
	user, dealID, stepNumber, ok := h.stepParams(c)
	if !ok {
		return
	}

	// Visibility first, so outsiders get the same 404 as for the deal itself
	if _, err := h.dealService.Get(c.Request.Context(), user, dealID); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.workflowService.RecordApproval(c.Request.Context(), dealID, stepNumber, user.Role, user.ID, nil)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CompleteStep handles POST /deals/:id/steps/:stepNumber/complete
// @Summary      Mark a workflow step complete
// @Description  Explicitly completes the step and advances the deal when it is the current step
// @Tags         deals
// @Produce      json
// @Security     BearerAuth
// @Param        id          path      string  true  "Deal ID"
// @Param        stepNumber  path      int     true  "Step number (1-12)"
// @Success      200  {object}  response.Response{data=service.StepResult}
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /deals/{id}/steps/{stepNumber}/complete [post]
func (h *DealHandler) CompleteStep(c *gin.Context) {
	user, dealID, stepNumber, ok := h.stepParams(c)
	if !ok {
		return
	}

	if _, err := h.dealService.Get(c.Request.Context(), user, dealID); err != nil {
		respondError(c, err)
		return
	}

	// Only the step's required parties (or the broker) may force completion
	if user.Role != catalog.RoleBroker && !catalog.CanAct(user.Role, stepNumber) {
		info, found := catalog.StepInfo(stepNumber)
		if !found {
			respondError(c, service.ErrStepNotFound)
			return
		}
		respondError(c, &service.PermissionError{
			StepNumber:      stepNumber,
			Role:            user.Role,
			RequiredParties: info.RequiredParties,
		})
		return
	}

	result, err := h.workflowService.CompleteStep(c.Request.Context(), dealID, stepNumber, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

func (h *DealHandler) stepParams(c *gin.Context) (user *model.User, dealID uuid.UUID, stepNumber int, ok bool) {
	u, loaded := loadUser(c, h.authService)
	if !loaded {
		return nil, uuid.Nil, 0, false
	}
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid deal id"))
		return nil, uuid.Nil, 0, false
	}
	stepNumber, err = strconv.Atoi(c.Param("stepNumber"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid step number"))
		return nil, uuid.Nil, 0, false
	}
	return u, dealID, stepNumber, true
}

// GetInvite handles GET /invites/:token (public) for the invite landing page
// @Summary      Get invite
// @Description  Returns the invite so the landing page can show deal context before signup
// @Tags         invites
// @Produce      json
// @Param        token  path      string  true  "Invite token"
// @Success      200    {object}  response.Response{data=model.Invite}
// @Failure      404    {object}  response.Response
// @Router       /invites/{token} [get]
func (h *DealHandler) GetInvite(c *gin.Context) {
	invite, err := h.dealService.GetInvite(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invite))
}

// AcceptInvite handles POST /invites/:token/accept
// @Summary      Accept an invite
// @Description  Attaches the caller's company to the inviting deal as buyer or seller
// @Tags         invites
// @Produce      json
// @Security     BearerAuth
// @Param        token  path      string  true  "Invite token"
// @Success      200    {object}  response.Response{data=model.Deal}
// @Failure      400    {object}  response.Response
// @Failure      404    {object}  response.Response
// @Router       /invites/{token}/accept [post]
func (h *DealHandler) AcceptInvite(c *gin.Context) {
	user, ok := loadUser(c, h.authService)
	if !ok {
		return
	}

	deal, err := h.dealService.AcceptInvite(c.Request.Context(), c.Param("token"), user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, deal))
}

// ListCompanies handles GET /companies for the broker's party picker
// @Summary      List deal companies
// @Description  Returns the companies that appeared on the broker's past deals, optionally filtered by side
// @Tags         companies
// @Produce      json
// @Security     BearerAuth
// @Param        side  query     string  false  "buyer or seller"
// @Success      200   {object}  response.Response{data=[]model.Company}
// @Router       /companies [get]
func (h *DealHandler) ListCompanies(c *gin.Context) {
	user, ok := loadUser(c, h.authService)
	if !ok {
		return
	}

	companies, err := h.dealService.ListCompanies(c.Request.Context(), user.ID, c.Query("side"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, companies))
}
