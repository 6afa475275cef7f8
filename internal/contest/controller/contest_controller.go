package controller

import (
	"github.com/gin-gonic/gin"

	"eclipser/internal/contest/broadcast"
	"eclipser/internal/contest/service"
	"eclipser/pkg/utils/response"
)

// ContestController handles contest HTTP endpoints.
type ContestController struct {
	contestService *service.ContestService
	submitService  *service.SubmitService
}

// NewContestController creates a new ContestController.
func NewContestController(contestService *service.ContestService, submitService *service.SubmitService) *ContestController {
	return &ContestController{
		contestService: contestService,
		submitService:  submitService,
	}
}

// RegisterRoutes wires the REST surface and the websocket endpoint.
func (h *ContestController) RegisterRoutes(r *gin.Engine, hub *broadcast.Hub) {
	contest := r.Group("/contest")
	{
		contest.POST("/create", h.Create)
		contest.POST("/join", h.Join)
		contest.POST("/submit", h.Submit)
		contest.GET("/all", h.List)
		contest.GET("/history/:userId", h.History)
		contest.GET("/:contestId", h.Get)
		contest.GET("/:contestId/submissions", h.Submissions)
	}
	r.GET("/submission/:id/status", h.SubmissionStatus)
	r.GET("/submission/:id/source", h.SubmissionSource)
	r.GET("/ws", broadcast.ServeWS(hub))
}

// Create handles contest creation.
func (h *ContestController) Create(c *gin.Context) {
	var req service.CreateContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	contestID, err := h.contestService.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"contestId": contestID})
}

// JoinRequest defines the join payload.
type JoinRequest struct {
	ContestID string `json:"contestId" binding:"required"`
	UserID    string `json:"userId" binding:"required"`
}

// Join adds the caller to a contest and returns its state.
func (h *ContestController) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	contest, err := h.contestService.Join(c.Request.Context(), req.ContestID, req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, contest)
}

// Submit accepts a code submission and returns its id.
func (h *ContestController) Submit(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	submissionID, err := h.submitService.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"submissionId": submissionID})
}

// List returns every contest, newest first.
func (h *ContestController) List(c *gin.Context) {
	contests, err := h.contestService.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, contests)
}

// History lists contests for a user.
func (h *ContestController) History(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		response.BadRequest(c, "Invalid user id")
		return
	}
	contests, err := h.contestService.History(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, contests)
}

// Get returns one contest's state.
func (h *ContestController) Get(c *gin.Context) {
	contestID := c.Param("contestId")
	if contestID == "" {
		response.BadRequest(c, "Invalid contest id")
		return
	}
	contest, err := h.contestService.Get(c.Request.Context(), contestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, contest)
}

// Submissions lists a contest's submissions without code bodies.
func (h *ContestController) Submissions(c *gin.Context) {
	contestID := c.Param("contestId")
	if contestID == "" {
		response.BadRequest(c, "Invalid contest id")
		return
	}
	subs, err := h.contestService.Submissions(c.Request.Context(), contestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, subs)
}

// SubmissionStatus returns the live status of one submission.
func (h *ContestController) SubmissionStatus(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	snap, err := h.submitService.Status(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, snap)
}

// SubmissionSource returns one submission's source code.
func (h *ContestController) SubmissionSource(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	src, err := h.submitService.Source(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, src)
}
