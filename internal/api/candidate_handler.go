package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"talentflow/internal/api/middleware"
	"talentflow/internal/events"
	"talentflow/internal/pipeline"
	"talentflow/internal/store"
)

const anonymousAuthor = "Current User"

// CandidateHandler 提供候选人列表、阶段流转、时间线与笔记接口。
type CandidateHandler struct {
	candidates *store.CandidateStore
	roster     []string
	notifier
}

// NewCandidateHandler 返回 CandidateHandler 实例；roster 用于识别笔记中的 @提及。
func NewCandidateHandler(s *store.Store, publisher events.Publisher, roster []string) *CandidateHandler {
	return &CandidateHandler{candidates: s.Candidates(), roster: roster, notifier: newNotifier(publisher)}
}

type listCandidatesQuery struct {
	Search   string `form:"search"`
	Stage    string `form:"stage" binding:"omitempty,stage"`
	JobID    uint   `form:"jobId"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=1000"`
	Envelope bool   `form:"envelope"`
}

// ListCandidates 返回过滤后的一页候选人。
func (h *CandidateHandler) ListCandidates(c *gin.Context) {
	var q listCandidatesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		BadRequest(c, err.Error())
		return
	}

	cands, total, err := h.candidates.List(c.Request.Context(), store.CandidateFilter{
		Search:   q.Search,
		Stage:    q.Stage,
		JobID:    q.JobID,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	items := make([]candidateDTO, 0, len(cands))
	for _, cand := range cands {
		items = append(items, toCandidateDTO(cand))
	}
	writeList(c, items, total, q.Envelope)
}

// GetCandidate 返回候选人及其笔记（新的在前）。
func (h *CandidateHandler) GetCandidate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	detail, err := h.candidates.Get(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	notes := make([]noteDTO, 0, len(detail.Notes))
	for _, n := range detail.Notes {
		notes = append(notes, toNoteDTO(n, h.roster))
	}
	c.JSON(http.StatusOK, candidateDetailDTO{candidateDTO: toCandidateDTO(detail.Candidate), Notes: notes})
}

type createCandidateRequest struct {
	Name  string `json:"name" binding:"required,max=255"`
	Email string `json:"email" binding:"required,email,max=255"`
	JobID uint   `json:"jobId"`
	Stage string `json:"stage" binding:"omitempty,stage"`
}

// CreateCandidate 新建候选人并记录投递时间线。
func (h *CandidateHandler) CreateCandidate(c *gin.Context) {
	var req createCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	cand, err := h.candidates.Create(c.Request.Context(), store.CandidateInput{
		Name:  req.Name,
		Email: req.Email,
		JobID: req.JobID,
		Stage: pipeline.Stage(req.Stage),
	})
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	dto := toCandidateDTO(cand)
	h.publish(c, events.Event{Type: events.CandidateCreated, CandidateID: cand.ID, JobID: cand.JobID, Data: dto})
	c.JSON(http.StatusCreated, dto)
}

type moveStageRequest struct {
	Stage string `json:"stage" binding:"required,stage"`
}

// UpdateCandidate 执行阶段流转：阶段与时间线记录一起写入。
func (h *CandidateHandler) UpdateCandidate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req moveStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	cand, entry, err := h.candidates.MoveStage(c.Request.Context(), id, pipeline.Stage(req.Stage))
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	dto := toCandidateDTO(cand)
	h.publish(c, events.Event{
		Type:        events.CandidateStageChanged,
		CandidateID: cand.ID,
		JobID:       cand.JobID,
		Data:        toTimelineDTO(entry),
	})
	c.JSON(http.StatusOK, stageChangeDTO{candidateDTO: dto, TimelineEntry: toTimelineDTO(entry)})
}

type timelineQuery struct {
	Order string `form:"order" binding:"omitempty,oneof=asc desc"`
}

// GetTimeline 按时间返回完整时间线，默认升序。
func (h *CandidateHandler) GetTimeline(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var q timelineQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		BadRequest(c, err.Error())
		return
	}

	entries, err := h.candidates.Timeline(c.Request.Context(), id, q.Order == "desc")
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	items := make([]timelineDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, toTimelineDTO(e))
	}
	c.JSON(http.StatusOK, items)
}

type addNoteRequest struct {
	Text   string `json:"text" binding:"required,max=5000"`
	Author string `json:"author" binding:"omitempty,max=128"`
}

// AddNote 追加笔记。已认证请求以令牌中的成员为作者。
func (h *CandidateHandler) AddNote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req addNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	author := middleware.MemberFromContext(c)
	if author == "" {
		author = req.Author
	}
	if author == "" {
		author = anonymousAuthor
	}

	entry, err := h.candidates.AddNote(c.Request.Context(), id, req.Text, author)
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	note := toNoteDTO(entry, h.roster)
	h.publish(c, events.Event{Type: events.CandidateNoteAdded, CandidateID: id, Data: note})
	c.JSON(http.StatusCreated, note)
}
