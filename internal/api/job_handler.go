package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"talentflow/internal/api/middleware"
	"talentflow/internal/events"
	"talentflow/internal/pipeline"
	"talentflow/internal/store"
)

// JobHandler 提供岗位看板的列表、创建、更新与拖拽排序接口。
type JobHandler struct {
	jobs       *store.JobStore
	candidates *store.CandidateStore
	notifier
}

// NewJobHandler 返回 JobHandler 实例。
func NewJobHandler(s *store.Store, publisher events.Publisher) *JobHandler {
	return &JobHandler{jobs: s.Jobs(), candidates: s.Candidates(), notifier: newNotifier(publisher)}
}

type listJobsQuery struct {
	Search   string `form:"search"`
	Title    string `form:"title"`
	Status   string `form:"status" binding:"omitempty,jobstatus"`
	Tag      string `form:"tag"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
	Envelope bool   `form:"envelope"`
}

// ListJobs 按看板顺序返回过滤后的一页岗位。
func (h *JobHandler) ListJobs(c *gin.Context) {
	var q listJobsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		BadRequest(c, err.Error())
		return
	}
	search := q.Search
	if search == "" {
		search = q.Title
	}

	jobs, total, err := h.jobs.List(c.Request.Context(), store.JobFilter{
		Search:   search,
		Status:   q.Status,
		Tag:      q.Tag,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	items := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, toJobDTO(j))
	}
	writeList(c, items, total, q.Envelope)
}

// GetJob 返回单个岗位。
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}
	c.JSON(http.StatusOK, toJobDTO(job))
}

type createJobRequest struct {
	Title string   `json:"title" binding:"required,max=255"`
	Slug  string   `json:"slug" binding:"omitempty,max=255"`
	Tags  []string `json:"tags" binding:"omitempty,max=20,dive,max=64"`
}

// CreateJob 新建岗位，状态为 active，排在看板末尾。
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), store.JobInput{Title: req.Title, Slug: req.Slug, Tags: req.Tags})
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	dto := toJobDTO(job)
	h.publish(c, events.Event{Type: events.JobCreated, JobID: job.ID, Data: dto})
	c.JSON(http.StatusCreated, dto)
}

type updateJobRequest struct {
	Title  *string   `json:"title" binding:"omitempty,min=1,max=255"`
	Status *string   `json:"status" binding:"omitempty,jobstatus"`
	Tags   *[]string `json:"tags" binding:"omitempty,max=20,dive,max=64"`
	Order  *int      `json:"order"`
}

// UpdateJob 更新岗位状态、标题或标签；顺序只能通过 reorder 接口修改。
func (h *JobHandler) UpdateJob(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.Order != nil {
		BadRequest(c, "order can only be changed through /reorder")
		return
	}

	patch := store.JobPatch{Title: req.Title, Tags: req.Tags}
	if req.Status != nil {
		status := pipeline.JobStatus(strings.TrimSpace(*req.Status))
		patch.Status = &status
	}

	job, err := h.jobs.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	dto := toJobDTO(job)
	h.publish(c, events.Event{Type: events.JobUpdated, JobID: job.ID, Data: dto})
	c.JSON(http.StatusOK, dto)
}

type reorderRequest struct {
	FromOrder int `json:"fromOrder" binding:"required,min=1"`
	ToOrder   int `json:"toOrder" binding:"required,min=1"`
}

// ReorderJob 把岗位从 fromOrder 移到 toOrder，失败时看板顺序保持不变。
func (h *JobHandler) ReorderJob(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.SetOrder(c.Request.Context(), id, req.FromOrder, req.ToOrder)
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	h.publish(c, events.Event{
		Type:  events.JobReordered,
		JobID: job.ID,
		Data:  gin.H{"fromOrder": req.FromOrder, "toOrder": req.ToOrder},
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "job": toJobDTO(job)})
}

// JobPipeline 返回该岗位候选人在各阶段的人数，用于看板列头。
func (h *JobHandler) JobPipeline(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)

	if _, err := h.jobs.Get(ctx, id); err != nil {
		respondStoreError(c, log, err)
		return
	}
	counts, err := h.candidates.StageCounts(ctx, id)
	if err != nil {
		respondStoreError(c, log, err)
		return
	}

	columns := make([]gin.H, 0, len(pipeline.Stages))
	for _, st := range pipeline.Stages {
		columns = append(columns, gin.H{"stage": st, "count": counts[st]})
	}
	c.JSON(http.StatusOK, gin.H{"jobId": id, "stages": columns})
}
