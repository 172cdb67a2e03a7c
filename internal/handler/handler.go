// Package handler exposes the facade over HTTP with gin.
package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"halaqa/internal/app"
	"halaqa/internal/auth"
	"halaqa/internal/events"
	"halaqa/internal/hadith"
	"halaqa/internal/roster"
)

type Handler struct {
	app    *app.Facade
	events events.Bus
	checks map[string]func(context.Context) bool
	log    *zap.Logger
}

func New(f *app.Facade, bus events.Bus, checks map[string]func(context.Context) bool, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{app: f, events: bus, checks: checks, log: log}
}

// fail writes a typed failure. Unexpected errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	status := app.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": app.UserMessage(err)})
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func subject(c *gin.Context) string {
	claims, _ := auth.ClaimsFrom(c)
	return claims.Subject
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Auth ----------

func (h *Handler) Register(c *gin.Context) {
	var req app.RegisterRequest
	if !bind(c, &req) {
		return
	}
	st, err := h.app.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"student": st})
}

func (h *Handler) Login(c *gin.Context) {
	var req app.LoginRequest
	if !bind(c, &req) {
		return
	}
	in, err := h.app.Login(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

func (h *Handler) RequestCode(c *gin.Context) {
	var req struct {
		Phone string `json:"phone_number"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.app.RequestCode(c.Request.Context(), req.Phone); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

func (h *Handler) VerifyCode(c *gin.Context) {
	var req app.CodeRequest
	if !bind(c, &req) {
		return
	}
	in, err := h.app.VerifyCode(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	in, err := h.app.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

// ---------- Student ----------

func (h *Handler) Me(c *gin.Context) {
	me, err := h.app.Me(c.Request.Context(), subject(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

func (h *Handler) CheckIn(c *gin.Context) {
	s, err := h.app.CheckIn(c.Request.Context(), subject(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": s})
}

func (h *Handler) SetupMemorization(c *gin.Context) {
	var req roster.Setup
	if !bind(c, &req) {
		return
	}
	me, err := h.app.SetupMemorization(c.Request.Context(), subject(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

// UploadAvatar expects a multipart form with an "avatar" file.
func (h *Handler) UploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, app.MaxAvatarBytes+1<<20)
	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, app.MaxAvatarBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read avatar"})
		return
	}
	me, err := h.app.UploadAvatar(c.Request.Context(), subject(c), data, header.Filename)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

func (h *Handler) MyHistory(c *gin.Context) {
	list, err := h.app.SessionHistory(c.Request.Context(), subject(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

func (h *Handler) MyHadith(c *gin.Context) {
	e, err := h.app.TodayHadith(c.Request.Context(), subject(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignment": e})
}

func (h *Handler) MyHadithHistory(c *gin.Context) {
	list, err := h.app.HadithHistory(c.Request.Context(), subject(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": list})
}

func (h *Handler) HadithSeen(c *gin.Context) {
	a, err := h.app.MarkHadithSeen(c.Request.Context(), subject(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignment": a})
}

func (h *Handler) HadithDone(c *gin.Context) {
	a, err := h.app.MarkHadithDone(c.Request.Context(), subject(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignment": a})
}

// ---------- Queue (sheikh) ----------

func (h *Handler) Queue(c *gin.Context) {
	list, err := h.app.Queue(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

func (h *Handler) ActiveSession(c *gin.Context) {
	s, err := h.app.ActiveSession(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}

func (h *Handler) NextSession(c *gin.Context) {
	s, err := h.app.NextSession(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}

func (h *Handler) TodaySessions(c *gin.Context) {
	list, err := h.app.TodaySessions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

// StartNext answers 200 with a null session when nobody is queued.
func (h *Handler) StartNext(c *gin.Context) {
	s, err := h.app.StartNext(c.Request.Context(), subject(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}

func (h *Handler) Complete(c *gin.Context) {
	var req app.CompleteRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	out, err := h.app.Complete(c.Request.Context(), subject(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Skip(c *gin.Context) {
	s, err := h.app.Skip(c.Request.Context(), subject(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}

func (h *Handler) MarkAbsent(c *gin.Context) {
	out, err := h.app.MarkAbsent(c.Request.Context(), subject(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// ---------- Students (sheikh) ----------

func (h *Handler) Students(c *gin.Context) {
	list, err := h.app.Students(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": list})
}

func (h *Handler) PendingStudents(c *gin.Context) {
	list, err := h.app.PendingStudents(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": list})
}

func (h *Handler) TodaysSchedule(c *gin.Context) {
	list, err := h.app.TodaysSchedule(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": list})
}

func (h *Handler) StudentHistory(c *gin.Context) {
	list, err := h.app.SessionHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

func (h *Handler) Approve(c *gin.Context) {
	var req app.ScheduleRequest
	if !bind(c, &req) {
		return
	}
	st, err := h.app.Approve(c.Request.Context(), subject(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st})
}

func (h *Handler) Reject(c *gin.Context) {
	st, err := h.app.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st})
}

func (h *Handler) Suspend(c *gin.Context) {
	st, err := h.app.Suspend(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st})
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	var req app.ScheduleRequest
	if !bind(c, &req) {
		return
	}
	st, err := h.app.UpdateSchedule(c.Request.Context(), subject(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st})
}

func (h *Handler) UpdateNotes(c *gin.Context) {
	var req app.NotesRequest
	if !bind(c, &req) {
		return
	}
	st, err := h.app.UpdateNotes(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st})
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	if err := h.app.DeleteStudent(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Hadith ----------

func (h *Handler) HadithSettings(c *gin.Context) {
	s, err := h.app.HadithSettings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": s})
}

func (h *Handler) UpdateHadithSettings(c *gin.Context) {
	var req hadith.SettingsUpdate
	if !bind(c, &req) {
		return
	}
	out, err := h.app.UpdateHadithSettings(c.Request.Context(), subject(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) AssignHadith(c *gin.Context) {
	res, err := h.app.AssignHadith(c.Request.Context(), subject(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": res})
}

func (h *Handler) HadithStats(c *gin.Context) {
	stats, err := h.app.HadithStats(c.Request.Context(), c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Catalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"hadiths": h.app.Catalog()})
}

func (h *Handler) Hadith(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hadith id must be a number"})
		return
	}
	hd, err := h.app.Hadith(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hadith": hd})
}

// ---------- Audit ----------

func (h *Handler) AuditLog(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	list, err := h.app.AuditLog(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": list})
}
