package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ahrherrera/mysql-notifier/internal/service"
)

type OpenSessionReq struct {
	MachineID uint `json:"machine_id"`
}

// 字段缺省表示不改
type PatchSessionReq struct {
	Host          *string `json:"host" validate:"omitempty,max=255"`
	User          *string `json:"user" validate:"omitempty,max=256"`
	Password      *string `json:"password" validate:"omitempty,max=1024"`
	IntervalValue *uint   `json:"interval_value" validate:"omitempty,max=100000"`
	IntervalUnit  *string `json:"interval_unit" validate:"omitempty,interval_unit"`
}

type CommitReq struct {
	ForceTest bool `json:"force_test"`
	Overwrite bool `json:"overwrite"`
}

type SessionsHandler struct {
	svc      *service.SessionsService
	validate *validator.Validate
}

func NewSessionsHandler(svc *service.SessionsService, v *validator.Validate) *SessionsHandler {
	return &SessionsHandler{svc: svc, validate: v}
}

// POST /api/sessions  空 body 为新增，带 machine_id 为编辑
func (h *SessionsHandler) Open(c *gin.Context) {
	var req OpenSessionReq
	if !bindOptional(c, h.validate, &req) {
		return
	}
	v, err := h.svc.Open(req.MachineID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// GET /api/sessions/:id
func (h *SessionsHandler) Get(c *gin.Context) {
	v, err := h.svc.Get(c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// PATCH /api/sessions/:id
func (h *SessionsHandler) Patch(c *gin.Context) {
	var req PatchSessionReq
	if !bind(c, h.validate, &req) {
		return
	}
	v, err := h.svc.Update(c.Param("id"), service.Patch{
		Host:          req.Host,
		User:          req.User,
		Password:      req.Password,
		IntervalValue: req.IntervalValue,
		IntervalUnit:  req.IntervalUnit,
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// POST /api/sessions/:id/leave
func (h *SessionsHandler) Leave(c *gin.Context) {
	v, err := h.svc.Leave(c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// POST /api/sessions/:id/test
func (h *SessionsHandler) Test(c *gin.Context) {
	res, err := h.svc.Test(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/sessions/:id/commit
func (h *SessionsHandler) Commit(c *gin.Context) {
	var req CommitReq
	if !bindOptional(c, h.validate, &req) {
		return
	}
	res, err := h.svc.Commit(c.Request.Context(), c.Param("id"), req.ForceTest, req.Overwrite)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DELETE /api/sessions/:id
func (h *SessionsHandler) Close(c *gin.Context) {
	if err := h.svc.Close(c.Param("id")); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
