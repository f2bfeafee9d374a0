package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ahrherrera/mysql-notifier/internal/service"
)

type BatchDeleteReq struct {
	IDs []uint `json:"ids" validate:"required,min=1,dive,gt=0"`
}

type MachinesHandler struct {
	svc      *service.MachinesService
	validate *validator.Validate
}

func NewMachinesHandler(svc *service.MachinesService, v *validator.Validate) *MachinesHandler {
	return &MachinesHandler{svc: svc, validate: v}
}

// GET /api/machines
func (h *MachinesHandler) List(c *gin.Context) {
	ms, err := h.svc.List()
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ms)
}

// GET /api/machines/:id
func (h *MachinesHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	m, err := h.svc.Get(id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// DELETE /api/machines/:id
func (h *MachinesHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /api/machines/batch-delete
func (h *MachinesHandler) BatchDelete(c *gin.Context) {
	var req BatchDeleteReq
	if !bind(c, h.validate, &req) {
		return
	}
	n, err := h.svc.BatchDelete(req.IDs)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// POST /api/machines/check-all
func (h *MachinesHandler) CheckAll(c *gin.Context) {
	st, err := h.svc.CheckAll(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// POST /api/machines/:id/check
func (h *MachinesHandler) Check(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	st, err := h.svc.CheckOne(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
