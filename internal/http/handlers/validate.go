package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ahrherrera/mysql-notifier/internal/validation"
)

type ValidateReq struct {
	Host        string `json:"host" validate:"max=255"`
	User        string `json:"user" validate:"max=256"`
	Password    string `json:"password" validate:"max=1024"`
	EditingHost string `json:"editing_host" validate:"omitempty,max=255"`
}

type ValidateResp struct {
	validation.Result
	CommitEnabled bool `json:"commit_enabled"`
}

// ValidateHandler 无状态校验，不弹提示
type ValidateHandler struct {
	reg      validation.Registry
	validate *validator.Validate
}

func NewValidateHandler(reg validation.Registry, v *validator.Validate) *ValidateHandler {
	return &ValidateHandler{reg: reg, validate: v}
}

// POST /api/validate
func (h *ValidateHandler) Validate(c *gin.Context) {
	var req ValidateReq
	if !bind(c, h.validate, &req) {
		return
	}
	in := validation.Input{Host: req.Host, User: req.User}
	if req.EditingHost != "" {
		in.EditMode = true
		in.EditingHost = req.EditingHost
	}
	res := validation.Validate(in, h.reg)
	c.JSON(http.StatusOK, ValidateResp{
		Result:        res,
		CommitEnabled: validation.CommitEnabled(validation.Fields{Host: req.Host, User: req.User, Password: req.Password}, res),
	})
}
