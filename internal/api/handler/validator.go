package handler

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/kyoungrae/ewh-consulting-calendar-sub000/internal/schedule"
)

var registerOnce sync.Once

// RegisterValidators 注册自定义校验标签 yearmonth（YYYY-MM）
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("yearmonth", func(fl validator.FieldLevel) bool {
			_, err := schedule.ParseMonth(fl.Field().String(), time.UTC)
			return err == nil
		})
	})
}
