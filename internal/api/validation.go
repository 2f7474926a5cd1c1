package api

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"talentflow/internal/pipeline"
)

// RegisterValidators 为 gin 的绑定校验器注册 stage 与 jobstatus 标签。
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("stage", func(fl validator.FieldLevel) bool {
		return pipeline.Stage(fl.Field().String()).Valid()
	}); err != nil {
		return fmt.Errorf("register stage validator: %w", err)
	}
	if err := v.RegisterValidation("jobstatus", func(fl validator.FieldLevel) bool {
		return pipeline.JobStatus(fl.Field().String()).Valid()
	}); err != nil {
		return fmt.Errorf("register jobstatus validator: %w", err)
	}
	return nil
}
