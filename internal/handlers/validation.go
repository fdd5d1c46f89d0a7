package handlers

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/conpanion/conpanion/pkg/errors"
	"github.com/conpanion/conpanion/pkg/response"
	appValidator "github.com/conpanion/conpanion/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, a field-level error response is written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		if ve, ok := err.(appValidator.ValidationErrors); ok {
			response.ValidationFailed(c, ve.FieldMessages())
			return false
		}
		response.Error(c, appErrors.NewBadRequest("invalid request payload"))
		return false
	}

	return true
}
