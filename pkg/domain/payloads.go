package domain

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// HousingCreatedMessage is returned in HousingResponse.Msg on success.
const HousingCreatedMessage = "Success: Housing data has been successfully created."

// TrafficPayload carries the caller-supplied fields for traffic creation and edits.
type TrafficPayload struct {
	RoadName string `json:"road_name" validate:"required"`
	Limit    int    `json:"limit" validate:"gt=0"`
}

// HousingPayload carries the caller-supplied fields for housing creation.
type HousingPayload struct {
	HousingName       string `json:"housing_name" validate:"required"`
	NumberOfResidents int    `json:"number_of_residents" validate:"gt=0"`
	TrafficID         string `json:"traffic_id" validate:"required"`
}

// HousingResponse reports an accepted housing allocation. RemainingLimit is the
// headroom observed before the new record was added.
type HousingResponse struct {
	Msg            string `json:"msg"`
	IsSuccess      bool   `json:"isSuccess"`
	RemainingLimit int    `json:"remainingLimit"`
	HousingID      string `json:"housing_id,omitempty"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func payloadValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
	})
	return validate
}

// Validate checks the payload for the given operation label.
func (p TrafficPayload) Validate(operation string) error {
	return validatePayload(operation, p)
}

// Validate checks the housing payload.
func (p HousingPayload) Validate() error {
	return validatePayload(OpCreateHousing, p)
}

func validatePayload(operation string, payload any) error {
	err := payloadValidator().Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Operation: operation, Reason: err.Error()}
	}
	first := fieldErrs[0]
	return &ValidationError{Operation: operation, Field: first.Field(), Reason: reasonFor(first)}
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
