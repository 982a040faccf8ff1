package validator

import (
	"github.com/go-playground/validator/v10"

	"github.com/medquiz-pro/session-service/internal/models"
)

// Validator wraps struct-tag validation with the custom rules used by the
// session engine's request types.
type Validator struct {
	structValidator *validator.Validate
}

// New creates a new validator instance with all custom rules registered.
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
	}
}

// Validate validates struct tags, returning the shared ValidationErrors type
// for field-level failures.
func (v *Validator) Validate(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if converted := ToValidationErrors(err); len(converted) > 0 {
			return converted
		}
		return err
	}
	return nil
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("quiz_mode", validateQuizMode)
	validate.RegisterValidation("difficulty_level", validateDifficultyLevel)
	validate.RegisterValidation("session_status", validateSessionStatus)
}

func validateQuizMode(fl validator.FieldLevel) bool {
	switch models.QuizMode(fl.Field().String()) {
	case models.ModeQuick, models.ModeTimed, models.ModeCustom:
		return true
	}
	return false
}

func validateDifficultyLevel(fl validator.FieldLevel) bool {
	switch models.DifficultyLevel(fl.Field().String()) {
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
		return true
	}
	return false
}

func validateSessionStatus(fl validator.FieldLevel) bool {
	switch models.SessionStatus(fl.Field().String()) {
	case models.SessionStatusActive, models.SessionStatusCompleted, models.SessionStatusAbandoned:
		return true
	}
	return false
}
