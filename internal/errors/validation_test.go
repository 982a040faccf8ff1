package errors

import (
	"testing"
)

func TestValidationError(t *testing.T) {
	// Test NewValidationError
	err := NewValidationError("quiz_mode", "must be a valid quiz mode (quick, timed, custom)", "marathon")

	if err.Field != "quiz_mode" {
		t.Errorf("Expected field to be 'quiz_mode', got '%s'", err.Field)
	}

	if err.Message != "must be a valid quiz mode (quick, timed, custom)" {
		t.Errorf("Unexpected message: '%s'", err.Message)
	}

	if err.Value != "marathon" {
		t.Errorf("Expected value to be 'marathon', got '%v'", err.Value)
	}

	// Test Error method
	expected := "validation error on field 'quiz_mode': must be a valid quiz mode (quick, timed, custom)"
	if err.Error() != expected {
		t.Errorf("Expected error message to be '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	// Test empty ValidationErrors
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Expected 'validation failed' for empty errors, got '%s'", errs.Error())
	}

	// Test single ValidationError
	errs = append(errs, *NewValidationError("question_index", "must be at least 0", nil))
	expected := "validation failed: question_index must be at least 0"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for single error, got '%s'", expected, errs.Error())
	}

	// Test multiple ValidationErrors
	errs = append(errs, *NewValidationError("option_index", "must be at least 0", nil))
	expected = "validation failed: 2 field errors"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for multiple errors, got '%s'", expected, errs.Error())
	}
}

func TestNewValidationErrorWithRule(t *testing.T) {
	err := NewValidationErrorWithRule("user_id", "is required", "required", nil)

	if err.Rule != "required" {
		t.Errorf("Expected rule to be 'required', got '%s'", err.Rule)
	}

	if err.Field != "user_id" {
		t.Errorf("Expected field to be 'user_id', got '%s'", err.Field)
	}
}
