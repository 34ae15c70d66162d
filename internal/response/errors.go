package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrStaffAccessOnly   ErrCode = "STAFF_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Assessment ────────────────────────────────────────────────────
	ErrWindowClosed       ErrCode = "ASSESSMENT_WINDOW_CLOSED"
	ErrNotEnrolled        ErrCode = "NOT_ENROLLED"
	ErrAlreadySubmitted   ErrCode = "ALREADY_SUBMITTED"
	ErrStreamAlreadyOpen  ErrCode = "STREAM_ALREADY_OPEN"
	ErrNotAssessmentStaff ErrCode = "NOT_ASSESSMENT_STAFF"

	// ─── Reports ───────────────────────────────────────────────────────
	ErrInvalidReportType      ErrCode = "INVALID_REPORT_TYPE"
	ErrReportGenerationFailed ErrCode = "REPORT_GENERATION_FAILED"
	ErrFileRequired           ErrCode = "FILE_REQUIRED"
	ErrFileTooLarge           ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have access to this resource."
	case ErrStudentAccessOnly:
		return "This endpoint is for students only."
	case ErrStaffAccessOnly:
		return "This endpoint is for lecturers and administrators only."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "The submitted data is invalid."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Malformed request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Assessment ────────────────────────────────────────────────────
	case ErrWindowClosed:
		return "This assessment is not currently open."
	case ErrNotEnrolled:
		return "You are not enrolled in this unit."
	case ErrAlreadySubmitted:
		return "You have already submitted this assessment."
	case ErrStreamAlreadyOpen:
		return "This assessment is already open in another window."
	case ErrNotAssessmentStaff:
		return "You do not teach the unit this assessment belongs to."

	// ─── Reports ───────────────────────────────────────────────────────
	case ErrInvalidReportType:
		return "Invalid report type."
	case ErrReportGenerationFailed:
		return "Failed to generate report."
	case ErrFileRequired:
		return "A PDF file is required."
	case ErrFileTooLarge:
		return "The uploaded file is too large."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."

	default:
		return "An unknown error occurred."
	}
}
