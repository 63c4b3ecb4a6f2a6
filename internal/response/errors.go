package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrEmailTaken         ErrCode = "EMAIL_ALREADY_REGISTERED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden          ErrCode = "FORBIDDEN"
	ErrInstructorOnly     ErrCode = "INSTRUCTOR_ACCESS_ONLY"
	ErrNotCourseAuthor    ErrCode = "NOT_COURSE_AUTHOR"
	ErrEnrollmentRequired ErrCode = "ENROLLMENT_REQUIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Attempt engine ────────────────────────────────────────────────
	ErrAttemptAlreadyActive    ErrCode = "ATTEMPT_ALREADY_ACTIVE"
	ErrAttemptAlreadyCompleted ErrCode = "ATTEMPT_ALREADY_COMPLETED"
	ErrAttemptNotFound         ErrCode = "ATTEMPT_NOT_FOUND"
	ErrNotOwner                ErrCode = "NOT_OWNER"
	ErrAttemptNotMutable       ErrCode = "ATTEMPT_NOT_MUTABLE"
	ErrInvalidQuestionType     ErrCode = "INVALID_QUESTION_TYPE"
	ErrNoCompletedAttempt      ErrCode = "NO_COMPLETED_ATTEMPT"
	ErrNoQuestions             ErrCode = "NO_QUESTIONS"
	ErrUnknownQuestion         ErrCode = "UNKNOWN_QUESTION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrEmailTaken:
		return "An account with this email already exists."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrInstructorOnly:
		return "This resource is restricted to instructors."
	case ErrNotCourseAuthor:
		return "You are not the author of this course."
	case ErrEnrollmentRequired:
		return "You must be enrolled in this course first."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Attempt engine ────────────────────────────────────────────────
	case ErrAttemptAlreadyActive:
		return "You already have an active attempt for this test. Resume it instead of starting a new one."
	case ErrAttemptAlreadyCompleted:
		return "You have already completed this test."
	case ErrAttemptNotFound:
		return "Attempt not found."
	case ErrNotOwner:
		return "This attempt belongs to another learner."
	case ErrAttemptNotMutable:
		return "This attempt has been submitted and can no longer be changed."
	case ErrInvalidQuestionType:
		return "The answer shape does not match the question type."
	case ErrNoCompletedAttempt:
		return "No completed attempt exists for this test."
	case ErrNoQuestions:
		return "This test has no questions."
	case ErrUnknownQuestion:
		return "The question does not belong to this attempt."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
