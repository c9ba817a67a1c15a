package account

// Status is the tri-state result of a workflow. The values match the
// JSON API responses, a transport layer can use them as-is.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
)

// Code identifies the specific workflow result, independent of the
// human-readable message.
type Code string

const (
	// Registration.
	CodeEmptyFields         Code = "empty_fields"
	CodeInvalidName         Code = "invalid_name"
	CodeInvalidEmail        Code = "invalid_email"
	CodePasswordTooShort    Code = "password_too_short"
	CodePasswordTooLong     Code = "password_too_long"
	CodeDuplicateEmail      Code = "duplicate_email"
	CodeVerificationPending Code = "verification_pending"

	// Verification.
	CodeNoSuchPendingVerification Code = "no_such_pending_verification"
	CodeVerificationExpired       Code = "verification_expired"
	CodeInvalidToken              Code = "invalid_token"
	CodeVerificationSucceeded     Code = "verification_succeeded"

	// Login.
	CodeEmptyCredentials   Code = "empty_credentials"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeEmailNotVerified   Code = "email_not_verified"
	CodeInvalidPassword    Code = "invalid_password"
	CodeLoginSucceeded     Code = "login_succeeded"

	// Password reset.
	CodeNoSuchAccount      Code = "no_such_account"
	CodeAccountNotVerified Code = "account_not_verified"
	CodeResetPending       Code = "reset_pending"
	CodeNoSuchPendingReset Code = "no_such_pending_reset"
	CodeResetExpired       Code = "reset_expired"
	CodeResetSucceeded     Code = "reset_succeeded"

	// Collaborator failures.
	CodeHashingFailure      Code = "hashing_failure"
	CodePersistenceFailure  Code = "persistence_failure"
	CodeNotificationFailure Code = "notification_failure"
)

// Outcome is the public result of a workflow. Collaborator errors are
// never exposed directly, they are translated to a Code and carried on
// the outcome for logging.
type Outcome struct {
	Status  Status
	Code    Code
	Message string

	// Account is only set on a successful login.
	Account *Public

	err error
}

// Err returns the underlying cause of a failed outcome, if any. It is
// meant for logging, not for clients.
func (o Outcome) Err() error {
	return o.err
}

func pending(code Code, msg string) Outcome {
	return Outcome{Status: StatusPending, Code: code, Message: msg}
}

func succeeded(code Code, msg string) Outcome {
	return Outcome{Status: StatusSucceeded, Code: code, Message: msg}
}

func failed(code Code, msg string) Outcome {
	return Outcome{Status: StatusFailed, Code: code, Message: msg}
}

func failedErr(code Code, msg string, err error) Outcome {
	return Outcome{Status: StatusFailed, Code: code, Message: msg, err: err}
}
