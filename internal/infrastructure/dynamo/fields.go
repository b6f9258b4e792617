package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable           = "enable"
	fieldUpdatedAt        = "updated_at"
	fieldLastSignInAt     = "last_sign_in_at"
	fieldRefreshToken     = "refresh_token"
	fieldRefreshExpiresAt = "refresh_expires_at"
)

// emailGuardPrefix marks the placeholder item that reserves an email address
// in the users table so two accounts can never share one.
const emailGuardPrefix = "EMAIL#"
