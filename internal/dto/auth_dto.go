package dto

// TokenRequest carries login credentials to the token endpoint.
type TokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is the token pair returned by a successful login.
type TokenResponse struct {
	Access             string `json:"access"`
	Refresh            string `json:"refresh"`
	IsStaff            bool   `json:"is_staff"`
	Username           string `json:"username"`
	MustChangePassword bool   `json:"must_change_password"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// RefreshResponse carries the replacement access token.
type RefreshResponse struct {
	Access string `json:"access"`
}

// ChangePasswordRequest updates the caller's password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,nefield=OldPassword"`
}

// MessageResponse is the generic confirmation payload used by write endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}
