package model

// Credentials is the input of a password sign-in.  Role is the hint used
// when the role store has no record for the subject yet.
type Credentials struct {
    Email    string `json:"email" form:"email"`
    Password string `json:"password" form:"password"`
    Role     string `json:"role" form:"role"`
}

// RegisterData is the input of account creation.
type RegisterData struct {
    Email    string `json:"email" form:"email"`
    Password string `json:"password" form:"password"`
    FullName string `json:"full_name" form:"full_name"`
    Phone    string `json:"phone" form:"phone"`
    Role     string `json:"role" form:"role"`
}

// Result is the outcome of a pass-through operation.
type Result struct {
    Success bool   `json:"success"`
    Message string `json:"message,omitempty"`
    Error   string `json:"error,omitempty"`
}

// LoginResult is returned by a password sign-in.  When Success is true,
// Role is always a member of the enumeration.  Degraded marks a sign-in
// whose role record could not be confirmed or written.
type LoginResult struct {
    Success       bool   `json:"success"`
    Role          Role   `json:"role,omitempty"`
    DashboardPath string `json:"dashboard_path,omitempty"`
    Degraded      bool   `json:"degraded,omitempty"`
    Error         string `json:"error,omitempty"`
}

// RegisterResult is returned by account creation.
type RegisterResult struct {
    Success  bool   `json:"success"`
    Message  string `json:"message,omitempty"`
    Degraded bool   `json:"degraded,omitempty"`
    Error    string `json:"error,omitempty"`
}

// ExternalSignIn carries the provider URL the actor must be sent to.
type ExternalSignIn struct {
    RedirectURL string `json:"redirect_url"`
}

// FinalizeResult is the outcome of completing an external sign-in.
// IsNew is true only for the call that created the role record.
// Recovery marks a completed password-reset link.
type FinalizeResult struct {
    Success       bool
    IsNew         bool
    Recovery      bool
    Role          Role
    DashboardPath string
    Degraded      bool
    Error         string
}
