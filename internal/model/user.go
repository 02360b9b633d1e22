package model

import "time"

// Session is the live proof of authentication for a subject.  It is owned
// by the session manager and mirrored into the persisted local state.
// A session without a SubjectID is never treated as authenticated.
//
// Fields:
//  SubjectID – stable identifier issued by the identity provider.
//  Email     – email address carried by the provider token.
//  Name      – display name, empty when the provider has none.
//  AvatarURL – avatar reference, empty when the provider has none.
//  IssuedAt  – issue time of the provider session.
//  Raw       – the provider's own session blob (token JSON).
type Session struct {
    SubjectID string    `json:"subject_id"`
    Email     string    `json:"email"`
    Name      string    `json:"name,omitempty"`
    AvatarURL string    `json:"avatar_url,omitempty"`
    IssuedAt  time.Time `json:"issued_at"`
    Raw       string    `json:"raw,omitempty"`
}

// Authenticated reports whether the session has a resolvable subject.
func (s *Session) Authenticated() bool {
    return s != nil && s.SubjectID != ""
}

// Subject is what the identity provider knows about the signed-in actor.
type Subject struct {
    ID            string
    Email         string
    Name          string
    AvatarURL     string
    EmailVerified bool
}

// StatusActive is the account status given to new role records.
const StatusActive = "active"

// RoleRecord mirrors a row of the `user_roles` table in the role store.
// There is exactly one record per subject.
//
// Fields:
//  SubjectID     – unique subject identifier (user_roles.subject_id).
//  Role          – raw role string; normalise with ParseRole.
//  Status        – account status (active, pending, suspended).
//  EmailVerified – whether the provider has confirmed the email.
//  LastLogin     – last successful sign-in, nil when never recorded.
//  FullName      – display name captured at sign-in.
//  AvatarURL     – avatar captured at sign-in.
type RoleRecord struct {
    SubjectID     string
    Role          string
    Status        string
    EmailVerified bool
    LastLogin     *time.Time
    FullName      string
    AvatarURL     string
    CreatedAt     time.Time
    UpdatedAt     time.Time
}

// RoleUpdate lists the fields Update may change.  Nil pointers are left
// untouched.
type RoleUpdate struct {
    Role          *string
    Status        *string
    EmailVerified *bool
    LastLogin     *time.Time
    FullName      *string
    AvatarURL     *string
}

// Empty reports whether the update changes nothing.
func (u RoleUpdate) Empty() bool {
    return u.Role == nil && u.Status == nil && u.EmailVerified == nil &&
        u.LastLogin == nil && u.FullName == nil && u.AvatarURL == nil
}

// Profile mirrors a row of the `user_profiles` table.
type Profile struct {
    SubjectID string
    FullName  string
    Phone     string
    AvatarURL string
    Address   string
    UpdatedAt time.Time
}

// CompleteProfile is the extended read used by profile views: the role
// record, the profile row and the role-specific detail sub-record.
type CompleteProfile struct {
    Record  RoleRecord
    Role    Role
    Profile *Profile
    Details map[string]any
}
