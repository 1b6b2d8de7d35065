package models

import "github.com/golang-jwt/jwt/v5"

// UserRole distinguishes caller capabilities on the reporting API.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleFaculty UserRole = "faculty"
)

// JWTClaims represents the JWT payload of callers' access tokens. FacultyID
// identifies the teaching record behind the account; it drives the
// "only marked by me" matrix filter.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	FacultyID int64    `json:"faculty_id,omitempty"`
	Role      UserRole `json:"role"`
	Email     string   `json:"email"`
	jwt.RegisteredClaims
}
