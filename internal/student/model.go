package student

import (
	"errors"
	"time"
)

// Roles a student can register under.
const (
	RoleParticipant = "participant"
	RoleVolunteer   = "volunteer"
	RoleOrganizer   = "organizer"
	RoleJudge       = "judge"
	RoleSponsor     = "sponsor"
)

// ValidRoles is the closed set accepted at registration.
var ValidRoles = []string{RoleParticipant, RoleVolunteer, RoleOrganizer, RoleJudge, RoleSponsor}

// Validation methods recorded on scan entries.
const (
	MethodQR     = "qr"
	MethodManual = "manual"
)

var (
	// ErrNotFound is returned when a lookup misses.
	ErrNotFound = errors.New("student not found")
	// ErrDuplicateEmail rejects a second registration with the same email.
	ErrDuplicateEmail = errors.New("student with this email already exists")
	// ErrDuplicateID rejects an id collision; callers regenerate and retry.
	ErrDuplicateID = errors.New("student id already exists")
	// ErrInvalidInput wraps field-level validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// Student is a registered event attendee. ID doubles as the QR payload.
type Student struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	College      string     `json:"college"`
	Role         string     `json:"role"`
	RegisteredAt time.Time  `json:"registeredAt"`
	Validated    bool       `json:"validated"`
	ValidatedAt  *time.Time `json:"validatedAt,omitempty"`
}

// CreateInput carries the registration form fields.
type CreateInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	College string `json:"college"`
	Role    string `json:"role"`
}

// Scan is one successful validation event, append-only.
type Scan struct {
	ID        string    `json:"-"`
	StudentID string    `json:"studentId"`
	ScannedAt time.Time `json:"scannedAt"`
	Method    string    `json:"method"`
}

// ScanRecord joins a scan with the student it validated.
type ScanRecord struct {
	Scan
	Student Student `json:"student"`
}

// ValidRole reports whether role is in the closed set.
func ValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ValidMethod reports whether a scan method is recognized.
func ValidMethod(method string) bool {
	return method == MethodQR || method == MethodManual
}
