package student

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDPrefix namespaces generated student ids; the full id is the QR payload.
const IDPrefix = "FEST"

// insertAttempts bounds id regeneration when a generated id collides.
const insertAttempts = 3

// Result is the outcome of a validation attempt. Business failures (unknown
// id, already validated) are carried here rather than as errors so callers
// can show who and when.
type Result struct {
	Success bool     `json:"success"`
	Student *Student `json:"student,omitempty"`
	Message string   `json:"message"`
}

// Service enforces the registration and validation rules around a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a service backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// GenerateID returns "FEST-<epoch millis>-<3-digit random>". Probabilistically
// unique; the store's id constraint catches the rare same-millisecond
// collision and Register retries.
func (s *Service) GenerateID() string {
	return fmt.Sprintf("%s-%d-%03d", IDPrefix, s.now().UnixMilli(), rand.Intn(1000))
}

// Register validates the input, rejects duplicate emails and persists a new
// student. The service re-checks every field even when the boundary already
// did, since it is the trust boundary.
func (s *Service) Register(ctx context.Context, in CreateInput) (Student, error) {
	if err := validateInput(in); err != nil {
		return Student{}, err
	}

	if _, err := s.store.FindByEmail(ctx, in.Email); err == nil {
		return Student{}, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return Student{}, err
	}

	st := Student{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		College:      in.College,
		Role:         in.Role,
		RegisteredAt: s.now(),
		Validated:    false,
	}
	var err error
	for i := 0; i < insertAttempts; i++ {
		st.ID = s.GenerateID()
		err = s.store.Insert(ctx, st)
		if !errors.Is(err, ErrDuplicateID) {
			break
		}
	}
	if err != nil {
		return Student{}, err
	}
	return st, nil
}

// Validate marks a student as entered, at most once, and records a scan entry
// for the winning attempt.
func (s *Service) Validate(ctx context.Context, id, method string) (Result, error) {
	if method == "" {
		method = MethodManual
	}
	if !ValidMethod(method) {
		return Result{}, fmt.Errorf("%w: method must be qr or manual", ErrInvalidInput)
	}

	st, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Result{Success: false, Message: "Student ID not found in the system"}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if st.Validated {
		return Result{Success: false, Student: &st, Message: "Student has already been validated"}, nil
	}

	now := s.now()
	updated, won, err := s.store.MarkValidated(ctx, id, now)
	if err != nil {
		return Result{}, err
	}
	if !won {
		// Lost the race to a concurrent scan.
		return Result{Success: false, Student: &updated, Message: "Student has already been validated"}, nil
	}

	scan := Scan{ID: uuid.NewString(), StudentID: id, ScannedAt: now, Method: method}
	if err := s.store.AppendScan(ctx, scan); err != nil {
		// The flag update is committed; losing the log row is an accepted
		// inconsistency window, not a failed validation.
		log.Printf("scan log append failed for %s: %v", id, err)
	}

	return Result{Success: true, Student: &updated, Message: "Student validated successfully!"}, nil
}

// Get returns a single student by id.
func (s *Service) Get(ctx context.Context, id string) (Student, error) {
	return s.store.FindByID(ctx, id)
}

// Search returns students matching the query and optional role filter; with
// neither it lists everyone, newest-first.
func (s *Service) Search(ctx context.Context, query, role string) ([]Student, error) {
	if role == "all" {
		role = ""
	}
	return s.store.Search(ctx, query, role)
}

// RecentScans returns the latest successful scans joined with their students.
func (s *Service) RecentScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.RecentScans(ctx, limit)
}

// Analytics computes a fresh reporting snapshot from the store.
func (s *Service) Analytics(ctx context.Context) (Report, error) {
	students, err := s.store.ListAll(ctx)
	if err != nil {
		return Report{}, err
	}
	return Aggregate(students, s.now()), nil
}

func validateInput(in CreateInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case strings.TrimSpace(in.Email) == "":
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	case strings.TrimSpace(in.Phone) == "":
		return fmt.Errorf("%w: phone is required", ErrInvalidInput)
	case strings.TrimSpace(in.College) == "":
		return fmt.Errorf("%w: college is required", ErrInvalidInput)
	case strings.TrimSpace(in.Role) == "":
		return fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	if !plausibleEmail(in.Email) {
		return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	if !ValidRole(in.Role) {
		return fmt.Errorf("%w: invalid role", ErrInvalidInput)
	}
	return nil
}

// plausibleEmail checks for a local part, an @ and a dotted domain segment.
func plausibleEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}
	domain := email[at+1:]
	dot := strings.Index(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t")
}
