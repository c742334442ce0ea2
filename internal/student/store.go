package student

import (
	"context"
	"time"
)

// Store persists student records and the validation scan log. Implementations
// must make MarkValidated a single conditional update so two concurrent
// validations of the same id cannot both win.
type Store interface {
	// Insert persists a new student. Fails with ErrDuplicateEmail or
	// ErrDuplicateID when the corresponding unique constraint is hit.
	Insert(ctx context.Context, s Student) error

	FindByID(ctx context.Context, id string) (Student, error)
	FindByEmail(ctx context.Context, email string) (Student, error)

	// MarkValidated flips validated to true with the given timestamp only if
	// it is currently false. The bool reports whether this call won the
	// transition; when false the returned student is the already-validated
	// record, unchanged.
	MarkValidated(ctx context.Context, id string, ts time.Time) (Student, bool, error)

	// Search matches a case-insensitive substring against name, id, college
	// and email, optionally narrowed to an exact role. Empty query matches
	// everything. Results are newest-first by registration time.
	Search(ctx context.Context, query, role string) ([]Student, error)

	// ListAll returns every student, newest-first.
	ListAll(ctx context.Context) ([]Student, error)

	// AppendScan records one successful validation. No uniqueness applies.
	AppendScan(ctx context.Context, scan Scan) error

	// RecentScans returns the last limit scans by scan time descending, each
	// joined with its student. Scans whose student no longer resolves are
	// dropped from the result.
	RecentScans(ctx context.Context, limit int) ([]ScanRecord, error)
}
