package student

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps everything in process. It backs STORE_BACKEND=memory and
// the test suite; it intentionally favors clarity over performance.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Student
	byEmail map[string]string // email -> id
	scans   []Scan
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]Student),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryStore) Insert(_ context.Context, s Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[s.Email]; ok {
		return ErrDuplicateEmail
	}
	if _, ok := m.byID[s.ID]; ok {
		return ErrDuplicateID
	}
	m.byID[s.ID] = s
	m.byEmail[s.Email] = s.ID
	return nil
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.byID[id]; ok {
		return s, nil
	}
	return Student{}, ErrNotFound
}

func (m *MemoryStore) FindByEmail(_ context.Context, email string) (Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.byEmail[email]; ok {
		return m.byID[id], nil
	}
	return Student{}, ErrNotFound
}

func (m *MemoryStore) MarkValidated(_ context.Context, id string, ts time.Time) (Student, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return Student{}, false, ErrNotFound
	}
	if s.Validated {
		return s, false, nil
	}
	s.Validated = true
	s.ValidatedAt = &ts
	m.byID[id] = s
	return s, true, nil
}

func (m *MemoryStore) Search(_ context.Context, query, role string) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(query)
	var out []Student
	for _, s := range m.byID {
		if role != "" && s.Role != role {
			continue
		}
		if q != "" && !matches(s, q) {
			continue
		}
		out = append(out, s)
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) ListAll(ctx context.Context) ([]Student, error) {
	return m.Search(ctx, "", "")
}

func (m *MemoryStore) AppendScan(_ context.Context, scan Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, scan)
	return nil
}

func (m *MemoryStore) RecentScans(_ context.Context, limit int) ([]ScanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	scans := make([]Scan, len(m.scans))
	copy(scans, m.scans)
	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].ScannedAt.After(scans[j].ScannedAt)
	})
	var out []ScanRecord
	for _, sc := range scans {
		if len(out) >= limit {
			break
		}
		s, ok := m.byID[sc.StudentID]
		if !ok {
			continue
		}
		out = append(out, ScanRecord{Scan: sc, Student: s})
	}
	return out, nil
}

func matches(s Student, q string) bool {
	return strings.Contains(strings.ToLower(s.Name), q) ||
		strings.Contains(strings.ToLower(s.ID), q) ||
		strings.Contains(strings.ToLower(s.College), q) ||
		strings.Contains(strings.ToLower(s.Email), q)
}

func sortNewestFirst(list []Student) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].RegisteredAt.After(list[j].RegisteredAt)
	})
}
