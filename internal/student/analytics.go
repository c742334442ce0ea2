package student

import (
	"math"
	"sort"
	"time"
)

// recentWindow is the lookback for the recent-registrations counter.
const recentWindow = 24 * time.Hour

// topCollegeLimit caps the colleges leaderboard.
const topCollegeLimit = 5

// RoleStat summarizes validation progress for one role.
type RoleStat struct {
	Role       string `json:"role"`
	Total      int    `json:"total"`
	Validated  int    `json:"validated"`
	Percentage int    `json:"percentage"`
}

// CollegeCount is one row of the colleges leaderboard.
type CollegeCount struct {
	College string `json:"college"`
	Count   int    `json:"count"`
}

// Report is the analytics snapshot, computed fresh on every request.
type Report struct {
	TotalStudents       int            `json:"totalStudents"`
	ValidatedStudents   int            `json:"validatedStudents"`
	PendingStudents     int            `json:"pendingStudents"`
	ValidationRate      int            `json:"validationRate"`
	RoleStats           []RoleStat     `json:"roleStats"`
	TopColleges         []CollegeCount `json:"topColleges"`
	RecentRegistrations int            `json:"recentRegistrations"`
}

// Aggregate derives the snapshot from the full student list.
func Aggregate(students []Student, now time.Time) Report {
	rep := Report{TotalStudents: len(students)}

	roleTotals := make(map[string]*RoleStat)
	collegeTotals := make(map[string]int)
	cutoff := now.Add(-recentWindow)

	for _, s := range students {
		if s.Validated {
			rep.ValidatedStudents++
		}
		if !s.RegisteredAt.Before(cutoff) {
			rep.RecentRegistrations++
		}
		rs, ok := roleTotals[s.Role]
		if !ok {
			rs = &RoleStat{Role: s.Role}
			roleTotals[s.Role] = rs
		}
		rs.Total++
		if s.Validated {
			rs.Validated++
		}
		collegeTotals[s.College]++
	}

	rep.PendingStudents = rep.TotalStudents - rep.ValidatedStudents
	rep.ValidationRate = percentage(rep.ValidatedStudents, rep.TotalStudents)

	rep.RoleStats = make([]RoleStat, 0, len(roleTotals))
	for _, rs := range roleTotals {
		rs.Percentage = percentage(rs.Validated, rs.Total)
		rep.RoleStats = append(rep.RoleStats, *rs)
	}
	sort.SliceStable(rep.RoleStats, func(i, j int) bool {
		return rep.RoleStats[i].Total > rep.RoleStats[j].Total
	})

	rep.TopColleges = make([]CollegeCount, 0, len(collegeTotals))
	for college, count := range collegeTotals {
		rep.TopColleges = append(rep.TopColleges, CollegeCount{College: college, Count: count})
	}
	// Tie order among equal counts is unspecified.
	sort.SliceStable(rep.TopColleges, func(i, j int) bool {
		return rep.TopColleges[i].Count > rep.TopColleges[j].Count
	})
	if len(rep.TopColleges) > topCollegeLimit {
		rep.TopColleges = rep.TopColleges[:topCollegeLimit]
	}

	return rep
}

func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
