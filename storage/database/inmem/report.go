package inmemdb

import (
	"context"
	"sort"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/report"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *DB) *reportRepository {
	return &reportRepository{db: db}
}

// courseWorksLocked collects the ids of the course's practical works.
func (repo *reportRepository) courseWorksLocked(courseID string) map[string]bool {
	works := make(map[string]bool)
	for id, work := range repo.db.works {
		if work.CourseID.String == courseID {
			works[id] = true
		}
	}
	return works
}

func (repo *reportRepository) CourseAvgGrade(ctx context.Context, courseID string, exec ...core.DBExecutor) (float64, bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	works := repo.courseWorksLocked(courseID)
	var (
		sum   float64
		count int
	)
	for _, sub := range repo.db.submissions {
		if works[sub.PracticalWorkID] && sub.Grade.Valid {
			sum += float64(sub.Grade.Int)
			count++
		}
	}
	if count == 0 {
		return 0, false, nil
	}
	return sum / float64(count), true, nil
}

func (repo *reportRepository) CourseTotalStudents(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make(map[string]bool)
	for userID, groups := range repo.db.userGroups {
		for gid := range groups {
			if repo.db.courseGroups[courseID][gid] {
				students[userID] = true
			}
		}
	}
	return len(students), nil
}

func (repo *reportRepository) CourseStudentsGraded(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	works := repo.courseWorksLocked(courseID)
	students := make(map[string]bool)
	for _, sub := range repo.db.submissions {
		if works[sub.PracticalWorkID] && sub.Grade.Valid {
			students[sub.StudentID] = true
		}
	}
	return len(students), nil
}

func (repo *reportRepository) QueryPracticalStats(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]report.PracticalStats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var stats []report.PracticalStats
	for id, work := range repo.db.works {
		if work.CourseID.String != courseID {
			continue
		}
		ps := report.PracticalStats{PracticalWorkID: id, Title: work.Title}
		var sum float64
		for _, sub := range repo.db.submissions {
			if sub.PracticalWorkID == id && sub.Grade.Valid {
				sum += float64(sub.Grade.Int)
				ps.GradedCount++
			}
		}
		if ps.GradedCount > 0 {
			ps.AvgGrade.SetValid(sum / float64(ps.GradedCount))
		}
		stats = append(stats, ps)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Title < stats[j].Title })
	return stats, nil
}

func (repo *reportRepository) QueryGroupStats(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]report.GroupStats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	works := repo.courseWorksLocked(courseID)
	var stats []report.GroupStats
	for gid := range repo.db.courseGroups[courseID] {
		grp, ok := repo.db.groups[gid]
		if !ok {
			continue
		}
		gs := report.GroupStats{GroupID: gid, Name: grp.Name}
		var (
			sum   float64
			count int
		)
		for _, sub := range repo.db.submissions {
			if works[sub.PracticalWorkID] && sub.Grade.Valid && repo.db.userGroups[sub.StudentID][gid] {
				sum += float64(sub.Grade.Int)
				count++
			}
		}
		if count > 0 {
			gs.AvgGrade.SetValid(sum / float64(count))
		}
		stats = append(stats, gs)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats, nil
}
