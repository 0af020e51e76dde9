package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/submission"
)

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) GetOrCreateSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	// pair uniqueness; the map mutex plays the unique constraint's part here
	for _, existing := range repo.db.submissions {
		if existing.PracticalWorkID == sub.PracticalWorkID && existing.StudentID == sub.StudentID {
			return *existing, nil
		}
	}
	sub.ID = uuid.New().String()
	stored := sub
	repo.db.submissions[sub.ID] = &stored
	return sub, nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return *sub, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, practicalWorkID, groupID string, exec ...core.DBExecutor) ([]submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var subs []submission.Submission
	for _, sub := range repo.db.submissions {
		if sub.PracticalWorkID != practicalWorkID {
			continue
		}
		if groupID != "" && !repo.db.userGroups[sub.StudentID][groupID] {
			continue
		}
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *submissionRepository) QuerySubmissionsByCourse(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var subs []submission.Submission
	for _, sub := range repo.db.submissions {
		work, ok := repo.db.works[sub.PracticalWorkID]
		if !ok || work.CourseID.String != courseID {
			continue
		}
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *submissionRepository) UpdateSubmissionFile(ctx context.Context, id string, file null.String, exec ...core.DBExecutor) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sub, ok := repo.db.submissions[id]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	sub.File = file
	return *sub, nil
}

func (repo *submissionRepository) SetSubmissionGrade(ctx context.Context, id string, grade null.Int, gradeDate null.Time, teacherID null.String, exec ...core.DBExecutor) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sub, ok := repo.db.submissions[id]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	sub.Grade = grade
	sub.GradeDate = gradeDate
	sub.TeacherID = teacherID
	return *sub, nil
}

// Grade records

func (repo *submissionRepository) CreateGrade(ctx context.Context, grd submission.Grade, exec ...core.DBExecutor) (submission.Grade, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	grd.ID = uuid.New().String()
	stored := grd
	repo.db.grades[grd.ID] = &stored
	return grd, nil
}

func (repo *submissionRepository) QueryGrades(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) ([]submission.Grade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var grades []submission.Grade
	for _, grd := range repo.db.grades {
		if studentID != "" && grd.StudentID != studentID {
			continue
		}
		if courseID != "" && grd.CourseID != courseID {
			continue
		}
		grades = append(grades, *grd)
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].CreatedAt.After(grades[j].CreatedAt) })
	return grades, nil
}

func (repo *submissionRepository) DeleteGradesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.grades[id]; ok {
			delete(repo.db.grades, id)
			n++
		}
	}
	return n, nil
}
