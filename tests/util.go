package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/messengermaksym/diploma-project/core/school"
	"github.com/messengermaksym/diploma-project/core/submission"
	"github.com/messengermaksym/diploma-project/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	firstName, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FirstName: firstName,
		Username:  uname,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func AddUserToGroups(t *testing.T, repo user.Repository, usr user.User, groupIDs ...string) user.User {
	t.Helper()

	ctx := context.Background()
	if err := repo.SetUserGroups(ctx, usr.ID, groupIDs); err != nil {
		t.Fatalf("AddUserToGroups() failed: %v", err)
	}
	usr, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	if err != nil {
		t.Fatalf("AddUserToGroups() failed: %v", err)
	}
	return usr
}

func CreateGroup(t *testing.T, repo school.Repository, name string) school.Group {
	t.Helper()

	grp, err := repo.CreateGroup(context.Background(), school.Group{Name: name})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	return grp
}

func CreateCourse(t *testing.T, repo school.Repository, title string, teacherIDs, groupIDs []string) school.Course {
	t.Helper()

	ctx := context.Background()
	crs, err := repo.CreateCourse(ctx, school.Course{Title: title})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	if teacherIDs != nil {
		if err = repo.SetCourseTeachers(ctx, crs.ID, teacherIDs); err != nil {
			t.Fatalf("CreateCourse() failed: %v", err)
		}
	}
	if groupIDs != nil {
		if err = repo.SetCourseGroups(ctx, crs.ID, groupIDs); err != nil {
			t.Fatalf("CreateCourse() failed: %v", err)
		}
	}
	crs, err = repo.GetCourse(ctx, crs.ID)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreatePracticalWork(t *testing.T, repo school.Repository, courseID, title string) school.PracticalWork {
	t.Helper()

	work, err := repo.UpsertPracticalWork(context.Background(), school.PracticalWork{
		CourseID: null.StringFrom(courseID),
		Title:    title,
		MaxScore: school.DefaultMaxScore,
	})
	if err != nil {
		t.Fatalf("CreatePracticalWork() failed: %v", err)
	}
	return work
}

func CreateSubmission(t *testing.T, repo submission.Repository, workID, studentID string) submission.Submission {
	t.Helper()

	sub, err := repo.GetOrCreateSubmission(context.Background(), submission.Submission{
		PracticalWorkID: workID,
		StudentID:       studentID,
		SubmittedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return sub
}

func GradeSubmission(t *testing.T, repo submission.Repository, subID string, score int, teacherID string) submission.Submission {
	t.Helper()

	sub, err := repo.SetSubmissionGrade(
		context.Background(),
		subID,
		null.IntFrom(score),
		null.TimeFrom(time.Now().UTC()),
		null.StringFrom(teacherID),
	)
	if err != nil {
		t.Fatalf("GradeSubmission() failed: %v", err)
	}
	return sub
}
