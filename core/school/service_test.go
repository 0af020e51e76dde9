package school_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/school"
	"github.com/messengermaksym/diploma-project/core/submission"
	"github.com/messengermaksym/diploma-project/core/user"
	inmemdb "github.com/messengermaksym/diploma-project/storage/database/inmem"
	testutil "github.com/messengermaksym/diploma-project/tests"
)

func setup(t *testing.T) (*inmemdb.DB, school.Repository, school.ServiceInterface) {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := inmemdb.NewSchoolRepository(db)
	return db, repo, school.NewService(db, repo)
}

func courseIDs(courses []school.Course) []string {
	ids := make([]string, len(courses))
	for i, crs := range courses {
		ids[i] = crs.ID
	}
	return ids
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestService_VisibleCourses(t *testing.T) {
	db, repo, svc := setup(t)
	ctx := context.Background()
	usrRepo := inmemdb.NewUserRepository(db)

	teacher := testutil.CreateUser(t, usrRepo, "Prof", "prof", "prof@test.cd", "", user.RoleTeacher, true)
	std := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	admin := testutil.CreateUser(t, usrRepo, "Boss", "boss", "boss@test.cd", "", user.RoleAdmin, true)

	grpA := testutil.CreateGroup(t, repo, "CS-41")
	grpB := testutil.CreateGroup(t, repo, "CS-42")
	std = testutil.AddUserToGroups(t, usrRepo, std, grpA.ID, grpB.ID)

	taught := testutil.CreateCourse(t, repo, "Databases", []string{teacher.ID}, []string{grpA.ID})
	// enrolled by both of the student's groups; must come back once
	shared := testutil.CreateCourse(t, repo, "Algorithms", nil, []string{grpA.ID, grpB.ID})
	other := testutil.CreateCourse(t, repo, "Philosophy", nil, nil)

	t.Run("teacher sees taught courses only", func(t *testing.T) {
		courses, err := svc.VisibleCourses(ctx, teacher)
		if err != nil {
			t.Fatalf("VisibleCourses() error = %v", err)
		}
		if len(courses) != 1 || courses[0].ID != taught.ID {
			t.Errorf("VisibleCourses() = %v, want just %q", courseIDs(courses), taught.Title)
		}
	})

	t.Run("student sees enrolled courses deduplicated", func(t *testing.T) {
		courses, err := svc.VisibleCourses(ctx, std)
		if err != nil {
			t.Fatalf("VisibleCourses() error = %v", err)
		}
		ids := courseIDs(courses)
		if len(ids) != 2 || !containsID(ids, taught.ID) || !containsID(ids, shared.ID) {
			t.Errorf("VisibleCourses() = %v, want [%s %s]", ids, taught.ID, shared.ID)
		}
		if containsID(ids, other.ID) {
			t.Error("unenrolled course leaked into student visibility")
		}
	})

	t.Run("student without groups sees nothing", func(t *testing.T) {
		loner := testutil.CreateUser(t, usrRepo, "Solo", "solo", "solo@test.cd", "", user.RoleStudent, true)
		courses, err := svc.VisibleCourses(ctx, loner)
		if err != nil {
			t.Fatalf("VisibleCourses() error = %v", err)
		}
		if len(courses) != 0 {
			t.Errorf("VisibleCourses() = %v, want empty", courseIDs(courses))
		}
	})

	t.Run("roles without a strategy see nothing", func(t *testing.T) {
		courses, err := svc.VisibleCourses(ctx, admin)
		if err != nil {
			t.Fatalf("VisibleCourses() error = %v", err)
		}
		if courses == nil || len(courses) != 0 {
			t.Errorf("VisibleCourses() = %v, want empty non-nil slice", courses)
		}
	})

	t.Run("registration races safely with resolution", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			role := fmt.Sprintf("auditor%d", i)
			go func() {
				defer wg.Done()
				school.RegisterVisibility(role, func(ctx context.Context, repo school.Repository, usr user.User) ([]school.Course, error) {
					return nil, nil
				})
			}()
			go func() {
				defer wg.Done()
				if _, err := svc.VisibleCourses(ctx, teacher); err != nil {
					t.Errorf("VisibleCourses() error = %v", err)
				}
			}()
		}
		wg.Wait()
	})

	t.Run("registered strategy takes over", func(t *testing.T) {
		school.RegisterVisibility("inspector", func(ctx context.Context, repo school.Repository, usr user.User) ([]school.Course, error) {
			return repo.QueryCourses(ctx, nil)
		})

		inspector := user.User{ID: "insp1", Role: "inspector"}
		courses, err := svc.VisibleCourses(ctx, inspector)
		if err != nil {
			t.Fatalf("VisibleCourses() error = %v", err)
		}
		if len(courses) != 3 {
			t.Errorf("VisibleCourses() returned %d courses, want all 3", len(courses))
		}
	})
}

func TestService_groupNameUniqueness(t *testing.T) {
	_, _, svc := setup(t)
	ctx := context.Background()

	grp, err := svc.CreateGroup(ctx, school.NewGroup{Name: "CS-41"})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	t.Run("duplicate name is a field error", func(t *testing.T) {
		_, err := svc.CreateGroup(ctx, school.NewGroup{Name: "CS-41"})
		vErr, ok := errors.Cause(err).(*core.ValidationError)
		if !ok {
			t.Fatalf("CreateGroup() error = %v, want *core.ValidationError", err)
		}
		if len(vErr.Fields) != 1 || vErr.Fields[0].Field != "name" {
			t.Errorf("ValidationError fields = %+v, want one on %q", vErr.Fields, "name")
		}
	})

	t.Run("renaming a group to its own name passes", func(t *testing.T) {
		updated, err := svc.UpdateGroup(ctx, grp.ID, school.UpdateGroup{Name: "CS-41"})
		if err != nil {
			t.Fatalf("UpdateGroup() error = %v", err)
		}
		if updated.Name != "CS-41" {
			t.Errorf("UpdateGroup() name = %q, want CS-41", updated.Name)
		}
	})

	t.Run("renaming onto another group fails", func(t *testing.T) {
		other, err := svc.CreateGroup(ctx, school.NewGroup{Name: "CS-42"})
		if err != nil {
			t.Fatalf("CreateGroup() error = %v", err)
		}
		if _, err = svc.UpdateGroup(ctx, other.ID, school.UpdateGroup{Name: "CS-41"}); err == nil {
			t.Error("UpdateGroup() accepted a taken name")
		}
	})
}

func TestService_UpdateCourse_reconciliation(t *testing.T) {
	db, _, svc := setup(t)
	ctx := context.Background()

	crs, err := svc.CreateCourse(ctx, school.NewCourse{Title: "Databases"})
	if err != nil {
		t.Fatalf("CreateCourse() error = %v", err)
	}

	crs, err = svc.UpdateCourse(ctx, crs.ID, school.UpdateCourse{
		Modules: []school.UpdateModule{
			{Title: "Relational model"},
			{Title: "SQL"},
		},
		Practicals: []school.UpdatePracticalWk{
			{Title: "Lab 1"},
		},
	})
	if err != nil {
		t.Fatalf("UpdateCourse() error = %v", err)
	}
	if len(crs.Modules) != 2 {
		t.Fatalf("got %d modules, want 2", len(crs.Modules))
	}
	if len(crs.Practicals) != 1 {
		t.Fatalf("got %d practicals, want 1", len(crs.Practicals))
	}
	if crs.Practicals[0].MaxScore != school.DefaultMaxScore {
		t.Errorf("practical max score = %v, want default %v", crs.Practicals[0].MaxScore, school.DefaultMaxScore)
	}

	kept := crs.Modules[1] // "SQL"

	t.Run("missing entries are removed, new ones created", func(t *testing.T) {
		updated, err := svc.UpdateCourse(ctx, crs.ID, school.UpdateCourse{
			Modules: []school.UpdateModule{
				{ID: kept.ID, Title: "SQL, revised"},
				{Title: "Transactions"},
			},
		})
		if err != nil {
			t.Fatalf("UpdateCourse() error = %v", err)
		}
		if len(updated.Modules) != 2 {
			t.Fatalf("got %d modules, want 2", len(updated.Modules))
		}
		if updated.Modules[0].ID != kept.ID || updated.Modules[0].Title != "SQL, revised" {
			t.Errorf("kept module = %+v, want %s renamed", updated.Modules[0], kept.ID)
		}
		for _, mod := range updated.Modules {
			if mod.Title == "Relational model" {
				t.Error("module dropped from the payload survived the update")
			}
		}
	})

	t.Run("nil lists leave content untouched", func(t *testing.T) {
		updated, err := svc.UpdateCourse(ctx, crs.ID, school.UpdateCourse{Title: "Databases II"})
		if err != nil {
			t.Fatalf("UpdateCourse() error = %v", err)
		}
		if updated.Title != "Databases II" {
			t.Errorf("title = %q, want Databases II", updated.Title)
		}
		if len(updated.Modules) != 2 || len(updated.Practicals) != 1 {
			t.Errorf("content changed: %d modules, %d practicals", len(updated.Modules), len(updated.Practicals))
		}
	})

	t.Run("deleting a practical takes its submissions", func(t *testing.T) {
		subRepo := inmemdb.NewSubmissionRepository(db)
		sub := testutil.CreateSubmission(t, subRepo, crs.Practicals[0].ID, "std1")

		updated, err := svc.UpdateCourse(ctx, crs.ID, school.UpdateCourse{
			Practicals: []school.UpdatePracticalWk{},
		})
		if err != nil {
			t.Fatalf("UpdateCourse() error = %v", err)
		}
		if len(updated.Practicals) != 0 {
			t.Errorf("got %d practicals, want 0", len(updated.Practicals))
		}
		if _, err = subRepo.GetSubmission(ctx, sub.ID); errors.Cause(err) != submission.ErrNotFound {
			t.Errorf("GetSubmission() error = %v, want %v", err, submission.ErrNotFound)
		}
	})
}
