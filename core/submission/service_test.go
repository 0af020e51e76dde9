package submission_test

import (
	"context"
	"io/ioutil"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/school"
	"github.com/messengermaksym/diploma-project/core/submission"
	"github.com/messengermaksym/diploma-project/core/user"
	inmemdb "github.com/messengermaksym/diploma-project/storage/database/inmem"
	"github.com/messengermaksym/diploma-project/storage/files"
	testutil "github.com/messengermaksym/diploma-project/tests"
)

type fixture struct {
	db        *inmemdb.DB
	usrRepo   user.Repository
	schRepo   school.Repository
	subRepo   submission.Repository
	fileStore core.FileStorage
	svc       submission.ServiceInterface

	teacher, outsider, std1, std2 user.User
	course                        school.Course
	work                          school.PracticalWork
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	f := &fixture{
		db:      db,
		usrRepo: inmemdb.NewUserRepository(db),
		schRepo: inmemdb.NewSchoolRepository(db),
		subRepo: inmemdb.NewSubmissionRepository(db),
	}
	if f.fileStore, err = files.NewLocalStorage(t.TempDir()); err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	schoolSvc := school.NewService(db, f.schRepo)
	f.svc = submission.NewService(db, f.subRepo, schoolSvc, f.fileStore)

	f.teacher = testutil.CreateUser(t, f.usrRepo, "Prof", "prof", "prof@test.cd", "", user.RoleTeacher, true)
	f.outsider = testutil.CreateUser(t, f.usrRepo, "Other", "other", "other@test.cd", "", user.RoleTeacher, true)
	f.std1 = testutil.CreateUser(t, f.usrRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	f.std2 = testutil.CreateUser(t, f.usrRepo, "Zero", "zero", "zero@test.cd", "", user.RoleStudent, true)

	grp := testutil.CreateGroup(t, f.schRepo, "CS-41")
	f.std1 = testutil.AddUserToGroups(t, f.usrRepo, f.std1, grp.ID)
	f.std2 = testutil.AddUserToGroups(t, f.usrRepo, f.std2, grp.ID)
	f.course = testutil.CreateCourse(t, f.schRepo, "Databases", []string{f.teacher.ID}, []string{grp.ID})
	f.work = testutil.CreatePracticalWork(t, f.schRepo, f.course.ID, "Lab 1")
	return f
}

func TestService_GetOrCreate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("unknown practical work", func(t *testing.T) {
		_, err := f.svc.GetOrCreate(ctx, "nope", f.std1)
		if errors.Cause(err) != school.ErrWorkNotFound {
			t.Errorf("GetOrCreate() error = %v, want %v", err, school.ErrWorkNotFound)
		}
	})

	t.Run("idempotent per student", func(t *testing.T) {
		first, err := f.svc.GetOrCreate(ctx, f.work.ID, f.std1)
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
		if first.Grade.Valid || first.GradeDate.Valid || first.TeacherID.Valid {
			t.Errorf("fresh submission carries grading fields: %+v", first)
		}

		again, err := f.svc.GetOrCreate(ctx, f.work.ID, f.std1)
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
		if again.ID != first.ID {
			t.Errorf("GetOrCreate() returned a second row: %s != %s", again.ID, first.ID)
		}

		other, err := f.svc.GetOrCreate(ctx, f.work.ID, f.std2)
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
		if other.ID == first.ID {
			t.Error("two students share one submission")
		}
	})

	t.Run("concurrent first access collapses", func(t *testing.T) {
		work := testutil.CreatePracticalWork(t, f.schRepo, f.course.ID, "Lab 2")

		const n = 8
		ids := make([]string, n)
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func(i int) {
				defer wg.Done()
				sub, err := f.svc.GetOrCreate(ctx, work.ID, f.std1)
				if err != nil {
					t.Errorf("GetOrCreate() error = %v", err)
					return
				}
				ids[i] = sub.ID
			}(i)
		}
		wg.Wait()

		for i := 1; i < n; i++ {
			if ids[i] != ids[0] {
				t.Fatalf("GetOrCreate() raced into several rows: %v", ids)
			}
		}
	})
}

func TestService_AttachFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sub, err := f.svc.GetOrCreate(ctx, f.work.ID, f.std1)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	t.Run("only the owner attaches", func(t *testing.T) {
		_, err := f.svc.AttachFile(ctx, sub.ID, f.std2, "report.pdf", strings.NewReader("sneaky"))
		if !core.IsPermissionDenied(err) {
			t.Errorf("AttachFile() error = %v, want permission denied", err)
		}
	})

	t.Run("blob lands in storage", func(t *testing.T) {
		sub, err = f.svc.AttachFile(ctx, sub.ID, f.std1, "report.pdf", strings.NewReader("my answers"))
		if err != nil {
			t.Fatalf("AttachFile() error = %v", err)
		}
		if !sub.File.Valid {
			t.Fatal("submission file ref not set")
		}
		rc, err := f.fileStore.Open(ctx, sub.File.String)
		if err != nil {
			t.Fatalf("Open(%q) error = %v", sub.File.String, err)
		}
		defer rc.Close()
		if b, _ := ioutil.ReadAll(rc); string(b) != "my answers" {
			t.Errorf("stored blob = %q, want %q", b, "my answers")
		}
	})

	t.Run("re-upload keeps the grade", func(t *testing.T) {
		if _, err := f.svc.SetGrade(ctx, sub.ID, null.IntFrom(7), f.teacher); err != nil {
			t.Fatalf("SetGrade() error = %v", err)
		}

		sub, err = f.svc.AttachFile(ctx, sub.ID, f.std1, "report-v2.pdf", strings.NewReader("better answers"))
		if err != nil {
			t.Fatalf("AttachFile() error = %v", err)
		}
		if !sub.Grade.Valid || sub.Grade.Int != 7 {
			t.Errorf("grade after re-upload = %+v, want 7 kept", sub.Grade)
		}
	})
}

func TestService_SetGrade(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sub, err := f.svc.GetOrCreate(ctx, f.work.ID, f.std1)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	t.Run("outside teachers are refused", func(t *testing.T) {
		_, err := f.svc.SetGrade(ctx, sub.ID, null.IntFrom(10), f.outsider)
		if !core.IsPermissionDenied(err) {
			t.Errorf("SetGrade() error = %v, want permission denied", err)
		}
	})

	t.Run("the grading fields move together", func(t *testing.T) {
		graded, err := f.svc.SetGrade(ctx, sub.ID, null.IntFrom(8), f.teacher)
		if err != nil {
			t.Fatalf("SetGrade() error = %v", err)
		}
		if !graded.Grade.Valid || graded.Grade.Int != 8 {
			t.Errorf("grade = %+v, want 8", graded.Grade)
		}
		if !graded.GradeDate.Valid || graded.TeacherID.String != f.teacher.ID {
			t.Errorf("grade date/teacher not stamped: %+v", graded)
		}
	})

	t.Run("re-grading overwrites", func(t *testing.T) {
		graded, err := f.svc.SetGrade(ctx, sub.ID, null.IntFrom(9), f.teacher)
		if err != nil {
			t.Fatalf("SetGrade() error = %v", err)
		}
		if graded.Grade.Int != 9 {
			t.Errorf("grade = %d, want 9", graded.Grade.Int)
		}
	})

	t.Run("null score blanks all three", func(t *testing.T) {
		cleared, err := f.svc.SetGrade(ctx, sub.ID, null.Int{}, f.teacher)
		if err != nil {
			t.Fatalf("SetGrade() error = %v", err)
		}
		if cleared.Grade.Valid || cleared.GradeDate.Valid || cleared.TeacherID.Valid {
			t.Errorf("grading fields survived the clear: %+v", cleared)
		}
	})
}

func TestService_ForPracticalWork(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	grpB := testutil.CreateGroup(t, f.schRepo, "CS-42")
	std3 := testutil.CreateUser(t, f.usrRepo, "Trey", "trey", "trey@test.cd", "", user.RoleStudent, true)
	std3 = testutil.AddUserToGroups(t, f.usrRepo, std3, grpB.ID)

	sub1 := testutil.CreateSubmission(t, f.subRepo, f.work.ID, f.std1.ID)
	sub3 := testutil.CreateSubmission(t, f.subRepo, f.work.ID, std3.ID)

	t.Run("all groups", func(t *testing.T) {
		subs, err := f.svc.ForPracticalWork(ctx, f.work.ID)
		if err != nil {
			t.Fatalf("ForPracticalWork() error = %v", err)
		}
		if len(subs) != 2 {
			t.Errorf("got %d submissions, want 2", len(subs))
		}
	})

	t.Run("narrowed to one group", func(t *testing.T) {
		subs, err := f.svc.ForPracticalWork(ctx, f.work.ID, grpB.ID)
		if err != nil {
			t.Fatalf("ForPracticalWork() error = %v", err)
		}
		if len(subs) != 1 || subs[0].ID != sub3.ID {
			t.Errorf("got %v, want just %s", subs, sub3.ID)
		}
		for _, sub := range subs {
			if sub.ID == sub1.ID {
				t.Error("submission from another group leaked through the filter")
			}
		}
	})

	t.Run("no submissions is an empty slice", func(t *testing.T) {
		lab2 := testutil.CreatePracticalWork(t, f.schRepo, f.course.ID, "Lab 2")
		subs, err := f.svc.ForPracticalWork(ctx, lab2.ID)
		if err != nil {
			t.Fatalf("ForPracticalWork() error = %v", err)
		}
		if subs == nil || len(subs) != 0 {
			t.Errorf("got %v, want empty non-nil slice", subs)
		}
	})
}
