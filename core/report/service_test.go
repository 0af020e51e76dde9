package report_test

import (
	"context"
	"strings"
	"testing"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/report"
	"github.com/messengermaksym/diploma-project/core/school"
	"github.com/messengermaksym/diploma-project/core/user"
	chartsvc "github.com/messengermaksym/diploma-project/services/chart"
	inmemdb "github.com/messengermaksym/diploma-project/storage/database/inmem"
	testutil "github.com/messengermaksym/diploma-project/tests"
)

type fixture struct {
	db      *inmemdb.DB
	usrRepo user.Repository
	schRepo school.Repository
	svc     report.ServiceInterface
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	chart, err := chartsvc.NewRenderer(core.NewTestConfig())
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	return &fixture{
		db:      db,
		usrRepo: inmemdb.NewUserRepository(db),
		schRepo: inmemdb.NewSchoolRepository(db),
		svc:     report.NewService(db, inmemdb.NewReportRepository(db), chart),
	}
}

func TestService_Aggregate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	subRepo := inmemdb.NewSubmissionRepository(f.db)

	teacher := testutil.CreateUser(t, f.usrRepo, "Prof", "prof", "prof@test.cd", "", user.RoleTeacher, true)
	std1 := testutil.CreateUser(t, f.usrRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	std2 := testutil.CreateUser(t, f.usrRepo, "Zero", "zero", "zero@test.cd", "", user.RoleStudent, true)
	std3 := testutil.CreateUser(t, f.usrRepo, "Trey", "trey", "trey@test.cd", "", user.RoleStudent, true)

	grpA := testutil.CreateGroup(t, f.schRepo, "CS-41")
	grpB := testutil.CreateGroup(t, f.schRepo, "CS-42")
	testutil.AddUserToGroups(t, f.usrRepo, std1, grpA.ID)
	// std2 sits in both groups; the student count must not double them
	testutil.AddUserToGroups(t, f.usrRepo, std2, grpA.ID, grpB.ID)
	testutil.AddUserToGroups(t, f.usrRepo, std3, grpB.ID)

	crs := testutil.CreateCourse(t, f.schRepo, "Databases", []string{teacher.ID}, []string{grpA.ID, grpB.ID})
	lab1 := testutil.CreatePracticalWork(t, f.schRepo, crs.ID, "Lab 1")
	lab2 := testutil.CreatePracticalWork(t, f.schRepo, crs.ID, "Lab 2")

	t.Run("no grades aggregates to nulls, not zeros", func(t *testing.T) {
		stats, err := f.svc.Aggregate(ctx, crs.ID)
		if err != nil {
			t.Fatalf("Aggregate() error = %v", err)
		}
		if stats.AvgGrade.Valid {
			t.Errorf("avg grade = %+v, want null", stats.AvgGrade)
		}
		if stats.TotalStudents != 3 {
			t.Errorf("total students = %d, want 3", stats.TotalStudents)
		}
		if stats.StudentsPassedAll != 0 {
			t.Errorf("graded students = %d, want 0", stats.StudentsPassedAll)
		}
		if len(stats.Practicals) != 2 {
			t.Fatalf("got %d practical stats, want 2", len(stats.Practicals))
		}
		for _, ps := range stats.Practicals {
			if ps.AvgGrade.Valid || ps.GradedCount != 0 {
				t.Errorf("ungraded practical carries stats: %+v", ps)
			}
		}
		if series := stats.PracticalSeries(); len(series) != 0 {
			t.Errorf("null averages leaked into the chart series: %v", series)
		}
	})

	sub1 := testutil.CreateSubmission(t, subRepo, lab1.ID, std1.ID)
	sub2 := testutil.CreateSubmission(t, subRepo, lab1.ID, std2.ID)
	testutil.CreateSubmission(t, subRepo, lab2.ID, std3.ID) // never graded
	testutil.GradeSubmission(t, subRepo, sub1.ID, 4, teacher.ID)
	testutil.GradeSubmission(t, subRepo, sub2.ID, 10, teacher.ID)

	t.Run("grades roll up per course, practical and group", func(t *testing.T) {
		stats, err := f.svc.Aggregate(ctx, crs.ID)
		if err != nil {
			t.Fatalf("Aggregate() error = %v", err)
		}
		if !stats.AvgGrade.Valid || stats.AvgGrade.Float64 != 7 {
			t.Errorf("avg grade = %+v, want 7", stats.AvgGrade)
		}
		if stats.TotalStudents != 3 {
			t.Errorf("total students = %d, want 3", stats.TotalStudents)
		}
		// std3's submission was never graded
		if stats.StudentsPassedAll != 2 {
			t.Errorf("graded students = %d, want 2", stats.StudentsPassedAll)
		}

		// sorted by title
		if got := stats.Practicals[0]; !got.AvgGrade.Valid || got.AvgGrade.Float64 != 7 || got.GradedCount != 2 {
			t.Errorf("Lab 1 stats = %+v, want avg 7 over 2", got)
		}
		if got := stats.Practicals[1]; got.AvgGrade.Valid {
			t.Errorf("Lab 2 stats = %+v, want null average", got)
		}

		if len(stats.Groups) != 2 {
			t.Fatalf("got %d group stats, want 2", len(stats.Groups))
		}
		// sorted by name; std2's grade counts in both of their groups
		if got := stats.Groups[0]; got.Name != "CS-41" || !got.AvgGrade.Valid || got.AvgGrade.Float64 != 7 {
			t.Errorf("CS-41 stats = %+v, want avg 7", got)
		}
		if got := stats.Groups[1]; got.Name != "CS-42" || !got.AvgGrade.Valid || got.AvgGrade.Float64 != 10 {
			t.Errorf("CS-42 stats = %+v, want avg 10", got)
		}

		if series := stats.PracticalSeries(); len(series) != 1 || series[0].Label != "Lab 1" {
			t.Errorf("practical series = %v, want just Lab 1", series)
		}
		if series := stats.GroupSeries(); len(series) != 2 {
			t.Errorf("group series = %v, want both groups", series)
		}
	})

	t.Run("render attaches charts", func(t *testing.T) {
		crs, err := f.schRepo.GetCourse(ctx, crs.ID)
		if err != nil {
			t.Fatalf("GetCourse() error = %v", err)
		}
		rpt, err := f.svc.Render(ctx, crs)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if rpt.CourseTitle != "Databases" {
			t.Errorf("course title = %q", rpt.CourseTitle)
		}
		if !strings.HasPrefix(rpt.PracticalChart, "data:image/png;base64,") {
			t.Error("practical chart is not a png data URI")
		}
		if !strings.HasPrefix(rpt.GroupChart, "data:image/png;base64,") {
			t.Error("group chart is not a png data URI")
		}
	})

	t.Run("render skips charts for empty series", func(t *testing.T) {
		bare := testutil.CreateCourse(t, f.schRepo, "Empty", nil, nil)
		rpt, err := f.svc.Render(ctx, bare)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if rpt.PracticalChart != "" || rpt.GroupChart != "" {
			t.Error("empty course rendered charts")
		}
	})
}
