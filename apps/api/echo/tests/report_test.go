package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/messengermaksym/diploma-project/core/report"
	"github.com/messengermaksym/diploma-project/core/user"
	testutil "github.com/messengermaksym/diploma-project/tests"
)

func Test_reportApi_analytics(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Prof", "prof", "prof@test.cd", "", user.RoleTeacher, true)
	std1 := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	std2 := testutil.CreateUser(t, usrRepo, "Zero", "zero", "zero@test.cd", "", user.RoleStudent, true)

	grp := testutil.CreateGroup(t, schoolRepo, "CS-41")
	testutil.AddUserToGroups(t, usrRepo, std1, grp.ID)
	testutil.AddUserToGroups(t, usrRepo, std2, grp.ID)
	crs := testutil.CreateCourse(t, schoolRepo, "Databases", []string{teacher.ID}, []string{grp.ID})
	graded := testutil.CreatePracticalWork(t, schoolRepo, crs.ID, "Lab 1")
	ungraded := testutil.CreatePracticalWork(t, schoolRepo, crs.ID, "Lab 2")

	sub1 := testutil.CreateSubmission(t, subRepo, graded.ID, std1.ID)
	sub2 := testutil.CreateSubmission(t, subRepo, graded.ID, std2.ID)
	testutil.CreateSubmission(t, subRepo, ungraded.ID, std1.ID)
	testutil.GradeSubmission(t, subRepo, sub1.ID, 6, teacher.ID)
	testutil.GradeSubmission(t, subRepo, sub2.ID, 10, teacher.ID)

	path := "/v1/courses/" + crs.ID + "/analytics"

	t.Run("students are locked out", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, std1))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("course teacher gets the report", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, teacher))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}

		var rpt report.Report
		if err := json.Unmarshal(rec.Body.Bytes(), &rpt); err != nil {
			t.Fatalf("unmarshalling report: %v", err)
		}

		if !rpt.AvgGrade.Valid || rpt.AvgGrade.Float64 != 8 {
			t.Errorf("avg grade = %+v; want 8", rpt.AvgGrade)
		}
		if rpt.TotalStudents != 2 {
			t.Errorf("total students = %d; want 2", rpt.TotalStudents)
		}
		if rpt.StudentsPassedAll != 2 {
			t.Errorf("students passed = %d; want 2", rpt.StudentsPassedAll)
		}

		if len(rpt.Practicals) != 2 {
			t.Fatalf("practical stats = %d; want 2", len(rpt.Practicals))
		}
		// sorted by title: Lab 1 graded, Lab 2 untouched
		if !rpt.Practicals[0].AvgGrade.Valid || rpt.Practicals[0].AvgGrade.Float64 != 8 {
			t.Errorf("Lab 1 avg = %+v; want 8", rpt.Practicals[0].AvgGrade)
		}
		if rpt.Practicals[1].AvgGrade.Valid {
			t.Error("an ungraded practical's average must stay null, not zero")
		}

		if !strings.HasPrefix(rpt.PracticalChart, "data:image/png;base64,") {
			t.Error("practical chart must be a png data URI")
		}
		if !strings.HasPrefix(rpt.GroupChart, "data:image/png;base64,") {
			t.Error("group chart must be a png data URI")
		}
	})

	t.Run("empty course renders without charts", func(t *testing.T) {
		bare := testutil.CreateCourse(t, schoolRepo, "Empty", []string{teacher.ID}, nil)

		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+bare.ID+"/analytics", getToken(t, teacher))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}

		var rpt report.Report
		if err := json.Unmarshal(rec.Body.Bytes(), &rpt); err != nil {
			t.Fatalf("unmarshalling report: %v", err)
		}
		if rpt.AvgGrade.Valid {
			t.Error("course with no grades must have a null average")
		}
		if rpt.TotalStudents != 0 || rpt.StudentsPassedAll != 0 {
			t.Errorf("counts = %d/%d; want 0/0", rpt.TotalStudents, rpt.StudentsPassedAll)
		}
		if rpt.PracticalChart != "" || rpt.GroupChart != "" {
			t.Error("empty series must not render a chart")
		}
	})
}
