package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/messengermaksym/diploma-project/core/school"
	"github.com/messengermaksym/diploma-project/core/user"
	testutil "github.com/messengermaksym/diploma-project/tests"
)

func Test_schoolApi_courseVisibility(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Prof", "prof", "prof@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.RoleAdmin, true)

	grpA := testutil.CreateGroup(t, schoolRepo, "CS-41")
	grpB := testutil.CreateGroup(t, schoolRepo, "CS-42")
	student = testutil.AddUserToGroups(t, usrRepo, student, grpA.ID, grpB.ID)

	// both groups are enrolled: the student must still see the course once
	shared := testutil.CreateCourse(t, schoolRepo, "Databases", []string{teacher.ID}, []string{grpA.ID, grpB.ID})
	taughtOnly := testutil.CreateCourse(t, schoolRepo, "Compilers", []string{teacher.ID}, nil)

	fetch := func(t *testing.T, usr user.User) []school.Course {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses", getToken(t, usr))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /v1/courses failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var courses []school.Course
		if err := json.Unmarshal(rec.Body.Bytes(), &courses); err != nil {
			t.Fatalf("unmarshalling courses: %v", err)
		}
		return courses
	}

	t.Run("teacher sees taught courses", func(t *testing.T) {
		courses := fetch(t, teacher)
		if len(courses) != 2 {
			t.Fatalf("courses = %d; want 2", len(courses))
		}
	})

	t.Run("student sees group courses once", func(t *testing.T) {
		courses := fetch(t, student)
		if len(courses) != 1 {
			t.Fatalf("courses = %d; want 1", len(courses))
		}
		if courses[0].ID != shared.ID {
			t.Errorf("course = %s; want %s", courses[0].ID, shared.ID)
		}
	})

	t.Run("admin attends no courses", func(t *testing.T) {
		courses := fetch(t, admin)
		if len(courses) != 0 {
			t.Fatalf("courses = %d; want 0", len(courses))
		}
	})

	t.Run("unenrolled course detail is hidden from students", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+taughtOnly.ID, getToken(t, student))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusNotFound)
		}
	})
}

func Test_schoolApi_groupCRUD(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.RoleAdmin, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	adminToken := getToken(t, admin)

	t.Run("create requires admin", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"name": "CS-41"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups", getToken(t, student), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	var grp school.Group
	t.Run("create", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"name": "CS-41"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &grp); err != nil {
			t.Fatalf("unmarshalling group: %v", err)
		}
	})

	t.Run("duplicate name is rejected", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"name": "CS-41"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("rename", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"name": "CS-42"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/groups/"+grp.ID, adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("destroy", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/groups/"+grp.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/groups/"+grp.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusNotFound)
		}
	})
}
