package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/messengermaksym/diploma-project/core/submission"
	"github.com/messengermaksym/diploma-project/core/user"
	testutil "github.com/messengermaksym/diploma-project/tests"
)

type groupedSubmissions struct {
	GroupID     string `json:"group_id"`
	Name        string `json:"name"`
	Submissions []struct {
		Student    user.User              `json:"student"`
		Submission *submission.Submission `json:"submission"`
	} `json:"submissions"`
}

func Test_submissionApi_workflow(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Prof", "prof", "prof@test.cd", "", user.RoleTeacher, true)
	outsider := testutil.CreateUser(t, usrRepo, "Lurker", "lurker", "lurker@test.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)

	grp := testutil.CreateGroup(t, schoolRepo, "CS-41")
	student = testutil.AddUserToGroups(t, usrRepo, student, grp.ID)
	crs := testutil.CreateCourse(t, schoolRepo, "Databases", []string{teacher.ID}, []string{grp.ID})
	work := testutil.CreatePracticalWork(t, schoolRepo, crs.ID, "Lab 1")

	studentToken := getToken(t, student)
	teacherToken := getToken(t, teacher)
	subPath := "/v1/practicals/" + work.ID + "/submission"
	gradePath := fmt.Sprintf("/v1/courses/%s/practicals/%s/submissions", crs.ID, work.ID)

	fetchSub := func(t *testing.T, token string) submission.Submission {
		req, rec := newAuthRequest(http.MethodGet, subPath, token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET submission failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var sub submission.Submission
		if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
			t.Fatalf("unmarshalling submission: %v", err)
		}
		return sub
	}

	t.Run("teachers have no submission of their own", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, subPath, teacherToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	var sub submission.Submission
	t.Run("get-or-create is idempotent", func(t *testing.T) {
		sub = fetchSub(t, studentToken)
		again := fetchSub(t, studentToken)
		if sub.ID != again.ID {
			t.Errorf("repeated GET created a new submission: %s != %s", sub.ID, again.ID)
		}
		if sub.IsGraded() {
			t.Error("fresh submission must be ungraded")
		}
	})

	t.Run("file attach", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", "report.pdf")
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		fmt.Fprint(fw, "le rapport")
		mw.Close()

		req := httptest.NewRequest(http.MethodPut, subPath, &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+studentToken)
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var updated submission.Submission
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("unmarshalling submission: %v", err)
		}
		if !updated.File.Valid {
			t.Error("file ref was not set")
		}
	})

	t.Run("grading list is grouped", func(t *testing.T) {
		grpB := testutil.CreateGroup(t, schoolRepo, "CS-42")
		other := testutil.CreateUser(t, usrRepo, "Zero", "zero", "zero@test.cd", "", user.RoleStudent, true)
		testutil.AddUserToGroups(t, usrRepo, other, grpB.ID)
		if err := schoolRepo.SetCourseGroups(context.Background(), crs.ID, []string{grp.ID, grpB.ID}); err != nil {
			t.Fatalf("enrolling second group: %v", err)
		}

		fetchGrouped := func(t *testing.T, path string) []groupedSubmissions {
			req, rec := newAuthRequest(http.MethodGet, path, teacherToken)
			app.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
			}
			var grouped []groupedSubmissions
			if err := json.Unmarshal(rec.Body.Bytes(), &grouped); err != nil {
				t.Fatalf("unmarshalling grouped submissions: %v", err)
			}
			return grouped
		}

		grouped := fetchGrouped(t, gradePath)
		if len(grouped) != 2 {
			t.Fatalf("got %d groups, want both enrolled groups: %+v", len(grouped), grouped)
		}
		byID := make(map[string]groupedSubmissions, len(grouped))
		for _, gs := range grouped {
			byID[gs.GroupID] = gs
		}
		if gs, ok := byID[grp.ID]; !ok || gs.Name != "CS-41" {
			t.Errorf("group %s = %+v, want name CS-41", grp.ID, gs)
		}
		if gs, ok := byID[grpB.ID]; !ok || gs.Name != "CS-42" {
			t.Errorf("group %s = %+v, want name CS-42", grpB.ID, gs)
		}

		gs := byID[grp.ID]
		if len(gs.Submissions) != 1 || gs.Submissions[0].Student.ID != student.ID {
			t.Fatalf("unexpected students: %+v", gs.Submissions)
		}
		if gs.Submissions[0].Submission == nil {
			t.Error("student's submission missing from grading list")
		}
		// the second group's student never opened the work
		if subs := byID[grpB.ID].Submissions; len(subs) != 1 || subs[0].Submission != nil {
			t.Errorf("unexpected second group listing: %+v", subs)
		}

		narrowed := fetchGrouped(t, gradePath+"?group_id="+grpB.ID)
		if len(narrowed) != 1 || narrowed[0].GroupID != grpB.ID {
			t.Errorf("group_id filter returned %+v, want just %s", narrowed, grpB.ID)
		}
	})

	t.Run("students cannot grade", func(t *testing.T) {
		body := marchallList(t, map[string]interface{}{"submission_id": sub.ID, "score": 10})
		req, rec := newAuthRequest(http.MethodPut, gradePath, studentToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("outside teachers cannot grade", func(t *testing.T) {
		body := marchallList(t, map[string]interface{}{"submission_id": sub.ID, "score": 10})
		req, rec := newAuthRequest(http.MethodPut, gradePath, getToken(t, outsider), body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("course teacher grades", func(t *testing.T) {
		body := marchallList(t, map[string]interface{}{"submission_id": sub.ID, "score": 8})
		req, rec := newAuthRequest(http.MethodPut, gradePath, teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}

		graded := fetchSub(t, studentToken)
		if !graded.IsGraded() {
			t.Fatal("submission was not graded")
		}
		if graded.Grade.Int != 8 {
			t.Errorf("grade = %d; want 8", graded.Grade.Int)
		}
		if !graded.GradeDate.Valid || !graded.TeacherID.Valid || graded.TeacherID.String != teacher.ID {
			t.Error("grade date and teacher must be stamped with the grade")
		}
	})

	t.Run("null score clears the whole grade", func(t *testing.T) {
		body := marchallList(t, map[string]interface{}{"submission_id": sub.ID, "score": nil})
		req, rec := newAuthRequest(http.MethodPut, gradePath, teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}

		cleared := fetchSub(t, studentToken)
		if cleared.IsGraded() || cleared.GradeDate.Valid || cleared.TeacherID.Valid {
			t.Error("clearing must blank grade, grade date and teacher together")
		}
	})
}
