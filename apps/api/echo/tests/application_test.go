package tests

import (
	"bytes"
	"context"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keemdrivingschool/keem/apps/api/echo"
	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
	"github.com/keemdrivingschool/keem/core/application"
	"github.com/keemdrivingschool/keem/tests"
)

func submit(t *testing.T, app *echoapi.Server, na application.NewApplication) echoapi.SubmitResponse {
	req, rec := newRequest(http.MethodPost, "/v1/applications", marchallObj(t, na))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp echoapi.SubmitResponse
	unmarshal(t, rec, &resp)
	return resp
}

func transition(app *echoapi.Server, token string, id int, status, notes string) *httptest.ResponseRecorder {
	body := []byte(`{"status": "` + status + `", "notes": "` + notes + `"}`)
	req, rec := newAuthRequest(http.MethodPost, "/v1/admin/applications/"+itoa(id)+"/transition", token, body)
	app.ServeHTTP(rec, req)
	return rec
}

func Test_applicationApi_intakeToEnrollment(t *testing.T) {
	app, env := setup(t)

	clerk := createAdmin(t, env, "Luanshya Clerk", "clerk@keem.zm", admin.RoleStaff, core.BranchLuanshya)
	token := getToken(t, env, clerk)

	// intake: branch and course are normalized, nobody is notified
	resp := submit(t, app, testutil.NewApplicationData("Grace", "Grace@Example.com", "luanshya", "class-b"))
	assert.NotZero(t, resp.ID)
	assert.Equal(t, application.StatusPending, resp.Status)
	assert.Regexp(t, `^APP-\d{6}-[0-9A-F]{8}$`, resp.ApplicationNumber)
	assert.Empty(t, env.Mail.SentMessages())
	assert.Empty(t, env.WhatsApp.SentMessages())

	req, rec := newAuthRequest(http.MethodGet, "/v1/admin/applications/"+itoa(resp.ID), token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored application.Application
	unmarshal(t, rec, &stored)
	assert.Equal(t, core.BranchLuanshya, stored.Branch)
	assert.Equal(t, application.CourseClassB, stored.Course)
	assert.Equal(t, "grace@example.com", stored.Email)

	// acceptance
	rec = transition(app, token, resp.ID, "accepted", "Welcome aboard")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res echoapi.TransitionResponse
	unmarshal(t, rec, &res)
	assert.Equal(t, application.StatusPending, res.Previous)
	assert.Equal(t, application.StatusAccepted, res.Application.Status)
	require.NotNil(t, res.Application.ReviewedBy)
	assert.Equal(t, clerk.ID, *res.Application.ReviewedBy)
	assert.NotNil(t, res.Application.ReviewedAt)
	assert.Contains(t, res.Application.AdminNotes, "Luanshya Clerk: Welcome aboard")
	assert.True(t, res.StudentCreated)
	require.NotNil(t, res.Student)
	assert.Equal(t, resp.ID, res.Student.ApplicationID)
	assert.Equal(t, core.BranchLuanshya, res.Student.Branch)
	assert.Equal(t, application.CourseClassB, res.Student.Course)
	assert.Empty(t, res.Warnings)
	assert.Len(t, res.Notifications, 2)

	emails := env.Mail.SentMessages()
	require.Len(t, emails, 1)
	assert.Equal(t, "grace@example.com", emails[0].To[0].Address)
	assert.Contains(t, emails[0].TextContent, res.Student.StudentNumber)
	require.Len(t, emails[0].Attachments, 1)
	assert.Equal(t, "application/pdf", emails[0].Attachments[0].ContentType)

	wa := env.WhatsApp.SentMessages()
	require.Len(t, wa, 1)
	assert.Equal(t, "+260977123456", wa[0].To)
	assert.Contains(t, wa[0].Body, res.Student.StudentNumber)

	// accepting again re-sends the notifications but enrolls nobody new
	env.ResetOutboxes()
	rec = transition(app, token, resp.ID, "accepted", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var again echoapi.TransitionResponse
	unmarshal(t, rec, &again)
	assert.False(t, again.StudentCreated)
	require.NotNil(t, again.Student)
	assert.Equal(t, res.Student.ID, again.Student.ID)
	assert.Len(t, env.Mail.SentMessages(), 1)
	assert.Len(t, env.WhatsApp.SentMessages(), 1)

	req, rec = newAuthRequest(http.MethodGet, "/v1/admin/students", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), `"student_number"`))

	// an accepted application is final
	rec = transition(app, token, resp.ID, "pending", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// applicant lookup
	q := url.Values{"reference": {strings.ToLower(resp.ApplicationNumber)}, "email": {"GRACE@example.com"}}
	req, rec = newRequest(http.MethodGet, "/v1/applications/status?"+q.Encode())
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view application.StatusView
	unmarshal(t, rec, &view)
	assert.Equal(t, application.StatusAccepted, view.Status)
	assert.Equal(t, "Accepted", view.StatusLabel)

	q.Set("email", "someone@example.com")
	req, rec = newRequest(http.MethodGet, "/v1/applications/status?"+q.Encode())
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)

	// metrics
	req, rec = newRequest(http.MethodGet, "/metrics")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `keem_applications_transitions_total{from="pending",to="accepted"} 1`)
	assert.Contains(t, rec.Body.String(), `keem_notifications_dispatched_total{channel="whatsapp",delivered="true"} 2`)
}

func Test_applicationApi_submitValidation(t *testing.T) {
	app, env := setup(t)

	t.Run("missing fields", func(t *testing.T) {
		na := testutil.NewApplicationData("", "not-an-email", "Kitwe", "CLASS-Z")
		na.Phone = "12"
		req, rec := newRequest(http.MethodPost, "/v1/applications", marchallObj(t, na))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var fields map[string]string
		unmarshal(t, rec, &fields)
		assert.Equal(t, "this field is required", fields["first_name"])
		assert.Equal(t, "enter a valid phone number", fields["phone"])
		assert.Equal(t, "must be one of Luanshya or Mufulira", fields["branch"])
		assert.Contains(t, fields, "email")
		assert.Contains(t, fields, "course")
		assert.NotContains(t, fields, "last_name")
	})

	t.Run("birth date in the future", func(t *testing.T) {
		na := testutil.NewApplicationData("Grace", "grace@example.com", "Mufulira", "CLASS-A")
		na.DateOfBirth = "2999-01-01"
		req, rec := newRequest(http.MethodPost, "/v1/applications", marchallObj(t, na))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"date_of_birth": "date must be in the past"}),
		}, rec)
	})

	boss := createAdmin(t, env, "Boss", "boss@keem.zm", admin.RoleSuperAdmin, core.BranchBoth)
	req, rec := newAuthRequest(http.MethodGet, "/v1/admin/applications/stats", getToken(t, env, boss))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, application.Stats{})}, rec)
}

func Test_applicationApi_transitionErrors(t *testing.T) {
	app, env := setup(t)

	boss := createAdmin(t, env, "Boss", "boss@keem.zm", admin.RoleSuperAdmin, core.BranchBoth)
	token := getToken(t, env, boss)
	resp := submit(t, app, testutil.NewApplicationData("Grace", "grace@example.com", "Luanshya", "CLASS-B"))
	path := "/v1/admin/applications/" + itoa(resp.ID) + "/transition"

	tests := []httpTest{
		{name: "auth required", path: path, body: []byte(`{"status": "accepted"}`), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "invalid status", path: path, token: token, body: []byte(`{"status": "approved"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"status": "must be one of pending, reviewing, accepted, rejected or cancelled"}),
		},
		{name: "unknown application", path: "/v1/admin/applications/999/transition", token: token, body: []byte(`{"status": "accepted"}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "bad id", path: "/v1/admin/applications/lol/transition", token: token, body: []byte(`{"status": "accepted"}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// nothing changed
	stored, err := env.ApplicationRepo.GetApplication(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, application.StatusPending, stored.Status)
	assert.Nil(t, stored.ReviewedBy)

	t.Run("notification failures are warnings", func(t *testing.T) {
		env.Mail.SetFailing(true)
		env.WhatsApp.SetFailing(true)
		defer env.ResetOutboxes()

		rec := transition(app, token, resp.ID, "reviewing", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res echoapi.TransitionResponse
		unmarshal(t, rec, &res)
		assert.Equal(t, application.StatusReviewing, res.Application.Status)
		assert.ElementsMatch(t, []string{
			"email notification to grace@example.com failed",
			"whatsapp notification to 0977123456 failed",
		}, res.Warnings)
	})
}

func Test_applicationApi_branchScope(t *testing.T) {
	app, env := setup(t)

	luanshya := createAdmin(t, env, "Luanshya Staff", "l@keem.zm", admin.RoleStaff, core.BranchLuanshya)
	mufulira := createAdmin(t, env, "Mufulira Staff", "m@keem.zm", admin.RoleStaff, core.BranchMufulira)
	boss := createAdmin(t, env, "Boss", "boss@keem.zm", admin.RoleSuperAdmin, core.BranchLuanshya)
	lToken, mToken := getToken(t, env, luanshya), getToken(t, env, mufulira)

	l1 := submit(t, app, testutil.NewApplicationData("Grace", "grace@example.com", "Luanshya", "CLASS-B"))
	m1 := submit(t, app, testutil.NewApplicationData("Mary", "mary@example.com", "Mufulira", "CLASS-A"))
	m2 := submit(t, app, testutil.NewApplicationData("Ruth", "ruth@example.com", "Mufulira", "DEFENSIVE"))

	ids := func(rec *httptest.ResponseRecorder) []int {
		var apps []application.Application
		unmarshal(t, rec, &apps)
		out := make([]int, 0, len(apps))
		for _, a := range apps {
			out = append(out, a.ID)
		}
		return out
	}
	list := func(token, query string) []int {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/applications"+query, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return ids(rec)
	}

	assert.ElementsMatch(t, []int{l1.ID}, list(lToken, ""))
	assert.ElementsMatch(t, []int{m1.ID, m2.ID}, list(mToken, ""))
	assert.Empty(t, list(mToken, "?branch=Luanshya"))
	assert.ElementsMatch(t, []int{l1.ID, m1.ID, m2.ID}, list(getToken(t, env, boss), ""))
	assert.Equal(t, []int{m2.ID, m1.ID}, list(mToken, "?ordering=-first_name"))
	assert.Equal(t, []int{m2.ID}, list(mToken, "?course=defensive"))

	// outside the branch is not found
	req, rec := newAuthRequest(http.MethodGet, "/v1/admin/applications/"+itoa(l1.ID), mToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)

	rec = transition(app, mToken, l1.ID, "rejected", "")
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/admin/applications/stats", mToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, application.Stats{Total: 2, Pending: 2})}, rec)
}

func Test_applicationApi_notes(t *testing.T) {
	app, env := setup(t)

	boss := createAdmin(t, env, "Boss", "boss@keem.zm", admin.RoleSuperAdmin, core.BranchBoth)
	token := getToken(t, env, boss)
	resp := submit(t, app, testutil.NewApplicationData("Grace", "grace@example.com", "Luanshya", "CLASS-B"))
	path := "/v1/admin/applications/" + itoa(resp.ID) + "/notes"

	for _, notes := range []string{"Called the applicant", "Documents received"} {
		req, rec := newAuthRequest(http.MethodPost, path, token, marchallObj(t, echoapi.NotesRequest{Notes: notes}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	req, rec := newAuthRequest(http.MethodPost, path, token, marchallObj(t, echoapi.NotesRequest{Notes: "  "}))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"notes": "this field is required"})}, rec)

	stored, err := env.ApplicationRepo.GetApplication(context.Background(), resp.ID)
	require.NoError(t, err)
	lines := strings.Split(stored.AdminNotes, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "Boss: Called the applicant"))
	assert.True(t, strings.HasSuffix(lines[1], "Boss: Documents received"))
	assert.Equal(t, application.StatusPending, stored.Status)
	assert.Empty(t, env.Mail.SentMessages())
}

func Test_applicationApi_photo(t *testing.T) {
	app, env := setup(t)

	boss := createAdmin(t, env, "Boss", "boss@keem.zm", admin.RoleSuperAdmin, core.BranchBoth)
	token := getToken(t, env, boss)

	img := image.NewRGBA(image.Rect(0, 0, 1200, 600))
	for x := 0; x < 1200; x++ {
		img.Set(x, x%600, color.RGBA{R: 200, A: 255})
	}
	var pngData bytes.Buffer
	require.NoError(t, png.Encode(&pngData, img))

	na := testutil.NewApplicationData("Grace", "grace@example.com", "Luanshya", "CLASS-B")
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"first_name": na.FirstName, "last_name": na.LastName, "email": na.Email, "phone": na.Phone,
		"date_of_birth": na.DateOfBirth, "gender": na.Gender, "address": na.Address, "city": na.City,
		"province": na.Province, "branch": na.Branch, "course": na.Course,
		"emergency_name": na.EmergencyName, "emergency_phone": na.EmergencyPhone,
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("profile_photo", "me.png")
	require.NoError(t, err)
	_, err = fw.Write(pngData.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/applications", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp echoapi.SubmitResponse
	unmarshal(t, rec, &resp)

	req, rec = newAuthRequest(http.MethodGet, "/v1/admin/applications/"+itoa(resp.ID)+"/photo", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	stored, _, err := image.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, env.Conf.Upload.MaxDimension, stored.Bounds().Dx())

	// no photo
	plain := submit(t, app, testutil.NewApplicationData("Mary", "mary@example.com", "Luanshya", "CLASS-B"))
	req, rec = newAuthRequest(http.MethodGet, "/v1/admin/applications/"+itoa(plain.ID)+"/photo", token)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_applicationApi_exports(t *testing.T) {
	app, env := setup(t)

	boss := createAdmin(t, env, "Boss", "boss@keem.zm", admin.RoleSuperAdmin, core.BranchBoth)
	token := getToken(t, env, boss)
	resp := submit(t, app, testutil.NewApplicationData("Grace", "grace@example.com", "Luanshya", "CLASS-B"))
	submit(t, app, testutil.NewApplicationData("Mary", "mary@example.com", "Mufulira", "CLASS-A"))

	tests := []struct {
		name        string
		path        string
		contentType string
		magic       string
		filename    string
	}{
		{name: "list pdf", path: "/v1/admin/applications/export/pdf?branch=Luanshya", contentType: "application/pdf", magic: "%PDF", filename: "applications-"},
		{name: "list excel", path: "/v1/admin/applications/export/excel?status=pending", contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", magic: "PK", filename: "applications-"},
		{name: "single pdf", path: "/v1/admin/applications/" + itoa(resp.ID) + "/pdf", contentType: "application/pdf", magic: "%PDF", filename: "application-" + resp.ApplicationNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, token)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Header().Get("Content-Disposition"), `attachment; filename="`+tt.filename)
			assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte(tt.magic)))
		})
	}

	t.Run("bad filter", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/applications/export/pdf?status=lol", token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
