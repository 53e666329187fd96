package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	app "github.com/gappsops/message-recall/internal/application/recall"
	domain "github.com/gappsops/message-recall/internal/domain/recall"
	"github.com/gappsops/message-recall/internal/interfaces/http/web"
)

const authHeader = "X-Authenticated-Email"

type allowAllAuthorizer struct{}

func (allowAllAuthorizer) Authorize(ctx context.Context, userEmail string) error { return nil }

type denyAllAuthorizer struct{}

func (denyAllAuthorizer) Authorize(ctx context.Context, userEmail string) error {
	return app.ErrNotAuthorized
}

type fakeUseCases struct {
	createOut  app.CreateTaskOutput
	createErr  error
	detailOut  app.GetTaskDetailOutput
	detailErr  error
	taskPage   domain.TaskPage
	userPage   domain.UserPage
	userErr    error
	errorPage  domain.ErrorPage
	reportOut  app.TaskReportOutput
	debugOut   app.TaskDebugOutput
	abortedIDs []string

	gotUserStates    []string
	gotMessageStates []string
	gotUserCursor    string
}

func (f *fakeUseCases) Execute(ctx context.Context, in app.CreateTaskInput) (app.CreateTaskOutput, error) {
	return f.createOut, f.createErr
}

type fakeGetTaskDetail struct{ f *fakeUseCases }

func (g fakeGetTaskDetail) Execute(ctx context.Context, appsDomain, taskID string) (app.GetTaskDetailOutput, error) {
	return g.f.detailOut, g.f.detailErr
}

type fakeListTasks struct{ f *fakeUseCases }

func (l fakeListTasks) Execute(ctx context.Context, appsDomain, cursor string) (domain.TaskPage, error) {
	return l.f.taskPage, nil
}

type fakeListTaskUsers struct{ f *fakeUseCases }

func (l fakeListTaskUsers) Execute(ctx context.Context, in app.ListTaskUsersInput) (domain.UserPage, error) {
	l.f.gotUserStates = in.UserStates
	l.f.gotMessageStates = in.MessageStates
	l.f.gotUserCursor = in.Cursor
	return l.f.userPage, l.f.userErr
}

type fakeListTaskErrors struct{ f *fakeUseCases }

func (l fakeListTaskErrors) Execute(ctx context.Context, appsDomain, taskID, cursor string) (domain.ErrorPage, error) {
	return l.f.errorPage, nil
}

type fakeTaskReport struct{ f *fakeUseCases }

func (r fakeTaskReport) Execute(ctx context.Context, appsDomain, taskID string) (app.TaskReportOutput, error) {
	return r.f.reportOut, nil
}

type fakeTaskDebug struct{ f *fakeUseCases }

func (d fakeTaskDebug) Execute(ctx context.Context, appsDomain, taskID string) (app.TaskDebugOutput, error) {
	return d.f.debugOut, nil
}

type fakeAbortTask struct{ f *fakeUseCases }

func (a fakeAbortTask) Execute(ctx context.Context, in app.AbortTaskInput) error {
	a.f.abortedIDs = append(a.f.abortedIDs, in.TaskID)
	return nil
}

func newTestServer(t *testing.T, f *fakeUseCases, auth app.Authorizer) *echo.Echo {
	t.Helper()

	server := echo.New()
	renderer, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	server.Renderer = renderer
	server.HTTPErrorHandler = web.NewHTTPErrorHandler()

	handler := web.NewPageHandler(
		"example.com",
		f,
		fakeGetTaskDetail{f},
		fakeListTasks{f},
		fakeListTaskUsers{f},
		fakeListTaskErrors{f},
		fakeTaskReport{f},
		fakeTaskDebug{f},
		fakeAbortTask{f},
	)
	web.RegisterRoutes(server, handler, web.RequireAdmin(authHeader, auth))
	return server
}

func get(server *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(authHeader, "admin@example.com")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestTaskUsersPageEmpty(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeUseCases{}, allowAllAuthorizer{})

	rec := get(server, "/task/task-1/users")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No users found.") {
		t.Fatal("expected the empty-page message")
	}
	if strings.Contains(rec.Body.String(), ">Next<") {
		t.Fatal("an empty page must not offer a next link")
	}
}

func TestTaskUsersPageElapsedOnlyWithBothTimestamps(t *testing.T) {
	t.Parallel()

	started := time.Date(2015, 4, 1, 12, 0, 0, 0, time.UTC)
	ended := started.Add(2*time.Minute + 5*time.Second)

	f := &fakeUseCases{userPage: domain.UserPage{Users: []domain.TaskUser{
		{
			UserEmail:    "alice@example.com",
			UserState:    domain.UserDone,
			MessageState: domain.MessageVerifiedPurged,
			StartedAt:    &started,
			EndedAt:      &ended,
		},
		{
			UserEmail:    "bob@example.com",
			UserState:    domain.UserRecalling,
			MessageState: domain.MessageUnknown,
			StartedAt:    &started,
		},
	}}}
	server := newTestServer(t, f, allowAllAuthorizer{})

	rec := get(server, "/task/task-1/users")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "2m 5s") {
		t.Fatal("expected elapsed for the finished user")
	}
	if !strings.Contains(body, "2015-04-01 12:00:00") {
		t.Fatal("expected the start timestamp")
	}

	_, bobRow, found := strings.Cut(body, "bob@example.com")
	if !found {
		t.Fatal("expected the unfinished user's row")
	}
	bobRow = bobRow[:strings.Index(bobRow, "</tr>")]
	if strings.Contains(bobRow, "2m 5s") {
		t.Fatal("an unfinished user must not show an elapsed value")
	}
}

func TestTaskUsersPageNextLinkPreservesFilters(t *testing.T) {
	t.Parallel()

	f := &fakeUseCases{userPage: domain.UserPage{
		Users:  []domain.TaskUser{{UserEmail: "alice@example.com", UserState: domain.UserDone, MessageState: domain.MessageNotFound}},
		Cursor: "next-tok",
		More:   true,
	}}
	server := newTestServer(t, f, allowAllAuthorizer{})

	rec := get(server, "/task/task-1/users?user_state=Done&message_state=Not+Found&user_cursor=prev-tok")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "user_cursor=next-tok") {
		t.Fatal("expected the next link to carry the new cursor")
	}
	if !strings.Contains(body, "user_state=Done") {
		t.Fatal("expected the next link to keep the user state filter")
	}
	if !strings.Contains(body, "message_state=Not+Found") {
		t.Fatal("expected the next link to keep the message state filter")
	}
	if f.gotUserCursor != "prev-tok" {
		t.Fatalf("expected cursor passthrough, got %q", f.gotUserCursor)
	}
}

func TestTaskUsersPageNoNextLinkOnLastPage(t *testing.T) {
	t.Parallel()

	f := &fakeUseCases{userPage: domain.UserPage{
		Users: []domain.TaskUser{{UserEmail: "alice@example.com", UserState: domain.UserDone, MessageState: domain.MessageNotFound}},
	}}
	server := newTestServer(t, f, allowAllAuthorizer{})

	rec := get(server, "/task/task-1/users")
	if strings.Contains(rec.Body.String(), ">Next<") {
		t.Fatal("the last page must not offer a next link")
	}
}

func TestTaskDetailUnknownTask(t *testing.T) {
	t.Parallel()

	f := &fakeUseCases{detailErr: domain.ErrTaskNotFound}
	server := newTestServer(t, f, allowAllAuthorizer{})

	rec := get(server, "/task/missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No such recall task.") {
		t.Fatal("expected the not-found message")
	}
}

func TestPagesRequireIdentityHeader(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeUseCases{}, allowAllAuthorizer{})

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without the identity header, got %d", rec.Code)
	}
}

func TestPagesRejectNonAdmins(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeUseCases{}, denyAllAuthorizer{})

	rec := get(server, "/history")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admins, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "domain administrator") {
		t.Fatal("expected the authorization message")
	}
}

func TestCreateTaskInvalidCriteriaReRendersForm(t *testing.T) {
	t.Parallel()

	f := &fakeUseCases{createErr: domain.ErrInvalidMessageCriteria}
	server := newTestServer(t, f, allowAllAuthorizer{})

	form := strings.NewReader("message_criteria=<bad>")
	req := httptest.NewRequest(http.MethodPost, "/create_task", form)
	req.Header.Set(authHeader, "admin@example.com")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected the form again, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "message-id format is") {
		t.Fatal("expected the validation message")
	}
}

func TestCreateTaskRedirectsToTask(t *testing.T) {
	t.Parallel()

	f := &fakeUseCases{createOut: app.CreateTaskOutput{TaskID: "task-9"}}
	server := newTestServer(t, f, allowAllAuthorizer{})

	form := strings.NewReader("message_criteria=msg-id@example.com")
	req := httptest.NewRequest(http.MethodPost, "/create_task", form)
	req.Header.Set(authHeader, "admin@example.com")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderLocation); got != "/task/task-9" {
		t.Fatalf("expected redirect to the task page, got %q", got)
	}
}

func TestAbortTaskRedirects(t *testing.T) {
	t.Parallel()

	f := &fakeUseCases{}
	server := newTestServer(t, f, allowAllAuthorizer{})

	req := httptest.NewRequest(http.MethodPost, "/task/task-1/abort", nil)
	req.Header.Set(authHeader, "admin@example.com")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if len(f.abortedIDs) != 1 || f.abortedIDs[0] != "task-1" {
		t.Fatalf("expected one abort for task-1, got %v", f.abortedIDs)
	}
}

func TestHistoryPage(t *testing.T) {
	t.Parallel()

	ended := time.Date(2015, 4, 1, 12, 30, 0, 0, time.UTC)
	f := &fakeUseCases{taskPage: domain.TaskPage{
		Tasks: []domain.Task{{
			ID:              "task-1",
			OwnerEmail:      "admin@example.com",
			MessageCriteria: "msg-id@example.com",
			State:           domain.TaskDone,
			StartedAt:       time.Date(2015, 4, 1, 12, 0, 0, 0, time.UTC),
			EndedAt:         &ended,
		}},
		Cursor: "tok",
		More:   true,
	}}
	server := newTestServer(t, f, allowAllAuthorizer{})

	rec := get(server, "/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "msg-id@example.com") {
		t.Fatal("expected the task row")
	}
	if !strings.Contains(body, "task_cursor=tok") {
		t.Fatal("expected a next link")
	}
}
