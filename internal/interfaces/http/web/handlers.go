package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	app "github.com/gappsops/message-recall/internal/application/recall"
	domain "github.com/gappsops/message-recall/internal/domain/recall"
)

// PageHandler serves the server-rendered admin UI.
type PageHandler struct {
	appsDomain string

	createTask app.CreateTask
	getTask    app.GetTaskDetail
	listTasks  app.ListTasks
	listUsers  app.ListTaskUsers
	listErrors app.ListTaskErrors
	report     app.TaskReport
	debug      app.TaskDebug
	abort      app.AbortTask
}

func NewPageHandler(
	appsDomain string,
	createTask app.CreateTask,
	getTask app.GetTaskDetail,
	listTasks app.ListTasks,
	listUsers app.ListTaskUsers,
	listErrors app.ListTaskErrors,
	report app.TaskReport,
	debug app.TaskDebug,
	abort app.AbortTask,
) *PageHandler {
	return &PageHandler{
		appsDomain: appsDomain,
		createTask: createTask,
		getTask:    getTask,
		listTasks:  listTasks,
		listUsers:  listUsers,
		listErrors: listErrors,
		report:     report,
		debug:      debug,
		abort:      abort,
	}
}

type pageBase struct {
	Title     string
	UserEmail string
}

func (h *PageHandler) base(c echo.Context, title string) pageBase {
	return pageBase{Title: title, UserEmail: currentUserEmail(c)}
}

func (h *PageHandler) Landing(c echo.Context) error {
	return c.Render(http.StatusOK, "landing.html", map[string]any{
		"Base": h.base(c, "Message Recall"),
	})
}

func (h *PageHandler) About(c echo.Context) error {
	return c.Render(http.StatusOK, "about.html", map[string]any{
		"Base": h.base(c, "About Message Recall"),
	})
}

func (h *PageHandler) CreateTaskForm(c echo.Context) error {
	return c.Render(http.StatusOK, "create_task.html", map[string]any{
		"Base":      h.base(c, "Create Recall Task"),
		"CSRFToken": csrfToken(c),
	})
}

func (h *PageHandler) CreateTaskSubmit(c echo.Context) error {
	out, err := h.createTask.Execute(c.Request().Context(), app.CreateTaskInput{
		OwnerEmail:      currentUserEmail(c),
		MessageCriteria: c.FormValue("message_criteria"),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMessageCriteria) {
			return c.Render(http.StatusOK, "create_task.html", map[string]any{
				"Base":            h.base(c, "Create Recall Task"),
				"CSRFToken":       csrfToken(c),
				"MessageCriteria": c.FormValue("message_criteria"),
				"FormError":       "message-id format is: local-part@domain.com, 1-100 characters, no spaces.",
			})
		}
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/task/"+out.TaskID)
}

func (h *PageHandler) History(c echo.Context) error {
	previousCursor := c.QueryParam("task_cursor")
	page, err := h.listTasks.Execute(c.Request().Context(), h.appsDomain, previousCursor)
	if err != nil {
		return err
	}

	rows := make([]taskRow, 0, len(page.Tasks))
	for _, task := range page.Tasks {
		rows = append(rows, newTaskRow(task))
	}
	return c.Render(http.StatusOK, "history.html", map[string]any{
		"Base":   h.base(c, "Recall History"),
		"Tasks":  rows,
		"More":   page.More,
		"Cursor": page.Cursor,
	})
}

func (h *PageHandler) TaskDetail(c echo.Context) error {
	out, err := h.getTask.Execute(c.Request().Context(), h.appsDomain, c.Param("id"))
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "task.html", map[string]any{
		"Base":       h.base(c, "Recall Task"),
		"Task":       newTaskRow(out.Task),
		"ErrorCount": out.ErrorCount,
		"CSRFToken":  csrfToken(c),
	})
}

func (h *PageHandler) TaskUsers(c echo.Context) error {
	taskID := c.Param("id")
	userStates := c.QueryParams()["user_state"]
	messageStates := c.QueryParams()["message_state"]

	page, err := h.listUsers.Execute(c.Request().Context(), app.ListTaskUsersInput{
		AppsDomain:    h.appsDomain,
		TaskID:        taskID,
		UserStates:    userStates,
		MessageStates: messageStates,
		Cursor:        c.QueryParam("user_cursor"),
	})
	if err != nil {
		return err
	}

	rows := make([]taskUserRow, 0, len(page.Users))
	for _, user := range page.Users {
		rows = append(rows, newTaskUserRow(user))
	}
	data := map[string]any{
		"Base":   h.base(c, "Recall Task Users"),
		"TaskID": taskID,
		"Users":  rows,
		"More":   page.More,
	}
	if page.More {
		data["NextURL"] = usersPageURL(taskID, userStates, messageStates, page.Cursor)
	}
	return c.Render(http.StatusOK, "task_users.html", data)
}

func (h *PageHandler) TaskReport(c echo.Context) error {
	taskID := c.Param("id")
	out, err := h.report.Execute(c.Request().Context(), h.appsDomain, taskID)
	if err != nil {
		return err
	}

	type stateCountRow struct {
		State string
		Count int64
		URL   string
	}
	userCounts := make([]stateCountRow, 0, len(domain.UserStates))
	for _, state := range domain.UserStates {
		userCounts = append(userCounts, stateCountRow{
			State: string(state),
			Count: out.UserCounts[state],
			URL:   usersPageURL(taskID, []string{string(state)}, nil, ""),
		})
	}
	messageCounts := make([]stateCountRow, 0, len(domain.MessageStates))
	for _, state := range domain.MessageStates {
		messageCounts = append(messageCounts, stateCountRow{
			State: string(state),
			Count: out.MessageCounts[state],
			URL:   usersPageURL(taskID, nil, []string{string(state)}, ""),
		})
	}

	return c.Render(http.StatusOK, "task_report.html", map[string]any{
		"Base":          h.base(c, "Recall Task Report"),
		"Task":          newTaskRow(out.Task),
		"TaskID":        taskID,
		"UserCounts":    userCounts,
		"MessageCounts": messageCounts,
	})
}

func (h *PageHandler) TaskErrors(c echo.Context) error {
	taskID := c.Param("id")
	page, err := h.listErrors.Execute(c.Request().Context(), h.appsDomain, taskID, c.QueryParam("error_cursor"))
	if err != nil {
		return err
	}

	type errorRow struct {
		UserEmail string
		Reason    string
		When      string
	}
	rows := make([]errorRow, 0, len(page.Errors))
	for _, reason := range page.Errors {
		rows = append(rows, errorRow{
			UserEmail: reason.UserEmail,
			Reason:    reason.Reason,
			When:      reason.CreatedAt.UTC().Format(displayTimeFormat),
		})
	}
	return c.Render(http.StatusOK, "task_errors.html", map[string]any{
		"Base":   h.base(c, "Recall Task Problems"),
		"TaskID": taskID,
		"Errors": rows,
		"More":   page.More,
		"Cursor": page.Cursor,
	})
}

func (h *PageHandler) TaskDebug(c echo.Context) error {
	out, err := h.debug.Execute(c.Request().Context(), h.appsDomain, c.Param("id"))
	if err != nil {
		return err
	}

	type counterRow struct {
		Label string
		Count int64
	}
	return c.Render(http.StatusOK, "debug_task.html", map[string]any{
		"Base": h.base(c, "Recall Task Debug"),
		"Task": newTaskRow(out.Task),
		"Counters": []counterRow{
			{Label: "User Retrieval Tasks Started (Expected)", Count: out.RetrievalStarted},
			{Label: "User Retrieval Tasks Ended (Actual)", Count: out.RetrievalEnded},
			{Label: "Task Worker Errors (Automatically Retried)", Count: out.WorkerErrors},
		},
	})
}

func (h *PageHandler) AbortTask(c echo.Context) error {
	taskID := c.Param("id")
	err := h.abort.Execute(c.Request().Context(), app.AbortTaskInput{
		AppsDomain:  h.appsDomain,
		TaskID:      taskID,
		RequestedBy: currentUserEmail(c),
	})
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/task/"+taskID)
}

func csrfToken(c echo.Context) string {
	token, _ := c.Get("csrf").(string)
	return token
}
