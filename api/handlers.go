package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"join-api/domain"
	"join-api/storage"
)

const requestBodyMaxSize = 1 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, deduper Deduper, logger *log.Logger) {
	e.GET("/healthz", healthz())

	e.GET("/api/contacts", getContacts(store))
	e.POST("/api/contacts", postContact(store, deduper))
	e.GET("/api/contacts/:id", getContact(store))
	e.PUT("/api/contacts/:id", putContact(store))
	e.DELETE("/api/contacts/:id", deleteContact(store))

	e.GET("/api/board", getBoard(store, logger))
	e.GET("/api/tasks", getTasks(store))
	e.POST("/api/tasks", postTask(store, deduper))
	e.GET("/api/tasks/:id", getTask(store))
	e.PUT("/api/tasks/:id", putTask(store))
	e.DELETE("/api/tasks/:id", deleteTask(store))
	e.PATCH("/api/tasks/:id/category", patchTaskCategory(store))
	e.PATCH("/api/tasks/:id/subtasks/:sid", patchSubtask(store))

	e.POST("/api/login", postLogin(store))
	e.POST("/api/login/guest", postGuestLogin(store))
	e.POST("/api/signup", postSignup(store, deduper))
	e.GET("/api/session", getSession(store))
	e.DELETE("/api/session", deleteSession(store))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// decodeBody decodes the request body into v, rejecting unknown fields and
// oversized payloads.
func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// storeError maps storage failures onto HTTP responses.
func storeError(c echo.Context, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return c.String(http.StatusNotFound, "not found")
	}
	c.Logger().Error(err)
	var se storage.StatusError
	if errors.As(err, &se) {
		return c.String(http.StatusBadGateway, "store unavailable")
	}
	return c.String(http.StatusInternalServerError, err.Error())
}

func validationError(c echo.Context, errs domain.FieldErrors) error {
	return c.JSON(http.StatusUnprocessableEntity, map[string]any{"errors": errs})
}

// checkIdempotency enforces the optional Idempotency-Key header on write
// endpoints. It returns done=true when the request was already answered
// (either as a duplicate or a deduper failure). The returned release
// function frees the key again so the client may retry after a downstream
// failure; it is nil when no key was supplied.
func checkIdempotency(c echo.Context, deduper Deduper) (release func(), done bool, err error) {
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" || deduper == nil {
		return nil, false, nil
	}
	ctx := c.Request().Context()
	added, addErr := deduper.Add(ctx, key)
	if addErr != nil {
		c.Logger().Error(addErr)
		// Dedupe is best effort: a dead redis must not block writes.
		return nil, false, nil
	}
	if !added {
		return nil, true, c.String(http.StatusConflict, "duplicate request")
	}
	return func() { _ = deduper.Remove(c.Request().Context(), key) }, false, nil
}

func getContacts(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		contacts, err := store.FetchContacts(ctx)
		if err != nil {
			return storeError(c, err)
		}
		if c.QueryParam("grouped") == "1" {
			return c.JSON(http.StatusOK, domain.GroupByInitial(contacts))
		}
		return c.JSON(http.StatusOK, contacts)
	}
}

func getContact(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		contact, err := store.GetContact(c.Request().Context(), c.Param("id"))
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, contact)
	}
}

func postContact(store Storage, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		var contact domain.Contact
		if err := decodeBody(c, &contact); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if errs := contact.Validate(); errs != nil {
			return validationError(c, errs)
		}
		release, done, err := checkIdempotency(c, deduper)
		if done {
			return err
		}
		if contact.Color == "" {
			contact.Color = domain.RandomColor()
		}
		saved, err := store.SaveContact(c.Request().Context(), contact)
		if err != nil {
			if release != nil {
				release()
			}
			return storeError(c, err)
		}
		return c.JSON(http.StatusCreated, saved)
	}
}

func putContact(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		existing, err := store.GetContact(ctx, c.Param("id"))
		if err != nil {
			return storeError(c, err)
		}
		var contact domain.Contact
		if err := decodeBody(c, &contact); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if errs := contact.Validate(); errs != nil {
			return validationError(c, errs)
		}
		contact.ID = existing.ID
		if contact.Color == "" {
			contact.Color = existing.Color
		}
		if contact.Password == "" {
			contact.Password = existing.Password
		}
		if err := store.UpdateContact(ctx, contact); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, contact)
	}
}

func deleteContact(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := store.GetContact(ctx, c.Param("id")); err != nil {
			return storeError(c, err)
		}
		if err := store.DeleteContact(ctx, c.Param("id")); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// boardCard decorates a task with its rendered progress label.
type boardCard struct {
	domain.Task
	Progress string `json:"progress"`
}

type boardColumn struct {
	Category string      `json:"category"`
	Label    string      `json:"label"`
	Tasks    []boardCard `json:"tasks"`
}

func getBoard(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		tasks, fetchErr := metrics.TimeFetch(func() ([]domain.Task, error) {
			return store.FetchTasks(ctx)
		})
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			err = storeError(c, fetchErr)
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		columns := make([]boardColumn, 0, len(domain.Categories))
		for _, col := range domain.GroupByCategory(tasks) {
			cards := make([]boardCard, 0, len(col.Tasks))
			for _, t := range col.Tasks {
				cards = append(cards, boardCard{Task: t, Progress: t.ProgressLabel()})
			}
			columns = append(columns, boardColumn{Category: col.Category, Label: col.Label, Tasks: cards})
		}

		err = metrics.TimeEncode(func() error {
			return c.JSON(http.StatusOK, columns)
		})
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getTasks(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks, err := store.FetchTasks(c.Request().Context())
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, tasks)
	}
}

func getTask(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		task, err := store.GetTask(c.Request().Context(), c.Param("id"))
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

// taskRequest is the add-task form payload. Assignees arrive as contact
// ids and are resolved to snapshots; subtasks arrive as bare names.
type taskRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	DueDate            string   `json:"dueDate"`
	Priority           string   `json:"priority"`
	Badge              string   `json:"badge"`
	Category           string   `json:"category"`
	AssignedContactIDs []string `json:"assignedContactIds"`
	Subtasks           []string `json:"subtasks"`
}

func (r taskRequest) task() domain.Task {
	t := domain.Task{
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate,
		Priority:    r.Priority,
		Badge:       r.Badge,
		Category:    r.Category,
	}
	if r.Category == "" {
		t.Category = domain.CategoryToDo
	}
	if len(r.Subtasks) > 0 {
		t.Subtasks = make(domain.Subtasks, len(r.Subtasks))
		for _, name := range r.Subtasks {
			t.Subtasks[uuid.NewString()] = domain.Subtask{Name: name}
		}
	}
	return t
}

// resolveAssignees turns selected contact ids into the assignedTo snapshot
// map. Unknown ids are reported as a validation error rather than silently
// dropped.
func resolveAssignees(contacts []domain.Contact, ids []string) (map[string]domain.Assignee, domain.FieldErrors) {
	if len(ids) == 0 {
		return nil, nil
	}
	byID := make(map[string]domain.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}
	selected := make([]domain.Contact, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, domain.FieldErrors{"assignedContactIds": "unknown contact " + id}
		}
		selected = append(selected, c)
	}
	return domain.AssignContacts(selected), nil
}

func postTask(store Storage, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		var req taskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		task := req.task()
		if errs := task.Validate(); errs != nil {
			return validationError(c, errs)
		}
		if len(req.AssignedContactIDs) > 0 {
			contacts, err := store.FetchContacts(ctx)
			if err != nil {
				return storeError(c, err)
			}
			assigned, errs := resolveAssignees(contacts, req.AssignedContactIDs)
			if errs != nil {
				return validationError(c, errs)
			}
			task.AssignedTo = assigned
		}
		release, done, err := checkIdempotency(c, deduper)
		if done {
			return err
		}
		saved, err := store.SaveTask(ctx, task)
		if err != nil {
			if release != nil {
				release()
			}
			return storeError(c, err)
		}
		return c.JSON(http.StatusCreated, saved)
	}
}

func putTask(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		existing, err := store.GetTask(ctx, c.Param("id"))
		if err != nil {
			return storeError(c, err)
		}
		var task domain.Task
		if err := decodeBody(c, &task); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if errs := task.Validate(); errs != nil {
			return validationError(c, errs)
		}
		task.ID = existing.ID
		if err := store.UpdateTask(ctx, task); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := store.GetTask(ctx, c.Param("id")); err != nil {
			return storeError(c, err)
		}
		if err := store.DeleteTask(ctx, c.Param("id")); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type moveRequest struct {
	Category string `json:"category"`
}

// patchTaskCategory is the board drag-and-drop move: only the category
// field is persisted.
func patchTaskCategory(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		var req moveRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if !domain.ValidCategory(req.Category) {
			return validationError(c, domain.FieldErrors{"category": "unknown board column"})
		}
		task, err := store.GetTask(ctx, c.Param("id"))
		if err != nil {
			return storeError(c, err)
		}
		if err := store.PatchTask(ctx, task.ID, map[string]any{"category": req.Category}); err != nil {
			return storeError(c, err)
		}
		task.Category = req.Category
		return c.JSON(http.StatusOK, task)
	}
}

type subtaskToggleResponse struct {
	Subtask  domain.Subtask `json:"subtask"`
	Progress string         `json:"progress"`
}

// patchSubtask toggles one checklist entry and reports the recomputed
// card progress.
func patchSubtask(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		task, err := store.GetTask(ctx, c.Param("id"))
		if err != nil {
			return storeError(c, err)
		}
		sid := c.Param("sid")
		subtask, ok := task.Subtasks[sid]
		if !ok {
			return c.String(http.StatusNotFound, "not found")
		}
		subtask.Completed = !subtask.Completed
		task.Subtasks[sid] = subtask
		patch := map[string]any{"subtasks/" + sid + "/completed": subtask.Completed}
		if task.Subtasks.StoredAsArray() {
			// Records written by the old client hold subtasks as an
			// array; the per-id patch path does not exist there. Rewrite
			// the whole node in the map shape with the toggle applied.
			patch = map[string]any{"subtasks": task.Subtasks}
		}
		if err := store.PatchTask(ctx, task.ID, patch); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, subtaskToggleResponse{
			Subtask:  subtask,
			Progress: task.ProgressLabel(),
		})
	}
}
