package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"tutorial-service/internal/entity"
	"tutorial-service/internal/registry"
	"tutorial-service/internal/service"
	"tutorial-service/internal/worker"
)

type Handler struct {
	tasks     *service.TaskService
	videosDir string
	log       logrus.FieldLogger
}

func NewHandler(tasks *service.TaskService, videosDir string, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{tasks: tasks, videosDir: videosDir, log: log}
}

// flexString accepts a JSON string or number ("2" and 2 are both level 2).
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number")
	}
	*s = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (i *flexInt) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*i = flexInt(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("expected integer")
	}
	n, err := strconv.Atoi(strings.TrimSpace(str))
	if err != nil {
		return fmt.Errorf("expected integer")
	}
	*i = flexInt(n)
	return nil
}

type generateDTO struct {
	Topic    *string     `json:"topic"`
	Level    *flexString `json:"level" swaggertype:"string"`
	Duration *flexInt    `json:"duration" swaggertype:"integer"`
	DryRun   bool        `json:"dry_run"`
}

type generateScriptDTO struct {
	Topic    *string     `json:"topic"`
	Level    *flexString `json:"level" swaggertype:"string"`
	Style    *string     `json:"style"`
	Duration *flexInt    `json:"duration" swaggertype:"integer"`
}

type generateSceneDTO struct {
	SceneText *string `json:"scene_text"`
	DryRun    bool    `json:"dry_run"`
}

type taskCreatedResp struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message,omitempty"`
}

type statusResp struct {
	TaskID   string          `json:"task_id"`
	Status   entity.Status   `json:"status"`
	Progress float64         `json:"progress"`
	Message  string          `json:"message"`
	Error    *string         `json:"error,omitempty"`
	Result   json.RawMessage `json:"result,omitempty" swaggertype:"object"`
}

type notFoundResp struct {
	Error       string   `json:"error"`
	Message     string   `json:"message"`
	ActiveTasks []string `json:"active_tasks"`
}

type tasksResp struct {
	Tasks []entity.Task `json:"tasks"`
}

type successResp struct {
	Success bool `json:"success"`
}

// submitFailed maps a service error from a submit call to a response.
func (h *Handler) submitFailed(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrPoolClosed):
		writeErr(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.WithError(err).Error("submit task")
		writeErr(w, http.StatusInternalServerError, "An error occurred: "+err.Error())
	}
}

// GenerateTutorial godoc
// @Summary Start tutorial generation
// @Description Registers a tutorial task and runs the full pipeline in the background.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body generateDTO true "topic, level (1-3 or name), duration in minutes (1-10)"
// @Success 200 {object} taskCreatedResp
// @Failure 400 {object} apiError
// @Failure 503 {object} apiError
// @Router /api/generate [post]
func (h *Handler) GenerateTutorial(w http.ResponseWriter, r *http.Request) {
	var dto generateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	switch {
	case dto.Topic == nil:
		writeErr(w, http.StatusBadRequest, "Missing required parameter: topic")
		return
	case dto.Level == nil:
		writeErr(w, http.StatusBadRequest, "Missing required parameter: level")
		return
	case dto.Duration == nil:
		writeErr(w, http.StatusBadRequest, "Missing required parameter: duration")
		return
	}

	id, err := h.tasks.SubmitTutorial(r.Context(), service.TutorialRequest{
		Topic:    *dto.Topic,
		Level:    string(*dto.Level),
		Duration: int(*dto.Duration),
		DryRun:   dto.DryRun,
	})
	if err != nil {
		h.submitFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskCreatedResp{TaskID: id})
}

// GenerateScript godoc
// @Summary Start script generation
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body generateScriptDTO true "script parameters"
// @Success 200 {object} taskCreatedResp
// @Failure 400 {object} apiError
// @Failure 503 {object} apiError
// @Router /api/generate-script [post]
func (h *Handler) GenerateScript(w http.ResponseWriter, r *http.Request) {
	var dto generateScriptDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	for _, f := range []struct {
		name    string
		missing bool
	}{
		{"topic", dto.Topic == nil},
		{"level", dto.Level == nil},
		{"style", dto.Style == nil},
		{"duration", dto.Duration == nil},
	} {
		if f.missing {
			writeErr(w, http.StatusBadRequest, "Missing required field: "+f.name)
			return
		}
	}

	id, err := h.tasks.SubmitScript(r.Context(), service.ScriptRequest{
		Topic:    *dto.Topic,
		Level:    string(*dto.Level),
		Style:    *dto.Style,
		Duration: int(*dto.Duration),
	})
	if err != nil {
		h.submitFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskCreatedResp{TaskID: id, Message: "Script generation started"})
}

// GenerateScene godoc
// @Summary Render a single scene
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body generateSceneDTO true "scene description"
// @Success 200 {object} taskCreatedResp
// @Failure 400 {object} apiError
// @Failure 503 {object} apiError
// @Router /api/generate-scene [post]
func (h *Handler) GenerateScene(w http.ResponseWriter, r *http.Request) {
	var dto generateSceneDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil || dto.SceneText == nil {
		writeErr(w, http.StatusBadRequest, "Missing required field: scene_text")
		return
	}

	id, err := h.tasks.SubmitScene(r.Context(), service.SceneRequest{SceneText: *dto.SceneText, DryRun: dto.DryRun})
	if err != nil {
		h.submitFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskCreatedResp{TaskID: id})
}

// GetStatus godoc
// @Summary Get task status
// @Tags tasks
// @Produce json
// @Param id path string true "task id"
// @Success 200 {object} statusResp
// @Failure 404 {object} notFoundResp
// @Router /api/status/{id} [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.tasks.GetTask(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, notFoundResp{
			Error:       "Task not found",
			Message:     "The requested task was not found in the task manager.",
			ActiveTasks: h.tasks.TaskIDs(),
		})
		return
	}

	writeJSON(w, http.StatusOK, statusResp{
		TaskID:   t.ID,
		Status:   t.Status,
		Progress: t.Progress,
		Message:  t.Message,
		Error:    t.Error,
		Result:   t.Result,
	})
}

// ListTasks godoc
// @Summary List all tasks
// @Tags tasks
// @Produce json
// @Success 200 {object} tasksResp
// @Router /api/tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tasksResp{Tasks: h.tasks.ListTasks(r.Context())})
}

// ClearTask godoc
// @Summary Remove a finished task
// @Tags tasks
// @Produce json
// @Param id path string true "task id"
// @Success 200 {object} successResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /api/clear/{id} [delete]
func (h *Handler) ClearTask(w http.ResponseWriter, r *http.Request) {
	err := h.tasks.DeleteTask(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, successResp{Success: true})
	case errors.Is(err, registry.ErrNotFound):
		writeErr(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, service.ErrNotTerminal):
		writeErr(w, http.StatusBadRequest, "Cannot clear a task that is still in progress")
	default:
		writeErr(w, http.StatusInternalServerError, err.Error())
	}
}

// ServeVideo godoc
// @Summary Download a generated video
// @Tags videos
// @Produce octet-stream
// @Param path path string true "file name under the videos directory"
// @Success 200 {file} file
// @Failure 404 {object} apiError
// @Router /api/videos/{path} [get]
func (h *Handler) ServeVideo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	// no directory listings
	if name == "" || strings.HasSuffix(name, "/") {
		writeErr(w, http.StatusNotFound, "file not found")
		return
	}
	r2 := r.Clone(r.Context())
	r2.URL.Path = "/" + name
	http.FileServer(http.Dir(h.videosDir)).ServeHTTP(w, r2)
}
