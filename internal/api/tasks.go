package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

// StartTaskRequest is the body of POST /tasks.
type StartTaskRequest struct {
	TemplateID string `json:"template_id"`
	Input      string `json:"input"`
}

// TaskResponse is a task record plus its live run state.
type TaskResponse struct {
	*core.TaskRecord
	Active      bool   `json:"active"`
	FinalOutput string `json:"final_output,omitempty"`
}

func (s *Server) taskResponse(t *core.TaskRecord) TaskResponse {
	resp := TaskResponse{TaskRecord: t, Active: s.runner.Active(t.ID)}
	if t.Status == core.TaskStatusCompleted {
		resp.FinalOutput = t.FinalOutput()
	}
	return resp
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.runner.List(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" {
		if _, err := core.ParseTaskStatus(status); err != nil {
			s.respondDomainError(w, core.ErrValidation(core.CodeInvalidState, err.Error()))
			return
		}
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		if status != "" && string(t.Status) != status {
			continue
		}
		resp = append(resp, s.taskResponse(t))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	var req StartTaskRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.TemplateID) == "" {
		s.respondDomainError(w, core.ErrValidation(core.CodeInvalidID, "template_id is required"))
		return
	}

	task, err := s.runner.Start(r.Context(), req.TemplateID, req.Input)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, TaskResponse{TaskRecord: task, Active: true})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.runner.Get(r.Context(), taskID(r))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.taskResponse(task))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Delete(r.Context(), taskID(r)); err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePauseTask(w http.ResponseWriter, r *http.Request) {
	id := taskID(r)
	if err := s.runner.Pause(id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"task_id": string(id), "action": "pause"})
}

func (s *Server) handleStopTask(w http.ResponseWriter, r *http.Request) {
	id := taskID(r)
	if err := s.runner.Stop(id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"task_id": string(id), "action": "stop"})
}

func (s *Server) handleResumeTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.runner.Resume(r.Context(), taskID(r))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, TaskResponse{TaskRecord: task, Active: true})
}

func taskID(r *http.Request) core.TaskID {
	return core.TaskID(chi.URLParam(r, "taskID"))
}
