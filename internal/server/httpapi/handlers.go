package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.Credentials
	if !s.decode(w, r, &req) {
		return
	}

	u, err := s.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}

	s.logger.Info(r.Context(), "Registered", "username", u.UserName)
	writeJSON(w, http.StatusCreated, map[string]string{"id": u.ID, "username": u.UserName})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.Credentials
	if !s.decode(w, r, &req) {
		return
	}

	tokens, err := s.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.TokenPair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if !s.decode(w, r, &req) {
		return
	}

	tokens, err := s.users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.TokenPair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	size, err := queryInt(r, "size", 0)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}

	out, err := s.records.List(r.Context(), r.PathValue("collection"), page, size)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	out, err := s.records.Get(r.Context(), r.PathValue("collection"), r.PathValue("id"))
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	out, err := s.records.Create(r.Context(), userID(r.Context()), r.PathValue("collection"), body)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	out, err := s.records.Update(r.Context(), userID(r.Context()), r.PathValue("collection"), r.PathValue("id"), body)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePhotoUpload(w http.ResponseWriter, r *http.Request) {
	out, err := s.photos.UploadURL(r.Context(), r.PathValue("id"), r.PathValue("item"))
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePhotoDownload(w http.ResponseWriter, r *http.Request) {
	out, err := s.photos.DownloadURL(r.Context(), r.PathValue("id"), r.PathValue("item"))
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.fail(r.Context(), w, fmt.Errorf("%w: %v", common.ErrInvalidPayload, err))
		return false
	}
	return true
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.fail(r.Context(), w, fmt.Errorf("%w: %v", common.ErrInvalidPayload, err))
		return nil, false
	}
	return body, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", common.ErrInvalidPayload, key)
	}
	return n, nil
}
