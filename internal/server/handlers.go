// ABOUTME: Route handlers mapping API requests onto owner-scoped record store operations.
// ABOUTME: The owner always comes from the verified token, never from the request body.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/models"
	"github.com/harperreed/cradle/internal/storage"
)

// readJSON decodes the request body into dst.
func (s *Server) readJSON(c *gin.Context, dst any) bool {
	data, ok := s.readBody(c)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.fail(c, errs.Validation("decode request body: %v", err))
		return false
	}
	return true
}

func (s *Server) readBody(c *gin.Context) ([]byte, bool) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(c, http.StatusRequestEntityTooLarge, "too_large", errors.New("request body too large"))
			return nil, false
		}
		s.fail(c, errs.Validation("read request body: %v", err))
		return nil, false
	}
	return data, true
}

// matchID fills an empty body id from the path and rejects a mismatch.
func matchID(pathID string, bodyID *string) error {
	if *bodyID == "" {
		*bodyID = pathID
		return nil
	}
	if *bodyID != pathID {
		return errs.Validation("body id %q does not match path id %q", *bodyID, pathID)
	}
	return nil
}

func (s *Server) getSnapshot(c *gin.Context) {
	snap, err := s.repo.GetSnapshot(c.Request.Context(), ownerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, snap)
}

// postMutation applies one queued client mutation.
func (s *Server) postMutation(c *gin.Context) {
	var m models.Mutation
	if !s.readJSON(c, &m) {
		return
	}
	if err := storage.Execute(c.Request.Context(), s.repo, ownerID(c), m); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Profile and settings

func (s *Server) getProfile(c *gin.Context) {
	p, err := s.repo.GetProfile(c.Request.Context(), ownerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, p)
}

func (s *Server) putProfile(c *gin.Context) {
	patch, ok := s.readBody(c)
	if !ok {
		return
	}
	p, err := s.repo.SaveProfile(c.Request.Context(), ownerID(c), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, p)
}

func (s *Server) getSettings(c *gin.Context) {
	st, err := s.repo.GetSettings(c.Request.Context(), ownerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, st)
}

func (s *Server) putSettings(c *gin.Context) {
	patch, ok := s.readBody(c)
	if !ok {
		return
	}
	st, err := s.repo.SaveSettings(c.Request.Context(), ownerID(c), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, st)
}

// Activities

func parseActivityFilter(c *gin.Context) (storage.ActivityFilter, error) {
	f := storage.ActivityFilter{Type: c.Query("type")}
	for name, dst := range map[string]**time.Time{"since": &f.Since, "until": &f.Until} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errs.Validation("%s %q is not RFC3339", name, raw)
		}
		*dst = &t
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, errs.Validation("limit %q is not a non-negative integer", raw)
		}
		f.Limit = n
	}
	return f, nil
}

func (s *Server) listActivities(c *gin.Context) {
	f, err := parseActivityFilter(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	list, err := s.repo.ListActivities(c.Request.Context(), ownerID(c), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, list)
}

func (s *Server) getActivity(c *gin.Context) {
	a, err := s.repo.GetActivity(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, a)
}

func (s *Server) putActivity(c *gin.Context) {
	var a models.Activity
	if !s.readJSON(c, &a) {
		return
	}
	if err := matchID(c.Param("id"), &a.ID); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.repo.SaveActivity(c.Request.Context(), ownerID(c), &a); err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, a)
}

func (s *Server) deleteActivity(c *gin.Context) {
	if err := s.repo.DeleteActivity(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Custom activities

func (s *Server) listCustomActivities(c *gin.Context) {
	list, err := s.repo.ListCustomActivities(c.Request.Context(), ownerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, list)
}

func (s *Server) putCustomActivity(c *gin.Context) {
	var ca models.CustomActivity
	if !s.readJSON(c, &ca) {
		return
	}
	if err := matchID(c.Param("id"), &ca.ID); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.repo.SaveCustomActivity(c.Request.Context(), ownerID(c), &ca); err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, ca)
}

func (s *Server) deleteCustomActivity(c *gin.Context) {
	if err := s.repo.DeleteCustomActivity(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Growth records

func (s *Server) listGrowthRecords(c *gin.Context) {
	list, err := s.repo.ListGrowthRecords(c.Request.Context(), ownerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, list)
}

func (s *Server) putGrowthRecord(c *gin.Context) {
	var g models.GrowthRecord
	if !s.readJSON(c, &g) {
		return
	}
	if err := matchID(c.Param("id"), &g.ID); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.repo.SaveGrowthRecord(c.Request.Context(), ownerID(c), &g); err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, g)
}

func (s *Server) deleteGrowthRecord(c *gin.Context) {
	if err := s.repo.DeleteGrowthRecord(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Schedules

func (s *Server) listSchedules(c *gin.Context) {
	list, err := s.repo.ListSchedules(c.Request.Context(), ownerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, list)
}

func (s *Server) putSchedule(c *gin.Context) {
	var sched models.NotificationSchedule
	if !s.readJSON(c, &sched) {
		return
	}
	if err := matchID(c.Param("id"), &sched.ID); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.repo.SaveSchedule(c.Request.Context(), ownerID(c), &sched); err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, sched)
}

func (s *Server) deleteSchedule(c *gin.Context) {
	if err := s.repo.DeleteSchedule(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Account

func (s *Server) export(c *gin.Context) {
	doc, err := s.repo.ExportAccount(c.Request.Context(), ownerID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	switch strings.ToLower(c.DefaultQuery("format", "json")) {
	case "json":
		RespondOK(c, doc)
	case "yaml", "yml":
		data, err := storage.EncodeYAML(doc)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Data(http.StatusOK, "application/yaml", data)
	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(storage.RenderMarkdown(doc)))
	default:
		s.fail(c, errs.Validation("unknown export format %q", c.Query("format")))
	}
}

func (s *Server) importAccount(c *gin.Context) {
	data, ok := s.readBody(c)
	if !ok {
		return
	}
	doc, err := models.DecodeDocument(data)
	if err != nil {
		s.fail(c, err)
		return
	}
	summary, err := s.repo.ImportAccount(c.Request.Context(), ownerID(c), doc)
	if err != nil {
		s.fail(c, err)
		return
	}
	RespondOK(c, summary)
}

func (s *Server) deleteAccount(c *gin.Context) {
	if err := s.repo.DeleteAccount(c.Request.Context(), ownerID(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
