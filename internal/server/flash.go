package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/smallbiznis/relevamientos/internal/config"
	"go.uber.org/zap"
)

const (
	flashSessionName = "relevamientos_flash"
	flashSuccess     = "success"
	flashError       = "error"
)

// flashes are one-shot messages carried to the next rendered page.
type flashes struct {
	Success []string
	Error   []string
}

// NewSessionStore signs flash cookies with SECRET_KEY.
func NewSessionStore(cfg config.Config) sessions.Store {
	store := sessions.NewCookieStore([]byte(cfg.SecretKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func (s *Server) addFlash(c *gin.Context, category, message string) {
	session, err := s.sessions.Get(c.Request, flashSessionName)
	if err != nil {
		// a cookie signed with an old key; start over
		s.log.Debug("flash session reset", zap.Error(err))
	}
	session.AddFlash(message, category)
	if err := session.Save(c.Request, c.Writer); err != nil {
		s.log.Warn("flash save failed", zap.Error(err))
	}
}

// popFlashes reads and clears pending messages. It must run before the
// response body is written.
func (s *Server) popFlashes(c *gin.Context) flashes {
	var out flashes
	session, err := s.sessions.Get(c.Request, flashSessionName)
	if err != nil {
		s.log.Debug("flash session reset", zap.Error(err))
	}
	if session == nil {
		return out
	}

	out.Success = flashStrings(session.Flashes(flashSuccess))
	out.Error = flashStrings(session.Flashes(flashError))
	if len(out.Success) == 0 && len(out.Error) == 0 {
		return out
	}
	if err := session.Save(c.Request, c.Writer); err != nil {
		s.log.Warn("flash save failed", zap.Error(err))
	}
	return out
}

func flashStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if msg, ok := v.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}
