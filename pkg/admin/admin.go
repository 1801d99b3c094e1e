// Package admin is the HTTP API for inspecting and changing player state.
package admin

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/teamvoice/relay/pkg/logger"
	"github.com/teamvoice/relay/pkg/player"
)

const (
	ErrIdRequired   = "id is required"
	ErrNameRequired = "name is required"
	ErrTeamRequired = "team is required"
	ErrModeRequired = "mode is required"
)

type Handler struct {
	players *player.Registry
	room    string
	// notify is called after every applied change.
	notify func()
	log    *logger.Logger
}

func New(players *player.Registry, room string, notify func(), log *logger.Logger) *Handler {
	if notify == nil {
		notify = func() {}
	}
	return &Handler{players: players, room: room, notify: notify, log: log}
}

func (h *Handler) Mount(r gin.IRouter) {
	r.GET("/health", h.health)
	r.GET("/room", h.getRoom)
	r.GET("/players", h.getPlayers)
	r.POST("/players/:id/name", h.setName)
	r.POST("/players/:id/team", h.setTeam)
	r.POST("/players/:id/mode", h.setMode)
}

// CORS allows the admin calls from the origins, a "*" allows everyone.
func CORS(origins []string) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = origins
	}
	return cors.New(conf)
}

func (h *Handler) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "players": h.players.Len()})
}

func (h *Handler) getRoom(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"room": h.room})
}

func (h *Handler) getPlayers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"players": h.players.GetAll()})
}

type (
	nameRequest struct {
		Name *string `json:"name"`
	}
	teamRequest struct {
		Team *string `json:"team"`
	}
	modeRequest struct {
		Mode *string `json:"mode"`
	}
)

func (h *Handler) setName(ctx *gin.Context) {
	var req nameRequest
	id, ok := h.bind(ctx, &req)
	if !ok {
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		h.badRequest(ctx, ErrNameRequired)
		return
	}
	h.done(ctx, id, "name", h.players.SetName(id, *req.Name))
}

func (h *Handler) setTeam(ctx *gin.Context) {
	var req teamRequest
	id, ok := h.bind(ctx, &req)
	if !ok {
		return
	}
	if req.Team == nil || strings.TrimSpace(*req.Team) == "" {
		h.badRequest(ctx, ErrTeamRequired)
		return
	}
	h.done(ctx, id, "team", h.players.SetTeam(id, player.NormalizeTeam(*req.Team)))
}

// setMode ignores unknown mode values the same way the registry does.
func (h *Handler) setMode(ctx *gin.Context) {
	var req modeRequest
	id, ok := h.bind(ctx, &req)
	if !ok {
		return
	}
	if req.Mode == nil || strings.TrimSpace(*req.Mode) == "" {
		h.badRequest(ctx, ErrModeRequired)
		return
	}
	updated := false
	if mode, valid := player.ParseMode(*req.Mode); valid {
		updated = h.players.SetVoiceMode(id, mode)
	}
	h.done(ctx, id, "mode", updated)
}

func (h *Handler) bind(ctx *gin.Context, req any) (string, bool) {
	id := strings.TrimSpace(ctx.Param("id"))
	if id == "" {
		h.badRequest(ctx, ErrIdRequired)
		return "", false
	}
	if err := ctx.ShouldBindJSON(req); err != nil {
		h.log.Debug().Err(err).Str(logger.PlayerField, id).Msg("admin bad request")
	}
	return id, true
}

func (h *Handler) done(ctx *gin.Context, id, field string, updated bool) {
	if updated {
		h.log.Info().Str(logger.PlayerField, id).Str("field", field).Msg("admin update")
		h.notify()
	}
	ctx.JSON(http.StatusOK, gin.H{"ok": true, "updated": updated})
}

func (h *Handler) badRequest(ctx *gin.Context, msg string) {
	ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
