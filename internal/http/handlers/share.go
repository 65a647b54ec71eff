package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/secondbrain-backend/internal/http/response"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/ctxutil"
	"github.com/yungbote/secondbrain-backend/internal/services"
)

type ShareHandler struct {
	shares services.ShareService
}

func NewShareHandler(shares services.ShareService) *ShareHandler {
	return &ShareHandler{shares: shares}
}

func (h *ShareHandler) SetSharing(c *gin.Context) {
	var req struct {
		Share bool `json:"share"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAppError(c, apperr.Validation(err.Error()))
		return
	}
	res, err := h.shares.SetSharing(c.Request.Context(), ctxutil.UserID(c.Request.Context()), req.Share)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	switch {
	case req.Share:
		response.RespondOK(c, gin.H{"hash": res.Hash})
	case res.Deleted:
		response.RespondOK(c, gin.H{"msg": "share link removed"})
	default:
		response.RespondOK(c, gin.H{"msg": "no share link to remove"})
	}
}

func (h *ShareHandler) Resolve(c *gin.Context) {
	brain, err := h.shares.Resolve(c.Request.Context(), c.Param("hash"))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"username": brain.Username, "content": toDocumentViews(brain.Documents)})
}
