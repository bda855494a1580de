package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/voting"
)

// VoteService resolves votes and answers vote queries.
type VoteService interface {
	SubmitVote(ctx context.Context, userID uint, tt voting.TargetType, targetID uint, vt voting.VoteType) (voting.Outcome, error)
	UserVote(ctx context.Context, userID uint, tt voting.TargetType, targetID uint) (voting.State, error)
	Stats(ctx context.Context, tt voting.TargetType, targetID uint) (voting.Stats, error)
	History(ctx context.Context, userID uint, offset, limit int) ([]voting.Entry, int64, error)
}

type VoteHandler struct {
	votes VoteService
}

func NewVoteHandler(votes VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

// Vote creates, toggles off or switches the caller's vote on a question or answer
func (h *VoteHandler) Vote(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "targetType, targetId and voteType are required")
		return
	}
	tt, err := voting.ParseTargetType(input.TargetType)
	if err != nil {
		badRequest(c, "Invalid target type")
		return
	}
	vt, err := voting.ParseVoteType(input.VoteType)
	if err != nil {
		badRequest(c, "Invalid vote type")
		return
	}

	out, err := h.votes.SubmitVote(c.Request.Context(), user.ID, tt, input.TargetID, vt)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   out.Message(),
		"voteCount": out.Votes,
		"userVote":  userVoteJSON(out.State),
	})
}

// GetUserVote returns the caller's vote on one target
func (h *VoteHandler) GetUserVote(c *gin.Context) {
	user := middleware.CurrentUser(c)
	tt, id, ok := parseTarget(c)
	if !ok {
		return
	}

	state, err := h.votes.UserVote(c.Request.Context(), user.ID, tt, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userVote": userVoteJSON(state)})
}

// GetVoteStats counts the ledger entries of one target
func (h *VoteHandler) GetVoteStats(c *gin.Context) {
	tt, id, ok := parseTarget(c)
	if !ok {
		return
	}

	stats, err := h.votes.Stats(c.Request.Context(), tt, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetMyVotes lists the caller's votes, newest first
func (h *VoteHandler) GetMyVotes(c *gin.Context) {
	user := middleware.CurrentUser(c)
	p := parsePage(c, 20, 100)

	entries, total, err := h.votes.History(c.Request.Context(), user.ID, p.Offset(), p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	votes := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		votes = append(votes, gin.H{
			"id":         e.ID,
			"targetType": e.TargetType.String(),
			"targetId":   e.TargetID,
			"voteType":   e.VoteType.String(),
			"createdAt":  e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"votes":      votes,
		"pagination": pagination(p, total, "totalVotes"),
	})
}

func parseTarget(c *gin.Context) (voting.TargetType, uint, bool) {
	tt, err := voting.ParseTargetType(c.Param("targetType"))
	if err != nil {
		badRequest(c, "Invalid target type")
		return 0, 0, false
	}
	id, err := strconv.ParseUint(c.Param("targetId"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid targetId")
		return 0, 0, false
	}
	return tt, uint(id), true
}

// userVoteJSON renders the vote state the way the web client expects: null
// when the user has no vote.
func userVoteJSON(s voting.State) any {
	if s == voting.StateNone {
		return nil
	}
	return s.String()
}
