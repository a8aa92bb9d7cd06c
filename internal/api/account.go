package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/sakura-oj/sakuraoj/internal/auth"
	"github.com/sakura-oj/sakuraoj/internal/database"
	"github.com/sakura-oj/sakuraoj/internal/database/models"
	"github.com/sakura-oj/sakuraoj/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (h *Handler) register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	fields := make(map[string][]string)
	if req.Username == "" {
		fields["username"] = append(fields["username"], "username is required")
	}
	if req.Email == "" {
		fields["email"] = append(fields["email"], "email is required")
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		fields["password"] = append(fields["password"], err.Error())
	}

	if req.Username != "" {
		_, err := database.GetUserByUsername(h.db, req.Username)
		if err == nil {
			fields["username"] = append(fields["username"], "username already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusInternalServerError, "database error")
			return
		}
	}
	if req.Email != "" {
		_, err := database.GetUserByEmail(h.db, req.Email)
		if err == nil {
			fields["email"] = append(fields["email"], "email already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusInternalServerError, "database error")
			return
		}
	}

	if len(fields) > 0 {
		util.ValidationError(c, fields)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to hash password")
		return
	}

	newUser := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
	}
	profile, err := database.CreateUserWithProfile(h.db, &newUser)
	if err != nil {
		// The unique indexes catch races with a concurrent registration.
		// The pre-checks above already passed, so the colliding field is
		// unknown here; report it as a non-field error.
		util.ValidationError(c, map[string][]string{
			"non_field_errors": {"username or email already exists"},
		})
		return
	}

	zap.S().Infof("new user registered: %s (profile %d)", newUser.Username, profile.ID)
	util.Created(c, gin.H{
		"id":       profile.ID,
		"username": newUser.Username,
	}, "User registered successfully")
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	user, err := database.GetUserByUsername(h.db, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusUnauthorized, "invalid username or password")
		} else {
			util.Error(c, http.StatusInternalServerError, "database error")
		}
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		util.Error(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := auth.GenerateJWT(user.ID, h.cfg.Auth.JWT.Secret, h.cfg.Auth.JWT.ExpireHours)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to generate JWT")
		return
	}
	util.Success(c, gin.H{"token": token}, "Login successful")
}

func (h *Handler) userStatus(c *gin.Context) {
	user, profile, ok := h.currentProfile(c)
	if !ok {
		return
	}

	solved, err := database.SolvedProblemCodes(h.db, profile.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	var rating *int
	if latest, err := database.GetLatestRating(h.db, profile.ID); err == nil {
		rating = &latest.Rating
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	history, err := database.GetContestHistory(h.db, profile.ID, time.Now())
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	orgs, err := database.GetOrganizationIDs(h.db, profile.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	util.Success(c, gin.H{
		"id":                 profile.ID,
		"username":           user.Username,
		"points":             profile.Points,
		"performance_points": profile.PerformancePoints,
		"problem_count":      profile.ProblemCount,
		"solved_problems":    solved,
		"rank":               profile.DisplayRank,
		"rating":             rating,
		"organizations":      orgs,
		"contests":           history,
	}, "ok")
}

// problemProgress reports which problems the user has completed and which
// are still only attempted, from the completion index.
func (h *Handler) problemProgress(c *gin.Context) {
	_, profile, ok := h.currentProfile(c)
	if !ok {
		return
	}

	completed, err := h.index.UserCompleted(c.Request.Context(), profile.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	attempted, err := h.index.UserAttempted(c.Request.Context(), profile.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	util.Success(c, gin.H{
		"completed": completed,
		"attempted": attempted,
	}, "ok")
}

// contestProgress is problemProgress scoped to the user's live
// participation in one contest.
func (h *Handler) contestProgress(c *gin.Context) {
	_, profile, ok := h.currentProfile(c)
	if !ok {
		return
	}

	contest, err := database.GetContestByKey(h.db, c.Param("key"))
	if err != nil {
		util.Error(c, http.StatusNotFound, "contest not found")
		return
	}

	var participation models.ContestParticipation
	err = h.db.Where("profile_id = ? AND contest_id = ? AND virtual = ?",
		profile.ID, contest.ID, models.ParticipationLive).
		First(&participation).Error
	if err != nil {
		util.Error(c, http.StatusNotFound, "no live participation in this contest")
		return
	}

	completed, err := h.index.ContestCompleted(c.Request.Context(), participation.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	attempted, err := h.index.ContestAttempted(c.Request.Context(), participation.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	util.Success(c, gin.H{
		"participation": participation.ID,
		"completed":     completed,
		"attempted":     attempted,
	}, "ok")
}
