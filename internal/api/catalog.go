package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sakura-oj/sakuraoj/internal/database"
	"github.com/sakura-oj/sakuraoj/internal/util"
	"github.com/gin-gonic/gin"
)

func (h *Handler) listProblems(c *gin.Context) {
	problems, err := database.GetPublicProblems(h.db)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, problems, "ok")
}

func (h *Handler) getProblem(c *gin.Context) {
	problem, err := database.GetProblemByCode(h.db, c.Param("code"))
	if err != nil {
		util.Error(c, http.StatusNotFound, "problem not found")
		return
	}
	util.Success(c, problem, "ok")
}

func (h *Handler) hotProblems(c *gin.Context) {
	duration := 24 * time.Hour
	if days := c.Query("days"); days != "" {
		if d, err := strconv.Atoi(days); err == nil && d > 0 {
			duration = time.Duration(d) * 24 * time.Hour
		}
	}
	limit := 10
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	problems, err := h.index.HotProblems(c.Request.Context(), duration, limit)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, problems, "ok")
}

func (h *Handler) listContests(c *gin.Context) {
	contests, err := database.GetAllContests(h.db)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, contests, "ok")
}

func (h *Handler) getContest(c *gin.Context) {
	contest, err := database.GetContestByKey(h.db, c.Param("key"))
	if err != nil {
		util.Error(c, http.StatusNotFound, "contest not found")
		return
	}
	util.Success(c, contest, "ok")
}

func (h *Handler) listLanguages(c *gin.Context) {
	languages, err := database.GetAllLanguages(h.db)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, languages, "ok")
}
