package api

import (
	"net/http"

	"github.com/sakura-oj/sakuraoj/internal/config"
	"github.com/sakura-oj/sakuraoj/internal/database"
	"github.com/sakura-oj/sakuraoj/internal/database/models"
	"github.com/sakura-oj/sakuraoj/internal/pubsub"
	"github.com/sakura-oj/sakuraoj/internal/stats"
	"github.com/sakura-oj/sakuraoj/internal/submission"
	"github.com/sakura-oj/sakuraoj/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler holds all dependencies for the API handlers.
type Handler struct {
	cfg      *config.Config
	db       *gorm.DB
	index    *stats.Index
	admitter *submission.Admitter
	broker   *pubsub.Broker
}

func NewHandler(
	cfg *config.Config,
	db *gorm.DB,
	index *stats.Index,
	admitter *submission.Admitter,
	broker *pubsub.Broker,
) *Handler {
	return &Handler{
		cfg:      cfg,
		db:       db,
		index:    index,
		admitter: admitter,
		broker:   broker,
	}
}

// NewRouter creates and configures the Gin engine.
func NewRouter(
	cfg *config.Config,
	db *gorm.DB,
	index *stats.Index,
	admitter *submission.Admitter,
	broker *pubsub.Broker,
) *gin.Engine {
	r := gin.Default()
	r.Use(CORSMiddleware(cfg.CORS))

	h := NewHandler(cfg, db, index, admitter, broker)

	r.POST("/register/", h.register)
	r.POST("/login/", h.login)
	r.POST("/password/send-reset/", h.sendPasswordReset)
	r.POST("/password/reset/", h.resetPassword)

	r.GET("/problems/", h.listProblems)
	r.GET("/problems/hot/", h.hotProblems)
	r.GET("/problems/:code/", h.getProblem)
	r.GET("/contests/", h.listContests)
	r.GET("/contests/:key/", h.getContest)
	r.GET("/languages/", h.listLanguages)
	r.GET("/submissions/results/", h.resultTable)

	judgeGroup := r.Group("/webhook")
	judgeGroup.Use(JudgeAuthMiddleware(cfg.Judge.Token))
	{
		judgeGroup.POST("/judge/", h.judgeCallback)
	}

	authed := r.Group("/")
	authed.Use(AuthMiddleware(cfg.Auth.JWT.Secret))
	{
		authed.POST("/submit/", h.submit)
		authed.GET("/submitstatus/:id/", h.submissionStatus)
		authed.GET("/userstatus/", h.userStatus)
		authed.GET("/userprogress/", h.problemProgress)
		authed.GET("/contests/:key/progress/", h.contestProgress)
		authed.GET("/ws/submissions/:id/", h.watchSubmission)
	}

	return r
}

// currentProfile resolves the authenticated user and its profile from the
// context set by AuthMiddleware.
func (h *Handler) currentProfile(c *gin.Context) (*models.User, *models.Profile, bool) {
	userID := c.GetUint("userID")
	user, err := database.GetUserByID(h.db, userID)
	if err != nil {
		util.Error(c, http.StatusNotFound, "user not found")
		return nil, nil, false
	}
	profile, err := database.GetProfileByUserID(h.db, user.ID)
	if err != nil {
		util.Error(c, http.StatusNotFound, "profile not found")
		return nil, nil, false
	}
	return user, profile, true
}
