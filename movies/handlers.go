package movies

import (
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/cineo-ai/cineo-api/collab"
	"github.com/cineo-ai/cineo-api/credits"
	"github.com/cineo-ai/cineo-api/internal/apperr"
	"github.com/cineo-ai/cineo-api/models"
	"github.com/cineo-ai/cineo-api/processing"
	"github.com/cineo-ai/cineo-api/progress"
	"github.com/cineo-ai/cineo-api/tasks"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Handler struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Ledger    *credits.Ledger
	Broadcast *progress.Broadcaster
	Script    collab.ScriptGenerator
}

func NewHandler(db *gorm.DB, rdb *redis.Client, script collab.ScriptGenerator) *Handler {
	return &Handler{
		DB:        db,
		Redis:     rdb,
		Ledger:    credits.NewLedger(db),
		Broadcast: progress.NewBroadcaster(rdb),
		Script:    script,
	}
}

type CreateMovieRequest struct {
	Title       string `json:"title" binding:"required"`
	Genre       string `json:"genre" binding:"required"`
	Style       string `json:"style"`
	Description string `json:"description"`
}

// CreateMovie plans the script and persists the movie with its scenes
// atomically, then dispatches one generation task per scene. The credit
// check happens before anything is written; a rejection leaves no rows.
func (h *Handler) CreateMovie(c *gin.Context) {
	userID := c.GetUint("user_id")
	var req CreateMovieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Ledger.CheckCreation(userID); err != nil {
		if apperr.IsValidation(err) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": apperr.Reason(err)})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check credits"})
		}
		return
	}

	if req.Style == "" {
		req.Style = "cinematic"
	}

	// Plan never fails; the template fallback guarantees at least 3 scenes.
	specs := processing.Plan(c.Request.Context(), h.Script, req.Title, req.Genre, req.Description)

	movie := models.Movie{
		UserID:      userID,
		Title:       req.Title,
		Genre:       req.Genre,
		Style:       req.Style,
		Description: req.Description,
		Script:      datatypes.JSONSlice[models.SceneSpec](specs),
		Status:      models.MovieStatusDraft,
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&movie).Error; err != nil {
			return err
		}
		for _, spec := range specs {
			scene := models.Scene{
				MovieID:     movie.ID,
				SceneNumber: spec.SceneNumber,
				Title:       spec.Title,
				Description: spec.Description,
				Dialogue:    datatypes.JSONSlice[string](spec.Dialogue),
				Status:      models.SceneStatusPending,
				CreditsUsed: models.SceneCost,
			}
			if err := tx.Create(&scene).Error; err != nil {
				return err
			}
			movie.Scenes = append(movie.Scenes, scene)
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create movie"})
		return
	}

	// Dispatch scene workers. Failures here leave the movie in draft; the
	// janitor will eventually fail it if nothing picks it up.
	dispatched := 0
	for _, scene := range movie.Scenes {
		task := tasks.SceneTaskPayload{SceneID: scene.ID}
		if err := tasks.Enqueue(c.Request.Context(), h.Redis, tasks.QueueSceneGeneration, task); err != nil {
			log.Printf("Error enqueueing scene %d: %v", scene.ID, err)
			continue
		}
		dispatched++
	}
	if dispatched > 0 {
		h.DB.Model(&movie).Update("status", models.MovieStatusGenerating)
		movie.Status = models.MovieStatusGenerating
	}

	h.Broadcast.Publish(c.Request.Context(), progress.Event{
		MovieID: movie.ID,
		Stage:   "plan",
		Status:  movie.Status,
		Percent: 0,
		Message: "movie created",
	})

	c.JSON(http.StatusCreated, movie)
}

func (h *Handler) GetUserMovies(c *gin.Context) {
	userID := c.GetUint("user_id")
	var movies []models.Movie
	if err := h.DB.Where("user_id = ?", userID).Order("created_at desc").Find(&movies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve movies"})
		return
	}

	c.JSON(http.StatusOK, movies)
}

func (h *Handler) GetMovie(c *gin.Context) {
	movie, ok := h.ownedMovie(c)
	if !ok {
		return
	}

	var scenes []models.Scene
	if err := h.DB.Where("movie_id = ?", movie.ID).Order("scene_number asc").Find(&scenes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve scenes"})
		return
	}
	movie.Scenes = scenes

	c.JSON(http.StatusOK, movie)
}

func (h *Handler) GetMovieScenes(c *gin.Context) {
	movie, ok := h.ownedMovie(c)
	if !ok {
		return
	}

	var scenes []models.Scene
	if err := h.DB.Where("movie_id = ?", movie.ID).Order("scene_number asc").Find(&scenes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve scenes"})
		return
	}

	c.JSON(http.StatusOK, scenes)
}

type UpdateSceneRequest struct {
	Action string `json:"action" binding:"required,oneof=accept regenerate"`
}

// UpdateScene handles the per-scene review actions. "accept" marks the
// scene completed as-is; "regenerate" clears its artifacts and sends it
// back through the pipeline.
func (h *Handler) UpdateScene(c *gin.Context) {
	sceneID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scene ID"})
		return
	}

	var req UpdateSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetUint("user_id")
	var scene models.Scene
	if err := h.DB.Joins("Movie").Where("scenes.id = ? AND \"Movie\".user_id = ?", sceneID, userID).
		First(&scene).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Scene not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		}
		return
	}

	switch req.Action {
	case "accept":
		if err := h.DB.Model(&scene).Update("status", models.SceneStatusCompleted).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update scene"})
			return
		}
		scene.Status = models.SceneStatusCompleted

		// The scene just reached a terminal state; accepting the last
		// outstanding scene must fire the 100% event like the worker does.
		if err := h.Broadcast.RecomputeMovieStatus(c.Request.Context(), h.DB, scene.MovieID); err != nil {
			log.Printf("Error recomputing movie %d status: %v", scene.MovieID, err)
		}

	case "regenerate":
		scene.ClearArtifacts()
		scene.Status = models.SceneStatusPending
		err := h.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&scene).Error; err != nil {
				return err
			}
			return tx.Model(&models.Movie{}).Where("id = ?", scene.MovieID).
				Update("status", models.MovieStatusGenerating).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update scene"})
			return
		}

		task := tasks.SceneTaskPayload{SceneID: scene.ID}
		if err := tasks.Enqueue(c.Request.Context(), h.Redis, tasks.QueueSceneGeneration, task); err != nil {
			log.Printf("Error re-enqueueing scene %d: %v", scene.ID, err)
		}
	}

	c.JSON(http.StatusOK, scene)
}

// FinalizeMovie validates that every scene completed and the balance covers
// the projected debit, then enqueues assembly. Finalizing an already
// completed movie is a no-op.
func (h *Handler) FinalizeMovie(c *gin.Context) {
	movie, ok := h.ownedMovie(c)
	if !ok {
		return
	}

	if movie.Status == models.MovieStatusCompleted {
		c.JSON(http.StatusOK, gin.H{"message": "Movie already finalized", "movie": movie})
		return
	}

	var scenes []models.Scene
	if err := h.DB.Where("movie_id = ?", movie.ID).Find(&scenes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve scenes"})
		return
	}

	for _, s := range scenes {
		if s.Status != models.SceneStatusCompleted {
			c.JSON(http.StatusConflict, gin.H{
				"error": "All scenes must be completed before finalizing",
				"scene": s.SceneNumber,
			})
			return
		}
	}

	total := credits.FinalizeTotal(scenes)
	if err := h.Ledger.CheckFinalize(movie.UserID, total); err != nil {
		if apperr.IsValidation(err) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": apperr.Reason(err)})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check credits"})
		}
		return
	}

	task := tasks.AssemblyTaskPayload{MovieID: movie.ID}
	if err := tasks.Enqueue(c.Request.Context(), h.Redis, tasks.QueueMovieAssembly, task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue assembly"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Assembly queued", "total_cost": total})
}

// RegeneratePoster queues a poster regeneration.
func (h *Handler) RegeneratePoster(c *gin.Context) {
	movie, ok := h.ownedMovie(c)
	if !ok {
		return
	}

	task := tasks.PosterTaskPayload{MovieID: movie.ID}
	if err := tasks.Enqueue(c.Request.Context(), h.Redis, tasks.QueueMoviePoster, task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue poster generation"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Poster generation queued"})
}

// CreateTrailer queues a trailer cut from the first completed scenes.
func (h *Handler) CreateTrailer(c *gin.Context) {
	movie, ok := h.ownedMovie(c)
	if !ok {
		return
	}

	var completed int64
	h.DB.Model(&models.Scene{}).
		Where("movie_id = ? AND status = ?", movie.ID, models.SceneStatusCompleted).
		Count(&completed)
	if completed == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "No completed scenes to cut a trailer from"})
		return
	}

	task := tasks.TrailerTaskPayload{MovieID: movie.ID}
	if err := tasks.Enqueue(c.Request.Context(), h.Redis, tasks.QueueMovieTrailer, task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue trailer generation"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Trailer generation queued"})
}

// CancelMovie fails the movie and every non-terminal scene with a
// "cancelled" reason. In-flight generation is abandoned best-effort: a
// worker seeing a non-pending scene skips it.
func (h *Handler) CancelMovie(c *gin.Context) {
	movie, ok := h.ownedMovie(c)
	if !ok {
		return
	}

	if movie.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "Movie is already " + movie.Status})
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Scene{}).
			Where("movie_id = ? AND status IN ?", movie.ID,
				[]string{models.SceneStatusPending, models.SceneStatusGenerating}).
			Updates(map[string]interface{}{
				"status":         models.SceneStatusFailed,
				"failure_reason": "cancelled",
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Movie{}).Where("id = ?", movie.ID).
			Update("status", models.MovieStatusFailed).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel movie"})
		return
	}

	h.Broadcast.Publish(c.Request.Context(), progress.Event{
		MovieID: movie.ID,
		Stage:   "movie",
		Status:  models.MovieStatusFailed,
		Message: "cancelled",
	})

	c.JSON(http.StatusOK, gin.H{"message": "Movie cancelled"})
}

// StreamEvents serves the movie's progress events over SSE. Subscribing
// requires ownership, verified here before joining the channel. There is no
// event history: clients resynchronize by fetching the movie first.
func (h *Handler) StreamEvents(c *gin.Context) {
	movie, ok := h.ownedMovie(c)
	if !ok {
		return
	}

	events, cancel := h.Broadcast.Subscribe(c.Request.Context(), movie.ID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-events:
			if !open {
				return false
			}
			c.SSEvent("progress", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GetCredits returns the authenticated user's balance.
func (h *Handler) GetCredits(c *gin.Context) {
	userID := c.GetUint("user_id")
	balance, err := h.Ledger.Balance(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"credits": balance})
}

// ownedMovie loads the movie in the :id path param, scoped to the
// authenticated user. Writes the error response itself on failure.
func (h *Handler) ownedMovie(c *gin.Context) (*models.Movie, bool) {
	movieID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid movie ID"})
		return nil, false
	}

	userID := c.GetUint("user_id")
	var movie models.Movie
	if err := h.DB.First(&movie, "id = ? AND user_id = ?", movieID, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Movie not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		}
		return nil, false
	}
	return &movie, true
}
