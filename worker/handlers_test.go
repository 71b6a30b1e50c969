package worker

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/cineo-ai/cineo-api/assembly"
	"github.com/cineo-ai/cineo-api/collab"
	"github.com/cineo-ai/cineo-api/internal/apperr"
	"github.com/cineo-ai/cineo-api/models"
	"github.com/cineo-ai/cineo-api/progress"
	"github.com/cineo-ai/cineo-api/tasks"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// --- fakes ---

type fakeImage struct {
	ref string
	err error
}

func (f *fakeImage) Generate(ctx context.Context, prompt, style string) (string, error) {
	return f.ref, f.err
}

type fakeVideo struct {
	ref   string
	err   error
	calls int
}

func (f *fakeVideo) Animate(ctx context.Context, imageRef, prompt string, frameCount int) (string, error) {
	f.calls++
	return f.ref, f.err
}

type fakeAudio struct {
	speech string
	music  string
	err    error
	calls  int
}

func (f *fakeAudio) Speech(ctx context.Context, text string) (string, error) {
	f.calls++
	return f.speech, f.err
}

func (f *fakeAudio) Music(ctx context.Context, desc models.MusicDescriptor) (string, error) {
	return f.music, f.err
}

// cancellingVideo cancels the movie out from under the worker while the
// collaborator call is in flight, then reports success.
type cancellingVideo struct {
	db      *gorm.DB
	movieID uint
	ref     string
}

func (f *cancellingVideo) Animate(ctx context.Context, imageRef, prompt string, frameCount int) (string, error) {
	f.db.Model(&models.Scene{}).
		Where("movie_id = ? AND status IN ?", f.movieID,
			[]string{models.SceneStatusPending, models.SceneStatusGenerating}).
		Updates(map[string]interface{}{
			"status":         models.SceneStatusFailed,
			"failure_reason": "cancelled",
		})
	f.db.Model(&models.Movie{}).Where("id = ?", f.movieID).
		Update("status", models.MovieStatusFailed)
	return f.ref, nil
}

type fakeStitcher struct {
	out            string
	err            error
	calls          int
	lastBackground string
	lastPlan       *assembly.Plan
}

func (f *fakeStitcher) Stitch(ctx context.Context, plan *assembly.Plan, backgroundRef string) (string, error) {
	f.calls++
	f.lastPlan = plan
	f.lastBackground = backgroundRef
	return f.out, f.err
}

// --- helpers ---

func newTestProcessor(t *testing.T, collabs *collab.Set, stitcher assembly.Stitcher) *Processor {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Movie{}, &models.Scene{}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	p, err := NewProcessor(db, rdb, collabs, progress.NewBroadcaster(rdb), stitcher, 2)
	require.NoError(t, err)
	return p
}

func workingCollabs() *collab.Set {
	return &collab.Set{
		Script: collab.NewTemplateScriptGenerator(),
		Image:  &fakeImage{ref: "storyboard.png"},
		Video:  &fakeVideo{ref: "clip.mp4"},
		Audio:  &fakeAudio{speech: "speech.mp3", music: "theme.mp3"},
	}
}

func seedMovie(t *testing.T, db *gorm.DB, sceneCount int) *models.Movie {
	t.Helper()

	user := &models.User{Email: "owner@example.com", PasswordHash: "x", Credits: 300}
	require.NoError(t, db.Create(user).Error)

	movie := &models.Movie{
		UserID: user.ID,
		Title:  "Dawn",
		Genre:  "sci-fi",
		Style:  "cinematic",
		Status: models.MovieStatusGenerating,
	}
	require.NoError(t, db.Create(movie).Error)

	for i := 1; i <= sceneCount; i++ {
		scene := &models.Scene{
			MovieID:     movie.ID,
			SceneNumber: i,
			Title:       "Scene",
			Description: "explorers land on a forest moon",
			Status:      models.SceneStatusPending,
			CreditsUsed: models.SceneCost,
		}
		require.NoError(t, db.Create(scene).Error)
	}
	return movie
}

func scenePayload(t *testing.T, sceneID uint) string {
	t.Helper()
	payload, err := tasks.Marshal(tasks.SceneTaskPayload{SceneID: sceneID})
	require.NoError(t, err)
	return payload
}

func loadScene(t *testing.T, db *gorm.DB, movieID uint, number int) *models.Scene {
	t.Helper()
	var scene models.Scene
	require.NoError(t, db.Where("movie_id = ? AND scene_number = ?", movieID, number).First(&scene).Error)
	return &scene
}

// --- scene generation ---

func TestHandleSceneGenerationCompletesScene(t *testing.T) {
	p := newTestProcessor(t, workingCollabs(), &fakeStitcher{out: "final.mp4"})
	movie := seedMovie(t, p.DB, 1)
	scene := loadScene(t, p.DB, movie.ID, 1)

	require.NoError(t, p.HandleSceneGeneration(context.Background(), scenePayload(t, scene.ID)))

	scene = loadScene(t, p.DB, movie.ID, 1)
	assert.Equal(t, models.SceneStatusCompleted, scene.Status)
	assert.Equal(t, "storyboard.png", scene.StoryboardURL)
	assert.Equal(t, "clip.mp4", scene.VideoURL)
	assert.Equal(t, "speech.mp3", scene.AudioURL)

	// Mood heuristics ran: "forest" puts the scene in the peaceful group.
	assert.Equal(t, "peaceful", scene.Music.Data().Mood)
	assert.Equal(t, "sci-fi", scene.Music.Data().Genre)

	// The movie is not completed by scene work alone; assembly settles it.
	var reloaded models.Movie
	require.NoError(t, p.DB.First(&reloaded, movie.ID).Error)
	assert.Equal(t, models.MovieStatusGenerating, reloaded.Status)
}

func TestHandleSceneGenerationSkipsNonPendingScene(t *testing.T) {
	video := &fakeVideo{ref: "clip.mp4"}
	collabs := workingCollabs()
	collabs.Video = video
	p := newTestProcessor(t, collabs, &fakeStitcher{})
	movie := seedMovie(t, p.DB, 1)
	scene := loadScene(t, p.DB, movie.ID, 1)
	require.NoError(t, p.DB.Model(scene).Update("status", models.SceneStatusFailed).Error)

	require.NoError(t, p.HandleSceneGeneration(context.Background(), scenePayload(t, scene.ID)))

	assert.Zero(t, video.calls)
}

func TestStoryboardFailureFallsBackToPlaceholder(t *testing.T) {
	collabs := workingCollabs()
	collabs.Image = &fakeImage{err: assert.AnError}
	p := newTestProcessor(t, collabs, &fakeStitcher{})
	movie := seedMovie(t, p.DB, 1)
	scene := loadScene(t, p.DB, movie.ID, 1)

	require.NoError(t, p.HandleSceneGeneration(context.Background(), scenePayload(t, scene.ID)))

	// The scene still completes: a placeholder storyboard stands in and the
	// video and audio sub-steps run as usual.
	scene = loadScene(t, p.DB, movie.ID, 1)
	assert.Equal(t, models.SceneStatusCompleted, scene.Status)
	assert.Contains(t, scene.StoryboardURL, "picsum.photos")
	assert.Equal(t, "clip.mp4", scene.VideoURL)
}

func TestCancelDuringVideoKeepsSceneFailed(t *testing.T) {
	collabs := workingCollabs()
	audio := &fakeAudio{speech: "speech.mp3", music: "theme.mp3"}
	collabs.Audio = audio
	p := newTestProcessor(t, collabs, &fakeStitcher{})
	movie := seedMovie(t, p.DB, 1)
	scene := loadScene(t, p.DB, movie.ID, 1)

	collabs.Video = &cancellingVideo{db: p.DB, movieID: movie.ID, ref: "clip.mp4"}
	require.NoError(t, p.HandleSceneGeneration(context.Background(), scenePayload(t, scene.ID)))

	// Failed is terminal: the in-flight worker must not resurrect the
	// cancelled scene, and the audio sub-step must never run.
	scene = loadScene(t, p.DB, movie.ID, 1)
	assert.Equal(t, models.SceneStatusFailed, scene.Status)
	assert.Equal(t, "cancelled", scene.FailureReason)
	assert.Empty(t, scene.VideoURL)
	assert.Empty(t, scene.AudioURL)
	assert.Zero(t, audio.calls)

	var reloaded models.Movie
	require.NoError(t, p.DB.First(&reloaded, movie.ID).Error)
	assert.Equal(t, models.MovieStatusFailed, reloaded.Status)
}

func TestVideoFailureRecordsReason(t *testing.T) {
	collabs := workingCollabs()
	collabs.Video = &fakeVideo{err: assert.AnError}
	p := newTestProcessor(t, collabs, &fakeStitcher{})
	movie := seedMovie(t, p.DB, 1)
	scene := loadScene(t, p.DB, movie.ID, 1)

	err := p.HandleSceneGeneration(context.Background(), scenePayload(t, scene.ID))
	require.Error(t, err)
	assert.True(t, apperr.IsCollaborator(err))

	scene = loadScene(t, p.DB, movie.ID, 1)
	assert.Equal(t, models.SceneStatusFailed, scene.Status)
	assert.Contains(t, scene.FailureReason, "video failed")
}

func TestVideoTimeoutFailsSceneAndMovie(t *testing.T) {
	collabs := workingCollabs()
	collabs.Video = &fakeVideo{err: context.DeadlineExceeded}
	p := newTestProcessor(t, collabs, &fakeStitcher{})
	movie := seedMovie(t, p.DB, 3)

	// Scene 1 already finished with its artifacts.
	scene1 := loadScene(t, p.DB, movie.ID, 1)
	require.NoError(t, p.DB.Model(scene1).Updates(map[string]interface{}{
		"status":         models.SceneStatusCompleted,
		"storyboard_url": "s1.png",
		"video_url":      "v1.mp4",
		"audio_url":      "a1.mp3",
	}).Error)

	scene2 := loadScene(t, p.DB, movie.ID, 2)
	err := p.HandleSceneGeneration(context.Background(), scenePayload(t, scene2.ID))
	require.Error(t, err)

	scene2 = loadScene(t, p.DB, movie.ID, 2)
	assert.Equal(t, models.SceneStatusFailed, scene2.Status)
	assert.Equal(t, "timeout", scene2.FailureReason)
	// The storyboard sub-step succeeded and its artifact stays persisted.
	assert.Equal(t, "storyboard.png", scene2.StoryboardURL)
	assert.Empty(t, scene2.VideoURL)

	var reloaded models.Movie
	require.NoError(t, p.DB.First(&reloaded, movie.ID).Error)
	assert.Equal(t, models.MovieStatusFailed, reloaded.Status)

	// Scene 1 keeps everything it had already persisted.
	scene1 = loadScene(t, p.DB, movie.ID, 1)
	assert.Equal(t, "v1.mp4", scene1.VideoURL)
	assert.Equal(t, "a1.mp3", scene1.AudioURL)
}

// --- assembly ---

func completeAllScenes(t *testing.T, db *gorm.DB, movieID uint) {
	t.Helper()
	require.NoError(t, db.Model(&models.Scene{}).Where("movie_id = ?", movieID).
		Updates(map[string]interface{}{
			"status":    models.SceneStatusCompleted,
			"video_url": "clip.mp4",
			"audio_url": "audio.mp3",
		}).Error)
}

func assemblyPayload(t *testing.T, movieID uint) string {
	t.Helper()
	payload, err := tasks.Marshal(tasks.AssemblyTaskPayload{MovieID: movieID})
	require.NoError(t, err)
	return payload
}

func TestAssemblyCompletesMovieAndDebitsOnce(t *testing.T) {
	stitcher := &fakeStitcher{out: "final.mp4"}
	p := newTestProcessor(t, workingCollabs(), stitcher)
	movie := seedMovie(t, p.DB, 3)
	completeAllScenes(t, p.DB, movie.ID)

	require.NoError(t, p.HandleMovieAssembly(context.Background(), assemblyPayload(t, movie.ID)))

	var reloaded models.Movie
	require.NoError(t, p.DB.First(&reloaded, movie.ID).Error)
	assert.Equal(t, models.MovieStatusCompleted, reloaded.Status)
	assert.Equal(t, "final.mp4", reloaded.VideoURL)
	assert.NotEmpty(t, reloaded.PosterURL)
	// 3 scenes at 15 plus the 50 surcharge.
	assert.Equal(t, int64(95), reloaded.CreditsUsed)

	balance, err := p.Ledger.Balance(movie.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(205), balance)

	// A duplicate finalize is a no-op: no second stitch, no second debit.
	require.NoError(t, p.HandleMovieAssembly(context.Background(), assemblyPayload(t, movie.ID)))
	assert.Equal(t, 1, stitcher.calls)

	balance, err = p.Ledger.Balance(movie.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(205), balance)
}

func TestAssemblyOrdersClipsBySceneNumber(t *testing.T) {
	stitcher := &fakeStitcher{out: "final.mp4"}
	p := newTestProcessor(t, workingCollabs(), stitcher)
	movie := seedMovie(t, p.DB, 3)
	// Scenes complete in reverse order; the plan must not care.
	for _, n := range []int{3, 2, 1} {
		scene := loadScene(t, p.DB, movie.ID, n)
		require.NoError(t, p.DB.Model(scene).Updates(map[string]interface{}{
			"status":    models.SceneStatusCompleted,
			"video_url": "clip.mp4",
		}).Error)
	}

	require.NoError(t, p.HandleMovieAssembly(context.Background(), assemblyPayload(t, movie.ID)))

	require.NotNil(t, stitcher.lastPlan)
	require.Len(t, stitcher.lastPlan.Clips, 3)
	for i, clip := range stitcher.lastPlan.Clips {
		assert.Equal(t, i+1, clip.SceneNumber)
	}
	// The final cut mixes no extra background track.
	assert.Empty(t, stitcher.lastBackground)
}

func TestAssemblyRefusesNonTerminalScenes(t *testing.T) {
	p := newTestProcessor(t, workingCollabs(), &fakeStitcher{})
	movie := seedMovie(t, p.DB, 2)
	scene := loadScene(t, p.DB, movie.ID, 1)
	require.NoError(t, p.DB.Model(scene).Updates(map[string]interface{}{
		"status":    models.SceneStatusCompleted,
		"video_url": "clip.mp4",
	}).Error)
	// Scene 2 stays pending.

	err := p.HandleMovieAssembly(context.Background(), assemblyPayload(t, movie.ID))
	require.Error(t, err)

	var reloaded models.Movie
	require.NoError(t, p.DB.First(&reloaded, movie.ID).Error)
	assert.Equal(t, models.MovieStatusGenerating, reloaded.Status)
}

func TestAssemblyFailureFailsMovieWithoutDebit(t *testing.T) {
	stitcher := &fakeStitcher{err: assert.AnError}
	p := newTestProcessor(t, workingCollabs(), stitcher)
	movie := seedMovie(t, p.DB, 2)
	completeAllScenes(t, p.DB, movie.ID)

	err := p.HandleMovieAssembly(context.Background(), assemblyPayload(t, movie.ID))
	require.Error(t, err)

	var reloaded models.Movie
	require.NoError(t, p.DB.First(&reloaded, movie.ID).Error)
	assert.Equal(t, models.MovieStatusFailed, reloaded.Status)
	assert.Empty(t, reloaded.VideoURL)
	assert.Zero(t, reloaded.CreditsUsed)

	balance, err := p.Ledger.Balance(movie.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)

	// Per-scene artifacts survive the failed assembly untouched.
	scene := loadScene(t, p.DB, movie.ID, 1)
	assert.Equal(t, "clip.mp4", scene.VideoURL)
}

// --- poster and trailer ---

func TestHandleMoviePosterUpdatesArtifact(t *testing.T) {
	collabs := workingCollabs()
	collabs.Image = &fakeImage{ref: "poster.png"}
	p := newTestProcessor(t, collabs, &fakeStitcher{})
	movie := seedMovie(t, p.DB, 1)

	payload, err := tasks.Marshal(tasks.PosterTaskPayload{MovieID: movie.ID})
	require.NoError(t, err)
	require.NoError(t, p.HandleMoviePoster(context.Background(), payload))

	var reloaded models.Movie
	require.NoError(t, p.DB.First(&reloaded, movie.ID).Error)
	assert.Equal(t, "poster.png", reloaded.PosterURL)
}

func TestPosterFailureFallsBackToPlaceholder(t *testing.T) {
	collabs := workingCollabs()
	collabs.Image = &fakeImage{err: assert.AnError}
	p := newTestProcessor(t, collabs, &fakeStitcher{})
	movie := seedMovie(t, p.DB, 1)

	payload, err := tasks.Marshal(tasks.PosterTaskPayload{MovieID: movie.ID})
	require.NoError(t, err)
	require.NoError(t, p.HandleMoviePoster(context.Background(), payload))

	var reloaded models.Movie
	require.NoError(t, p.DB.First(&reloaded, movie.ID).Error)
	assert.Contains(t, reloaded.PosterURL, "picsum.photos")
}

func TestHandleMovieTrailerUsesLeadingScenesWithTheme(t *testing.T) {
	stitcher := &fakeStitcher{out: "trailer.mp4"}
	p := newTestProcessor(t, workingCollabs(), stitcher)
	movie := seedMovie(t, p.DB, 5)
	completeAllScenes(t, p.DB, movie.ID)

	payload, err := tasks.Marshal(tasks.TrailerTaskPayload{MovieID: movie.ID})
	require.NoError(t, err)
	require.NoError(t, p.HandleMovieTrailer(context.Background(), payload))

	var reloaded models.Movie
	require.NoError(t, p.DB.First(&reloaded, movie.ID).Error)
	assert.Equal(t, "trailer.mp4", reloaded.TrailerURL)

	// Only the first three completed scenes make the cut, over the theme.
	require.NotNil(t, stitcher.lastPlan)
	assert.Len(t, stitcher.lastPlan.Clips, 3)
	assert.Equal(t, "theme.mp3", stitcher.lastBackground)
}
