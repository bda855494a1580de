package handlers

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/database/dbtest"
	"github.com/emilythestrangee/stackit/backend/internal/lifecycle"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/notify"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	db, teardown, err := dbtest.Start(context.Background())
	if err != nil {
		log.Printf("postgres tests disabled: %v", err)
		os.Exit(m.Run())
	}
	testDB = db

	code := m.Run()
	if err := teardown(context.Background()); err != nil {
		log.Fatalf("could not teardown postgres container: %v", err)
	}
	os.Exit(code)
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres not available")
	}
	require.NoError(t, dbtest.Truncate(testDB))
	return testDB
}

func seedUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()
	u := models.User{Name: name, Email: name + "@stackit.test", Password: "x", Role: role, IsActive: true}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// contentRouter wires the question, answer, notification and admin handlers
// onto a real database, acting as the user with the given id and role.
func contentRouter(db *gorm.DB, userID uint, role string) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := notify.NewService(db, logger)
	reviewer := lifecycle.NewService(store.New(db).Lifecycle(), lifecycle.WithDispatcher(notifier))

	q := NewQuestionHandler(db)
	a := NewAnswerHandler(db, reviewer, notifier)
	n := NewNotificationHandler(db, notifier)
	adm := NewAdminHandler(db, config.Moderation{FlagThreshold: -2}, logger)

	r := gin.New()
	r.Use(asUser(userID, role))
	r.POST("/questions", q.CreateQuestion)
	r.DELETE("/questions/:id", q.DeleteQuestion)
	r.POST("/answers/question/:questionId", a.CreateAnswer)
	r.PATCH("/answers/:id/accept", a.AcceptAnswer)
	r.PATCH("/answers/:id/reject", a.RejectAnswer)
	r.DELETE("/answers/:id", a.DeleteAnswer)
	r.GET("/notifications", n.ListNotifications)
	r.GET("/notifications/unread-count", n.UnreadCount)
	r.PATCH("/notifications/mark-all-read", n.MarkAllAsRead)
	r.POST("/notifications/admin-message", n.SendAdminMessage)
	r.PATCH("/admin/users/:id/toggle-ban", adm.ToggleBan)
	r.GET("/admin/flagged-content", adm.FlaggedContent)
	r.DELETE("/admin/content/:type/:id", adm.DeleteContent)
	r.GET("/admin/dashboard", adm.Dashboard)
	return r
}

func createQuestion(t *testing.T, r http.Handler, tags ...string) uint {
	t.Helper()
	code, body := do(t, r, http.MethodPost, "/questions", gin.H{
		"title": "How do I drain a channel?", "description": "<p>details</p>", "tags": tags,
	})
	require.Equal(t, http.StatusCreated, code, body)
	return uint(body["question"].(map[string]any)["id"].(float64))
}

func createAnswer(t *testing.T, r http.Handler, questionID uint) uint {
	t.Helper()
	code, body := do(t, r, http.MethodPost, "/answers/question/"+itoa(questionID), gin.H{"content": "<p>range over it</p>"})
	require.Equal(t, http.StatusCreated, code, body)
	return uint(body["answer"].(map[string]any)["id"].(float64))
}

func TestAnswerFlow_Notifications(t *testing.T) {
	db := setupDB(t)
	asker := seedUser(t, db, "asker", models.RoleUser)
	helper := seedUser(t, db, "helper", models.RoleUser)

	asAsker := contentRouter(db, asker.ID, models.RoleUser)
	asHelper := contentRouter(db, helper.ID, models.RoleUser)

	qid := createQuestion(t, asAsker, "Go", "channels", "go")
	aid := createAnswer(t, asHelper, qid)
	createAnswer(t, asAsker, qid)

	var question models.Question
	require.NoError(t, db.Preload("Tags").First(&question, qid).Error)
	assert.Len(t, question.AnswerIDs, 2)
	assert.Len(t, question.Tags, 2)

	_, body := do(t, asAsker, http.MethodGet, "/notifications/unread-count", nil)
	assert.EqualValues(t, 1, body["unreadCount"])

	code, _ := do(t, asAsker, http.MethodPatch, "/answers/"+itoa(aid)+"/accept", nil)
	require.Equal(t, http.StatusOK, code)

	_, body = do(t, asHelper, http.MethodGet, "/notifications", nil)
	notifications := body["notifications"].([]any)
	require.Len(t, notifications, 1)
	assert.Equal(t, string(notify.TypeAnswerAccepted), notifications[0].(map[string]any)["type"])

	_, body = do(t, asAsker, http.MethodPatch, "/notifications/mark-all-read", nil)
	assert.EqualValues(t, 1, body["updated"])
	_, body = do(t, asAsker, http.MethodGet, "/notifications/unread-count", nil)
	assert.EqualValues(t, 0, body["unreadCount"])
}

func TestDeleteAcceptedAnswer_LeavesNoDrift(t *testing.T) {
	db := setupDB(t)
	asker := seedUser(t, db, "asker", models.RoleUser)
	helper := seedUser(t, db, "helper", models.RoleUser)
	admin := seedUser(t, db, "admin", models.RoleAdmin)

	asAsker := contentRouter(db, asker.ID, models.RoleUser)
	asHelper := contentRouter(db, helper.ID, models.RoleUser)
	asAdmin := contentRouter(db, admin.ID, models.RoleAdmin)

	qid := createQuestion(t, asAsker)
	byAuthor := createAnswer(t, asHelper, qid)
	byAdmin := createAnswer(t, asHelper, qid)
	rejected := createAnswer(t, asHelper, qid)

	code, _ := do(t, asAsker, http.MethodPatch, "/answers/"+itoa(byAuthor)+"/accept", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, asHelper, http.MethodDelete, "/answers/"+itoa(byAuthor), nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, asAsker, http.MethodPatch, "/answers/"+itoa(byAdmin)+"/accept", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, asAdmin, http.MethodDelete, "/admin/content/answer/"+itoa(byAdmin), nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, asAsker, http.MethodPatch, "/answers/"+itoa(rejected)+"/reject", gin.H{"reason": "spam"})
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, asHelper, http.MethodDelete, "/answers/"+itoa(rejected), nil)
	require.Equal(t, http.StatusOK, code)

	for _, id := range []uint{byAuthor, byAdmin} {
		var a models.Answer
		require.NoError(t, db.First(&a, id).Error)
		assert.False(t, a.IsActive)
		assert.False(t, a.IsAccepted)
		assert.Equal(t, lifecycle.StatusPending.String(), a.Status)
	}
	var r models.Answer
	require.NoError(t, db.First(&r, rejected).Error)
	assert.Equal(t, lifecycle.StatusRejected.String(), r.Status)

	var question models.Question
	require.NoError(t, db.First(&question, qid).Error)
	assert.Nil(t, question.AcceptedAnswerID)

	report, err := store.New(db).Reconcile(context.Background(), false, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.True(t, report.Clean(), "acceptance drift: %+v", report.Acceptance)
}

func TestDeleteQuestion_ReleasesTags(t *testing.T) {
	db := setupDB(t)
	asker := seedUser(t, db, "asker", models.RoleUser)
	r := contentRouter(db, asker.ID, models.RoleUser)

	first := createQuestion(t, r, "generics")
	createQuestion(t, r, "generics")

	var tag models.Tag
	require.NoError(t, db.Where("name = ?", "generics").First(&tag).Error)
	assert.Equal(t, 2, tag.QuestionCount)

	code, _ := do(t, r, http.MethodDelete, "/questions/"+itoa(first), nil)
	require.Equal(t, http.StatusOK, code)

	require.NoError(t, db.First(&tag, tag.ID).Error)
	assert.Equal(t, 1, tag.QuestionCount)
}

func TestAdmin_Moderation(t *testing.T) {
	db := setupDB(t)
	admin := seedUser(t, db, "admin", models.RoleAdmin)
	other := seedUser(t, db, "otheradmin", models.RoleAdmin)
	member := seedUser(t, db, "member", models.RoleUser)
	r := contentRouter(db, admin.ID, models.RoleAdmin)

	code, _ := do(t, r, http.MethodPatch, "/admin/users/"+itoa(other.ID)+"/toggle-ban", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := do(t, r, http.MethodPatch, "/admin/users/"+itoa(member.ID)+"/toggle-ban", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "User banned successfully", body["message"])
	_, body = do(t, r, http.MethodPatch, "/admin/users/"+itoa(member.ID)+"/toggle-ban", nil)
	assert.Equal(t, "User unbanned successfully", body["message"])

	asMember := contentRouter(db, member.ID, models.RoleUser)
	qid := createQuestion(t, r)
	buried := createAnswer(t, asMember, qid)
	borderline := createAnswer(t, asMember, qid)
	require.NoError(t, db.Model(&models.Answer{}).Where("id = ?", buried).Update("votes", -3).Error)
	require.NoError(t, db.Model(&models.Answer{}).Where("id = ?", borderline).Update("votes", -2).Error)

	_, body = do(t, r, http.MethodGet, "/admin/flagged-content", nil)
	flagged := body["flaggedAnswers"].([]any)
	require.Len(t, flagged, 1)
	assert.EqualValues(t, buried, flagged[0].(map[string]any)["id"])

	code, _ = do(t, r, http.MethodPatch, "/answers/"+itoa(buried)+"/accept", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodDelete, "/admin/content/answer/"+itoa(buried), nil)
	require.Equal(t, http.StatusOK, code)

	var question models.Question
	require.NoError(t, db.First(&question, qid).Error)
	assert.Nil(t, question.AcceptedAnswerID)
	assert.NotContains(t, []int64(question.AnswerIDs), int64(buried))

	code, _ = do(t, r, http.MethodDelete, "/admin/content/comment/1", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, r, http.MethodGet, "/admin/dashboard", nil)
	require.Equal(t, http.StatusOK, code)
	overview := body["overview"].(map[string]any)
	assert.EqualValues(t, 3, overview["totalUsers"])
	assert.EqualValues(t, 1, overview["totalAnswers"])
}

func TestSendAdminMessage(t *testing.T) {
	db := setupDB(t)
	admin := seedUser(t, db, "admin", models.RoleAdmin)
	seedUser(t, db, "a", models.RoleUser)
	seedUser(t, db, "b", models.RoleUser)
	r := contentRouter(db, admin.ID, models.RoleAdmin)

	code, body := do(t, r, http.MethodPost, "/notifications/admin-message", gin.H{"title": "Maintenance", "message": "Down at noon"})
	require.Equal(t, http.StatusOK, code, body)
	assert.EqualValues(t, 3, body["recipientCount"])

	code, _ = do(t, r, http.MethodPost, "/notifications/admin-message", gin.H{"title": " ", "message": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
}
