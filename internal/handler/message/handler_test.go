package message

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/service/message"
)

type stubMessageRepo struct {
	byID   map[uuid.UUID]*model.Message
	events []model.MessageEvent
}

func (r *stubMessageRepo) Get(_ context.Context, id uuid.UUID) (*model.Message, error) {
	return r.byID[id], nil
}

func (r *stubMessageRepo) Find(context.Context, uuid.UUID, model.Channel, uuid.UUID) (*model.Message, error) {
	return nil, nil
}

func (r *stubMessageRepo) Create(context.Context, *model.Message) error { return nil }
func (r *stubMessageRepo) Update(context.Context, *model.Message) error { return nil }
func (r *stubMessageRepo) UpdateWithAttempt(context.Context, *model.Message, *model.MessageAttempt) error {
	return nil
}

func (r *stubMessageRepo) ListByCampaign(context.Context, uuid.UUID) ([]*model.Message, error) {
	return nil, nil
}

func (r *stubMessageRepo) ListAttempts(context.Context, uuid.UUID) ([]*model.MessageAttempt, error) {
	return nil, nil
}

func (r *stubMessageRepo) ListDueRetries(context.Context, time.Time, int) ([]*model.Message, error) {
	return nil, nil
}

func (r *stubMessageRepo) CountByStatus(context.Context, uuid.UUID) (map[model.MessageStatus]int, error) {
	return nil, nil
}

func (r *stubMessageRepo) CountByStatusForAccount(context.Context, uuid.UUID) (map[model.MessageStatus]int, error) {
	return nil, nil
}

func (r *stubMessageRepo) RecordEvent(_ context.Context, id uuid.UUID, event model.MessageEvent, _ time.Time) error {
	r.events = append(r.events, event)
	msg := r.byID[id]
	msg.Status = model.MessageStatus(event)
	return nil
}

func newEventRouter(t *testing.T, repo *stubMessageRepo) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(message.NewService(repo)).RegisterPublicRoutes(r.Group(""))
	return r
}

func postEvent(r *gin.Engine, id uuid.UUID, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/messages/"+id.String()+"/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestRecordEventOnDeliveredMessage(t *testing.T) {
	id := uuid.New()
	repo := &stubMessageRepo{byID: map[uuid.UUID]*model.Message{
		id: {ID: id, Status: model.MessageStatusSent},
	}}
	r := newEventRouter(t, repo)

	w := postEvent(r, id, `{"event":"opened"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, repo.events, 1)
	assert.Equal(t, model.MessageEventOpened, repo.events[0])
}

func TestRecordEventRejectsUnknownKind(t *testing.T) {
	id := uuid.New()
	repo := &stubMessageRepo{byID: map[uuid.UUID]*model.Message{
		id: {ID: id, Status: model.MessageStatusSent},
	}}
	r := newEventRouter(t, repo)

	// "bounced" fails binding validation before the service is reached.
	w := postEvent(r, id, `{"event":"bounced"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, repo.events)
}

func TestRecordEventOnUndeliveredMessageConflicts(t *testing.T) {
	id := uuid.New()
	repo := &stubMessageRepo{byID: map[uuid.UUID]*model.Message{
		id: {ID: id, Status: model.MessageStatusQueued},
	}}
	r := newEventRouter(t, repo)

	w := postEvent(r, id, `{"event":"clicked"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, repo.events)
}

func TestRecordEventUnknownMessage(t *testing.T) {
	repo := &stubMessageRepo{byID: map[uuid.UUID]*model.Message{}}
	r := newEventRouter(t, repo)

	w := postEvent(r, uuid.New(), `{"event":"opened"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
