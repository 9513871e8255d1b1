package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenroomhq/greenroom/internal/models"
	"github.com/greenroomhq/greenroom/internal/utils"
)

type stubSessionRepo struct {
	byID    map[string]*models.Session
	gets    int
	exports map[string]string
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{byID: map[string]*models.Session{}, exports: map[string]string{}}
}

func (s *stubSessionRepo) Create(ctx context.Context, sess *models.Session) error {
	s.byID[sess.SessionID] = sess
	return nil
}

func (s *stubSessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	s.gets++
	sess, ok := s.byID[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return sess, nil
}

func (s *stubSessionRepo) End(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64) error {
	return nil
}

func (s *stubSessionRepo) SetStatus(ctx context.Context, sessionID, status string) error {
	return nil
}

func (s *stubSessionRepo) SetExport(ctx context.Context, sessionID, exportStatus, exportURL string) error {
	s.exports[sessionID] = exportStatus
	return nil
}

// mapCache is an in-memory cache.Cache for the cache-aside tests.
type mapCache struct {
	data map[string][]byte
	dels []string
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (m *mapCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (m *mapCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	m.data[key] = b
	return nil
}

func (m *mapCache) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		m.dels = append(m.dels, k)
		delete(m.data, k)
	}
	return nil
}

func TestSessionStartValidatesInput(t *testing.T) {
	svc := NewSessionService(newStubSessionRepo(), nil)

	_, err := svc.Start(context.Background(), "", nil, "en")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.Start(context.Background(), "u1", nil, "")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestSessionStartCreatesActiveSession(t *testing.T) {
	repo := newStubSessionRepo()
	svc := NewSessionService(repo, nil)

	sess, err := svc.Start(context.Background(), "u1", []string{"Q1", "Q2"}, "en")
	require.NoError(t, err)

	assert.NotEmpty(t, sess.SessionID)
	assert.Equal(t, "active", sess.Status)
	assert.Equal(t, []string{"Q1", "Q2"}, sess.QuestionSet)
	assert.Contains(t, repo.byID, sess.SessionID)
}

func TestSessionGetNotFound(t *testing.T) {
	svc := NewSessionService(newStubSessionRepo(), nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestSessionGetCacheAside(t *testing.T) {
	repo := newStubSessionRepo()
	c := newMapCache()
	svc := NewSessionService(repo, c)

	sess, err := svc.Start(context.Background(), "u1", nil, "en")
	require.NoError(t, err)

	// first Get misses the cache and hits the repo
	_, err = svc.Get(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets)

	// second Get is served from the cache
	got, err := svc.Get(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets)
	assert.Equal(t, sess.SessionID, got.SessionID)
}

func TestSessionSetExportInvalidatesCache(t *testing.T) {
	repo := newStubSessionRepo()
	c := newMapCache()
	svc := NewSessionService(repo, c)

	sess, err := svc.Start(context.Background(), "u1", nil, "en")
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), sess.SessionID)
	require.NoError(t, err)

	require.NoError(t, svc.SetExport(context.Background(), sess.SessionID, "done", "exports/x.json"))

	assert.Contains(t, c.dels, "session:"+sess.SessionID)
	assert.Equal(t, "done", repo.exports[sess.SessionID])
}

func TestSessionEndComputesDuration(t *testing.T) {
	repo := newStubSessionRepo()
	svc := NewSessionService(repo, nil)

	sess, err := svc.Start(context.Background(), "u1", nil, "en")
	require.NoError(t, err)

	ended, err := svc.End(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "ended", ended.Status)
	require.NotNil(t, ended.EndedAt)
	assert.GreaterOrEqual(t, ended.DurationSeconds, int64(0))
}
