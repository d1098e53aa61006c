package memory

import (
	"time"

	"ai-meeting-copilot-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	// Sessions never expire on their own; stop_session removes them
	// explicitly. The janitor only sweeps already-deleted entries.
	c := cache.New(cache.NoExpiration, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(meetingID string, session *store.FacilitationSession) {
	r.cache.Set(meetingID, session, cache.NoExpiration)
}

// Add stores the session only when none exists for the meeting yet; the
// write is atomic against concurrent Adds. Reports whether it won.
func (r *SessionRepository) Add(meetingID string, session *store.FacilitationSession) bool {
	return r.cache.Add(meetingID, session, cache.NoExpiration) == nil
}

func (r *SessionRepository) Get(meetingID string) (*store.FacilitationSession, bool) {
	if x, found := r.cache.Get(meetingID); found {
		return x.(*store.FacilitationSession), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(meetingID string) {
	r.cache.Delete(meetingID)
}
