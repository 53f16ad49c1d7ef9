package db

import (
	"sync"

	"github.com/google/uuid"

	"github.com/alvarojfjunior/planning-room/models"
)

// Store is the in-memory room registry. Rooms are created lazily on
// first join and evicted once their last participant leaves; nothing
// survives beyond active participation.
type Store struct {
	rooms map[string]*models.Room
	mutex sync.RWMutex
}

// NewStore creates an empty registry.
func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*models.Room),
	}
}

// Create allocates a room with a fresh id, for the room-creation API.
func (s *Store) Create(name string) *models.Room {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	room := models.NewRoom(uuid.NewString(), name)
	s.rooms[room.ID] = room
	return room
}

// GetOrCreate returns the room with the given id, creating an empty
// one if it does not exist yet. defaultName is only used on creation.
func (s *Store) GetOrCreate(roomID, defaultName string) *models.Room {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if room, exists := s.rooms[roomID]; exists {
		return room
	}
	room := models.NewRoom(roomID, defaultName)
	s.rooms[roomID] = room
	return room
}

// Get returns a room by id.
func (s *Store) Get(roomID string) (*models.Room, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	room, exists := s.rooms[roomID]
	return room, exists
}

// EvictIfEmpty removes the room once its participant set is empty.
// Pending entries alone do not keep a room alive. Idempotent; reports
// whether an eviction happened.
func (s *Store) EvictIfEmpty(roomID string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	room, exists := s.rooms[roomID]
	if !exists {
		return false
	}

	room.Mutex.RLock()
	isEmpty := len(room.Participants) == 0
	room.Mutex.RUnlock()

	if !isEmpty {
		return false
	}
	delete(s.rooms, roomID)
	return true
}

// CleanupEmptyRooms sweeps out rooms that have no participants. Backs
// up EvictIfEmpty for rooms that emptied without a removal event.
func (s *Store) CleanupEmptyRooms() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	count := 0
	for id, room := range s.rooms {
		room.Mutex.RLock()
		isEmpty := len(room.Participants) == 0
		room.Mutex.RUnlock()

		if isEmpty {
			delete(s.rooms, id)
			count++
		}
	}

	return count
}
