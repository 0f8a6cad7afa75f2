package room

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// accessTokenTTL is how long an issued room access token stays redeemable.
const accessTokenTTL = 2 * time.Minute

// Access is the pass handed to a peer that has been granted entry to a
// running game server. The peer presents the token to the game server,
// which redeems it against the registry.
type Access struct {
	RoomID  uint32
	Address string
	Port    int
	Token   string
}

// AccessClaims is the signed content of a room access token.
type AccessClaims struct {
	RoomID   uint32 `json:"room_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Registry is the catalog of running game servers. Rooms are registered by
// spawned processes and looked up by lobbies binding to their match server.
type Registry struct {
	Logger *logrus.Logger

	signingKey []byte
	tokens     *cache.Cache

	mu     sync.Mutex
	rooms  map[uint32]*Room
	nextID uint32
}

func NewRegistry(signingKey []byte, logger *logrus.Logger) *Registry {
	return &Registry{
		Logger:     logger,
		signingKey: signingKey,
		tokens:     cache.New(accessTokenTTL, time.Minute),
		rooms:      map[uint32]*Room{},
	}
}

// Register records a running game server and returns its room. taskID ties
// the room back to the spawn task that produced it.
func (reg *Registry) Register(taskID uint32, address string, port int, properties map[string]string) *Room {
	reg.mu.Lock()
	reg.nextID++
	r := &Room{
		ID:         reg.nextID,
		TaskID:     taskID,
		Address:    address,
		Port:       port,
		Properties: properties,
		watchers:   map[int]func(*Room){},
	}
	reg.rooms[r.ID] = r
	reg.mu.Unlock()

	reg.Logger.Infof("[ROOM] registered room %d at %s:%d (task %d)", r.ID, address, port, taskID)
	return r
}

// Lookup returns the room with the given id, or nil.
func (reg *Registry) Lookup(id uint32) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[id]
}

// Destroy removes a room from the catalog and fires its destruction
// handlers. Destroying an unknown or already-destroyed room is a no-op.
func (reg *Registry) Destroy(id uint32) {
	reg.mu.Lock()
	r := reg.rooms[id]
	delete(reg.rooms, id)
	reg.mu.Unlock()

	if r == nil {
		return
	}
	reg.Logger.Infof("[ROOM] destroyed room %d", id)
	r.destroy()
}

// RequestAccess issues a single-use signed token admitting username to the
// room. The token expires if not redeemed within the access TTL.
func (reg *Registry) RequestAccess(r *Room, username string, requestData map[string]string) (*Access, error) {
	if r.Destroyed() {
		return nil, fmt.Errorf("room %d is gone", r.ID)
	}

	tokenID := uuid.NewString()
	claims := &AccessClaims{
		RoomID:   r.ID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(reg.signingKey)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	reg.tokens.Set(tokenID, r.ID, cache.DefaultExpiration)

	return &Access{
		RoomID:  r.ID,
		Address: r.Address,
		Port:    r.Port,
		Token:   signed,
	}, nil
}

// RedeemAccess validates a presented token and burns it. A token is good
// for exactly one redemption; expired, reused, or tampered tokens fail.
func (reg *Registry) RedeemAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return reg.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing access token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid access token")
	}

	if _, ok := reg.tokens.Get(claims.ID); !ok {
		return nil, fmt.Errorf("access token expired or already used")
	}
	reg.tokens.Delete(claims.ID)

	return claims, nil
}
