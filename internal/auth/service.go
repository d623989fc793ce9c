// Package auth resolves athlete session tokens stored in redis.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/wodcareer/pkg"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL       = 24 * 7 * time.Hour
	sessionKeyPrefix = "session:athlete:"
	tokensSetKey     = "sessions:athlete"
	tokenBytes       = 32
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Session is stored under session:athlete:<token> as "<athleteID>|<createdUnix>".
type Session struct {
	Token     string
	AthleteID int
	CreatedAt time.Time
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

func encodeSession(athleteID int, createdAt time.Time) string {
	return fmt.Sprintf("%d|%d", athleteID, createdAt.Unix())
}

func decodeSession(token, val string) (*Session, error) {
	idPart, createdPart, ok := strings.Cut(val, "|")
	if !ok {
		return nil, fmt.Errorf("malformed session value %q", val)
	}
	athleteID, err := strconv.Atoi(idPart)
	if err != nil || athleteID <= 0 {
		return nil, fmt.Errorf("malformed session athlete %q", idPart)
	}
	createdUnix, err := strconv.ParseInt(createdPart, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed session time %q: %w", createdPart, err)
	}
	return &Session{
		Token:     token,
		AthleteID: athleteID,
		CreatedAt: time.Unix(createdUnix, 0),
	}, nil
}

type Service struct {
	redisClient redis.UniversalClient
	ttl         time.Duration
	now         func() time.Time
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
}

func NewService(ttl time.Duration, redisClient redis.UniversalClient) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		ttl:            ttl,
		redisClient:    redisClient,
		now:            time.Now,
		RandStringFunc: pkg.GenerateRandomString,
	}
}

// Open issues a new session token for athleteID.
func (s *Service) Open(ctx context.Context, athleteID int) (string, error) {
	if athleteID <= 0 {
		return "", fmt.Errorf("invalid athlete id %d", athleteID)
	}
	token, err := s.RandStringFunc(tokenBytes)
	if err != nil {
		return "", err
	}

	if err := s.redisClient.Set(ctx, sessionKey(token), encodeSession(athleteID, s.now()), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	if err := s.redisClient.SAdd(ctx, tokensSetKey, token).Err(); err != nil {
		return "", fmt.Errorf("index session: %w", err)
	}
	return token, nil
}

// Resolve returns the athlete a token belongs to.
func (s *Service) Resolve(ctx context.Context, token string) (int, error) {
	if token == "" {
		return 0, ErrSessionNotFound
	}
	val, err := s.redisClient.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("get session: %w", err)
	}

	session, err := decodeSession(token, val)
	if err != nil {
		return 0, err
	}
	if s.now().Sub(session.CreatedAt) > s.ttl {
		return 0, ErrSessionExpired
	}
	return session.AthleteID, nil
}

// Close removes the session. It reports whether the token existed.
func (s *Service) Close(ctx context.Context, token string) (bool, error) {
	deleted, err := s.redisClient.Del(ctx, sessionKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	if err := s.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
		return false, fmt.Errorf("unindex session: %w", err)
	}
	return deleted > 0, nil
}

// ScanAndClean will run through all sessions, check the TTL, and clean them if old
func (s *Service) ScanAndClean(ctx context.Context) {
	tokens, err := s.redisClient.SMembers(ctx, tokensSetKey).Result()
	if err != nil {
		log.Errorf("[auth] scan and clean, get sessions: %s", err)
		return
	}
	if len(tokens) == 0 {
		log.Debugln("[auth] scan and clean, no sessions")
		return
	}

	log.Debugf("[auth] scan and clean [%d sessions] start", len(tokens))
	var toRemove []string
	for _, token := range tokens {
		val, err := s.redisClient.Get(ctx, sessionKey(token)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// expired in redis already, only the index entry is left
				toRemove = append(toRemove, token)
				continue
			}
			log.Errorf("[auth] scan and clean token %s: %s", token, err)
			continue
		}
		session, err := decodeSession(token, val)
		if err != nil || s.now().Sub(session.CreatedAt) > s.ttl {
			toRemove = append(toRemove, token)
		}
	}

	for _, token := range toRemove {
		if _, err := s.Close(ctx, token); err != nil {
			log.Errorf("[auth] clean token %s: %s", token, err)
		}
	}
	log.Debugf("[auth] scan and clean removed %d sessions", len(toRemove))
}
