package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/pipeline"
)

// Session variable names shared with the dialplan
const (
	VarTranslateTarget = "translate_target"
	VarLang            = "lang"
	VarRunID           = "run_id"
	VarState           = "state"
	VarText            = "text"
	VarTranslation     = "translation"
	VarTarget          = "target"
	VarError           = "error"
)

// SessionVars are per-call settings written by the dialplan
type SessionVars struct {
	TranslateTarget string
	Lang            string
}

// redisHash is the part of the redis client used here
type redisHash interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// SessionStore reads call settings from and writes call outcomes to the
// Redis hash <prefix><call id>. A nil store reads nothing and writes nothing.
type SessionStore struct {
	client redisHash
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func NewSessionStore(client redisHash, prefix string, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{client: client, prefix: prefix, ttl: time.Hour, logger: logger}
}

func (st *SessionStore) getVar(ctx context.Context, sessionID, key string) (string, error) {
	redisKey := st.prefix + sessionID
	val, err := st.client.HGet(ctx, redisKey, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis HGET %s %s: %w", redisKey, key, err)
	}
	return val, nil
}

// Lookup returns the call's settings. Missing fields are empty; read
// failures are logged and yield empty settings.
func (st *SessionStore) Lookup(ctx context.Context, sessionID string) SessionVars {
	var vars SessionVars
	if st == nil {
		return vars
	}

	var err error
	if vars.TranslateTarget, err = st.getVar(ctx, sessionID, VarTranslateTarget); err != nil {
		st.logger.Warn("Failed to read session variable", slog.String("error", err.Error()))
	}
	if vars.Lang, err = st.getVar(ctx, sessionID, VarLang); err != nil {
		st.logger.Warn("Failed to read session variable", slog.String("error", err.Error()))
	}
	return vars
}

// Store writes the outcome of a call's run.
func (st *SessionStore) Store(ctx context.Context, sessionID string, res *pipeline.Result, runErr error) {
	if st == nil || res == nil {
		return
	}

	redisKey := st.prefix + sessionID
	values := []interface{}{
		VarRunID, res.RunID,
		VarState, res.State.String(),
		VarText, res.Text,
		VarTranslation, res.Translation,
		VarTarget, res.Target.Code,
	}
	if runErr != nil {
		values = append(values, VarError, string(apperr.KindOf(runErr)))
	}

	if err := st.client.HSet(ctx, redisKey, values...).Err(); err != nil {
		st.logger.Warn("Failed to store call result",
			slog.String("key", redisKey),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := st.client.Expire(ctx, redisKey, st.ttl).Err(); err != nil {
		st.logger.Debug("Failed to set expiry", slog.String("key", redisKey), slog.String("error", err.Error()))
	}
}
