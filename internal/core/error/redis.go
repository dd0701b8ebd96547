package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to the unified AppError with appropriate status codes.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return &AppError{Err: err, Status: http.StatusNotFound, Code: CodeNotFound, Message: RedisNotFoundMessage}
	}
	if errors.Is(err, redis.TxFailedErr) {
		return Conflict(err, "concurrent update detected")
	}

	return &AppError{Err: err, Status: http.StatusBadGateway, Code: CodeStore, Message: RedisErrorMessage}
}
