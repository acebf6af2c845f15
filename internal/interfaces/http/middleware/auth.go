package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dreschagin/soc-portal/pkg/logger"
)

var ErrUnauthorized = errors.New("unauthorized")

// SubjectHeader несет идентификатор аутентифицированного клиента дальше по цепочке
const SubjectHeader = "X-Auth-Subject"

type AuthConfig struct {
	Enabled     bool
	BearerToken string
	// JWTSecret включает проверку HS256 токенов рядом со статическим токеном
	JWTSecret string
	JWTIssuer string
	// OnFailure вызывается на каждый отклоненный запрос (счетчик метрик)
	OnFailure func()
}

// Auth защищает endpoint Bearer токеном: статическим или подписанным JWT.
func Auth(cfg AuthConfig, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := Authenticate(r, cfg)
			if err != nil {
				if cfg.OnFailure != nil {
					cfg.OnFailure()
				}
				log.Warn("Unauthorized request",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="soc-portal"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			r.Header.Set(SubjectHeader, subject)
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate возвращает subject запроса или ErrUnauthorized
func Authenticate(r *http.Request, cfg AuthConfig) (string, error) {
	if !cfg.Enabled {
		return "anonymous", nil
	}

	token := ExtractToken(r)
	if token == "" {
		return "", ErrUnauthorized
	}

	if cfg.BearerToken != "" && token == cfg.BearerToken {
		return "shared-token", nil
	}

	if cfg.JWTSecret != "" {
		subject, err := parseJWT(token, cfg)
		if err == nil {
			return subject, nil
		}
	}

	return "", ErrUnauthorized
}

func parseJWT(raw string, cfg AuthConfig) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrUnauthorized
	}

	return claims.Subject, nil
}

func ExtractToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// Для WebSocket браузер не может отправить кастомный Authorization header через new WebSocket().
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
