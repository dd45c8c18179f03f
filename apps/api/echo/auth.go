package echoapi

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
)

const (
	contextTokenKey     = "adminToken"
	contextPrincipalKey = "principal"
	tokenAudience       = "keem-admin"
)

// Claims represents the authorization claims transmitted via a JWT.
// Role and branch are informative only: they are reloaded from the database on every request.
type Claims struct {
	jwt.StandardClaims
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Branch string `json:"branch,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func NewClaims(a admin.Admin, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   strconv.Itoa(a.ID),
			Audience:  tokenAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:   a.Name,
		Email:  a.Email,
		Role:   string(a.Role),
		Branch: string(a.Branch),
	}
}

// GenerateToken generates a signed JWT token string representing the admin Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, core.ErrSessionInvalid
}

// principalMiddleware reloads the admin behind the token. Missing and deactivated admins are rejected.
func principalMiddleware(svc *admin.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			id, err := strconv.Atoi(claims.Subject)
			if err != nil {
				return core.ErrSessionInvalid
			}
			p, err := svc.CurrentPrincipal(ctx.Request().Context(), id)
			if err != nil {
				return err
			}
			ctx.Set(contextPrincipalKey, p)
			return next(ctx)
		}
	}
}

// getPrincipal returns the admin of the request; the zero Principal when unauthenticated.
func getPrincipal(ctx echo.Context) admin.Principal {
	p, _ := ctx.Get(contextPrincipalKey).(admin.Principal)
	return p
}
