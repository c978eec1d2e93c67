package rest

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

const (
	msgUnauthorized = "unauthorized"
	msgInternal     = "internal error"
	msgBadRequest   = "username and password are required"
	msgTaken        = "username already exists"

	rootMessage = "Please authenticate at /login to access other routes."
	secureData  = "This is secure data"
)

var errMissingCredentials = errors.New("missing credentials")

type credentials struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type signupResponse struct {
	Username string `json:"username"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// parseCredentials reads a JSON or form body, falling back to query
// parameters for fields the body did not set.
func parseCredentials(c *fiber.Ctx) (credentials, error) {
	var req credentials

	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return req, err
		}
	}
	if req.Username == "" {
		req.Username = c.Query("username")
	}
	if req.Password == "" {
		req.Password = c.Query("password")
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return req, errMissingCredentials
	}

	return req, nil
}

func (s *HTTPServer) root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": rootMessage})
}

func (s *HTTPServer) signup(c *fiber.Ctx) error {
	req, err := parseCredentials(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgBadRequest})
	}

	user, err := s.users.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(signupResponse{Username: user.UserName})
}

func (s *HTTPServer) login(c *fiber.Ctx) error {
	req, err := parseCredentials(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgBadRequest})
	}

	token, err := s.users.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(loginResponse{AccessToken: token.AccessToken, TokenType: token.TokenType})
}

func (s *HTTPServer) logout(c *fiber.Ctx) error {
	if err := s.sessions.Logout(c.UserContext(), c.Get(common.AuthorizationHeaderName)); err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *HTTPServer) secureData(c *fiber.Ctx) error {
	if sess := sessionFromLocals(c); sess != nil {
		s.logger.Debug(c.UserContext(), "secure data requested", "username", sess.Username)
	}
	return c.JSON(fiber.Map{"data": secureData})
}

// writeError maps service errors to responses. Every authentication failure
// gets the same 401 body.
func (s *HTTPServer) writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, common.ErrorInvalidCredentials), errors.Is(err, common.ErrTokenExpired):
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msgUnauthorized})
	case errors.Is(err, common.ErrorAlreadyExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msgTaken})
	case errors.Is(err, common.ErrorValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgBadRequest})
	default:
		s.logger.Error(c.UserContext(), "request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msgInternal})
	}
}

func sessionFromLocals(c *fiber.Ctx) *services.Session {
	sess, _ := c.Locals(sessionKey).(*services.Session)
	return sess
}
