package rest

import (
	"errors"
	"strconv"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/gofiber/fiber/v2"
)

const sessionKey = "session"

// requireSession rejects requests without a live bearer token and stores
// the verified session in c.Locals.
func (s *HTTPServer) requireSession(c *fiber.Ctx) error {
	sess, err := s.sessions.Verify(c.UserContext(), c.Get(common.AuthorizationHeaderName))
	if err != nil {
		return s.writeError(c, err)
	}

	c.Locals(sessionKey, sess)
	return c.Next()
}

// countRequests records one sample per response, labeled by matched route.
func (s *HTTPServer) countRequests(c *fiber.Ctx) error {
	err := c.Next()
	if s.metrics == nil {
		return err
	}

	status := c.Response().StatusCode()
	route := c.Route().Path
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		if status == fiber.StatusNotFound {
			route = "unmatched"
		}
	}

	s.metrics.ObserveRequest(route, strconv.Itoa(status))
	return err
}
