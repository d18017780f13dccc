package http

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/shiporbit/shiporbit/internal/core/domain"
	"github.com/shiporbit/shiporbit/internal/core/services"
)

const userKey = "user"

// handled renders err through the app's error handler so outer middleware
// sees the final status code.
func handled(c *fiber.Ctx, err error) {
	if err == nil {
		return
	}
	if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
		log.WithError(herr).Error("error handler failed")
		_ = c.SendStatus(fiber.StatusInternalServerError)
	}
}

func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		handled(c, c.Next())

		status := c.Response().StatusCode()
		entry := log.WithFields(log.Fields{
			"method":  c.Method(),
			"path":    c.Path(),
			"status":  status,
			"latency": time.Since(start).String(),
		})
		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("request")
		case status >= fiber.StatusBadRequest:
			entry.Info("request")
		default:
			entry.Debug("request")
		}
		return nil
	}
}

type metrics struct {
	reg      *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		reg: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shiporbit",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shiporbit",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *metrics) middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		handled(c, c.Next())

		// Unmatched requests end on the fallback handler; keep their paths out of the label set.
		route := c.Route().Path
		if c.Response().StatusCode() == fiber.StatusNotFound && route == "/" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Method(), route, strconv.Itoa(c.Response().StatusCode())).Inc()
		m.duration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return nil
	}
}

func (m *metrics) handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
}

// allowedHosts rejects requests whose Host header, port stripped, is not listed.
func allowedHosts(hosts []string) fiber.Handler {
	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		allowed[strings.ToLower(h)] = true
	}
	return func(c *fiber.Ctx) error {
		host := c.Hostname()
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if !allowed[strings.ToLower(host)] {
			log.WithField("host", host).Warn("rejected request for unknown host")
			return fiber.NewError(fiber.StatusBadRequest, "Invalid host header.")
		}
		return c.Next()
	}
}

// requireToken authenticates "Authorization: Token <key>" and stores the user in the context.
func requireToken(accounts *services.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
		if len(parts) == 0 || !strings.EqualFold(parts[0], "token") {
			return unauthorized(c, "Authentication credentials were not provided.")
		}
		switch len(parts) {
		case 1:
			return unauthorized(c, "Invalid token header. No credentials provided.")
		case 2:
		default:
			return unauthorized(c, "Invalid token header. Token string should not contain spaces.")
		}

		u, err := accounts.Authenticate(c.Context(), parts[1])
		if errors.Is(err, services.ErrInvalidToken) {
			return unauthorized(c, "Invalid token.")
		}
		if err != nil {
			return err
		}
		c.Locals(userKey, u)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, detail string) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Token")
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"detail": detail})
}

// user returns the authenticated caller; only valid behind requireToken.
func user(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals(userKey).(*domain.User)
	return u
}
