package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/audit"
	"github.com/mavryk-network/mvsign/common"
	"github.com/mavryk-network/mvsign/health"
	"github.com/mavryk-network/mvsign/settings"
)

// server bundles everything the HTTP handlers reach for. The mutex
// serializes exchanges: there is one device and its packet protocol is
// stateful, so concurrent clients must take turns.
type server struct {
	log       *slog.Logger
	transport Transport
	tracker   *signTracker // nil when the transport records its own trail
	store     *settings.Store
	trail     *audit.Store
	monitor   *health.Monitor
	mu        sync.Mutex
}

func buildFiberApp(s *server) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// No write deadline: a signing exchange parks on user review.
		IdleTimeout: 120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${method} ${path} ${status} ${latency}\n",
	}))
	app.Use(func(c *fiber.Ctx) error {
		c.Path(path.Clean(c.Path()))
		return c.Next()
	})

	// -------------------------------------------------------------------------
	// POST /v1/apdu → run one hex encoded command frame, reply hex
	// -------------------------------------------------------------------------
	app.Post("/v1/apdu", func(c *fiber.Ctx) error {
		id := uuid.NewString()
		c.Set("X-Request-Id", id)

		raw, err := hex.DecodeString(strings.TrimSpace(string(c.Body())))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("bad frame hex: %v", err)})
		}
		cmd, err := apdu.DecodeCommand(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		s.mu.Lock()
		start := time.Now()
		rsp, err := s.transport.Exchange(cmd)
		took := time.Since(start)
		if err == nil && s.tracker != nil {
			s.tracker.Observe(cmd, rsp)
		}
		s.mu.Unlock()

		if err != nil {
			s.log.Error("exchange failed", "id", id, "ins", cmd.Ins.String(), "error", err.Error())
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		}

		s.monitor.RecordExchange()
		exchangeTotal.WithLabelValues(cmd.Ins.String(), rsp.Status.String()).Inc()
		exchangeSeconds.WithLabelValues(cmd.Ins.String()).Observe(took.Seconds())
		s.log.Info("exchange", "id", id,
			"ins", cmd.Ins.String(), "status", rsp.Status.String(), "took", took)

		return c.SendString(hex.EncodeToString(rsp.Encode()))
	})

	// -------------------------------------------------------------------------
	// GET /v1/version → bridge build identity
	// -------------------------------------------------------------------------
	app.Get("/v1/version", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"version": common.Current.String(),
			"commit":  common.GitCommit,
		})
	})

	// -------------------------------------------------------------------------
	// GET /v1/settings → current device toggles
	// -------------------------------------------------------------------------
	app.Get("/v1/settings", func(c *fiber.Ctx) error {
		snap := s.store.Snapshot()
		return c.JSON(fiber.Map{
			"expert_mode": snap.ExpertMode,
			"blindsign":   snap.Blindsign,
			"profile":     snap.Profile,
		})
	})

	// -------------------------------------------------------------------------
	// GET /v1/audit/recent → newest signing records first
	// -------------------------------------------------------------------------
	app.Get("/v1/audit/recent", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 20)
		entries, err := s.trail.Recent(limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		rows := lo.Map(entries, func(e audit.Entry, _ int) fiber.Map {
			return fiber.Map{
				"id":        e.ID.String(),
				"time":      e.Record.Time.Format(time.RFC3339),
				"path":      e.Record.Path,
				"curve":     e.Record.Curve.String(),
				"with_hash": e.Record.WithHash,
				"outcome":   e.Record.Outcome.String(),
				"hash":      hex.EncodeToString(e.Record.Hash),
				"screens":   e.Record.Screens,
			}
		})
		return c.JSON(rows)
	})

	// -------------------------------------------------------------------------
	// GET /v1/audit/export → the whole trail as a compressed download
	// -------------------------------------------------------------------------
	app.Get("/v1/audit/export", func(c *fiber.Ctx) error {
		var buf bytes.Buffer
		if err := s.trail.Export(&buf); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		c.Set(fiber.HeaderContentType, "application/x-xz")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="mvsign-audit.xz"`)
		return c.Send(buf.Bytes())
	})

	// -------------------------------------------------------------------------
	// GET /healthz → liveness with per probe detail
	// -------------------------------------------------------------------------
	app.Get("/healthz", func(c *fiber.Ctx) error {
		st := s.monitor.Check()
		code := fiber.StatusOK
		if !st.Healthy {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(st)
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}
