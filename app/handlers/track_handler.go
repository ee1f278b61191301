// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/gofiber/fiber/v3"
)

// transparentGIF is the 1x1 pixel served by the open beacon endpoint
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackHandlerInterface defines the contract for the public tracking endpoints
type TrackHandlerInterface interface {
	TrackURLClick(c fiber.Ctx) error
	TrackOpen(c fiber.Ctx) error
	Unsubscribe(c fiber.Ctx) error
}

type TrackHandler struct {
	flow        businessflow.TrackEventFlow
	fallbackURL string
}

func NewTrackHandler(flow businessflow.TrackEventFlow, fallbackURL string) TrackHandlerInterface {
	return &TrackHandler{flow: flow, fallbackURL: fallbackURL}
}

// TrackURLClick records a click on a tracked campaign URL and redirects
// @Summary Tracked URL redirect
// @Tags Tracking
// @Param cuid path string true "Campaign UID"
// @Param suid path string true "Subscriber UID"
// @Param hash path string true "Tracked URL hash"
// @Success 302 {string} string "Redirect"
// @Failure 404 {object} any
// @Router /campaigns/{cuid}/track-url/{suid}/{hash} [get]
func (h *TrackHandler) TrackURLClick(c fiber.Ctx) error {
	cuid := c.Params("cuid")
	suid := c.Params("suid")
	hash := c.Params("hash")
	if cuid == "" || suid == "" || hash == "" {
		return c.Status(fiber.StatusBadRequest).SendString("invalid tracking link")
	}
	ua := c.Get("User-Agent")
	ip := c.IP()

	endpoint := "/campaigns/" + cuid + "/track-url/" + suid + "/" + hash
	destination, err := h.flow.TrackURLClick(h.createRequestContext(c, endpoint), cuid, suid, hash, &ua, &ip)
	if err != nil {
		if businessflow.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).SendString("not found")
		}
		log.Println("Track url click failed", err)
		// The recipient still deserves a landing page
		c.Redirect().Status(fiber.StatusFound).To(h.fallbackURL)
		return nil
	}
	c.Redirect().Status(fiber.StatusFound).To(destination)
	return nil
}

// TrackOpen records an open beacon hit and serves the pixel
// @Summary Open tracking beacon
// @Tags Tracking
// @Param cuid path string true "Campaign UID"
// @Param suid path string true "Subscriber UID"
// @Success 200 {string} string "GIF image"
// @Router /campaigns/{cuid}/track-open/{suid} [get]
func (h *TrackHandler) TrackOpen(c fiber.Ctx) error {
	cuid := c.Params("cuid")
	suid := c.Params("suid")

	if cuid != "" && suid != "" {
		endpoint := "/campaigns/" + cuid + "/track-open/" + suid
		if err := h.flow.TrackOpen(h.createRequestContext(c, endpoint), cuid, suid); err != nil {
			// The pixel is always served; mail clients retry aggressively
			log.Println("Track open failed", err)
		}
	}

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	return c.Send(transparentGIF)
}

// Unsubscribe validates the signed token and unsubscribes the subscriber
// @Summary Unsubscribe
// @Tags Tracking
// @Param luid path string true "List UID"
// @Param token path string true "Signed unsubscribe token"
// @Success 200 {string} string "Confirmation"
// @Failure 400 {object} any
// @Router /lists/{luid}/unsubscribe/{token} [get]
func (h *TrackHandler) Unsubscribe(c fiber.Ctx) error {
	luid := c.Params("luid")
	token := c.Params("token")
	if luid == "" || token == "" {
		return c.Status(fiber.StatusBadRequest).SendString("invalid unsubscribe link")
	}

	endpoint := "/lists/" + luid + "/unsubscribe"
	err := h.flow.Unsubscribe(h.createRequestContext(c, endpoint), luid, token)
	switch {
	case err == nil:
		return c.SendString("You have been unsubscribed.")
	case businessflow.IsUnsubscribeTokenInvalid(err) || businessflow.IsUnsubscribeTokenMismatch(err):
		return c.Status(fiber.StatusBadRequest).SendString("invalid or expired unsubscribe link")
	case businessflow.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).SendString("not found")
	default:
		log.Println("Unsubscribe failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString("internal error")
	}
}

func (h *TrackHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 10*time.Second)
}

func (h *TrackHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
