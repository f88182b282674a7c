// HTTP coordinator exposing the two protocol phases. The transport is an
// external collaborator of the core: it decodes wire messages, hands them to
// the server role and maps error kinds to status codes.
package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gnark-vldp/messages"
	"gnark-vldp/server"
	"gnark-vldp/utils"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/rs/zerolog"
)

type verdictResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	LDPValue uint64 `json:"ldp_value,omitempty"`
}

type service struct {
	srv           *server.Server
	params        utils.Params
	clock         clockwork.Clock
	windowSeconds uint64
}

func (s *service) health(c echo.Context) error {
	return c.JSON(http.StatusOK, verdictResponse{Status: "success", Message: "Server is up"})
}

func (s *service) phase1(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, verdictResponse{Status: "error", Message: "unreadable body"})
	}
	var req messages.Phase1Request
	if err := messages.Decode(body, &req); err != nil {
		return c.JSON(http.StatusBadRequest, verdictResponse{Status: "error", Message: err.Error()})
	}
	resp, err := s.srv.IssueSeed(&req)
	if err != nil {
		log.Errorf("phase1 rejected: %v", err)
		return c.JSON(http.StatusBadRequest, verdictResponse{Status: "error", Message: err.Error()})
	}
	data, err := messages.Encode(resp)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, verdictResponse{Status: "error", Message: err.Error()})
	}
	return c.Blob(http.StatusOK, "application/cbor", data)
}

func (s *service) phase2(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, verdictResponse{Status: "error", Message: "unreadable body"})
	}
	var msg messages.Phase2Message
	if err := messages.Decode(body, &msg); err != nil {
		return c.JSON(http.StatusBadRequest, verdictResponse{Status: "error", Message: err.Error()})
	}

	value, err := s.srv.Verify(&msg, s.window())
	if err != nil {
		log.Infof("contribution rejected: %v", err)
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, utils.ErrReplay):
			status = http.StatusConflict
		case errors.Is(err, utils.ErrProofInvalid), errors.Is(err, utils.ErrOutOfWindow):
			status = http.StatusForbidden
		}
		return c.JSON(status, verdictResponse{Status: "error", Message: err.Error()})
	}
	return c.JSON(http.StatusOK, verdictResponse{Status: "success", LDPValue: value})
}

// window derives the acceptance bounds from the wall clock when timestamps
// are full-width unix seconds, and otherwise accepts every nonzero timestamp
// (narrow timestamps are driven by an out-of-band epoch counter).
func (s *service) window() server.Window {
	n := s.params.TimeBytes
	if n == 8 {
		now := uint64(s.clock.Now().Unix())
		return server.Window{
			Lower: utils.Uint64ToLEBytes(now-s.windowSeconds, n),
			Upper: utils.Uint64ToLEBytes(now, n),
		}
	}
	upper := make([]byte, n)
	for i := range upper {
		upper[i] = 0xFF
	}
	return server.Window{Lower: make([]byte, n), Upper: upper}
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	protoName := os.Getenv("VLDP_PROTOCOL")
	if protoName == "" {
		protoName = "base"
	}
	resources := os.Getenv("VLDP_RESOURCES")
	if resources == "" {
		resources = "resources/vldp"
	}
	paramsDir := os.Getenv("VLDP_PARAMS_DIR")
	windowSeconds := uint64(600)

	proto, err := utils.ParseProtocol(protoName)
	if err != nil {
		log.Fatalf("Invalid VLDP_PROTOCOL %q", protoName)
	}
	params, err := utils.LoadParamsDir(paramsDir)
	if err != nil {
		log.Fatalf("Failed to load parameters: %v", err)
	}

	vkData, err := os.ReadFile(filepath.Join(resources, "vk."+proto.String()))
	if err != nil {
		log.Fatalf("Failed to read verifying key: %v", err)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(vkData)); err != nil {
		log.Fatalf("Failed to parse verifying key: %v", err)
	}
	keyData, err := os.ReadFile(filepath.Join(resources, "server.key"))
	if err != nil {
		log.Fatalf("Failed to read server key: %v", err)
	}
	sigKey, err := utils.PrivateKeyFromBytes(keyData)
	if err != nil {
		log.Fatalf("Failed to parse server key: %v", err)
	}

	clock := clockwork.NewRealClock()
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	srv, err := server.NewWithKey(proto, params, sigKey, vk, clock, logger)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	s := &service{srv: srv, params: params, clock: clock, windowSeconds: windowSeconds}

	e := echo.New()
	e.Use(middleware.Logger())
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.INFO)
	e.GET("/health", s.health)
	e.POST("/vldp/phase1", s.phase1)
	e.POST("/vldp/phase2", s.phase2)

	go func() {
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()
	log.Infof("VLDP %s server started on :%s", proto, port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Errorf("Failed to shutdown server gracefully: %v", err)
	}
	log.Info("Server stopped")
}
