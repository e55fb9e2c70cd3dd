package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"google.golang.org/grpc"

	"dentalgw/internal/channel"
	"dentalgw/internal/config"
	"dentalgw/internal/kinds"
	"dentalgw/internal/lexicon"
	"dentalgw/internal/logging"
	"dentalgw/internal/pairing"
	"dentalgw/internal/registry"
	"dentalgw/internal/token"
	"dentalgw/internal/transcribe"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn wraps one gorilla connection with a write mutex: a
// *websocket.Conn tolerates only one concurrent writer (teacher
// server.go's wsClient).
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writeBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// wsHub implements channel.Sender over live gorilla websocket
// connections keyed by client id — the router addresses peers by id,
// not by connection identity, so this differs from the teacher's
// clients-as-set shape while keeping its write-serialization idiom.
type wsHub struct {
	mu    sync.RWMutex
	conns map[string]*wsConn
}

func newWSHub() *wsHub {
	return &wsHub{conns: make(map[string]*wsConn)}
}

func (h *wsHub) register(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[clientID] = &wsConn{conn: conn}
	h.mu.Unlock()
}

func (h *wsHub) Send(clientID string, msg channel.Message) error {
	h.mu.RLock()
	c, ok := h.conns[clientID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	if msg.Type == "audio_chunk" && len(msg.Data) > 0 {
		return c.writeBinary(msg.Data)
	}
	return c.writeJSON(msg)
}

func (h *wsHub) Close(clientID string) {
	h.mu.Lock()
	c, ok := h.conns[clientID]
	delete(h.conns, clientID)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

// Server owns every manager the gateway needs and exposes them over
// REST, WebSocket, and the admin gRPC control plane (spec §6), the
// adapted descendant of the teacher's Server struct.
type Server struct {
	cfg      *config.Config
	log      *logging.Logger
	reg      *registry.Registry
	pairing  *pairing.Store
	router   *channel.Router
	hub      *wsHub
	issuer   *token.Issuer
	verifier *token.Verifier
	lexicon  *lexicon.Loader
	orch     *transcribe.Orchestrator

	mu         sync.Mutex
	grpcServer *grpc.Server
}

// NewServer builds a Server wiring a fresh Router on top of reg/store,
// addressed through hub.
func NewServer(
	cfg *config.Config,
	log *logging.Logger,
	reg *registry.Registry,
	store *pairing.Store,
	issuer *token.Issuer,
	verifier *token.Verifier,
	lex *lexicon.Loader,
	orch *transcribe.Orchestrator,
) *Server {
	hub := newWSHub()
	router := channel.New(reg, store, hub, cfg.RateLimitMessagesPerSec, cfg.RateLimitBytesPerSec, log)
	return &Server{
		cfg:      cfg,
		log:      log,
		reg:      reg,
		pairing:  store,
		router:   router,
		hub:      hub,
		issuer:   issuer,
		verifier: verifier,
		lexicon:  lex,
		orch:     orch,
	}
}

// Mux builds the HTTP handler for every REST + WebSocket route.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/transcribe", s.handleTranscribe)
	mux.HandleFunc("/generate-pair-code", s.handleGeneratePairCode)
	mux.HandleFunc("/pair-device", s.handlePairDevice)
	mux.HandleFunc("/auth/ws-token", s.handleWSToken)
	mux.HandleFunc("/auth/ws-token-mobile", s.handleWSTokenMobile)
	return mux
}

// Start runs the HTTP listener (REST + WebSocket) and the gRPC admin
// control plane until ctx is canceled, then shuts the HTTP server down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	httpSrv := &http.Server{Addr: ":" + s.cfg.Port, Handler: s.Mux()}

	go s.startGRPCServer()

	errCh := make(chan error, 1)
	go func() {
		s.log.With("port", s.cfg.Port).Info("http listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.StopGRPC()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func bearerFromSubprotocols(protocols []string) string {
	const prefix = "Bearer."
	for _, p := range protocols {
		if strings.HasPrefix(p, prefix) {
			return strings.TrimPrefix(p, prefix)
		}
	}
	return ""
}

// scopeAllows enforces spec §4.7's scope restriction ("mobile: only
// mobile_init and audio_chunk are accepted") ahead of the router's own
// per-state whitelist. Desktop-scoped connections are unrestricted here;
// the router's state machine still applies to them.
func scopeAllows(scope token.Scope, raw []byte) bool {
	if scope != token.ScopeMobile {
		return true
	}
	var peek struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return true // malformed frame: let the router's own VALIDATION_ERROR path handle it
	}
	switch peek.Type {
	case "mobile_init", "audio_chunk":
		return true
	default:
		return false
	}
}

// channelPinHolds enforces the mobile token's channel claim once the
// connection has joined a channel (spec §4.7 "channel claim pins the
// allowed channel").
func channelPinHolds(rc *registry.Conn, claims *token.Claims) bool {
	ch := rc.ChannelID()
	if ch == "" {
		return true
	}
	return claims.AllowsChannel(ch)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	rawToken := bearerFromSubprotocols(websocket.Subprotocols(r))
	if rawToken == "" {
		http.Error(w, "missing admission token", http.StatusUnauthorized)
		return
	}
	claims, err := s.verifier.Verify(rawToken)
	if err != nil {
		http.Error(w, "invalid admission token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, http.Header{"Sec-WebSocket-Protocol": {"Bearer." + rawToken}})
	if err != nil {
		s.log.With("error", err).Warn("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	s.hub.register(clientID, conn)

	deviceType := registry.DeviceMobile
	if claims.Scope == token.ScopeDesktop {
		deviceType = registry.DeviceDesktop
	}
	rc := &registry.Conn{ID: clientID, DeviceType: deviceType, SessionID: claims.Subject, Underlying: conn}
	s.router.Accept(rc)

	defer func() {
		s.router.Unregister(clientID)
		s.hub.Close(clientID)
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			s.router.HandleBinary(clientID, data)
		case websocket.TextMessage:
			if !scopeAllows(claims.Scope, data) {
				_ = s.hub.Send(clientID, channel.Message{Type: "error", Code: "VALIDATION_ERROR"})
				continue
			}
			s.router.HandleText(clientID, data)
			if !channelPinHolds(rc, claims) {
				s.router.Unregister(clientID)
				s.hub.Close(clientID)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorEnvelope{Detail: err.Error()})
}

var errUnsupportedFormat = errors.New("unsupported audio format")

var supportedFormats = map[string]bool{"": true, "pcm16": true, "wav": true, "webm": true}

// statusForError maps the error taxonomy to the HTTP status codes named
// in spec §6/§7.
func statusForError(err error) int {
	switch {
	case errors.Is(err, errUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, kinds.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, kinds.ErrPayloadTooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, kinds.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, kinds.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// subjectFromRequest extracts and verifies the bearer admission token,
// returning its subject for use as the lexicon user id.
func (s *Server) subjectFromRequest(r *http.Request) (string, error) {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, prefix) {
		return "", kinds.ErrInvalidToken
	}
	claims, err := s.verifier.Verify(strings.TrimPrefix(auth, prefix))
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := s.subjectFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	var req TranscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kinds.ErrValidation)
		return
	}
	if !supportedFormats[req.Format] {
		writeError(w, http.StatusUnsupportedMediaType, errUnsupportedFormat)
		return
	}

	audio, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil {
		writeError(w, http.StatusBadRequest, kinds.ErrValidation)
		return
	}

	snap, err := s.lexicon.Load(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	res, err := s.orch.Transcribe(r.Context(), audio, req.Language, req.Prompt, snap)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, TranscribeResponse{
		Text:       res.Normalized,
		Raw:        res.Raw,
		Normalized: res.Normalized,
		Language:   res.Language,
		Duration:   res.Duration,
		Provider:   res.Provider,
		Model:      res.Model,
	})
}

func (s *Server) handleGeneratePairCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req GeneratePairCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kinds.ErrValidation)
		return
	}
	rec, err := s.pairing.Create(r.Context(), req.DesktopSessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, GeneratePairCodeResponse{
		Code:      rec.Code,
		ExpiresAt: rec.ExpiresAt,
		ChannelID: rec.ChannelID,
	})
}

func pairErrorCode(err error) string {
	switch {
	case errors.Is(err, kinds.ErrInvalidCode):
		return "INVALID_CODE"
	case errors.Is(err, kinds.ErrCodeExpired):
		return "CODE_EXPIRED"
	case errors.Is(err, kinds.ErrAlreadyPaired):
		return "ALREADY_PAIRED"
	default:
		return "INTERNAL"
	}
}

// handlePairDevice lets a mobile client confirm a pairing code over
// REST instead of (or ahead of) the WebSocket mobile_init path — both
// ultimately call the same pairing.Store.Claim, so whichever happens
// first wins and the other observes ALREADY_PAIRED (spec §6).
func (s *Server) handlePairDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req PairDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, PairDeviceResponse{Success: false, Error: "VALIDATION_ERROR", Message: err.Error()})
		return
	}
	rec, err := s.pairing.Claim(r.Context(), req.Code, req.MobileSessionID)
	if err != nil {
		writeJSON(w, http.StatusOK, PairDeviceResponse{Success: false, Error: pairErrorCode(err), Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, PairDeviceResponse{Success: true, ChannelID: rec.ChannelID, Message: "paired"})
}

func (s *Server) handleWSToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req WSTokenRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // body is optional
	sub := req.SessionID
	if sub == "" {
		sub = uuid.New().String()
	}

	tok, exp, err := s.issuer.IssueDesktop(sub)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, WSTokenResponse{Token: tok, ExpiresIn: int64(time.Until(exp).Seconds())})
}

func (s *Server) handleWSTokenMobile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req MobileWSTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kinds.ErrValidation)
		return
	}
	rec, ok := s.pairing.Lookup("pair-" + req.PairCode)
	if !ok {
		writeError(w, http.StatusBadRequest, kinds.ErrInvalidCode)
		return
	}

	tok, exp, err := s.issuer.IssueMobile(uuid.New().String(), rec.ChannelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, MobileWSTokenResponse{
		Token:     tok,
		ExpiresIn: int64(time.Until(exp).Seconds()),
		Channel:   rec.ChannelID,
	})
}
