// Command stubserver is a development chat server speaking the same
// protocol the client expects: REST auth endpoints plus the websocket
// chat endpoint. State lives in memory; rooms are created on demand
// and keep their last 50 messages for the join snapshot.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vovakirdan/finchat-client/internal/log"
)

const historyLimit = 50

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := log.New(*level)
	srv := newServer([]byte(uuid.NewString()))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/register", srv.handleRegister)
	router.POST("/login", srv.handleLogin)
	router.POST("/logout", srv.handleLogout)
	router.GET("/profile", srv.handleProfile)
	router.GET("/ws/chat/", srv.handleChat)

	logger.Info().Str("addr", *addr).Msg("stub server listening")
	if err := http.ListenAndServe(*addr, router); err != nil {
		logger.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

type account struct {
	Username     string
	Email        string
	PasswordHash []byte
}

type client struct {
	username string
	out      chan any
	rooms    map[string]struct{}
}

type roomState struct {
	members map[*client]struct{}
	history []histEntry
	stamp   int64
}

type histEntry struct {
	stamp int64
	user  string
	body  string
}

type server struct {
	secret []byte

	mu       sync.Mutex
	accounts map[string]*account
	clients  map[string]*client
	rooms    map[string]*roomState
}

func newServer(secret []byte) *server {
	return &server{
		secret:   secret,
		accounts: make(map[string]*account),
		clients:  make(map[string]*client),
		rooms:    make(map[string]*roomState),
	}
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func (s *server) issueToken(username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	})
	return token.SignedString(s.secret)
}

func (s *server) parseToken(tokenString string) (*claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return c, nil
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[req.Username]; exists {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
		return
	}
	s.accounts[req.Username] = &account{Username: req.Username, Email: req.Email, PasswordHash: hash}
	s.mu.Unlock()

	token, err := s.issueToken(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token})
}

func (s *server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[req.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.issueToken(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *server) handleLogout(c *gin.Context) {
	// Tokens are stateless here; the client drops its copy.
	c.JSON(http.StatusOK, gin.H{})
}

func (s *server) handleProfile(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Token ")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	cl, err := s.parseToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[cl.Username]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": acct.Username, "email": acct.Email})
}

type inbound struct {
	Type     string `json:"type"`
	RoomName string `json:"room_name"`
	Body     string `json:"body"`
	Command  string `json:"command"`
	Payload  string `json:"payload"`
}

func (s *server) handleChat(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	ctx := c.Request.Context()

	cl, err := s.parseToken(c.Query("token"))
	if err != nil {
		_ = wsjson.Write(ctx, conn, gin.H{"type": "fatal", "code": "not-authenticated"})
		_ = conn.Close(websocket.StatusPolicyViolation, "not authenticated")
		return
	}

	me := &client{
		username: cl.Username,
		out:      make(chan any, 32),
		rooms:    make(map[string]struct{}),
	}

	s.mu.Lock()
	if _, connected := s.clients[me.username]; connected {
		s.mu.Unlock()
		_ = wsjson.Write(ctx, conn, gin.H{"type": "fatal", "code": "already-chatting"})
		_ = conn.Close(websocket.StatusPolicyViolation, "already chatting")
		return
	}
	s.clients[me.username] = me
	s.mu.Unlock()

	go func() {
		for msg := range me.out {
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return
			}
		}
	}()

	for {
		var in inbound
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			break
		}
		s.dispatch(me, in)
	}

	s.disconnect(me)
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func (s *server) dispatch(me *client, in inbound) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch in.Type {
	case "list":
		list := make([]gin.H, 0, len(s.rooms))
		for name := range s.rooms {
			_, joined := me.rooms[name]
			list = append(list, gin.H{"name": name, "joined": joined})
		}
		push(me, gin.H{"type": "notification", "code": "list", "list": list})
	case "join":
		s.join(me, in.RoomName)
	case "part":
		s.part(me, in.RoomName)
	case "message":
		s.message(me, in.RoomName, in.Body)
	case "custom":
		s.custom(me, in.RoomName, in.Command, in.Payload)
	default:
		push(me, gin.H{"type": "error", "code": "unsupported-command", "details": in.Type})
	}
}

func (s *server) join(me *client, name string) {
	if name == "" {
		push(me, gin.H{"type": "error", "code": "room:invalid", "details": name})
		return
	}
	if _, in := me.rooms[name]; in {
		push(me, gin.H{"type": "error", "code": "room:already-joined", "details": name})
		return
	}
	room, ok := s.rooms[name]
	if !ok {
		room = &roomState{members: make(map[*client]struct{})}
		s.rooms[name] = room
	}
	room.members[me] = struct{}{}
	me.rooms[name] = struct{}{}
	room.stamp++

	for member := range room.members {
		env := gin.H{
			"type":      "notification",
			"code":      "joined",
			"room_name": name,
			"stamp":     room.stamp,
			"user":      me.username,
			"you":       member == me,
		}
		if member == me {
			env["status"] = s.roomStatus(room, me)
		}
		push(member, env)
	}
}

// roomStatus builds the one-time snapshot a self-join carries.
func (s *server) roomStatus(room *roomState, me *client) gin.H {
	users := make([]gin.H, 0, len(room.members))
	for member := range room.members {
		users = append(users, gin.H{"name": member.username, "you": member == me})
	}
	messages := make([]gin.H, 0, len(room.history))
	for _, h := range room.history {
		messages = append(messages, gin.H{
			"stamp": h.stamp,
			"user":  h.user,
			"you":   h.user == me.username,
			"body":  h.body,
		})
	}
	return gin.H{"users": users, "messages": messages}
}

func (s *server) part(me *client, name string) {
	room, ok := s.rooms[name]
	if _, in := me.rooms[name]; !in || !ok {
		push(me, gin.H{"type": "error", "code": "room:not-joined", "details": name})
		return
	}
	room.stamp++
	for member := range room.members {
		push(member, gin.H{
			"type":      "notification",
			"code":      "parted",
			"room_name": name,
			"stamp":     room.stamp,
			"user":      me.username,
			"you":       member == me,
		})
	}
	delete(room.members, me)
	delete(me.rooms, name)
}

func (s *server) message(me *client, name, body string) {
	room, ok := s.rooms[name]
	if _, in := me.rooms[name]; !in || !ok {
		push(me, gin.H{"type": "error", "code": "room:not-joined", "details": name})
		return
	}
	body = strings.TrimSpace(body)
	if body == "" {
		push(me, gin.H{"type": "error", "code": "room:empty-message"})
		return
	}
	room.stamp++
	room.history = append(room.history, histEntry{stamp: room.stamp, user: me.username, body: body})
	if len(room.history) > historyLimit {
		room.history = room.history[len(room.history)-historyLimit:]
	}
	for member := range room.members {
		push(member, gin.H{
			"type":      "notification",
			"code":      "message",
			"room_name": name,
			"stamp":     room.stamp,
			"user":      me.username,
			"you":       member == me,
			"body":      body,
		})
	}
}

// custom commands are broadcast but never stored in history.
func (s *server) custom(me *client, name, command, payload string) {
	room, ok := s.rooms[name]
	if _, in := me.rooms[name]; !in || !ok {
		push(me, gin.H{"type": "error", "code": "room:not-joined", "details": name})
		return
	}
	if strings.TrimSpace(command) == "" {
		push(me, gin.H{"type": "error", "code": "room:empty-custom"})
		return
	}
	room.stamp++
	for member := range room.members {
		push(member, gin.H{
			"type":      "notification",
			"code":      "custom",
			"room_name": name,
			"stamp":     room.stamp,
			"user":      me.username,
			"you":       member == me,
			"command":   command,
			"payload":   payload,
		})
	}
}

func (s *server) disconnect(me *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range me.rooms {
		s.part(me, name)
	}
	delete(s.clients, me.username)
	close(me.out)
}

func push(c *client, msg any) {
	select {
	case c.out <- msg:
	default:
		// Drop if slow consumer.
	}
}
