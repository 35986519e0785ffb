package bot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/iabetor/feedbot/internal/config"
	"github.com/iabetor/feedbot/internal/logger"
)

// maxRequestBody 限制回调请求体大小。
const maxRequestBody = 64 << 10

// CommandRequest 是聊天平台 outgoing webhook 的请求体，支持 JSON 和表单两种编码。
type CommandRequest struct {
	Token     string `json:"token"`
	UserName  string `json:"user_name"`
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

// CommandResponse 是回复给聊天平台的内容。
type CommandResponse struct {
	Text string `json:"text,omitempty"`
}

// Server 接收聊天平台的命令回调。
type Server struct {
	cfg    config.HTTPConfig
	plugin *Plugin
	router *mux.Router
}

// NewServer 创建命令回调服务。
func NewServer(cfg config.HTTPConfig, plugin *Plugin) *Server {
	s := &Server{cfg: cfg, plugin: plugin, router: mux.NewRouter()}
	s.router.HandleFunc("/hooks/command", s.handleCommand).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return s
}

// Handler 返回 HTTP 处理器。
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe 启动服务，ctx 取消后优雅关闭。
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           h2c.NewHandler(s.router, &http2.Server{}),
		ReadHeaderTimeout: time.Duration(s.cfg.ReadTimeout) * time.Second,
		ReadTimeout:       time.Duration(s.cfg.ReadTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[bot] 命令回调服务监听 %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	req, err := decodeCommandRequest(r)
	if err != nil {
		logger.Warnf("[bot] 请求 %s 解析失败: %v", requestID, err)
		writeJSON(w, http.StatusBadRequest, CommandResponse{Text: "请求格式错误"})
		return
	}
	if s.cfg.Token != "" && subtle.ConstantTimeCompare([]byte(req.Token), []byte(s.cfg.Token)) != 1 {
		logger.Warnf("[bot] 请求 %s token 校验失败 (用户 %s)", requestID, req.UserName)
		writeJSON(w, http.StatusUnauthorized, CommandResponse{Text: "token 无效"})
		return
	}

	logger.Debugf("[bot] 请求 %s 来自 %s@%s: %s", requestID, req.UserName, req.ChannelID, req.Text)
	reply := s.plugin.HandleMessage(r.Context(), Message{
		UserName:  req.UserName,
		ChannelID: req.ChannelID,
		Text:      req.Text,
	})
	writeJSON(w, http.StatusOK, CommandResponse{Text: reply})
}

func decodeCommandRequest(r *http.Request) (CommandRequest, error) {
	var req CommandRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Token = r.PostForm.Get("token")
	req.UserName = r.PostForm.Get("user_name")
	req.ChannelID = r.PostForm.Get("channel_id")
	req.Text = r.PostForm.Get("text")
	return req, nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("[bot] 写响应失败: %v", err)
	}
}
