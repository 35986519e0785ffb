package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/iabetor/feedbot/internal/logger"
)

// Message 是一条来自聊天频道的消息。
type Message struct {
	UserName  string
	ChannelID string
	Text      string
}

// Command 定义一条子命令，如 "rss add"。
type Command interface {
	Name() string
	Usage() string
	Description() string
	AdminOnly() bool
	// Execute 返回给用户的回复。用户输入错误等情况直接写进回复，error 只用于内部故障。
	Execute(ctx context.Context, msg Message, args []string) (string, error)
}

// Registry 管理所有已注册的子命令。
type Registry struct {
	trigger  string
	commands map[string]Command
	admins   map[string]bool
}

// NewRegistry 创建命令注册表。trigger 是命令前缀词（如 "rss"）。
func NewRegistry(trigger string, admins []string) *Registry {
	r := &Registry{
		trigger:  trigger,
		commands: make(map[string]Command),
		admins:   make(map[string]bool, len(admins)),
	}
	for _, a := range admins {
		r.admins[a] = true
	}
	return r
}

// Register 注册一条子命令。
func (r *Registry) Register(c Command) {
	r.commands[c.Name()] = c
	logger.Debugf("[bot] 已注册命令: %s %s", r.trigger, c.Name())
}

// Count 返回已注册命令数量。
func (r *Registry) Count() int {
	return len(r.commands)
}

// IsAdmin 判断用户是否为管理员。
func (r *Registry) IsAdmin(user string) bool {
	return r.admins[user]
}

// Help 返回按名称排序的命令说明。
func (r *Registry) Help() string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("可用命令:\n")
	for _, name := range names {
		c := r.commands[name]
		sb.WriteString(fmt.Sprintf("%s %s", r.trigger, c.Usage()))
		if c.AdminOnly() {
			sb.WriteString(" (管理员)")
		}
		sb.WriteString(fmt.Sprintf(": %s\n", c.Description()))
	}
	return sb.String()
}

// Dispatch 解析消息并执行对应命令，返回回复文本。
// 不以触发词开头的消息返回空字符串。
func (r *Registry) Dispatch(ctx context.Context, msg Message) string {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 || strings.TrimPrefix(fields[0], "!") != r.trigger {
		return ""
	}
	if len(fields) == 1 {
		return r.Help()
	}

	name := strings.ToLower(fields[1])
	c, ok := r.commands[name]
	if !ok {
		return fmt.Sprintf("未知命令 %q。\n%s", name, r.Help())
	}
	if c.AdminOnly() && !r.IsAdmin(msg.UserName) {
		logger.Warnf("[bot] 用户 %s 尝试执行管理员命令 %s", msg.UserName, name)
		return "该命令仅限管理员使用。"
	}

	logger.Infof("[bot] 执行命令: %s %s, 用户: %s, 参数: %v", r.trigger, name, msg.UserName, fields[2:])
	reply, err := c.Execute(ctx, msg, fields[2:])
	if err != nil {
		logger.Errorf("[bot] 命令 %s 执行失败: %v", name, err)
		return fmt.Sprintf("命令执行失败: %v", err)
	}
	return reply
}
