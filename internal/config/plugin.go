package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// PollIntervalKey 是插件配置中唯一允许的键。
const PollIntervalKey = "POLL_INTERVAL"

// DefaultPollInterval 未配置时的轮询间隔。
const DefaultPollInterval = 1800 * time.Second

// 轮询间隔上限，超过后 time.Duration 会溢出。
const maxPollSeconds = float64(math.MaxInt64 / int64(time.Second))

var (
	ErrMissingPollInterval  = errors.New("插件配置必须包含 " + PollIntervalKey)
	ErrUnknownPluginKey     = errors.New("插件配置只允许 " + PollIntervalKey)
	ErrPollIntervalNaN      = errors.New(PollIntervalKey + " 必须是数字")
	ErrPollIntervalTooSmall = errors.New(PollIntervalKey + " 小于 1 纳秒")
)

// PluginConfig 是校验后的插件配置。
type PluginConfig struct {
	PollInterval float64 `validate:"gt=0"` // 秒
}

// Interval 返回轮询间隔；p 为 nil 表示未配置，使用默认值。
func (p *PluginConfig) Interval() time.Duration {
	if p == nil {
		return DefaultPollInterval
	}
	return time.Duration(p.PollInterval * float64(time.Second))
}

// ParsePluginConfig 校验插件配置。
// 空配置返回 (nil, nil)，表示使用默认值；其余任何不合法情况都返回错误，不会静默回退。
func ParsePluginConfig(raw map[string]interface{}) (*PluginConfig, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	value, ok := raw[PollIntervalKey]
	if !ok {
		return nil, ErrMissingPollInterval
	}
	if len(raw) > 1 {
		var extra []string
		for k := range raw {
			if k != PollIntervalKey {
				extra = append(extra, k)
			}
		}
		return nil, fmt.Errorf("%w: 多余的键 %s", ErrUnknownPluginKey, strings.Join(extra, ", "))
	}

	seconds, err := toFloat(value)
	if err != nil {
		return nil, err
	}
	if math.IsInf(seconds, 0) || seconds > maxPollSeconds {
		return nil, fmt.Errorf("%s 过大: %v", PollIntervalKey, value)
	}

	pc := &PluginConfig{PollInterval: seconds}
	if err := validator.New().Struct(pc); err != nil {
		return nil, fmt.Errorf("%s 必须大于 0: %w", PollIntervalKey, err)
	}
	// 换算成 time.Duration 后不能截断为 0
	if pc.Interval() <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrPollIntervalTooSmall, value)
	}
	return pc, nil
}

// toFloat 接受 YAML 解出的数字或数字字符串。
func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		if math.IsNaN(n) {
			return 0, ErrPollIntervalNaN
		}
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) {
			return 0, fmt.Errorf("%w: %q", ErrPollIntervalNaN, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrPollIntervalNaN, v)
	}
}
