// Package notify 通过 Redis Pub/Sub 把 worker 的生成结果推送给 WebSocket 客户端。
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 消息类型。
const (
	KindDocument  = "document"
	KindThumbnail = "thumbnail"
)

// 消息状态。
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Message 统一的 WebSocket 消息协议，字段名与客户端解析保持一致。
type Message struct {
	Kind          string   `json:"kind"`
	Status        string   `json:"status"`
	DocumentID    uint     `json:"document_id,omitempty"`
	TemplateID    uint     `json:"template_id,omitempty"`
	CorrelationID string   `json:"correlation_id"`
	ErrorCode     int      `json:"error_code"`
	ErrorMessage  string   `json:"error_message"`
	MissingKeys   []string `json:"missing_keys,omitempty"`
}

// Publisher 是发布消息所需的 Redis 客户端能力。
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Channel 返回用户专属的通知频道。
func Channel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

// Publish 向 userID 的频道发送 msg。
func Publish(ctx context.Context, pub Publisher, userID uint, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := Channel(userID)
	if err := pub.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
