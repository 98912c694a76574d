package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/choudian/document-QA-system/internal/config"
	"github.com/segmentio/kafka-go"
)

// AuditPublisher 封装了向 Kafka 发送审计事件的逻辑。
type AuditPublisher struct {
	writer *kafka.Writer
}

// NewAuditPublisher 创建一个新的 AuditPublisher 实例。
func NewAuditPublisher(cfg *config.KafkaConfig) *AuditPublisher {
	// 为审计主题创建一个新的 writer 实例配置。
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	})
	return &AuditPublisher{writer: writer}
}

// Publish 将审计事件序列化为 JSON 并发送到 Kafka。
// key 用于分区（通常为租户 ID 或用户 ID）。
func (p *AuditPublisher) Publish(ctx context.Context, key string, event interface{}) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: jsonData,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close 关闭底层的 writer 连接。
func (p *AuditPublisher) Close() error {
	return p.writer.Close()
}
