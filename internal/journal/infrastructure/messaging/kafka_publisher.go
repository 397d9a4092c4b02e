// Package messaging 交易日志模块的领域事件发布实现
package messaging

import (
	"context"

	"github.com/dhet13/finnote/internal/journal/domain"
	"github.com/dhet13/finnote/pkg/logger"
	"github.com/dhet13/finnote/pkg/mq"
)

// KafkaEventPublisher 把日志聚合事件发往 Kafka。
// 发布在事务提交之后进行，失败只记录日志，不回滚也不阻断写入路径
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewKafkaEventPublisher 创建事件发布器
func NewKafkaEventPublisher(producer *mq.KafkaProducer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		producer: producer,
		topic:    topic,
	}
}

// PublishJournalUpdated 发布日志聚合重算完成事件，以 user_id:ticker 为 key 保证同一账本内有序
func (p *KafkaEventPublisher) PublishJournalUpdated(ctx context.Context, evt domain.JournalUpdatedEvent) {
	key := evt.UserID + ":" + evt.Ticker
	if err := p.producer.SendMessage(ctx, p.topic, key, evt); err != nil {
		logger.Warn(ctx, "Failed to publish journal updated event",
			"journal_id", evt.JournalID,
			"ticker", evt.Ticker,
			"error", err,
		)
	}
}

// NoopEventPublisher 空实现，Kafka 未配置时使用
type NoopEventPublisher struct{}

// PublishJournalUpdated 丢弃事件
func (NoopEventPublisher) PublishJournalUpdated(ctx context.Context, evt domain.JournalUpdatedEvent) {
}
