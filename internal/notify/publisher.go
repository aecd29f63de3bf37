// Package notify 外发事件（新的待确认、新选手、批次完成）投递到消息总线，由机器人订阅。
// 投递异步、限流、尽力而为：队列满或总线出错只记日志，不回传给对账流程
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"LundaSync/internal/config"
	"LundaSync/internal/interfaces"
	"LundaSync/internal/metrics"

	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	nc "github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const queueSize = 256

var ErrClosed = errors.New("事件发布器已关闭")

// Publisher 实现 interfaces.Notifier
type Publisher struct {
	pub     message.Publisher
	prefix  string
	limiter *rate.Limiter
	logger  *logrus.Logger
	metrics *metrics.Metrics

	queue  chan *outgoing
	done   chan struct{}
	ctx    context.Context // Close 时取消，剩余事件不再等限流
	cancel context.CancelFunc
	mu     sync.RWMutex
	closed bool
}

type outgoing struct {
	topic string
	msg   *message.Message
}

// eventMarshaler 消息体即事件 JSON，metadata 放在 NATS header，非 Go 的订阅方也能直接解码
func eventMarshaler() nats.Marshaler {
	return &nats.NATSMarshaler{}
}

// NewBus 按配置创建总线：配置了 NATS 用 watermill-nats，否则用进程内 gochannel
func NewBus(cfg config.EventsConfig, logger *logrus.Logger) (message.Publisher, error) {
	wlog := newWatermillLogger(logger)
	if cfg.NATSURL == "" {
		return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: queueSize}, wlog), nil
	}
	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL: cfg.NATSURL,
		NatsOptions: []nc.Option{
			nc.RetryOnFailedConnect(true),
			nc.Timeout(30 * time.Second),
			nc.ReconnectWait(time.Second),
		},
		Marshaler: eventMarshaler(),
		JetStream: nats.JetStreamConfig{
			Disabled:      !cfg.JetStream,
			AutoProvision: cfg.JetStream,
		},
		SubjectCalculator: nats.DefaultSubjectCalculator,
	}, wlog)
	if err != nil {
		return nil, fmt.Errorf("创建NATS发布器失败: %w", err)
	}
	return pub, nil
}

// NewPublisher 包装任意 watermill 发布器，启动后台投递协程
func NewPublisher(pub message.Publisher, cfg config.EventsConfig, logger *logrus.Logger, m *metrics.Metrics) *Publisher {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "lunda"
	}
	p := &Publisher{
		pub:     pub,
		prefix:  prefix,
		limiter: rate.NewLimiter(limit, 5),
		logger:  logger,
		metrics: m,
		queue:   make(chan *outgoing, queueSize),
		done:    make(chan struct{}),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	go p.loop()
	return p
}

// Topic 事件对应的 topic
func (p *Publisher) Topic(t interfaces.EventType) string {
	return p.prefix + "." + string(t)
}

// Publish 入队即返回；队列满时丢弃并计数
func (p *Publisher) Publish(ctx context.Context, ev interfaces.Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("event_type", string(ev.Type))

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- &outgoing{topic: p.Topic(ev.Type), msg: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.EventDropped()
		p.logger.WithField("event_type", ev.Type).Warn("事件队列已满，丢弃")
		return nil
	}
}

func (p *Publisher) loop() {
	defer close(p.done)
	for out := range p.queue {
		_ = p.limiter.Wait(p.ctx)
		if err := p.pub.Publish(out.topic, out.msg); err != nil {
			p.metrics.EventDropped()
			p.logger.WithError(err).WithFields(logrus.Fields{
				"topic":      out.topic,
				"message_id": out.msg.UUID,
			}).Warn("事件投递失败")
		}
	}
}

// Close 停止接收新事件，投递完队列后关闭底层发布器
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.cancel()
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.pub.Close()
}

// Nop 不投递任何事件
type Nop struct{}

func (Nop) Publish(context.Context, interfaces.Event) error { return nil }
func (Nop) Close() error                                   { return nil }

var (
	_ interfaces.Notifier = (*Publisher)(nil)
	_ interfaces.Notifier = Nop{}
)
