package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/chanx"
)

var ErrPublisherClosed = errors.New("publisher is closed")

type publisherOptions[T any] struct {
	logger     *slog.Logger
	bufferSize int
	encodeFunc func(T) (map[string]any, error)
}

type PublisherOption[T any] func(*publisherOptions[T])

// WithPublisherLogger 設置日誌記錄器
func WithPublisherLogger[T any](logger *slog.Logger) PublisherOption[T] {
	return func(o *publisherOptions[T]) {
		o.logger = logger
	}
}

// WithPublisherBufferSize 設置緩衝大小
func WithPublisherBufferSize[T any](size int) PublisherOption[T] {
	return func(o *publisherOptions[T]) {
		o.bufferSize = size
	}
}

// WithPublisherEncodeFunc 設置事件序列化函數
func WithPublisherEncodeFunc[T any](fn func(T) (map[string]any, error)) PublisherOption[T] {
	return func(o *publisherOptions[T]) {
		o.encodeFunc = fn
	}
}

// Publisher 將事件非同步寫入 redis stream
// 事件先進入無界通道，由單一goroutine負責XAdd，
// 發佈端永遠不會因redis慢或斷線而阻塞
type Publisher[T any] struct {
	client     *redis.Client
	stream     string
	upstream   *chanx.UnboundedChan[map[string]any]
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
	logger     *slog.Logger
	options    publisherOptions[T]
}

func NewPublisher[T any](client *redis.Client, stream string, opts ...PublisherOption[T]) (*Publisher[T], error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if stream == "" {
		return nil, errors.New("stream cannot be empty")
	}

	// 默認選項
	options := publisherOptions[T]{
		logger:     slog.Default(),
		bufferSize: 100,
		encodeFunc: EncodeEvent[T],
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	return &Publisher[T]{
		client:  client,
		stream:  stream,
		closed:  true,
		logger:  options.logger.With(slog.String("caller", "Publisher"), slog.String("stream", stream)),
		options: options,
	}, nil
}

func (p *Publisher[T]) Start() {
	if !p.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.upstream = chanx.NewUnboundedChan[map[string]any](ctx, p.options.bufferSize)
	p.cancelFunc = cancel
	p.closed = false
	p.logger.Info("starting event publisher")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.logger.Info("publisher goroutine stopped")

		for {
			select {
			case <-ctx.Done():
				return
			case message := <-p.upstream.Out:
				id, err := p.client.XAdd(ctx, &redis.XAddArgs{
					Stream: p.stream,
					Values: message,
				}).Result()

				if err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					p.logger.Error("publish event error", slog.Any("error", err))
					continue
				}

				p.logger.Debug("event published", slog.String("messageId", id))
			}
		}
	}()
}

func (p *Publisher[T]) Publish(data T) error {
	if p.closed {
		return ErrPublisherClosed
	}

	message, err := p.options.encodeFunc(data)
	if err != nil {
		return fmt.Errorf("encode event error: %w", err)
	}

	p.upstream.In <- message
	return nil
}

func (p *Publisher[T]) Close() {
	if p.closed {
		return
	}
	p.logger.Info("closing event publisher")
	p.closed = true
	p.cancelFunc()
	p.wg.Wait()
	p.logger.Info("event publisher closed")
}
