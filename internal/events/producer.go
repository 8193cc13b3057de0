package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"unimarket/internal/domain/model"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const producerName = "unimarket-api"

// Producer は確定済み注文のイベントをKafkaへ流す。
// 注文トランザクションの外で呼ばれ、失敗してもログを残すだけ。
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	log     *slog.Logger
}

func NewProducer(brokers []string, buf int, log *slog.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        TopicOrderCreated,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				//残りをフラッシュして終了
				for {
					select {
					case m := <-p.inbox:
						_ = p.w.WriteMessages(context.Background(), m)
					default:
						_ = p.w.Close()
						close(p.closeCh)
						return
					}
				}
			case m := <-p.inbox:
				if err := p.w.WriteMessages(context.Background(), m); err != nil {
					p.log.Warn("failed to write order event", "error", err)
				}
			}
		}
	}()
}

// OrderCreated は注文確定イベントをキューに積む。ブロックせず、あふれたら捨てる。
func (p *Producer) OrderCreated(ctx context.Context, order model.Order, items []model.OrderItem) {
	payloadItems := make([]OrderItemPayload, 0, len(items))
	for _, it := range items {
		payloadItems = append(payloadItems, OrderItemPayload{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPriceSnapshot.String(),
		})
	}

	payload, err := json.Marshal(OrderCreatedPayload{
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		SellerID:      order.SellerID,
		TotalAmount:   order.TotalAmount.String(),
		PaymentMethod: string(order.PaymentMethod),
		Items:         payloadItems,
	})
	if err != nil {
		p.log.Warn("failed to marshal order event", "order_id", order.ID, "error", err)
		return
	}

	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now(),
		Producer:      producerName,
		CorrelationID: strconv.FormatInt(order.ID, 10),
		Payload:       payload,
	}

	value, err := json.Marshal(env)
	if err != nil {
		p.log.Warn("failed to marshal event envelope", "order_id", order.ID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(order.ID, 10)),
		Value: value,
		Time:  time.Now(),
	}

	select {
	case p.inbox <- msg:
	default:
		p.log.Warn("event inbox full, dropping order event", "order_id", order.ID)
	}
}

// Startに渡したctxの取り消し後、フラッシュ完了まで待つ
func (p *Producer) WaitClosed() { <-p.closeCh }
