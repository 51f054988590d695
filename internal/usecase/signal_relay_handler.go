package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	domrepo "github.com/Altav1sta/stocks-checker/internal/domain/repository"
	pkgkafka "github.com/Altav1sta/stocks-checker/pkg/kafka"
)

// SignalRelayHandler consumes level signals from a Kafka topic and forwards
// them to a downstream notifier. Used when the pipeline publishes to Kafka
// and a separate consumer fans out to chats.
type SignalRelayHandler struct {
	topic    string
	notifier domrepo.Notifier
	metrics  domrepo.Metrics
}

func NewSignalRelayHandler(topic string, notifier domrepo.Notifier, metrics domrepo.Metrics) *SignalRelayHandler {
	return &SignalRelayHandler{topic: topic, notifier: notifier, metrics: metrics}
}

func (h *SignalRelayHandler) Topic() string { return h.topic }

func (h *SignalRelayHandler) Handle(ctx context.Context, b []byte) error {
	var sig models.LevelSignal
	if err := json.Unmarshal(b, &sig); err != nil {
		h.metrics.RecordError("relay_unmarshal")
		return err
	}
	h.metrics.RecordLatency("relay_e2e", time.Since(sig.At).Seconds())

	if err := h.notifier.Notify(ctx, &sig); err != nil {
		h.metrics.RecordError("relay_notify")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*SignalRelayHandler)(nil)
