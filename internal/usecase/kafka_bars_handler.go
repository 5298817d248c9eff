package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"stockcast/internal/domain/models"
	domrepo "stockcast/internal/domain/repository"
	pkgkafka "stockcast/pkg/kafka"
	"stockcast/pkg/util"
)

// BarSink receives parsed bars; the ingest pipeline implements it.
type BarSink interface {
	Submit(ctx context.Context, b *models.PriceBar) error
}

// KafkaBarsHandler consumes bar messages and hands them to the sink.
type KafkaBarsHandler struct {
	topic   string
	sink    BarSink
	metrics domrepo.Metrics
}

func NewKafkaBarsHandler(topic string, sink BarSink, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, sink: sink, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// incoming message schema: {ticker, date, o, h, l, c, v, vw}
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Ticker string   `json:"ticker"`
		Date   string   `json:"date"`
		Open   float64  `json:"o"`
		High   *float64 `json:"h"`
		Low    *float64 `json:"l"`
		Close  float64  `json:"c"`
		Volume float64  `json:"v"`
		VWAP   *float64 `json:"vw"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	day, ok := util.ParseDate(m.Date)
	if !ok {
		h.metrics.RecordError("consumer_date")
		return fmt.Errorf("bad bar date %q", m.Date)
	}

	return h.sink.Submit(ctx, &models.PriceBar{
		Ticker: m.Ticker,
		Date:   day,
		Open:   m.Open,
		High:   m.High,
		Low:    m.Low,
		Close:  m.Close,
		Volume: m.Volume,
		VWAP:   m.VWAP,
	})
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
