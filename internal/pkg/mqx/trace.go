package mqx

import (
	"context"
	"fmt"

	"github.com/ecodeclub/mq-api"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "internal/pkg/mqx/tracing"

// TraceMq 包装底层MQ, 给每次消息发送生成producer span
type TraceMq struct {
	mq.MQ
	tracer trace.Tracer
}

func NewTraceMq(q mq.MQ) *TraceMq {
	return &TraceMq{MQ: q, tracer: otel.GetTracerProvider().Tracer(instrumentationName)}
}

func (t *TraceMq) Producer(topic string) (mq.Producer, error) {
	p, err := t.MQ.Producer(topic)
	if err != nil {
		return nil, err
	}
	return &traceProducer{Producer: p, topic: topic, tracer: t.tracer}, nil
}

type traceProducer struct {
	mq.Producer
	topic  string
	tracer trace.Tracer
}

func (t *traceProducer) Produce(ctx context.Context, m *mq.Message) (*mq.ProducerResult, error) {
	return t.traced(ctx, m, func(ctx context.Context) (*mq.ProducerResult, error) {
		return t.Producer.Produce(ctx, m)
	})
}

func (t *traceProducer) ProduceWithPartition(ctx context.Context, m *mq.Message, partition int) (*mq.ProducerResult, error) {
	return t.traced(ctx, m, func(ctx context.Context) (*mq.ProducerResult, error) {
		return t.Producer.ProduceWithPartition(ctx, m, partition)
	})
}

func (t *traceProducer) traced(ctx context.Context, m *mq.Message,
	produce func(ctx context.Context) (*mq.ProducerResult, error)) (*mq.ProducerResult, error) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("%s publish", t.topic),
		trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination.name", t.topic),
	}
	if m != nil {
		attrs = append(attrs, attribute.Int("messaging.message.body.size", len(m.Value)))
	}
	span.SetAttributes(attrs...)

	res, err := produce(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}
