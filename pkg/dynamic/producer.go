package dynamic

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/trace"

	"github.com/A-Cloud-Ninja/ironbar/pkg/script"
	"github.com/A-Cloud-Ninja/ironbar/pkg/telemetry"
)

// runCommand drives a command segment until the command's output ends or
// the subscription is torn down. Finished commands are not restarted.
func (h *Handle) runCommand(index int, s script.Script) {
	defer h.wg.Done()

	kind := string(SegmentCommand)
	var updates int64
	ctx, span, logger := h.startProducer(index, kind, s.String())
	defer func() { h.stopProducer(index, kind, span, updates) }()

	out, err := h.engine.runner.Run(ctx, s)
	if err != nil {
		h.producerFailed(index, span, logger, NewProducerError("failed to start command", err).
			WithCode(ErrCodeCommandStart).
			WithSegment(index))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case o, ok := <-out:
			if !ok {
				return
			}
			switch o.Stream {
			case script.Stdout:
				if !h.update(index, kind, o.Text) {
					return
				}
				updates++
			default:
				h.diagnostic(index, kind, span, logger, o.Text)
			}
		}
	}
}

// runVariable drives a variable segment. Absent values leave the slot as
// it was.
func (h *Handle) runVariable(index int, name string) {
	defer h.wg.Done()

	kind := string(SegmentVariable)
	var updates int64
	ctx, span, logger := h.startProducer(index, kind, name)
	defer func() { h.stopProducer(index, kind, span, updates) }()

	values, err := h.engine.variables.Subscribe(ctx, name)
	if err != nil {
		h.producerFailed(index, span, logger, NewProducerError("failed to subscribe to variable "+name, err).
			WithCode(ErrCodeVariableSubscribe).
			WithSegment(index))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-values:
			if !ok {
				return
			}
			if !v.Valid {
				continue
			}
			if !h.update(index, kind, v.Data) {
				return
			}
			updates++
		}
	}
}

// update writes a slot and queues the render. It reports false once the
// render channel has closed.
func (h *Handle) update(index int, kind, value string) bool {
	err := h.agg.Update(index, value, h.ch.Send)
	if errors.Is(err, ErrChannelClosed) {
		return false
	}
	h.engine.tel.Metrics.RecordSlotUpdate(kind)
	return true
}

func (h *Handle) diagnostic(index int, kind string, span trace.Span, logger *telemetry.Logger, text string) {
	logger.Warn(text)
	telemetry.AddEvent(span, "diagnostic", telemetry.AttrDiagnostic.String(text))
	h.engine.tel.Metrics.RecordDiagnostic(kind)
	_ = h.engine.tel.Events.PublishProducerDiagnostic(h.id, index, text)
}

func (h *Handle) producerFailed(index int, span trace.Span, logger *telemetry.Logger, err *TemplateError) {
	logger.WithError(err).Error("producer failed")
	telemetry.RecordError(span, err)
	h.engine.tel.Metrics.RecordProducerError(string(h.tmpl.Segments[index].Kind), err.Code)
	_ = h.engine.tel.Events.PublishProducerFailed(h.id, index, err.Error())
}

func (h *Handle) startProducer(index int, kind, value string) (context.Context, trace.Span, *telemetry.Logger) {
	ctx, span := h.engine.tel.Tracer.StartProducerSpan(h.ctx, h.id, index, kind, value)
	h.engine.tel.Metrics.ProducerStarted(kind)
	return ctx, span, h.logger.WithSegment(index, kind)
}

func (h *Handle) stopProducer(index int, kind string, span trace.Span, updates int64) {
	h.engine.tel.Metrics.ProducerStopped(kind)
	_ = h.engine.tel.Events.PublishProducerExited(h.id, index, updates)
	span.End()
}
