package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"fanpage-server/internal/model"
	"fanpage-server/internal/policy"
)

const meterName = "fanpage-server/internal/service"

type contentMetrics struct {
	decisions metric.Int64Counter
	toggles   metric.Int64Counter
}

// 未注册 MeterProvider 时 otel 返回 noop 实现
func newContentMetrics() *contentMetrics {
	meter := otel.Meter(meterName)
	decisions, _ := meter.Int64Counter("fanpage.moderation.decisions",
		metric.WithDescription("Moderation policy decisions by role, mode and outcome"),
		metric.WithUnit("{decision}"),
	)
	toggles, _ := meter.Int64Counter("fanpage.like.toggles",
		metric.WithDescription("Like toggles by direction"),
		metric.WithUnit("{toggle}"),
	)
	return &contentMetrics{decisions: decisions, toggles: toggles}
}

func (m *contentMetrics) decision(ctx context.Context, role model.Role, mode policy.Mode, d policy.Decision, err error) {
	if m == nil || m.decisions == nil {
		return
	}
	outcome := "pending"
	switch {
	case err != nil:
		outcome = "rejected"
	case d.ApprovedSet && d.Approved:
		outcome = "approved"
	case !d.ApprovedSet:
		outcome = "unchanged"
	}
	modeName := "create"
	if mode == policy.ModeUpdate {
		modeName = "update"
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", string(role)),
		attribute.String("mode", modeName),
		attribute.String("outcome", outcome),
	))
}

func (m *contentMetrics) toggle(ctx context.Context, liked bool) {
	if m == nil || m.toggles == nil {
		return
	}
	direction := "unlike"
	if liked {
		direction = "like"
	}
	m.toggles.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", direction)))
}
