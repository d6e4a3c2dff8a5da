package services

import (
	"context"
	"strconv"

	"waitroom/config"
	"waitroom/models"
	"waitroom/store"
)

// Field names of the per-event config hash. Written on open, read on every
// admission tick and reservation.
const (
	cfgFieldMaxActive      = "maxActive"
	cfgFieldActiveTTL      = "activeTtl"
	cfgFieldReservationTTL = "reservationTtl"
	cfgFieldPaymentTTL     = "paymentTtl"
	cfgFieldStatus         = "status"
)

// loadEventConfig reads the event's capacity config from the live store,
// filling gaps from the process defaults. A missing hash yields an all-default
// config with empty status.
func loadEventConfig(ctx context.Context, st *store.Store, cfg *config.Config, eventID string) (models.EventConfig, error) {
	out := models.EventConfig{
		MaxActive:             cfg.DefaultMaxActive,
		ActiveTTLSeconds:      cfg.DefaultActiveTTL,
		ReservationTTLSeconds: cfg.DefaultReservationTTL,
		PaymentTTLSeconds:     cfg.DefaultPaymentTTL,
	}

	fields, err := st.Client.HGetAll(ctx, store.ConfigKey(eventID)).Result()
	if err != nil {
		return out, err
	}

	if v, ok := atoi(fields[cfgFieldMaxActive]); ok {
		out.MaxActive = v
	}
	if v, ok := atoi(fields[cfgFieldActiveTTL]); ok {
		out.ActiveTTLSeconds = v
	}
	if v, ok := atoi(fields[cfgFieldReservationTTL]); ok {
		out.ReservationTTLSeconds = v
	}
	if v, ok := atoi(fields[cfgFieldPaymentTTL]); ok {
		out.PaymentTTLSeconds = v
	}
	out.Status = fields[cfgFieldStatus]

	return out, nil
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
